package monitor

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ratewatch/internal/models"
	"ratewatch/internal/probe"
	"ratewatch/internal/storage"
)

type fakeProber struct {
	listed   []models.ModelInfo
	listErr  error
	outcomes map[string]probe.Outcome
}

func (f *fakeProber) ListModels(context.Context) ([]models.ModelInfo, error) {
	return f.listed, f.listErr
}

func (f *fakeProber) GenerateContent(_ context.Context, model string) probe.Outcome {
	return f.outcomes[model]
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.NewHistoryStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)
	return s
}

func TestRunOnceRecordsMixedOutcomes(t *testing.T) {
	store := newTestStore(t)
	prober := &fakeProber{
		outcomes: map[string]probe.Outcome{
			"models/gemini-a": {StatusCode: http.StatusOK, Body: "{}"},
			"models/gemini-b": {StatusCode: http.StatusTooManyRequests, Body: "{}"},
		},
	}

	m := New(Options{
		Models:        []string{"models/gemini-a", "models/gemini-b"},
		QuotaPatterns: []string{"RESOURCE_EXHAUSTED"},
		Prober:        prober,
		Store:         store,
	})

	entry, err := m.RunOnce(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, entry.ID)
	require.False(t, entry.Timestamp.IsZero())
	require.Equal(t, 2, entry.Total)
	require.Equal(t, 1, entry.Succeeded)

	require.Equal(t, models.CategorySuccess, entry.Checks[0].Category)
	require.Equal(t, models.CategoryRateLimited, entry.Checks[1].Category)
	require.NotNil(t, entry.Checks[1].HTTPStatus)
	require.Equal(t, 429, *entry.Checks[1].HTTPStatus)

	// A rate-limited classification is a recorded outcome, not a failure:
	// the entry must have been appended.
	latest, ok := store.Latest()
	require.True(t, ok)
	require.Equal(t, entry.ID, latest.ID)
}

func TestRunOnceNetworkFailureIsRecorded(t *testing.T) {
	store := newTestStore(t)
	prober := &fakeProber{
		outcomes: map[string]probe.Outcome{
			"models/gemini-a": {Err: errors.New("dial tcp: connection refused")},
		},
	}

	m := New(Options{
		Models: []string{"models/gemini-a"},
		Prober: prober,
		Store:  store,
	})

	entry, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.CategoryTransient, entry.Checks[0].Category)
	require.Nil(t, entry.Checks[0].HTTPStatus)
	require.Len(t, store.History(), 1)
}

func TestRunOnceDiscoversModels(t *testing.T) {
	store := newTestStore(t)
	prober := &fakeProber{
		listed: []models.ModelInfo{
			{Name: "models/gemini-a", Methods: []string{"generateContent"}},
			{Name: "models/gemma-b", Methods: []string{"generateContent"}},
		},
		outcomes: map[string]probe.Outcome{
			"models/gemini-a": {StatusCode: http.StatusOK},
		},
	}

	m := New(Options{
		ExcludeModels: []string{"gemma"},
		Prober:        prober,
		Store:         store,
	})

	entry, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, entry.Total)
	require.Equal(t, "models/gemini-a", entry.Checks[0].Model)
}

func TestRunOnceDiscoveryFailureIsRecorded(t *testing.T) {
	store := newTestStore(t)
	prober := &fakeProber{listErr: errors.New("fetch models: status 500")}

	m := New(Options{Prober: prober, Store: store})

	entry, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, entry.Total)
	require.Zero(t, entry.Succeeded)
	require.Equal(t, listingTarget, entry.Checks[0].Model)
	require.Equal(t, models.CategoryTransient, entry.Checks[0].Category)
	require.Len(t, store.History(), 1)
}

type failingStore struct {
	storage.Store
}

func (f failingStore) Append(models.RunEntry) error {
	return errors.New("disk full")
}

func TestRunOnceAppendFailurePropagates(t *testing.T) {
	prober := &fakeProber{
		outcomes: map[string]probe.Outcome{
			"models/gemini-a": {StatusCode: http.StatusOK},
		},
	}

	m := New(Options{
		Models: []string{"models/gemini-a"},
		Prober: prober,
		Store:  failingStore{newTestStore(t)},
	})

	_, err := m.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "append history")
}
