package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ratewatch/internal/models"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)

	first := testEntry("run-1", base, models.CategorySuccess)
	second := testEntry("run-2", base.Add(time.Hour), models.CategoryRateLimited)
	require.NoError(t, s.Append(first))
	require.NoError(t, s.Append(second))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries := reopened.History()
	require.Len(t, entries, 2)
	require.Equal(t, "run-1", entries[0].ID)
	require.Equal(t, "run-2", entries[1].ID)
	require.True(t, entries[0].Timestamp.Equal(base))

	last := entries[1]
	require.Equal(t, 1, last.Total)
	require.Equal(t, 0, last.Succeeded)
	require.Len(t, last.Checks, 1)
	require.Equal(t, "models/gemini-2.0-flash", last.Checks[0].Model)
	require.Equal(t, models.CategoryRateLimited, last.Checks[0].Category)
	require.NotNil(t, last.Checks[0].HTTPStatus)
	require.Equal(t, 429, *last.Checks[0].HTTPStatus)
	require.NotNil(t, last.Checks[0].LatencyMS)

	latest, ok := reopened.Latest()
	require.True(t, ok)
	require.Equal(t, "run-2", latest.ID)
}

func TestSQLiteStoreNullableFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)

	msg := "Exception: dial tcp: connection refused"
	entry := models.RunEntry{
		ID:        "run-net",
		Timestamp: time.Now().UTC(),
		Total:     1,
		Checks: []models.CheckResult{{
			Model:    "models/gemini-2.0-flash",
			Category: models.CategoryTransient,
			Message:  &msg,
		}},
	}
	require.NoError(t, s.Append(entry))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries := reopened.History()
	require.Len(t, entries, 1)
	check := entries[0].Checks[0]
	require.Nil(t, check.HTTPStatus)
	require.Nil(t, check.LatencyMS)
	require.NotNil(t, check.Message)
	require.Equal(t, msg, *check.Message)
}

func TestSQLiteStoreEmptyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	require.Empty(t, s.History())
	_, ok := s.Latest()
	require.False(t, ok)
}
