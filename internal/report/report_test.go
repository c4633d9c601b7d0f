package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ratewatch/internal/models"
)

func entry(id string, ts time.Time, categories ...models.Category) models.RunEntry {
	e := models.RunEntry{ID: id, Timestamp: ts, Total: len(categories)}
	for i, c := range categories {
		msg := "OK"
		if !c.OK() {
			msg = "Error"
		}
		e.Checks = append(e.Checks, models.CheckResult{
			Model:    "models/gemini-" + string(rune('a'+i)),
			Category: c,
			Message:  &msg,
		})
		if c.OK() {
			e.Succeeded++
		}
	}
	return e
}

func sampleHistory() []models.RunEntry {
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	return []models.RunEntry{
		entry("run-1", base, models.CategorySuccess, models.CategorySuccess),
		entry("run-2", base.Add(time.Hour), models.CategorySuccess, models.CategoryRateLimited),
		entry("run-3", base.Add(2*time.Hour), models.CategoryTransient, models.CategorySuccess),
	}
}

func TestBuild(t *testing.T) {
	entries := sampleHistory()
	latest := entries[len(entries)-1]

	rep := Build(&latest, entries, 2)

	require.Equal(t, &latest, rep.Latest)
	require.Equal(t, 3, rep.TotalRuns)
	require.Equal(t, 6, rep.TotalChecks)
	require.Equal(t, 4, rep.CountsByCategory[models.CategorySuccess])
	require.Equal(t, 1, rep.CountsByCategory[models.CategoryRateLimited])
	require.Equal(t, 1, rep.CountsByCategory[models.CategoryTransient])
	require.Zero(t, rep.CountsByCategory[models.CategoryQuotaExceeded])

	// Last K entries, oldest first.
	require.Len(t, rep.Recent, 2)
	require.Equal(t, "run-2", rep.Recent[0].ID)
	require.Equal(t, "run-3", rep.Recent[1].ID)
}

func TestBuildDoesNotMutateInputs(t *testing.T) {
	entries := sampleHistory()
	latest := entries[len(entries)-1]

	before := make([]models.RunEntry, len(entries))
	copy(before, entries)

	_ = Build(&latest, entries, 2)

	require.Equal(t, before, entries)
}

func TestEncodeJSONIsIdempotent(t *testing.T) {
	entries := sampleHistory()
	latest := entries[len(entries)-1]

	first, err := EncodeJSON(Build(&latest, entries, 2))
	require.NoError(t, err)
	second, err := EncodeJSON(Build(&latest, entries, 2))
	require.NoError(t, err)

	require.True(t, bytes.Equal(first, second), "same inputs must produce byte-identical JSON")
}

func TestBuildEmptyHistory(t *testing.T) {
	rep := Build(nil, nil, 10)
	require.Nil(t, rep.Latest)
	require.Empty(t, rep.Recent)
	require.Zero(t, rep.TotalRuns)
	require.Len(t, rep.CountsByCategory, 6)

	_, err := EncodeJSON(rep)
	require.NoError(t, err)
}

func TestRenderHTML(t *testing.T) {
	entries := sampleHistory()
	latest := entries[len(entries)-1]
	rep := Build(&latest, entries, 2)

	var buf bytes.Buffer
	err := RenderHTML(&buf, rep, entries, time.Date(2026, 8, 23, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	html := buf.String()
	require.Contains(t, html, "Gemini Rate Dashboard")
	require.Contains(t, html, "models/gemini-a")
	require.Contains(t, html, "Total Runs")
	// Success-first sort puts the operational row before the failing one.
	require.Less(t,
		bytes.Index(buf.Bytes(), []byte("status-success")),
		bytes.Index(buf.Bytes(), []byte("status-fail")),
	)
}

func TestRenderHTMLEmptyHistory(t *testing.T) {
	rep := Build(nil, nil, 10)

	var buf bytes.Buffer
	err := RenderHTML(&buf, rep, nil, time.Now())
	require.NoError(t, err)
	require.Contains(t, buf.String(), "No checks recorded yet")
}
