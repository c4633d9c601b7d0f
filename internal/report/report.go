package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ratewatch/internal/metrics"
	"ratewatch/internal/models"
)

// Report is the derived, non-persistent summary of the latest run combined
// with historical aggregates. It carries no clock-dependent fields, so
// building it twice from the same inputs yields byte-identical JSON.
type Report struct {
	Latest           *models.RunEntry        `json:"latest"`
	CountsByCategory map[models.Category]int `json:"counts_by_category"`
	Recent           []models.RunEntry       `json:"recent"`
	TotalRuns        int                     `json:"total_runs"`
	TotalChecks      int                     `json:"total_checks"`
	SuccessPercent   float64                 `json:"success_percent"`
	Models           []metrics.ModelUptime   `json:"models"`
}

// Build assembles a report from the latest run and the full history. Inputs
// are never mutated; Recent holds the last recentN entries, oldest first.
func Build(latest *models.RunEntry, entries []models.RunEntry, recentN int) Report {
	if recentN <= 0 || recentN > len(entries) {
		recentN = len(entries)
	}
	recent := make([]models.RunEntry, recentN)
	copy(recent, entries[len(entries)-recentN:])

	totalChecks := 0
	for _, entry := range entries {
		totalChecks += len(entry.Checks)
	}

	return Report{
		Latest:           latest,
		CountsByCategory: metrics.CountByCategory(entries),
		Recent:           recent,
		TotalRuns:        len(entries),
		TotalChecks:      totalChecks,
		SuccessPercent:   metrics.SuccessRate(entries),
		Models:           metrics.ComputeModelUptime(entries),
	}
}

// EncodeJSON renders the report as indented JSON with a trailing newline.
func EncodeJSON(r Report) ([]byte, error) {
	encoded, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return append(encoded, '\n'), nil
}

// WriteJSON writes the JSON report to path, creating parent directories as
// needed. Callers skip the call entirely when no path was requested.
func WriteJSON(path string, r Report) error {
	encoded, err := EncodeJSON(r)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write json report: %w", err)
	}
	return nil
}
