package metrics

import (
	"math"
	"sort"
	"time"

	"ratewatch/internal/models"
)

// ModelUptime summarises the health of one probed model endpoint.
type ModelUptime struct {
	Model          string          `json:"model"`
	SuccessPercent float64         `json:"success_percent"`
	TotalChecks    int             `json:"total_checks"`
	Passing        int             `json:"passing"`
	Failing        int             `json:"failing"`
	LastCategory   models.Category `json:"last_category,omitempty"`
	LastChecked    string          `json:"last_checked,omitempty"`
}

// CountByCategory tallies every stored check by its category. All six
// categories are always present so report output stays stable.
func CountByCategory(entries []models.RunEntry) map[models.Category]int {
	counts := make(map[models.Category]int, 6)
	for _, c := range models.Categories() {
		counts[c] = 0
	}
	for _, entry := range entries {
		for _, check := range entry.Checks {
			counts[check.Category]++
		}
	}
	return counts
}

// ComputeModelUptime aggregates success statistics per model from history
// entries, sorted by model name.
func ComputeModelUptime(entries []models.RunEntry) []ModelUptime {
	type acc struct {
		passing      int
		failing      int
		lastCategory models.Category
		lastTime     time.Time
	}
	state := make(map[string]*acc)
	for _, entry := range entries {
		for _, check := range entry.Checks {
			model := state[check.Model]
			if model == nil {
				model = &acc{}
				state[check.Model] = model
			}
			if check.Category.OK() {
				model.passing++
			} else {
				model.failing++
			}
			model.lastCategory = check.Category
			model.lastTime = entry.Timestamp
		}
	}
	if len(state) == 0 {
		return nil
	}

	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]ModelUptime, 0, len(names))
	for _, name := range names {
		data := state[name]
		total := data.passing + data.failing
		uptime := 0.0
		if total > 0 {
			uptime = float64(data.passing) / float64(total) * 100
		}

		result := ModelUptime{
			Model:          name,
			SuccessPercent: round2(uptime),
			TotalChecks:    total,
			Passing:        data.passing,
			Failing:        data.failing,
			LastCategory:   data.lastCategory,
		}
		if !data.lastTime.IsZero() {
			result.LastChecked = data.lastTime.UTC().Format(time.RFC3339)
		}
		results = append(results, result)
	}
	return results
}

// SuccessRate returns the share of successful checks across all entries as a
// percentage, rounded to two decimals.
func SuccessRate(entries []models.RunEntry) float64 {
	var total, passing int
	for _, entry := range entries {
		for _, check := range entry.Checks {
			total++
			if check.Category.OK() {
				passing++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return round2(float64(passing) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
