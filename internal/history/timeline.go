package history

import (
	"sort"
	"strings"
	"time"

	"ratewatch/internal/models"
)

const (
	// DefaultTimelinePoints controls how many buckets we generate per model.
	DefaultTimelinePoints = 80
	maxDetailsPerPoint    = 4
)

type sample struct {
	Timestamp time.Time
	Category  models.Category
	Message   string
}

// BuildModelTimelines converts a run history into compact per-model timelines
// suitable for a dashboard strip.
func BuildModelTimelines(entries []models.RunEntry, start, end time.Time, points int) []models.ModelTimeline {
	if points <= 0 {
		points = DefaultTimelinePoints
	}
	if !end.After(start) {
		end = start.Add(time.Minute)
	}

	historyMap := make(map[string][]sample)
	for _, entry := range entries {
		ts := entry.Timestamp
		for _, check := range entry.Checks {
			if check.Model == "" {
				continue
			}
			historyMap[check.Model] = append(historyMap[check.Model], sample{
				Timestamp: ts,
				Category:  check.Category,
				Message:   messageOrEmpty(check.Message),
			})
		}
	}
	if len(historyMap) == 0 {
		return nil
	}

	names := make([]string, 0, len(historyMap))
	for name := range historyMap {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	result := make([]models.ModelTimeline, 0, len(names))
	for _, name := range names {
		result = append(result, models.ModelTimeline{
			Model:    name,
			Timeline: buildTimeline(historyMap[name], start, end, points),
		})
	}
	return result
}

func buildTimeline(samples []sample, start, end time.Time, points int) []models.TimelinePoint {
	output := make([]models.TimelinePoint, 0, points)
	if points <= 0 {
		return output
	}
	if len(samples) > 1 {
		sort.Slice(samples, func(i, j int) bool {
			return samples[i].Timestamp.Before(samples[j].Timestamp)
		})
	}

	bucketDuration := end.Sub(start) / time.Duration(points)
	if bucketDuration <= 0 {
		bucketDuration = time.Minute
	}

	cursor := 0
	for i := 0; i < points; i++ {
		bucketStart := start.Add(time.Duration(i) * bucketDuration)
		bucketEnd := bucketStart.Add(bucketDuration)
		if i == points-1 {
			bucketEnd = end
		}
		bucketSamples, nextCursor := collectBucketSamples(samples, bucketStart, bucketEnd, cursor)
		cursor = nextCursor
		class, label, details := evaluateBucket(bucketSamples)
		output = append(output, models.TimelinePoint{
			ClassName: class,
			Label:     label,
			Start:     bucketStart,
			End:       bucketEnd,
			Details:   details,
		})
	}
	return output
}

func collectBucketSamples(samples []sample, start, end time.Time, cursor int) ([]sample, int) {
	total := len(samples)
	if total == 0 || cursor >= total {
		return nil, cursor
	}

	i := cursor
	for i < total && samples[i].Timestamp.Before(start) {
		i++
	}
	j := i
	for j < total && samples[j].Timestamp.Before(end) {
		j++
	}
	if i >= j {
		return nil, j
	}
	chunk := make([]sample, j-i)
	copy(chunk, samples[i:j])
	return chunk, j
}

// evaluateBucket reduces the samples of one bucket to a single state. Errors
// dominate, then throttling, then success. Rate limits and exhausted quotas
// are warnings rather than outages: the endpoint answered.
func evaluateBucket(entries []sample) (className, label string, details []models.TimelineDetail) {
	if len(entries) == 0 {
		return "state-missing", "No data", nil
	}

	var hasError, hasWarning, hasSuccess bool
	details = make([]models.TimelineDetail, 0, maxDetailsPerPoint)
	for _, entry := range entries {
		switch entry.Category {
		case models.CategorySuccess:
			hasSuccess = true
		case models.CategoryRateLimited, models.CategoryQuotaExceeded:
			hasWarning = true
			details = appendDetail(details, entry)
		default:
			hasError = true
			details = appendDetail(details, entry)
		}
	}

	switch {
	case hasError:
		return "state-error", "Unavailable", details
	case hasWarning:
		return "state-warning", "Throttled", details
	case hasSuccess:
		return "state-success", "Operational", nil
	default:
		return "state-missing", "No data", details
	}
}

func appendDetail(details []models.TimelineDetail, entry sample) []models.TimelineDetail {
	if len(details) >= maxDetailsPerPoint {
		return details
	}
	return append(details, models.TimelineDetail{
		Timestamp: entry.Timestamp,
		Category:  entry.Category,
		Message:   entry.Message,
	})
}

func messageOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
