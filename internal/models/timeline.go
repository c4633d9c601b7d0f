package models

import "time"

// TimelinePoint represents a single compact bucket in a model timeline.
type TimelinePoint struct {
	ClassName string           `json:"className"`
	Label     string           `json:"label"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Details   []TimelineDetail `json:"details,omitempty"`
}

// TimelineDetail carries extra information for degraded buckets.
type TimelineDetail struct {
	Timestamp time.Time `json:"timestamp"`
	Category  Category  `json:"category,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// ModelTimeline aggregates timeline points for a single model endpoint.
type ModelTimeline struct {
	Model    string          `json:"model"`
	Timeline []TimelinePoint `json:"timeline"`
}
