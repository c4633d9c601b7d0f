package models

import "time"

// Category buckets the outcome of a single model probe.
type Category string

const (
	CategorySuccess       Category = "success"
	CategoryRateLimited   Category = "rate_limited"
	CategoryQuotaExceeded Category = "quota_exceeded"
	CategoryAuthError     Category = "auth_error"
	CategoryTransient     Category = "transient_error"
	CategoryUnknown       Category = "unknown_error"
)

// Categories lists every defined category in a stable order.
func Categories() []Category {
	return []Category{
		CategorySuccess,
		CategoryRateLimited,
		CategoryQuotaExceeded,
		CategoryAuthError,
		CategoryTransient,
		CategoryUnknown,
	}
}

// OK reports whether the category counts towards the success rate.
func (c Category) OK() bool {
	return c == CategorySuccess
}

// CheckResult captures the outcome of probing a single model endpoint.
type CheckResult struct {
	Model      string   `json:"model"`
	Category   Category `json:"category"`
	HTTPStatus *int     `json:"http_status,omitempty"`
	LatencyMS  *float64 `json:"latency_ms,omitempty"`
	Message    *string  `json:"message,omitempty"`
}

// RunEntry stores the results of all model probes from a single run.
// Entries are append-only: once persisted they are never mutated.
type RunEntry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Checks    []CheckResult `json:"checks"`
}

// ModelInfo describes one entry from the provider's model listing.
type ModelInfo struct {
	Name    string   `json:"name"`
	Methods []string `json:"supportedGenerationMethods"`
}

// ConnectivityStatus captures the outcome of a local network reachability probe.
type ConnectivityStatus struct {
	Target    string    `json:"target"`
	OK        bool      `json:"ok"`
	LatencyMS int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
