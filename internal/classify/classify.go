package classify

import (
	"fmt"
	"net/http"
	"strings"

	"ratewatch/internal/models"
	"ratewatch/internal/probe"
)

// Classify maps a raw probe outcome onto exactly one category together with a
// short human-readable message. The mapping is total: every outcome lands in
// one of the six defined categories.
//
// A non-200 body matching a quota pattern wins over the plain status-code
// mapping, so a 429 caused by an exhausted quota is quota_exceeded rather
// than rate_limited.
func Classify(out probe.Outcome, quotaPatterns []string) (models.Category, string) {
	if out.Err != nil {
		return models.CategoryTransient, fmt.Sprintf("Exception: %s", out.Err)
	}

	if out.StatusCode == http.StatusOK {
		return models.CategorySuccess, "OK"
	}

	if matchesQuota(out.Body, quotaPatterns) {
		return models.CategoryQuotaExceeded, fmt.Sprintf("Quota Exceeded (%d)", out.StatusCode)
	}

	switch {
	case out.StatusCode == http.StatusTooManyRequests:
		return models.CategoryRateLimited, "Rate Limit (429)"
	case out.StatusCode == http.StatusUnauthorized || out.StatusCode == http.StatusForbidden:
		return models.CategoryAuthError, fmt.Sprintf("Auth Error (%d)", out.StatusCode)
	case out.StatusCode >= 500 && out.StatusCode <= 599:
		return models.CategoryTransient, fmt.Sprintf("Error %d", out.StatusCode)
	default:
		return models.CategoryUnknown, fmt.Sprintf("Error %d", out.StatusCode)
	}
}

func matchesQuota(body string, patterns []string) bool {
	if body == "" {
		return false
	}
	lower := strings.ToLower(body)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
