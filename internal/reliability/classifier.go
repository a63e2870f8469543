package reliability

import (
	"net/http"
	"time"
)

// Error kinds reported for failed provider calls.
const (
	KindNetwork   = "network"
	KindAuth      = "auth"
	KindRateLimit = "rate_limit"
	KindMalformed = "malformed"
	KindUnknown   = "unknown"
)

// ClassifyHTTPStatus maps a non-success upstream status to an error kind.
func ClassifyHTTPStatus(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code >= 500:
		return KindNetwork
	case code >= 400:
		return KindMalformed
	default:
		return KindUnknown
	}
}

// IsRetryableKind reports whether a caller may sensibly retry an error kind.
func IsRetryableKind(kind string) bool {
	switch kind {
	case KindNetwork, KindRateLimit:
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
