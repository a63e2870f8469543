package reliability

import (
	"testing"
	"time"
)

func TestClassifyHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want string
	}{
		{401, KindAuth},
		{403, KindAuth},
		{429, KindRateLimit},
		{502, KindNetwork},
		{400, KindMalformed},
		{302, KindUnknown},
	}
	for _, tc := range cases {
		if got := ClassifyHTTPStatus(tc.code); got != tc.want {
			t.Fatalf("ClassifyHTTPStatus(%d) = %q, want %q", tc.code, got, tc.want)
		}
	}
	if !IsRetryableKind(KindRateLimit) || IsRetryableKind(KindAuth) {
		t.Fatalf("IsRetryableKind misclassified rate_limit/auth")
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}
