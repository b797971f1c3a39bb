package providers

import (
	"net/http"
	"strconv"
	"time"
)

// parseRetryAfter extracts the Retry-After header as whole seconds.
// Both the delta-seconds and HTTP-date forms are accepted; absent or
// malformed headers yield 0, meaning no provider guidance.
func parseRetryAfter(h http.Header) int {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return secs
	}

	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return int(d.Round(time.Second) / time.Second)
		}
	}

	return 0
}
