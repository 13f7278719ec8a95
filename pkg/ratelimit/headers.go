package ratelimit

import (
	"math"
	"strconv"
)

// Headers renders the standard rate-limit response headers from a decision.
// Reset is epoch seconds; Retry-After is whole seconds, rounded up, and only
// present when the call was denied.
func Headers(r Result) map[string]string {
	h := map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(r.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(r.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(r.ResetTime.Unix(), 10),
	}
	if !r.Allowed && r.RetryAfter > 0 {
		h["Retry-After"] = strconv.Itoa(int(math.Ceil(r.RetryAfter.Seconds())))
	}
	return h
}
