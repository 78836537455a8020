// internal/models/ratelimit.go
package models

import "time"

// RateLimitDecision is the outcome of one fixed-window check.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfterSeconds is the whole-second wait until the window resets,
// never below 1 for a denied request.
func (d RateLimitDecision) RetryAfterSeconds(now time.Time) int {
	secs := int(d.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}
