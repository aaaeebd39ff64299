// Package ratelimit tracks the upstream market-data API request budget and
// gates outgoing requests. It monitors the X-RateLimit-Remaining and
// X-RateLimit-Reset response headers so the fetcher backs off before the
// provider starts rejecting requests.
package ratelimit

import (
	"time"
)

// Thresholds for request gating decisions.
const (
	// RemainingCritical blocks all requests when the remaining budget falls
	// below this value. The provider would reject them anyway.
	RemainingCritical = 2

	// RemainingWarning throttles requests when the remaining budget falls
	// below this value to stretch the budget across the window.
	RemainingWarning = 10

	// RemainingHealthy indicates normal operation with no restrictions.
	RemainingHealthy = 25
)

// State is the most recently observed upstream rate limit state.
type State struct {
	// Remaining is the number of requests left in the current window,
	// taken from the X-RateLimit-Remaining header.
	Remaining int `json:"remaining"`

	// ResetAt is when the request budget resets, calculated from the
	// X-RateLimit-Reset header (seconds until reset) or Retry-After.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last observed. Stale state is
	// treated as healthy since the window has likely rolled over.
	LastUpdate time.Time `json:"last_update"`

	// Healthy is true when Remaining is at or above RemainingHealthy.
	Healthy bool `json:"healthy"`
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsBlock returns true if requests should be blocked until the window
// resets.
func (s *State) NeedsBlock() bool {
	return s.Remaining < RemainingCritical
}

// NeedsThrottle returns true if requests should be slowed down.
func (s *State) NeedsThrottle() bool {
	return s.Remaining < RemainingWarning && !s.NeedsBlock()
}

// TimeUntilReset returns the duration until the budget resets, or 0 if the
// reset time has passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth recomputes the Healthy field from Remaining.
func (s *State) UpdateHealth() {
	s.Healthy = s.Remaining >= RemainingHealthy
}
