// Package ratelimit keeps the console within the record store's request
// quota.
//
// Tracker follows the quota the store announces in its RateLimit-Remaining /
// RateLimit-Reset (or X-RateLimit-*) response headers and shares it through
// Redis, so every console instance backs off together. Limiter is a local
// token bucket applied before each request.
package ratelimit

import (
	"time"
)

// RedisKeyQuota is the hash holding the shared quota state.
const RedisKeyQuota = "admin:quota"

// Thresholds for quota decisions.
const (
	// QuotaCritical blocks requests when fewer requests than this remain.
	QuotaCritical = 2

	// QuotaWarning throttles requests when fewer requests than this remain.
	QuotaWarning = 10

	// QuotaHealthy marks the quota as healthy at or above this value.
	QuotaHealthy = 25
)

// QuotaState is the last quota announced by the record store.
type QuotaState struct {
	// Remaining requests in the current window.
	Remaining int `json:"remaining"`

	// Limit is the window size, 0 if the store does not announce it.
	Limit int `json:"limit"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was written.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= QuotaHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge.
func (s *QuotaState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests must wait for the reset.
// A window that already reset never blocks.
func (s *QuotaState) NeedsCriticalBlock() bool {
	return s.Remaining < QuotaCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *QuotaState) NeedsThrottling() bool {
	return s.Remaining < QuotaWarning && !s.NeedsCriticalBlock() && s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the window resets, 0 if passed.
func (s *QuotaState) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth recomputes IsHealthy.
func (s *QuotaState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= QuotaHealthy
}
