package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "admin_quota_remaining",
		Help: "Requests remaining in the record store's current quota window",
	})

	quotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admin_quota_blocks_total",
		Help: "Total number of requests blocked because the quota is exhausted",
	})

	quotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admin_quota_throttles_total",
		Help: "Total number of requests delayed because the quota is low",
	})
)

// ThrottleDelay is how long a request waits when the quota is low.
var ThrottleDelay = time.Second

// Tracker follows the record store's announced quota.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a quota tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState reads the shared quota state. Without stored data the quota is
// assumed healthy.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	fields, err := t.redis.HGetAll(ctx, RedisKeyQuota).Result()
	if err != nil {
		return nil, fmt.Errorf("get quota state: %w", err)
	}

	if len(fields) == 0 {
		t.logger.Debug().Msg("No quota state in Redis, assuming healthy")
		return &QuotaState{
			Remaining:  QuotaHealthy * 4,
			ResetAt:    time.Now().Add(60 * time.Second),
			LastUpdate: time.Now(),
			IsHealthy:  true,
		}, nil
	}

	state := &QuotaState{}
	if state.Remaining, err = strconv.Atoi(fields["remaining"]); err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}
	if v := fields["limit"]; v != "" {
		if state.Limit, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("parse limit: %w", err)
		}
	}
	resetAt, err := strconv.ParseInt(fields["reset_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse reset_at: %w", err)
	}
	state.ResetAt = time.Unix(resetAt, 0)
	if v := fields["last_update"]; v != "" {
		lastUpdate, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse last_update: %w", err)
		}
		state.LastUpdate = time.Unix(0, lastUpdate)
	}
	state.UpdateHealth()

	return state, nil
}

// ParseHeaders extracts the announced quota. ok is false when the response
// carries no quota headers.
func ParseHeaders(headers http.Header) (state *QuotaState, ok bool, err error) {
	remainStr := firstHeader(headers, "RateLimit-Remaining", "X-RateLimit-Remaining")
	if remainStr == "" {
		return nil, false, nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, false, fmt.Errorf("parse RateLimit-Remaining header: %w", err)
	}

	resetStr := firstHeader(headers, "RateLimit-Reset", "X-RateLimit-Reset")
	if resetStr == "" {
		return nil, false, errors.New("RateLimit-Reset header missing")
	}
	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return nil, false, fmt.Errorf("parse RateLimit-Reset header: %w", err)
	}

	now := time.Now()
	state = &QuotaState{
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}
	if limitStr := firstHeader(headers, "RateLimit-Limit", "X-RateLimit-Limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			state.Limit = limit
		}
	}
	state.UpdateHealth()

	return state, true, nil
}

// UpdateFromHeaders stores the quota announced in headers.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	state, ok, err := ParseHeaders(headers)
	if err != nil || !ok {
		return err
	}

	err = t.redis.HSet(ctx, RedisKeyQuota,
		"remaining", state.Remaining,
		"limit", state.Limit,
		"reset_at", state.ResetAt.Unix(),
		"last_update", state.LastUpdate.UnixNano(),
	).Err()
	if err != nil {
		return fmt.Errorf("store quota state in redis: %w", err)
	}

	quotaRemaining.Set(float64(state.Remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Quota exhausted, requests will be blocked until reset")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Quota low, requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Quota state updated")
	}

	return nil
}

// ShouldAllowRequest returns false when the quota is exhausted. In the
// warning range it delays the caller by ThrottleDelay or until ctx is done.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Quota exhausted, blocking request")
		quotaBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Msg("Quota low, throttling request")
		quotaThrottlesTotal.Inc()

		timer := time.NewTimer(ThrottleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}

func firstHeader(headers http.Header, names ...string) string {
	for _, name := range names {
		if v := headers.Get(name); v != "" {
			return v
		}
	}
	return ""
}
