package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.Del(ctx, RedisKeyQuota).Err(); err != nil {
		t.Fatalf("Failed to clear quota key: %v", err)
	}

	t.Cleanup(func() {
		client.Del(context.Background(), RedisKeyQuota)
		client.Close()
	})

	return client
}

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name        string
		headers     map[string]string
		wantOK      bool
		wantErr     bool
		wantRemain  int
		wantLimit   int
		wantHealthy bool
	}{
		{
			name:        "standard headers",
			headers:     map[string]string{"RateLimit-Remaining": "90", "RateLimit-Reset": "60", "RateLimit-Limit": "100"},
			wantOK:      true,
			wantRemain:  90,
			wantLimit:   100,
			wantHealthy: true,
		},
		{
			name:       "x-prefixed headers",
			headers:    map[string]string{"X-RateLimit-Remaining": "5", "X-RateLimit-Reset": "30"},
			wantOK:     true,
			wantRemain: 5,
		},
		{
			name:    "no quota headers",
			headers: map[string]string{"Content-Type": "application/json"},
		},
		{
			name:    "invalid remaining",
			headers: map[string]string{"RateLimit-Remaining": "many", "RateLimit-Reset": "60"},
			wantErr: true,
		},
		{
			name:    "missing reset",
			headers: map[string]string{"RateLimit-Remaining": "10"},
			wantErr: true,
		},
		{
			name:    "invalid reset",
			headers: map[string]string{"RateLimit-Remaining": "10", "RateLimit-Reset": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			for k, v := range tt.headers {
				headers.Set(k, v)
			}

			state, ok, err := ParseHeaders(headers)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHeaders() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Fatalf("ParseHeaders() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if state.Remaining != tt.wantRemain {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.wantRemain)
			}
			if state.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", state.Limit, tt.wantLimit)
			}
			if state.IsHealthy != tt.wantHealthy {
				t.Errorf("IsHealthy = %v, want %v", state.IsHealthy, tt.wantHealthy)
			}
		})
	}
}

func TestUpdateFromHeaders_NoHeadersIsNoop(t *testing.T) {
	// No redis access happens without quota headers.
	tracker := NewTracker(nil, zerolog.Nop())
	if err := tracker.UpdateFromHeaders(context.Background(), http.Header{}); err != nil {
		t.Errorf("UpdateFromHeaders() error = %v, want nil", err)
	}
}

func TestTracker_RoundTrip(t *testing.T) {
	tracker := NewTracker(setupTestRedis(t), zerolog.Nop())
	ctx := context.Background()

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.IsHealthy {
		t.Error("default state should be healthy")
	}

	headers := http.Header{}
	headers.Set("RateLimit-Remaining", "7")
	headers.Set("RateLimit-Reset", "120")
	headers.Set("RateLimit-Limit", "60")
	if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	state, err = tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining != 7 || state.Limit != 60 {
		t.Errorf("state = %+v, want remaining 7 limit 60", state)
	}
	if d := state.TimeUntilReset(); d < 110*time.Second || d > 120*time.Second {
		t.Errorf("TimeUntilReset() = %v, want ~120s", d)
	}
	if !state.NeedsThrottling() {
		t.Error("NeedsThrottling() = false for 7 remaining")
	}
}

func TestTracker_ShouldAllowRequest(t *testing.T) {
	tracker := NewTracker(setupTestRedis(t), zerolog.Nop())
	ctx := context.Background()

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil || !allowed {
		t.Fatalf("ShouldAllowRequest() = %v, %v; want true, nil", allowed, err)
	}

	headers := http.Header{}
	headers.Set("RateLimit-Remaining", "0")
	headers.Set("RateLimit-Reset", "60")
	if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	allowed, err = tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("ShouldAllowRequest() = true with exhausted quota")
	}
}

func TestTracker_ThrottleRespectsContext(t *testing.T) {
	tracker := NewTracker(setupTestRedis(t), zerolog.Nop())

	headers := http.Header{}
	headers.Set("RateLimit-Remaining", "5")
	headers.Set("RateLimit-Reset", "60")
	if err := tracker.UpdateFromHeaders(context.Background(), headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if allowed || err == nil {
		t.Errorf("ShouldAllowRequest() = %v, %v; want false with context error", allowed, err)
	}
}
