//go:build integration

package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	return client, func() {
		client.Close()
		container.Terminate(ctx)
	}
}

func TestTracker_Integration_SharedState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	writer := NewTracker(redisClient, zerolog.Nop())
	reader := NewTracker(redisClient, zerolog.Nop())

	headers := http.Header{}
	headers.Set("RateLimit-Remaining", "1")
	headers.Set("RateLimit-Reset", "60")
	if err := writer.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	allowed, err := reader.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("second tracker ignored the exhausted quota written by the first")
	}
}

func TestTracker_Integration_ConcurrentUpdates(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	tracker := NewTracker(redisClient, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			headers := http.Header{}
			headers.Set("RateLimit-Remaining", "50")
			headers.Set("RateLimit-Reset", "60")
			if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
				t.Errorf("UpdateFromHeaders() error = %v", err)
			}
		}()
	}
	wg.Wait()

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining != 50 || !state.IsHealthy {
		t.Errorf("state = %+v, want healthy with 50 remaining", state)
	}
}
