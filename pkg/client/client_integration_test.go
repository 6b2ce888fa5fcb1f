//go:build integration

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Sternrassler/shop-admin-client/internal/testutil"
	"github.com/Sternrassler/shop-admin-client/pkg/cache"
	"github.com/Sternrassler/shop-admin-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_RevalidationAndQuota(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	var requests, conditional atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("RateLimit-Limit", "100")
		w.Header().Set("RateLimit-Remaining", "42")
		w.Header().Set("RateLimit-Reset", "60")

		if r.Header.Get("If-None-Match") == `"orders-v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"orders-v1"`)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"orders":[{"orderId":1},{"orderId":2}],"totalPages":1}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, redisClient)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		var out struct {
			Orders []map[string]any `json:"orders"`
		}
		if err := c.GetJSON(ctx, "/getallorders", nil, &out); err != nil {
			t.Fatalf("GetJSON #%d error = %v", i+1, err)
		}
		if len(out.Orders) != 2 {
			t.Errorf("GetJSON #%d orders = %d, want 2", i+1, len(out.Orders))
		}
	}

	if requests.Load() != 3 {
		t.Errorf("requests = %d, want 3 (every GET reaches the store)", requests.Load())
	}
	if conditional.Load() != 2 {
		t.Errorf("conditional requests = %d, want 2", conditional.Load())
	}

	state, err := c.tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState error = %v", err)
	}
	if state.Remaining != 42 || state.Limit != 100 {
		t.Errorf("quota = %d/%d, want 42/100", state.Remaining, state.Limit)
	}
}

func TestIntegration_QuotaBlocksRequests(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("RateLimit-Remaining", "1")
		w.Header().Set("RateLimit-Reset", "60")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, redisClient)
	ctx := context.Background()

	if err := c.GetJSON(ctx, "/allusers", nil, nil); err != nil {
		t.Fatalf("first request error = %v", err)
	}

	err := c.GetJSON(ctx, "/allusers", nil, nil)
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Errorf("second request error = %v, want ErrQuotaExhausted", err)
	}
	if requests.Load() != 1 {
		t.Errorf("requests = %d, want 1", requests.Load())
	}

	// A second client sharing the Redis state is blocked as well.
	other := newTestClient(t, server.URL, redisClient)
	if err := other.Delete(ctx, "/deleteuser/1"); !errors.Is(err, ErrQuotaExhausted) {
		t.Errorf("other client error = %v, want ErrQuotaExhausted", err)
	}
	if key := ratelimit.RedisKeyQuota; redisClient.Exists(ctx, key).Val() != 1 {
		t.Errorf("quota key %s not stored", key)
	}
}

func TestIntegration_MockStoreThroughCache(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	store := testutil.NewMockStore("secret")
	defer store.Close()
	store.SeedUsers(3)

	c := newTestClient(t, store.URL(), redisClient)
	ctx := context.Background()

	var out struct {
		Users []map[string]any `json:"users"`
	}
	if err := c.GetJSON(ctx, "/allusers", nil, &out); err != nil {
		t.Fatalf("GetJSON error = %v", err)
	}
	if len(out.Users) != 3 {
		t.Errorf("users = %d, want 3", len(out.Users))
	}

	// The store sends no validators, so nothing is stored.
	key := cache.Key{Endpoint: "/allusers", Subject: "admin-1"}
	if _, err := cache.NewManager(redisClient, cache.DefaultRetention).Get(ctx, key); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("cache Get error = %v, want ErrCacheMiss", err)
	}

	if err := c.Delete(ctx, "/deleteuser/2"); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if got := store.LastHeader().Get("Idempotency-Key"); got == "" {
		t.Error("DELETE sent without Idempotency-Key")
	}
	if _, ok := store.Find(testutil.Users, "2"); ok {
		t.Error("user 2 still stored")
	}
}
