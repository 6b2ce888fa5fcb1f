// Package client provides the record store HTTP client with session
// authentication, rate limiting, conditional-GET caching, and retries.
package client

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/shop-admin-client/pkg/cache"
	"github.com/Sternrassler/shop-admin-client/pkg/ratelimit"
	"github.com/Sternrassler/shop-admin-client/pkg/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client talks to the record store on behalf of one session.
type Client struct {
	httpClient *http.Client
	session    *session.Session
	limiter    *ratelimit.Limiter
	tracker    *ratelimit.Tracker
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Session is the authenticated admin context (REQUIRED).
	Session *session.Session

	// Redis enables the shared quota tracker and the revalidation cache.
	// Nil disables both.
	Redis *redis.Client

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP attempt.
	Timeout time.Duration

	// RateLimit is the local request rate per second (0 = unlimited).
	RateLimit float64
	Burst     int

	// CacheRetention is how long validators are kept in Redis.
	CacheRetention time.Duration

	// Retry configures backoff for retryable failures.
	Retry RetryConfig

	// HTTPClient overrides the default transport (tests).
	HTTPClient *http.Client
}

// DefaultConfig returns the configuration used by the console.
func DefaultConfig(sess *session.Session, redisClient *redis.Client) Config {
	return Config{
		Session:        sess,
		Redis:          redisClient,
		UserAgent:      "shop-admin-client/1.0",
		Timeout:        15 * time.Second,
		RateLimit:      10,
		Burst:          5,
		CacheRetention: cache.DefaultRetention,
		Retry:          DefaultRetryConfig(),
	}
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := log.With().Str("component", "admin-client").Logger()

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		httpClient: httpClient,
		session:    cfg.Session,
		limiter:    ratelimit.NewLimiter(cfg.RateLimit, cfg.Burst),
		config:     cfg,
		logger:     logger,
	}
	if cfg.Redis != nil {
		c.tracker = ratelimit.NewTracker(cfg.Redis, logger)
		c.cache = cache.NewManager(cfg.Redis, cfg.CacheRetention)
	}

	return c, nil
}

// Session returns the client's session.
func (c *Client) Session() *session.Session {
	return c.session
}

// Do performs req with rate limiting, revalidation, and retries.
//
// A response is returned for every status that is not retried, including
// 4xx; the caller inspects the status. Retryable failures that persist are
// returned as an error wrapping ErrRetryExhausted and the last failure.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := c.endpointLabel(req.URL.Path)

	start := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if c.tracker != nil {
		allowed, err := c.tracker.ShouldAllowRequest(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, fmt.Errorf("quota check: %w", err)
		case err != nil:
			// Redis trouble must not take the console down with it.
			c.logger.Warn().Err(err).Msg("Quota check failed, allowing request")
		case !allowed:
			apiRequestsTotal.WithLabelValues(endpoint, "quota_blocked").Inc()
			return nil, ErrQuotaExhausted
		}
	}

	cacheKey := cache.Key{
		Endpoint:    req.URL.Path,
		QueryParams: req.URL.Query(),
		Subject:     c.session.AdminID(),
	}
	var cached *cache.Entry
	if c.cache != nil && req.Method == http.MethodGet {
		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if cache.CanRevalidate(entry) {
			cached = entry
			cache.AddConditionalHeaders(req, entry)
			cache.ConditionalRequestsSent.Inc()
		}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if req.Method != http.MethodGet && req.Header.Get("Idempotency-Key") == "" {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	c.session.Authorize(req)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing request")

	var resp *http.Response
	retryErr := retryWithBackoff(ctx, c.config.Retry, c.logger, func(attempt int) (ErrorClass, error) {
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return "", fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		var err error
		resp, err = c.httpClient.Do(req)
		if err != nil {
			resp = nil
			if ctx.Err() != nil {
				return "", err
			}
			apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			return ErrorClassNetwork, err
		}

		if c.tracker != nil {
			if err := c.tracker.UpdateFromHeaders(ctx, resp.Header); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update quota from headers")
			}
		}

		apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		if resp.StatusCode < 400 {
			return "", nil
		}

		class := classifyStatus(resp.StatusCode)
		apiErrorsTotal.WithLabelValues(string(class)).Inc()
		if !shouldRetry(class) {
			return class, nil
		}

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Request failed")

		statusErr := newStatusError(req, resp, class)
		resp = nil
		return class, statusErr
	})
	if retryErr != nil {
		return nil, retryErr
	}

	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		if cached == nil {
			return nil, &StatusError{
				Method:     req.Method,
				Endpoint:   req.URL.Path,
				StatusCode: http.StatusNotModified,
				Class:      ErrorClassClient,
				Message:    "not modified without a stored response",
			}
		}
		cache.NotModifiedResponses.Inc()
		if err := c.cache.Touch(ctx, cacheKey); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to extend cache entry")
		}
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified, using stored response")
		return cache.EntryToResponse(cached, req), nil
	}

	if c.cache != nil && cache.Cacheable(resp) {
		entry, err := cache.ResponseToEntry(resp, c.cache.Retention())
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return resp, nil
}

// newStatusError reads the store's message from resp and closes the body.
func newStatusError(req *http.Request, resp *http.Response, class ErrorClass) *StatusError {
	defer resp.Body.Close()

	se := &StatusError{
		Method:     req.Method,
		Endpoint:   req.URL.Path,
		StatusCode: resp.StatusCode,
		Class:      class,
		Message:    http.StatusText(resp.StatusCode),
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if msg := extractMessage(body); msg != "" {
		se.Message = msg
	}

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			se.RetryAfter = time.Duration(secs) * time.Second
		} else if t, err := http.ParseTime(ra); err == nil {
			se.RetryAfter = time.Until(t)
		}
	}

	return se
}

// endpointLabel reduces a request path to its first segment below the base
// path, e.g. "/getallorders" or "/deleteuser", bounding metric cardinality.
func (c *Client) endpointLabel(path string) string {
	path = strings.TrimPrefix(path, c.session.BasePath())
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return "/" + path
}

// readAll drains and closes resp.Body.
func readAll(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf.Bytes(), nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
