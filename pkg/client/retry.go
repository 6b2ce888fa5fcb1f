package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigForErrorClass derives the configuration for an error class
// from base. Rate limiting backs off longest, network errors longer than
// server errors.
func RetryConfigForErrorClass(base RetryConfig, errorClass ErrorClass) RetryConfig {
	cfg := base
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}

	switch errorClass {
	case ErrorClassRateLimit:
		cfg.InitialBackoff *= 4
		cfg.MaxBackoff *= 4
	case ErrorClassNetwork:
		cfg.InitialBackoff *= 2
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return cfg
}

// attemptFunc performs one attempt and classifies its failure.
type attemptFunc func(attempt int) (ErrorClass, error)

// retryWithBackoff runs fn until it succeeds, fails with a non-retryable
// class, or base.MaxAttempts is reached. Backoff is exponential with ±20%
// jitter and honors a longer RetryAfter from a *StatusError.
func retryWithBackoff(ctx context.Context, base RetryConfig, logger zerolog.Logger, fn attemptFunc) error {
	var (
		lastErr error
		class   ErrorClass
		config  RetryConfig
		backoff time.Duration
	)

	for attempt := 1; ; attempt++ {
		class, lastErr = fn(attempt)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info().
					Str("error_class", string(class)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		if !shouldRetry(class) {
			return lastErr
		}

		if attempt == 1 {
			config = RetryConfigForErrorClass(base, class)
			backoff = config.InitialBackoff
		}
		if attempt >= config.MaxAttempts {
			break
		}

		apiRetriesTotal.WithLabelValues(string(class)).Inc()

		wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		var se *StatusError
		if errors.As(lastErr, &se) && se.RetryAfter > wait {
			wait = min(se.RetryAfter, config.MaxBackoff)
		}
		apiRetryBackoffSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())

		logger.Debug().
			Err(lastErr).
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	apiRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
	logger.Warn().
		Err(lastErr).
		Str("error_class", string(class)).
		Int("max_attempts", config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
