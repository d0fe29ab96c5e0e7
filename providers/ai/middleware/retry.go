package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/leofalp/planner/internal/utils"
	"github.com/leofalp/planner/providers/ai"
	"github.com/leofalp/planner/providers/observability"
)

// ErrRetryExhausted is returned by Retry when every attempt failed. It wraps
// the last provider error as well.
var ErrRetryExhausted = errors.New("all retry attempts exhausted")

// RetryConfig tunes Retry. Zero values are replaced with the defaults below.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first failure.
	// Default: 2.
	MaxRetries int

	// InitialBackoff is the wait before the first retry. Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed backoff. Default: 30s.
	MaxBackoff time.Duration

	// BackoffFactor is the exponential growth per attempt. Default: 2.
	BackoffFactor float64

	// JitterFraction adds up to this fraction of the backoff at random.
	// Default: 0.1.
	JitterFraction float64

	// Retryable reports whether err is worth another attempt. Default:
	// IsTransient.
	Retryable func(error) bool
}

func (config *RetryConfig) applyDefaults() {
	if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = 2
	}
	if config.JitterFraction == 0 {
		config.JitterFraction = 0.1
	}
	if config.Retryable == nil {
		config.Retryable = IsTransient
	}
}

// backoff returns the wait before retry number attempt (0-indexed):
// min(InitialBackoff * BackoffFactor^attempt, MaxBackoff) plus jitter.
func (config RetryConfig) backoff(attempt int) time.Duration {
	base := float64(config.InitialBackoff) * math.Pow(config.BackoffFactor, float64(attempt))
	if base > float64(config.MaxBackoff) {
		base = float64(config.MaxBackoff)
	}
	jitter := base * config.JitterFraction * rand.Float64() //nolint:gosec // jitter does not need a secure source
	return time.Duration(base + jitter)
}

// IsTransient reports whether err is a rate limit, a server-side failure or
// a network timeout. An http.Client timeout counts as a network timeout even
// though it wraps context.DeadlineExceeded; whether the caller's own context
// ended is decided by Retry, not here. Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *utils.HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Retry retries failed sends with exponential backoff. A negative
// MaxRetries disables retrying.
func Retry(config RetryConfig) Middleware {
	if config.MaxRetries < 0 {
		return nil
	}
	config.applyDefaults()

	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			var lastErr error

			for attempt := 0; attempt <= config.MaxRetries; attempt++ {
				if attempt > 0 {
					wait := config.backoff(attempt - 1)
					if observer := observability.ObserverFromContext(ctx); observer != nil {
						observer.Warn(ctx, "Retrying model request",
							observability.Int("retry.attempt", attempt),
							observability.Duration("retry.backoff", wait),
							observability.Error(lastErr),
						)
					}

					timer := time.NewTimer(wait)
					select {
					case <-ctx.Done():
						timer.Stop()
						return nil, ctx.Err()
					case <-timer.C:
					}
				}

				response, err := next(ctx, request)
				if err == nil {
					return response, nil
				}
				lastErr = err

				if ctx.Err() != nil || !config.Retryable(err) {
					return nil, err
				}
			}

			return nil, fmt.Errorf("%w after %d retries: %w", ErrRetryExhausted, config.MaxRetries, lastErr)
		}
	}
}
