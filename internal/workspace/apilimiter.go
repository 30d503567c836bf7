package workspace

import (
	"context"
	"time"
)

// APILimiterStats combines limiter state and retry configuration.
type APILimiterStats struct {
	RateLimiter RateLimiterStats
	Retry       RetryConfig
}

// APILimiter applies a service's rate limit and retry policy to API calls.
type APILimiter struct {
	service ServiceType
	limiter *RateLimiter
	retry   *RetryHandler
}

// NewAPILimiter creates a limiter for service.
func NewAPILimiter(service ServiceType, limit RateLimitConfig, retry RetryConfig) *APILimiter {
	rl := NewRateLimiterWithConfig(limit)
	rl.service = service
	return &APILimiter{
		service: service,
		limiter: rl,
		retry:   NewRetryHandler(retry),
	}
}

// DefaultAPILimiter creates a limiter with the built-in limits for service
// and the default retry policy.
func DefaultAPILimiter(service ServiceType) *APILimiter {
	return NewAPILimiter(service, RateLimitFor(service, nil), DefaultRetryConfig())
}

// Service returns the service the limiter guards.
func (l *APILimiter) Service() ServiceType {
	return l.service
}

// RateLimiter returns the underlying token bucket.
func (l *APILimiter) RateLimiter() *RateLimiter {
	return l.limiter
}

// Do waits for the rate limiter before every attempt and retries transient
// failures. 429 responses push the limiter into backoff. The returned error
// is mapped with WrapError.
func (l *APILimiter) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := l.retry.Do(ctx, func(ctx context.Context) error {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
		err := fn(ctx)
		if IsRateLimited(err) {
			apiRateLimitedTotal.WithLabelValues(string(l.service)).Inc()
			secs := 0
			if after, ok := RetryAfter(err); ok {
				secs = int(after / time.Second)
			}
			l.limiter.RecordRateLimitError(secs)
		}
		return err
	})

	apiRequestDuration.WithLabelValues(string(l.service), operation).Observe(time.Since(start).Seconds())
	apiRequestsTotal.WithLabelValues(string(l.service), operation, outcomeLabel(err)).Inc()
	return WrapError(err)
}

// Stats returns a snapshot of the limiter.
func (l *APILimiter) Stats() APILimiterStats {
	return APILimiterStats{
		RateLimiter: l.limiter.Stats(),
		Retry:       l.retry.Config(),
	}
}

// Call runs fn through the limiter and returns its result.
func Call[T any](ctx context.Context, l *APILimiter, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := l.Do(ctx, operation, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}
