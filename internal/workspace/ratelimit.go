package workspace

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

// ServiceType identifies a Google API service for rate limiting purposes.
type ServiceType string

const (
	// ServiceGmail is the Gmail API service.
	ServiceGmail ServiceType = "gmail"
	// ServiceDrive is the Google Drive API service.
	ServiceDrive ServiceType = "drive"
	// ServiceCalendar is the Google Calendar API service.
	ServiceCalendar ServiceType = "calendar"
	// ServiceSheets is the Google Sheets API service.
	ServiceSheets ServiceType = "sheets"
	// ServiceDocs is the Google Docs API service.
	ServiceDocs ServiceType = "docs"
)

// defaultBackoff applies when a 429 carries no Retry-After.
const defaultBackoff = 60 * time.Second

// RateLimitConfig holds rate limiting configuration for a service.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// fallbackRateLimit is used for services without a configured budget.
var fallbackRateLimit = RateLimitConfig{RequestsPerSecond: 5.0, BurstSize: 10}

// RateLimitFor returns the configured budget for service, falling back to
// the defaults. These stay well below Google's published per-user limits.
func RateLimitFor(service ServiceType, limits map[string]domain.RateLimitSettings) RateLimitConfig {
	if s, ok := limits[string(service)]; ok && s.RequestsPerSecond > 0 && s.Burst > 0 {
		return RateLimitConfig{RequestsPerSecond: s.RequestsPerSecond, BurstSize: s.Burst}
	}
	if s, ok := domain.DefaultRateLimits()[string(service)]; ok {
		return RateLimitConfig{RequestsPerSecond: s.RequestsPerSecond, BurstSize: s.Burst}
	}
	return fallbackRateLimit
}

// RateLimiterStats is a snapshot of a limiter.
type RateLimiterStats struct {
	Service           ServiceType
	AvailableTokens   float64
	MaxTokens         int
	RequestsPerSecond float64
	RequestCount      int64
	WaitTime          time.Duration
	BackoffUntil      time.Time
}

// RateLimiter provides rate limiting for Google API requests.
// It uses a token bucket algorithm with optional backoff for 429 responses.
type RateLimiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	retryAt  time.Time
	service  ServiceType
	cfg      RateLimitConfig
	requests atomic.Int64
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter for the specified service.
func NewRateLimiter(service ServiceType) *RateLimiter {
	r := NewRateLimiterWithConfig(RateLimitFor(service, nil))
	r.service = service
	return r
}

// NewRateLimiterWithConfig creates a rate limiter with custom configuration.
func NewRateLimiterWithConfig(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 || cfg.BurstSize <= 0 {
		cfg = fallbackRateLimit
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		cfg:     cfg,
		now:     time.Now,
	}
}

func (r *RateLimiter) backoffUntil() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryAt
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordRateLimitError.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if retryAt := r.backoffUntil(); r.now().Before(retryAt) {
		timer := time.NewTimer(retryAt.Sub(r.now()))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	r.requests.Add(1)
	return nil
}

// Acquire waits at most timeout for a token and reports whether one was taken.
func (r *RateLimiter) Acquire(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.Wait(ctx) == nil
}

// RecordRateLimitError records a rate limit error and sets a backoff period.
// Call this when receiving a 429 response from Google APIs.
func (r *RateLimiter) RecordRateLimitError(retryAfterSeconds int) {
	backoff := defaultBackoff
	if retryAfterSeconds > 0 {
		backoff = time.Duration(retryAfterSeconds) * time.Second
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAt = r.now().Add(backoff)
}

// Allow checks if a request can be made immediately without blocking.
// Returns true if the request is allowed, false if it would exceed the rate limit.
func (r *RateLimiter) Allow() bool {
	if r.now().Before(r.backoffUntil()) {
		return false
	}
	if !r.limiter.Allow() {
		return false
	}
	r.requests.Add(1)
	return true
}

// WaitTime returns how long the next request would wait.
func (r *RateLimiter) WaitTime() time.Duration {
	now := r.now()
	var wait time.Duration
	if retryAt := r.backoffUntil(); now.Before(retryAt) {
		wait = retryAt.Sub(now)
	}

	res := r.limiter.ReserveN(now, 1)
	if !res.OK() {
		return wait
	}
	delay := res.DelayFrom(now)
	res.CancelAt(now)
	return max(wait, delay)
}

// Stats returns a snapshot of the limiter state.
func (r *RateLimiter) Stats() RateLimiterStats {
	return RateLimiterStats{
		Service:           r.service,
		AvailableTokens:   r.limiter.TokensAt(r.now()),
		MaxTokens:         r.cfg.BurstSize,
		RequestsPerSecond: r.cfg.RequestsPerSecond,
		RequestCount:      r.requests.Load(),
		WaitTime:          r.WaitTime(),
		BackoffUntil:      r.backoffUntil(),
	}
}
