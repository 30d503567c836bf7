package workspace

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/logger"
)

// RetryStrategy selects how the delay grows between attempts.
type RetryStrategy string

// Supported retry strategies.
const (
	RetryExponential RetryStrategy = "exponential"
	RetryLinear      RetryStrategy = "linear"
	RetryConstant    RetryStrategy = "constant"
	RetryRandom      RetryStrategy = "random"
)

// ParseRetryStrategy accepts the strategy names with or without a
// "_backoff" suffix.
func ParseRetryStrategy(s string) (RetryStrategy, error) {
	switch RetryStrategy(strings.TrimSuffix(strings.ToLower(s), "_backoff")) {
	case "", RetryExponential:
		return RetryExponential, nil
	case RetryLinear:
		return RetryLinear, nil
	case RetryConstant:
		return RetryConstant, nil
	case RetryRandom:
		return RetryRandom, nil
	default:
		return "", errors.New("unknown retry strategy: " + s)
	}
}

// RetryConfig holds retry behaviour.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Strategy   RetryStrategy
	Jitter     bool
}

// DefaultRetryConfig returns three retries with jittered exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfigFromSettings(domain.DefaultAppSettings().Retry)
}

// RetryConfigFromSettings converts persisted settings. Unknown strategies
// fall back to exponential.
func RetryConfigFromSettings(s domain.RetrySettings) RetryConfig {
	strategy, err := ParseRetryStrategy(s.Strategy)
	if err != nil {
		strategy = RetryExponential
	}
	return RetryConfig{
		MaxRetries: s.MaxRetries,
		BaseDelay:  s.BaseDelay,
		MaxDelay:   s.MaxDelay,
		Strategy:   strategy,
		Jitter:     s.Jitter,
	}
}

// RetryHandler re-runs failed calls that IsRetryable accepts.
type RetryHandler struct {
	cfg   RetryConfig
	log   zerolog.Logger
	rand  func() float64
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryHandler creates a retry handler.
func NewRetryHandler(cfg RetryConfig) *RetryHandler {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &RetryHandler{
		cfg:   cfg,
		log:   logger.WithComponent("gspace.retry_handler"),
		rand:  rand.Float64,
		sleep: sleepContext,
	}
}

// Config returns the handler configuration.
func (h *RetryHandler) Config() RetryConfig {
	return h.cfg
}

// Delay returns the wait before retry number attempt (1-based).
func (h *RetryHandler) Delay(attempt int) time.Duration {
	base := float64(h.cfg.BaseDelay)
	var d float64
	switch h.cfg.Strategy {
	case RetryLinear:
		d = base * float64(attempt)
	case RetryConstant:
		d = base
	case RetryRandom:
		d = h.rand() * base * float64(uint64(1)<<min(attempt-1, 32))
	default:
		d = base * float64(uint64(1)<<min(attempt-1, 32))
	}
	if h.cfg.Jitter {
		d *= 0.8 + 0.4*h.rand()
	}
	if h.cfg.MaxDelay > 0 && d > float64(h.cfg.MaxDelay) {
		return h.cfg.MaxDelay
	}
	return time.Duration(d)
}

// Do runs fn, retrying retryable failures up to MaxRetries times. A
// Retry-After header on the error replaces the computed delay.
func (h *RetryHandler) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := h.cfg.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts || !IsRetryable(err) || ctx.Err() != nil {
			break
		}

		delay := h.Delay(attempt)
		if after, ok := RetryAfter(err); ok {
			delay = after
		}
		h.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("delay", delay).
			Msg("Request failed, retrying")

		if sleepErr := h.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}

// RetryAfter extracts the Retry-After delay from a Google error. The header
// may carry delay seconds or an HTTP date; a date in the past yields zero.
func RetryAfter(err error) (time.Duration, bool) {
	return retryAfterAt(err, time.Now())
}

func retryAfterAt(err error, now time.Time) (time.Duration, bool) {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Header == nil {
		return 0, false
	}
	v := strings.TrimSpace(gerr.Header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, convErr := strconv.Atoi(v); convErr == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, parseErr := http.ParseTime(v)
	if parseErr != nil {
		return 0, false
	}
	return max(at.Sub(now), 0), true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
