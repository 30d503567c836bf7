package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

func TestRateLimitFor(t *testing.T) {
	assert.Equal(t, RateLimitConfig{RequestsPerSecond: 2, BurstSize: 5}, RateLimitFor(ServiceGmail, nil))
	assert.Equal(t, RateLimitConfig{RequestsPerSecond: 5, BurstSize: 10}, RateLimitFor(ServiceDocs, nil))
	assert.Equal(t, fallbackRateLimit, RateLimitFor(ServiceType("tasks"), nil))

	custom := map[string]domain.RateLimitSettings{"gmail": {RequestsPerSecond: 1, Burst: 1}}
	assert.Equal(t, RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}, RateLimitFor(ServiceGmail, custom))
}

func TestRateLimiter_AllowBurst(t *testing.T) {
	r := NewRateLimiterWithConfig(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 3})

	for range 3 {
		assert.True(t, r.Allow())
	}
	assert.False(t, r.Allow())
	assert.Equal(t, int64(3), r.Stats().RequestCount)
}

func TestRateLimiter_Acquire(t *testing.T) {
	r := NewRateLimiterWithConfig(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})

	assert.True(t, r.Acquire(context.Background(), 10*time.Millisecond))
	assert.False(t, r.Acquire(context.Background(), 10*time.Millisecond))
}

func TestRateLimiter_RecordRateLimitError(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRateLimiter(ServiceDrive)
	r.now = func() time.Time { return now }

	r.RecordRateLimitError(0)

	assert.False(t, r.Allow())
	stats := r.Stats()
	assert.Equal(t, now.Add(60*time.Second), stats.BackoffUntil)
	assert.Equal(t, 60*time.Second, stats.WaitTime)

	r.RecordRateLimitError(5)
	assert.Equal(t, 5*time.Second, r.WaitTime())
}

func TestRateLimiter_WaitRespectsContext(t *testing.T) {
	r := NewRateLimiter(ServiceGmail)
	r.RecordRateLimitError(30)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := r.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_Stats(t *testing.T) {
	r := NewRateLimiter(ServiceCalendar)

	stats := r.Stats()
	assert.Equal(t, ServiceCalendar, stats.Service)
	assert.Equal(t, 10, stats.MaxTokens)
	assert.InDelta(t, 5.0, stats.RequestsPerSecond, 0.001)
	assert.InDelta(t, 10.0, stats.AvailableTokens, 0.5)
	assert.Zero(t, stats.WaitTime)
}
