package workspace

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

type countingProvider struct {
	mu     sync.Mutex
	calls  int
	record domain.TokenRecord
	err    error
}

func (p *countingProvider) ValidToken(_ context.Context, userID string) (*domain.TokenRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	r := p.record
	r.AccessToken = r.AccessToken + "-" + userID
	return &r, nil
}

func TestStoreTokenSource_CachesUntilExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	provider := &countingProvider{record: domain.TokenRecord{
		AccessToken: "tok",
		ExpiresAt:   now.Add(10 * time.Minute),
	}}
	ts := NewStoreTokenSource(context.Background(), provider, "alice")
	ts.now = func() time.Time { return now }

	for range 5 {
		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "tok-alice", tok.AccessToken)
		assert.Equal(t, "Bearer", tok.TokenType)
	}
	assert.Equal(t, 1, provider.calls)

	now = now.Add(9*time.Minute + 30*time.Second)
	_, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)

	ts.Invalidate()
	_, err = ts.Token()
	require.NoError(t, err)
	assert.Equal(t, 3, provider.calls)
}

func TestStoreTokenSource_Error(t *testing.T) {
	provider := &countingProvider{err: domain.ErrAuthExpired}
	ts := NewStoreTokenSource(context.Background(), provider, "alice")

	_, err := ts.Token()
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
}

func TestStoreTokenSource_Concurrent(t *testing.T) {
	provider := &countingProvider{record: domain.TokenRecord{AccessToken: "tok"}}
	ts := NewStoreTokenSource(context.Background(), provider, "bob")

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ts.Token()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, provider.calls)
}
