package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

func TestTokenMaintainer_RunOnce(t *testing.T) {
	ctx := context.Background()
	refresher := &fakeRefresher{result: domain.TokenRecord{
		AccessToken: "fresh",
		ExpiresAt:   testNow.Add(time.Hour),
	}}
	tokens, store := newTestManager(WithRefresher(refresher))

	soon := validRecord()
	soon.ExpiresAt = testNow.Add(2 * time.Minute)
	require.NoError(t, store.Save(ctx, "expiring", soon))
	require.NoError(t, store.Save(ctx, "healthy", validRecord()))
	require.NoError(t, store.Save(ctx, "no-expiry", domain.TokenRecord{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, store.Save(ctx, "empty", domain.TokenRecord{}))

	m := NewTokenMaintainer(tokens, WithCleanup(true))
	m.now = func() time.Time { return testNow }

	result := m.RunOnce(ctx)

	assert.Equal(t, 1, result.Refreshed)
	assert.Equal(t, 1, result.Removed)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 1, refresher.calls)

	stored, err := store.Load(ctx, "expiring")
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.AccessToken)

	users, _ := tokens.ListUsers(ctx)
	assert.Equal(t, []string{"expiring", "healthy", "no-expiry"}, users)

	require.NotNil(t, m.LastResult())
	assert.Equal(t, result, *m.LastResult())
}

func TestTokenMaintainer_RunOnce_RefreshFailure(t *testing.T) {
	ctx := context.Background()
	tokens, store := newTestManager(WithRefresher(&fakeRefresher{err: errors.New("unavailable")}))
	require.NoError(t, store.Save(ctx, "alice", expiredRecord()))

	m := NewTokenMaintainer(tokens)
	m.now = func() time.Time { return testNow }

	result := m.RunOnce(ctx)

	assert.Zero(t, result.Refreshed)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Removed)
}

func TestTokenMaintainer_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	tokens, _ := newTestManager()
	m := NewTokenMaintainer(tokens, WithInterval(10*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- m.Start(context.Background()) }()

	require.Eventually(t, func() bool { return m.LastResult() != nil }, time.Second, 5*time.Millisecond)
	m.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("maintainer did not stop")
	}
}

func TestTokenMaintainer_StartContextCancel(t *testing.T) {
	tokens, _ := newTestManager()
	m := NewTokenMaintainer(tokens, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
