// Package storagetest holds behaviour tests shared by every driven.TokenStore.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/ports/driven"
)

// SampleRecord returns a fully populated record with second precision times.
func SampleRecord() domain.TokenRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.TokenRecord{
		AccessToken:    "ya29.access",
		RefreshToken:   "1//refresh",
		TokenType:      "Bearer",
		ExpiresAt:      now.Add(time.Hour),
		CreatedAt:      now,
		AdditionalData: map[string]any{"scope": "openid"},
	}
}

// RunTokenStoreTests exercises the driven.TokenStore contract.
// newStore must return an empty store.
func RunTokenStoreTests(t *testing.T, newStore func(t *testing.T) driven.TokenStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("save and load", func(t *testing.T) {
		store := newStore(t)
		record := SampleRecord()

		require.NoError(t, store.Save(ctx, "alice@example.com", record))

		got, err := store.Load(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, record.AccessToken, got.AccessToken)
		assert.Equal(t, record.RefreshToken, got.RefreshToken)
		assert.Equal(t, record.TokenType, got.TokenType)
		assert.True(t, record.ExpiresAt.Equal(got.ExpiresAt), "expires_at")
		assert.True(t, record.CreatedAt.Equal(got.CreatedAt), "created_at")
		assert.Equal(t, "openid", got.AdditionalData["scope"])
	})

	t.Run("save replaces", func(t *testing.T) {
		store := newStore(t)
		first := SampleRecord()
		second := SampleRecord()
		second.AccessToken = "ya29.second"

		require.NoError(t, store.Save(ctx, "bob", first))
		require.NoError(t, store.Save(ctx, "bob", second))

		got, err := store.Load(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, "ya29.second", got.AccessToken)
	})

	t.Run("load missing", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Load(ctx, "nobody")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "carol", SampleRecord()))

		require.NoError(t, store.Delete(ctx, "carol"))
		_, err := store.Load(ctx, "carol")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		assert.NoError(t, store.Delete(ctx, "carol"), "deleting twice")
	})

	t.Run("list sorted", func(t *testing.T) {
		store := newStore(t)
		users, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)

		for _, id := range []string{"zed", "amy", "default"} {
			require.NoError(t, store.Save(ctx, id, SampleRecord()))
		}

		users, err = store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"amy", "default", "zed"}, users)
	})

	t.Run("invalid user ids", func(t *testing.T) {
		store := newStore(t)

		for _, id := range []string{"", "..", "a/b"} {
			assert.ErrorIs(t, store.Save(ctx, id, SampleRecord()), domain.ErrInvalidInput, id)
			_, err := store.Load(ctx, id)
			assert.ErrorIs(t, err, domain.ErrInvalidInput, id)
			assert.ErrorIs(t, store.Delete(ctx, id), domain.ErrInvalidInput, id)
		}
	})
}
