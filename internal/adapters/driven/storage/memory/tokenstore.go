package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/ports/driven"
)

// Ensure TokenStore implements the interface.
var _ driven.TokenStore = (*TokenStore)(nil)

// TokenStore keeps token records in memory.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]domain.TokenRecord
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]domain.TokenRecord)}
}

// Save stores tokens for a user.
func (s *TokenStore) Save(_ context.Context, userID string, record domain.TokenRecord) error {
	if err := domain.ValidateUserID(userID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = cloneRecord(record)
	return nil
}

// Load retrieves tokens for a user.
func (s *TokenStore) Load(_ context.Context, userID string) (*domain.TokenRecord, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.tokens[userID]
	if !ok {
		return nil, fmt.Errorf("tokens for %q: %w", userID, domain.ErrNotFound)
	}
	out := cloneRecord(record)
	return &out, nil
}

// Delete removes tokens for a user.
func (s *TokenStore) Delete(_ context.Context, userID string) error {
	if err := domain.ValidateUserID(userID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

// List returns the users with stored tokens, sorted.
func (s *TokenStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.tokens))
	for id := range s.tokens {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

func cloneRecord(r domain.TokenRecord) domain.TokenRecord {
	if r.AdditionalData != nil {
		data := make(map[string]any, len(r.AdditionalData))
		for k, v := range r.AdditionalData {
			data[k] = v
		}
		r.AdditionalData = data
	}
	return r
}
