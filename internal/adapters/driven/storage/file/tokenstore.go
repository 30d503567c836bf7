package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/ports/driven"
)

// Default directory names, relative to the gspace config directory.
const (
	DefaultPlainDir     = ".gspaces_tokens"
	DefaultEncryptedDir = ".gspaces_tokens_encrypted"
)

const (
	plainExt     = ".json"
	encryptedExt = ".enc"
)

// Ensure TokenStore implements the interface.
var _ driven.TokenStore = (*TokenStore)(nil)

// codec transforms the JSON record before it reaches disk.
type codec interface {
	seal(plaintext []byte) ([]byte, error)
	open(ciphertext []byte) ([]byte, error)
}

type plainCodec struct{}

func (plainCodec) seal(b []byte) ([]byte, error) { return b, nil }
func (plainCodec) open(b []byte) ([]byte, error) { return b, nil }

// TokenStore keeps one token file per user in a directory.
type TokenStore struct {
	dir   string
	ext   string
	codec codec
}

// NewTokenStore creates a plain JSON token store in dir.
func NewTokenStore(dir string) (*TokenStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating token directory: %w", err)
	}
	return &TokenStore{dir: dir, ext: plainExt, codec: plainCodec{}}, nil
}

// Dir returns the directory the store writes to.
func (s *TokenStore) Dir() string {
	return s.dir
}

func (s *TokenStore) path(userID string) string {
	return filepath.Join(s.dir, userID+s.ext)
}

// Save stores tokens for a user.
func (s *TokenStore) Save(_ context.Context, userID string, record domain.TokenRecord) error {
	if err := domain.ValidateUserID(userID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling tokens: %w", err)
	}
	sealed, err := s.codec.seal(data)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(s.path(userID), sealed, 0600); err != nil {
		return fmt.Errorf("writing tokens for %q: %w", userID, err)
	}
	return nil
}

// Load retrieves tokens for a user.
func (s *TokenStore) Load(_ context.Context, userID string) (*domain.TokenRecord, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}
	sealed, err := os.ReadFile(s.path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("tokens for %q: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading tokens for %q: %w", userID, err)
	}
	data, err := s.codec.open(sealed)
	if err != nil {
		return nil, fmt.Errorf("tokens for %q: %w", userID, err)
	}
	var record domain.TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parsing tokens for %q: %w", userID, err)
	}
	return &record, nil
}

// Delete removes tokens for a user.
func (s *TokenStore) Delete(_ context.Context, userID string) error {
	if err := domain.ValidateUserID(userID); err != nil {
		return err
	}
	if err := os.Remove(s.path(userID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting tokens for %q: %w", userID, err)
	}
	return nil
}

// List returns the users with stored tokens, sorted.
func (s *TokenStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading token directory: %w", err)
	}
	users := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, s.ext) {
			continue
		}
		users = append(users, strings.TrimSuffix(name, s.ext))
	}
	sort.Strings(users)
	return users, nil
}
