package file

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

// Key derivation parameters.
const (
	kdfIterations = 100_000
	keyLength     = chacha20poly1305.KeySize
	saltLength    = 16
	saltFile      = ".salt"

	formatVersion byte = 1
)

// Environment variables consulted by DefaultPassword.
const (
	EnvTokenPassword = "GSPACES_TOKEN_PASSWORD"
	EnvMachineID     = "MACHINE_ID"
)

// DefaultPassword returns the token password from GSPACES_TOKEN_PASSWORD,
// or one derived from MACHINE_ID ("default" when unset).
func DefaultPassword() string {
	if pw := os.Getenv(EnvTokenPassword); pw != "" {
		return pw
	}
	machineID := os.Getenv(EnvMachineID)
	if machineID == "" {
		machineID = "default"
	}
	sum := sha256.Sum256([]byte(machineID))
	return fmt.Sprintf("gspaces_%s_%s", machineID, hex.EncodeToString(sum[:])[:8])
}

// NewEncryptedTokenStore creates an encrypted token store in dir.
// An empty password means DefaultPassword. The directory keeps a random
// salt, created on first use.
func NewEncryptedTokenStore(dir, password string) (*TokenStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating token directory: %w", err)
	}
	if password == "" {
		password = DefaultPassword()
	}
	salt, err := loadOrCreateSalt(filepath.Join(dir, saltFile))
	if err != nil {
		return nil, err
	}
	c, err := newAEADCodec(password, salt)
	if err != nil {
		return nil, err
	}
	return &TokenStore{dir: dir, ext: encryptedExt, codec: c}, nil
}

func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != saltLength {
			return nil, fmt.Errorf("salt file %s: unexpected length %d", path, len(salt))
		}
		return salt, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading salt: %w", err)
	}
	salt = make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	if err := renameio.WriteFile(path, salt, 0600); err != nil {
		return nil, fmt.Errorf("writing salt: %w", err)
	}
	return salt, nil
}

// aeadCodec seals records as base64url(version || nonce || ciphertext).
type aeadCodec struct {
	key []byte
}

func newAEADCodec(password string, salt []byte) (*aeadCodec, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: empty token password", domain.ErrInvalidInput)
	}
	return &aeadCodec{key: pbkdf2.Key([]byte(password), salt, kdfIterations, keyLength, sha256.New)}, nil
}

func (c *aeadCodec) seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	header := append([]byte{formatVersion}, nonce...)
	sealed := aead.Seal(header, nonce, plaintext, []byte{formatVersion})
	out := make([]byte, base64.RawURLEncoding.EncodedLen(len(sealed)))
	base64.RawURLEncoding.Encode(out, sealed)
	return out, nil
}

func (c *aeadCodec) open(encoded []byte) ([]byte, error) {
	raw := make([]byte, base64.RawURLEncoding.DecodedLen(len(encoded)))
	n, err := base64.RawURLEncoding.Decode(raw, encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDecryptFailed, err)
	}
	raw = raw[:n]

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}
	if len(raw) < 1+aead.NonceSize() || raw[0] != formatVersion {
		return nil, fmt.Errorf("%w: unrecognised format", domain.ErrDecryptFailed)
	}
	nonce := raw[1 : 1+aead.NonceSize()]
	plaintext, err := aead.Open(nil, nonce, raw[1+aead.NonceSize():], []byte{formatVersion})
	if err != nil {
		return nil, fmt.Errorf("%w: wrong password or corrupted file", domain.ErrDecryptFailed)
	}
	return plaintext, nil
}
