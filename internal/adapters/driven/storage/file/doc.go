// Package file stores OAuth2 tokens as one file per user.
//
// NewTokenStore writes plain JSON (<user>.json). NewEncryptedTokenStore
// seals the same JSON with XChaCha20-Poly1305 under a key derived from a
// password with PBKDF2-SHA256 (<user>.enc). Writes go through renameio so
// a crash never leaves a truncated token file behind.
package file
