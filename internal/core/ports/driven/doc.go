// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
//   - TokenStore: Per-user OAuth2 token persistence (file, encrypted, sqlite, memory)
//   - ConfigStore: Application configuration (TOML)
//   - TokenRefresher: Exchanges a refresh token for a new access token
//   - TokenRevoker: Revokes a token at the authorization server
//
// TokenRefresher and TokenRevoker are optional. Without them expired
// tokens are reported as expired and revocation is local only.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
