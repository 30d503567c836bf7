// Package domain defines the core entities for gspace.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - TokenRecord: Stored OAuth2 tokens for a user
//   - Scopes: Google Workspace OAuth2 scope table and mapping rules
//   - WebhookEvent: A normalised Workspace change notification
//   - BatchRequest / BatchResponse: Parts of a Google batch HTTP call
//   - Settings: Persisted configuration with defaults
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
