// Package workspace provides shared infrastructure for the Google Workspace
// API wrappers.
//
// This package contains the pieces every wrapper (gmail, calendar, drive,
// sheets, docs) needs:
//   - StoreTokenSource to bridge the token manager to oauth2.TokenSource
//   - Service factories for creating Google API clients
//   - Error mapping for common Google API errors (401, 403, 404, 429)
//   - Per-service rate limiting and retry with backoff
//   - Multipart batch request building and parsing
//
// # Usage
//
// Each wrapper receives ClientOptions and an APILimiter:
//
//	svc, err := workspace.NewGmailService(ctx, opts...)
//	limiter := workspace.NewAPILimiter(workspace.ServiceGmail, rl, retry)
//	msgs, err := workspace.Call(ctx, limiter, "messages.list", func(ctx context.Context) (*gmail.ListMessagesResponse, error) {
//		return svc.Users.Messages.List("me").Context(ctx).Do()
//	})
package workspace
