package driving

import (
	"context"
	"net/http"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

// EventHandler reacts to one webhook event.
type EventHandler func(ctx context.Context, event domain.WebhookEvent) error

// WebhookService verifies, parses, and routes Workspace notifications.
type WebhookService interface {
	// Register adds a handler for an event type. Several handlers may share a type.
	Register(eventType domain.EventType, handler EventHandler)

	// RegisterFallback sets the handler for events with no registered handler.
	RegisterFallback(handler EventHandler)

	// Handle processes one delivery and reports the HTTP outcome.
	Handle(ctx context.Context, body []byte, header http.Header) domain.WebhookResult

	// SetVerificationToken replaces the HMAC key. Empty disables verification.
	SetVerificationToken(token string)
}
