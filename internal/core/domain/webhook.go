package domain

import "time"

// EventType identifies the kind of Workspace change a webhook reports.
type EventType string

// Supported webhook event types.
const (
	EventCalendarEventCreated     EventType = "calendar.event.created"
	EventCalendarEventUpdated     EventType = "calendar.event.updated"
	EventCalendarEventDeleted     EventType = "calendar.event.deleted"
	EventGmailMessageAdded        EventType = "gmail.message.added"
	EventGmailMessageDeleted      EventType = "gmail.message.deleted"
	EventDriveFileCreated         EventType = "drive.file.created"
	EventDriveFileUpdated         EventType = "drive.file.updated"
	EventDriveFileDeleted         EventType = "drive.file.deleted"
	EventSheetsSpreadsheetUpdated EventType = "sheets.spreadsheet.updated"
	EventDocsDocumentUpdated      EventType = "docs.document.updated"
)

// EventTypes returns every supported event type in declaration order.
func EventTypes() []EventType {
	return []EventType{
		EventCalendarEventCreated,
		EventCalendarEventUpdated,
		EventCalendarEventDeleted,
		EventGmailMessageAdded,
		EventGmailMessageDeleted,
		EventDriveFileCreated,
		EventDriveFileUpdated,
		EventDriveFileDeleted,
		EventSheetsSpreadsheetUpdated,
		EventDocsDocumentUpdated,
	}
}

// IsValid returns true if the event type is recognised.
func (e EventType) IsValid() bool {
	for _, known := range EventTypes() {
		if e == known {
			return true
		}
	}
	return false
}

// WebhookEvent is a parsed change notification.
// Type is empty when the sender used an unrecognised event type.
type WebhookEvent struct {
	Type        EventType      `json:"event_type"`
	ResourceID  string         `json:"resource_id"`
	ResourceURI string         `json:"resource_uri"`
	Timestamp   time.Time      `json:"timestamp"`
	Payload     map[string]any `json:"payload"`
	UserID      string         `json:"user_id,omitempty"`
	Domain      string         `json:"domain,omitempty"`
}

// WebhookResult is the outcome of handling one webhook delivery.
type WebhookResult struct {
	// Status is the HTTP status to answer with.
	Status int `json:"status"`
	// Processed is true when the event was parsed and routed.
	Processed bool `json:"event_processed"`
	// Error describes why the delivery was rejected.
	Error string `json:"error,omitempty"`
}

// SubscriptionPayload configures a Pub/Sub push subscription.
type SubscriptionPayload struct {
	Topic      string     `json:"topic"`
	PushConfig PushConfig `json:"pushConfig"`
}

// PushConfig is the push half of a subscription payload.
type PushConfig struct {
	PushEndpoint string            `json:"pushEndpoint"`
	Attributes   map[string]string `json:"attributes"`
}
