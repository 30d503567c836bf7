package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/ports/driving"
	"github.com/custodia-labs/gspace/internal/logger"
)

// Ensure WebhookHandler implements the interface.
var _ driving.WebhookService = (*WebhookHandler)(nil)

// Headers set by Google on webhook deliveries.
const (
	HeaderSignature     = "X-Goog-Signature"
	HeaderChannelID     = "X-Goog-Channel-ID"
	HeaderChannelToken  = "X-Goog-Channel-Token"
	HeaderResourceID    = "X-Goog-Resource-ID"
	HeaderResourceURI   = "X-Goog-Resource-URI"
	HeaderResourceState = "X-Goog-Resource-State"
	HeaderMessageNumber = "X-Goog-Message-Number"
)

// resourceStateSync is sent once when a watch channel is created.
const resourceStateSync = "sync"

var errMalformedBody = errors.New("malformed webhook body")

// WebhookHandler verifies, parses, and routes Workspace change notifications.
// Three delivery shapes are understood: gspace JSON events, native watch
// channel notifications (headers only), and Pub/Sub push envelopes from
// Gmail users.watch.
type WebhookHandler struct {
	mu       sync.RWMutex
	token    string
	handlers map[domain.EventType][]driving.EventHandler
	fallback driving.EventHandler

	now func() time.Time
	log zerolog.Logger
}

// NewWebhookHandler creates a handler. An empty token disables signature checks.
func NewWebhookHandler(verificationToken string) *WebhookHandler {
	h := &WebhookHandler{
		token:    verificationToken,
		handlers: make(map[domain.EventType][]driving.EventHandler),
		now:      time.Now,
		log:      logger.WithComponent("gspace.webhooks"),
	}
	h.log.Debug().Msg("WebhookHandler initialized")
	return h
}

// SetVerificationToken replaces the HMAC key.
func (h *WebhookHandler) SetVerificationToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

// Register adds a handler for eventType.
func (h *WebhookHandler) Register(eventType domain.EventType, handler driving.EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[eventType] = append(h.handlers[eventType], handler)
	h.log.Debug().Str("event_type", string(eventType)).Msg("Registered handler")
}

// RegisterFallback sets the handler for events nobody registered for.
func (h *WebhookHandler) RegisterFallback(handler driving.EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fallback = handler
	h.log.Debug().Msg("Registered fallback handler")
}

// HandlerCount returns the number of handlers for eventType.
func (h *WebhookHandler) HandlerCount(eventType domain.EventType) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[eventType])
}

// ClearHandlers removes the handlers of one event type.
func (h *WebhookHandler) ClearHandlers(eventType domain.EventType) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, eventType)
}

// ClearAll removes every typed handler. The fallback is kept.
func (h *WebhookHandler) ClearAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = make(map[domain.EventType][]driving.EventHandler)
}

// SupportedEvents returns the event type names.
func SupportedEvents() []string {
	types := domain.EventTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

// NewSubscriptionPayload builds a Pub/Sub push subscription for topic.
func NewSubscriptionPayload(topic, pushEndpoint string, attributes map[string]string) domain.SubscriptionPayload {
	if attributes == nil {
		attributes = map[string]string{}
	}
	return domain.SubscriptionPayload{
		Topic: "projects/_/topics/" + topic,
		PushConfig: domain.PushConfig{
			PushEndpoint: pushEndpoint,
			Attributes:   attributes,
		},
	}
}

// Verify checks an HMAC signature of body. Only sha256 is supported.
// Without a verification token every signature is accepted.
func (h *WebhookHandler) Verify(body []byte, signature, algorithm string) bool {
	h.mu.RLock()
	token := h.token
	h.mu.RUnlock()

	if token == "" {
		h.log.Warn().Msg("No verification token set, skipping verification")
		return true
	}
	if !strings.EqualFold(algorithm, "sha256") {
		h.log.Error().Str("algorithm", algorithm).Msg("Unsupported signature algorithm")
		return false
	}

	mac := hmac.New(sha256.New, []byte(token))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type rawEvent struct {
	EventType   string         `json:"event_type"`
	ResourceID  string         `json:"resource_id"`
	ResourceURI string         `json:"resource_uri"`
	Timestamp   string         `json:"timestamp"`
	Payload     map[string]any `json:"payload"`
	UserID      string         `json:"user_id"`
	Domain      string         `json:"domain"`
}

// Parse decodes a gspace JSON event. An unknown event type leaves Type empty
// and an unparseable timestamp is replaced by the current time.
func (h *WebhookHandler) Parse(body []byte) (*domain.WebhookEvent, error) {
	var raw *rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedBody, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty event", errMalformedBody)
	}

	event := &domain.WebhookEvent{
		Type:        domain.EventType(raw.EventType),
		ResourceID:  raw.ResourceID,
		ResourceURI: raw.ResourceURI,
		Timestamp:   h.parseTimestamp(raw.Timestamp),
		Payload:     raw.Payload,
		UserID:      raw.UserID,
		Domain:      raw.Domain,
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	if !event.Type.IsValid() {
		h.log.Warn().Str("event_type", raw.EventType).Msg("Unknown event type")
		event.Type = ""
	}

	h.log.Debug().
		Str("event_type", raw.EventType).
		Str("resource_id", raw.ResourceID).
		Msg("Parsed webhook event")
	return event, nil
}

// timestampLayouts are the ISO 8601 forms accepted in event timestamps.
// Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (h *WebhookHandler) parseTimestamp(s string) time.Time {
	if s != "" {
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts
			}
		}
	}
	return h.now().UTC()
}

// Handle verifies, parses, and routes one delivery. Handler errors are
// logged and do not change the result.
func (h *WebhookHandler) Handle(ctx context.Context, body []byte, header http.Header) domain.WebhookResult {
	if signature := header.Get(HeaderSignature); signature != "" && !h.Verify(body, signature, "sha256") {
		h.log.Warn().Msg("Webhook signature verification failed")
		return domain.WebhookResult{Status: http.StatusUnauthorized, Error: "Invalid signature"}
	}

	var (
		event *domain.WebhookEvent
		err   error
	)
	switch {
	case header.Get(HeaderResourceState) != "":
		if !h.channelTokenOK(header.Get(HeaderChannelToken)) {
			h.log.Warn().Str("channel_id", header.Get(HeaderChannelID)).Msg("Channel token mismatch")
			return domain.WebhookResult{Status: http.StatusUnauthorized, Error: "Invalid channel token"}
		}
		event = h.parseChannelNotification(header)
		if event == nil {
			return domain.WebhookResult{Status: http.StatusOK, Processed: false}
		}
	case isPubSubEnvelope(body):
		event, err = h.parsePubSub(body)
	default:
		event, err = h.Parse(body)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to parse webhook")
		return domain.WebhookResult{Status: http.StatusBadRequest, Error: "Failed to parse webhook"}
	}

	h.dispatch(ctx, *event)
	return domain.WebhookResult{Status: http.StatusOK, Processed: true}
}

func (h *WebhookHandler) channelTokenOK(got string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.token == "" || got == "" {
		return true
	}
	return hmac.Equal([]byte(got), []byte(h.token))
}

func (h *WebhookHandler) dispatch(ctx context.Context, event domain.WebhookEvent) {
	h.mu.RLock()
	var handlers []driving.EventHandler
	if event.Type != "" {
		handlers = append(handlers, h.handlers[event.Type]...)
	}
	fallback := h.fallback
	h.mu.RUnlock()

	if len(handlers) == 0 && fallback != nil {
		handlers = []driving.EventHandler{fallback}
	}
	if len(handlers) == 0 {
		h.log.Debug().Str("event_type", string(event.Type)).Msg("No handler registered for event type")
		return
	}

	for _, handler := range handlers {
		if err := h.run(ctx, handler, event); err != nil {
			h.log.Error().Err(err).Str("event_type", string(event.Type)).Msg("Error in event handler")
		}
	}
}

// run invokes one handler, turning a panic into an error so one broken
// handler cannot take down the receiver.
func (h *WebhookHandler) run(ctx context.Context, handler driving.EventHandler, event domain.WebhookEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

// parseChannelNotification translates a watch channel notification. The
// initial sync message yields nil.
func (h *WebhookHandler) parseChannelNotification(header http.Header) *domain.WebhookEvent {
	state := header.Get(HeaderResourceState)
	if state == resourceStateSync {
		h.log.Debug().Str("channel_id", header.Get(HeaderChannelID)).Msg("Channel sync received")
		return nil
	}

	uri := header.Get(HeaderResourceURI)
	event := &domain.WebhookEvent{
		Type:        channelEventType(uri, state),
		ResourceID:  header.Get(HeaderResourceID),
		ResourceURI: uri,
		Timestamp:   h.now().UTC(),
		Payload: map[string]any{
			"channel_id":     header.Get(HeaderChannelID),
			"resource_state": state,
			"message_number": header.Get(HeaderMessageNumber),
		},
	}
	if event.Type == "" {
		h.log.Warn().Str("resource_uri", uri).Str("state", state).Msg("Unknown channel notification")
	}
	return event
}

func channelEventType(uri, state string) domain.EventType {
	switch {
	case strings.Contains(uri, "/calendar/"):
		switch state {
		case "exists":
			return domain.EventCalendarEventUpdated
		case "not_exists":
			return domain.EventCalendarEventDeleted
		}
	case strings.Contains(uri, "/drive/"):
		switch state {
		case "add":
			return domain.EventDriveFileCreated
		case "remove", "trash":
			return domain.EventDriveFileDeleted
		case "update", "untrash", "change":
			return domain.EventDriveFileUpdated
		}
	}
	return ""
}

type pubSubEnvelope struct {
	Message struct {
		Data        string            `json:"data"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
		Attributes  map[string]string `json:"attributes"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type gmailNotification struct {
	EmailAddress string      `json:"emailAddress"`
	HistoryID    json.Number `json:"historyId"`
}

func isPubSubEnvelope(body []byte) bool {
	var envelope struct {
		Message      json.RawMessage `json:"message"`
		Subscription string          `json:"subscription"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return len(envelope.Message) > 0 && envelope.Subscription != ""
}

// parsePubSub translates a Gmail push notification into a message added event.
func (h *WebhookHandler) parsePubSub(body []byte) (*domain.WebhookEvent, error) {
	var env pubSubEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedBody, err)
	}
	data, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		data, err = base64.URLEncoding.DecodeString(env.Message.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: message data: %w", errMalformedBody, err)
		}
	}
	var note gmailNotification
	if err := json.Unmarshal(data, &note); err != nil {
		return nil, fmt.Errorf("%w: gmail notification: %w", errMalformedBody, err)
	}

	payload := map[string]any{
		"message_id":   env.Message.MessageID,
		"subscription": env.Subscription,
		"history_id":   note.HistoryID.String(),
	}
	for k, v := range env.Message.Attributes {
		payload[k] = v
	}

	return &domain.WebhookEvent{
		Type:        domain.EventGmailMessageAdded,
		ResourceID:  note.HistoryID.String(),
		ResourceURI: env.Subscription,
		Timestamp:   h.parseTimestamp(env.Message.PublishTime),
		Payload:     payload,
		UserID:      note.EmailAddress,
	}, nil
}
