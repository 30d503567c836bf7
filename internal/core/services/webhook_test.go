package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gspace/internal/core/domain"
)

func sign(token string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(token))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestWebhookHandler(token string) *WebhookHandler {
	h := NewWebhookHandler(token)
	h.now = func() time.Time { return testNow }
	return h
}

func TestWebhookHandler_Verify(t *testing.T) {
	body := []byte(`{"event_type":"drive.file.created"}`)

	tests := []struct {
		name      string
		token     string
		signature string
		algorithm string
		want      bool
	}{
		{"no token accepts anything", "", "garbage", "sha256", true},
		{"valid signature", "secret", sign("secret", body), "sha256", true},
		{"algorithm is case insensitive", "secret", sign("secret", body), "SHA256", true},
		{"wrong key", "secret", sign("other", body), "sha256", false},
		{"unsupported algorithm", "secret", sign("secret", body), "md5", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestWebhookHandler(tt.token)
			assert.Equal(t, tt.want, h.Verify(body, tt.signature, tt.algorithm))
		})
	}
}

func TestWebhookHandler_Parse(t *testing.T) {
	h := newTestWebhookHandler("")

	event, err := h.Parse([]byte(`{
		"event_type": "calendar.event.created",
		"resource_id": "evt-1",
		"resource_uri": "https://www.googleapis.com/calendar/v3/calendars/primary/events",
		"timestamp": "2026-02-01T10:00:00Z",
		"payload": {"summary": "Standup"},
		"user_id": "alice@example.com",
		"domain": "example.com"
	}`))

	require.NoError(t, err)
	assert.Equal(t, domain.EventCalendarEventCreated, event.Type)
	assert.Equal(t, "evt-1", event.ResourceID)
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), event.Timestamp)
	assert.Equal(t, "Standup", event.Payload["summary"])
	assert.Equal(t, "alice@example.com", event.UserID)
	assert.Equal(t, "example.com", event.Domain)
}

func TestWebhookHandler_Parse_Lenient(t *testing.T) {
	h := newTestWebhookHandler("")

	event, err := h.Parse([]byte(`{"event_type": "chat.message.sent", "timestamp": "yesterday"}`))

	require.NoError(t, err)
	assert.Empty(t, event.Type)
	assert.Equal(t, testNow, event.Timestamp)
	assert.NotNil(t, event.Payload)
}

func TestWebhookHandler_Parse_InvalidJSON(t *testing.T) {
	_, err := newTestWebhookHandler("").Parse([]byte(`{not json`))
	assert.ErrorIs(t, err, errMalformedBody)
}

func TestWebhookHandler_Parse_Timestamps(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "2026-02-01T10:00:00Z", want: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)},
		{in: "2026-02-01T10:00:00.250+02:00", want: time.Date(2026, 2, 1, 8, 0, 0, 250_000_000, time.UTC)},
		{in: "2026-02-01T10:00:00", want: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)},
		{in: "2026-02-01T10:00:00.123456", want: time.Date(2026, 2, 1, 10, 0, 0, 123_456_000, time.UTC)},
		{in: "2026-02-01 10:00:00", want: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)},
		{in: "2026-02-01 10:00:00+00:00", want: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)},
		{in: "2026-02-01", want: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{in: "", want: testNow},
		{in: "02/01/2026", want: testNow},
	}
	h := newTestWebhookHandler("")
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			event, err := h.Parse([]byte(`{"event_type": "drive.file.created", "timestamp": "` + tt.in + `"}`))

			require.NoError(t, err)
			assert.True(t, tt.want.Equal(event.Timestamp), "got %s", event.Timestamp)
		})
	}
}

func TestWebhookHandler_Parse_RejectsNonObject(t *testing.T) {
	for _, body := range []string{`null`, `[]`, `"event"`, `42`} {
		t.Run(body, func(t *testing.T) {
			_, err := newTestWebhookHandler("").Parse([]byte(body))
			assert.ErrorIs(t, err, errMalformedBody)
		})
	}
}

func TestWebhookHandler_Handle_Routes(t *testing.T) {
	ctx := context.Background()
	h := newTestWebhookHandler("")

	var got []string
	h.Register(domain.EventDriveFileCreated, func(_ context.Context, e domain.WebhookEvent) error {
		got = append(got, "first:"+e.ResourceID)
		return nil
	})
	h.Register(domain.EventDriveFileCreated, func(_ context.Context, e domain.WebhookEvent) error {
		got = append(got, "second:"+e.ResourceID)
		return errors.New("ignored")
	})
	h.Register(domain.EventDriveFileCreated, func(_ context.Context, _ domain.WebhookEvent) error {
		panic("boom")
	})
	h.RegisterFallback(func(_ context.Context, e domain.WebhookEvent) error {
		got = append(got, "fallback:"+e.ResourceID)
		return nil
	})

	result := h.Handle(ctx, []byte(`{"event_type":"drive.file.created","resource_id":"f1"}`), http.Header{})
	assert.Equal(t, domain.WebhookResult{Status: http.StatusOK, Processed: true}, result)

	result = h.Handle(ctx, []byte(`{"event_type":"docs.document.updated","resource_id":"d1"}`), http.Header{})
	assert.True(t, result.Processed)

	assert.Equal(t, []string{"first:f1", "second:f1", "fallback:d1"}, got)
	assert.Equal(t, 3, h.HandlerCount(domain.EventDriveFileCreated))
}

func TestWebhookHandler_Handle_Signature(t *testing.T) {
	ctx := context.Background()
	body := []byte(`{"event_type":"gmail.message.added"}`)
	h := newTestWebhookHandler("secret")

	header := http.Header{}
	header.Set(HeaderSignature, "deadbeef")
	result := h.Handle(ctx, body, header)
	assert.Equal(t, http.StatusUnauthorized, result.Status)
	assert.Equal(t, "Invalid signature", result.Error)
	assert.False(t, result.Processed)

	header.Set(HeaderSignature, sign("secret", body))
	result = h.Handle(ctx, body, header)
	assert.Equal(t, http.StatusOK, result.Status)
}

func TestWebhookHandler_Handle_BadBody(t *testing.T) {
	for _, body := range []string{`nope`, `null`} {
		t.Run(body, func(t *testing.T) {
			result := newTestWebhookHandler("").Handle(context.Background(), []byte(body), http.Header{})
			assert.Equal(t, http.StatusBadRequest, result.Status)
			assert.Equal(t, "Failed to parse webhook", result.Error)
			assert.False(t, result.Processed)
		})
	}
}

func TestWebhookHandler_Handle_ChannelNotification(t *testing.T) {
	tests := []struct {
		name      string
		uri       string
		state     string
		wantType  domain.EventType
		processed bool
	}{
		{"sync is acknowledged", "https://www.googleapis.com/drive/v3/files", "sync", "", false},
		{"drive add", "https://www.googleapis.com/drive/v3/files/abc", "add", domain.EventDriveFileCreated, true},
		{"drive trash", "https://www.googleapis.com/drive/v3/files/abc", "trash", domain.EventDriveFileDeleted, true},
		{"drive update", "https://www.googleapis.com/drive/v3/files/abc", "update", domain.EventDriveFileUpdated, true},
		{"calendar exists", "https://www.googleapis.com/calendar/v3/calendars/primary/events", "exists", domain.EventCalendarEventUpdated, true},
		{"calendar not_exists", "https://www.googleapis.com/calendar/v3/calendars/primary/events", "not_exists", domain.EventCalendarEventDeleted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestWebhookHandler("")
			var received *domain.WebhookEvent
			h.RegisterFallback(func(_ context.Context, e domain.WebhookEvent) error {
				received = &e
				return nil
			})

			header := http.Header{}
			header.Set(HeaderChannelID, "chan-1")
			header.Set(HeaderResourceID, "res-1")
			header.Set(HeaderResourceURI, tt.uri)
			header.Set(HeaderResourceState, tt.state)

			result := h.Handle(context.Background(), nil, header)

			assert.Equal(t, http.StatusOK, result.Status)
			assert.Equal(t, tt.processed, result.Processed)
			if !tt.processed {
				assert.Nil(t, received)
				return
			}
			require.NotNil(t, received)
			assert.Equal(t, tt.wantType, received.Type)
			assert.Equal(t, "res-1", received.ResourceID)
			assert.Equal(t, "chan-1", received.Payload["channel_id"])
		})
	}
}

func TestWebhookHandler_Handle_ChannelTokenMismatch(t *testing.T) {
	h := newTestWebhookHandler("secret")
	header := http.Header{}
	header.Set(HeaderResourceState, "update")
	header.Set(HeaderChannelToken, "wrong")

	result := h.Handle(context.Background(), nil, header)
	assert.Equal(t, http.StatusUnauthorized, result.Status)
}

func TestWebhookHandler_Handle_PubSubPush(t *testing.T) {
	h := newTestWebhookHandler("")
	var received domain.WebhookEvent
	h.Register(domain.EventGmailMessageAdded, func(_ context.Context, e domain.WebhookEvent) error {
		received = e
		return nil
	})

	data := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"alice@example.com","historyId":98765}`))
	body := []byte(`{
		"message": {"data": "` + data + `", "messageId": "m-1", "publishTime": "2026-02-01T10:00:00Z"},
		"subscription": "projects/p/subscriptions/gmail"
	}`)

	result := h.Handle(context.Background(), body, http.Header{})

	require.True(t, result.Processed)
	assert.Equal(t, domain.EventGmailMessageAdded, received.Type)
	assert.Equal(t, "98765", received.ResourceID)
	assert.Equal(t, "alice@example.com", received.UserID)
	assert.Equal(t, "m-1", received.Payload["message_id"])
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), received.Timestamp)
}

func TestWebhookHandler_ClearHandlers(t *testing.T) {
	h := newTestWebhookHandler("")
	noop := func(context.Context, domain.WebhookEvent) error { return nil }
	h.Register(domain.EventDriveFileCreated, noop)
	h.Register(domain.EventDriveFileDeleted, noop)

	h.ClearHandlers(domain.EventDriveFileCreated)
	assert.Zero(t, h.HandlerCount(domain.EventDriveFileCreated))
	assert.Equal(t, 1, h.HandlerCount(domain.EventDriveFileDeleted))

	h.ClearAll()
	assert.Zero(t, h.HandlerCount(domain.EventDriveFileDeleted))
}

func TestSupportedEvents(t *testing.T) {
	events := SupportedEvents()
	assert.Len(t, events, 10)
	assert.Contains(t, events, "sheets.spreadsheet.updated")
}

func TestNewSubscriptionPayload(t *testing.T) {
	p := NewSubscriptionPayload("gmail-push", "https://example.com/webhook", nil)
	assert.Equal(t, "projects/_/topics/gmail-push", p.Topic)
	assert.Equal(t, "https://example.com/webhook", p.PushConfig.PushEndpoint)
	assert.NotNil(t, p.PushConfig.Attributes)
}
