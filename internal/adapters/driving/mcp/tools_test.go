package mcp

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/workspace/workspacetest"
)

func TestServer_handleListEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("returns events", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "10", r.URL.Query().Get("maxResults"))
			workspacetest.JSON(w, map[string]any{"items": []map[string]any{{
				"id":        "e1",
				"summary":   "Standup",
				"start":     map[string]string{"dateTime": "2026-10-16T09:00:00Z"},
				"end":       map[string]string{"dateTime": "2026-10-16T09:15:00Z"},
				"attendees": []map[string]string{{"email": "bob@example.com"}},
				"htmlLink":  "https://calendar.google.com/e1",
			}}})
		})
		server, _ := newTestServer(t, mux, nil)

		_, output, err := server.handleListEvents(ctx, nil, ListEventsInput{Days: 1})

		require.NoError(t, err)
		require.Equal(t, 1, output.Count)
		assert.Equal(t, "Standup", output.Events[0].Summary)
		assert.Equal(t, "2026-10-16T09:00:00Z", output.Events[0].Start)
		assert.Equal(t, []string{"bob@example.com"}, output.Events[0].Attendees)
	})

	t.Run("returns error on api failure", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /calendars/primary/events", func(w http.ResponseWriter, _ *http.Request) {
			workspacetest.Error(w, http.StatusForbidden, "denied")
		})
		server, _ := newTestServer(t, mux, nil)

		_, _, err := server.handleListEvents(ctx, nil, ListEventsInput{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "list events")
	})
}

func TestServer_handleSearchEmails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "is:unread", r.URL.Query().Get("q"))
		workspacetest.JSON(w, map[string]any{"messages": []map[string]string{{"id": "m1"}}})
	})
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		workspacetest.JSON(w, map[string]any{
			"id":      r.PathValue("id"),
			"snippet": "hello",
			"payload": map[string]any{"headers": []map[string]string{
				{"name": "From", "value": "bob@example.com"},
				{"name": "Subject", "value": "Hi"},
			}},
		})
	})
	mux.Handle("POST /batch/gmail/v1", workspacetest.Batch(mux))
	server, _ := newTestServer(t, mux, nil)

	_, output, err := server.handleSearchEmails(context.Background(), nil, SearchEmailsInput{Query: "is:unread"})

	require.NoError(t, err)
	require.Equal(t, 1, output.Count)
	assert.Equal(t, "bob@example.com", output.Emails[0].From)
	assert.Equal(t, "Hi", output.Emails[0].Subject)
	assert.Equal(t, "hello", output.Emails[0].Snippet)
	assert.Contains(t, output.Emails[0].Link, "m1")
}

func TestServer_handleReadEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		workspacetest.JSON(w, map[string]any{
			"id": r.PathValue("id"),
			"payload": map[string]any{
				"mimeType": "text/plain",
				"body":     map[string]string{"data": "SGVsbG8gdGhlcmU"},
			},
		})
	})
	server, _ := newTestServer(t, mux, nil)

	_, output, err := server.handleReadEmail(context.Background(), nil, ReadEmailInput{MessageID: "m1"})

	require.NoError(t, err)
	assert.Equal(t, "Hello there", output.Body)
}

func TestServer_handleSendEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /gmail/v1/users/me/messages/send", func(w http.ResponseWriter, _ *http.Request) {
		workspacetest.JSON(w, map[string]string{"id": "sent-1", "threadId": "t1"})
	})
	server, _ := newTestServer(t, mux, nil)
	ctx := context.Background()

	_, output, err := server.handleSendEmail(ctx, nil, SendEmailInput{
		To:      []string{"bob@example.com"},
		Subject: "Hi",
		Body:    "Hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "sent-1", output.MessageID)
	assert.Equal(t, "t1", output.ThreadID)

	_, _, err = server.handleSendEmail(ctx, nil, SendEmailInput{Subject: "no one"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestServer_handleListFiles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /files", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "name contains 'plan'", r.URL.Query().Get("q"))
		workspacetest.JSON(w, map[string]any{"files": []map[string]any{{
			"id": "f1", "name": "plan.pdf", "mimeType": "application/pdf", "size": "2048",
		}}})
	})
	server, _ := newTestServer(t, mux, nil)

	_, output, err := server.handleListFiles(context.Background(), nil, ListFilesInput{Query: "name contains 'plan'"})

	require.NoError(t, err)
	require.Equal(t, 1, output.Count)
	assert.Equal(t, "plan.pdf", output.Files[0].Name)
	assert.Equal(t, int64(2048), output.Files[0].Size)
	assert.Contains(t, output.Files[0].Link, "f1")
}

func TestServer_handleGetDocumentText(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		workspacetest.JSON(w, map[string]any{
			"documentId": r.PathValue("id"),
			"title":      "Notes",
			"body": map[string]any{"content": []map[string]any{{
				"paragraph": map[string]any{"elements": []map[string]any{
					{"textRun": map[string]string{"content": "Hello\n"}},
				}},
			}}},
		})
	})
	server, _ := newTestServer(t, mux, nil)

	_, output, err := server.handleGetDocumentText(context.Background(), nil, DocumentInput{DocumentID: "d1"})

	require.NoError(t, err)
	assert.Equal(t, "Notes", output.Title)
	assert.Equal(t, "Hello\n", output.Text)
	assert.Equal(t, "https://docs.google.com/document/d/d1/edit", output.Link)
}

func TestServer_handleGetSheetValues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v4/spreadsheets/s1/values/{rng}", func(w http.ResponseWriter, _ *http.Request) {
		workspacetest.JSON(w, map[string]any{"range": "Sheet1!A1:B2", "values": [][]any{{"a", "b"}}})
	})
	server, _ := newTestServer(t, mux, nil)
	ctx := context.Background()

	_, output, err := server.handleGetSheetValues(ctx, nil, SheetValuesInput{SpreadsheetID: "s1", Range: "Sheet1!A1:B2"})
	require.NoError(t, err)
	assert.Equal(t, "Sheet1!A1:B2", output.Range)
	assert.Equal(t, [][]any{{"a", "b"}}, output.Values)
}

func TestServer_handleUserInfo(t *testing.T) {
	server, auth := newTestServer(t, http.NewServeMux(), nil)
	ctx := context.Background()

	_, info, err := server.handleUserInfo(ctx, nil, UserInfoInput{})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", info.Email)

	auth.err = errors.New("offline")
	_, _, err = server.handleUserInfo(ctx, nil, UserInfoInput{})
	assert.ErrorContains(t, err, "offline")
}

func TestLimitOr(t *testing.T) {
	assert.Equal(t, defaultLimit, limitOr(0))
	assert.Equal(t, defaultLimit, limitOr(-3))
	assert.Equal(t, 25, limitOr(25))
}
