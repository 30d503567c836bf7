package mcp

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/workspace/workspacetest"
)

func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestExtractDocumentID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{name: "valid document URI", uri: "gspace://documents/doc-456", expected: "doc-456"},
		{name: "invalid prefix", uri: "file://documents/doc-456", expected: ""},
		{name: "nested path", uri: "gspace://documents/doc-456/extra", expected: ""},
		{name: "empty URI", uri: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractDocumentID(tt.uri))
		})
	}
}

func TestServer_handleUserResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns profile json", func(t *testing.T) {
		server, _ := newTestServer(t, http.NewServeMux(), nil)

		result, err := server.handleUserResource(ctx, makeReadResourceRequest("gspace://user"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
		assert.Contains(t, result.Contents[0].Text, "alice@example.com")
	})

	t.Run("returns error when lookup fails", func(t *testing.T) {
		server, auth := newTestServer(t, http.NewServeMux(), nil)
		auth.err = errors.New("expired")

		_, err := server.handleUserResource(ctx, makeReadResourceRequest("gspace://user"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting user info")
	})
}

func TestServer_handleTokensResource(t *testing.T) {
	ctx := context.Background()

	t.Run("nil token service returns empty list", func(t *testing.T) {
		server, _ := newTestServer(t, http.NewServeMux(), nil)

		result, err := server.handleTokensResource(ctx, makeReadResourceRequest("gspace://tokens"))

		require.NoError(t, err)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("lists users with validity", func(t *testing.T) {
		expires := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
		tokens := &mockTokenService{
			users: []string{"alice", "bob"},
			valid: map[string]bool{"alice": true},
			info:  map[string]*domain.TokenInfo{"alice": {UserID: "alice", ExpiresAt: expires}},
		}
		server, _ := newTestServer(t, http.NewServeMux(), tokens)

		result, err := server.handleTokensResource(ctx, makeReadResourceRequest("gspace://tokens"))

		require.NoError(t, err)
		text := result.Contents[0].Text
		assert.Contains(t, text, `"user_id": "alice"`)
		assert.Contains(t, text, `"valid": true`)
		assert.Contains(t, text, "2026-10-16T12:00:00Z")
		assert.Contains(t, text, `"user_id": "bob"`)
	})

	t.Run("returns error on list failure", func(t *testing.T) {
		server, _ := newTestServer(t, http.NewServeMux(), &mockTokenService{err: errors.New("disk error")})

		_, err := server.handleTokensResource(ctx, makeReadResourceRequest("gspace://tokens"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing token users")
	})
}

func TestServer_handleDocumentResource(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid URI returns not found", func(t *testing.T) {
		server, _ := newTestServer(t, http.NewServeMux(), nil)

		_, err := server.handleDocumentResource(ctx, makeReadResourceRequest("gspace://invalid/uri"))

		require.Error(t, err)
	})

	t.Run("returns plain text", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
			workspacetest.JSON(w, map[string]any{
				"documentId": r.PathValue("id"),
				"body": map[string]any{"content": []map[string]any{{
					"paragraph": map[string]any{"elements": []map[string]any{
						{"textRun": map[string]string{"content": "Body text\n"}},
					}},
				}}},
			})
		})
		server, _ := newTestServer(t, mux, nil)

		result, err := server.handleDocumentResource(ctx, makeReadResourceRequest("gspace://documents/d1"))

		require.NoError(t, err)
		assert.Equal(t, "text/plain", result.Contents[0].MIMEType)
		assert.Equal(t, "Body text\n", result.Contents[0].Text)
	})

	t.Run("returns error when document is missing", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/documents/{id}", func(w http.ResponseWriter, _ *http.Request) {
			workspacetest.Error(w, http.StatusNotFound, "not found")
		})
		server, _ := newTestServer(t, mux, nil)

		_, err := server.handleDocumentResource(ctx, makeReadResourceRequest("gspace://documents/missing"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting document")
	})
}
