package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/gspace/internal/workspace/docs"
)

const (
	// uriScheme is the custom URI scheme for gspace resources.
	uriScheme = "gspace://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "user",
		Name:        "user",
		Description: "Profile of the authenticated Google account",
		MIMEType:    "application/json",
	}, s.handleUserResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "tokens",
		Name:        "tokens",
		Description: "Users with stored OAuth2 tokens",
		MIMEType:    "application/json",
	}, s.handleTokensResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}",
		Name:        "document-text",
		Description: "Plain text of a Google Doc",
		MIMEType:    "text/plain",
	}, s.handleDocumentResource)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleUserResource returns the authenticated user's profile.
func (s *Server) handleUserResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	info, err := s.ports.Workspace.UserInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting user info: %w", err)
	}
	return jsonResource(req.Params.URI, info)
}

// handleTokensResource lists token summaries for every stored user.
func (s *Server) handleTokensResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	type tokenInfo struct {
		UserID    string `json:"user_id"`
		Valid     bool   `json:"valid"`
		ExpiresAt string `json:"expires_at,omitempty"`
	}

	if s.ports.Tokens == nil {
		return jsonResource(req.Params.URI, []tokenInfo{})
	}

	users, err := s.ports.Tokens.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing token users: %w", err)
	}

	infos := make([]tokenInfo, 0, len(users))
	for _, user := range users {
		ti := tokenInfo{UserID: user, Valid: s.ports.Tokens.IsTokenValid(ctx, user)}
		if info, err := s.ports.Tokens.GetTokenInfo(ctx, user); err == nil && !info.ExpiresAt.IsZero() {
			ti.ExpiresAt = info.ExpiresAt.UTC().Format(time.RFC3339)
		}
		infos = append(infos, ti)
	}
	return jsonResource(req.Params.URI, infos)
}

// handleDocumentResource returns the plain text of a document.
func (s *Server) handleDocumentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docID := extractDocumentID(req.Params.URI)
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	svc, err := s.ports.Workspace.Docs(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := svc.GetDocument(ctx, docID, "")
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     docs.PlainText(doc),
		}},
	}, nil
}

// extractDocumentID extracts the document ID from a URI like gspace://documents/{documentId}.
func extractDocumentID(uri string) string {
	const prefix = uriScheme + "documents/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
