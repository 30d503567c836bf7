package mcp

import (
	"context"
	"net/http"
	"testing"

	"google.golang.org/api/option"

	"github.com/custodia-labs/gspace/internal/client"
	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/workspace/workspacetest"
)

// stubAuth points every API client at a local server.
type stubAuth struct {
	opts []option.ClientOption
	info *domain.UserInfo
	err  error
}

func (s *stubAuth) ClientOptions() []option.ClientOption { return s.opts }
func (s *stubAuth) IsAuthenticated() bool                { return true }
func (s *stubAuth) UserInfo(context.Context) (*domain.UserInfo, error) {
	return s.info, s.err
}

// newTestServer builds a server whose Workspace client talks to mux.
func newTestServer(t *testing.T, mux *http.ServeMux, tokens *mockTokenService) (*Server, *stubAuth) {
	t.Helper()
	a := &stubAuth{
		opts: workspacetest.Server(t, mux),
		info: &domain.UserInfo{Email: "alice@example.com", Name: "Alice"},
	}
	ws := client.NewWithAuthenticator(a, client.Options{Retry: &domain.RetrySettings{}})
	t.Cleanup(func() { _ = ws.Close() })

	ports := &Ports{Workspace: ws}
	if tokens != nil {
		ports.Tokens = tokens
	}
	server, err := NewServer(ports)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server, a
}

// mockTokenService is a mock implementation of driving.TokenService.
type mockTokenService struct {
	users []string
	valid map[string]bool
	info  map[string]*domain.TokenInfo
	err   error
}

func (m *mockTokenService) SaveTokens(context.Context, string, domain.TokenRecord) error {
	return m.err
}

func (m *mockTokenService) LoadTokens(context.Context, string) (*domain.TokenRecord, error) {
	return nil, m.err
}

func (m *mockTokenService) GetValidAccessToken(context.Context, string) (string, error) {
	return "", m.err
}

func (m *mockTokenService) RevokeTokens(context.Context, string) error {
	return m.err
}

func (m *mockTokenService) ListUsers(context.Context) ([]string, error) {
	return m.users, m.err
}

func (m *mockTokenService) IsTokenValid(_ context.Context, userID string) bool {
	return m.valid[userID]
}

func (m *mockTokenService) GetTokenInfo(_ context.Context, userID string) (*domain.TokenInfo, error) {
	info, ok := m.info[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return info, nil
}

func (m *mockTokenService) CleanupExpiredTokens(context.Context) (int, error) {
	return 0, m.err
}
