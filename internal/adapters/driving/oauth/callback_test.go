package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func noKeepAliveClient() *http.Client {
	return &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
}

func startServer(t *testing.T, state string) *CallbackServer {
	t.Helper()
	server := NewCallbackServer(0, state)
	require.NoError(t, server.Start())
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func get(t *testing.T, rawURL string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	resp, err := noKeepAliveClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestNewCallbackServer(t *testing.T) {
	server := NewCallbackServer(8080, "state-123")

	require.NotNil(t, server)
	assert.Equal(t, 8080, server.Port())
	assert.Equal(t, "http://localhost:8080/", server.RedirectURI())
}

func TestCallbackServer_Start_RandomPort(t *testing.T) {
	server := startServer(t, "s")

	assert.NotZero(t, server.Port())
	assert.Equal(t, fmt.Sprintf("http://localhost:%d/", server.Port()), server.RedirectURI())
}

func TestCallbackServer_Start_PortInUse(t *testing.T) {
	first := startServer(t, "s1")

	second := NewCallbackServer(first.Port(), "s2")
	err := second.Start()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestCallbackServer_Stop_Idempotent(t *testing.T) {
	server := NewCallbackServer(0, "s")
	require.NoError(t, server.Stop())

	require.NoError(t, server.Start())
	require.NoError(t, server.Stop())
	require.NoError(t, server.Stop())
}

func TestCallbackServer_Success(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	server := NewCallbackServer(0, "good-state")
	require.NoError(t, server.Start())

	resp, body := get(t, fmt.Sprintf("http://127.0.0.1:%d/?code=abc&state=good-state", server.Port()))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Authorization successful")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	code, err := server.WaitForCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", code)

	require.NoError(t, server.Stop())
}

func TestCallbackServer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr string
	}{
		{"provider error", "?error=access_denied&error_description=denied", "access_denied"},
		{"state mismatch", "?code=abc&state=wrong", "state mismatch"},
		{"missing code", "?state=good", "no authorization code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, "good")

			resp, body := get(t, fmt.Sprintf("http://127.0.0.1:%d/callback%s", server.Port(), tt.query))
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, body, "Authorization failed")

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, err := server.WaitForCode(ctx)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCallbackServer_IgnoresUnrelatedPaths(t *testing.T) {
	server := startServer(t, "s")

	resp, _ := get(t, fmt.Sprintf("http://127.0.0.1:%d/favicon.ico", server.Port()))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := server.WaitForCode(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFindAvailablePort(t *testing.T) {
	port, err := FindAvailablePort(20000, 20100)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, port, 20000)
	assert.LessOrEqual(t, port, 20100)
}

func TestFindAvailablePort_EmptyRange(t *testing.T) {
	_, err := FindAvailablePort(10, 5)
	assert.Error(t, err)
}
