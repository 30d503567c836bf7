// Package oauth provides the local OAuth2 redirect listener, PKCE helpers
// and a browser opener for the installed-app flow.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"sync"
	"time"
)

// ErrStateMismatch indicates the callback carried an unexpected state value.
var ErrStateMismatch = errors.New("oauth state mismatch")

// CallbackServer receives the authorization redirect on a loopback address.
// Google desktop clients accept any path on http://localhost:<port>, so the
// server answers on every path.
type CallbackServer struct {
	mu            sync.Mutex
	port          int
	expectedState string
	codeChan      chan string
	errChan       chan error
	server        *http.Server
	listener      net.Listener
}

// NewCallbackServer creates a callback server for the given port.
// The expectedState is compared with the state query parameter.
func NewCallbackServer(port int, expectedState string) *CallbackServer {
	return &CallbackServer{
		port:          port,
		expectedState: expectedState,
		codeChan:      make(chan string, 1),
		errChan:       make(chan error, 1),
	}
}

// Start listens on 127.0.0.1 at the configured port.
// If port is 0, a random available port is chosen.
func (s *CallbackServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	}

	s.server = &http.Server{
		Handler:           http.HandlerFunc(s.handleCallback),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.sendErr(err)
		}
	}()

	return nil
}

func (s *CallbackServer) sendErr(err error) {
	select {
	case s.errChan <- err:
	default:
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	// Browsers probe /favicon.ico; only requests carrying OAuth params count.
	if !q.Has("code") && !q.Has("error") && !q.Has("state") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if errParam := q.Get("error"); errParam != "" {
		desc := q.Get("error_description")
		s.sendErr(fmt.Errorf("oauth error: %s %s", errParam, desc))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, resultPage("Authorization failed", html.EscapeString(errParam+" "+desc)))
		return
	}

	if q.Get("state") != s.expectedState {
		s.sendErr(ErrStateMismatch)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, resultPage("Authorization failed", "Invalid state parameter."))
		return
	}

	code := q.Get("code")
	if code == "" {
		s.sendErr(errors.New("no authorization code received"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, resultPage("Authorization failed", "No authorization code received."))
		return
	}

	select {
	case s.codeChan <- code:
	default:
	}
	_, _ = fmt.Fprint(w, resultPage("Authorization successful", "You can close this window and return to gspace."))
}

// WaitForCode blocks until an authorization code or error arrives,
// or ctx is done.
func (s *CallbackServer) WaitForCode(ctx context.Context) (string, error) {
	select {
	case code := <-s.codeChan:
		return code, nil
	case err := <-s.errChan:
		return "", err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for authorization callback: %w", ctx.Err())
	}
}

// Stop shuts down the server. It is safe to call more than once.
func (s *CallbackServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.server = nil
	return err
}

// Port returns the port the server is listening on.
func (s *CallbackServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// RedirectURI returns the redirect URI registered with the authorization request.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://localhost:%d/", s.Port())
}

func resultPage(title, message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <title>gspace - %[1]s</title>
    <style>
        body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; background: #F8F9FA;
               display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; }
        .card { background: white; padding: 40px 56px; border-radius: 12px; border: 1px solid #DADCE0; text-align: center; }
        h1 { color: #202124; font-size: 22px; margin: 0 0 8px 0; }
        p { color: #5F6368; margin: 0; }
    </style>
</head>
<body>
    <div class="card">
        <h1>%[1]s</h1>
        <p>%[2]s</p>
    </div>
</body>
</html>`, title, message)
}

// FindAvailablePort finds an available loopback port in the given range.
func FindAvailablePort(startPort, endPort int) (int, error) {
	for port := startPort; port <= endPort; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			_ = listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port in range %d-%d", startPort, endPort)
}
