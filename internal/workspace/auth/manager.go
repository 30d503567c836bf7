// Package auth authenticates gspace against Google with either an OAuth2
// desktop client (installed-app flow) or a service account key.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	oauthclient "github.com/custodia-labs/gspace/internal/adapters/driven/oauth"
	oauthflow "github.com/custodia-labs/gspace/internal/adapters/driving/oauth"
	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/ports/driven"
	"github.com/custodia-labs/gspace/internal/logger"
	"github.com/custodia-labs/gspace/internal/workspace"
)

// Status strings reported by Manager.Status.
const (
	StatusAuthenticated      = "authenticated"
	StatusInvalidCredentials = "invalid credentials"
)

// ErrNoTokenManager is returned for OAuth2 when Options.Tokens is nil.
var ErrNoTokenManager = errors.New("oauth2 authentication requires a token manager")

// DefaultLoginTimeout bounds how long the browser flow waits for consent.
const DefaultLoginTimeout = 5 * time.Minute

// TokenManager is the part of the token manager authentication needs.
type TokenManager interface {
	workspace.TokenProvider
	SaveTokens(ctx context.Context, userID string, record domain.TokenRecord) error
	RevokeTokens(ctx context.Context, userID string) error
	SetRefresher(r driven.TokenRefresher)
	SetRevoker(r driven.TokenRevoker)
}

// Options configures a Manager.
type Options struct {
	// CredentialsPath is the client secret or service account JSON file.
	CredentialsPath string

	// Type selects the authentication mode. Empty means OAuth2.
	Type domain.AuthType

	// Scopes are scope URLs or service names, see domain.MapScopes.
	Scopes []string

	// Tokens persists OAuth2 tokens. Required for OAuth2.
	Tokens TokenManager

	// UserID is the key tokens are stored under. Empty means "default".
	UserID string

	// CallbackPort is the loopback port of the redirect listener.
	// Zero means domain.DefaultCallbackPort, a negative value picks any
	// free port.
	CallbackPort int

	// Subject is impersonated by a service account with domain-wide delegation.
	Subject string

	// Interactive allows the browser flow when no usable token is stored.
	Interactive bool

	// OpenBrowser opens the consent URL. Defaults to the system browser.
	OpenBrowser func(url string) error

	// Prompt receives the consent URL for manual copy. May be nil.
	Prompt io.Writer

	// LoginTimeout bounds the browser flow. Defaults to DefaultLoginTimeout.
	LoginTimeout time.Duration

	// RevokeURL overrides the token revocation endpoint.
	RevokeURL string

	// ClientOptions are appended to every Google API client.
	ClientOptions []option.ClientOption
}

// Manager holds loaded credentials and hands out authenticated clients.
type Manager struct {
	opts     Options
	authType domain.AuthType
	scopes   []string
	oauthCfg *oauth2.Config
	ts       oauth2.TokenSource
	storeTS  *workspace.StoreTokenSource
	log      zerolog.Logger
}

// NewManager loads credentials and establishes a token source. For OAuth2
// a stored token is reused when it is valid or refreshable; otherwise the
// browser flow runs when Interactive is set, else domain.ErrAuthRequired.
func NewManager(ctx context.Context, opts Options) (*Manager, error) {
	authType, err := domain.ParseAuthType(string(opts.Type))
	if err != nil {
		return nil, err
	}
	if opts.UserID == "" {
		opts.UserID = domain.DefaultUserID
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = oauthflow.OpenBrowser
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = DefaultLoginTimeout
	}
	if opts.CallbackPort == 0 {
		opts.CallbackPort = domain.DefaultCallbackPort
	}

	m := &Manager{
		opts:     opts,
		authType: authType,
		log:      logger.WithComponent("gspace.auth"),
	}
	m.log.Debug().Str("credentials", opts.CredentialsPath).Msg("Initializing AuthManager")

	data, err := readCredentials(opts.CredentialsPath)
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to load credentials")
		return nil, err
	}

	scopes, skipped := domain.MapScopes(opts.Scopes)
	for _, s := range skipped {
		m.log.Warn().Str("scope", s).Msg("Unknown scope, skipping")
	}
	m.scopes = scopes
	m.log.Debug().Strs("scopes", scopes).Msg("Using scopes")

	switch authType {
	case domain.AuthTypeServiceAccount:
		err = m.loadServiceAccount(ctx, data)
	default:
		err = m.loadOAuth2(ctx, data)
	}
	if err != nil {
		m.log.Error().Err(err).Msg("Authentication failed")
		return nil, err
	}
	m.log.Debug().Msg("Credentials loaded successfully")
	return m, nil
}

func readCredentials(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no credentials path given", domain.ErrCredentialsNotFound)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", domain.ErrCredentialsNotFound, path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return nil, fmt.Errorf("%w: credentials file must be JSON: %s", domain.ErrInvalidCredentials, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", domain.ErrInvalidCredentials, path)
	}
	return data, nil
}

func (m *Manager) loadServiceAccount(ctx context.Context, data []byte) error {
	m.log.Debug().Msg("Loading service account credentials")
	cfg, err := google.JWTConfigFromJSON(data, m.scopes...)
	if err != nil {
		return fmt.Errorf("%w: service account: %w", domain.ErrInvalidCredentials, err)
	}
	cfg.Subject = m.opts.Subject
	m.ts = cfg.TokenSource(ctx)
	return nil
}

func (m *Manager) loadOAuth2(ctx context.Context, data []byte) error {
	m.log.Debug().Msg("Loading OAuth2 client credentials")
	if m.opts.Tokens == nil {
		return ErrNoTokenManager
	}
	cfg, err := google.ConfigFromJSON(data, m.scopes...)
	if err != nil {
		return fmt.Errorf("%w: oauth2 client: %w", domain.ErrInvalidCredentials, err)
	}
	m.oauthCfg = cfg
	m.opts.Tokens.SetRefresher(oauthclient.NewRefresher(cfg))
	m.opts.Tokens.SetRevoker(oauthclient.NewRevoker(m.opts.RevokeURL, nil))

	_, err = m.opts.Tokens.ValidToken(ctx, m.opts.UserID)
	switch {
	case err == nil:
		m.log.Debug().Str("user", m.opts.UserID).Msg("Using stored tokens")
	case !m.opts.Interactive:
		return fmt.Errorf("%w: run 'gspace auth login' (%w)", domain.ErrAuthRequired, err)
	default:
		m.log.Debug().Err(err).Msg("No usable stored tokens, starting browser flow")
		if err := m.Login(ctx); err != nil {
			return err
		}
	}

	m.storeTS = workspace.NewStoreTokenSource(ctx, m.opts.Tokens, m.opts.UserID)
	m.ts = m.storeTS
	return nil
}

// Login runs the installed-app flow: a loopback listener receives the
// authorization code, which is exchanged with PKCE and stored for the user.
func (m *Manager) Login(ctx context.Context) error {
	if m.oauthCfg == nil {
		return fmt.Errorf("%w: login requires OAuth2 credentials", domain.ErrUnsupportedAuthType)
	}

	state, err := oauthflow.GenerateState()
	if err != nil {
		return err
	}
	verifier, err := oauthflow.GenerateCodeVerifier()
	if err != nil {
		return err
	}

	server := oauthflow.NewCallbackServer(max(m.opts.CallbackPort, 0), state)
	if err := server.Start(); err != nil {
		return fmt.Errorf("start callback server: %w", err)
	}
	defer func() { _ = server.Stop() }()

	cfg := *m.oauthCfg
	cfg.RedirectURL = server.RedirectURI()

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("code_challenge", oauthflow.GenerateCodeChallenge(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	m.log.Info().Int("port", server.Port()).Msg("Starting OAuth2 flow, check your browser for authorization")
	if m.opts.Prompt != nil {
		fmt.Fprintf(m.opts.Prompt, "Open this URL to authorize gspace:\n\n  %s\n\n", authURL)
	}
	if err := m.opts.OpenBrowser(authURL); err != nil {
		m.log.Warn().Err(err).Msg("Could not open browser")
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.opts.LoginTimeout)
	defer cancel()
	code, err := server.WaitForCode(waitCtx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAuthRequired, err)
	}

	record, err := oauthclient.ExchangeCodeForTokens(ctx, &cfg, code, verifier)
	if err != nil {
		return err
	}
	if err := m.opts.Tokens.SaveTokens(ctx, m.opts.UserID, record); err != nil {
		return err
	}
	if m.storeTS != nil {
		m.storeTS.Invalidate()
	}
	m.log.Info().Str("user", m.opts.UserID).Msg("OAuth2 authentication completed successfully")
	return nil
}

// Logout revokes and deletes the stored tokens of the user.
func (m *Manager) Logout(ctx context.Context) error {
	if m.opts.Tokens == nil {
		return nil
	}
	if m.storeTS != nil {
		m.storeTS.Invalidate()
	}
	return m.opts.Tokens.RevokeTokens(ctx, m.opts.UserID)
}

// TokenSource returns the source of access tokens.
func (m *Manager) TokenSource() oauth2.TokenSource {
	return m.ts
}

// HTTPClient returns an HTTP client that authorises every request.
func (m *Manager) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, m.ts)
}

// ClientOptions returns the options for building Google API clients.
func (m *Manager) ClientOptions() []option.ClientOption {
	opts := []option.ClientOption{option.WithTokenSource(m.ts)}
	return append(opts, m.opts.ClientOptions...)
}

// IsAuthenticated reports whether a valid access token can be obtained.
func (m *Manager) IsAuthenticated() bool {
	if m.ts == nil {
		return false
	}
	tok, err := m.ts.Token()
	return err == nil && tok.Valid()
}

// Status returns "authenticated" or "invalid credentials".
func (m *Manager) Status() string {
	if m.IsAuthenticated() {
		return StatusAuthenticated
	}
	return StatusInvalidCredentials
}

// UserInfo returns the profile of the authenticated user.
func (m *Manager) UserInfo(ctx context.Context) (*domain.UserInfo, error) {
	return workspace.GetUserInfo(ctx, m.ClientOptions()...)
}

// Scopes returns the mapped scopes in use.
func (m *Manager) Scopes() []string {
	return append([]string(nil), m.scopes...)
}

// AuthType returns the authentication mode.
func (m *Manager) AuthType() domain.AuthType {
	return m.authType
}

// UserID returns the key tokens are stored under.
func (m *Manager) UserID() string {
	return m.opts.UserID
}

// CallbackPort returns the configured redirect port. Zero means any free
// port.
func (m *Manager) CallbackPort() int {
	return max(m.opts.CallbackPort, 0)
}
