// Package client provides GSpace, a single entry point to the Google
// Workspace API wrappers. Services are built on first use and cached.
package client

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"

	configfile "github.com/custodia-labs/gspace/internal/adapters/driven/config/file"
	"github.com/custodia-labs/gspace/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/services"
	"github.com/custodia-labs/gspace/internal/logger"
	"github.com/custodia-labs/gspace/internal/workspace"
	"github.com/custodia-labs/gspace/internal/workspace/auth"
	"github.com/custodia-labs/gspace/internal/workspace/calendar"
	"github.com/custodia-labs/gspace/internal/workspace/docs"
	"github.com/custodia-labs/gspace/internal/workspace/drive"
	"github.com/custodia-labs/gspace/internal/workspace/gmail"
	"github.com/custodia-labs/gspace/internal/workspace/sheets"
)

// Authenticator supplies credentials for the API clients.
// *auth.Manager implements it.
type Authenticator interface {
	ClientOptions() []option.ClientOption
	IsAuthenticated() bool
	UserInfo(ctx context.Context) (*domain.UserInfo, error)
}

var _ Authenticator = (*auth.Manager)(nil)

// Options configures a GSpace client.
type Options struct {
	// CredentialsPath is the OAuth client or service account JSON file.
	CredentialsPath string

	// AuthType is OAuth2 (default) or service_account.
	AuthType domain.AuthType

	// Scopes are scope URLs or service names. Empty means the read-only
	// default set.
	Scopes []string

	// Tokens persists OAuth2 tokens. Nil means an encrypted file store in
	// TokenDir.
	Tokens auth.TokenManager

	// TokenDir holds the default token store. Empty means ~/.gspace/tokens.
	TokenDir string

	// UserID is the key tokens are stored under.
	UserID string

	// Subject is impersonated by a service account.
	Subject string

	// NonInteractive disables the browser consent flow, so OAuth2 fails
	// with domain.ErrAuthRequired unless tokens are already stored.
	NonInteractive bool

	// CallbackPort is the loopback port of the OAuth2 redirect listener.
	// Zero means domain.DefaultCallbackPort, a negative value picks any
	// free port.
	CallbackPort int

	// OpenBrowser opens the consent URL. Nil uses the system browser.
	OpenBrowser func(url string) error

	// RateLimits overrides per-service budgets, keyed by service name.
	RateLimits map[string]domain.RateLimitSettings

	// Retry overrides the retry policy. Nil uses the default.
	Retry *domain.RetrySettings

	// ClientOptions are appended to every API client.
	ClientOptions []option.ClientOption
}

// Option adjusts Options for the From* constructors.
type Option func(*Options)

// WithTokenManager sets where OAuth2 tokens are kept.
func WithTokenManager(tm auth.TokenManager) Option {
	return func(o *Options) { o.Tokens = tm }
}

// WithUserID sets the token key.
func WithUserID(id string) Option {
	return func(o *Options) { o.UserID = id }
}

// WithSubject sets the user a service account impersonates.
func WithSubject(subject string) Option {
	return func(o *Options) { o.Subject = subject }
}

// WithTokenDir sets the directory of the default token store.
func WithTokenDir(dir string) Option {
	return func(o *Options) { o.TokenDir = dir }
}

// WithInteractive allows or forbids the browser consent flow. It is
// allowed by default.
func WithInteractive(enabled bool) Option {
	return func(o *Options) { o.NonInteractive = !enabled }
}

// WithBrowser sets how the consent URL is opened.
func WithBrowser(open func(url string) error) Option {
	return func(o *Options) { o.OpenBrowser = open }
}

// WithCallbackPort sets the loopback port of the OAuth2 redirect listener.
func WithCallbackPort(port int) Option {
	return func(o *Options) { o.CallbackPort = port }
}

// WithRateLimits overrides per-service budgets.
func WithRateLimits(limits map[string]domain.RateLimitSettings) Option {
	return func(o *Options) { o.RateLimits = limits }
}

// WithRetry overrides the retry policy.
func WithRetry(r domain.RetrySettings) Option {
	return func(o *Options) { o.Retry = &r }
}

// WithClientOptions appends options to every API client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *Options) { o.ClientOptions = append(o.ClientOptions, opts...) }
}

// GSpace is the unified Google Workspace client. It is safe for concurrent
// use.
type GSpace struct {
	auth   Authenticator
	limits map[string]domain.RateLimitSettings
	retry  workspace.RetryConfig
	extra  []option.ClientOption
	log    zerolog.Logger

	mu       sync.Mutex
	closed   bool
	services map[workspace.ServiceType]any
	limiters map[workspace.ServiceType]*workspace.APILimiter
}

// New authenticates with opts and returns a client. For OAuth2 a stored
// token is used when present, otherwise the browser consent flow runs.
func New(ctx context.Context, opts Options) (*GSpace, error) {
	authType, err := domain.ParseAuthType(string(opts.AuthType))
	if err != nil {
		return nil, err
	}
	if authType == domain.AuthTypeOAuth2 && opts.Tokens == nil {
		tm, err := defaultTokenManager(opts.TokenDir)
		if err != nil {
			return nil, fmt.Errorf("open token store: %w", err)
		}
		opts.Tokens = tm
	}

	mgr, err := auth.NewManager(ctx, auth.Options{
		CredentialsPath: opts.CredentialsPath,
		Type:            authType,
		Scopes:          opts.Scopes,
		Tokens:          opts.Tokens,
		UserID:          opts.UserID,
		Subject:         opts.Subject,
		Interactive:     !opts.NonInteractive,
		CallbackPort:    opts.CallbackPort,
		OpenBrowser:     opts.OpenBrowser,
	})
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return NewWithAuthenticator(mgr, opts), nil
}

// defaultTokenManager keeps tokens encrypted under dir, keyed by
// GSPACES_TOKEN_PASSWORD or the machine ID.
func defaultTokenManager(dir string) (*services.TokenManager, error) {
	if dir == "" {
		base, err := configfile.DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "tokens")
	}
	store, err := file.NewEncryptedTokenStore(dir, "")
	if err != nil {
		return nil, err
	}
	return services.NewTokenManager(store), nil
}

// FromOAuth creates a client from an OAuth2 client secret file.
func FromOAuth(ctx context.Context, credentialsPath string, scopes []string, opts ...Option) (*GSpace, error) {
	o := Options{CredentialsPath: credentialsPath, AuthType: domain.AuthTypeOAuth2, Scopes: scopes}
	for _, opt := range opts {
		opt(&o)
	}
	return New(ctx, o)
}

// FromServiceAccount creates a client from a service account key file.
func FromServiceAccount(ctx context.Context, credentialsPath string, scopes []string, opts ...Option) (*GSpace, error) {
	o := Options{CredentialsPath: credentialsPath, AuthType: domain.AuthTypeServiceAccount, Scopes: scopes}
	for _, opt := range opts {
		opt(&o)
	}
	return New(ctx, o)
}

// NewWithAuthenticator creates a client around an existing authenticator.
// Only the rate limit, retry and client options of opts are used.
func NewWithAuthenticator(a Authenticator, opts Options) *GSpace {
	retry := workspace.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = workspace.RetryConfigFromSettings(*opts.Retry)
	}
	g := &GSpace{
		auth:     a,
		limits:   opts.RateLimits,
		retry:    retry,
		extra:    opts.ClientOptions,
		log:      logger.WithComponent("gspace.client"),
		services: make(map[workspace.ServiceType]any),
		limiters: make(map[workspace.ServiceType]*workspace.APILimiter),
	}
	g.log.Debug().Msg("GSpace client initialised")
	return g
}

// Auth returns the authenticator.
func (g *GSpace) Auth() Authenticator {
	return g.auth
}

// Calendar returns the Calendar service.
func (g *GSpace) Calendar(ctx context.Context) (*calendar.Service, error) {
	return cached(ctx, g, workspace.ServiceCalendar, calendar.New)
}

// Gmail returns the Gmail service.
func (g *GSpace) Gmail(ctx context.Context) (*gmail.Service, error) {
	return cached(ctx, g, workspace.ServiceGmail, gmail.New)
}

// Drive returns the Drive service.
func (g *GSpace) Drive(ctx context.Context) (*drive.Service, error) {
	return cached(ctx, g, workspace.ServiceDrive, drive.New)
}

// Sheets returns the Sheets service.
func (g *GSpace) Sheets(ctx context.Context) (*sheets.Service, error) {
	return cached(ctx, g, workspace.ServiceSheets, sheets.New)
}

// Docs returns the Docs service. It shares the Drive service for comments
// and revisions.
func (g *GSpace) Docs(ctx context.Context) (*docs.Service, error) {
	files, err := g.Drive(ctx)
	if err != nil {
		return nil, err
	}
	return cached(ctx, g, workspace.ServiceDocs,
		func(ctx context.Context, l *workspace.APILimiter, opts ...option.ClientOption) (*docs.Service, error) {
			return docs.New(ctx, l, files, opts...)
		})
}

// constructor matches the wrappers' New functions.
type constructor[T any] func(ctx context.Context, limiter *workspace.APILimiter, opts ...option.ClientOption) (T, error)

// cached builds a service at most once. The lock is held while building so
// concurrent callers wait for the first build.
func cached[T any](ctx context.Context, g *GSpace, name workspace.ServiceType, build constructor[T]) (T, error) {
	var zero T
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return zero, domain.ErrClientClosed
	}
	if svc, ok := g.services[name]; ok {
		return svc.(T), nil
	}

	limiter := g.limiterLocked(name)
	opts := slices.Concat(g.auth.ClientOptions(), g.extra)
	svc, err := build(ctx, limiter, opts...)
	if err != nil {
		g.log.Error().Err(err).Str("service", string(name)).Msg("Failed to initialise service")
		return zero, fmt.Errorf("initialise %s: %w", name, err)
	}
	g.services[name] = svc
	g.log.Info().Str("service", string(name)).Msg("Service initialised")
	return svc, nil
}

// limiterLocked returns the shared limiter of a service, creating it on
// first use. g.mu must be held.
func (g *GSpace) limiterLocked(name workspace.ServiceType) *workspace.APILimiter {
	if l, ok := g.limiters[name]; ok {
		return l
	}
	l := workspace.NewAPILimiter(name, workspace.RateLimitFor(name, g.limits), g.retry)
	g.limiters[name] = l
	return l
}

// Batch returns an empty batch for service, sent to its batch endpoint
// with the client's credentials and the service's rate limit. A
// configured endpoint override moves the batch endpoint with it.
func (g *GSpace) Batch(ctx context.Context, service string) (*workspace.Batch, error) {
	name := workspace.ServiceType(service)
	if _, err := workspace.BatchEndpoint(name); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, domain.ErrClientClosed
	}

	opts := slices.Concat(g.auth.ClientOptions(), g.extra)
	hc, base, err := htransport.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create batch client: %w", err)
	}
	endpoint, err := workspace.BatchEndpointAt(name, base)
	if err != nil {
		return nil, err
	}
	return workspace.NewBatch(hc, endpoint, g.limiterLocked(name), domain.MaxBatchSize), nil
}

// IsAuthenticated reports whether usable credentials are present.
func (g *GSpace) IsAuthenticated() bool {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	return !closed && g.auth.IsAuthenticated()
}

// UserInfo returns the authenticated user's profile.
func (g *GSpace) UserInfo(ctx context.Context) (*domain.UserInfo, error) {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return nil, domain.ErrClientClosed
	}
	info, err := g.auth.UserInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get user info: %w", err)
	}
	return info, nil
}

// AvailableServices returns the sorted names of the services built so far.
func (g *GSpace) AvailableServices() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.services))
	for name := range g.services {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

// RateLimitStats returns limiter snapshots of the services built so far.
func (g *GSpace) RateLimitStats() map[string]workspace.APILimiterStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	stats := make(map[string]workspace.APILimiterStats, len(g.limiters))
	for name, l := range g.limiters {
		stats[string(name)] = l.Stats()
	}
	return stats
}

// Close drops the cached services. Accessors fail with
// domain.ErrClientClosed afterwards. Close is idempotent.
func (g *GSpace) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	clear(g.services)
	clear(g.limiters)
	g.log.Debug().Msg("GSpace client closed")
	return nil
}
