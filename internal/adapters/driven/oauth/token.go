// Package oauth talks to the Google OAuth2 token endpoints: code exchange,
// refresh, and revocation.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/ports/driven"
)

// GoogleRevokeURL is Google's token revocation endpoint.
const GoogleRevokeURL = "https://oauth2.googleapis.com/revoke"

// Ensure adapters implement the driven ports.
var (
	_ driven.TokenRefresher = (*Refresher)(nil)
	_ driven.TokenRevoker   = (*Revoker)(nil)
)

// RecordFromToken converts an oauth2 token into a stored record.
func RecordFromToken(tok *oauth2.Token) domain.TokenRecord {
	record := domain.TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	}
	extra := map[string]any{}
	for _, key := range []string{"scope", "id_token"} {
		if v, ok := tok.Extra(key).(string); ok && v != "" {
			extra[key] = v
		}
	}
	if len(extra) > 0 {
		record.AdditionalData = extra
	}
	return record
}

// TokenFromRecord converts a stored record into an oauth2 token.
func TokenFromRecord(record *domain.TokenRecord) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		TokenType:    record.TokenType,
		Expiry:       record.ExpiresAt,
	}
}

// ExchangeCodeForTokens exchanges an authorization code for tokens,
// sending the PKCE verifier when one was used.
func ExchangeCodeForTokens(
	ctx context.Context,
	cfg *oauth2.Config,
	code, codeVerifier string,
) (domain.TokenRecord, error) {
	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	}
	tok, err := cfg.Exchange(ctx, code, opts...)
	if err != nil {
		return domain.TokenRecord{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	return RecordFromToken(tok), nil
}

// Refresher refreshes access tokens with an OAuth2 client configuration.
type Refresher struct {
	cfg *oauth2.Config
}

// NewRefresher creates a refresher for the given client configuration.
func NewRefresher(cfg *oauth2.Config) *Refresher {
	return &Refresher{cfg: cfg}
}

// Refresh exchanges refreshToken for a new access token.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (*domain.TokenRecord, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", domain.ErrTokenRefreshFailed)
	}
	// An already expired token forces the source to hit the token endpoint.
	src := r.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)})
	tok, err := src.Token()
	if err != nil {
		// invalid_grant means the refresh token was revoked or has expired.
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return nil, fmt.Errorf("%w: %w: %w", domain.ErrTokenRefreshFailed, domain.ErrAuthExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenRefreshFailed, err)
	}
	record := RecordFromToken(tok)
	if record.RefreshToken == "" {
		record.RefreshToken = refreshToken
	}
	return &record, nil
}

// Revoker revokes tokens at an OAuth2 revocation endpoint (RFC 7009).
type Revoker struct {
	endpoint string
	client   *http.Client
}

// NewRevoker creates a revoker. An empty endpoint means GoogleRevokeURL
// and a nil client means a client with a 30 second timeout.
func NewRevoker(endpoint string, client *http.Client) *Revoker {
	if endpoint == "" {
		endpoint = GoogleRevokeURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Revoker{endpoint: endpoint, client: client}
}

// Revoke revokes token. Revoking a refresh token also revokes its access tokens.
func (r *Revoker) Revoke(ctx context.Context, token string) error {
	data := url.Values{}
	data.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("revoke error: %s - %s", errResp.Error, errResp.Description)
		}
		return fmt.Errorf("revoke failed with status %d", resp.StatusCode)
	}
	return nil
}
