// Package identity bridges the Yandex OAuth2 provider and the service's own
// identity model.
//
// Purpose:
//
//	This package implements the authorization-code exchange against Yandex:
//	building the authorization redirect URL, exchanging a callback code for a
//	provider access token, and fetching the remote profile with it. The two
//	upstream calls are strictly sequential and fail fast; a single upstream
//	failure is surfaced immediately and the browser flow restarts, because
//	authorization codes are single-use.
//
// Key Responsibilities:
//   - AuthCodeURL builds the provider authorization URL (pure function of config)
//   - ExchangeCode performs code→token exchange then the user-info fetch
//   - Error taxonomy separates auth failures, profile failures, malformed
//     bodies, and upstream timeouts so the HTTP boundary can map each one
//
// Debugging Notes:
//   - Endpoints default to oauth.yandex.ru / login.yandex.ru but are
//     configurable so tests can point at an httptest stub
//   - The user-info request authenticates with "Authorization: OAuth <token>",
//     which is what a StaticTokenSource with TokenType "OAuth" produces
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// Default Yandex endpoints.
const (
	DefaultAuthURL     = "https://oauth.yandex.ru/authorize"
	DefaultTokenURL    = "https://oauth.yandex.ru/token"
	DefaultUserInfoURL = "https://login.yandex.ru/info"
)

var (
	// ErrUpstreamAuth is returned when the token endpoint rejects the
	// exchange or the token envelope is unusable.
	ErrUpstreamAuth = errors.New("identity: upstream auth failed")
	// ErrUpstreamProfile is returned when the user-info endpoint returns a
	// non-success status.
	ErrUpstreamProfile = errors.New("identity: upstream profile fetch failed")
	// ErrMalformedResponse is returned when an upstream body cannot be
	// decoded as JSON.
	ErrMalformedResponse = errors.New("identity: malformed upstream response")
	// ErrUpstreamTimeout is returned when an upstream call is cancelled or
	// times out. No partial user state is committed in that case.
	ErrUpstreamTimeout = errors.New("identity: upstream call timed out")
)

// Config is the immutable provider configuration injected at construction.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
}

// RemoteProfile is the identity data fetched from the provider after a
// successful code exchange.
type RemoteProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"default_email"`
}

// Provider performs the OAuth2 authorization-code exchange against Yandex.
type Provider struct {
	conf        *oauth2.Config
	userInfoURL string
}

// NewProvider builds a provider from configuration, applying the default
// Yandex endpoints for any endpoint left empty.
func NewProvider(cfg Config) *Provider {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = DefaultUserInfoURL
	}

	return &Provider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: cfg.UserInfoURL,
	}
}

// AuthCodeURL returns the provider authorization URL with response_type=code,
// the registered client id and redirect URI, and the given one-time state.
// Pure function of configuration; no side effects.
func (p *Provider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

// ExchangeCode exchanges the callback code for a provider access token, then
// fetches the remote profile with it. No retries.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (RemoteProfile, error) {
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return RemoteProfile{}, classifyExchangeError(ctx, err)
	}
	if tok.AccessToken == "" {
		return RemoteProfile{}, fmt.Errorf("%w: token response missing access_token", ErrUpstreamAuth)
	}

	return p.fetchProfile(ctx, tok.AccessToken)
}

func (p *Provider) fetchProfile(ctx context.Context, accessToken string) (RemoteProfile, error) {
	// Yandex expects "Authorization: OAuth <token>"; a static token source
	// with TokenType OAuth produces exactly that header.
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "OAuth",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL+"?format=json", nil)
	if err != nil {
		return RemoteProfile{}, fmt.Errorf("%w: %v", ErrUpstreamProfile, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return RemoteProfile{}, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return RemoteProfile{}, fmt.Errorf("%w: %v", ErrUpstreamProfile, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RemoteProfile{}, fmt.Errorf("%w: status %d", ErrUpstreamProfile, resp.StatusCode)
	}

	var profile RemoteProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return RemoteProfile{}, fmt.Errorf("%w: user info: %v", ErrMalformedResponse, err)
	}
	if profile.DisplayName == "" {
		profile.DisplayName = "NoName"
	}
	return profile, nil
}

// classifyExchangeError maps x/oauth2 exchange failures onto the package
// error taxonomy. A RetrieveError carries the upstream status; cancellation
// and deadline errors become timeouts; everything else is an undecodable
// token envelope.
func classifyExchangeError(ctx context.Context, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: token endpoint status %d", ErrUpstreamAuth, retrieveErr.Response.StatusCode)
	}
	if isTimeout(ctx, err) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: token envelope: %v", ErrMalformedResponse, err)
}

func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}
