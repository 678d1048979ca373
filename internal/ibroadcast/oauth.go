package ibroadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultOAuthBaseURL is the production OAuth endpoint root.
	DefaultOAuthBaseURL = "https://oauth.ibroadcast.com"

	// DefaultRedirectURI is the out-of-band redirect used when no local
	// callback server is running.
	DefaultRedirectURI = "urn:ietf:wg:oauth:2.0:oob"

	defaultPollInterval = 5 * time.Second
	slowDownIncrement   = 5 * time.Second

	// fallbackPollWindow bounds device-code polling when the server omits
	// an expiry from the device-code response.
	fallbackPollWindow = 10 * time.Minute
)

// TokenSet holds OAuth 2 token material. Callers persist and restore it
// themselves; the client only hands it out through the token-refreshed
// callback.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        []string  `json:"scope,omitempty"`
}

// Expired reports whether the access token's expiry has passed.
// A zero expiry means the server never reported one and the token is
// treated as live until the API says otherwise.
func (t TokenSet) Expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// tokenSetFromToken converts an [oauth2.Token], carrying the previous
// refresh token forward when the response omitted a new one.
func tokenSetFromToken(tok *oauth2.Token, prevRefresh string) TokenSet {
	ts := TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if ts.RefreshToken == "" {
		ts.RefreshToken = prevRefresh
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		ts.Scope = strings.Fields(scope)
	}
	return ts
}

// GenerateVerifier returns a new PKCE code verifier.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// ChallengeFromVerifier derives the S256 code challenge for a verifier.
func ChallengeFromVerifier(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// OAuthFlow drives the OAuth 2 endpoints: device-code and
// authorization-code grants, token refresh, and revocation.
type OAuthFlow struct {
	conf       *oauth2.Config
	httpClient *http.Client
	base       string

	// sleep is swapped out in tests to avoid real polling delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// OAuthOption configures an [OAuthFlow].
type OAuthOption func(*OAuthFlow)

// WithOAuthBaseURL overrides the OAuth endpoint root.
func WithOAuthBaseURL(base string) OAuthOption {
	return func(f *OAuthFlow) { f.base = strings.TrimRight(base, "/") }
}

// WithOAuthHTTPClient overrides the HTTP client used for OAuth requests.
func WithOAuthHTTPClient(client *http.Client) OAuthOption {
	return func(f *OAuthFlow) { f.httpClient = client }
}

// WithRedirectURI overrides the authorization-code redirect URI.
func WithRedirectURI(uri string) OAuthOption {
	return func(f *OAuthFlow) { f.conf.RedirectURL = uri }
}

// NewOAuthFlow creates a flow for the given OAuth client ID and scopes.
func NewOAuthFlow(clientID string, scopes []string, opts ...OAuthOption) *OAuthFlow {
	f := &OAuthFlow{
		conf: &oauth2.Config{
			ClientID:    clientID,
			Scopes:      scopes,
			RedirectURL: DefaultRedirectURI,
		},
		httpClient: http.DefaultClient,
		base:       DefaultOAuthBaseURL,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.conf.Endpoint = oauth2.Endpoint{
		AuthURL:       f.base + "/authorize",
		TokenURL:      f.base + "/token",
		DeviceAuthURL: f.base + "/device/code",
	}
	return f
}

// ClientID returns the OAuth client ID the flow was created with.
func (f *OAuthFlow) ClientID() string {
	return f.conf.ClientID
}

// AuthorizeURL builds the authorization URL for the authorization-code
// flow, binding the request to the given state and PKCE verifier.
func (f *OAuthFlow) AuthorizeURL(state, verifier string) string {
	return f.conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// RequestDeviceCode starts the device-code flow. The response carries the
// user-facing verification URI and code, the polling interval, and the
// code's expiry.
func (f *OAuthFlow) RequestDeviceCode(ctx context.Context) (*oauth2.DeviceAuthResponse, error) {
	da, err := f.conf.DeviceAuth(f.withClient(ctx))
	if err != nil {
		return nil, wrapOAuthError(err)
	}
	return da, nil
}

// PollForToken polls the token endpoint until the user authorizes the
// device code, the code expires, or ctx is cancelled.
//
// authorization_pending keeps polling unchanged; slow_down raises the
// interval before continuing. Polling is bounded by the device-code
// expiry, falling back to a fixed window when the server omitted one.
func (f *OAuthFlow) PollForToken(ctx context.Context, da *oauth2.DeviceAuthResponse) (TokenSet, error) {
	interval := time.Duration(da.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}

	deadline := da.Expiry
	if deadline.IsZero() {
		deadline = time.Now().Add(fallbackPollWindow)
	}

	for {
		if time.Now().After(deadline) {
			return TokenSet{}, ErrOAuthExpired
		}
		if err := f.sleep(ctx, interval); err != nil {
			return TokenSet{}, err
		}

		ts, err := f.pollOnce(ctx, da.DeviceCode)
		switch {
		case err == nil:
			return ts, nil
		case errors.Is(err, ErrOAuthPending):
			continue
		case errors.Is(err, errSlowDown):
			interval += slowDownIncrement
			continue
		default:
			return TokenSet{}, err
		}
	}
}

// pollOnce issues a single device-code token request.
func (f *OAuthFlow) pollOnce(ctx context.Context, deviceCode string) (TokenSet, error) {
	form := url.Values{
		"grant_type":  {"device_code"},
		"client_id":   {f.conf.ClientID},
		"device_code": {deviceCode},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.conf.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenSet{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return TokenSet{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TokenSet{}, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var payload struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			ExpiresIn    int64  `json:"expires_in"`
			Scope        string `json:"scope"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return TokenSet{}, &OAuthError{Status: resp.StatusCode, Description: "malformed token response"}
		}
		ts := TokenSet{
			AccessToken:  payload.AccessToken,
			RefreshToken: payload.RefreshToken,
		}
		if payload.ExpiresIn > 0 {
			ts.ExpiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
		}
		if payload.Scope != "" {
			ts.Scope = strings.Fields(payload.Scope)
		}
		return ts, nil
	}

	var oauthErr struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &oauthErr); err != nil {
		return TokenSet{}, &OAuthError{Status: resp.StatusCode, Description: string(body)}
	}

	switch oauthErr.Error {
	case "authorization_pending":
		return TokenSet{}, ErrOAuthPending
	case "slow_down":
		return TokenSet{}, errSlowDown
	case "expired_token":
		return TokenSet{}, ErrOAuthExpired
	case "access_denied":
		return TokenSet{}, ErrOAuthDenied
	default:
		return TokenSet{}, &OAuthError{Code: oauthErr.Error, Description: oauthErr.Description, Status: resp.StatusCode}
	}
}

// ExchangeAuthCode exchanges an authorization code for tokens, completing
// the authorization-code flow with the PKCE verifier generated alongside
// the authorize URL.
func (f *OAuthFlow) ExchangeAuthCode(ctx context.Context, code, verifier string) (TokenSet, error) {
	tok, err := f.conf.Exchange(f.withClient(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return TokenSet{}, wrapOAuthError(err)
	}
	return tokenSetFromToken(tok, ""), nil
}

// RefreshTokenSet exchanges a refresh token for a fresh token set. The old
// refresh token is preserved when the server does not rotate it.
func (f *OAuthFlow) RefreshTokenSet(ctx context.Context, refreshToken string) (TokenSet, error) {
	src := f.conf.TokenSource(f.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return TokenSet{}, wrapOAuthError(err)
	}
	return tokenSetFromToken(tok, refreshToken), nil
}

// Revoke invalidates a refresh token.
func (f *OAuthFlow) Revoke(ctx context.Context, refreshToken string) error {
	form := url.Values{
		"client_id":     {f.conf.ClientID},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.base+"/revoke", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &OAuthError{Status: resp.StatusCode, Description: string(body)}
	}
	return nil
}

// withClient routes oauth2 package requests through the flow's HTTP client.
func (f *OAuthFlow) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

// wrapOAuthError maps [oauth2.RetrieveError] codes onto the package error
// taxonomy.
func wrapOAuthError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return fmt.Errorf("oauth request failed: %w", err)
	}

	switch re.ErrorCode {
	case "access_denied":
		return ErrOAuthDenied
	case "expired_token":
		return ErrOAuthExpired
	default:
		return &OAuthError{Code: re.ErrorCode, Description: re.ErrorDescription, Status: statusOf(re)}
	}
}

func statusOf(re *oauth2.RetrieveError) int {
	if re.Response != nil {
		return re.Response.StatusCode
	}
	return 0
}
