package ibroadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

const (
	// DefaultAPIBaseURL is the production API endpoint root.
	DefaultAPIBaseURL = "https://api.ibroadcast.com"
	// DefaultLibraryURL serves the library snapshot.
	DefaultLibraryURL = "https://library.ibroadcast.com"
	// DefaultSyncURL serves the MD5 checksums of uploaded files.
	DefaultSyncURL = "https://sync.ibroadcast.com"
	// DefaultUploadURL accepts multipart file uploads.
	DefaultUploadURL = "https://upload.ibroadcast.com"

	defaultClientName = "ibx"
	defaultVersion    = "0.1.0"
)

// authMode selects between the OAuth bearer-token session and the
// deprecated password session. Exactly one mode is active per client.
type authMode int

const (
	authOAuth authMode = iota
	authPassword
)

// TokenRefreshedFunc is invoked with fresh token material after a silent
// refresh so the caller can persist it. The client persists nothing itself.
type TokenRefreshedFunc func(TokenSet)

// DeviceCodeFunc receives the user-facing verification details of a
// device-code flow so the caller can display them.
type DeviceCodeFunc func(userCode, verificationURI, verificationURIComplete string)

// Options configures a [Client]. The zero value is usable; every field has
// a default.
type Options struct {
	ClientName string
	Version    string
	DeviceName string

	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer

	// OnTokenRefreshed is called whenever the access token is silently
	// refreshed during an authenticated request.
	OnTokenRefreshed TokenRefreshedFunc

	// Endpoint overrides, used by tests and self-hosted setups.
	APIBaseURL string
	LibraryURL string
	SyncURL    string
	UploadURL  string
}

// Client is a single logical session against the API. All calls are
// synchronous; the token fields, library snapshot, and checksum set are
// guarded by one mutex and replaced whole, never mutated in place.
type Client struct {
	mu sync.Mutex

	mode     authMode
	flow     *OAuthFlow
	tokenSet TokenSet

	// legacy password-session state
	userID      string
	legacyToken string

	onTokenRefreshed TokenRefreshedFunc

	clientName string
	version    string
	deviceName string
	userAgent  string

	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	apiURL     string
	libraryURL string
	syncURL    string
	uploadURL  string

	library *Library
	status  *Status
	md5     map[string]struct{}
}

// envelope is the top-level shape of every API response. Endpoint-specific
// payload rides alongside these fields and is parsed by the caller.
type envelope struct {
	Result        *bool  `json:"result"`
	Message       string `json:"message"`
	Authenticated *bool  `json:"authenticated"`
}

// Status holds the user/status payload.
type Status struct {
	User      *StatusUser `json:"user"`
	Supported []FileType  `json:"supported"`
}

// StatusUser identifies the authenticated user.
type StatusUser struct {
	ID    json.Number `json:"id"`
	Token string      `json:"token"`
}

// FileType describes one supported audio format.
type FileType struct {
	Extension string `json:"extension"`
}

// NewClient creates a client from previously saved token material. The
// flow is required for silent token refresh; pass the same client ID the
// tokens were issued for.
func NewClient(flow *OAuthFlow, ts TokenSet, opts Options) *Client {
	c := newClient(opts)
	c.flow = flow
	c.tokenSet = ts
	return c
}

// FromDeviceCode authenticates via the OAuth 2 device-code flow. The
// verification code and URI are passed to onDeviceCode when set, otherwise
// printed to the client output.
func FromDeviceCode(ctx context.Context, flow *OAuthFlow, onDeviceCode DeviceCodeFunc, opts Options) (*Client, error) {
	c := newClient(opts)
	c.flow = flow

	da, err := flow.RequestDeviceCode(ctx)
	if err != nil {
		return nil, err
	}

	if onDeviceCode != nil {
		onDeviceCode(da.UserCode, da.VerificationURI, da.VerificationURIComplete)
	} else {
		fmt.Fprintf(c.output, "\nTo authorize, visit: %s\n", da.VerificationURI)
		fmt.Fprintf(c.output, "And enter code: %s\n", da.UserCode)
		if da.VerificationURIComplete != "" {
			fmt.Fprintf(c.output, "\nOr visit: %s\n", da.VerificationURIComplete)
		}
		fmt.Fprintf(c.output, "\nWaiting for authorization...\n")
	}

	ts, err := flow.PollForToken(ctx, da)
	if err != nil {
		return nil, err
	}

	c.tokenSet = ts
	return c, nil
}

// FromAuthCode authenticates via the OAuth 2 authorization-code flow,
// exchanging a code obtained from the redirect along with the PKCE
// verifier generated for the authorize URL.
func FromAuthCode(ctx context.Context, flow *OAuthFlow, code, verifier string, opts Options) (*Client, error) {
	ts, err := flow.ExchangeAuthCode(ctx, code, verifier)
	if err != nil {
		return nil, err
	}

	c := newClient(opts)
	c.flow = flow
	c.tokenSet = ts
	return c, nil
}

// NewPasswordClient logs in with a username and password and downloads an
// initial library snapshot.
//
// Deprecated: the password session is the legacy authentication mode; new
// integrations should use [FromDeviceCode] or [FromAuthCode].
func NewPasswordClient(ctx context.Context, username, password string, opts Options) (*Client, error) {
	c := newClient(opts)
	c.mode = authPassword

	c.logger.Info("logging in", "user", username)
	raw, env, err := c.post(ctx, c.apiURL+"/s/JSON/status", map[string]any{
		"mode":            "status",
		"email_address":   username,
		"password":        password,
		"client":          c.clientName,
		"version":         c.version,
		"supported_types": 1,
	})
	if err != nil {
		return nil, err
	}
	if env.Result != nil && !*env.Result {
		return nil, &OperationError{Mode: "status", Message: env.Message}
	}

	var status Status
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}
	if status.User == nil {
		return nil, ErrInvalidCredentials
	}

	c.status = &status
	c.userID = status.User.ID.String()
	c.legacyToken = status.User.Token
	c.logger.Info("login successful", "user_id", c.userID)

	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func newClient(opts Options) *Client {
	if opts.ClientName == "" {
		opts.ClientName = defaultClientName
	}
	if opts.Version == "" {
		opts.Version = defaultVersion
	}
	if opts.DeviceName == "" {
		opts.DeviceName = opts.ClientName
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.APIBaseURL == "" {
		opts.APIBaseURL = DefaultAPIBaseURL
	}
	if opts.LibraryURL == "" {
		opts.LibraryURL = DefaultLibraryURL
	}
	if opts.SyncURL == "" {
		opts.SyncURL = DefaultSyncURL
	}
	if opts.UploadURL == "" {
		opts.UploadURL = DefaultUploadURL
	}

	return &Client{
		onTokenRefreshed: opts.OnTokenRefreshed,
		clientName:       opts.ClientName,
		version:          opts.Version,
		deviceName:       opts.DeviceName,
		userAgent:        opts.ClientName + "/" + opts.Version,
		httpClient:       opts.HTTPClient,
		logger:           opts.Logger,
		output:           opts.Output,
		apiURL:           strings.TrimRight(opts.APIBaseURL, "/"),
		libraryURL:       opts.LibraryURL,
		syncURL:          opts.SyncURL,
		uploadURL:        opts.UploadURL,
	}
}

// TokenSet returns the current token material.
func (c *Client) TokenSet() TokenSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokenSet
}

// AccessToken returns the current OAuth access token.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokenSet.AccessToken
}

// SetLogger replaces the client's logger. Used when the terminal belongs
// to an interactive UI.
func (c *Client) SetLogger(l *log.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
}

// SetTokenRefreshedCallback replaces the persistence callback.
func (c *Client) SetTokenRefreshedCallback(fn TokenRefreshedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTokenRefreshed = fn
}

// requestBody builds the common JSON body for API requests.
func (c *Client) requestBody(mode, rawurl string, extra map[string]any) map[string]any {
	args := make(map[string]any, len(extra)+6)

	if c.mode == authPassword {
		args["_token"] = c.legacyToken
		args["_userid"] = c.userID
		args["supported_types"] = false
		args["url"] = "//" + stripScheme(rawurl)
	} else {
		args["device_name"] = c.deviceName
		args["user_agent"] = c.userAgent
	}
	args["client"] = c.clientName
	args["version"] = c.version
	args["mode"] = mode

	for k, v := range extra {
		args[k] = v
	}
	return args
}

// request performs an authenticated JSON API call for the given mode.
// rawurl defaults to the API base. If the envelope flags the session as
// unauthenticated and a refresh token plus client ID are available, the
// token is refreshed exactly once and the request retried once; a second
// rejection surfaces [ErrReauthExhausted].
func (c *Client) request(ctx context.Context, mode, rawurl string, extra map[string]any) (json.RawMessage, error) {
	if rawurl == "" {
		if c.mode == authPassword {
			rawurl = c.apiURL + "/s/JSON/" + mode
		} else {
			rawurl = c.apiURL + "/" + mode
		}
	}
	args := c.requestBody(mode, rawurl, extra)

	stale := c.AccessToken()
	raw, env, err := c.post(ctx, rawurl, args)
	if err != nil {
		return nil, err
	}

	if env.Authenticated != nil && !*env.Authenticated {
		if !c.canRefresh() {
			return nil, ErrNotAuthenticated
		}
		if err := c.refreshAccessToken(ctx, stale); err != nil {
			return nil, err
		}
		raw, env, err = c.post(ctx, rawurl, args)
		if err != nil {
			return nil, err
		}
		if env.Authenticated != nil && !*env.Authenticated {
			return nil, ErrReauthExhausted
		}
	}

	if env.Result != nil && !*env.Result {
		return nil, &OperationError{Mode: mode, Message: env.Message}
	}
	if env.Message != "" {
		c.logger.Info(env.Message)
	}
	return raw, nil
}

// post issues one JSON POST and parses the response envelope. It does not
// retry; the reauth cycle lives in request.
func (c *Client) post(ctx context.Context, rawurl string, args map[string]any) (json.RawMessage, *envelope, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawurl, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	return c.do(req)
}

// do executes a prepared request and enforces the envelope contract: a
// non-2xx status or an unparseable body is a [ServerError].
func (c *Client) do(req *http.Request) (json.RawMessage, *envelope, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &ServerError{Status: resp.StatusCode, Body: truncate(string(body))}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, &ServerError{Status: resp.StatusCode, Body: "malformed envelope: " + truncate(string(body))}
	}
	return body, &env, nil
}

// setAuthHeaders attaches the user agent and, in OAuth mode, the bearer
// token. The legacy session carries its credentials in the body instead.
func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	if c.mode == authOAuth {
		if token := c.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

func (c *Client) canRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode == authOAuth && c.flow != nil && c.tokenSet.RefreshToken != "" && c.flow.ClientID() != ""
}

// refreshAccessToken refreshes the token set unless another call already
// replaced the stale token, so concurrent rejections trigger one refresh.
func (c *Client) refreshAccessToken(ctx context.Context, stale string) error {
	c.mu.Lock()
	if c.tokenSet.AccessToken != stale {
		c.mu.Unlock()
		return nil
	}
	refresh := c.tokenSet.RefreshToken
	c.mu.Unlock()

	c.logger.Info("refreshing access token")
	ts, err := c.flow.RefreshTokenSet(ctx, refresh)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.tokenSet = ts
	callback := c.onTokenRefreshed
	c.mu.Unlock()

	if callback != nil {
		callback(ts)
	}
	return nil
}

// libraryEnvelope is the payload shape of the library endpoint.
type libraryEnvelope struct {
	Library struct {
		Albums    json.RawMessage `json:"albums"`
		Artists   json.RawMessage `json:"artists"`
		Playlists json.RawMessage `json:"playlists"`
		Tags      json.RawMessage `json:"tags"`
		Tracks    json.RawMessage `json:"tracks"`
	} `json:"library"`
}

// Refresh downloads the library and replaces the snapshot. All five
// collections are decoded before anything becomes visible; on any failure
// the previous snapshot stays intact. A successful refresh invalidates the
// checksum set, which is coupled to the same server state.
func (c *Client) Refresh(ctx context.Context) error {
	c.logger.Info("downloading library data")
	raw, err := c.request(ctx, "library", c.libraryURL, nil)
	if err != nil {
		return err
	}

	var resp libraryEnvelope
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("failed to parse library response: %w", err)
	}

	albums, err := decodeCollection[Album](resp.Library.Albums)
	if err != nil {
		return fmt.Errorf("albums: %w", err)
	}
	artists, err := decodeCollection[Artist](resp.Library.Artists)
	if err != nil {
		return fmt.Errorf("artists: %w", err)
	}
	playlists, err := decodeCollection[Playlist](resp.Library.Playlists)
	if err != nil {
		return fmt.Errorf("playlists: %w", err)
	}
	tags, err := decodeCollection[Tag](resp.Library.Tags)
	if err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	tracks, err := decodeCollection[Track](resp.Library.Tracks)
	if err != nil {
		return fmt.Errorf("tracks: %w", err)
	}

	lib := &Library{
		Albums:    albums,
		Artists:   artists,
		Playlists: playlists,
		Tags:      tags,
		Tracks:    tracks,
	}

	c.mu.Lock()
	c.library = lib
	c.md5 = nil
	c.mu.Unlock()
	return nil
}

// Library returns the current snapshot, or nil before the first refresh.
func (c *Client) Library() *Library {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.library
}

// Album looks up an album by its decimal-string ID.
func (c *Client) Album(id string) (Album, bool) {
	lib := c.Library()
	if lib == nil {
		return Album{}, false
	}
	a, ok := lib.Albums[id]
	return a, ok
}

// Artist looks up an artist by its decimal-string ID.
func (c *Client) Artist(id string) (Artist, bool) {
	lib := c.Library()
	if lib == nil {
		return Artist{}, false
	}
	a, ok := lib.Artists[id]
	return a, ok
}

// Playlist looks up a playlist by its decimal-string ID.
func (c *Client) Playlist(id string) (Playlist, bool) {
	lib := c.Library()
	if lib == nil {
		return Playlist{}, false
	}
	p, ok := lib.Playlists[id]
	return p, ok
}

// Tag looks up a tag by its decimal-string ID.
func (c *Client) Tag(id string) (Tag, bool) {
	lib := c.Library()
	if lib == nil {
		return Tag{}, false
	}
	t, ok := lib.Tags[id]
	return t, ok
}

// Track looks up a track by its decimal-string ID.
func (c *Client) Track(id string) (Track, bool) {
	lib := c.Library()
	if lib == nil {
		return Track{}, false
	}
	t, ok := lib.Tracks[id]
	return t, ok
}

// IsTagged reports whether the given track carries the given tag.
func (c *Client) IsTagged(tagID string, trackID int64) bool {
	tag, ok := c.Tag(tagID)
	if !ok {
		return false
	}
	for _, id := range tag.Tracks {
		if id == trackID {
			return true
		}
	}
	return false
}

// GetTags returns the sorted IDs of every tag applied to the given track.
func (c *Client) GetTags(trackID int64) []string {
	lib := c.Library()
	if lib == nil {
		return nil
	}

	var ids []string
	for id := range lib.Tags {
		if c.IsTagged(id, trackID) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// GetStatus fetches user status and supported-format info.
func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	raw, err := c.request(ctx, "status", "", nil)
	if err != nil {
		return nil, err
	}

	var status Status
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}

	c.mu.Lock()
	c.status = &status
	c.mu.Unlock()
	return &status, nil
}

// Extensions returns the file extensions of the supported audio formats,
// fetching status on first use.
func (c *Client) Extensions(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	status := c.status
	c.mu.Unlock()

	if status == nil {
		var err error
		if status, err = c.GetStatus(ctx); err != nil {
			return nil, err
		}
	}

	exts := make([]string, 0, len(status.Supported))
	for _, ft := range status.Supported {
		exts = append(exts, ft.Extension)
	}
	return exts, nil
}

func stripScheme(rawurl string) string {
	s := strings.TrimPrefix(rawurl, "https://")
	return strings.TrimPrefix(s, "http://")
}

func truncate(s string) string {
	const max = 512
	s = strings.TrimSpace(s)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
