package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/ibx/internal/ibroadcast"
)

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Tokens ibroadcast.TokenSet
	err    error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles OAuth2 callback requests for the authorization code
// flow with PKCE. Implements the Handler interface for registration with a
// Router.
type OAuthHandler struct {
	flow        *ibroadcast.OAuthFlow
	state       string
	verifier    string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a new OAuth handler for the given flow. The state
// token should be cryptographically random for CSRF protection; the verifier
// must be the one whose challenge was sent in the authorization URL.
func NewOAuthHandler(flow *ibroadcast.OAuthFlow, state, verifier string) *OAuthHandler {
	return &OAuthHandler{
		flow:       flow,
		state:      state,
		verifier:   verifier,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the OAuth callback request.
//
// Validates the state parameter, exchanges the authorization code for a token
// set, and sends the result through the result channel.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only handle callback once
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	state := r.URL.Query().Get("state")
	if state != h.state {
		err := fmt.Errorf("invalid state parameter")
		h.Send(OAuthResult{err: err})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		err := fmt.Errorf("authorization failed: %s - %s", errParam, errDesc)
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	tokens, err := h.flow.ExchangeAuthCode(r.Context(), code, h.verifier)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.Send(OAuthResult{Tokens: tokens})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #7B2D8E; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// Listen runs a temporary callback server until the handler receives a
// result or the context is cancelled.
func Listen(ctx context.Context, addr string, handler *OAuthHandler) (ibroadcast.TokenSet, error) {
	router := NewBasicRouter()
	router.Handler(handler)

	srv := &http.Server{Addr: addr, Handler: router}
	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	defer srv.Shutdown(context.Background())

	select {
	case result := <-handler.Result():
		if err := result.Error(); err != nil {
			return ibroadcast.TokenSet{}, err
		}
		return result.Tokens, nil
	case err := <-errChan:
		return ibroadcast.TokenSet{}, fmt.Errorf("callback server failed: %w", err)
	case <-ctx.Done():
		return ibroadcast.TokenSet{}, ctx.Err()
	}
}
