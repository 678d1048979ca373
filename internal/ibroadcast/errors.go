package ibroadcast

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials indicates a password login the server rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotAuthenticated indicates the server rejected the session and no
	// refresh token or client ID was available to recover with.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrReauthExhausted indicates the server still reported the session as
	// unauthenticated after a token refresh and one retry.
	ErrReauthExhausted = errors.New("still unauthenticated after token refresh")

	// ErrOAuthPending signals that the user has not yet approved the device
	// code. It is a poll-continue signal, not a failure.
	ErrOAuthPending = errors.New("authorization pending")

	// ErrOAuthExpired indicates the device code expired before the user
	// approved it. The flow must be restarted.
	ErrOAuthExpired = errors.New("device code expired")

	// ErrOAuthDenied indicates the user declined the authorization request.
	ErrOAuthDenied = errors.New("authorization denied by user")

	// errSlowDown is absorbed by the poller, which backs off and retries.
	errSlowDown = errors.New("slow down")
)

// ServerError reports a non-2xx response or a body that could not be parsed
// as a JSON envelope.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("server returned status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// OperationError reports an envelope with result set to false. The server
// message, when present, explains the failure.
type OperationError struct {
	Mode    string
	Message string
}

func (e *OperationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s failed: %s", e.Mode, e.Message)
	}
	return fmt.Sprintf("%s failed", e.Mode)
}

// OAuthError reports an OAuth protocol failure outside the known
// device-flow signals.
type OAuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *OAuthError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("oauth error %s: %s", e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("oauth error %s", e.Code)
	default:
		return fmt.Sprintf("oauth request failed with status %d", e.Status)
	}
}
