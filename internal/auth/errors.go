package auth

import (
	"errors"
	"fmt"
)

// Flow errors. Use errors.Is to check.
var (
	// ErrCrossOrigin is what Popup.Location returns while the popup is still
	// on the identity provider. Polling treats it as "not yet".
	ErrCrossOrigin = errors.New("auth: popup location is cross-origin")
	// ErrAbandoned means the popup closed, or stayed unreachable past the
	// consent timeout, before a redirect was observed.
	ErrAbandoned = errors.New("auth: sign-in abandoned before authorization completed")
	// ErrSuperseded means a newer BeginSignIn replaced this session.
	ErrSuperseded = errors.New("auth: sign-in superseded by a newer attempt")
	// ErrStateMismatch means the redirect carried a state this session did
	// not issue.
	ErrStateMismatch = errors.New("auth: OAuth2 state mismatch (possible CSRF)")
	// ErrMissingCode means the redirect had neither a code nor an error.
	ErrMissingCode = errors.New("auth: redirect missing authorization code")
	// ErrPopupClosed is returned by popups whose location is read after they
	// were closed.
	ErrPopupClosed = errors.New("auth: popup closed")
)

// AuthorizationError is an error redirect from the authorization endpoint,
// e.g. the user pressed "deny".
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("auth: authorization failed: %s: %s", e.Code, e.Description)
	}

	return fmt.Sprintf("auth: authorization failed: %s", e.Code)
}

// ExchangeError is a non-2xx response from the token endpoint. StatusCode
// and Body carry the upstream response for the caller to show.
type ExchangeError struct {
	StatusCode int
	ErrorCode  string
	Body       string
	Err        error
}

func (e *ExchangeError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("auth: token exchange failed: %v", e.Err)
	}

	return fmt.Sprintf("auth: token exchange failed: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}
