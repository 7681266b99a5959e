// Package dispatch sends authenticated requests to the Globus APIs. Each
// request names an API surface; the bearer token for that surface comes from
// the token store. Error responses are decoded into *APIError so callers can
// tell "the server refused" apart from "the server was never reached".
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, dispatch.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("dispatch: bad request")
	ErrUnauthorized = errors.New("dispatch: unauthorized")
	ErrForbidden    = errors.New("dispatch: forbidden")
	ErrNotFound     = errors.New("dispatch: not found")
	ErrConflict     = errors.New("dispatch: conflict")
	ErrThrottled    = errors.New("dispatch: throttled")
	ErrServerError  = errors.New("dispatch: server error")
	ErrClientError  = errors.New("dispatch: client error")
)

var (
	// ErrNoToken means the store has no token for the requested surface.
	// No request is sent.
	ErrNoToken = errors.New("dispatch: not signed in for this API")
	// ErrTransport marks failures before a response arrived: DNS, refused
	// connections, TLS, canceled contexts.
	ErrTransport = errors.New("dispatch: transport failure")
)

// APIError is a response with status >= 400, normalized from the upstream
// JSON error body ({"code": ..., "message": ..., "request_id": ...}).
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
	RequestID  string
	Resource   string
	// Body is the raw response body.
	Body json.RawMessage
	Err  error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("dispatch: HTTP %d", e.HTTPStatus)
	if e.Code != "" {
		msg += " " + e.Code
	}

	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.RequestID != "" {
		msg += fmt.Sprintf(" (request-id: %s)", e.RequestID)
	}

	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil below 400.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		if code >= http.StatusBadRequest {
			return ErrClientError
		}

		return nil
	}
}
