package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/tonimelisma/globus-go/internal/pkce"
	"github.com/tonimelisma/globus-go/internal/tokens"
)

// Session is one sign-in attempt. It is created by BeginSignIn and ends when
// a code is exchanged, the popup is abandoned, or a newer session replaces it.
type Session struct {
	// ID correlates log lines for this attempt.
	ID string
	// State is the anti-forgery value sent to the authorization endpoint.
	State string
	// AuthURL is the authorization endpoint URL the popup was opened at.
	AuthURL string

	pkce      pkce.Material
	popup     Popup
	identity  *tokens.Identity
	closeOnce sync.Once
	cancel    context.CancelCauseFunc
	done      chan struct{}
	err       error
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the session's outcome. Only meaningful after Done is closed;
// nil means tokens were published.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the session ends or ctx is canceled. Canceling ctx does
// not cancel the session.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return fmt.Errorf("auth: waiting for sign-in: %w", context.Cause(ctx))
	}
}

// Identity returns the user named by the exchange's id_token. Only
// meaningful after a successful Wait; false when no identity scope was
// requested or the id_token could not be read.
func (s *Session) Identity() (tokens.Identity, bool) {
	select {
	case <-s.done:
	default:
		return tokens.Identity{}, false
	}

	if s.identity == nil {
		return tokens.Identity{}, false
	}

	return *s.identity, true
}

// Challenge returns the PKCE challenge sent with this session's auth URL.
func (s *Session) Challenge() string {
	return s.pkce.Challenge
}

// abort cancels the session with cause and waits for it to tear down.
func (s *Session) abort(cause error) {
	s.cancel(cause)
	<-s.done
}

func (s *Session) closePopup(logger *slog.Logger) {
	if s.popup == nil {
		return
	}

	s.closeOnce.Do(func() {
		if err := s.popup.Close(); err != nil {
			logger.Warn("closing sign-in window", slog.String("error", err.Error()))
		}
	})
}

// codeFrom validates the redirect and extracts the authorization code.
func (s *Session) codeFrom(loc *url.URL) (string, error) {
	q := loc.Query()

	if q.Get("state") != s.State {
		return "", ErrStateMismatch
	}

	if errParam := q.Get("error"); errParam != "" {
		return "", &AuthorizationError{Code: errParam, Description: q.Get("error_description")}
	}

	code := q.Get("code")
	if code == "" {
		return "", ErrMissingCode
	}

	return code, nil
}
