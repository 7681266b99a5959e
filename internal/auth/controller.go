// Package auth drives the OAuth2 authorization code + PKCE sign-in: it opens
// a consent popup, polls it until the identity provider redirects back to our
// origin, exchanges the captured code for tokens, and publishes the result to
// a tokens.Store.
//
// At most one Session is live per Controller. Starting a new sign-in cancels
// the previous one, and a superseded session can never publish tokens.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/tonimelisma/globus-go/internal/pkce"
	"github.com/tonimelisma/globus-go/internal/tokens"
)

// stateTokenBytes is the number of random bytes for the OAuth2 state parameter.
const stateTokenBytes = 16

// DefaultPollInterval is how often the popup location is checked.
const DefaultPollInterval = time.Second

// State is the controller's position in the sign-in flow.
type State int

// Controller states.
const (
	StateIdle State = iota
	StateAwaitingUserConsent
	StateExchangingCode
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingUserConsent:
		return "awaiting_user_consent"
	case StateExchangingCode:
		return "exchanging_code"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config is the fixed client identity and endpoints for the flow.
type Config struct {
	ClientID    string
	AuthURL     string
	TokenURL    string
	RedirectURL string
	Scopes      []tokens.Scope
	// IdentityScope is a space-separated list of OIDC scopes requested in
	// addition to Scopes, e.g. "openid profile email". They map to no
	// surface; the id_token they produce names the signed-in user.
	IdentityScope string

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// ConsentTimeout bounds how long a popup may stay on the provider.
	// Zero means no bound beyond the caller's context.
	ConsentTimeout time.Duration
}

// Controller owns the sign-in state machine.
type Controller struct {
	oauth          *oauth2.Config
	scopes         []tokens.Scope
	host           Host
	store          *tokens.Store
	httpClient     *http.Client
	logger         *slog.Logger
	pollInterval   time.Duration
	consentTimeout time.Duration

	mu            sync.Mutex
	state         State
	current       *Session
	authenticated chan struct{}
	notified      bool
}

// NewController builds a Controller. httpClient is used for the token
// exchange; nil means http.DefaultClient.
func NewController(cfg Config, host Host, store *tokens.Store, httpClient *http.Client, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	scopeNames := make([]string, 0, len(cfg.Scopes))
	for _, s := range cfg.Scopes {
		scopeNames = append(scopeNames, s.Scope)
	}

	scopeNames = append(scopeNames, strings.Fields(cfg.IdentityScope)...)

	return &Controller{
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      scopeNames,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
				// Public client: client_id goes in the form body, and the
				// library must not probe a second auth style on failure.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		scopes:         cfg.Scopes,
		host:           host,
		store:          store,
		httpClient:     httpClient,
		logger:         logger,
		pollInterval:   poll,
		consentTimeout: cfg.ConsentTimeout,
		authenticated:  make(chan struct{}),
	}
}

// State returns the current flow state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Authenticated returns a channel closed by the next (or latest, if not yet
// signed out) successful sign-in. Errors never close it.
func (c *Controller) Authenticated() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.authenticated
}

// WaitAuthenticated blocks until a sign-in succeeds or ctx ends.
func (c *Controller) WaitAuthenticated(ctx context.Context) error {
	select {
	case <-c.Authenticated():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("auth: waiting for sign-in: %w", ctx.Err())
	}
}

// Restore installs a previously saved token set, e.g. from a token file, as
// if a sign-in had just completed.
func (c *Controller) Restore(set tokens.Set) {
	if len(set) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Replace(set)

	if c.current == nil {
		c.state = StateAuthenticated
	}

	c.notifyLocked()
}

// SignOut clears every token and replaces the authenticated notification
// with a fresh, unresolved one. An in-flight sign-in is left running.
func (c *Controller) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Clear()
	c.authenticated = make(chan struct{})
	c.notified = false

	if c.current == nil {
		c.state = StateIdle
	}

	c.logger.Info("signed out")
}

// BeginSignIn starts a new sign-in and returns its Session. Any session
// already in flight is canceled with ErrSuperseded, its poll stopped and its
// verifier discarded, before the new popup opens.
//
// ctx bounds the whole session including the token exchange.
func (c *Controller) BeginSignIn(ctx context.Context) (*Session, error) {
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("auth: generating state token: %w", err)
	}

	sessCtx, cancel := context.WithCancelCause(ctx)
	sess := &Session{
		ID:     uuid.NewString(),
		State:  state,
		pkce:   pkce.Generate(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// AuthCodeURL query-encodes every parameter; nothing is concatenated by
	// hand.
	sess.AuthURL = c.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(sess.pkce.Verifier),
	)

	c.mu.Lock()
	prev := c.current
	c.current = sess
	c.state = StateAwaitingUserConsent
	c.mu.Unlock()

	if prev != nil {
		c.logger.Info("superseding in-flight sign-in",
			slog.String("previous_session", prev.ID),
			slog.String("session", sess.ID),
		)
		prev.abort(ErrSuperseded)
	}

	c.logger.Info("starting sign-in",
		slog.String("session", sess.ID),
		slog.Duration("poll_interval", c.pollInterval),
	)

	popup, err := c.host.Open(sessCtx, sess.AuthURL)
	if err != nil {
		err = fmt.Errorf("auth: opening sign-in window: %w", err)
		c.finish(sess, err)

		return nil, err
	}

	sess.popup = popup

	go c.run(sessCtx, sess)

	return sess, nil
}

// run is the session's continuation chain: poll, exchange, publish.
func (c *Controller) run(ctx context.Context, sess *Session) {
	code, err := c.awaitCode(ctx, sess)
	if err != nil {
		c.finish(sess, err)
		return
	}

	if !c.transition(sess, StateExchangingCode) {
		c.finish(sess, ErrSuperseded)
		return
	}

	c.finish(sess, c.exchange(ctx, sess, code))
}

// awaitCode polls the popup once per tick. Cross-origin reads are the normal
// steady state and are ignored. The first readable location ends the poll.
func (c *Controller) awaitCode(ctx context.Context, sess *Session) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time

	if c.consentTimeout > 0 {
		timer := time.NewTimer(c.consentTimeout)
		defer timer.Stop()

		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return "", context.Cause(ctx)
		case <-deadline:
			return "", fmt.Errorf("%w: no redirect within %s", ErrAbandoned, c.consentTimeout)
		case <-ticker.C:
		}

		loc, err := sess.popup.Location()
		if err == nil {
			sess.closePopup(c.logger)
			return sess.codeFrom(loc)
		}

		if sess.popup.Closed() {
			return "", ErrAbandoned
		}

		if !errors.Is(err, ErrCrossOrigin) {
			c.logger.Debug("popup location unreadable", slog.String("error", err.Error()))
		}
	}
}

// exchange trades the code and verifier for tokens and publishes them if
// this session is still the current one.
func (c *Controller) exchange(ctx context.Context, sess *Session, code string) error {
	c.logger.Info("received authorization code, exchanging for token",
		slog.String("session", sess.ID),
	)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.oauth.Exchange(ctx, code, oauth2.VerifierOption(sess.pkce.Verifier))
	sess.pkce.Discard()

	if err != nil {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}

		return exchangeError(err)
	}

	payload, err := tokens.PayloadFromOAuth(tok)
	if err != nil {
		return fmt.Errorf("auth: reading token response: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != sess {
		return ErrSuperseded
	}

	if err := c.store.SetFromExchange(payload, c.scopes); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if payload.IDToken != "" {
		id, idErr := tokens.ParseIdentity(payload.IDToken, c.oauth.ClientID)
		if idErr != nil {
			// Informational only; the API tokens are already usable.
			c.logger.Warn("ignoring unreadable id_token",
				slog.String("session", sess.ID),
				slog.String("error", idErr.Error()),
			)
		} else {
			sess.identity = &id
		}
	}

	c.state = StateAuthenticated
	c.notifyLocked()

	c.logger.Info("sign-in successful",
		slog.String("session", sess.ID),
		slog.Any("surfaces", c.store.Surfaces()),
	)

	return nil
}

// transition moves the controller to next if sess is still current.
func (c *Controller) transition(sess *Session, next State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != sess {
		return false
	}

	c.state = next

	return true
}

// finish tears the session down: verifier discarded, popup closed, poll
// context released, waiters woken. A failed current session returns the
// controller to Idle, or to Authenticated if earlier tokens are still held.
func (c *Controller) finish(sess *Session, err error) {
	sess.pkce.Discard()
	sess.closePopup(c.logger)
	sess.cancel(err)

	c.mu.Lock()
	if c.current == sess {
		c.current = nil

		if err != nil {
			c.state = StateIdle
			if len(c.store.Surfaces()) > 0 {
				c.state = StateAuthenticated
			}
		}
	}
	c.mu.Unlock()

	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrSuperseded) {
			level = slog.LevelInfo
		}

		c.logger.Log(context.Background(), level, "sign-in ended without tokens",
			slog.String("session", sess.ID),
			slog.String("error", err.Error()),
		)
	}

	sess.err = err
	close(sess.done)
}

// notifyLocked resolves the current authenticated channel once.
func (c *Controller) notifyLocked() {
	if !c.notified {
		close(c.authenticated)
		c.notified = true
	}
}

// exchangeError converts oauth2's RetrieveError into an ExchangeError that
// keeps the upstream status and body.
func exchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &ExchangeError{
			StatusCode: re.Response.StatusCode,
			ErrorCode:  re.ErrorCode,
			Body:       string(re.Body),
			Err:        err,
		}
	}

	return &ExchangeError{Err: err}
}

// generateState produces a cryptographically random hex string for the OAuth2
// state parameter.
func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
