package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/skratchdot/open-golang/open"
)

// shutdownTimeout is how long to wait for the redirect listener to drain.
const shutdownTimeout = 5 * time.Second

// successPage is shown in the browser tab once the redirect lands.
const successPage = "<html><body><h1>Authentication successful</h1>" +
	"<p>You can close this window and return to the terminal.</p></body></html>"

// BrowserHost opens the authorization URL in the system browser. Our own
// origin is a loopback listener on the redirect URL's host and port: the
// popup's location is unreadable (ErrCrossOrigin) until the provider
// redirects the browser there.
type BrowserHost struct {
	redirect *url.URL
	logger   *slog.Logger

	// OpenURL launches the browser. Defaults to open.Run. If it fails the
	// URL is written to Fallback so the user can open it by hand.
	OpenURL  func(string) error
	Fallback io.Writer
}

// NewBrowserHost returns a host that listens on redirectURL, which must be an
// http URL with an explicit loopback host and port.
func NewBrowserHost(redirectURL string, logger *slog.Logger) (*BrowserHost, error) {
	if logger == nil {
		logger = slog.Default()
	}

	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("auth: parsing redirect URL: %w", err)
	}

	if u.Scheme != "http" || u.Port() == "" {
		return nil, fmt.Errorf("auth: redirect URL %q must be http with an explicit port", redirectURL)
	}

	return &BrowserHost{
		redirect: u,
		logger:   logger,
		OpenURL:  open.Run,
		Fallback: os.Stderr,
	}, nil
}

// Open binds the redirect listener, then launches the browser at authURL.
// The popup closes itself when ctx ends.
func (h *BrowserHost) Open(ctx context.Context, authURL string) (Popup, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", h.redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("auth: binding redirect listener on %s: %w", h.redirect.Host, err)
	}

	p := &browserPopup{
		origin: h.redirect,
		logger: h.logger,
		done:   make(chan struct{}),
	}

	path := h.redirect.Path
	if path == "" {
		path = "/"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+path, p.handleRedirect)

	p.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := p.srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			h.logger.Warn("redirect listener failed", slog.String("error", serveErr.Error()))
			p.markClosed()
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = p.Close()
		case <-p.done:
		}
	}()

	h.logger.Info("opening browser for authorization",
		slog.String("redirect", h.redirect.String()),
	)

	if openErr := h.OpenURL(authURL); openErr != nil {
		h.logger.Warn("failed to open browser, printing URL",
			slog.String("error", openErr.Error()),
		)

		fmt.Fprintf(h.Fallback, "Open this URL in your browser:\n%s\n", authURL)
	}

	return p, nil
}

// browserPopup is the browser tab as seen from the loopback listener.
type browserPopup struct {
	origin *url.URL
	srv    *http.Server
	logger *slog.Logger

	mu       sync.Mutex
	landed   *url.URL
	closed   bool
	done     chan struct{}
	stopOnce sync.Once
}

// handleRedirect records the first redirect. Validation of state, code and
// error parameters is the controller's job.
func (p *browserPopup) handleRedirect(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	if p.landed == nil {
		loc := *p.origin
		loc.Path = r.URL.Path
		loc.RawQuery = r.URL.RawQuery
		p.landed = &loc
	}
	p.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, successPage)
}

func (p *browserPopup) Location() (*url.URL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.landed != nil {
		loc := *p.landed
		return &loc, nil
	}

	if p.closed {
		return nil, ErrPopupClosed
	}

	return nil, ErrCrossOrigin
}

func (p *browserPopup) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

// Close shuts the redirect listener down. Safe to call more than once.
func (p *browserPopup) Close() error {
	p.markClosed()

	var err error

	p.stopOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err = p.srv.Shutdown(shutdownCtx)
	})

	return err
}

func (p *browserPopup) markClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.done)
	}
}
