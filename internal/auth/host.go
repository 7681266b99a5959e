package auth

import (
	"context"
	"net/url"
)

// Host opens the consent popup. The browser host in this package opens the
// system browser and receives the redirect on a loopback listener; tests use
// scripted fakes.
type Host interface {
	Open(ctx context.Context, authURL string) (Popup, error)
}

// Popup is a window pointed at the identity provider.
//
// Location returns ErrCrossOrigin while the window is on the provider and the
// redirect URL once the provider sends it back to our own origin. Closed
// reports whether the window is gone. Close must be safe to call more than
// once.
type Popup interface {
	Location() (*url.URL, error)
	Closed() bool
	Close() error
}
