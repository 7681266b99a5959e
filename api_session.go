package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tonimelisma/globus-go/internal/config"
	"github.com/tonimelisma/globus-go/internal/dispatch"
	"github.com/tonimelisma/globus-go/internal/tokenfile"
	"github.com/tonimelisma/globus-go/internal/tokens"
)

// errNotLoggedIn is returned when no token file exists yet.
var errNotLoggedIn = errors.New("not logged in")

// APISession holds the restored token set and a dispatcher over it, for the
// commands that call the Transfer and Search APIs.
type APISession struct {
	Store      *tokens.Store
	Dispatcher *dispatch.Dispatcher
	Meta       map[string]string
	Resolved   *config.Resolved
}

// NewAPISession loads the saved tokens from the configured token file and
// builds a dispatcher that reads them from an in-memory store.
func NewAPISession(resolved *config.Resolved, httpClient *http.Client, logger *slog.Logger) (*APISession, error) {
	path := resolved.Auth.TokenFile
	if path == "" {
		return nil, errors.New("cannot determine token file path")
	}

	set, meta, err := tokenfile.Load(path)
	if err != nil {
		return nil, err
	}

	if set == nil {
		return nil, errNotLoggedIn
	}

	store := tokens.NewStore(logger)
	store.Replace(set)

	logger.Debug("restored tokens",
		slog.String("path", path),
		slog.Any("surfaces", store.Surfaces()),
	)

	return &APISession{
		Store:      store,
		Dispatcher: dispatch.New(httpClient, store, logger, resolved.Network.UserAgent),
		Meta:       meta,
		Resolved:   resolved,
	}, nil
}

// URL joins a surface's base URL with an API path.
func (s *APISession) URL(surface tokens.Surface, path string) (string, error) {
	base, err := baseURL(s.Resolved, surface)
	if err != nil {
		return "", err
	}

	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/"), nil
}

// requestedScopes maps each API surface to the scope requested for it at
// sign-in. Tokens are matched back to surfaces through this list.
func requestedScopes(resolved *config.Resolved) []tokens.Scope {
	return []tokens.Scope{
		{Surface: tokens.SurfaceTransfer, Scope: resolved.API.TransferScope, ResourceServer: transferResourceServer},
		{Surface: tokens.SurfaceSearch, Scope: resolved.API.SearchScope, ResourceServer: searchResourceServer},
	}
}

// Resource server names Globus Auth reports alongside each token.
const (
	transferResourceServer = "transfer.api.globus.org"
	searchResourceServer   = "search.api.globus.org"
)

func baseURL(resolved *config.Resolved, surface tokens.Surface) (string, error) {
	switch surface {
	case tokens.SurfaceTransfer:
		return resolved.API.TransferBaseURL, nil
	case tokens.SurfaceSearch:
		return resolved.API.SearchBaseURL, nil
	default:
		return "", fmt.Errorf("unknown API %q (want %s or %s)", surface, tokens.SurfaceTransfer, tokens.SurfaceSearch)
	}
}
