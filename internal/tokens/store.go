// Package tokens holds the bearer tokens obtained by sign-in, one per API
// surface. The Store has a single writer (the auth controller) and any number
// of readers (the dispatcher and the CLI). Every write replaces the whole set
// in one atomic swap.
package tokens

import (
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
)

// Surface names an upstream API that needs its own scoped token.
type Surface string

// Known surfaces.
const (
	SurfaceTransfer Surface = "transfer"
	SurfaceSearch   Surface = "search"
)

// Scope binds a surface to the scope string requested for it and the
// resource server that issues tokens for it.
type Scope struct {
	Surface        Surface
	Scope          string
	ResourceServer string
}

// Set maps surfaces to tokens. A Set held by the Store is never mutated.
type Set map[Surface]Token

// Store is the current TokenSet.
type Store struct {
	cur    atomic.Pointer[Set]
	logger *slog.Logger
}

// NewStore returns an empty Store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{logger: logger}
}

// SetFromExchange maps an exchange payload onto the requested surfaces and
// installs the result. On ErrMissingScope the previous set is left as it was.
func (s *Store) SetFromExchange(p Payload, want []Scope) error {
	set, err := MapScopes(p, want)
	if err != nil {
		s.logger.Warn("token exchange payload rejected", slog.String("error", err.Error()))
		return err
	}

	s.Replace(set)

	return nil
}

// Replace installs a copy of set. A nil or empty set clears the store.
func (s *Store) Replace(set Set) {
	if len(set) == 0 {
		s.Clear()
		return
	}

	cp := maps.Clone(set)
	s.cur.Store(&cp)

	s.logger.Info("token set replaced", slog.Any("surfaces", surfaceNames(cp)))
}

// Get returns the access token for surface. ok is false before any exchange,
// after Clear, and for surfaces the last exchange did not cover.
func (s *Store) Get(surface Surface) (string, bool) {
	tok, ok := s.Token(surface)
	if !ok {
		return "", false
	}

	return tok.AccessToken, true
}

// Token returns the full token record for surface.
func (s *Store) Token(surface Surface) (Token, bool) {
	p := s.cur.Load()
	if p == nil {
		return Token{}, false
	}

	tok, ok := (*p)[surface]
	if !ok || tok.AccessToken == "" {
		return Token{}, false
	}

	return tok, true
}

// Snapshot returns a copy of the current set, or nil when empty.
func (s *Store) Snapshot() Set {
	p := s.cur.Load()
	if p == nil {
		return nil
	}

	return maps.Clone(*p)
}

// Surfaces lists the surfaces that currently hold a token, sorted.
func (s *Store) Surfaces() []Surface {
	p := s.cur.Load()
	if p == nil {
		return nil
	}

	return surfaceNames(*p)
}

// Clear drops every token.
func (s *Store) Clear() {
	if s.cur.Swap(nil) != nil {
		s.logger.Info("token set cleared")
	}
}

func surfaceNames(set Set) []Surface {
	return slices.Sorted(maps.Keys(set))
}
