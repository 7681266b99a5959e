package tokens

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// ErrMissingScope is returned when an exchange response carries no token for
// a requested API surface.
var ErrMissingScope = errors.New("tokens: exchange response missing requested scope")

// Token is one bearer token from the token endpoint, scoped to one resource
// server.
type Token struct {
	AccessToken    string `json:"access_token"`
	Scope          string `json:"scope,omitempty"`
	ResourceServer string `json:"resource_server,omitempty"`
	TokenType      string `json:"token_type,omitempty"`
	ExpiresIn      int    `json:"expires_in,omitempty"`
}

// hasScope reports whether scope appears in the token's space-separated
// scope string.
func (t Token) hasScope(scope string) bool {
	for _, s := range strings.Fields(t.Scope) {
		if s == scope {
			return true
		}
	}

	return false
}

// Payload is the token endpoint response: the token for the first resource
// server at the top level, and one entry per additional resource server in
// other_tokens.
type Payload struct {
	Token

	OtherTokens []Token `json:"other_tokens,omitempty"`
	// IDToken is present when an OIDC scope was requested.
	IDToken string `json:"id_token,omitempty"`
}

// Tokens flattens the payload into the provider's order. Index 0 is the
// top-level token.
func (p Payload) Tokens() []Token {
	out := make([]Token, 0, 1+len(p.OtherTokens))
	if p.AccessToken != "" {
		out = append(out, p.Token)
	}

	return append(out, p.OtherTokens...)
}

// PayloadFromOAuth rebuilds a Payload from the token returned by
// oauth2.Config.Exchange, pulling the provider-specific fields out of Extra.
func PayloadFromOAuth(tok *oauth2.Token) (Payload, error) {
	if tok == nil {
		return Payload{}, errors.New("tokens: nil oauth2 token")
	}

	p := Payload{Token: Token{
		AccessToken:    tok.AccessToken,
		TokenType:      tok.TokenType,
		Scope:          extraString(tok, "scope"),
		ResourceServer: extraString(tok, "resource_server"),
	}, IDToken: extraString(tok, "id_token")}

	if n, ok := tok.Extra("expires_in").(float64); ok {
		p.ExpiresIn = int(n)
	}

	raw := tok.Extra("other_tokens")
	if raw == nil {
		return p, nil
	}

	// Extra hands back decoded JSON as generic maps; round-trip it into
	// typed tokens.
	data, err := json.Marshal(raw)
	if err != nil {
		return Payload{}, fmt.Errorf("tokens: encoding other_tokens: %w", err)
	}

	if err := json.Unmarshal(data, &p.OtherTokens); err != nil {
		return Payload{}, fmt.Errorf("tokens: decoding other_tokens: %w", err)
	}

	return p, nil
}

func extraString(tok *oauth2.Token, key string) string {
	s, _ := tok.Extra(key).(string)
	return s
}

// MapScopes assigns each requested surface the token whose scope or resource
// server matches it. Position in the response is never used. Every requested
// surface must be matched by a non-empty token or ErrMissingScope is returned.
func MapScopes(p Payload, want []Scope) (Set, error) {
	all := p.Tokens()
	set := make(Set, len(want))

	var missing []string

	for _, w := range want {
		tok, ok := findToken(all, w)
		if !ok {
			missing = append(missing, string(w.Surface))
			continue
		}

		set[w.Surface] = tok
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingScope, strings.Join(missing, ", "))
	}

	return set, nil
}

func findToken(all []Token, w Scope) (Token, bool) {
	for _, t := range all {
		if t.AccessToken == "" {
			continue
		}

		if w.Scope != "" && t.hasScope(w.Scope) {
			return t, true
		}

		if w.ResourceServer != "" && t.ResourceServer == w.ResourceServer {
			return t, true
		}
	}

	return Token{}, false
}
