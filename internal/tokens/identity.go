package tokens

import (
	"errors"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAudience is returned when an id_token was not issued to this client.
var ErrAudience = errors.New("tokens: id_token audience does not include client")

// Identity is the signed-in user as named by the OIDC id_token.
type Identity struct {
	Subject  string `json:"sub"`
	Username string `json:"preferred_username,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Provider string `json:"identity_provider_display_name,omitempty"`
}

// Display is the name shown for the identity in status output.
func (i Identity) Display() string {
	switch {
	case i.Username != "":
		return i.Username
	case i.Email != "":
		return i.Email
	default:
		return i.Subject
	}
}

type idTokenClaims struct {
	jwt.RegisteredClaims

	PreferredUsername           string `json:"preferred_username"`
	Name                        string `json:"name"`
	Email                       string `json:"email"`
	IdentityProviderDisplayName string `json:"identity_provider_display_name"`
}

// ParseIdentity reads the claims of an id_token. The signature is not
// checked: the token must come straight from the token endpoint over TLS.
// A non-empty clientID must appear in the token's audience.
func ParseIdentity(raw, clientID string) (Identity, error) {
	var claims idTokenClaims

	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return Identity{}, fmt.Errorf("tokens: parsing id_token: %w", err)
	}

	if claims.Subject == "" {
		return Identity{}, errors.New("tokens: id_token has no subject")
	}

	if clientID != "" && !slices.Contains(claims.Audience, clientID) {
		return Identity{}, fmt.Errorf("%w %s", ErrAudience, clientID)
	}

	return Identity{
		Subject:  claims.Subject,
		Username: claims.PreferredUsername,
		Name:     claims.Name,
		Email:    claims.Email,
		Provider: claims.IdentityProviderDisplayName,
	}, nil
}
