// Package pkce generates Proof Key for Code Exchange material (RFC 7636) for
// the authorization code flow. Only the S256 method is supported.
package pkce

import (
	"crypto/subtle"

	"golang.org/x/oauth2"
)

// MethodS256 is the only code_challenge_method this client sends.
const MethodS256 = "S256"

// Material is one verifier/challenge pair. It is created fresh for every
// sign-in and the verifier is only ever sent in the token exchange body.
type Material struct {
	Verifier  string
	Challenge string
	Method    string
}

// Generate returns new PKCE material. The verifier is 32 bytes from
// crypto/rand encoded as unpadded base64url (256 bits of entropy).
func Generate() Material {
	v := oauth2.GenerateVerifier()

	return Material{
		Verifier:  v,
		Challenge: Challenge(v),
		Method:    MethodS256,
	}
}

// Challenge computes BASE64URL(SHA256(verifier)) without padding.
func Challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// Verify reports whether verifier hashes to challenge.
func Verify(verifier, challenge string) bool {
	return subtle.ConstantTimeCompare([]byte(Challenge(verifier)), []byte(challenge)) == 1
}

// Discard drops the verifier once the exchange it protects has finished.
func (m *Material) Discard() {
	m.Verifier = ""
}

// Discarded reports whether Discard has been called.
func (m *Material) Discarded() bool {
	return m.Verifier == ""
}
