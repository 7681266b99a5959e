package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Shape(t *testing.T) {
	m := Generate()

	assert.Len(t, m.Verifier, 43, "32 bytes as unpadded base64url")
	assert.Equal(t, MethodS256, m.Method)
	assert.Equal(t, Challenge(m.Verifier), m.Challenge)
	assert.True(t, Verify(m.Verifier, m.Challenge))
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)

	for range 64 {
		m := Generate()
		require.False(t, seen[m.Verifier], "verifier repeated")
		seen[m.Verifier] = true
	}
}

func TestChallenge_DeterministicAndURLSafe(t *testing.T) {
	verifiers := []string{
		"dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
		strings.Repeat("a", 43),
		strings.Repeat("~._-", 32),
	}

	for _, v := range verifiers {
		first := Challenge(v)
		second := Challenge(v)

		assert.Equal(t, first, second)
		assert.NotContains(t, first, "+")
		assert.NotContains(t, first, "/")
		assert.NotContains(t, first, "=")
	}
}

func TestChallenge_RFC7636Vector(t *testing.T) {
	// Appendix B of RFC 7636.
	got := Challenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", got)
}

func TestChallenge_MatchesManualDerivation(t *testing.T) {
	v := Generate().Verifier
	sum := sha256.Sum256([]byte(v))

	want := base64.StdEncoding.EncodeToString(sum[:])
	want = strings.NewReplacer("+", "-", "/", "_", "=", "").Replace(want)

	assert.Equal(t, want, Challenge(v))
}

func TestVerify_Mismatch(t *testing.T) {
	a := Generate()
	b := Generate()

	assert.False(t, Verify(a.Verifier, b.Challenge))
}

func TestDiscard(t *testing.T) {
	m := Generate()
	require.False(t, m.Discarded())

	m.Discard()

	assert.True(t, m.Discarded())
	assert.Empty(t, m.Verifier)
	assert.NotEmpty(t, m.Challenge)
}
