package main

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/globus-go/internal/config"
	"github.com/tonimelisma/globus-go/internal/tokens"
)

func TestNewAPISession_NotLoggedIn(t *testing.T) {
	r := testResolved(t)
	r.Auth.TokenFile = filepath.Join(t.TempDir(), "tokens.json")

	_, err := NewAPISession(r, http.DefaultClient, slog.Default())
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestNewAPISession_NoTokenPath(t *testing.T) {
	r := testResolved(t)
	r.Auth.TokenFile = ""

	_, err := NewAPISession(r, http.DefaultClient, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token file path")
}

func TestNewAPISession_CorruptFile(t *testing.T) {
	r := testResolved(t)
	r.Auth.TokenFile = filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(r.Auth.TokenFile, []byte("{not json"), 0o600))

	_, err := NewAPISession(r, http.DefaultClient, slog.Default())
	require.Error(t, err)
	assert.NotErrorIs(t, err, errNotLoggedIn)
}

func TestNewAPISession_RestoresTokens(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.login(t)

	r, err := config.Resolve(config.EnvOverrides{}, config.CLIOverrides{ConfigPath: env.configPath})
	require.NoError(t, err)

	sess, err := NewAPISession(r, http.DefaultClient, slog.Default())
	require.NoError(t, err)

	tok, ok := sess.Store.Get(tokens.SurfaceTransfer)
	assert.True(t, ok)
	assert.Equal(t, "transfer-token", tok)

	tok, ok = sess.Store.Get(tokens.SurfaceSearch)
	assert.True(t, ok)
	assert.Equal(t, "search-token", tok)

	assert.Equal(t, "sess-1", sess.Meta[metaSessionID])
}

func TestAPISession_URL(t *testing.T) {
	r := testResolved(t)
	r.API.TransferBaseURL = "https://transfer.example.org/v0.10/"
	r.API.SearchBaseURL = "https://search.example.org/v1"

	sess := &APISession{Resolved: r}

	u, err := sess.URL(tokens.SurfaceTransfer, "/endpoint_search")
	require.NoError(t, err)
	assert.Equal(t, "https://transfer.example.org/v0.10/endpoint_search", u)

	u, err = sess.URL(tokens.SurfaceSearch, "index_list")
	require.NoError(t, err)
	assert.Equal(t, "https://search.example.org/v1/index_list", u)

	_, err = sess.URL("groups", "/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown API "groups"`)
}

func TestRequestedScopes(t *testing.T) {
	r := testResolved(t)

	scopes := requestedScopes(r)
	require.Len(t, scopes, 2)

	assert.Equal(t, tokens.SurfaceTransfer, scopes[0].Surface)
	assert.Equal(t, r.API.TransferScope, scopes[0].Scope)
	assert.Equal(t, "transfer.api.globus.org", scopes[0].ResourceServer)

	assert.Equal(t, tokens.SurfaceSearch, scopes[1].Surface)
	assert.Equal(t, r.API.SearchScope, scopes[1].Scope)
	assert.Equal(t, "search.api.globus.org", scopes[1].ResourceServer)
}
