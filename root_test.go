package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/globus-go/internal/config"
	"github.com/tonimelisma/globus-go/internal/dispatch"
	"github.com/tonimelisma/globus-go/internal/tokenfile"
	"github.com/tonimelisma/globus-go/internal/tokens"
)

const testClientID = "8c6f1c2a-7a4e-4f55-9a59-2d8b0d1f6e3b"

// testEnv is a config file pointing both API surfaces at fake servers, plus a
// token file location inside t.TempDir().
type testEnv struct {
	configPath string
	tokenPath  string
	transfer   *httptest.Server
	search     *httptest.Server

	mu       sync.Mutex
	requests []*http.Request
}

// newTestEnv starts fake Transfer and Search servers. Handlers may be nil, in
// which case the server answers {} to everything.
func newTestEnv(t *testing.T, transfer, search http.HandlerFunc) *testEnv {
	t.Helper()

	clearEnv(t)

	env := &testEnv{}
	env.transfer = httptest.NewServer(env.record(transfer))
	env.search = httptest.NewServer(env.record(search))

	t.Cleanup(env.transfer.Close)
	t.Cleanup(env.search.Close)

	dir := t.TempDir()
	env.tokenPath = filepath.Join(dir, "data", "tokens.json")
	env.configPath = filepath.Join(dir, "config.toml")

	content := fmt.Sprintf(`
[auth]
token_file = %q

[api]
transfer_base_url = %q
search_base_url = %q

[logging]
log_level = "error"
`, env.tokenPath, env.transfer.URL+"/v0.10", env.search.URL+"/v1")

	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0o600))

	return env
}

func (e *testEnv) record(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		e.requests = append(e.requests, r.Clone(context.Background()))
		e.mu.Unlock()

		if h == nil {
			fmt.Fprint(w, `{}`)
			return
		}

		h(w, r)
	}
}

func (e *testEnv) recorded() []*http.Request {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]*http.Request(nil), e.requests...)
}

// login writes a token file as a successful sign-in would.
func (e *testEnv) login(t *testing.T) {
	t.Helper()

	require.NoError(t, tokenfile.Save(e.tokenPath, tokens.Set{
		tokens.SurfaceTransfer: {
			AccessToken:    "transfer-token",
			Scope:          "urn:globus:auth:scope:transfer.api.globus.org:all",
			ResourceServer: "transfer.api.globus.org",
			ExpiresIn:      172800,
		},
		tokens.SurfaceSearch: {
			AccessToken:    "search-token",
			Scope:          "urn:globus:auth:scope:search.api.globus.org:all",
			ResourceServer: "search.api.globus.org",
			ExpiresIn:      172800,
		},
	}, map[string]string{
		metaSessionID: "sess-1",
		metaSavedAt:   "2026-01-02T03:04:05Z",
		metaUsername:  "ada@example.org",
		metaName:      "Ada Lovelace",
	}))
}

// run executes the root command with the test config and returns stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--config", e.configPath, "--quiet"}, args...))

	return captureStdout(t, cmd.Execute)
}

// clearEnv keeps the developer's own GLOBUS_GO_* settings out of tests.
func clearEnv(t *testing.T) {
	t.Helper()

	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvClientID, "")
	t.Setenv(config.EnvTokenFile, "")
}

// captureStdout runs fn with os.Stdout redirected to a pipe.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)

	old := os.Stdout
	os.Stdout = w

	out := make(chan string)

	go func() {
		b, _ := io.ReadAll(r)
		out <- string(b)
	}()

	runErr := fn()

	os.Stdout = old
	w.Close()

	return <-out, runErr
}

func testResolved(t *testing.T) *config.Resolved {
	t.Helper()

	clearEnv(t)

	r, err := config.Resolve(config.EnvOverrides{}, config.CLIOverrides{
		ConfigPath: filepath.Join(t.TempDir(), "missing.toml"),
	})
	require.NoError(t, err)

	return r
}

// --- buildLogger tests ---

func TestBuildLogger_ConfigLevel(t *testing.T) {
	r := testResolved(t)
	r.Logging.LogLevel = "warn"

	logger, closer := buildLogger(r, CLIFlags{}, io.Discard)
	assert.Nil(t, closer)
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
}

func TestBuildLogger_FlagsOverrideConfig(t *testing.T) {
	r := testResolved(t)
	r.Logging.LogLevel = "error"

	logger, _ := buildLogger(r, CLIFlags{Verbose: true}, io.Discard)
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))

	// --quiet wins over --verbose.
	logger, _ = buildLogger(r, CLIFlags{Verbose: true, Quiet: true}, io.Discard)
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelError))
}

func TestBuildLogger_NilConfig(t *testing.T) {
	logger, closer := buildLogger(nil, CLIFlags{}, io.Discard)
	assert.Nil(t, closer)
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_Format(t *testing.T) {
	r := testResolved(t)

	var buf bytes.Buffer

	r.Logging.LogFormat = "text"
	logger, _ := buildLogger(r, CLIFlags{}, &buf)
	logger.Info("hello", slog.String("k", "v"))
	assert.Contains(t, buf.String(), "k=v")

	buf.Reset()

	// auto on a non-terminal writer means JSON.
	r.Logging.LogFormat = "auto"
	logger, _ = buildLogger(r, CLIFlags{}, &buf)
	logger.Info("hello", slog.String("k", "v"))
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func TestBuildLogger_LogFile(t *testing.T) {
	r := testResolved(t)
	r.Logging.LogFile = filepath.Join(t.TempDir(), "logs", "globus-go.log")
	r.Logging.LogFormat = "auto"

	var stderr bytes.Buffer

	logger, closer := buildLogger(r, CLIFlags{}, &stderr)
	require.NotNil(t, closer)

	logger.Info("to file", slog.String("k", "v"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(r.Logging.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)
	assert.Empty(t, stderr.String())
}

func TestUseJSONLogs(t *testing.T) {
	assert.True(t, useJSONLogs("json", os.Stderr))
	assert.False(t, useJSONLogs("text", &bytes.Buffer{}))
	assert.True(t, useJSONLogs("auto", &bytes.Buffer{}))

	f, err := os.Create(filepath.Join(t.TempDir(), "plain"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	assert.True(t, useJSONLogs("auto", f))
}

// --- error presentation ---

func TestDescribeError(t *testing.T) {
	assert.Contains(t, describeError(errNotLoggedIn), "globus-go login")
	assert.Contains(t, describeError(fmt.Errorf("wrapped: %w", dispatch.ErrNoToken)), "globus-go login")

	unauthorized := &dispatch.APIError{HTTPStatus: 401, Code: "AuthenticationFailed", Message: "Token is not active", Err: dispatch.ErrUnauthorized}
	msg := describeError(unauthorized)
	assert.Contains(t, msg, "AuthenticationFailed: Token is not active")
	assert.Contains(t, msg, "may have expired")

	notFound := &dispatch.APIError{HTTPStatus: 404, Code: "ClientError.NotFound", Message: "nope", Err: dispatch.ErrNotFound}
	assert.Equal(t, "Directory Not Found (ClientError.NotFound): nope", describeError(notFound))

	assert.Equal(t, "boom", describeError(errors.New("boom")))
}

func TestMustCLIContext_Missing(t *testing.T) {
	assert.Panics(t, func() { mustCLIContext(context.Background()) })
}

// --- command wiring ---

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"login", "logout", "whoami", "status", "ls", "search", "request", "config"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_ConfigErrorStopsCommand(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[auth]\nredirect_port = -1\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "status"})

	_, err := captureStdout(t, cmd.Execute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestConfigShow(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	out, err := env.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[auth]")
	assert.Contains(t, out, env.tokenPath)
	assert.Contains(t, out, env.transfer.URL)
}

func TestConfigShow_JSONWithOverrides(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	t.Setenv(config.EnvClientID, testClientID)

	out, err := env.run(t, "--json", "--token-file", "/elsewhere/tokens.json", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"ClientID": "`+testClientID+`"`)
	assert.Contains(t, out, `"TokenFile": "/elsewhere/tokens.json"`)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
}
