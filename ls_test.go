package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingJSON = `{
  "DATA_TYPE": "file_list",
  "path": "/~/data/",
  "DATA": [
    {"name": "runs", "type": "dir", "size": 4096, "last_modified": "2026-03-01 10:00:00+00:00", "permissions": "0755"},
    {"name": "notes.txt", "type": "file", "size": 2048, "last_modified": "2026-03-02 11:30:00+00:00", "permissions": "0644"}
  ]
}`

func TestParseListing(t *testing.T) {
	items, dir := parseListing([]byte(listingJSON))

	assert.Equal(t, "/~/data/", dir)
	require.Len(t, items, 2)
	assert.Equal(t, lsItem{
		Name: "runs", Type: "dir", Size: 4096,
		LastModified: "2026-03-01 10:00:00+00:00", Permissions: "0755",
	}, items[0])
	assert.Equal(t, int64(2048), items[1].Size)
}

func TestParseListing_Empty(t *testing.T) {
	items, dir := parseListing([]byte(`{}`))
	assert.Empty(t, items)
	assert.Empty(t, dir)
}

func TestNormalizePath(t *testing.T) {
	// "é" as e + combining acute accent.
	decomposed := "/~/cafe\u0301"

	assert.Equal(t, "/~/caf\u00e9/", normalizePath(decomposed))
	assert.Equal(t, "/~/data/", normalizePath("/~/data/"))
	assert.Equal(t, "/~/data/", normalizePath("/~/data"))
	assert.Empty(t, normalizePath(""))
}

func TestLsModified(t *testing.T) {
	assert.Equal(t, "-", lsModified(""))
	assert.Equal(t, "yesterday", lsModified("yesterday"))

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, formatTime(ts), lsModified("2026-03-01 10:00:00+00:00"))
}

func TestLs_SendsNormalizedPath(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0.10/operation/endpoint/ep-1/ls", r.URL.Path)
		assert.Equal(t, "/~/caf\u00e9/", r.URL.Query().Get("path"))
		assert.Equal(t, "1", r.URL.Query().Get("show_hidden"))
		assert.Equal(t, "Bearer transfer-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, listingJSON)
	}, nil)
	env.login(t)

	out, err := env.run(t, "ls", "--all", "ep-1", "/~/cafe\u0301")
	require.NoError(t, err)
	assert.Contains(t, out, "runs/")
	assert.Contains(t, out, "notes.txt")
	assert.Contains(t, out, "NAME")
	assert.Len(t, env.recorded(), 1)
}

func TestLs_JSON(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("path"))
		assert.Equal(t, "0", r.URL.Query().Get("show_hidden"))
		fmt.Fprint(w, listingJSON)
	}, nil)
	env.login(t)

	out, err := env.run(t, "--json", "ls", "ep-1")
	require.NoError(t, err)

	var items []lsItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	assert.Len(t, items, 2)
}

func TestLs_LogsListingSummary(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingJSON)
	}, nil)
	env.login(t)

	logPath := filepath.Join(t.TempDir(), "globus-go.log")

	cfg, err := os.ReadFile(env.configPath)
	require.NoError(t, err)

	cfg = append(cfg, fmt.Sprintf("log_format = \"json\"\nlog_file = %q\n", logPath)...)
	require.NoError(t, os.WriteFile(env.configPath, cfg, 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", env.configPath, "--verbose", "ls", "ep-1"})

	_, err = captureStdout(t, cmd.Execute)
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	var found map[string]any

	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))

		if rec["msg"] == "listed directory" {
			found = rec
		}
	}

	require.NotNil(t, found, "no listing record in %s", data)
	assert.Equal(t, "DEBUG", found["level"])
	assert.Equal(t, "ep-1", found["collection"])
	assert.Equal(t, "/~/data/", found["path"])
	assert.Equal(t, float64(2), found["count"])
}

func TestLs_ErrorCategory(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"code":"ExternalError.DirListingFailed.GCDisconnected","message":"endpoint offline"}`)
	}, nil)
	env.login(t)

	_, err := env.run(t, "ls", "ep-1")
	require.Error(t, err)
	assert.Equal(t,
		"Globus Connect Not Running (ExternalError.DirListingFailed.GCDisconnected): endpoint offline",
		describeError(err))
}

func TestLs_NotLoggedIn(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	_, err := env.run(t, "ls", "ep-1")
	assert.ErrorIs(t, err, errNotLoggedIn)
	assert.Empty(t, env.recorded())
}
