package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchJSON = `{
  "@datatype": "GSearchResult",
  "total": 42,
  "count": 2,
  "offset": 0,
  "has_next_page": true,
  "gmeta": [
    {"subject": "doc-1", "entries": [{"content": {"title": "Ocean temps", "files": [{"url": "https://x/1"}]}}]},
    {"subject": "doc-2", "entries": [{"content": {"title": "Sea ice"}}]}
  ]
}`

func TestParseSearch(t *testing.T) {
	res := parseSearch([]byte(searchJSON), []string{"title", "files.0.url"})

	assert.Equal(t, int64(42), res.Total)
	assert.Equal(t, int64(2), res.Count)
	assert.True(t, res.HasNext)
	require.Len(t, res.Hits, 2)

	assert.Equal(t, "doc-1", res.Hits[0].Subject)
	assert.Equal(t, "Ocean temps", res.Hits[0].Fields["title"])
	assert.Equal(t, "https://x/1", res.Hits[0].Fields["files.0.url"])

	// Missing fields render empty.
	assert.Equal(t, "", res.Hits[1].Fields["files.0.url"])
}

func TestParseSearch_NoFields(t *testing.T) {
	res := parseSearch([]byte(searchJSON), nil)

	require.Len(t, res.Hits, 2)
	assert.Nil(t, res.Hits[0].Fields)
}

func TestSearch_Query(t *testing.T) {
	env := newTestEnv(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/index/idx-1/search", r.URL.Path)
		assert.Equal(t, "sea temp\u00e9", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "10", r.URL.Query().Get("offset"))
		assert.Equal(t, "Bearer search-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, searchJSON)
	})
	env.login(t)

	out, err := env.run(t, "search", "--limit", "5", "--offset", "10", "--field", "title", "idx-1", "sea", "tempe\u0301")
	require.NoError(t, err)
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Ocean temps")
	assert.Contains(t, out, "doc-2")
}

func TestSearch_JSON(t *testing.T) {
	env := newTestEnv(t, nil, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, searchJSON)
	})
	env.login(t)

	out, err := env.run(t, "--json", "search", "idx-1", "ocean")
	require.NoError(t, err)

	var res searchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, int64(42), res.Total)
	assert.Len(t, res.Hits, 2)
}

func TestSearch_InvalidLimit(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.login(t)

	_, err := env.run(t, "search", "--limit", "0", "idx-1", "ocean")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--limit")
	assert.Empty(t, env.recorded())
}

func TestUpper(t *testing.T) {
	assert.Equal(t, []string{"TITLE", "FILES.0.URL"}, upper([]string{"title", "files.0.url"}))
	assert.Empty(t, upper(nil))
}
