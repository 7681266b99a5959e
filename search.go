package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/globus-go/internal/dispatch"
	"github.com/tonimelisma/globus-go/internal/tokens"
)

const defaultSearchLimit = 10

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search INDEX_ID QUERY...",
		Short: "Query a Globus Search index",
		Long: `Query a Globus Search index and list the matching subjects.

--field takes a gjson path evaluated against each result's first entry
content, e.g. --field title or --field 'files.0.url'.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runSearch,
	}

	cmd.Flags().Int("limit", defaultSearchLimit, "maximum number of results")
	cmd.Flags().Int("offset", 0, "number of results to skip")
	cmd.Flags().StringSlice("field", nil, "content field to show as a column (repeatable)")

	return cmd
}

// searchResult is the JSON schema for `search --json`.
type searchResult struct {
	Total   int64         `json:"total"`
	Count   int64         `json:"count"`
	Offset  int64         `json:"offset"`
	HasNext bool          `json:"has_next_page"`
	Hits    []searchEntry `json:"hits"`
}

type searchEntry struct {
	Subject string            `json:"subject"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	fields, _ := cmd.Flags().GetStringSlice("field")

	if limit < 1 {
		return fmt.Errorf("--limit must be at least 1, got %d", limit)
	}

	sess, err := NewAPISession(cc.Cfg, newHTTPClient(cc.Cfg), cc.Logger)
	if err != nil {
		return err
	}

	u, err := sess.URL(tokens.SurfaceSearch, "/index/"+url.PathEscape(args[0])+"/search")
	if err != nil {
		return err
	}

	q := norm.NFC.String(strings.Join(args[1:], " "))

	raw, err := sess.Dispatcher.Request(ctx, tokens.SurfaceSearch, u, dispatch.Options{
		Query: url.Values{
			"q":      {q},
			"limit":  {strconv.Itoa(limit)},
			"offset": {strconv.Itoa(offset)},
		},
	})
	if err != nil {
		return err
	}

	res := parseSearch(raw, fields)

	if cc.Flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(res)
	}

	printSearchTable(cc, res, fields)

	return nil
}

// parseSearch reads a GSearchResult document. Requested fields are looked up
// in the first entry's content of each hit.
func parseSearch(raw []byte, fields []string) searchResult {
	doc := gjson.ParseBytes(raw)

	res := searchResult{
		Total:   doc.Get("total").Int(),
		Count:   doc.Get("count").Int(),
		Offset:  doc.Get("offset").Int(),
		HasNext: doc.Get("has_next_page").Bool(),
	}

	for _, hit := range doc.Get("gmeta").Array() {
		e := searchEntry{Subject: hit.Get("subject").String()}

		if len(fields) > 0 {
			content := hit.Get("entries.0.content")
			e.Fields = make(map[string]string, len(fields))

			for _, f := range fields {
				e.Fields[f] = content.Get(f).String()
			}
		}

		res.Hits = append(res.Hits, e)
	}

	return res
}

func printSearchTable(cc *CLIContext, res searchResult, fields []string) {
	headers := append([]string{"SUBJECT"}, upper(fields)...)
	rows := make([][]string, 0, len(res.Hits))

	for _, h := range res.Hits {
		row := []string{h.Subject}
		for _, f := range fields {
			row = append(row, h.Fields[f])
		}

		rows = append(rows, row)
	}

	printTable(os.Stdout, headers, rows)

	more := ""
	if res.HasNext {
		more = ", more available"
	}

	cc.Statusf("\n%d of %d results%s\n", len(res.Hits), res.Total, more)
}

func upper(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}

	return out
}
