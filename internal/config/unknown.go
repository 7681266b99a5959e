package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownSectionKeys are the valid keys of each config section.
var knownSectionKeys = map[string][]string{
	"auth": {
		"client_id", "auth_url", "token_url", "redirect_host", "redirect_port",
		"redirect_path", "poll_interval", "consent_timeout", "token_file",
		"identity_scope",
	},
	"api": {
		"transfer_base_url", "transfer_scope", "search_base_url", "search_scope",
	},
	"logging": {
		"log_level", "log_file", "log_format", "log_retention_days",
	},
	"network": {
		"request_timeout", "user_agent",
	},
}

// knownSectionsList is the sorted list of section names, for deterministic
// suggestions when two candidates have the same edit distance.
var knownSectionsList = func() []string {
	names := make([]string, 0, len(knownSectionKeys))
	for name := range knownSectionKeys {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		if err := buildKeyError(key); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// buildKeyError creates a descriptive error for one undecoded key. Keys
// below an unknown section are reported once, through the section itself.
func buildKeyError(key toml.Key) error {
	section := key[0]

	keys, known := knownSectionKeys[section]

	switch {
	case len(key) == 1 && !known:
		return topLevelKeyError(section)
	case !known, len(key) > 2:
		// Reported through the enclosing table's own undecoded key.
		return nil
	}

	field := key[1]

	if suggestion := closestMatch(field, sortedCopy(keys)); suggestion != "" {
		return fmt.Errorf("unknown config key %q in [%s], did you mean %q?", field, section, suggestion)
	}

	return fmt.Errorf("unknown config key %q in [%s]", field, section)
}

// topLevelKeyError handles a key outside any section: either a misspelled
// section or a valid key that is missing its section header.
func topLevelKeyError(name string) error {
	for _, section := range knownSectionsList {
		for _, k := range knownSectionKeys[section] {
			if k == name {
				return fmt.Errorf("unknown config key %q, it belongs in [%s]", name, section)
			}
		}
	}

	if suggestion := closestMatch(name, knownSectionsList); suggestion != "" {
		return fmt.Errorf("unknown config key %q, did you mean [%s]?", name, suggestion)
	}

	return fmt.Errorf("unknown config key %q", name)
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)

	return out
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(strings.ToLower(unknown), k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Use single-row optimization to avoid allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
