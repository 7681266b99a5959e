// Package testutil provides shared environment helpers for the live E2E
// tests, which run the built binary against the real Globus APIs. It has no
// internal/ imports so the e2e package can use it.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variables read by the live tests.
const (
	// EnvTestCollection is a Transfer collection the test identity can list.
	EnvTestCollection = "GLOBUS_GO_TEST_COLLECTION"
	// EnvTestIndex is a Search index the test identity can query.
	EnvTestIndex = "GLOBUS_GO_TEST_INDEX"
)

// TokenFileName is the credential file under .testdata/, written by
// `globus-go login --token-file .testdata/tokens.json`.
const TokenFileName = "tokens.json"

// LoadDotEnv loads KEY=VALUE pairs from a .env file. A missing file is not
// an error (CI sets env vars directly). Variables already set in the
// environment take precedence.
func LoadDotEnv(envPath string) error {
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return nil
	}

	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("loading %s: %w", envPath, err)
	}

	return nil
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// FindTestTokenFile locates .testdata/tokens.json relative to the module
// root. Crashes if it does not exist: the live tests cannot sign in
// interactively.
func FindTestTokenFile(moduleRoot string) string {
	path := filepath.Join(moduleRoot, ".testdata", TokenFileName)

	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "FATAL: test credentials not found at "+path)
		fmt.Fprintln(os.Stderr, "Run: go run . login --token-file .testdata/"+TokenFileName)
		os.Exit(1)
	}

	return path
}

// CopyFile copies a file from src to dst with the given permissions.
// Crashes on failure because tests cannot proceed without the file.
func CopyFile(src, dst string, perm os.FileMode) {
	data, err := os.ReadFile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: cannot read %s: %v\n", src, err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: creating %s: %v\n", filepath.Dir(dst), err)
		os.Exit(1)
	}

	if err := os.WriteFile(dst, data, perm); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: writing %s: %v\n", dst, err)
		os.Exit(1)
	}
}
