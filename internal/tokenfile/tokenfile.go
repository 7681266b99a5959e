// Package tokenfile persists the signed-in TokenSet between CLI invocations.
// A token file holds one bearer token per API surface plus a small metadata
// map (session id, sign-in time). It is a leaf package: the auth controller
// and the CLI both use it without importing each other.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tonimelisma/globus-go/internal/tokens"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the token file's directory.
const DirPerms = 0o700

// File is the on-disk format.
type File struct {
	Tokens tokens.Set        `json:"tokens"`
	Meta   map[string]string `json:"meta,omitempty"`
}

// Load reads a token file. Returns (nil, nil, nil) if the file does not exist.
func Load(path string) (tokens.Set, map[string]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var tf File
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if len(tf.Tokens) == 0 {
		return nil, nil, fmt.Errorf("tokenfile: %s has no tokens (re-login required)", path)
	}

	return tf.Tokens, tf.Meta, nil
}

// Save writes a token file atomically (write-to-temp + rename) with 0600
// permissions. Never logs token values.
func Save(path string, set tokens.Set, meta map[string]string) error {
	if len(set) == 0 {
		return errors.New("tokenfile: refusing to save an empty token set")
	}

	data, err := json.MarshalIndent(File{Tokens: set, Meta: meta}, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, mkErr)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".tokens-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	success = true

	return nil
}

// Remove deletes the token file. A missing file is not an error.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tokenfile: removing %s: %w", path, err)
	}

	return nil
}
