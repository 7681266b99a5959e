package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values, so a first run needs no
// config file.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Resolve config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (returns defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Apply env overrides
	if env.ClientID != "" {
		cfg.Auth.ClientID = env.ClientID
	}

	if env.TokenFile != "" {
		cfg.Auth.TokenFile = env.TokenFile
	}

	// 4. Apply CLI overrides (pointer fields: nil = not specified)
	if cli.ClientID != nil {
		cfg.Auth.ClientID = *cli.ClientID
	}

	if cli.TokenFile != nil {
		cfg.Auth.TokenFile = *cli.TokenFile
	}

	if cfg.Auth.TokenFile == "" {
		cfg.Auth.TokenFile = DefaultTokenPath()
	}

	cfg.Auth.TokenFile = expandTilde(cfg.Auth.TokenFile)
	cfg.Logging.LogFile = expandTilde(cfg.Logging.LogFile)

	// 5. Validate the final result; overrides bypass the file-level check.
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return newResolved(cfgPath, cfg), nil
}

// newResolved parses durations. Validate has already accepted them.
func newResolved(path string, cfg *Config) *Resolved {
	return &Resolved{
		ConfigPath:     path,
		Auth:           cfg.Auth,
		API:            cfg.API,
		Logging:        cfg.Logging,
		Network:        cfg.Network,
		PollInterval:   durationOrZero(cfg.Auth.PollInterval),
		ConsentTimeout: durationOrZero(cfg.Auth.ConsentTimeout),
		RequestTimeout: durationOrZero(cfg.Network.RequestTimeout),
	}
}

// durationOrZero parses a validated duration string.
func durationOrZero(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}

	return d
}

// RedirectURL is the loopback URL the identity provider redirects back to.
func (r *Resolved) RedirectURL() string {
	return "http://" + net.JoinHostPort(r.Auth.RedirectHost, strconv.Itoa(r.Auth.RedirectPort)) + r.Auth.RedirectPath
}
