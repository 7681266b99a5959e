// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for globus-go. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
// Every section is optional; missing keys keep their defaults.
type Config struct {
	Auth    AuthConfig    `toml:"auth"`
	API     APIConfig     `toml:"api"`
	Logging LoggingConfig `toml:"logging"`
	Network NetworkConfig `toml:"network"`
}

// AuthConfig holds the OAuth2 client identity, identity-provider endpoints,
// the loopback redirect and the sign-in timing.
type AuthConfig struct {
	ClientID       string `toml:"client_id"`
	AuthURL        string `toml:"auth_url"`
	TokenURL       string `toml:"token_url"`
	RedirectHost   string `toml:"redirect_host"`
	RedirectPort   int    `toml:"redirect_port"`
	RedirectPath   string `toml:"redirect_path"`
	PollInterval   string `toml:"poll_interval"`
	ConsentTimeout string `toml:"consent_timeout"`
	TokenFile      string `toml:"token_file"`
	// IdentityScope is requested alongside the API scopes so the exchange
	// returns an OIDC id_token naming the signed-in user. Empty disables it.
	IdentityScope string `toml:"identity_scope"`
}

// APIConfig holds the base URL and requested scope of each API surface.
type APIConfig struct {
	TransferBaseURL string `toml:"transfer_base_url"`
	TransferScope   string `toml:"transfer_scope"`
	SearchBaseURL   string `toml:"search_base_url"`
	SearchScope     string `toml:"search_scope"`
}

// LoggingConfig controls log output behavior: level, format, and rotation.
type LoggingConfig struct {
	LogLevel         string `toml:"log_level"`
	LogFile          string `toml:"log_file"`
	LogFormat        string `toml:"log_format"`
	LogRetentionDays int    `toml:"log_retention_days"`
}

// NetworkConfig controls HTTP client behavior for API requests.
type NetworkConfig struct {
	RequestTimeout string `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to the zero value".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	ClientID   *string // --client-id flag
	TokenFile  *string // --token-file flag
}

// Resolved is the effective configuration after all override layers have
// been applied, with durations parsed and paths expanded.
type Resolved struct {
	ConfigPath string

	Auth    AuthConfig
	API     APIConfig
	Logging LoggingConfig
	Network NetworkConfig

	PollInterval   time.Duration
	ConsentTimeout time.Duration
	RequestTimeout time.Duration
}
