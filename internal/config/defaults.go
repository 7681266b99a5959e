package config

// Default values for configuration options. These represent "layer 0" of the
// override chain and point at the public Globus services.
const (
	defaultAuthURL          = "https://auth.globus.org/v2/oauth2/authorize"
	defaultTokenURL         = "https://auth.globus.org/v2/oauth2/token"
	defaultRedirectHost     = "127.0.0.1"
	defaultRedirectPort     = 8890
	defaultRedirectPath     = "/callback"
	defaultPollInterval     = "1s"
	defaultConsentTimeout   = "5m"
	defaultIdentityScope    = "openid profile email"
	defaultTransferBaseURL  = "https://transfer.api.globus.org/v0.10"
	defaultTransferScope    = "urn:globus:auth:scope:transfer.api.globus.org:all"
	defaultSearchBaseURL    = "https://search.api.globus.org/v1"
	defaultSearchScope      = "urn:globus:auth:scope:search.api.globus.org:all"
	defaultLogLevel         = "info"
	defaultLogFormat        = "auto"
	defaultLogRetentionDays = 30
	defaultRequestTimeout   = "60s"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Auth:    defaultAuthConfig(),
		API:     defaultAPIConfig(),
		Logging: defaultLoggingConfig(),
		Network: defaultNetworkConfig(),
	}
}

// client_id and token_file have no static default: the former must be
// registered per installation, the latter depends on the data directory.
func defaultAuthConfig() AuthConfig {
	return AuthConfig{
		AuthURL:        defaultAuthURL,
		TokenURL:       defaultTokenURL,
		RedirectHost:   defaultRedirectHost,
		RedirectPort:   defaultRedirectPort,
		RedirectPath:   defaultRedirectPath,
		PollInterval:   defaultPollInterval,
		ConsentTimeout: defaultConsentTimeout,
		IdentityScope:  defaultIdentityScope,
	}
}

func defaultAPIConfig() APIConfig {
	return APIConfig{
		TransferBaseURL: defaultTransferBaseURL,
		TransferScope:   defaultTransferScope,
		SearchBaseURL:   defaultSearchBaseURL,
		SearchScope:     defaultSearchScope,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:         defaultLogLevel,
		LogFormat:        defaultLogFormat,
		LogRetentionDays: defaultLogRetentionDays,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		RequestTimeout: defaultRequestTimeout,
	}
}
