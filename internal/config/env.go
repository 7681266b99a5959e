package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig    = "GLOBUS_GO_CONFIG"
	EnvClientID  = "GLOBUS_GO_CLIENT_ID"
	EnvTokenFile = "GLOBUS_GO_TOKEN_FILE"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // GLOBUS_GO_CONFIG: override config file path
	ClientID   string // GLOBUS_GO_CLIENT_ID: OAuth2 client id
	TokenFile  string // GLOBUS_GO_TOKEN_FILE: token file path
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		ClientID:   os.Getenv(EnvClientID),
		TokenFile:  os.Getenv(EnvTokenFile),
	}
}
