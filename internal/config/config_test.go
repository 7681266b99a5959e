package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_AllFieldsPopulated(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	// Auth defaults
	assert.Empty(t, cfg.Auth.ClientID)
	assert.Equal(t, "https://auth.globus.org/v2/oauth2/authorize", cfg.Auth.AuthURL)
	assert.Equal(t, "https://auth.globus.org/v2/oauth2/token", cfg.Auth.TokenURL)
	assert.Equal(t, "127.0.0.1", cfg.Auth.RedirectHost)
	assert.Equal(t, 8890, cfg.Auth.RedirectPort)
	assert.Equal(t, "/callback", cfg.Auth.RedirectPath)
	assert.Equal(t, "1s", cfg.Auth.PollInterval)
	assert.Equal(t, "5m", cfg.Auth.ConsentTimeout)
	assert.Equal(t, "openid profile email", cfg.Auth.IdentityScope)
	assert.Empty(t, cfg.Auth.TokenFile)

	// API defaults
	assert.Equal(t, "https://transfer.api.globus.org/v0.10", cfg.API.TransferBaseURL)
	assert.Equal(t, "urn:globus:auth:scope:transfer.api.globus.org:all", cfg.API.TransferScope)
	assert.Equal(t, "https://search.api.globus.org/v1", cfg.API.SearchBaseURL)
	assert.Equal(t, "urn:globus:auth:scope:search.api.globus.org:all", cfg.API.SearchScope)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.LogLevel)
	assert.Equal(t, "", cfg.Logging.LogFile)
	assert.Equal(t, "auto", cfg.Logging.LogFormat)
	assert.Equal(t, 30, cfg.Logging.LogRetentionDays)

	// Network defaults
	assert.Equal(t, "60s", cfg.Network.RequestTimeout)
	assert.Empty(t, cfg.Network.UserAgent)
}

func TestDefaultConfig_PassesValidation(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestDefaultConfig_IndependentCopies(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()

	a.Auth.RedirectPort = 1

	assert.Equal(t, 8890, b.Auth.RedirectPort)
}
