package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation range constants.
const (
	minPollInterval = 100 * time.Millisecond
	minLogRetention = 1
	minPort         = 1
	maxPort         = 65535
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateAPI(&cfg.API)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

// ErrNoClientID is returned by RequireClientID when no client id has been
// configured by any layer.
var ErrNoClientID = errors.New("client_id is not set (config file, " + EnvClientID + " or --client-id)")

// RequireClientID reports whether sign-in can start. Only commands that talk
// to the identity provider need a client id.
func (r *Resolved) RequireClientID() error {
	if r.Auth.ClientID == "" {
		return ErrNoClientID
	}

	return nil
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	// Globus registers native app clients under a UUID.
	if a.ClientID != "" {
		if _, err := uuid.Parse(a.ClientID); err != nil {
			errs = append(errs, fmt.Errorf("client_id: must be a UUID, got %q", a.ClientID))
		}
	}

	errs = append(errs, validateURL("auth_url", a.AuthURL)...)
	errs = append(errs, validateURL("token_url", a.TokenURL)...)
	errs = append(errs, validateRedirect(a)...)
	errs = append(errs, validateDurationMin("poll_interval", a.PollInterval, minPollInterval)...)
	errs = append(errs, validateDurationNonNeg("consent_timeout", a.ConsentTimeout)...)

	if strings.Contains(a.IdentityScope, ",") {
		errs = append(errs, fmt.Errorf("identity_scope: scopes are space-separated, got %q", a.IdentityScope))
	}

	return errs
}

// validateRedirect requires a loopback listener: the redirect is served by
// this process.
func validateRedirect(a *AuthConfig) []error {
	var errs []error

	if !isLoopback(a.RedirectHost) {
		errs = append(errs, fmt.Errorf("redirect_host: must be a loopback address, got %q", a.RedirectHost))
	}

	if a.RedirectPort < minPort || a.RedirectPort > maxPort {
		errs = append(errs, fmt.Errorf("redirect_port: must be between %d and %d, got %d",
			minPort, maxPort, a.RedirectPort))
	}

	if !strings.HasPrefix(a.RedirectPath, "/") {
		errs = append(errs, fmt.Errorf("redirect_path: must start with /, got %q", a.RedirectPath))
	}

	return errs
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}

	ip := net.ParseIP(host)

	return ip != nil && ip.IsLoopback()
}

func validateAPI(a *APIConfig) []error {
	var errs []error

	errs = append(errs, validateURL("transfer_base_url", a.TransferBaseURL)...)
	errs = append(errs, validateURL("search_base_url", a.SearchBaseURL)...)

	if a.TransferScope == "" {
		errs = append(errs, errors.New("transfer_scope: must not be empty"))
	}

	if a.SearchScope == "" {
		errs = append(errs, errors.New("search_scope: must not be empty"))
	}

	// Tokens are matched to surfaces by scope, so two surfaces cannot share one.
	if a.TransferScope != "" && a.TransferScope == a.SearchScope {
		errs = append(errs, fmt.Errorf("search_scope: must differ from transfer_scope, both are %q", a.SearchScope))
	}

	return errs
}

func validateURL(field, value string) []error {
	u, err := url.Parse(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid URL %q: %w", field, value, err)}
	}

	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return []error{fmt.Errorf("%s: must be an absolute http(s) URL, got %q", field, value)}
	}

	return nil
}

// validateDuration checks that a duration string is valid and meets a minimum.
func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}

// validateDurationNonNeg accepts "0" to mean "no limit".
func validateDurationNonNeg(field, value string) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < 0 {
		return []error{fmt.Errorf("%s: must be >= 0, got %s", field, d)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	if l.LogRetentionDays < minLogRetention {
		errs = append(errs, fmt.Errorf("log_retention_days: must be >= %d, got %d",
			minLogRetention, l.LogRetentionDays))
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	return validateDurationNonNeg("request_timeout", n.RequestTimeout)
}
