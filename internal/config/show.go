package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, showing the
// effective values after all four override layers have been applied.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", r.ConfigPath)

	renderAuthSection(ew, &r.Auth)
	renderAPISection(ew, &r.API)
	renderLoggingSection(ew, &r.Logging)
	renderNetworkSection(ew, &r.Network)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderAuthSection(ew *errWriter, a *AuthConfig) {
	ew.printf("[auth]\n")

	if a.ClientID != "" {
		ew.printf("  client_id       = %q\n", a.ClientID)
	} else {
		ew.printf("  # client_id is not set\n")
	}

	ew.printf("  auth_url        = %q\n", a.AuthURL)
	ew.printf("  token_url       = %q\n", a.TokenURL)
	ew.printf("  redirect_host   = %q\n", a.RedirectHost)
	ew.printf("  redirect_port   = %d\n", a.RedirectPort)
	ew.printf("  redirect_path   = %q\n", a.RedirectPath)
	ew.printf("  poll_interval   = %q\n", a.PollInterval)
	ew.printf("  consent_timeout = %q\n", a.ConsentTimeout)
	ew.printf("  token_file      = %q\n", a.TokenFile)
	ew.printf("  identity_scope  = %q\n", a.IdentityScope)
	ew.printf("\n")
}

func renderAPISection(ew *errWriter, a *APIConfig) {
	ew.printf("[api]\n")
	ew.printf("  transfer_base_url = %q\n", a.TransferBaseURL)
	ew.printf("  transfer_scope    = %q\n", a.TransferScope)
	ew.printf("  search_base_url   = %q\n", a.SearchBaseURL)
	ew.printf("  search_scope      = %q\n", a.SearchScope)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level          = %q\n", l.LogLevel)

	if l.LogFile != "" {
		ew.printf("  log_file           = %q\n", l.LogFile)
	}

	ew.printf("  log_format         = %q\n", l.LogFormat)
	ew.printf("  log_retention_days = %d\n", l.LogRetentionDays)
	ew.printf("\n")
}

func renderNetworkSection(ew *errWriter, n *NetworkConfig) {
	ew.printf("[network]\n")
	ew.printf("  request_timeout = %q\n", n.RequestTimeout)

	if n.UserAgent != "" {
		ew.printf("  user_agent      = %q\n", n.UserAgent)
	}
}
