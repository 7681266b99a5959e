package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tonimelisma/globus-go/internal/config"
	"github.com/tonimelisma/globus-go/internal/dispatch"
)

// version is set at build time via ldflags.
var version = "dev"

// logFileMaxSizeMB is the size at which lumberjack rotates log_file.
const logFileMaxSizeMB = 10

// CLIFlags holds the persistent flags shared by every subcommand.
type CLIFlags struct {
	ConfigPath string
	ClientID   string
	TokenFile  string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext is built once per invocation by the root pre-run and carried in
// the command's context.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Resolved
	Logger *slog.Logger

	logCloser io.Closer
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext installed by the root pre-run. Every
// subcommand runs after it, so a missing context is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("CLIContext missing from command context")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	flags := &CLIFlags{}

	cmd := &cobra.Command{
		Use:     "globus-go",
		Short:   "Globus CLI client",
		Long:    "Sign in to Globus and browse Transfer collections and Search indexes.",
		Version: version,
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := newCLIContext(cmd, *flags)
			if err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			if cc.logCloser != nil {
				return cc.logCloser.Close()
			}

			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file path")
	pf.StringVar(&flags.ClientID, "client-id", "", "OAuth2 client id (overrides config and "+config.EnvClientID+")")
	pf.StringVar(&flags.TokenFile, "token-file", "", "token file path (overrides config and "+config.EnvTokenFile+")")
	pf.BoolVar(&flags.JSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newRequestCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// newCLIContext resolves the effective configuration from the four-layer
// override chain and builds the logger from it.
func newCLIContext(cmd *cobra.Command, flags CLIFlags) (*CLIContext, error) {
	cli := config.CLIOverrides{ConfigPath: flags.ConfigPath}

	// Only pass flags the user explicitly set, so an empty value can still
	// override the lower layers when given on purpose.
	if cmd.Flags().Changed("client-id") {
		cli.ClientID = &flags.ClientID
	}

	if cmd.Flags().Changed("token-file") {
		cli.TokenFile = &flags.TokenFile
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, closer := buildLogger(resolved, flags, os.Stderr)

	logger.Debug("config resolved",
		slog.String("config_path", resolved.ConfigPath),
		slog.String("token_file", resolved.Auth.TokenFile),
	)

	return &CLIContext{
		Flags:     flags,
		Cfg:       resolved,
		Logger:    logger,
		logCloser: closer,
	}, nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win. With log_file set, output
// goes to a rotating file instead of stderr; the returned closer is non-nil
// only in that case.
func buildLogger(cfg *config.Resolved, flags CLIFlags, stderr io.Writer) (*slog.Logger, io.Closer) {
	level := slog.LevelInfo

	// Config-based log level (lower priority than CLI flags).
	if cfg != nil {
		switch cfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	// CLI flags override config (highest priority).
	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	out := stderr

	var closer io.Closer

	format := "auto"

	if cfg != nil {
		format = cfg.Logging.LogFormat

		if cfg.Logging.LogFile != "" {
			lj := &lumberjack.Logger{
				Filename: cfg.Logging.LogFile,
				MaxSize:  logFileMaxSizeMB,
				MaxAge:   cfg.Logging.LogRetentionDays,
				Compress: true,
			}
			out = lj
			closer = lj
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	if useJSONLogs(format, out) {
		return slog.New(slog.NewJSONHandler(out, opts)), closer
	}

	return slog.New(slog.NewTextHandler(out, opts)), closer
}

// useJSONLogs resolves log_format "auto": text for a terminal, JSON for
// files and pipes.
func useJSONLogs(format string, out io.Writer) bool {
	switch format {
	case "json":
		return true
	case "text":
		return false
	}

	f, ok := out.(*os.File)
	if !ok {
		return true
	}

	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}

// newHTTPClient returns the client used for API requests, bounded by
// request_timeout when it is non-zero.
func newHTTPClient(cfg *config.Resolved) *http.Client {
	return &http.Client{Timeout: cfg.RequestTimeout}
}

// exitOnError prints a user-friendly error message to stderr and exits.
// API errors are rendered through the error taxonomy.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", describeError(err))
	os.Exit(1)
}

// describeError adds a hint for the errors a user can fix by signing in.
func describeError(err error) string {
	msg := dispatch.Describe(err)

	switch {
	case errors.Is(err, errNotLoggedIn), errors.Is(err, dispatch.ErrNoToken):
		return msg + "\nRun 'globus-go login' first."
	case errors.Is(err, dispatch.ErrUnauthorized):
		return msg + "\nYour session may have expired. Run 'globus-go login' again."
	default:
		return msg
	}
}
