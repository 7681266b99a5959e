package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/globus-go/internal/auth"
	"github.com/tonimelisma/globus-go/internal/dispatch"
	"github.com/tonimelisma/globus-go/internal/tokenfile"
	"github.com/tonimelisma/globus-go/internal/tokens"
)

// Token file metadata keys.
const (
	metaSessionID = "session_id"
	metaSavedAt   = "saved_at"
	metaClientID  = "client_id"
	metaSubject   = "identity_sub"
	metaUsername  = "identity_username"
	metaName      = "identity_name"
	metaProvider  = "identity_provider"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Globus in your browser (authorization code + PKCE)",
		Long: `Sign in to Globus with the authorization code flow and PKCE.

The sign-in page opens in your default browser and redirects back to a
listener on this machine. With --no-browser the URL is printed (and copied
to the clipboard when one is available) so you can open it yourself, e.g.
over SSH with the redirect port forwarded.`,
		RunE: runLogin,
	}

	cmd.Flags().Bool("no-browser", false, "print the sign-in URL instead of opening a browser")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved tokens",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Check the saved tokens against the Transfer and Search APIs",
		RunE:  runWhoami,
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved sign-in without contacting Globus",
		RunE:  runStatus,
	}
}

// newController wires the sign-in controller to the system browser and the
// resolved endpoints.
func newController(cc *CLIContext, store *tokens.Store, noBrowser bool) (*auth.Controller, error) {
	if err := cc.Cfg.RequireClientID(); err != nil {
		return nil, err
	}

	host, err := auth.NewBrowserHost(cc.Cfg.RedirectURL(), cc.Logger)
	if err != nil {
		return nil, err
	}

	if noBrowser {
		host.OpenURL = printAuthURL(os.Stderr, clipboard.WriteAll, cc.Logger)
	}

	return auth.NewController(auth.Config{
		ClientID:       cc.Cfg.Auth.ClientID,
		AuthURL:        cc.Cfg.Auth.AuthURL,
		TokenURL:       cc.Cfg.Auth.TokenURL,
		RedirectURL:    cc.Cfg.RedirectURL(),
		Scopes:         requestedScopes(cc.Cfg),
		IdentityScope:  cc.Cfg.Auth.IdentityScope,
		PollInterval:   cc.Cfg.PollInterval,
		ConsentTimeout: cc.Cfg.ConsentTimeout,
	}, host, store, newHTTPClient(cc.Cfg), cc.Logger), nil
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := shutdownContext(cmd.Context(), cc.Logger)

	noBrowser, _ := cmd.Flags().GetBool("no-browser")
	store := tokens.NewStore(cc.Logger)

	controller, err := newController(cc, store, noBrowser)
	if err != nil {
		return err
	}

	sess, err := controller.BeginSignIn(ctx)
	if err != nil {
		return err
	}

	cc.Statusf("Waiting for you to sign in via your browser...\n")

	if err := sess.Wait(ctx); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	meta := map[string]string{
		metaSessionID: sess.ID,
		metaSavedAt:   time.Now().UTC().Format(time.RFC3339),
		metaClientID:  cc.Cfg.Auth.ClientID,
	}

	if id, ok := sess.Identity(); ok {
		meta[metaSubject] = id.Subject
		meta[metaUsername] = id.Display()
		meta[metaName] = id.Name
		meta[metaProvider] = id.Provider
	}

	if err := tokenfile.Save(cc.Cfg.Auth.TokenFile, store.Snapshot(), meta); err != nil {
		return err
	}

	cc.Logger.Info("login successful",
		slog.String("session", sess.ID),
		slog.String("token_file", cc.Cfg.Auth.TokenFile),
	)
	if user := meta[metaUsername]; user != "" {
		cc.Statusf("Login successful. Signed in as %s.\n", user)
	} else {
		cc.Statusf("Login successful.\n")
	}

	return nil
}

// printAuthURL returns an opener that shows the sign-in URL instead of
// launching a browser. Clipboard failures (no display, no xclip) are logged
// and otherwise ignored.
func printAuthURL(w io.Writer, copyURL func(string) error, logger *slog.Logger) func(string) error {
	return func(authURL string) error {
		fmt.Fprintf(w, "Open this URL in your browser:\n%s\n", authURL)

		if err := copyURL(authURL); err != nil {
			logger.Debug("clipboard unavailable", slog.String("error", err.Error()))
			return nil
		}

		fmt.Fprintln(w, "(copied to clipboard)")

		return nil
	}
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	set, _, err := tokenfile.Load(cc.Cfg.Auth.TokenFile)
	if err != nil {
		cc.Logger.Warn("token file unreadable, removing it", slog.String("error", err.Error()))
	}

	// Sign-out goes through the controller so the in-memory store and the
	// file are cleared together. No client id is needed for that.
	store := tokens.NewStore(cc.Logger)
	controller := auth.NewController(auth.Config{}, nil, store, nil, cc.Logger)
	controller.Restore(set)
	controller.SignOut()

	if err := tokenfile.Remove(cc.Cfg.Auth.TokenFile); err != nil {
		return err
	}

	if set == nil {
		cc.Statusf("Not logged in.\n")
		return nil
	}

	cc.Statusf("Logged out.\n")

	return nil
}

// surfaceStatus is one API surface in `status` and `whoami` output.
type surfaceStatus struct {
	Surface        string `json:"surface"`
	Scope          string `json:"scope,omitempty"`
	ResourceServer string `json:"resource_server,omitempty"`
	ExpiresIn      int    `json:"expires_in,omitempty"`
	HasToken       bool   `json:"has_token"`
	Reachable      *bool  `json:"reachable,omitempty"`
	Error          string `json:"error,omitempty"`
}

// statusOutput is the JSON schema for `status --json` and `whoami --json`.
type statusOutput struct {
	LoggedIn  bool            `json:"logged_in"`
	TokenFile string          `json:"token_file"`
	SessionID string          `json:"session_id,omitempty"`
	Identity  string          `json:"identity,omitempty"`
	Name      string          `json:"name,omitempty"`
	Provider  string          `json:"identity_provider,omitempty"`
	SavedAt   string          `json:"saved_at,omitempty"`
	Surfaces  []surfaceStatus `json:"surfaces"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	out, _, err := loadStatus(cc)
	if err != nil {
		return err
	}

	return printStatus(cc, out)
}

// whoamiProbes are cheap authenticated GETs, one per surface.
var whoamiProbes = map[tokens.Surface]string{
	tokens.SurfaceTransfer: "/endpoint_search?filter_scope=my-endpoints&limit=1",
	tokens.SurfaceSearch:   "/index_list",
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	out, sess, err := loadStatus(cc)
	if err != nil {
		return err
	}

	if sess == nil {
		return errNotLoggedIn
	}

	// Probe both APIs at once; one failing does not cancel the other.
	var g errgroup.Group

	for i := range out.Surfaces {
		st := &out.Surfaces[i]
		if !st.HasToken {
			continue
		}

		g.Go(func() error {
			st.Reachable, st.Error = probeSurface(ctx, sess, tokens.Surface(st.Surface))
			return nil
		})
	}

	_ = g.Wait()

	return printStatus(cc, out)
}

// probeSurface reports a surface reachable only when it answers the probe
// with a JSON object.
func probeSurface(ctx context.Context, sess *APISession, surface tokens.Surface) (*bool, string) {
	u, err := sess.URL(surface, whoamiProbes[surface])
	if err != nil {
		return nil, err.Error()
	}

	_, err = dispatch.Decode[map[string]json.RawMessage](ctx, sess.Dispatcher, surface, u, dispatch.Options{})

	ok := err == nil
	if err != nil {
		return &ok, dispatch.Describe(err)
	}

	return &ok, ""
}

// loadStatus reads the token file into a status report. The session is nil
// when nobody is logged in.
func loadStatus(cc *CLIContext) (statusOutput, *APISession, error) {
	out := statusOutput{TokenFile: cc.Cfg.Auth.TokenFile}

	sess, err := NewAPISession(cc.Cfg, newHTTPClient(cc.Cfg), cc.Logger)
	if err != nil && !errors.Is(err, errNotLoggedIn) {
		return out, nil, err
	}

	if sess != nil {
		out.LoggedIn = true
		out.SessionID = sess.Meta[metaSessionID]
		out.SavedAt = sess.Meta[metaSavedAt]
		out.Identity = sess.Meta[metaUsername]
		out.Name = sess.Meta[metaName]
		out.Provider = sess.Meta[metaProvider]
	}

	for _, s := range requestedScopes(cc.Cfg) {
		st := surfaceStatus{Surface: string(s.Surface)}

		if sess != nil {
			if tok, ok := sess.Store.Token(s.Surface); ok {
				st.HasToken = true
				st.Scope = tok.Scope
				st.ResourceServer = tok.ResourceServer
				st.ExpiresIn = tok.ExpiresIn
			}
		}

		out.Surfaces = append(out.Surfaces, st)
	}

	return out, sess, nil
}

func printStatus(cc *CLIContext, out statusOutput) error {
	if cc.Flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		return nil
	}

	if !out.LoggedIn {
		fmt.Println("Not logged in. Run 'globus-go login' to get started.")
		return nil
	}

	if out.Identity != "" {
		fmt.Printf("Signed in as: %s\n", identityLine(out))
	}

	fmt.Printf("Token file: %s\n", out.TokenFile)

	if out.SavedAt != "" {
		fmt.Printf("Signed in:  %s (session %s)\n", out.SavedAt, out.SessionID)
	}

	rows := make([][]string, 0, len(out.Surfaces))
	for _, st := range out.Surfaces {
		rows = append(rows, []string{st.Surface, tokenState(st), formatLifetime(st.ExpiresIn), st.ResourceServer, st.Scope})
	}

	fmt.Println()
	printTable(os.Stdout, []string{"API", "STATE", "LIFETIME", "RESOURCE SERVER", "SCOPE"}, rows)

	return nil
}

func identityLine(out statusOutput) string {
	line := out.Identity
	if out.Name != "" {
		line = out.Name + " <" + out.Identity + ">"
	}

	if out.Provider != "" {
		line += " via " + out.Provider
	}

	return line
}

func tokenState(st surfaceStatus) string {
	switch {
	case !st.HasToken:
		return "no token"
	case st.Reachable == nil:
		return "token saved"
	case *st.Reachable:
		return "ok"
	default:
		return st.Error
	}
}
