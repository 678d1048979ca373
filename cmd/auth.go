package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ibx/internal/ibroadcast"
	"github.com/desertthunder/ibx/internal/repositories"
	"github.com/desertthunder/ibx/internal/server"
	"github.com/desertthunder/ibx/internal/shared"
	"github.com/desertthunder/ibx/internal/ui"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

// AuthLogin signs in and saves the resulting tokens for the selected
// profile. The device-code flow is the default; --browser runs the
// authorization-code flow against a local callback server and --password
// uses the legacy login.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("browser") && cmd.Bool("password") {
		return fmt.Errorf("%w: cannot combine --browser and --password", shared.ErrInvalidFlag)
	}

	switch {
	case cmd.Bool("password"):
		return r.loginPassword(ctx, cmd)
	case cmd.Bool("browser"):
		return r.loginBrowser(ctx, cmd)
	default:
		return r.loginDevice(ctx, cmd)
	}
}

// loginDevice runs the device-code flow. Interactive terminals get the
// spinner UI; everything else falls back to plain prompts on the output
// writer.
func (r *Runner) loginDevice(ctx context.Context, cmd *cli.Command) error {
	flow, err := r.buildFlow()
	if err != nil {
		return err
	}

	var client *ibroadcast.Client
	if r.interactive() {
		client, err = r.deviceLoginUI(ctx, flow)
	} else {
		client, err = ibroadcast.FromDeviceCode(ctx, flow, nil, r.clientOptions())
	}
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	return r.finishLogin(ctx, cmd, client)
}

// deviceLoginUI drives the poll in the background and feeds the login
// screen through its channels.
func (r *Runner) deviceLoginUI(ctx context.Context, flow *ibroadcast.OAuthFlow) (*ibroadcast.Client, error) {
	loginCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	infoChan := make(chan ui.DeviceCodeInfo, 1)
	doneChan := make(chan error, 1)
	clientChan := make(chan *ibroadcast.Client, 1)

	go func() {
		client, err := ibroadcast.FromDeviceCode(loginCtx, flow, func(userCode, verificationURI, _ string) {
			infoChan <- ui.DeviceCodeInfo{VerificationURL: verificationURI, UserCode: userCode}
		}, r.clientOptions())
		if err == nil {
			clientChan <- client
		}
		doneChan <- err
	}()

	model := ui.NewDeviceLoginModel(infoChan, doneChan)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return nil, fmt.Errorf("error running login UI: %w", err)
	}
	if err := model.Err(); err != nil {
		return nil, err
	}

	return <-clientChan, nil
}

// loginBrowser runs the authorization-code flow with PKCE. A temporary
// callback server on the configured host/port receives the redirect.
func (r *Runner) loginBrowser(ctx context.Context, cmd *cli.Command) error {
	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	redirect := fmt.Sprintf("http://%s/callback", addr)

	flow, err := r.buildFlow(ibroadcast.WithRedirectURI(redirect))
	if err != nil {
		return err
	}

	state := shared.GenerateID()
	verifier := ibroadcast.GenerateVerifier()
	authURL := flow.AuthorizeURL(state, verifier)

	r.writePlain("Opening browser for authorization...\n")
	r.writePlain("If nothing happens, visit:\n%s\n", authURL)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser", "error", err)
	}

	handler := server.NewOAuthHandler(flow, state, verifier)
	ts, err := server.Listen(ctx, addr, handler)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	client := ibroadcast.NewClient(flow, ts, r.clientOptions())
	return r.finishLogin(ctx, cmd, client)
}

// loginPassword uses the legacy username/password login. The session is
// held in memory only; nothing is persisted for later commands.
func (r *Runner) loginPassword(ctx context.Context, cmd *cli.Command) error {
	username := cmd.String("username")
	if username == "" {
		return fmt.Errorf("%w: --username is required for password login", shared.ErrMissingArgument)
	}

	r.writePlain("Password: ")
	password, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")

	client, err := ibroadcast.NewPasswordClient(ctx, username, password, r.clientOptions())
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	r.writePlain("✓ Logged in as %s\n", username)
	r.writePlainln("Password sessions are deprecated and not saved; prefer 'ibx auth login'.")

	lib := client.Library()
	if lib != nil {
		r.writePlain("Library: %d tracks, %d playlists\n", len(lib.Tracks), len(lib.Playlists))
	}
	return nil
}

// finishLogin persists the token material and confirms the session.
func (r *Runner) finishLogin(ctx context.Context, cmd *cli.Command, client *ibroadcast.Client) error {
	profile := profileName(cmd)
	if err := r.saveTokens(profile, client.TokenSet()); err != nil {
		return err
	}
	r.logger.Info("tokens saved", "profile", profile)

	r.writePlain("✓ Logged in\n")
	status, err := client.GetStatus(ctx)
	if err == nil && status.User != nil {
		r.writePlain("Account: %s\n", status.User.ID.String())
	}
	r.writePlain("Tokens saved to profile %q\n", profile)
	return nil
}

// AuthStatus checks the saved session against the account status endpoint.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	client, cleanup, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r.logger.Info("checking auth status")

	status, err := client.GetStatus(ctx)
	if err != nil {
		r.writePlain("Authentication: ✗ Not authenticated\n")
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	r.writePlain("Authentication: ✓ Authenticated\n")
	if status.User != nil {
		r.writePlain("Account: %s\n", status.User.ID.String())
	}
	if exts, err := client.Extensions(ctx); err == nil && len(exts) > 0 {
		r.writePlain("Supported formats: %s\n", strings.Join(exts, ", "))
	}
	return nil
}

// AuthRefresh forces a token refresh and saves the new token material.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	flow, err := r.buildFlow()
	if err != nil {
		return err
	}

	db, cleanup, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer cleanup()

	repo := repositories.NewTokenRepository(db)
	profile := profileName(cmd)

	ts, err := repo.Load(profile)
	if err != nil {
		return fmt.Errorf("%w (profile %q)", shared.ErrNoSavedTokens, profile)
	}
	if ts.RefreshToken == "" {
		return fmt.Errorf("%w: profile %q has no refresh token", shared.ErrNotAuthenticated, profile)
	}

	fresh, err := flow.RefreshTokenSet(ctx, ts.RefreshToken)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	if err := repo.Save(profile, fresh); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}

	if fresh.ExpiresAt.IsZero() {
		return r.writePlain("✓ Tokens refreshed\n")
	}
	return r.writePlain("✓ Tokens refreshed (expires %s)\n", fresh.ExpiresAt.Format("2006-01-02 15:04"))
}

// AuthLogout revokes the refresh token and deletes the saved tokens.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	flow, err := r.buildFlow()
	if err != nil {
		return err
	}

	db, cleanup, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer cleanup()

	repo := repositories.NewTokenRepository(db)
	profile := profileName(cmd)

	ts, err := repo.Load(profile)
	if err != nil {
		return fmt.Errorf("%w (profile %q)", shared.ErrNoSavedTokens, profile)
	}

	if ts.RefreshToken != "" {
		if err := flow.Revoke(ctx, ts.RefreshToken); err != nil {
			r.logger.Warn("token revocation failed", "error", err)
		}
	}

	if err := repo.Delete(profile); err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}

	return r.writePlain("✓ Logged out of profile %q\n", profile)
}

// AuthProfiles lists saved token profiles.
func (r *Runner) AuthProfiles(ctx context.Context, cmd *cli.Command) error {
	db, cleanup, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer cleanup()

	profiles, err := repositories.NewTokenRepository(db).Profiles()
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	if len(profiles) == 0 {
		return r.writePlain("No saved profiles. Run 'ibx auth login' first.\n")
	}

	r.writePlainHeader("Profiles")
	for _, p := range profiles {
		r.writePlain("%s\n", p)
	}
	return nil
}

// interactive reports whether the output writer is a terminal.
func (r *Runner) interactive() bool {
	f, ok := r.output.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
