package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ibx/internal/ibroadcast"
	"github.com/desertthunder/ibx/internal/repositories"
	"github.com/desertthunder/ibx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	// client and db short-circuit connect/openDatabase when injected by tests.
	client *ibroadcast.Client
	db     *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Client     *ibroadcast.Client
	DB         *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		client:     opts.Client,
		db:         opts.DB,
	}
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, libraryCommand, uploadCommand, playlistCommand, tagCommand, trashCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openDatabase opens the configured SQLite database and applies pending
// migrations. The returned cleanup is a no-op for injected databases.
func (r *Runner) openDatabase() (*sql.DB, func(), error) {
	if r.db != nil {
		return r.db, func() {}, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, func() { db.Close() }, nil
}

// buildFlow constructs the OAuth flow from the configured application
// settings. Extra options are applied last so callers can override the
// configured redirect.
func (r *Runner) buildFlow(extra ...ibroadcast.OAuthOption) (*ibroadcast.OAuthFlow, error) {
	if r.config.OAuth.ClientID == "" {
		return nil, fmt.Errorf("%w: set oauth.client_id in config.toml", shared.ErrMissingClientID)
	}

	opts := []ibroadcast.OAuthOption{ibroadcast.WithOAuthHTTPClient(r.httpClient)}
	if r.config.OAuth.BaseURL != "" {
		opts = append(opts, ibroadcast.WithOAuthBaseURL(r.config.OAuth.BaseURL))
	}
	if r.config.OAuth.RedirectURI != "" {
		opts = append(opts, ibroadcast.WithRedirectURI(r.config.OAuth.RedirectURI))
	}
	opts = append(opts, extra...)

	return ibroadcast.NewOAuthFlow(r.config.OAuth.ClientID, r.config.OAuth.Scopes, opts...), nil
}

// clientOptions maps the loaded configuration onto client options.
func (r *Runner) clientOptions() ibroadcast.Options {
	return ibroadcast.Options{
		ClientName: r.config.Client.Name,
		Version:    r.config.Client.Version,
		DeviceName: r.config.Client.DeviceName,
		HTTPClient: r.httpClient,
		Logger:     r.logger,
		Output:     r.output,
		APIBaseURL: r.config.Endpoints.API,
		LibraryURL: r.config.Endpoints.Library,
		SyncURL:    r.config.Endpoints.Sync,
		UploadURL:  r.config.Endpoints.Upload,
	}
}

// connect restores a client from the tokens saved for the selected profile.
// Refreshed tokens are written back to the same profile. The returned
// cleanup closes the database once the command is done with the client.
func (r *Runner) connect(ctx context.Context, cmd *cli.Command) (*ibroadcast.Client, func(), error) {
	if r.client != nil {
		return r.client, func() {}, nil
	}

	flow, err := r.buildFlow()
	if err != nil {
		return nil, nil, err
	}

	db, cleanup, err := r.openDatabase()
	if err != nil {
		return nil, nil, err
	}

	repo := repositories.NewTokenRepository(db)
	profile := profileName(cmd)
	ts, err := repo.Load(profile)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("%w (profile %q)", shared.ErrNoSavedTokens, profile)
	}

	opts := r.clientOptions()
	opts.OnTokenRefreshed = func(ts ibroadcast.TokenSet) {
		if err := repo.Save(profile, ts); err != nil {
			r.logger.Warn("failed to persist refreshed tokens", "error", err)
		}
	}

	return ibroadcast.NewClient(flow, ts, opts), cleanup, nil
}

// snapshot returns the client's library, fetching one when none is loaded.
func (r *Runner) snapshot(ctx context.Context, client *ibroadcast.Client) (*ibroadcast.Library, error) {
	if lib := client.Library(); lib != nil {
		return lib, nil
	}
	if err := client.Refresh(ctx); err != nil {
		return nil, err
	}
	return client.Library(), nil
}

// saveTokens persists the client's current token material for a profile.
func (r *Runner) saveTokens(profile string, ts ibroadcast.TokenSet) error {
	db, cleanup, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := repositories.NewTokenRepository(db).Save(profile, ts); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	return nil
}

func profileName(cmd *cli.Command) string {
	if p := cmd.String("profile"); p != "" {
		return p
	}
	return repositories.DefaultProfile
}

// parseTrackIDs converts the string form of --track flags into track IDs.
func parseTrackIDs(values []string) ([]int64, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: at least one track ID is required", shared.ErrMissingArgument)
	}

	ids := make([]int64, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a track ID", shared.ErrInvalidArgument, part)
			}
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one track ID is required", shared.ErrMissingArgument)
	}
	return ids, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
