package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/ChinoUkaegbu/exportify/internal/repositories"
	"github.com/ChinoUkaegbu/exportify/internal/services"
	"github.com/ChinoUkaegbu/exportify/internal/shared"
	"github.com/ChinoUkaegbu/exportify/internal/tasks"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	db         *sql.DB
	exporter   *tasks.Exporter
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// DB, when set, is used for export history instead of opening Config.Database.
	DB *sql.DB
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

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
	}
	r.exporter = r.newExporter()
	return r
}

func (r *Runner) newExporter() *tasks.Exporter {
	e := r.config.Export
	return tasks.NewExporter(services.NewFetcher(r.httpClient), tasks.ExportOpts{
		NumWorkers:  e.Workers,
		Concurrency: e.Concurrency,
		RateLimit:   e.RateLimit,
		Burst:       e.Burst,
	}, r.logger)
}

// SetLogger replaces the logger, rebuilding the exporter so it logs to the new destination.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	r.exporter = r.newExporter()
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, playlistsCommand, exportCommand, historyCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// token returns the configured bearer token.
func (r *Runner) token() (string, error) {
	if r.config.Spotify.AccessToken == "" {
		return "", fmt.Errorf("%w: set %sACCESS_TOKEN or spotify.access_token in %s",
			shared.ErrMissingCredentials, shared.EnvPrefix, r.configPathOrDefault())
	}
	return r.config.Spotify.AccessToken, nil
}

func (r *Runner) configPathOrDefault() string {
	if r.configPath == "" {
		return defaultConfigPath
	}
	return r.configPath
}

func (r *Runner) library(ctx context.Context, token string) *services.Library {
	return services.NewLibrary(ctx, token, r.config.Spotify.APIBaseURL, r.httpClient)
}

// history opens the export history repository. The returned func releases it.
func (r *Runner) history() (*repositories.ExportRunRepository, func(), error) {
	if r.db != nil {
		return repositories.NewExportRunRepository(r.db), func() {}, nil
	}

	db, err := shared.OpenHistory(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return repositories.NewExportRunRepository(db), func() { db.Close() }, nil
}

// hintFor suggests what the user can do about err.
func hintFor(err error) string {
	switch {
	case errors.Is(err, shared.ErrTokenExpired):
		return fmt.Sprintf("the access token expired; obtain a new one and set %sACCESS_TOKEN", shared.EnvPrefix)
	case errors.Is(err, shared.ErrRateLimited):
		return "Spotify is rate limiting this token; wait a moment and re-run the export"
	case errors.Is(err, shared.ErrMissingCredentials):
		return "run 'exportify setup config' and add an access token"
	default:
		return ""
	}
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
