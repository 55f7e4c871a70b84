package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/metrics"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/ratelimit"
	"github.com/desertthunder/chartx/internal/services"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/desertthunder/chartx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    *services.SpotifyService
	httpClient *http.Client
	logger     *log.Logger
	metrics    *metrics.Metrics
	output     io.Writer
	input      io.Reader
	sleeper    ratelimit.Sleeper
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	Sleeper    ratelimit.Sleeper
	Now        func() time.Time
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
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Sleeper == nil {
		opts.Sleeper = ratelimit.TimerSleeper{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		metrics:    metrics.NewMetrics(),
		output:     opts.Output,
		input:      opts.Input,
		sleeper:    opts.Sleeper,
		now:        opts.Now,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, verifyCommand, snapshotCommand, collectCommand, reportCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the config file named by --config, applies .env overrides and sets the log level.
//
// A missing config file falls back to the embedded defaults.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	path := cmd.String("config")
	r.configPath = path
	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.logger.Debug("loaded config", "file", path)
	} else {
		r.logger.Debug("config file not found, using defaults", "file", path)
	}

	if err := r.config.ApplyEnv(); err != nil {
		return ctx, err
	}
	return ctx, nil
}

// SetLogger replaces the runner's logger, used while the TUI owns the terminal.
//
// The Spotify client is rebuilt on next use so it logs to the new destination.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	r.spotify = nil
}

// service lazily builds the Spotify client from the current config.
func (r *Runner) service(ctx context.Context) (*services.SpotifyService, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}
	if err := r.config.RequireCredentials(); err != nil {
		return nil, err
	}

	svc, err := services.NewSpotifyService(ctx, services.SpotifyOpts{
		ClientID:          r.config.Credentials.Spotify.ClientID,
		ClientSecret:      r.config.Credentials.Spotify.ClientSecret,
		BaseURL:           r.config.API.BaseURL,
		TokenURL:          r.config.API.TokenURL,
		RequestsPerSecond: r.config.API.RequestsPerSecond,
		Timeout:           r.config.API.Timeout,
		HTTPClient:        r.httpClient,
		Logger:            r.logger,
		Metrics:           r.metrics,
	})
	if err != nil {
		return nil, err
	}

	r.spotify = svc
	return svc, nil
}

func (r *Runner) retryPolicy() models.RetryPolicy {
	policy := models.DefaultRetryPolicy()
	policy.MaxAttempts = r.config.Retry.MaxAttempts
	policy.BaseDelay = r.config.Retry.BaseDelay
	policy.MaxJitter = r.config.Retry.MaxJitter
	policy.MaxWait = r.config.Retry.MaxWait
	return policy
}

// fetcher wires the Spotify client, retry policy and pacing from config into a [tasks.Fetcher].
func (r *Runner) fetcher(ctx context.Context) (*tasks.Fetcher, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	svc, err := r.service(ctx)
	if err != nil {
		return nil, err
	}

	policy := r.retryPolicy()
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	client := ratelimit.NewClient(ratelimit.ClientOpts{
		Policy:  policy,
		Sleeper: r.sleeper,
		Logger:  r.logger,
		Metrics: r.metrics,
	})

	return tasks.NewFetcher(tasks.FetcherOpts{
		Service:        svc,
		Client:         client,
		BatchSize:      r.config.Fetcher.BatchSize,
		BatchDelay:     r.config.Fetcher.BatchDelay,
		GenreDelay:     r.config.Fetcher.GenreDelay,
		GenreCacheSize: r.config.Fetcher.GenreCacheSize,
		Logger:         r.logger,
		Metrics:        r.metrics,
	})
}

// playlistID returns the --playlist flag or the configured playlist. The flag overrides the config value.
func (r *Runner) playlistID(cmd *cli.Command) (string, error) {
	if id := cmd.String("playlist"); id != "" {
		r.config.Collector.PlaylistID = id
		return id, nil
	}
	if r.config.Collector.PlaylistID != "" {
		return r.config.Collector.PlaylistID, nil
	}
	return "", fmt.Errorf("%w: --playlist or collector.playlist_id is required", shared.ErrMissingArgument)
}

// confirm asks a y/N question on the runner's input.
func (r *Runner) confirm(question string) (bool, error) {
	if err := r.writePlain("%s [y/N]: ", question); err != nil {
		return false, err
	}

	answer, err := bufio.NewReader(r.input).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
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
