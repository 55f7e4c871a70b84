package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	EnvClientID     = "SPOTIFY_CLIENT_ID"
	EnvClientSecret = "SPOTIFY_CLIENT_SECRET"

	// MaxBatchSize is the upstream limit on ids per audio-features request.
	MaxBatchSize = 100
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Collector   CollectorConfig   `toml:"collector"`
	Retry       RetryConfig       `toml:"retry"`
	Fetcher     FetcherConfig     `toml:"fetcher"`
	API         APIConfig         `toml:"api"`
	Metrics     MetricsConfig     `toml:"metrics"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API client-credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// CollectorConfig describes what to poll and where to write results.
type CollectorConfig struct {
	PlaylistID      string `toml:"playlist_id"`
	MarketName      string `toml:"market_name"`
	Interval        string `toml:"interval"`
	Start           string `toml:"start"`
	End             string `toml:"end"`
	OutputDir       string `toml:"output_dir"`
	CheckpointEvery int    `toml:"checkpoint_every"`
}

// RetryConfig tunes the rate-limited client's backoff.
type RetryConfig struct {
	MaxAttempts int           `toml:"max_attempts"`
	BaseDelay   time.Duration `toml:"base_delay"`
	MaxJitter   time.Duration `toml:"max_jitter"`
	MaxWait     time.Duration `toml:"max_wait"`
}

// FetcherConfig tunes snapshot pacing.
type FetcherConfig struct {
	BatchSize      int           `toml:"batch_size"`
	BatchDelay     time.Duration `toml:"batch_delay"`
	GenreDelay     time.Duration `toml:"genre_delay"`
	GenreCacheSize int           `toml:"genre_cache_size"`
}

// APIConfig contains upstream endpoints and request pacing.
type APIConfig struct {
	BaseURL           string        `toml:"base_url"`
	TokenURL          string        `toml:"token_url"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Timeout           time.Duration `toml:"timeout"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// LoadConfig reads a TOML configuration file and overlays it on [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv loads the given dotenv files (".env" when none are named) and lets
// SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET override the TOML credentials.
//
// Missing dotenv files are not an error.
func (c *Config) ApplyEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	if v := os.Getenv(EnvClientID); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv(EnvClientSecret); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	return nil
}

// RequireCredentials reports [ErrMissingCredentials] when either Spotify value is empty.
func (c *Config) RequireCredentials() error {
	if c.Credentials.Spotify.ClientID == "" || c.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: set credentials.spotify in config or %s/%s", ErrMissingCredentials, EnvClientID, EnvClientSecret)
	}
	return nil
}

// Validate checks that collector, retry, fetcher and api values are usable.
func (c *Config) Validate() error {
	switch {
	case c.Collector.PlaylistID == "":
		return fmt.Errorf("%w: collector.playlist_id is required", ErrInvalidConfig)
	case c.Collector.CheckpointEvery <= 0:
		return fmt.Errorf("%w: collector.checkpoint_every must be positive", ErrInvalidConfig)
	case c.Retry.MaxAttempts <= 0:
		return fmt.Errorf("%w: retry.max_attempts must be positive", ErrInvalidConfig)
	case c.Retry.MaxWait <= 0:
		return fmt.Errorf("%w: retry.max_wait must be positive", ErrInvalidConfig)
	case c.Retry.BaseDelay < 0 || c.Retry.MaxJitter < 0:
		return fmt.Errorf("%w: retry delays cannot be negative", ErrInvalidConfig)
	case c.Fetcher.BatchSize <= 0 || c.Fetcher.BatchSize > MaxBatchSize:
		return fmt.Errorf("%w: fetcher.batch_size must be between 1 and %d", ErrInvalidConfig, MaxBatchSize)
	case c.Fetcher.BatchDelay < 0 || c.Fetcher.GenreDelay < 0:
		return fmt.Errorf("%w: fetcher delays cannot be negative", ErrInvalidConfig)
	case c.Fetcher.GenreCacheSize < 0:
		return fmt.Errorf("%w: fetcher.genre_cache_size cannot be negative", ErrInvalidConfig)
	case c.API.BaseURL == "" || c.API.TokenURL == "":
		return fmt.Errorf("%w: api.base_url and api.token_url are required", ErrInvalidConfig)
	case c.API.RequestsPerSecond <= 0:
		return fmt.Errorf("%w: api.requests_per_second must be positive", ErrInvalidConfig)
	case c.API.Timeout <= 0:
		return fmt.Errorf("%w: api.timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
