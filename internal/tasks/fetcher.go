package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/metrics"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/ratelimit"
	"github.com/desertthunder/chartx/internal/services"
	"github.com/desertthunder/chartx/internal/shared"
	lru "github.com/hashicorp/golang-lru/v2"
)

// SkipReason explains why a playlist entry produced no record.
type SkipReason int

const (
	SkipMissingTrack SkipReason = iota + 1
	SkipMissingFeatures
)

func (r SkipReason) String() string {
	switch r {
	case SkipMissingTrack:
		return "missing_track"
	case SkipMissingFeatures:
		return "missing_features"
	default:
		return "unknown"
	}
}

// Skip records a dropped playlist entry. Position is the 1-based listing index.
type Skip struct {
	Position int
	TrackID  string
	Title    string
	Reason   SkipReason
}

// SnapshotResult is one capture's records plus the entries that were dropped.
type SnapshotResult struct {
	Records []models.ChartRecord
	Skipped []Skip
}

// FetcherOpts configures a [Fetcher].
type FetcherOpts struct {
	Service        services.Service
	Client         *ratelimit.Client
	BatchSize      int
	BatchDelay     time.Duration
	GenreDelay     time.Duration
	GenreCacheSize int // 0 disables the cache
	Logger         *log.Logger
	Metrics        *metrics.Metrics
}

// Fetcher turns one playlist listing into enriched chart records.
type Fetcher struct {
	svc        services.Service
	client     *ratelimit.Client
	batchSize  int
	batchDelay time.Duration
	genreDelay time.Duration
	genres     *lru.Cache[string, []string]
	logger     *log.Logger
	metrics    *metrics.Metrics
}

type candidate struct {
	position int
	track    *services.SpotifyTrack
}

// NewFetcher creates a [Fetcher]. A nil client gets the default retry policy.
func NewFetcher(opts FetcherOpts) (*Fetcher, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("%w: fetcher requires a service", shared.ErrInvalidArgument)
	}
	if opts.BatchSize <= 0 || opts.BatchSize > services.MaxAudioFeatureIDs {
		opts.BatchSize = services.MaxAudioFeatureIDs
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Client == nil {
		opts.Client = ratelimit.NewClient(ratelimit.ClientOpts{Logger: opts.Logger, Metrics: opts.Metrics})
	}

	f := &Fetcher{
		svc:        opts.Service,
		client:     opts.Client,
		batchSize:  opts.BatchSize,
		batchDelay: opts.BatchDelay,
		genreDelay: opts.GenreDelay,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}

	if opts.GenreCacheSize > 0 {
		cache, err := lru.New[string, []string](opts.GenreCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create genre cache: %w", err)
		}
		f.genres = cache
	}

	return f, nil
}

// FetchSnapshot captures the playlist at timestamp.
//
// Any listing or audio-feature failure is logged and yields an empty slice.
func (f *Fetcher) FetchSnapshot(ctx context.Context, playlistID string, timestamp time.Time) []models.ChartRecord {
	result, err := f.Snapshot(ctx, playlistID, timestamp, nil)
	if err != nil {
		f.logger.Error("snapshot failed", "playlist", playlistID, "tick", timestamp, "error", err)
		return []models.ChartRecord{}
	}
	return result.Records
}

// Snapshot captures the playlist at timestamp and reports why entries were skipped.
//
// Records follow listing order and are ranked 1..k over the emitted records.
func (f *Fetcher) Snapshot(ctx context.Context, playlistID string, timestamp time.Time, progress chan<- ProgressUpdate) (*SnapshotResult, error) {
	logger := shared.WithLogger(f.logger, "playlist", playlistID, "tick", timestamp.Format(time.RFC3339))

	sendProgress(progress, fetchListingUpdate(playlistID))
	items, err := ratelimit.Do(ctx, f.client, "playlist_tracks", func(ctx context.Context) ([]services.SpotifyPlaylistTrack, error) {
		return f.svc.PlaylistTracks(ctx, playlistID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist listing: %w", err)
	}

	result := &SnapshotResult{}
	candidates := make([]candidate, 0, len(items))
	for i, item := range items {
		if item.Track == nil || item.Track.ID == "" {
			result.Skipped = append(result.Skipped, Skip{Position: i + 1, Reason: SkipMissingTrack})
			continue
		}
		candidates = append(candidates, candidate{position: i + 1, track: item.Track})
	}

	features, err := f.audioFeatures(ctx, candidates, progress)
	if err != nil {
		return nil, err
	}

	for i, c := range candidates {
		feat := features[i]
		if feat == nil {
			result.Skipped = append(result.Skipped, Skip{
				Position: c.position,
				TrackID:  c.track.ID,
				Title:    c.track.Name,
				Reason:   SkipMissingFeatures,
			})
			continue
		}

		sendProgress(progress, fetchGenresUpdate(i+1, len(candidates), c.track.Name))
		genres, err := f.artistGenres(ctx, c.track.PrimaryArtistID())
		if err != nil {
			return nil, err
		}

		rank := len(result.Records) + 1
		result.Records = append(result.Records, models.NewChartRecord(timestamp, rank, c.track.Meta(), feat.Features(), genres))
	}

	for _, s := range result.Skipped {
		f.metrics.IncSkipped(s.Reason.String())
		logger.Debug("skipped track", "position", s.Position, "track", s.TrackID, "reason", s.Reason)
	}

	logger.Info("snapshot captured", "records", len(result.Records), "skipped", len(result.Skipped))
	return result, nil
}

// audioFeatures returns one entry per candidate, nil where the upstream had none.
func (f *Fetcher) audioFeatures(ctx context.Context, candidates []candidate, progress chan<- ProgressUpdate) ([]*services.SpotifyAudioFeatures, error) {
	features := make([]*services.SpotifyAudioFeatures, 0, len(candidates))
	batches := (len(candidates) + f.batchSize - 1) / f.batchSize

	for b := range batches {
		start := b * f.batchSize
		end := min(start+f.batchSize, len(candidates))

		ids := make([]string, 0, end-start)
		for _, c := range candidates[start:end] {
			ids = append(ids, c.track.ID)
		}

		sendProgress(progress, fetchFeaturesUpdate(b+1, batches, len(ids)))
		batch, err := ratelimit.Do(ctx, f.client, "audio_features", func(ctx context.Context) ([]*services.SpotifyAudioFeatures, error) {
			return f.svc.AudioFeatures(ctx, ids)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch audio features (batch %d/%d): %w", b+1, batches, err)
		}

		for i := range ids {
			if i < len(batch) {
				features = append(features, batch[i])
			} else {
				features = append(features, nil)
			}
		}

		if err := f.client.Sleep(ctx, f.batchDelay); err != nil {
			return nil, err
		}
	}

	return features, nil
}

// artistGenres resolves genres for one artist. Lookup failures degrade to no genres.
func (f *Fetcher) artistGenres(ctx context.Context, artistID string) ([]string, error) {
	if artistID == "" {
		return nil, nil
	}

	if f.genres != nil {
		if cached, ok := f.genres.Get(artistID); ok {
			f.metrics.IncCacheHit()
			return cached, nil
		}
	}

	if err := f.client.Sleep(ctx, f.genreDelay); err != nil {
		return nil, err
	}

	artist, err := ratelimit.Do(ctx, f.client, "artist", func(ctx context.Context) (*services.SpotifyArtist, error) {
		return f.svc.Artist(ctx, artistID)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		f.logger.Warn("genre lookup failed", "artist", artistID, "error", err)
		return nil, nil
	}

	if f.genres != nil {
		f.genres.Add(artistID, artist.Genres)
	}
	return artist.Genres, nil
}
