package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/metrics"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

// DefaultCheckpointEvery is the buffer size multiple that triggers a checkpoint.
const DefaultCheckpointEvery = 100

// Snapshotter captures one playlist listing. [Fetcher] is the production implementation.
type Snapshotter interface {
	Snapshot(ctx context.Context, playlistID string, at time.Time, progress chan<- ProgressUpdate) (*SnapshotResult, error)
}

// Sink persists checkpoints and the final export. Both methods return the written path.
type Sink interface {
	WriteCheckpoint(records []models.ChartRecord, at time.Time) (string, error)
	WriteFinal(records []models.ChartRecord, start, end time.Time, interval models.Interval) (string, error)
}

// CollectResult summarizes a collection run.
type CollectResult struct {
	Run         *models.CollectionRun
	Ticks       int
	EmptyTicks  int
	Checkpoints []string
	FinalPath   string
}

// CollectorOpts configures a [Collector].
type CollectorOpts struct {
	Fetcher         Snapshotter
	Sink            Sink
	CheckpointEvery int
	Logger          *log.Logger
	Metrics         *metrics.Metrics
}

// Collector walks a run's ticks, buffering records and checkpointing as the buffer grows.
type Collector struct {
	fetcher Snapshotter
	sink    Sink
	every   int
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewCollector creates a [Collector].
func NewCollector(opts CollectorOpts) (*Collector, error) {
	if opts.Fetcher == nil || opts.Sink == nil {
		return nil, fmt.Errorf("%w: collector requires a fetcher and a sink", shared.ErrInvalidArgument)
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = DefaultCheckpointEvery
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Collector{
		fetcher: opts.Fetcher,
		sink:    opts.Sink,
		every:   opts.CheckpointEvery,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

// Run captures every tick of run in order and writes the final export.
//
// A failed tick contributes zero records. A failed checkpoint is logged and the run continues.
// On cancellation the loop stops, the final export is still attempted and ctx.Err() is returned.
func (c *Collector) Run(ctx context.Context, run *models.CollectionRun, progress chan<- ProgressUpdate) (*CollectResult, error) {
	logger := shared.WithLogger(c.logger, "run", run.ID, "playlist", run.PlaylistID)
	ticks := run.Ticks()
	total := len(ticks)
	result := &CollectResult{Run: run}

	logger.Info("starting collection",
		"start", run.Start.Format(time.RFC3339), "end", run.End.Format(time.RFC3339),
		"interval", run.Interval, "ticks", total)

	var cancelErr error
	for i, tick := range ticks {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}

		sendProgress(progress, captureUpdate(i+1, total, tick))
		records, err := c.capture(ctx, run.PlaylistID, tick, progress)
		if err != nil && ctx.Err() != nil {
			cancelErr = ctx.Err()
			break
		}

		result.Ticks++
		count := run.Append(records...)
		c.metrics.AddRecords(len(records))

		if len(records) == 0 {
			result.EmptyTicks++
			c.metrics.IncTick("empty")
		} else {
			c.metrics.IncTick("captured")
		}

		logger.Info("tick complete", "tick", tick.Format(time.RFC3339), "records", len(records), "total", count)
		sendProgress(progress, capturedUpdate(i+1, total, len(records), count))

		if count > 0 && count%c.every == 0 {
			if path, ok := c.checkpoint(logger, run.Records(), tick, progress); ok {
				result.Checkpoints = append(result.Checkpoints, path)
			}
		}
	}

	if cancelErr != nil {
		logger.Warn("collection interrupted", "ticks", result.Ticks, "records", run.Len(), "error", cancelErr)
	}

	sendProgress(progress, exportUpdate(0, run.Len()))
	path, err := c.sink.WriteFinal(run.Records(), run.Start, run.End, run.Interval)
	if err != nil {
		logger.Error("final export failed", "error", err)
		return result, errors.Join(cancelErr, fmt.Errorf("failed to write final export: %w", err))
	}
	result.FinalPath = path
	sendProgress(progress, exportUpdate(1, run.Len()))

	logger.Info("collection complete", "file", path, "records", run.Len(), "ticks", result.Ticks, "empty_ticks", result.EmptyTicks)
	return result, cancelErr
}

// capture runs one snapshot. Errors are logged and become zero records.
func (c *Collector) capture(ctx context.Context, playlistID string, tick time.Time, progress chan<- ProgressUpdate) ([]models.ChartRecord, error) {
	snap, err := c.fetcher.Snapshot(ctx, playlistID, tick, progress)
	if err != nil {
		c.logger.Error("snapshot failed", "playlist", playlistID, "tick", tick.Format(time.RFC3339), "error", err)
		return nil, err
	}
	return snap.Records, nil
}

func (c *Collector) checkpoint(logger *log.Logger, records []models.ChartRecord, tick time.Time, progress chan<- ProgressUpdate) (string, bool) {
	path, err := c.sink.WriteCheckpoint(records, tick)
	if err != nil {
		c.metrics.IncCheckpoint("failed")
		logger.Error("checkpoint failed", "records", len(records), "error", err)
		sendProgress(progress, checkpointFailedUpdate(err))
		return "", false
	}

	c.metrics.IncCheckpoint("written")
	logger.Info("checkpoint written", "file", path, "records", len(records))
	sendProgress(progress, checkpointUpdate(path, len(records)))
	return path, true
}
