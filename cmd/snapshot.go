package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/chartx/internal/formatter"
	"github.com/urfave/cli/v3"
)

// Snapshot captures the playlist once at the current minute.
func (r *Runner) Snapshot(ctx context.Context, cmd *cli.Command) error {
	playlistID, err := r.playlistID(cmd)
	if err != nil {
		return err
	}

	fetcher, err := r.fetcher(ctx)
	if err != nil {
		return err
	}

	at := r.now().Truncate(time.Minute)
	result, err := fetcher.Snapshot(ctx, playlistID, at, nil)
	if err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}

	for _, skip := range result.Skipped {
		r.logger.Warn("skipped track", "position", skip.Position, "title", skip.Title, "reason", skip.Reason)
	}

	if cmd.Bool("save") {
		dir := cmd.String("output")
		if dir == "" {
			dir = r.config.Collector.OutputDir
		}

		path, err := formatter.NewFileSink(dir).WriteSnapshot(result.Records, at)
		if err != nil {
			return err
		}
		r.logger.Info("snapshot saved", "file", path, "records", len(result.Records))
	}

	if cmd.Bool("json") {
		return r.writeJSON(result.Records, cmd.Bool("pretty"))
	}

	md, err := formatter.ExportToMarkdown(result.Records, r.config.Collector.MarketName)
	if err != nil {
		return err
	}
	return r.writePlain("%s", md)
}
