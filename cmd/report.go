package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/desertthunder/chartx/internal/formatter"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/report"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Report renders the charts for a checkpoint or CSV export, to a file or over HTTP.
func (r *Runner) Report(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path to a checkpoint or export is required", shared.ErrMissingArgument)
	}

	opts := report.Options{
		Title: firstNonEmpty(r.config.Collector.MarketName, filepath.Base(path)),
		TopN:  int(cmd.Int("top")),
	}

	if addr := cmd.String("serve"); addr != "" {
		return r.serveReport(ctx, addr, path, opts)
	}

	records, err := formatter.ReadRecords(path)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if output == "" {
		output = strings.TrimSuffix(path, filepath.Ext(path)) + ".html"
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := report.Render(f, records, opts); err != nil {
		return err
	}

	r.logger.Info("report written", "file", output, "records", len(records))
	return r.writePlain("✓ Report written to %s\n", output)
}

// serveReport re-reads path on every request so a running collection's checkpoints show up live.
func (r *Runner) serveReport(ctx context.Context, addr, path string, opts report.Options) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	load := func() ([]models.ChartRecord, error) {
		return formatter.ReadRecords(path)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           report.Handler(load, opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	r.logger.Info("serving report", "addr", addr, "file", path)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("report server failed: %w", err)
	}
	return nil
}
