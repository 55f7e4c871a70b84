package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/chartx/internal/formatter"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
	"github.com/desertthunder/chartx/internal/tasks"
	"github.com/desertthunder/chartx/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/chartx-tui.log"

// collectPlan is a collection run resolved from flags and config.
type collectPlan struct {
	run             *models.CollectionRun
	outputDir       string
	checkpointEvery int
	metricsAddr     string
}

// plan resolves flags over config values into a validated run.
func (r *Runner) plan(cmd *cli.Command) (*collectPlan, error) {
	playlistID, err := r.playlistID(cmd)
	if err != nil {
		return nil, err
	}

	intervalName := firstNonEmpty(cmd.String("interval"), r.config.Collector.Interval, string(models.Hour))
	interval, err := models.ParseInterval(intervalName)
	if err != nil {
		return nil, err
	}

	var start time.Time
	if raw := firstNonEmpty(cmd.String("start"), r.config.Collector.Start); raw != "" {
		if start, err = shared.ParseTimestamp(raw); err != nil {
			return nil, fmt.Errorf("invalid start: %w", err)
		}
	} else {
		now := r.now()
		start = time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	}

	end := start
	if raw := firstNonEmpty(cmd.String("end"), r.config.Collector.End); raw != "" {
		if end, err = shared.ParseTimestamp(raw); err != nil {
			return nil, fmt.Errorf("invalid end: %w", err)
		}
	}

	run, err := models.NewCollectionRun(playlistID, start, end, interval)
	if err != nil {
		return nil, err
	}

	every := int(cmd.Int("checkpoint-every"))
	if every <= 0 {
		every = r.config.Collector.CheckpointEvery
	}

	return &collectPlan{
		run:             run,
		outputDir:       firstNonEmpty(cmd.String("output"), r.config.Collector.OutputDir, "."),
		checkpointEvery: every,
		metricsAddr:     firstNonEmpty(cmd.String("metrics-addr"), r.config.Metrics.Addr),
	}, nil
}

func (r *Runner) writePlan(p *collectPlan) {
	r.writePlainHeader(fmt.Sprintf("Collection plan: %s", firstNonEmpty(r.config.Collector.MarketName, p.run.PlaylistID)))
	r.writePlain("Playlist:   %s\n", p.run.PlaylistID)
	r.writePlain("Start:      %s\n", p.run.Start.Format("2006-01-02 15:04"))
	r.writePlain("End:        %s\n", p.run.End.Format("2006-01-02 15:04"))
	r.writePlain("Interval:   %s\n", p.run.Interval)
	r.writePlain("Ticks:      %d\n", p.run.TickCount())
	r.writePlain("Output:     %s\n", p.outputDir)
}

// Collect captures every tick of the planned run, checkpointing along the way and writing the final CSV.
//
// SIGINT/SIGTERM stop the run after the current tick; the records so far are still exported.
func (r *Runner) Collect(ctx context.Context, cmd *cli.Command) error {
	p, err := r.plan(cmd)
	if err != nil {
		return err
	}

	useTUI := cmd.Bool("tui")
	if !useTUI {
		r.writePlan(p)
		if !cmd.Bool("yes") {
			ok, err := r.confirm("Start collection?")
			if err != nil {
				return err
			}
			if !ok {
				return shared.ErrAborted
			}
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if useTUI {
		// Redirect logs to file to avoid interfering with TUI rendering
		fileLogger, f, err := shared.NewFileLogger(tuiLogPath)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer f.Close()
		r.SetLogger(fileLogger)
	}

	if p.metricsAddr != "" {
		server := r.serveMetrics(p.metricsAddr)
		defer server.Close()
	}

	collector, err := r.collector(ctx, p)
	if err != nil {
		return err
	}

	var result *tasks.CollectResult
	if useTUI {
		result, err = r.collectTUI(ctx, p, collector)
	} else {
		result, err = r.collectPlain(ctx, p, collector)
	}

	if result != nil && !useTUI {
		r.writeResult(result)
	}

	if errors.Is(err, context.Canceled) && result != nil && result.FinalPath != "" {
		r.logger.Warn("collection interrupted, partial results exported", "file", result.FinalPath, "records", result.Run.Len())
		return nil
	}
	return err
}

func (r *Runner) collector(ctx context.Context, p *collectPlan) (*tasks.Collector, error) {
	fetcher, err := r.fetcher(ctx)
	if err != nil {
		return nil, err
	}

	return tasks.NewCollector(tasks.CollectorOpts{
		Fetcher:         fetcher,
		Sink:            formatter.NewFileSink(p.outputDir),
		CheckpointEvery: p.checkpointEvery,
		Logger:          r.logger,
		Metrics:         r.metrics,
	})
}

// collectPlain runs the collector and logs its progress updates.
func (r *Runner) collectPlain(ctx context.Context, p *collectPlan, collector *tasks.Collector) (*tasks.CollectResult, error) {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.Capture, tasks.Checkpoint, tasks.Export:
				r.logger.Info(update.Message, "phase", update.Phase)
			default:
				r.logger.Debug(update.Message, "phase", update.Phase)
			}
		}
	}()

	result, err := collector.Run(ctx, p.run, progress)
	close(progress)
	<-done
	return result, err
}

// collectTUI runs the collector behind the bubbletea progress view.
func (r *Runner) collectTUI(ctx context.Context, p *collectPlan, collector *tasks.Collector) (*tasks.CollectResult, error) {
	label := firstNonEmpty(r.config.Collector.MarketName, p.run.PlaylistID)
	model := ui.NewModel(ctx, p.run, label, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.CollectResult, error) {
		return collector.Run(ctx, p.run, progress)
	})

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}

	result, err := model.Result()
	if result == nil && err == nil {
		return nil, shared.ErrAborted
	}
	return result, err
}

func (r *Runner) writeResult(result *tasks.CollectResult) {
	r.writePlainln("Collection finished")
	r.writePlain("Ticks:       %d (%d empty)\n", result.Ticks, result.EmptyTicks)
	r.writePlain("Records:     %d\n", result.Run.Len())
	r.writePlain("Checkpoints: %d\n", len(result.Checkpoints))
	if result.FinalPath != "" {
		r.writePlain("Export:      %s\n", result.FinalPath)
	}
}

// serveMetrics exposes the runner's Prometheus registry until the returned server is closed.
func (r *Runner) serveMetrics(addr string) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("metrics server failed", "error", err)
		}
	}()
	r.logger.Info("metrics server enabled", "addr", addr)

	return server
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
