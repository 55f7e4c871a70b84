package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/chartx/internal/metrics"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
	tu "github.com/desertthunder/chartx/internal/testing"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeSnapshotter returns counts[i] records for the i-th call.
type fakeSnapshotter struct {
	counts []int
	errAt  map[int]error
	calls  []time.Time
	onCall func(i int)
}

func (f *fakeSnapshotter) Snapshot(ctx context.Context, playlistID string, at time.Time, progress chan<- ProgressUpdate) (*SnapshotResult, error) {
	i := len(f.calls)
	f.calls = append(f.calls, at)
	if f.onCall != nil {
		f.onCall(i)
	}
	if err := f.errAt[i]; err != nil {
		return nil, err
	}

	n := 0
	if i < len(f.counts) {
		n = f.counts[i]
	}
	records := make([]models.ChartRecord, n)
	for r := range records {
		records[r] = models.NewChartRecord(at, r+1, models.TrackMeta{Title: fmt.Sprintf("song %d", r+1)}, models.AudioFeatures{}, nil)
	}
	return &SnapshotResult{Records: records}, nil
}

type fakeSink struct {
	checkpoints   []int
	checkpointAt  []time.Time
	checkpointErr error
	final         []models.ChartRecord
	finalCalls    int
	finalErr      error
}

func (s *fakeSink) WriteCheckpoint(records []models.ChartRecord, at time.Time) (string, error) {
	if s.checkpointErr != nil {
		return "", s.checkpointErr
	}
	s.checkpoints = append(s.checkpoints, len(records))
	s.checkpointAt = append(s.checkpointAt, at)
	return fmt.Sprintf("checkpoint_%d.json", len(records)), nil
}

func (s *fakeSink) WriteFinal(records []models.ChartRecord, start, end time.Time, interval models.Interval) (string, error) {
	s.finalCalls++
	if s.finalErr != nil {
		return "", s.finalErr
	}
	s.final = records
	return "final.csv", nil
}

func newTestRun(t *testing.T, ticks int) *models.CollectionRun {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	run, err := models.NewCollectionRun("pl", start, start.Add(time.Duration(ticks-1)*time.Hour), models.Hour)
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	return run
}

func newTestCollector(t *testing.T, snap Snapshotter, sink Sink, m *metrics.Metrics) *Collector {
	t.Helper()
	c, err := NewCollector(CollectorOpts{
		Fetcher: snap,
		Sink:    sink,
		Logger:  shared.NewLogger(io.Discard),
		Metrics: m,
	})
	if err != nil {
		t.Fatalf("failed to create collector: %v", err)
	}
	return c
}

func TestCollector(t *testing.T) {
	t.Run("NewCollector requires fetcher and sink", func(t *testing.T) {
		if _, err := NewCollector(CollectorOpts{}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("hourly range captures three ticks", func(t *testing.T) {
		snap := &fakeSnapshotter{counts: []int{1, 1, 1}}
		sink := &fakeSink{}
		c := newTestCollector(t, snap, sink, nil)

		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		run, _ := models.NewCollectionRun("pl", start, start.Add(2*time.Hour), models.Hour)

		result, err := c.Run(context.Background(), run, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(snap.calls) != 3 || result.Ticks != 3 {
			t.Fatalf("expected 3 ticks, got %d calls and %d ticks", len(snap.calls), result.Ticks)
		}
		for i, at := range snap.calls {
			if want := start.Add(time.Duration(i) * time.Hour); !at.Equal(want) {
				t.Errorf("tick %d at %v, want %v", i, at, want)
			}
		}
		if result.FinalPath != "final.csv" || len(sink.final) != 3 {
			t.Errorf("expected final export of 3 records, got %q with %d", result.FinalPath, len(sink.final))
		}
	})

	t.Run("checkpoint rule", func(t *testing.T) {
		tt := []struct {
			name   string
			counts []int
			want   []int
		}{
			{"40 40 40 never fires", []int{40, 40, 40}, nil},
			{"50 50 fires once at 100", []int{50, 50}, []int{100}},
			{"exact hundreds fire each time", []int{100, 100}, []int{100, 200}},
			{"empty tick on a boundary fires again", []int{100, 0, 100}, []int{100, 100, 200}},
			{"count resting on a boundary fires every tick", []int{100, 0}, []int{100, 100}},
			{"all empty ticks never fire", []int{0, 0}, nil},
			{"overshooting skips the boundary", []int{60, 60, 80}, []int{200}},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				sink := &fakeSink{}
				c := newTestCollector(t, &fakeSnapshotter{counts: tc.counts}, sink, nil)

				result, err := c.Run(context.Background(), newTestRun(t, len(tc.counts)), nil)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}

				if len(sink.checkpoints) != len(tc.want) {
					t.Fatalf("expected checkpoints %v, got %v", tc.want, sink.checkpoints)
				}
				for i := range tc.want {
					if sink.checkpoints[i] != tc.want[i] {
						t.Errorf("checkpoint %d had %d records, want %d", i, sink.checkpoints[i], tc.want[i])
					}
				}
				if len(result.Checkpoints) != len(tc.want) {
					t.Errorf("expected %d checkpoint paths, got %v", len(tc.want), result.Checkpoints)
				}
			})
		}
	})

	t.Run("refired checkpoint is keyed on the later tick", func(t *testing.T) {
		sink := &fakeSink{}
		c := newTestCollector(t, &fakeSnapshotter{counts: []int{100, 0}}, sink, nil)
		run := newTestRun(t, 2)

		if _, err := c.Run(context.Background(), run, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		ticks := run.Ticks()
		if len(sink.checkpointAt) != 2 {
			t.Fatalf("expected 2 checkpoint writes, got %d", len(sink.checkpointAt))
		}
		for i, at := range sink.checkpointAt {
			if !at.Equal(ticks[i]) {
				t.Errorf("checkpoint %d at %v, want %v", i, at, ticks[i])
			}
		}
	})

	t.Run("checkpoint failure does not stop the run", func(t *testing.T) {
		m := metrics.NewMetrics()
		sink := &fakeSink{checkpointErr: errors.New("disk full")}
		c := newTestCollector(t, &fakeSnapshotter{counts: []int{100, 50}}, sink, m)

		result, err := c.Run(context.Background(), newTestRun(t, 2), nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Ticks != 2 || len(sink.final) != 150 {
			t.Errorf("expected both ticks exported, got %d ticks and %d records", result.Ticks, len(sink.final))
		}
		if len(result.Checkpoints) != 0 {
			t.Errorf("expected no checkpoint paths, got %v", result.Checkpoints)
		}
		if got := testutil.ToFloat64(m.CheckpointsTotal.WithLabelValues("failed")); got != 1 {
			t.Errorf("expected 1 failed checkpoint, got %v", got)
		}
	})

	t.Run("failed tick contributes zero records", func(t *testing.T) {
		snap := &fakeSnapshotter{counts: []int{5, 5, 5}, errAt: map[int]error{1: errors.New("listing failed")}}
		sink := &fakeSink{}
		c := newTestCollector(t, snap, sink, nil)

		result, err := c.Run(context.Background(), newTestRun(t, 3), nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Ticks != 3 || result.EmptyTicks != 1 {
			t.Errorf("expected 3 ticks with 1 empty, got %d and %d", result.Ticks, result.EmptyTicks)
		}
		if len(sink.final) != 10 {
			t.Errorf("expected 10 records, got %d", len(sink.final))
		}
	})

	t.Run("records keep capture order", func(t *testing.T) {
		sink := &fakeSink{}
		c := newTestCollector(t, &fakeSnapshotter{counts: []int{2, 2}}, sink, nil)

		if _, err := c.Run(context.Background(), newTestRun(t, 2), nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := []string{"00:00 1", "00:00 2", "01:00 1", "01:00 2"}
		for i, rec := range sink.final {
			if got := fmt.Sprintf("%s %d", rec.Time, rec.Rank); got != want[i] {
				t.Errorf("record %d = %s, want %s", i, got, want[i])
			}
		}
	})

	t.Run("final export failure is returned with the result", func(t *testing.T) {
		sink := &fakeSink{finalErr: errors.New("permission denied")}
		c := newTestCollector(t, &fakeSnapshotter{counts: []int{3}}, sink, nil)

		result, err := c.Run(context.Background(), newTestRun(t, 1), nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if result == nil || result.Run.Len() != 3 {
			t.Errorf("expected collected records in result, got %+v", result)
		}
	})

	t.Run("cancellation stops ticks but still exports", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		snap := &fakeSnapshotter{counts: []int{4, 4, 4, 4}}
		snap.onCall = func(i int) {
			if i == 1 {
				cancel()
			}
		}
		sink := &fakeSink{}
		c := newTestCollector(t, snap, sink, nil)

		result, err := c.Run(ctx, newTestRun(t, 4), nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(snap.calls) != 2 {
			t.Errorf("expected 2 snapshot calls, got %d", len(snap.calls))
		}
		if sink.finalCalls != 1 || len(sink.final) != 8 {
			t.Errorf("expected final export of 8 records, got %d calls with %d", sink.finalCalls, len(sink.final))
		}
		if result.FinalPath == "" {
			t.Error("expected final path despite cancellation")
		}
	})

	t.Run("reports progress and metrics", func(t *testing.T) {
		m := metrics.NewMetrics()
		progress := make(chan ProgressUpdate, 32)
		c := newTestCollector(t, &fakeSnapshotter{counts: []int{50, 0, 50}}, &fakeSink{}, m)

		if _, err := c.Run(context.Background(), newTestRun(t, 3), progress); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		seen := map[Phase]int{}
		for u := range progress {
			seen[u.Phase]++
		}
		if seen[Capture] != 6 || seen[Checkpoint] != 1 || seen[Export] != 2 {
			t.Errorf("unexpected phase counts %v", seen)
		}

		if got := testutil.ToFloat64(m.RecordsTotal); got != 100 {
			t.Errorf("expected 100 records, got %v", got)
		}
		if got := testutil.ToFloat64(m.TicksTotal.WithLabelValues("empty")); got != 1 {
			t.Errorf("expected 1 empty tick, got %v", got)
		}
	})
}

func TestCollectorWithFetcher(t *testing.T) {
	svc := newMockService(3)
	f := newTestFetcher(t, svc, &tu.FakeSleeper{}, 0)
	sink := &fakeSink{}
	c := newTestCollector(t, f, sink, nil)

	if _, err := c.Run(context.Background(), newTestRun(t, 2), nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(sink.final) != 6 {
		t.Fatalf("expected 6 records, got %d", len(sink.final))
	}
	if sink.final[3].Rank != 1 || sink.final[3].Time != "01:00" {
		t.Errorf("expected second capture to restart ranks, got %+v", sink.final[3])
	}
}
