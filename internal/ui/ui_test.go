package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/tasks"
)

func newTestRun(t *testing.T) *models.CollectionRun {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	run, err := models.NewCollectionRun("37i9dQZEVXbNxXF4SkHj9F", start, start.Add(time.Hour), models.Hour)
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	return run
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drive feeds cmd results back into the model until a command yields nothing.
func drive(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 100 {
			t.Fatal("model did not settle")
		}
		msg := cmd()
		if msg == nil {
			return
		}
		_, cmd = m.Update(msg)
	}
}

func fakeCollect(run *models.CollectionRun, err error) RunFunc {
	return func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.CollectResult, error) {
		ticks := run.Ticks()
		for i, at := range ticks {
			records := []models.ChartRecord{
				models.NewChartRecord(at, 1, models.TrackMeta{Title: "Supernova", Artists: []string{"aespa"}}, models.AudioFeatures{}, nil),
				models.NewChartRecord(at, 2, models.TrackMeta{Title: "How Sweet"}, models.AudioFeatures{}, nil),
			}
			total := run.Append(records...)
			progress <- tasks.ProgressUpdate{Phase: tasks.Capture, Step: i + 1, Total: len(ticks), Message: "captured", Data: total}
		}
		progress <- tasks.ProgressUpdate{Phase: tasks.Checkpoint, Step: 1, Total: 1, Message: "checkpoint", Data: "data/cp.json"}
		return &tasks.CollectResult{Run: run, Ticks: len(ticks), Checkpoints: []string{"data/cp.json"}, FinalPath: "data/final.csv"}, err
	}
}

func TestModel(t *testing.T) {
	t.Run("confirm view shows the run summary", func(t *testing.T) {
		m := NewModel(context.Background(), newTestRun(t), "Korea Top 50", nil)
		view := m.View()

		for _, want := range []string{"Korea Top 50", "37i9dQZEVXbNxXF4SkHj9F", "hour", "Ticks"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected confirm view to contain %q", want)
			}
		}
	})

	t.Run("declining quits without collecting", func(t *testing.T) {
		called := false
		m := NewModel(context.Background(), newTestRun(t), "chart", func(ctx context.Context, p chan<- tasks.ProgressUpdate) (*tasks.CollectResult, error) {
			called = true
			return nil, nil
		})

		_, cmd := m.Update(keyPress("n"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
		if called {
			t.Error("expected collect not to run")
		}
	})

	t.Run("confirming runs the collection to the result view", func(t *testing.T) {
		run := newTestRun(t)
		m := NewModel(context.Background(), run, "chart", fakeCollect(run, nil))

		_, cmd := m.Update(keyPress("y"))
		if m.view != CollectView {
			t.Fatalf("expected collect view, got %v", m.view)
		}
		drive(t, m, cmd)

		if m.view != ResultView {
			t.Fatalf("expected result view, got %v", m.view)
		}
		if m.ticksDone != 2 || m.records != 4 {
			t.Errorf("expected 2 ticks and 4 records, got %d and %d", m.ticksDone, m.records)
		}
		if len(m.checkpoints) != 1 {
			t.Errorf("expected 1 checkpoint, got %v", m.checkpoints)
		}
		if len(m.resultList.Items()) != 2 {
			t.Errorf("expected 2 capture items, got %d", len(m.resultList.Items()))
		}

		result, err := m.Result()
		if err != nil || result.FinalPath != "data/final.csv" {
			t.Errorf("unexpected result %+v, %v", result, err)
		}
		if view := m.View(); !strings.Contains(view, "Collection Complete") || !strings.Contains(view, "data/final.csv") {
			t.Errorf("unexpected result view: %s", view)
		}
	})

	t.Run("partial result with error is shown as ended early", func(t *testing.T) {
		run := newTestRun(t)
		m := NewModel(context.Background(), run, "chart", fakeCollect(run, context.Canceled))

		_, cmd := m.Update(keyPress("y"))
		drive(t, m, cmd)

		if view := m.View(); !strings.Contains(view, "ended early") {
			t.Errorf("expected ended early banner, got: %s", view)
		}
	})

	t.Run("failure without a result", func(t *testing.T) {
		m := NewModel(context.Background(), newTestRun(t), "chart", func(ctx context.Context, p chan<- tasks.ProgressUpdate) (*tasks.CollectResult, error) {
			return nil, errors.New("bad credentials")
		})

		_, cmd := m.Update(keyPress("y"))
		drive(t, m, cmd)

		if view := m.View(); !strings.Contains(view, "bad credentials") {
			t.Errorf("expected error in view, got: %s", view)
		}
	})

	t.Run("stopping cancels the run context", func(t *testing.T) {
		run := newTestRun(t)
		started := make(chan struct{})
		m := NewModel(context.Background(), run, "chart", func(ctx context.Context, p chan<- tasks.ProgressUpdate) (*tasks.CollectResult, error) {
			close(started)
			<-ctx.Done()
			return &tasks.CollectResult{Run: run, FinalPath: "final.csv"}, ctx.Err()
		})

		_, cmd := m.Update(keyPress("y"))
		<-started
		m.Update(keyPress("q"))
		if !m.stopping {
			t.Error("expected stopping state")
		}
		if !strings.Contains(m.View(), "Stopping") {
			t.Error("expected stopping notice")
		}

		drive(t, m, cmd)
		if _, err := m.Result(); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestCaptureItems(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []models.ChartRecord{
		models.NewChartRecord(start, 1, models.TrackMeta{Title: "A", Artists: []string{"x"}}, models.AudioFeatures{}, nil),
		models.NewChartRecord(start, 2, models.TrackMeta{Title: "B"}, models.AudioFeatures{}, nil),
		models.NewChartRecord(start.Add(time.Hour), 1, models.TrackMeta{Title: "B", Artists: []string{"y"}}, models.AudioFeatures{}, nil),
	}

	items := captureItems(records)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0].(captureItem)
	if first.count != 2 || first.leader != "A" || first.Description() != "#1 A - x" {
		t.Errorf("unexpected first item %+v", first)
	}
	if second := items[1].(captureItem); second.leader != "B" || second.key != "20240101 01:00" {
		t.Errorf("unexpected second item %+v", second)
	}
}
