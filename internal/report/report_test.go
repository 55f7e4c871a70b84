package report

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

func capture(at time.Time, titles ...string) []models.ChartRecord {
	records := make([]models.ChartRecord, len(titles))
	for i, title := range titles {
		records[i] = models.NewChartRecord(at, i+1, models.TrackMeta{Title: title}, models.AudioFeatures{Energy: 0.8, Valence: 0.7}, []string{"k-pop"})
	}
	return records
}

func testRecords() []models.ChartRecord {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var records []models.ChartRecord
	records = append(records, capture(start, "A", "B", "C")...)
	records = append(records, capture(start.Add(time.Hour), "B", "A", "D")...)
	records = append(records, capture(start.Add(2*time.Hour), "B", "A")...)
	return records
}

func TestSummarize(t *testing.T) {
	s := Summarize(testRecords())

	t.Run("captures keep first-seen order", func(t *testing.T) {
		want := []string{"20240101 00:00", "20240101 01:00", "20240101 02:00"}
		if strings.Join(s.Captures, "|") != strings.Join(want, "|") {
			t.Errorf("expected %v, got %v", want, s.Captures)
		}
	})

	t.Run("ranks per capture with zero for absence", func(t *testing.T) {
		tt := []struct {
			title string
			want  []int
		}{
			{"A", []int{1, 2, 2}},
			{"B", []int{2, 1, 1}},
			{"C", []int{3, 0, 0}},
			{"D", []int{0, 3, 0}},
		}
		for _, tc := range tt {
			got := s.Ranks[tc.title]
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("%s ranks = %v, want %v", tc.title, got, tc.want)
					break
				}
			}
		}
	})

	t.Run("genres count unique tracks", func(t *testing.T) {
		if s.Tracks != 4 || s.Genres["k-pop"] != 4 {
			t.Errorf("expected 4 tracks tagged k-pop, got %d tracks and %d", s.Tracks, s.Genres["k-pop"])
		}
	})

	t.Run("TopTitles prefers presence then average rank", func(t *testing.T) {
		got := s.TopTitles(3)
		want := []string{"B", "A", "C"}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, got)
		}
		if n := len(s.TopTitles(50)); n != 4 {
			t.Errorf("expected TopTitles to clamp to 4, got %d", n)
		}
	})
}

func TestMood(t *testing.T) {
	tt := []struct {
		name string
		a    models.AudioFeatures
		want string
	}{
		{"high energy high valence", models.AudioFeatures{Energy: 0.9, Valence: 0.9}, "upbeat"},
		{"high energy low valence", models.AudioFeatures{Energy: 0.9, Valence: 0.1}, "intense"},
		{"low energy high valence", models.AudioFeatures{Energy: 0.2, Valence: 0.6}, "calm"},
		{"low energy low valence", models.AudioFeatures{}, "melancholy"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := mood(tc.a); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestRender(t *testing.T) {
	t.Run("renders all charts", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Render(&buf, testRecords(), Options{Title: "Korea Top 50", TopN: 2}); err != nil {
			t.Fatalf("Render failed: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"Rank Over Time", "Genre Frequency", "Mood", "k-pop", "Korea Top 50", "themes/westeros.js"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("charts use the westeros theme", func(t *testing.T) {
		s := Summarize(testRecords())
		if theme := rankChart(s, 2).Theme; theme != types.ThemeWesteros {
			t.Errorf("rank chart theme = %q, want %q", theme, types.ThemeWesteros)
		}
		if theme := genreChart(s, 20).Theme; theme != types.ThemeWesteros {
			t.Errorf("genre chart theme = %q, want %q", theme, types.ThemeWesteros)
		}
		if theme := moodChart(s).Theme; theme != types.ThemeWesteros {
			t.Errorf("mood chart theme = %q, want %q", theme, types.ThemeWesteros)
		}
	})

	t.Run("rejects empty input", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Render(&buf, nil, Options{}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestHandler(t *testing.T) {
	t.Run("serves HTML", func(t *testing.T) {
		h := Handler(func() ([]models.ChartRecord, error) { return testRecords(), nil }, Options{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("unexpected content type %q", ct)
		}
	})

	t.Run("loader failure is a server error", func(t *testing.T) {
		h := Handler(func() ([]models.ChartRecord, error) { return nil, errors.New("missing file") }, Options{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("no records is unprocessable", func(t *testing.T) {
		h := Handler(func() ([]models.ChartRecord, error) { return nil, nil }, Options{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", rec.Code)
		}
	})
}
