// package report renders collected chart records as an HTML page of charts.
package report

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

// DefaultTopN is how many titles the rank chart follows.
const DefaultTopN = 10

type Options struct {
	Title string
	TopN  int
}

// Loader returns the records to plot on each request.
type Loader func() ([]models.ChartRecord, error)

// Summary aggregates a run's records per capture.
type Summary struct {
	Captures []string
	// Ranks maps a title to its rank at each capture; 0 means absent.
	Ranks  map[string][]int
	Genres map[string]int
	Tracks int
	Audio  []models.AudioFeatures
}

// Summarize groups records by capture key, keeping the order in which captures first appear.
func Summarize(records []models.ChartRecord) *Summary {
	s := &Summary{Ranks: make(map[string][]int), Genres: make(map[string]int)}
	index := make(map[string]int)
	seen := make(map[string]bool)

	for _, r := range records {
		key := r.CaptureKey()
		if _, ok := index[key]; !ok {
			index[key] = len(s.Captures)
			s.Captures = append(s.Captures, key)
		}
	}

	for _, r := range records {
		ranks, ok := s.Ranks[r.Title]
		if !ok {
			ranks = make([]int, len(s.Captures))
			s.Ranks[r.Title] = ranks
		}
		if at := index[r.CaptureKey()]; ranks[at] == 0 || r.Rank < ranks[at] {
			ranks[at] = r.Rank
		}

		if !seen[r.Title] {
			seen[r.Title] = true
			s.Tracks++
			s.Audio = append(s.Audio, r.AudioFeatures)
			for _, g := range strings.Split(r.Genres, ", ") {
				if g = strings.TrimSpace(g); g != "" {
					s.Genres[g]++
				}
			}
		}
	}

	return s
}

// TopTitles returns the n titles with the best average rank across the captures they appear in.
func (s *Summary) TopTitles(n int) []string {
	type scored struct {
		title string
		avg   float64
		hits  int
	}

	all := make([]scored, 0, len(s.Ranks))
	for title, ranks := range s.Ranks {
		sum, hits := 0, 0
		for _, r := range ranks {
			if r > 0 {
				sum += r
				hits++
			}
		}
		if hits > 0 {
			all = append(all, scored{title, float64(sum) / float64(hits), hits})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].hits != all[j].hits {
			return all[i].hits > all[j].hits
		}
		if all[i].avg != all[j].avg {
			return all[i].avg < all[j].avg
		}
		return all[i].title < all[j].title
	})

	if n > len(all) {
		n = len(all)
	}
	titles := make([]string, n)
	for i := range titles {
		titles[i] = all[i].title
	}
	return titles
}

func themeOpts() charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros})
}

func rankChart(s *Summary, topN int) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Rank Over Time", Subtitle: fmt.Sprintf("Top %d titles", topN)}),
		themeOpts(),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Type: "scroll", Top: "bottom"}),
	)

	line.SetXAxis(s.Captures)
	for _, title := range s.TopTitles(topN) {
		items := make([]opts.LineData, len(s.Captures))
		for i, rank := range s.Ranks[title] {
			if rank > 0 {
				items[i] = opts.LineData{Value: rank}
			} else {
				items[i] = opts.LineData{Value: "-"}
			}
		}
		line.AddSeries(title, items)
	}
	return line
}

func genreChart(s *Summary, limit int) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Genre Frequency", Subtitle: fmt.Sprintf("%d unique tracks", s.Tracks)}),
		themeOpts(),
	)

	genres := make([]string, 0, len(s.Genres))
	for g := range s.Genres {
		genres = append(genres, g)
	}
	sort.Slice(genres, func(i, j int) bool {
		if s.Genres[genres[i]] != s.Genres[genres[j]] {
			return s.Genres[genres[i]] > s.Genres[genres[j]]
		}
		return genres[i] < genres[j]
	})
	if len(genres) > limit {
		genres = genres[:limit]
	}

	items := make([]opts.BarData, len(genres))
	for i, g := range genres {
		items[i] = opts.BarData{Value: s.Genres[g]}
	}
	bar.SetXAxis(genres).AddSeries("Tracks", items)
	return bar
}

func moodChart(s *Summary) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Mood"}),
		themeOpts(),
	)

	buckets := map[string]int{}
	for _, a := range s.Audio {
		buckets[mood(a)]++
	}

	var items []opts.PieData
	for _, name := range []string{"upbeat", "intense", "calm", "melancholy"} {
		if n := buckets[name]; n > 0 {
			items = append(items, opts.PieData{Name: name, Value: n})
		}
	}
	pie.AddSeries("Tracks", items)
	return pie
}

// mood buckets a track by energy and valence quadrants.
func mood(a models.AudioFeatures) string {
	switch {
	case a.Energy >= 0.5 && a.Valence >= 0.5:
		return "upbeat"
	case a.Energy >= 0.5:
		return "intense"
	case a.Valence >= 0.5:
		return "calm"
	default:
		return "melancholy"
	}
}

// Render writes the rank, genre and mood charts as a single HTML page.
func Render(w io.Writer, records []models.ChartRecord, o Options) error {
	if len(records) == 0 {
		return fmt.Errorf("%w: no records to plot", shared.ErrInvalidInput)
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}

	s := Summarize(records)
	page := components.NewPage()
	if o.Title != "" {
		page.PageTitle = o.Title
	}
	page.AddCharts(rankChart(s, o.TopN), genreChart(s, 20), moodChart(s))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// Handler serves a freshly rendered report on every request.
func Handler(load Loader, o Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		records, err := load()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := Render(w, records, o); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		}
	})
}
