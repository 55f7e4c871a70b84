package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/chartx/internal/shared"
)

const (
	// UnknownGenre is rendered when an artist has no resolvable genres.
	UnknownGenre = "Unknown"

	DateLayout = "20060102"
	TimeLayout = "15:04"
)

// AudioFeatures holds the audio-analysis attributes copied onto a [ChartRecord].
type AudioFeatures struct {
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Key              int     `json:"key"`
	Tempo            float64 `json:"tempo"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
}

// TrackMeta is the listing-level metadata needed to build a [ChartRecord].
type TrackMeta struct {
	Title       string
	Artists     []string
	Album       string
	ReleaseDate string
	Popularity  int
	AlbumArtURL *string
}

// ChartRecord is one track's snapshot at one capture tick.
//
// Records are values; nothing mutates them after [NewChartRecord].
type ChartRecord struct {
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Rank        int     `json:"rank"`
	Title       string  `json:"title"`
	Artists     string  `json:"artists"`
	Album       string  `json:"album"`
	ReleaseDate string  `json:"release_date"`
	Genres      string  `json:"genres"`
	Popularity  int     `json:"popularity"`
	AlbumArtURL *string `json:"album_art_url"`
	AudioFeatures
}

// NewChartRecord assembles a record for the tick at capturedAt.
func NewChartRecord(capturedAt time.Time, rank int, meta TrackMeta, features AudioFeatures, genres []string) ChartRecord {
	return ChartRecord{
		Date:          capturedAt.Format(DateLayout),
		Time:          capturedAt.Format(TimeLayout),
		Rank:          rank,
		Title:         meta.Title,
		Artists:       strings.Join(meta.Artists, ", "),
		Album:         meta.Album,
		ReleaseDate:   meta.ReleaseDate,
		Genres:        JoinGenres(genres),
		Popularity:    meta.Popularity,
		AlbumArtURL:   meta.AlbumArtURL,
		AudioFeatures: features,
	}
}

// JoinGenres renders a genre list, falling back to [UnknownGenre] when empty.
func JoinGenres(genres []string) string {
	if len(genres) == 0 {
		return UnknownGenre
	}
	return strings.Join(genres, ", ")
}

// CaptureKey identifies the tick a record belongs to.
func (r ChartRecord) CaptureKey() string {
	return r.Date + " " + r.Time
}

// Interval is the polling unit between capture ticks.
type Interval string

const (
	Hour  Interval = "hour"
	Day   Interval = "day"
	Week  Interval = "week"
	Month Interval = "month"
	Year  Interval = "year"
)

// Intervals lists every supported unit in ascending order.
var Intervals = []Interval{Hour, Day, Week, Month, Year}

// ParseInterval converts a unit name (case-insensitive) to an [Interval].
func ParseInterval(s string) (Interval, error) {
	iv := Interval(strings.ToLower(strings.TrimSpace(s)))
	if iv.Duration() <= 0 {
		return "", fmt.Errorf("%w: unknown interval %q (use hour, day, week, month or year)", shared.ErrInvalidInput, s)
	}
	return iv, nil
}

// Duration returns the fixed delta for the interval.
//
// Month is 30 days and year is 365 days.
func (i Interval) Duration() time.Duration {
	switch i {
	case Hour:
		return time.Hour
	case Day:
		return 24 * time.Hour
	case Week:
		return 7 * 24 * time.Hour
	case Month:
		return 30 * 24 * time.Hour
	case Year:
		return 365 * 24 * time.Hour
	default:
		return 0
	}
}

func (i Interval) String() string {
	return string(i)
}

// CollectionRun holds the parameters of one invocation and its accumulated records.
//
// Records are kept in capture order, then rank order within each capture.
type CollectionRun struct {
	ID         string
	PlaylistID string
	Start      time.Time
	End        time.Time
	Interval   Interval
	records    []ChartRecord
}

// NewCollectionRun validates the range and interval and returns an empty run.
func NewCollectionRun(playlistID string, start, end time.Time, interval Interval) (*CollectionRun, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}
	if interval.Duration() <= 0 {
		return nil, fmt.Errorf("%w: interval %q has no positive duration", shared.ErrInvalidInput, interval)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", shared.ErrInvalidInput, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	return &CollectionRun{
		ID:         shared.GenerateID(),
		PlaylistID: playlistID,
		Start:      start,
		End:        end,
		Interval:   interval,
	}, nil
}

// TickCount is floor((end-start)/interval) + 1.
func (r *CollectionRun) TickCount() int {
	return int(r.End.Sub(r.Start)/r.Interval.Duration()) + 1
}

// Ticks returns every capture timestamp from start, advancing by one interval while <= end.
//
// The final tick can fall strictly before end when the range is not an exact multiple.
func (r *CollectionRun) Ticks() []time.Time {
	n := r.TickCount()
	step := r.Interval.Duration()
	ticks := make([]time.Time, 0, n)
	for current := r.Start; !current.After(r.End); current = current.Add(step) {
		ticks = append(ticks, current)
	}
	return ticks
}

// Append adds the records of one tick to the buffer.
func (r *CollectionRun) Append(records ...ChartRecord) int {
	r.records = append(r.records, records...)
	return len(r.records)
}

// Len reports the cumulative buffer size.
func (r *CollectionRun) Len() int {
	return len(r.records)
}

// Records returns a copy of the buffer for readers such as sinks.
func (r *CollectionRun) Records() []ChartRecord {
	out := make([]ChartRecord, len(r.records))
	copy(out, r.records)
	return out
}

// RetryPolicy configures the rate-limited API client.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
	MaxWait     time.Duration
	DefaultHint time.Duration // used when a rate-limit signal carries no Retry-After
}

// DefaultRetryPolicy returns 5 attempts, 2s base delay, up to 2s jitter and a 60s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxJitter:   2 * time.Second,
		MaxWait:     60 * time.Second,
		DefaultHint: 2 * time.Second,
	}
}

// Validate ensures the policy values are coherent.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max attempts must be positive", shared.ErrInvalidConfig)
	}
	if p.BaseDelay < 0 || p.MaxJitter < 0 || p.DefaultHint < 0 {
		return fmt.Errorf("%w: retry delays cannot be negative", shared.ErrInvalidConfig)
	}
	if p.MaxWait <= 0 {
		return fmt.Errorf("%w: max wait must be positive", shared.ErrInvalidConfig)
	}
	if p.BaseDelay > p.MaxWait {
		return fmt.Errorf("%w: base delay (%s) cannot exceed max wait (%s)", shared.ErrInvalidConfig, p.BaseDelay, p.MaxWait)
	}
	return nil
}
