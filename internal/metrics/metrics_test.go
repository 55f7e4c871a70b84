package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	t.Run("counters increment", func(t *testing.T) {
		m := NewMetrics()

		m.ObserveRequest("audio_features", "200", 150*time.Millisecond)
		m.ObserveRequest("audio_features", "200", 50*time.Millisecond)
		m.IncRetry("artist", "rate_limited")
		m.IncError("artist", "rate_limited")
		m.AddRecords(50)
		m.IncSkipped("missing_features")
		m.IncTick("captured")
		m.IncCheckpoint("written")
		m.IncCacheHit()

		if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("audio_features", "200")); got != 2 {
			t.Errorf("expected 2 requests, got %v", got)
		}
		if got := testutil.ToFloat64(m.RetriesTotal.WithLabelValues("artist", "rate_limited")); got != 1 {
			t.Errorf("expected 1 retry, got %v", got)
		}
		if got := testutil.ToFloat64(m.RecordsTotal); got != 50 {
			t.Errorf("expected 50 records, got %v", got)
		}
		if got := testutil.ToFloat64(m.CheckpointsTotal.WithLabelValues("written")); got != 1 {
			t.Errorf("expected 1 checkpoint, got %v", got)
		}
		if got := testutil.ToFloat64(m.GenreCacheHitTotal); got != 1 {
			t.Errorf("expected 1 cache hit, got %v", got)
		}
	})

	t.Run("nil receiver is a no-op", func(t *testing.T) {
		var m *Metrics
		m.ObserveRequest("playlist_tracks", "500", time.Second)
		m.IncRetry("op", "transient")
		m.IncError("op", "fatal")
		m.AddRecords(1)
		m.IncSkipped("missing_track")
		m.IncTick("empty")
		m.IncCheckpoint("failed")
		m.IncCacheHit()
	})

	t.Run("Handler serves registry", func(t *testing.T) {
		m := NewMetrics()
		m.AddRecords(3)

		srv := httptest.NewServer(m.Handler())
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL)
		if err != nil {
			t.Fatalf("failed to scrape metrics: %v", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), "chartx_records_total 3") {
			t.Errorf("expected records counter in output, got:\n%s", body)
		}
	})
}
