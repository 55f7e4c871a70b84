package tasks

import (
	"fmt"
	"time"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchListing Phase = iota
	FetchFeatures
	FetchGenres
	Capture
	Checkpoint
	Export
)

func (p Phase) String() string {
	switch p {
	case FetchListing:
		return "fetch_listing"
	case FetchFeatures:
		return "fetch_features"
	case FetchGenres:
		return "fetch_genres"
	case Capture:
		return "capture"
	case Checkpoint:
		return "checkpoint"
	case Export:
		return "export"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchListingUpdate(playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchListing,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist %s...", playlistID),
	}
}

func fetchFeaturesUpdate(step, total, size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFeatures,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching audio features for %d tracks...", step, total, size),
	}
}

func fetchGenresUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchGenres,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving genres: %s", step, total, title),
	}
}

func captureUpdate(step, total int, at time.Time) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Capture,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Capturing %s", step, total, at.Format("2006-01-02 15:04")),
		Data:    at,
	}
}

func capturedUpdate(step, total, records, cumulative int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Capture,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %d records (%d total)", step, total, records, cumulative),
		Data:    cumulative,
	}
}

func checkpointUpdate(path string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Checkpoint,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Checkpoint saved: %s (%d records)", path, count),
		Data:    path,
	}
}

func checkpointFailedUpdate(err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Checkpoint,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✗ Checkpoint failed: %v", err),
	}
}

func exportUpdate(step int, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Export,
		Step:    step,
		Total:   1,
		Message: fmt.Sprintf("Exporting %d records...", count),
	}
}
