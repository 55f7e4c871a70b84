package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/chartx/internal/models"
)

// CheckpointFilename names a checkpoint for the tick at t.
func CheckpointFilename(t time.Time) string {
	return fmt.Sprintf("spotify_chart_data_%s.json", t.Format("20060102_1504"))
}

// FinalFilename names the tabular export for a run.
func FinalFilename(start, end time.Time) string {
	return fmt.Sprintf("spotify_charts_%s_%s.csv", start.Format(models.DateLayout), end.Format(models.DateLayout))
}

// FileSink writes checkpoints and the final export into a directory.
type FileSink struct {
	Dir string
}

// NewFileSink creates a [FileSink]. An empty dir means the working directory.
func NewFileSink(dir string) *FileSink {
	if dir == "" {
		dir = "."
	}
	return &FileSink{Dir: dir}
}

// WriteCheckpoint writes the whole buffer as JSON, replacing any checkpoint with the same name.
func (s *FileSink) WriteCheckpoint(records []models.ChartRecord, at time.Time) (string, error) {
	data, err := ExportToJSON(records)
	if err != nil {
		return "", fmt.Errorf("failed to generate checkpoint JSON: %w", err)
	}

	path := filepath.Join(s.Dir, CheckpointFilename(at))
	if err := writeFile(path, data); err != nil {
		return "", fmt.Errorf("failed to write checkpoint: %w", err)
	}

	return path, nil
}

// WriteFinal writes the records as a BOM-prefixed UTF-8 CSV.
func (s *FileSink) WriteFinal(records []models.ChartRecord, start, end time.Time, interval models.Interval) (string, error) {
	data, err := ExportToCSV(records)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	path := filepath.Join(s.Dir, FinalFilename(start, end))
	if err := writeFile(path, append(append([]byte{}, utf8BOM...), data...)); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return path, nil
}

// WriteSnapshot writes one capture as JSON named after its tick.
func (s *FileSink) WriteSnapshot(records []models.ChartRecord, at time.Time) (string, error) {
	return s.WriteCheckpoint(records, at)
}

func writeFile(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}
