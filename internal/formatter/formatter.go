// package formatter provides functions to export chart records to various formats (CSV, JSON, Markdown)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

// utf8BOM prefixes the CSV export so spreadsheet tools open it as UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVHeaders is the fixed column order of the tabular export.
var CSVHeaders = []string{
	"date", "time", "rank", "title", "artists", "album", "release_date", "genres", "popularity",
	"danceability", "energy", "key", "tempo", "acousticness", "instrumentalness", "liveness", "valence",
	"album_art_url",
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func csvRow(r models.ChartRecord) []string {
	art := ""
	if r.AlbumArtURL != nil {
		art = *r.AlbumArtURL
	}

	return []string{
		r.Date,
		r.Time,
		strconv.Itoa(r.Rank),
		r.Title,
		r.Artists,
		r.Album,
		r.ReleaseDate,
		r.Genres,
		strconv.Itoa(r.Popularity),
		formatFloat(r.Danceability),
		formatFloat(r.Energy),
		strconv.Itoa(r.Key),
		formatFloat(r.Tempo),
		formatFloat(r.Acousticness),
		formatFloat(r.Instrumentalness),
		formatFloat(r.Liveness),
		formatFloat(r.Valence),
		art,
	}
}

// ExportToCSV converts records to CSV with a header row in [CSVHeaders] order.
func ExportToCSV(records []models.ChartRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(CSVHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range records {
		if err := writer.Write(csvRow(r)); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts records to an indented JSON array with non-ASCII text left unescaped.
func ExportToJSON(records []models.ChartRecord) ([]byte, error) {
	if records == nil {
		records = []models.ChartRecord{}
	}
	return shared.MarshalJSON(records, true)
}

// ExportToMarkdown renders records as a Markdown table under an optional heading.
func ExportToMarkdown(records []models.ChartRecord, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title != "" {
		buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	}

	if len(records) > 0 {
		buf.WriteString(fmt.Sprintf("**Captured**: %s %s\n", records[0].Date, records[0].Time))
	}
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(records)))

	buf.WriteString("| # | Title | Artists | Genres | Popularity | Tempo | Energy |\n")
	buf.WriteString("|---|---|---|---|---|---|---|\n")
	for _, r := range records {
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %d | %.1f | %.2f |\n",
			r.Rank, escapeCell(r.Title), escapeCell(r.Artists), escapeCell(r.Genres), r.Popularity, r.Tempo, r.Energy))
	}

	return buf.Bytes(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// ReadCheckpoint loads a JSON array of records written by [FileSink.WriteCheckpoint].
func ReadCheckpoint(path string) ([]models.ChartRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var records []models.ChartRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", path, err)
	}

	return records, nil
}

// ReadCSV loads records from a file written by [FileSink.WriteFinal].
func ReadCSV(path string) ([]models.ChartRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM))).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s has no header row", shared.ErrInvalidInput, path)
	}

	records := make([]models.ChartRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		r, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// ReadRecords loads a checkpoint (.json) or a final export (.csv).
func ReadRecords(path string) ([]models.ChartRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ReadCheckpoint(path)
	case ".csv":
		return ReadCSV(path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", shared.ErrInvalidInput, filepath.Ext(path))
	}
}

func parseRow(row []string) (models.ChartRecord, error) {
	if len(row) != len(CSVHeaders) {
		return models.ChartRecord{}, fmt.Errorf("%w: expected %d columns, got %d", shared.ErrInvalidInput, len(CSVHeaders), len(row))
	}

	var errs []error
	atoi := func(s string) int {
		n, err := strconv.Atoi(s)
		errs = append(errs, err)
		return n
	}
	atof := func(s string) float64 {
		f, err := strconv.ParseFloat(s, 64)
		errs = append(errs, err)
		return f
	}

	r := models.ChartRecord{
		Date:        row[0],
		Time:        row[1],
		Rank:        atoi(row[2]),
		Title:       row[3],
		Artists:     row[4],
		Album:       row[5],
		ReleaseDate: row[6],
		Genres:      row[7],
		Popularity:  atoi(row[8]),
		AudioFeatures: models.AudioFeatures{
			Danceability:     atof(row[9]),
			Energy:           atof(row[10]),
			Key:              atoi(row[11]),
			Tempo:            atof(row[12]),
			Acousticness:     atof(row[13]),
			Instrumentalness: atof(row[14]),
			Liveness:         atof(row[15]),
			Valence:          atof(row[16]),
		},
	}
	if art := row[17]; art != "" {
		r.AlbumArtURL = &art
	}

	if err := errors.Join(errs...); err != nil {
		return models.ChartRecord{}, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}
	return r, nil
}
