package shared

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "hour form",
			input: "2024-01-01T05",
			want:  time.Date(2024, 1, 1, 5, 0, 0, 0, time.Local),
		},
		{
			name:  "minute form",
			input: "2024-03-02T13:30",
			want:  time.Date(2024, 3, 2, 13, 30, 0, 0, time.Local),
		},
		{
			name:  "date only",
			input: "2024-12-31",
			want:  time.Date(2024, 12, 31, 0, 0, 0, 0, time.Local),
		},
		{
			name:  "space separated",
			input: " 2024 1 1 0 ",
			want:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local),
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if err != nil {
				t.Fatalf("ParseTimestamp() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("invalid input", func(t *testing.T) {
		for _, input := range []string{"", "yesterday", "2024 13 1 0", "2024 2 30 0", "2024 1 1 24", "2024 1 1"} {
			if _, err := ParseTimestamp(input); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ParseTimestamp(%q) expected ErrInvalidInput, got %v", input, err)
			}
		}
	})
}

func TestMarshalJSON(t *testing.T) {
	data := map[string]string{"title": "밤양갱 <live>"}

	t.Run("compact keeps non-ASCII", func(t *testing.T) {
		out, err := MarshalJSON(data, false)
		if err != nil {
			t.Fatalf("MarshalJSON() error = %v", err)
		}
		if string(out) != `{"title":"밤양갱 <live>"}` {
			t.Errorf("unexpected output %s", out)
		}
	})

	t.Run("pretty indents", func(t *testing.T) {
		out, err := MarshalJSON(data, true)
		if err != nil {
			t.Fatalf("MarshalJSON() error = %v", err)
		}
		if !strings.Contains(string(out), "\n  \"title\"") {
			t.Errorf("expected indented output, got %s", out)
		}
	})

	t.Run("unsupported value", func(t *testing.T) {
		if _, err := MarshalJSON(make(chan int), false); err == nil {
			t.Error("expected error for channel value")
		}
	})
}

func TestLoggers(t *testing.T) {
	t.Run("NewLogger writes to the given writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "op", "test")
		logger.Info("hello")

		if !strings.Contains(buf.String(), "op=test") {
			t.Errorf("expected child logger fields, got %q", buf.String())
		}
	})

	t.Run("NewFileLogger creates directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "chartx.log")
		logger, f, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger() error = %v", err)
		}
		logger.Info("written")
		f.Close()

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		if !strings.Contains(string(content), "written") {
			t.Errorf("expected log line in file, got %q", content)
		}
	})

	t.Run("GenerateID is unique", func(t *testing.T) {
		if GenerateID() == GenerateID() {
			t.Error("expected distinct ids")
		}
	})
}
