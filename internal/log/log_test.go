package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	logger := New(Config{})
	if logger == nil {
		t.Fatal("New() returned nil")
	}
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(&buf, Config{
		Level: slog.LevelDebug,
	})

	logger.Debug("opened store", "path", "/tmp/soil.db")

	output := buf.String()
	if !strings.Contains(output, "opened store") {
		t.Errorf("expected output to contain 'opened store', got: %s", output)
	}
	if !strings.Contains(output, "path=/tmp/soil.db") {
		t.Errorf("expected output to contain 'path=/tmp/soil.db', got: %s", output)
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(&buf, Config{
		Level: slog.LevelInfo,
		JSON:  true,
	})

	logger.Info("rebuild complete", "rows", 42)

	output := buf.String()
	if !strings.Contains(output, `"msg":"rebuild complete"`) {
		t.Errorf("expected JSON output with msg field, got: %s", output)
	}
}

func TestNewWithWriterLevel(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo})
	logger.Debug("too quiet")

	if buf.Len() != 0 {
		t.Errorf("debug output should be suppressed at info level, got: %s", buf.String())
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	if logger == nil {
		t.Fatal("NewNop() returned nil")
	}

	// Should not panic
	logger.Info("this should be discarded")
	logger.Error("this too")
}
