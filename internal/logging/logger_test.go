package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"epubsort/internal/config"
	"epubsort/internal/logging"
	"epubsort/internal/services"
)

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogFile = filepath.Join(t.TempDir(), "logs", "app.log")

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("run started", logging.String("input", "books"))

	data, err := os.ReadFile(cfg.Paths.LogFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", data, err)
	}
	if entry["msg"] != "run started" || entry["input"] != "books" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", entry["level"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
}

func TestConsoleLoggerHeaderAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithFile(context.Background(), "book.epub")
	ctx = services.WithStage(ctx, "classify")
	component := logging.NewComponentLogger(logger, "pipeline")
	logging.WithContext(ctx, component).Info("stage completed", logging.String("label", "human_translation"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	for _, fragment := range []string{"INFO [pipeline] book.epub (classify) – stage completed", "    - label: human_translation"} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in %q", fragment, text)
		}
	}
	if strings.Contains(text, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", text)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected caller in debug logs, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "cache load failed", "cache_load_failed", logging.String(logging.FieldImpact, "cache starts empty"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry[logging.FieldEventType] != "cache_load_failed" {
		t.Fatalf("unexpected event type: %v", entry)
	}
	if entry[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error hint: %v", entry)
	}
	if entry[logging.FieldImpact] != "cache starts empty" {
		t.Fatalf("expected caller impact preserved: %v", entry)
	}
}

func TestTeeHandlerDuplicatesRecords(t *testing.T) {
	var a, b bytes.Buffer
	h := logging.TeeHandler(
		slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		nil,
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h).With("run", "r1")
	logger.Info("only first")
	logger.Warn("both")

	if got := strings.Count(a.String(), "\n"); got != 2 {
		t.Fatalf("expected 2 lines in first sink, got %d", got)
	}
	if got := strings.Count(b.String(), "\n"); got != 1 {
		t.Fatalf("expected 1 line in second sink, got %d", got)
	}
	if !strings.Contains(b.String(), `"run":"r1"`) {
		t.Fatalf("expected attrs forwarded, got %q", b.String())
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected no-op logger to be disabled")
	}
}
