package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, key := range []string{"GOOGLE_API_KEY", "INPUT_FOLDER", "OUTPUT_FOLDER", "DRY_RUN", "HEADLESS"} {
		t.Setenv(key, "")
	}
	t.Chdir(dir)
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func initConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if _, err := execute(t, "config", "init", "--path", path); err != nil {
		t.Fatalf("config init returned error: %v", err)
	}
	return path
}

func TestConfigInitAndValidate(t *testing.T) {
	dir := isolate(t)
	path := initConfig(t, dir)

	if _, err := execute(t, "config", "init", "--path", path); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, err := execute(t, "config", "init", "--path", path, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite returned error: %v", err)
	}

	out, err := execute(t, "--config", path, "config", "validate")
	if err != nil {
		t.Fatalf("config validate returned error: %v", err)
	}
	for _, fragment := range []string{"Config path: " + path, "AI classification: no", "Configuration valid"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in output %q", fragment, out)
		}
	}
}

func TestRunWritesReportsAndCorruptedState(t *testing.T) {
	dir := isolate(t)
	path := initConfig(t, dir)
	input := filepath.Join(dir, "books")
	if err := os.MkdirAll(input, 0o755); err != nil {
		t.Fatalf("mkdir input: %v", err)
	}
	if err := os.WriteFile(filepath.Join(input, "broken.epub"), []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("write epub: %v", err)
	}

	out, err := execute(t, "--config", path, "run")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.Contains(out, "Run summary") || !strings.Contains(out, "Errors") {
		t.Fatalf("expected summary table, got %q", out)
	}
	for _, name := range []string{"MachineReport.xlsx", metricsFile} {
		if _, err := os.Stat(filepath.Join(dir, "result", name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "result", "HumanReport.xlsx")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no human report, stat err: %v", err)
	}

	out, err = execute(t, "--config", path, "state")
	if err != nil {
		t.Fatalf("state returned error: %v", err)
	}
	if !strings.Contains(out, "broken.epub") {
		t.Fatalf("expected corrupted file listed, got %q", out)
	}

	out, err = execute(t, "--config", path, "state", "clear-corrupted", "broken.epub")
	if err != nil {
		t.Fatalf("clear-corrupted returned error: %v", err)
	}
	if !strings.Contains(out, "Cleared corrupted mark") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := execute(t, "--config", path, "state", "clear-corrupted", "broken.epub"); !errors.Is(err, errNotCorrupted) {
		t.Fatalf("expected errNotCorrupted, got %v", err)
	}
}

func TestRunDryRunFlagOnEmptyInput(t *testing.T) {
	dir := isolate(t)
	path := initConfig(t, dir)

	out, err := execute(t, "--config", path, "run", "--dry-run", "--no-cache", "--no-resume")
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.Contains(out, "(dry run)") {
		t.Fatalf("expected dry run summary, got %q", out)
	}
	if info, err := os.Stat(filepath.Join(dir, "books")); err != nil || !info.IsDir() {
		t.Fatalf("expected input folder created: %v", err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{fmt.Errorf("run: %w", context.Canceled), exitInterrupted},
		{errors.New("boom"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRootCommandDefaultsToRun(t *testing.T) {
	dir := isolate(t)
	path := initConfig(t, dir)

	out, err := execute(t, "--config", path)
	if err != nil {
		t.Fatalf("root command returned error: %v", err)
	}
	if !strings.Contains(out, "Run summary") {
		t.Fatalf("expected run summary, got %q", out)
	}
}
