package testsupport

import (
	"path/filepath"
	"testing"

	"epubsort/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// AI is disabled and no API key is set unless an option says otherwise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.APIKeys.GoogleAPIKey = ""
	cfgVal.Features.AIAllowed = false
	cfgVal.Paths.InputFolder = filepath.Join(base, "books")
	cfgVal.Paths.OutputBaseFolder = filepath.Join(base, "Output")
	cfgVal.Paths.CacheDir = filepath.Join(base, ".cache")
	cfgVal.Paths.ReportDir = filepath.Join(base, "result")
	cfgVal.Paths.LogFile = filepath.Join(base, "logs", "app.log")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithAI enables the AI gate with the given API key.
func WithAI(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.APIKeys.GoogleAPIKey = key
		b.cfg.Features.AIAllowed = true
	}
}

// WithDryRun toggles dry-run mode.
func WithDryRun(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Features.DryRun = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.InputFolder)
}
