package testsupport

import (
	"path/filepath"
	"testing"

	"epubsort/internal/checkpoint"
	"epubsort/internal/config"
	"epubsort/internal/logging"
)

// OpenLedger opens the checkpoint ledger under the config's cache directory.
func OpenLedger(t testing.TB, cfg *config.Config) *checkpoint.Ledger {
	t.Helper()
	return checkpoint.Open(filepath.Join(cfg.Paths.CacheDir, checkpoint.FileName), logging.NewNop())
}
