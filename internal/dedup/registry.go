package dedup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"epubsort/internal/fileutil"
	"epubsort/internal/logging"
)

// FileName is the registry file inside the cache directory.
const FileName = "dedup_registry.json"

// Registry maps content hashes to the first path seen with that hash.
type Registry struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	hashes map[string]string
}

// Open loads the registry at path. A missing or unreadable file starts empty.
func Open(path string, logger *slog.Logger) *Registry {
	r := &Registry{
		path:   path,
		logger: logging.NewComponentLogger(logger, "dedup"),
		hashes: make(map[string]string),
	}
	if err := r.load(); err != nil {
		logging.WarnWithContext(r.logger, "failed to load dedup registry", "dedup_load_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "registry will start empty"),
			logging.String(logging.FieldImpact, "duplicates of earlier runs will not be flagged"))
		r.hashes = make(map[string]string)
	}
	return r
}

// Lookup returns the path first registered for hash.
func (r *Registry) Lookup(hash string) (string, bool) {
	if r == nil || hash == "" {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	path, ok := r.hashes[hash]
	return path, ok
}

// Register records path for hash unless the hash is already known. It
// reports whether a new entry was written.
func (r *Registry) Register(hash, path string) bool {
	if r == nil || strings.TrimSpace(hash) == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hashes[hash]; exists {
		return false
	}
	r.hashes[hash] = path
	if err := fileutil.WriteJSONAtomic(r.path, r.hashes); err != nil {
		logging.WarnWithContext(r.logger, "failed to save dedup registry", "dedup_save_failed",
			logging.String("path", r.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the cache directory"),
			logging.String(logging.FieldImpact, "duplicate detection resets next run"))
	}
	return true
}

// Count returns the number of registered hashes.
func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hashes)
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read registry: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	hashes := make(map[string]string)
	if err := json.Unmarshal(data, &hashes); err != nil {
		return fmt.Errorf("parse registry: %w", err)
	}
	r.hashes = hashes
	r.logger.Debug("dedup registry loaded", logging.Int("entry_count", len(hashes)))
	return nil
}
