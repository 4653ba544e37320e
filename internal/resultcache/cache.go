package resultcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"epubsort/internal/fileutil"
	"epubsort/internal/logging"
)

const (
	// WebFile holds discovered web metadata keyed by normalized title.
	WebFile = "web_cache.json"
	// AIFile holds title normalization results keyed by filename.
	AIFile = "ai_cache.json"
)

// legacyTimeLayout matches naive ISO-8601 timestamps written by older tooling.
const legacyTimeLayout = "2006-01-02T15:04:05.999999"

// Entry is the persisted form of one cached value.
type Entry struct {
	Data     json.RawMessage `json:"data"`
	CachedAt string          `json:"cached_at"`
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is one TTL-bounded JSON cache file.
type Store struct {
	path    string
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]Entry
}

// Open loads the cache file at path, sweeping expired entries. A missing file
// starts empty; an unreadable one is logged and also starts empty.
func Open(path string, ttl time.Duration, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		path:    path,
		ttl:     ttl,
		logger:  logging.NewComponentLogger(logger, "resultcache"),
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(); err != nil {
		logging.WarnWithContext(s.logger, "failed to load result cache", "resultcache_load_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "cache will start empty"),
			logging.String(logging.FieldImpact, "previously cached lookups will be repeated"))
		s.entries = make(map[string]Entry)
	}
	s.sweep()
	return s
}

// OpenDir opens the web and AI caches inside dir.
func OpenDir(dir string, ttl time.Duration, logger *slog.Logger, opts ...Option) (web, ai *Store) {
	return Open(filepath.Join(dir, WebFile), ttl, logger, opts...),
		Open(filepath.Join(dir, AIFile), ttl, logger, opts...)
}

// Key normalizes a cache key: lowercase, trimmed, spaces replaced by underscores.
func Key(text string) string {
	return strings.ReplaceAll(strings.TrimSpace(strings.ToLower(text)), " ", "_")
}

// Get decodes the cached value for key into target. It reports false on a
// miss, an expired entry, or a payload that no longer decodes.
func (s *Store) Get(key string, target any) bool {
	if s == nil {
		return false
	}
	k := Key(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[k]
	if !ok {
		return false
	}
	if s.expired(entry) {
		delete(s.entries, k)
		s.persist()
		return false
	}
	if len(entry.Data) == 0 || string(entry.Data) == "null" {
		return false
	}
	if err := json.Unmarshal(entry.Data, target); err != nil {
		s.logger.Debug("cached payload did not decode", logging.String("key", k), logging.Error(err))
		return false
	}
	return true
}

// Set stores value under key with the current time and persists the file.
func (s *Store) Set(key string, value any) {
	if s == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Debug("cache value did not encode", logging.String("key", key), logging.Error(err))
		return
	}
	k := Key(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[k] = Entry{Data: data, CachedAt: s.now().Format(time.RFC3339Nano)}
	s.persist()
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Path returns the backing file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) expired(entry Entry) bool {
	cachedAt, ok := parseCachedAt(entry.CachedAt)
	if !ok {
		return true
	}
	return s.now().Sub(cachedAt) > s.ttl
}

func (s *Store) sweep() {
	removed := 0
	for k, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, k)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("removed expired cache entries",
			logging.String("path", s.path),
			logging.Int("removed", removed),
			logging.Int("remaining", len(s.entries)))
	}
}

func parseCachedAt(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(legacyTimeLayout, value, time.Local); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	entries := make(map[string]Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}
	s.entries = entries
	s.logger.Debug("loaded result cache",
		logging.String("path", s.path),
		logging.Int("entry_count", len(entries)))
	return nil
}

// persist writes the cache; failures are logged and swallowed.
func (s *Store) persist() {
	if err := fileutil.WriteJSONAtomic(s.path, s.entries); err != nil {
		logging.WarnWithContext(s.logger, "failed to save result cache", "resultcache_save_failed",
			logging.String("path", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the cache directory"),
			logging.String(logging.FieldImpact, "cached lookups will be repeated next run"))
	}
}
