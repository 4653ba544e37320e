package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"epubsort/internal/fileutil"
	"epubsort/internal/logging"
)

// FileName is the ledger file inside the cache directory.
const FileName = "checkpoint.json"

// Entry statuses.
const (
	StatusOK        = "ok"
	StatusCorrupted = "corrupted"
)

// Entry is one ledger row. Fields holds everything persisted for the file,
// including status and timestamps.
type Entry struct {
	Filename string
	Fields   map[string]any
}

// Status returns the entry's status string.
func (e Entry) Status() string {
	s, _ := e.Fields["status"].(string)
	return s
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// Ledger tracks processed and corrupted files.
type Ledger struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	processed map[string]struct{}
	corrupted map[string]struct{}
}

// Open loads the ledger at path. A missing or unreadable file starts empty.
func Open(path string, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		path:      path,
		logger:    logging.NewComponentLogger(logger, "checkpoint"),
		now:       time.Now,
		processed: make(map[string]struct{}),
		corrupted: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	entries, err := l.read()
	if err != nil {
		logging.WarnWithContext(l.logger, "failed to load checkpoint ledger", "checkpoint_load_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ledger will start empty"),
			logging.String(logging.FieldImpact, "previously processed files will be processed again"))
		return l
	}
	for name, fields := range entries {
		switch fields["status"] {
		case StatusOK:
			l.processed[name] = struct{}{}
		case StatusCorrupted:
			l.corrupted[name] = struct{}{}
		}
	}
	l.logger.Info("checkpoint ledger loaded",
		logging.String("path", path),
		logging.Int("processed", len(l.processed)),
		logging.Int("corrupted", len(l.corrupted)))
	return l
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// IsProcessed reports whether name completed with status ok.
func (l *Ledger) IsProcessed(name string) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.processed[name]
	return ok
}

// IsCorrupted reports whether name is permanently marked corrupted.
func (l *Ledger) IsCorrupted(name string) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.corrupted[name]
	return ok
}

// Corrupted returns the corrupted filenames in sorted order.
func (l *Ledger) Corrupted() []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.corrupted))
	for name := range l.corrupted {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProcessedCount returns the number of ok entries.
func (l *Ledger) ProcessedCount() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.processed)
}

// MarkProcessed records name as ok with the supplied metadata. A corrupted
// entry is left as is.
func (l *Ledger) MarkProcessed(name string, metadata map[string]any) {
	if l == nil || strings.TrimSpace(name) == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, bad := l.corrupted[name]; bad {
		l.logger.Debug("corrupted entry not overwritten", logging.String(logging.FieldFile, name))
		return
	}

	entries := l.reread()
	if existing, ok := entries[name]; ok && existing["status"] == StatusCorrupted {
		l.corrupted[name] = struct{}{}
		return
	}
	entry := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		entry[k] = v
	}
	entry["processed_at"] = l.now().Format(time.RFC3339Nano)
	entry["status"] = StatusOK
	entries[name] = entry

	l.processed[name] = struct{}{}
	l.persist(entries)
}

// MarkCorrupted permanently records name as corrupted.
func (l *Ledger) MarkCorrupted(name string) {
	if l == nil || strings.TrimSpace(name) == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.reread()
	entries[name] = map[string]any{
		"status":    StatusCorrupted,
		"marked_at": l.now().Format(time.RFC3339Nano),
	}
	delete(l.processed, name)
	l.corrupted[name] = struct{}{}
	l.persist(entries)
}

// Remove deletes the entry for name and reports whether one existed.
func (l *Ledger) Remove(name string) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.reread()
	_, inFile := entries[name]
	_, wasOK := l.processed[name]
	_, wasBad := l.corrupted[name]
	if !inFile && !wasOK && !wasBad {
		return false
	}
	delete(entries, name)
	delete(l.processed, name)
	delete(l.corrupted, name)
	l.persist(entries)
	return true
}

// Entries returns every persisted entry sorted by filename.
func (l *Ledger) Entries() ([]Entry, error) {
	if l == nil {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := l.read()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for name, fields := range raw {
		out = append(out, Entry{Filename: name, Fields: fields})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

// reread loads the current file for a merge; errors yield an empty map.
func (l *Ledger) reread() map[string]map[string]any {
	entries, err := l.read()
	if err != nil {
		l.logger.Debug("ledger re-read failed; rewriting from scratch", logging.Error(err))
		return make(map[string]map[string]any)
	}
	return entries
}

func (l *Ledger) read() (map[string]map[string]any, error) {
	entries := make(map[string]map[string]any)
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return entries, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var list []map[string]any
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse ledger list: %w", err)
		}
		for _, item := range list {
			name, _ := item["filename"].(string)
			if name == "" {
				continue
			}
			fields := make(map[string]any, len(item))
			for k, v := range item {
				if k != "filename" {
					fields[k] = v
				}
			}
			entries[name] = fields
		}
		return entries, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse ledger: %w", err)
	}
	for name, raw := range obj {
		fields := make(map[string]any)
		if err := json.Unmarshal(raw, &fields); err != nil {
			// Non-object values predate status tracking; treat them as processed.
			fields = map[string]any{"status": StatusOK}
		}
		entries[name] = fields
	}
	return entries, nil
}

func (l *Ledger) persist(entries map[string]map[string]any) {
	if err := fileutil.WriteJSONAtomic(l.path, entries); err != nil {
		logging.WarnWithContext(l.logger, "failed to save checkpoint ledger", "checkpoint_save_failed",
			logging.String("path", l.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the cache directory"),
			logging.String(logging.FieldImpact, "files may be processed again on the next run"))
	}
}
