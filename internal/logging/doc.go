// Package logging assembles structured slog loggers and formatting helpers used
// across epubsort.
//
// It owns the console and JSON handlers, the rotated app.log sink, and
// context-aware helpers so phase code can tag log lines with the file being
// processed, the phase name, and a per-file correlation ID. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
