// Package pipeline runs every EPUB in the input folder through a fixed
// sequence of phases and produces one Record per file.
//
// Phases, in order: corrupted-skip, validate, analyze, duplicate check,
// classify, enrich (title normalization and web lookup), resolve and
// organize. A file whose translation type stays unknown stops after
// classification. Failures inside a file never stop the run; they become
// Error records and the next file is processed.
//
// Files are processed one at a time. Cancellation is checked between files,
// so the file in flight always finishes.
package pipeline
