// Package services defines shared utilities consumed by the pipeline phases
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp file names, phase names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper; ErrorType turns a marker
//     into the error_type string recorded on a failed file.
//
// Subpackages hold clients for external services such as the LLM endpoint.
package services
