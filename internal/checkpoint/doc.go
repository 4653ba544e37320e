// Package checkpoint records per-file outcomes so interrupted runs resume
// where they stopped.
//
// The ledger is a JSON object keyed by input filename. Entries carry a
// status of "ok" or "corrupted" plus free-form metadata. A corrupted entry is
// permanent: later MarkProcessed calls leave it untouched, and only Remove
// (exposed as `epubsort state clear-corrupted`) clears it. Files written by
// older tooling as a list of {filename, status} objects still load.
package checkpoint
