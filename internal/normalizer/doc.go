// Package normalizer turns noisy EPUB filenames into canonical novel titles
// for web lookups.
//
// An LLM receives a batch of filenames and answers with a JSON array. Each
// item is validated against a JSON schema; items that are missing or invalid
// fall back to a regex cleanup. Without an LLM client the regex cleanup is
// used for every file. Results below 0.7 confidence, or without a usable
// title, are marked low_trust.
package normalizer
