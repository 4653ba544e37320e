// Package llm provides a rate-limited chat client for the Gemini
// OpenAI-compatible endpoint.
//
// The client is used by:
//   - translation: AI fallback when filename keywords are inconclusive
//   - normalizer: batch title cleanup for web lookups
//
// # Tiers
//
// A client carries a primary model and an optional fallback model. Each tier
// has its own requests-per-minute budget enforced by a token bucket with a
// 15% safety margin. When the primary call fails the fallback tier is tried
// once.
//
// # Circuit breaker
//
// Consecutive failures open a breaker so a dead endpoint does not stall every
// remaining file behind transport timeouts. While open, calls fail fast with
// services.ErrAI.
//
// # Decoding
//
// DecodeLLMJSON tolerates code fences and prose around the JSON payload.
// Callers fall back to heuristics when the client is absent or errors.
package llm
