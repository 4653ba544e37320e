// Package dedup keeps a content-hash registry so copies of the same EPUB are
// flagged. The first path registered for a hash wins.
package dedup
