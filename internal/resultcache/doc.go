// Package resultcache persists expensive lookups (web metadata, title
// normalization) as TTL-bounded JSON maps.
//
// Each Store is one file of the form {key: {data, cached_at}} loaded fully
// into memory. Expired entries are swept on load and dropped lazily on read.
// Every mutation rewrites the file through a temp file and rename; write
// failures are logged and never surface to callers. A nil *Store is a
// disabled cache: reads miss and writes are ignored.
package resultcache
