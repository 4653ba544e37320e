// Package fileutil holds the filesystem primitives every store and the
// organizer rely on: streamed content hashing, verified copies, atomic
// write-and-rename, atomic moves, and collision-free destination names.
package fileutil
