// Package textutil provides text processing helpers shared by the normalizer,
// web matching, and file organization.
//
// The primary use cases are:
//   - Folding Vietnamese diacritics so titles compare as plain ASCII
//   - Building stop-word-filtered token sets and their overlap
//   - Turning titles and authors into safe filename components
package textutil
