// Package epub validates EPUB containers and extracts the metadata the
// pipeline needs: chapter count, Dublin Core title, creator and language,
// content hash and size.
//
// Validation is a cheap structural check (zip archive with the expected
// mimetype entry). Analyze parses META-INF/container.xml and the OPF package
// document; chapters are the XHTML manifest items minus the navigation
// document. When the OPF declares no language, the language is detected from
// the title and the first chapter's text.
package epub
