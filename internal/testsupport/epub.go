package testsupport

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// EPUBSpec describes a synthetic EPUB for tests.
type EPUBSpec struct {
	Title    string
	Author   string
	Language string
	Chapters int
	// Body is placed in every chapter; a default Vietnamese paragraph is
	// used when empty.
	Body string
	// MimeType overrides the mimetype entry; "-" omits it.
	MimeType string
}

const defaultBody = "Hắn đứng trên đỉnh núi, nhìn xuống thành trì phía dưới và thở dài một hơi thật dài."

// WriteEPUB writes a minimal EPUB 3 container to dir/name and returns its path.
func WriteEPUB(t testing.TB, dir, name string, book EPUBSpec) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	write := func(entry, content string, method uint16) {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: entry, Method: method})
		if err != nil {
			t.Fatalf("create entry %s: %v", entry, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", entry, err)
		}
	}

	mime := book.MimeType
	if mime == "" {
		mime = "application/epub+zip"
	}
	if mime != "-" {
		write("mimetype", mime, zip.Store)
	}
	write("META-INF/container.xml", `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`, zip.Deflate)

	body := book.Body
	if body == "" {
		body = defaultBody
	}
	var manifest, spine strings.Builder
	manifest.WriteString(`    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
	manifest.WriteString(`    <item id="css" href="style.css" media-type="text/css"/>` + "\n")
	for i := 1; i <= book.Chapters; i++ {
		id := fmt.Sprintf("ch%04d", i)
		fmt.Fprintf(&manifest, "    <item id=%q href=\"text/%s.xhtml\" media-type=\"application/xhtml+xml\"/>\n", id, id)
		fmt.Fprintf(&spine, "    <itemref idref=%q/>\n", id)
		write("OEBPS/text/"+id+".xhtml", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>Chương %d</title></head>
<body><h1>Chương %d</h1><p>%s</p></body></html>`, i, i, body), zip.Deflate)
	}
	write("OEBPS/nav.xhtml", `<html xmlns="http://www.w3.org/1999/xhtml"><body><nav/></body></html>`, zip.Deflate)

	var meta strings.Builder
	if book.Title != "" {
		fmt.Fprintf(&meta, "    <dc:title>%s</dc:title>\n", book.Title)
	}
	if book.Author != "" {
		fmt.Fprintf(&meta, "    <dc:creator>%s</dc:creator>\n", book.Author)
	}
	if book.Language != "" {
		fmt.Fprintf(&meta, "    <dc:language>%s</dc:language>\n", book.Language)
	}
	write("OEBPS/content.opf", `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="id">urn:test</dc:identifier>
`+meta.String()+`  </metadata>
  <manifest>
`+manifest.String()+`  </manifest>
  <spine>
`+spine.String()+`  </spine>
</package>`, zip.Deflate)

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip %s: %v", path, err)
	}
	return path
}
