package epub_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"epubsort/internal/epub"
	"epubsort/internal/services"
	"epubsort/internal/testsupport"
)

func TestValidateAcceptsWellFormedEPUB(t *testing.T) {
	path := testsupport.WriteEPUB(t, t.TempDir(), "ok.epub", testsupport.EPUBSpec{Title: "Tiên Nghịch", Chapters: 2})
	if err := epub.Validate(path); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"wrong extension", testsupport.WriteFile(t, filepath.Join(dir, "book.pdf"), "x")},
		{"not a zip", testsupport.WriteFile(t, filepath.Join(dir, "text.epub"), "plain text")},
		{"missing mimetype", testsupport.WriteEPUB(t, dir, "nomime.epub", testsupport.EPUBSpec{MimeType: "-"})},
		{"wrong mimetype", testsupport.WriteEPUB(t, dir, "zipmime.epub", testsupport.EPUBSpec{MimeType: "application/zip"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := epub.Validate(tt.path)
			if !errors.Is(err, epub.ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if services.ErrorType(err) != "input_error" {
				t.Fatalf("expected input_error, got %q", services.ErrorType(err))
			}
		})
	}
}

func TestValidateTrimsMimetypeWhitespace(t *testing.T) {
	path := testsupport.WriteEPUB(t, t.TempDir(), "ws.epub", testsupport.EPUBSpec{MimeType: "application/epub+zip\n"})
	if err := epub.Validate(path); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestAnalyzeExtractsMetadata(t *testing.T) {
	path := testsupport.WriteEPUB(t, t.TempDir(), "book.epub", testsupport.EPUBSpec{
		Title:    "Phàm Nhân Tu Tiên",
		Author:   "Vong Ngữ",
		Language: "vi",
		Chapters: 12,
	})

	info, err := epub.Analyze(path)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if info.ChapterCount != 12 {
		t.Fatalf("expected 12 chapters excluding nav, got %d", info.ChapterCount)
	}
	if info.Title != "Phàm Nhân Tu Tiên" || info.Author != "Vong Ngữ" || info.Language != "vi" {
		t.Fatalf("unexpected metadata %+v", info)
	}
	if len(info.ContentHash) != 32 {
		t.Fatalf("expected md5 hex digest, got %q", info.ContentHash)
	}
	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if want := float64(stat.Size()) / (1024 * 1024); info.FileSizeMB != want {
		t.Fatalf("unexpected size %v want %v", info.FileSizeMB, want)
	}
	if info.Filename != "book.epub" {
		t.Fatalf("unexpected filename %q", info.Filename)
	}
}

func TestAnalyzeDetectsLanguageWhenMissing(t *testing.T) {
	body := "Trong một thế giới nơi tu tiên là con đường duy nhất để sống sót, chàng thiếu niên nghèo khó bước vào tông môn với ánh mắt kiên định. Hắn biết rằng con đường phía trước đầy chông gai nhưng không bao giờ từ bỏ."
	path := testsupport.WriteEPUB(t, t.TempDir(), "nolang.epub", testsupport.EPUBSpec{Title: "Tiên Nghịch", Chapters: 1, Body: body})

	info, err := epub.Analyze(path)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if info.Language != "vi" {
		t.Fatalf("expected detected vi, got %q", info.Language)
	}
}

func TestAnalyzeRejectsBrokenPackage(t *testing.T) {
	path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "broken.epub"), "not a zip at all")
	_, err := epub.Analyze(path)
	if !errors.Is(err, epub.ErrInvalid) || !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}
