package epub

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/microcosm-cc/bluemonday"

	"epubsort/internal/fileutil"
	"epubsort/internal/services"
)

const (
	mimeType         = "application/epub+zip"
	containerPath    = "META-INF/container.xml"
	maxMetadataBytes = 4 << 20
	languageSample   = 2000
	minLangConfident = 0.5
)

// ErrInvalid marks a file that is not a structurally valid EPUB.
var ErrInvalid = errors.New("invalid epub")

// Info is the analysis result for one EPUB.
type Info struct {
	Path         string
	Filename     string
	ChapterCount int
	ContentHash  string
	FileSizeMB   float64
	Title        string
	Author       string
	Language     string
}

// Validate checks the extension, zip structure and mimetype entry.
func Validate(filePath string) error {
	if !strings.EqualFold(filepath.Ext(filePath), ".epub") {
		return invalid("extension is not .epub", nil)
	}
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrInput, "validate", "open", "file not found", err)
		}
		return invalid("not a zip archive", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "mimetype" {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return invalid("unreadable mimetype entry", err)
		}
		if got := strings.TrimSpace(string(data)); got != mimeType {
			return invalid(fmt.Sprintf("unexpected mimetype %q", got), nil)
		}
		return nil
	}
	return invalid("missing mimetype entry", nil)
}

func invalid(message string, err error) error {
	return services.Wrap(services.ErrInput, "validate", "epub format", message, errors.Join(ErrInvalid, err))
}

type containerDoc struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type packageDoc struct {
	Metadata struct {
		Titles    []string `xml:"title"`
		Creators  []string `xml:"creator"`
		Languages []string `xml:"language"`
	} `xml:"metadata"`
	Manifest struct {
		Items []manifestItem `xml:"item"`
	} `xml:"manifest"`
}

type manifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

func (m manifestItem) isChapter() bool {
	switch strings.ToLower(strings.TrimSpace(m.MediaType)) {
	case "application/xhtml+xml", "text/html":
	default:
		return false
	}
	for _, prop := range strings.Fields(m.Properties) {
		if prop == "nav" {
			return false
		}
	}
	return true
}

// Analyze hashes the file and parses its package document. Any parse
// failure is tagged services.ErrInput and wraps ErrInvalid.
func Analyze(filePath string) (Info, error) {
	info := Info{Path: filePath, Filename: filepath.Base(filePath)}

	stat, err := os.Stat(filePath)
	if err != nil {
		return info, services.Wrap(services.ErrInput, "analyze", "stat", "cannot read file", err)
	}
	info.FileSizeMB = float64(stat.Size()) / (1024 * 1024)

	hash, err := fileutil.HashFile(filePath)
	if err != nil {
		return info, services.Wrap(services.ErrInput, "analyze", "hash", "cannot hash file", err)
	}
	info.ContentHash = hash

	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return info, analyzeErr("open archive", err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	opfPath, err := rootfilePath(files)
	if err != nil {
		return info, analyzeErr("container.xml", err)
	}
	opfFile, ok := files[opfPath]
	if !ok {
		return info, analyzeErr("package document", fmt.Errorf("%s not in archive", opfPath))
	}
	data, err := readEntry(opfFile)
	if err != nil {
		return info, analyzeErr("package document", err)
	}
	var pkg packageDoc
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return info, analyzeErr("package document", err)
	}

	var firstChapter string
	for _, item := range pkg.Manifest.Items {
		if !item.isChapter() {
			continue
		}
		if info.ChapterCount == 0 {
			firstChapter = path.Join(path.Dir(opfPath), item.Href)
		}
		info.ChapterCount++
	}
	info.Title = firstText(pkg.Metadata.Titles)
	info.Author = firstText(pkg.Metadata.Creators)
	info.Language = firstText(pkg.Metadata.Languages)
	if info.Language == "" {
		info.Language = detectLanguage(info.Title, files[firstChapter])
	}
	return info, nil
}

func analyzeErr(op string, err error) error {
	return services.Wrap(services.ErrInput, "analyze", op, "EPUB parse failed", errors.Join(ErrInvalid, err))
}

func rootfilePath(files map[string]*zip.File) (string, error) {
	f, ok := files[containerPath]
	if !ok {
		return "", fmt.Errorf("%s missing", containerPath)
	}
	data, err := readEntry(f)
	if err != nil {
		return "", err
	}
	var doc containerDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", err
	}
	for _, rf := range doc.Rootfiles {
		if p := strings.TrimSpace(rf.FullPath); p != "" {
			return p, nil
		}
	}
	return "", errors.New("no rootfile declared")
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxMetadataBytes))
}

func firstText(values []string) string {
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}

var textOnly = bluemonday.StrictPolicy()

// detectLanguage guesses an ISO 639-1 code from the title and a sample of the
// first chapter. It returns "" when the guess is weak.
func detectLanguage(title string, chapter *zip.File) string {
	sample := title
	if chapter != nil {
		if data, err := readEntry(chapter); err == nil {
			sample += " " + strings.Join(strings.Fields(textOnly.Sanitize(string(data))), " ")
		}
	}
	if runes := []rune(sample); len(runes) > languageSample {
		sample = string(runes[:languageSample])
	}
	if strings.TrimSpace(sample) == "" {
		return ""
	}
	detected := whatlanggo.Detect(sample)
	if detected.Confidence < minLangConfident {
		return ""
	}
	return detected.Lang.Iso6391()
}
