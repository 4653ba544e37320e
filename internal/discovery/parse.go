package discovery

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"epubsort/internal/textutil"
)

// Raw web statuses as found on the source page.
const (
	StatusFull   = "Full"
	StatusDangRa = "DangRa"

	unknownValue = "Unknown"
	maxChapter   = 10000
)

// Metadata is what a source page says about a novel.
type Metadata struct {
	Title        string `json:"web_title"`
	Author       string `json:"web_author"`
	StatusRaw    string `json:"web_status"`
	ChapterCount int    `json:"web_chapters"`
	Source       string `json:"web_source"`
	URL          string `json:"web_url"`
}

var (
	titleSuffix   = regexp.MustCompile(`\s*[-–—|]\s*.*$`)
	titleBrackets = regexp.MustCompile(`\s*\[.*?\]\s*`)
	titleParens   = regexp.MustCompile(`\s*\(.*?\)\s*`)

	authorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Tác\s+giả\s*[:|\-]?\s*([^\n\r]{2,50})`),
		regexp.MustCompile(`(?i)Author\s*[:|\-]?\s*([^\n\r]{2,50})`),
		regexp.MustCompile(`(?i)Người\s+viết\s*[:|\-]?\s*([^\n\r]{2,50})`),
		regexp.MustCompile(`(?i)By\s+([^\n\r]{2,50})`),
	}
	authorJunk = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

	chapterNumber = regexp.MustCompile(`(?i)(?:Chương|Chapter)\s+(\d+)`)

	fullKeywords   = []string{"full", "hoàn thành", "đã hoàn thành", "hoàn tất", "hết"}
	dangRaKeywords = []string{"đang ra", "đang cập nhật", "updating", "chưa hoàn thành"}
)

// parseMetadata turns a fetched page into Metadata. It returns false when the
// page text is too short or no title survives cleanup.
func (t domainTable) parseMetadata(page pageData, pageURL string) (*Metadata, bool) {
	if utf8.RuneCountInString(page.Text) < minPageText {
		return nil, false
	}
	title := cleanTitle(page.H1)
	if strings.TrimSpace(page.H1) == "" {
		title = cleanTitle(page.Title)
	}
	if title == "" {
		return nil, false
	}
	return &Metadata{
		Title:        title,
		Author:       extractAuthor(page.Text),
		StatusRaw:    detectStatus(page.Text),
		ChapterCount: maxChapterNumber(page.Text),
		Source:       t.sourceName(pageURL),
		URL:          pageURL,
	}, true
}

func cleanTitle(raw string) string {
	title := titleSuffix.ReplaceAllString(raw, "")
	title = titleBrackets.ReplaceAllString(title, "")
	title = titleParens.ReplaceAllString(title, "")
	return strings.TrimSpace(title)
}

func extractAuthor(text string) string {
	for _, pattern := range authorPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		clean := textutil.CollapseSpaces(authorJunk.ReplaceAllString(strings.TrimSpace(m[1]), ""))
		if n := utf8.RuneCountInString(clean); n > 2 && n < 50 {
			return clean
		}
	}
	return unknownValue
}

// detectStatus checks completion keywords before ongoing ones; pages with
// neither are assumed ongoing.
func detectStatus(text string) string {
	lowered := textutil.Lower(text)
	for _, kw := range fullKeywords {
		if strings.Contains(lowered, kw) {
			return StatusFull
		}
	}
	for _, kw := range dangRaKeywords {
		if strings.Contains(lowered, kw) {
			return StatusDangRa
		}
	}
	return StatusDangRa
}

func maxChapterNumber(text string) int {
	highest := 0
	for _, m := range chapterNumber.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n >= maxChapter {
			continue
		}
		highest = max(highest, n)
	}
	return highest
}
