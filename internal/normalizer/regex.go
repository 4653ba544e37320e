package normalizer

import (
	"regexp"
	"strings"
)

const regexFallbackNote = "Regex fallback (LLM unavailable)"

var (
	epubSuffix    = regexp.MustCompile(`(?i)\.epub$`)
	squareGroup   = regexp.MustCompile(`\[.*?\]`)
	roundGroup    = regexp.MustCompile(`\(.*?\)`)
	shortChapter  = regexp.MustCompile(`(?i)\b(?:ch|vol|c)\d+\b`)
	longChapter   = regexp.MustCompile(`(?i)\b(?:chapter|volume)\s*\d+\b`)
	junkTokenExpr = buildJunkPattern([]string{
		"full", "dịch", "viétphrase", "kosuga", "convert", "epub", "pdf",
		"tl", "v1", "v2", "v3", "v4", "v5", "v6", "v7", "v8", "v9",
		"final", "official", "raw", "scan", "digital", "repack",
	})
)

var (
	parodyKeywords    = []string{"parody", "chế", "nhái", "satire"}
	sideStoryKeywords = []string{"ngoại truyện", "ngoai truyen", "side story", "spinoff", "ngoài truyện"}
	fanficKeywords    = []string{"fanfic", "đồng nhân", "dong nhan", "fan-fiction", "doujinshi"}
)

func buildJunkPattern(tokens []string) *regexp.Regexp {
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// ContentType classifies a cleaned title.
func ContentType(title string) string {
	lower := strings.ToLower(title)
	switch {
	case containsAny(lower, parodyKeywords):
		return "parody"
	case containsAny(lower, sideStoryKeywords):
		return "side_story"
	case containsAny(lower, fanficKeywords):
		return "fanfic"
	case strings.TrimSpace(title) == "":
		return "unknown"
	default:
		return "main_novel"
	}
}

// RegexCleanup strips tags, junk tokens and chapter markers from filename.
func RegexCleanup(filename string) Result {
	name := epubSuffix.ReplaceAllString(filename, "")
	name = squareGroup.ReplaceAllString(name, "")
	name = roundGroup.ReplaceAllString(name, "")
	name = junkTokenExpr.ReplaceAllString(name, "")
	name = shortChapter.ReplaceAllString(name, "")
	name = longChapter.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")

	title := name
	if title == "" {
		title = unknownTitle
	}
	return Result{
		OriginalFilename: filename,
		CanonicalTitle:   title,
		ContentType:      ContentType(name),
		NoiseRemoved:     []string{},
		Confidence:       0.3,
		Notes:            regexFallbackNote,
	}
}
