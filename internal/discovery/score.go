package discovery

import (
	"math"
	"strings"

	"epubsort/internal/textutil"
)

var (
	matchStopWords = map[string]struct{}{
		"truyen": {}, "chuong": {}, "tap": {}, "full": {}, "doc": {}, "net": {}, "vn": {},
	}
	offTopicMarkers = []string{"dong nhan", "fanfic", "review", "cam nhan"}
)

const (
	overlapWeight     = 0.35
	exactBonus        = 0.10
	containsBonus     = 0.07
	offTopicFactor    = 0.25
	verboseFactor     = 0.6
	untrustedFactor   = 0.5
	urlSlugBonus      = 0.08
	verboseLengthRate = 3
)

// score rates how well a SERP result matches the searched title, in [0, 1]
// rounded to four places.
func (t domainTable) score(title string, r serpResult) float64 {
	lowerURL := strings.ToLower(r.URL)

	var weight float64
	if d, ok := t.match(lowerURL); ok {
		weight = d.Weight
	}
	score := weight

	normTitle := textutil.NormalizeForMatch(title)
	normWeb := textutil.NormalizeForMatch(r.Title)

	titleTokens := textutil.TokenSet(normTitle, matchStopWords)
	webTokens := textutil.TokenSet(normWeb, matchStopWords)
	if len(titleTokens) > 0 && len(webTokens) > 0 {
		score += textutil.OverlapRatio(titleTokens, webTokens) * overlapWeight
		switch {
		case normTitle == normWeb:
			score += exactBonus
		case strings.Contains(normWeb, normTitle) || strings.Contains(normTitle, normWeb):
			score += containsBonus
		}
	}

	for _, marker := range offTopicMarkers {
		if strings.Contains(normWeb, marker) {
			score *= offTopicFactor
			break
		}
	}
	if len(normWeb) > len(normTitle)*verboseLengthRate {
		score *= verboseFactor
	}
	if weight == 0 {
		score *= untrustedFactor
	}

	slug := strings.ReplaceAll(normTitle, " ", "-")
	compact := strings.ReplaceAll(normTitle, " ", "")
	if strings.Contains(lowerURL, slug) || strings.Contains(lowerURL, compact) {
		score += urlSlugBonus
	}

	return math.Round(min(score, 1)*10000) / 10000
}
