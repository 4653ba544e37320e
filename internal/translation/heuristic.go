package translation

import "strings"

var convertKeywords = []string{
	"convert", "converted", "mtl", "machine translation",
	"auto translate", "google translate", "dịch máy",
}

var dichKeywords = []string{
	"dịch", "dich", "translated", "human translation",
	"dịch bởi", "dich boi", "translator", "dịch giả",
}

const (
	strongConfidence  = 0.85
	neutralConfidence = 0.2
	aiCeiling         = 0.3
)

// conflictReason is returned when both keyword sets match.
const conflictReason = "Conflict: both Convert and Dịch keywords found → unknown (no AI fallback)"

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// heuristic reports the keyword proposal for text and whether it conflicted.
func heuristic(text string) (proposal, bool) {
	hasConvert := containsAny(text, convertKeywords)
	hasDich := containsAny(text, dichKeywords)
	switch {
	case hasConvert && hasDich:
		return proposal{rawType: RawUnknown, confidence: 0, method: MethodHeuristic, reason: conflictReason}, true
	case hasConvert:
		return proposal{rawType: RawConvert, confidence: strongConfidence, method: MethodHeuristic, reason: "Found Convert keywords"}, false
	case hasDich:
		return proposal{rawType: RawDich, confidence: strongConfidence, method: MethodHeuristic, reason: "Found Dịch keywords"}, false
	default:
		return proposal{rawType: RawUnknown, confidence: neutralConfidence, method: MethodHeuristic, reason: "No translation keywords found"}, false
	}
}

func decisionText(filename, epubTitle string) string {
	text := strings.ToLower(filename)
	if epubTitle != "" {
		text += " " + strings.ToLower(epubTitle)
	}
	return text
}
