package textutil

import "strings"

// TokenSet splits normalized text on spaces and drops stop words.
func TokenSet(normalized string, stop map[string]struct{}) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		if _, skip := stop[tok]; skip {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// OverlapRatio returns |a ∩ b| / max(|a|, |b|), or 0 when either set is empty.
func OverlapRatio(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(a), len(b)))
}
