package translation

import "strings"

// Canonical labels.
const (
	LabelMachine = "machine_convert"
	LabelHuman   = "human_translation"
	LabelUnknown = "unknown"
)

// Decision methods.
const (
	MethodHeuristic = "heuristic"
	MethodAI        = "ai"
	MethodUnknown   = "unknown"
)

// Raw translation types as written in filenames and model answers.
const (
	RawConvert = "Convert"
	RawDich    = "Dịch"
	RawUnknown = "Unknown"
)

// Decision is the canonical translation verdict for one file.
type Decision struct {
	Label      string
	RawType    string
	Confidence float64
	Method     string
	Reason     string
}

// Known reports whether the label is one of the two definite labels.
func (d Decision) Known() bool {
	return d.Label == LabelMachine || d.Label == LabelHuman
}

// proposal is a pre-canonical result from the heuristic or the AI.
type proposal struct {
	rawType    string
	confidence float64
	method     string
	reason     string
}

// labelFor maps a raw type onto the closed label set. ok is false when the
// raw type is not a recognized label.
func labelFor(rawType string) (label string, ok bool) {
	switch strings.ToLower(strings.TrimSpace(rawType)) {
	case "convert", "machine", "machine translation":
		return LabelMachine, true
	case "dịch", "dich", "human", "human translation":
		return LabelHuman, true
	case "unknown", "":
		return LabelUnknown, true
	default:
		return LabelUnknown, false
	}
}

// canonicalize closes the label and method sets. An unrecognized raw type
// becomes unknown with zero confidence.
func canonicalize(p proposal) Decision {
	rawType := strings.TrimSpace(p.rawType)
	label, ok := labelFor(rawType)
	confidence := p.confidence
	if !ok {
		confidence = 0
	}

	method := strings.ToLower(strings.TrimSpace(p.method))
	if method != MethodHeuristic && method != MethodAI {
		method = MethodUnknown
	}
	if rawType == "" {
		rawType = RawUnknown
	}
	return Decision{
		Label:      label,
		RawType:    rawType,
		Confidence: confidence,
		Method:     method,
		Reason:     p.reason,
	}
}
