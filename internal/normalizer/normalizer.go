package normalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"epubsort/internal/logging"
	"epubsort/internal/services/llm"
)

// Trust levels.
const (
	TrustLow  = "low_trust"
	TrustHigh = "high_trust"
)

const (
	unknownTitle  = "unknown"
	lowTrustBelow = 0.7
	aiPurpose     = "normalize"
	systemPrompt  = "You normalize Vietnamese novel filenames. Respond with a JSON array only."
)

// Result is the normalized view of one filename. It is cached as JSON.
type Result struct {
	OriginalFilename string   `json:"original_filename"`
	CanonicalTitle   string   `json:"canonical_title"`
	ContentType      string   `json:"content_type"`
	NoiseRemoved     []string `json:"noise_removed"`
	Confidence       float64  `json:"confidence"`
	Notes            string   `json:"notes"`
	TrustLevel       string   `json:"trust_level"`
}

// Usable reports whether the title can drive a web lookup.
func (r Result) Usable() bool {
	t := strings.TrimSpace(r.CanonicalTitle)
	return t != "" && !strings.EqualFold(t, unknownTitle)
}

// Completer is the LLM surface the normalizer needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ClientFactory builds the LLM client on first need.
type ClientFactory func() (Completer, error)

// CallRecorder observes AI calls.
type CallRecorder interface {
	AICall(purpose, result string)
}

// Normalizer cleans filenames with an LLM and a regex fallback.
type Normalizer struct {
	factory  ClientFactory
	logger   *slog.Logger
	recorder CallRecorder

	once   sync.Once
	client Completer
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithRecorder attaches an AI call recorder.
func WithRecorder(r CallRecorder) Option {
	return func(n *Normalizer) { n.recorder = r }
}

// New constructs a Normalizer. A nil factory means regex cleanup only.
func New(factory ClientFactory, logger *slog.Logger, opts ...Option) *Normalizer {
	n := &Normalizer{factory: factory, logger: logging.NewComponentLogger(logger, "normalizer")}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NormalizeOne is Normalize for a single filename.
func (n *Normalizer) NormalizeOne(ctx context.Context, filename string) Result {
	out := n.Normalize(ctx, []string{filename})
	if len(out) == 0 {
		return withTrust(RegexCleanup(filename))
	}
	return out[0]
}

// Normalize returns one result per filename, in order.
func (n *Normalizer) Normalize(ctx context.Context, filenames []string) []Result {
	if len(filenames) == 0 {
		return nil
	}
	logger := logging.WithContext(ctx, n.logger)

	var items []map[string]any
	if client := n.lazyClient(); client != nil {
		content, err := client.CompleteJSON(ctx, systemPrompt, buildPrompt(filenames))
		if err != nil {
			n.record("error")
			logging.WarnWithContext(logger, "LLM normalization failed, using regex fallback", "normalizer_llm_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check API key, quota and model name"),
				logging.String(logging.FieldImpact, "titles come from regex cleanup with low trust"))
		} else if items, err = parseArray(content); err != nil {
			n.record("malformed")
			logging.WarnWithContext(logger, "LLM normalization returned no usable JSON array", "normalizer_parse_failed",
				logging.Error(err),
				logging.String("snippet", llm.SummarizeSnippet(content)),
				logging.String(logging.FieldImpact, "titles come from regex cleanup with low trust"))
		} else {
			n.record("ok")
		}
	}

	results := make([]Result, 0, len(filenames))
	for idx, filename := range filenames {
		var result Result
		if idx < len(items) {
			parsed, err := decodeItem(items[idx])
			if err != nil {
				logger.Debug("LLM item failed schema validation",
					logging.String("filename", filename),
					logging.Error(err))
				result = RegexCleanup(filename)
			} else {
				parsed.OriginalFilename = filename
				result = parsed
			}
		} else {
			result = RegexCleanup(filename)
		}
		results = append(results, withTrust(result))
	}
	logger.Debug("normalized filenames", logging.Int("count", len(results)))
	return results
}

func (n *Normalizer) record(result string) {
	if n.recorder != nil {
		n.recorder.AICall(aiPurpose, result)
	}
}

func (n *Normalizer) lazyClient() Completer {
	n.once.Do(func() {
		if n.factory == nil {
			return
		}
		client, err := n.factory()
		if err != nil {
			logging.WarnWithContext(n.logger, "failed to initialize AI client; using regex cleanup", "normalizer_ai_init_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check llm settings and google_api_key"),
				logging.String(logging.FieldImpact, "titles come from regex cleanup with low trust"))
			return
		}
		n.client = client
	})
	return n.client
}

func withTrust(r Result) Result {
	r.TrustLevel = TrustHigh
	if r.Confidence < lowTrustBelow || !r.Usable() {
		r.TrustLevel = TrustLow
	}
	if r.NoiseRemoved == nil {
		r.NoiseRemoved = []string{}
	}
	return r
}

var jsonArraySpan = regexp.MustCompile(`(?s)\[.*\]`)

// parseArray extracts the outermost JSON array, retrying once with single
// quotes swapped for double quotes.
func parseArray(content string) ([]map[string]any, error) {
	span := jsonArraySpan.FindString(content)
	if span == "" {
		return nil, fmt.Errorf("no JSON array found")
	}
	var items []map[string]any
	if err := json.Unmarshal([]byte(span), &items); err == nil {
		return items, nil
	}
	repaired := strings.ReplaceAll(span, "'", `"`)
	if err := json.Unmarshal([]byte(repaired), &items); err != nil {
		return nil, fmt.Errorf("decode JSON array: %w", err)
	}
	return items, nil
}

func decodeItem(item map[string]any) (Result, error) {
	if err := validItem(any(item)); err != nil {
		return Result{}, err
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return Result{}, err
	}
	var wire struct {
		CanonicalTitle string   `json:"canonical_title"`
		ContentType    string   `json:"content_type"`
		NoiseRemoved   []string `json:"noise_removed"`
		Confidence     float64  `json:"confidence"`
		Notes          string   `json:"notes"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Result{}, err
	}
	return Result{
		CanonicalTitle: strings.TrimSpace(wire.CanonicalTitle),
		ContentType:    wire.ContentType,
		NoiseRemoved:   wire.NoiseRemoved,
		Confidence:     wire.Confidence,
		Notes:          wire.Notes,
	}, nil
}

func buildPrompt(filenames []string) string {
	var files strings.Builder
	for i, name := range filenames {
		fmt.Fprintf(&files, "File %d: %s\n", i+1, name)
	}
	return `Role: Filename Normalizer for Vietnamese novels (EPUB format).

Your STRICT rules:
1. Analyze ONLY the string provided
2. Extract the MOST COMMONLY USED novel title
3. Remove: uploader names, tags, junk ([Full], [Dịch], VietPhrase, Kosuga, Convert, EPUB, PDF)
4. Remove: chapter/volume indicators (Ch., Vol., C01, etc.)
5. PRESERVE Vietnamese accents (ả, ế, ị, ô, ư, etc.)
6. Return title SHORT and CLEAN
7. DO NOT guess: chapter count, author, completion status
8. If uncertain, return "unknown"
9. Confidence: 0.0-1.0 (1.0 = 100% confident it's a valid novel title)
10. Classify content_type:
    - "side_story" if contains: ngoại truyện, ngoai truyen, side story
    - "fanfic" if contains: fanfic, đồng nhân, dong nhan
    - "parody" if contains: parody, chế, nhái
    - "main_novel" otherwise

Input files:
` + files.String() + `
IMPORTANT: Return ONLY valid JSON (no markdown, no explanation).

Output format (array of objects):
[
  {
    "file": "original filename",
    "canonical_title": "cleaned title",
    "content_type": "main_novel | side_story | fanfic | parody | unknown",
    "noise_removed": ["item1", "item2"],
    "confidence": 0.95,
    "notes": ""
  }
]`
}
