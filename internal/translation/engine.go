package translation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"epubsort/internal/logging"
	"epubsort/internal/services"
	"epubsort/internal/services/llm"
)

// Completer is the LLM surface the engine needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ClientFactory builds the LLM client on first need.
type ClientFactory func() (Completer, error)

// CallRecorder observes AI calls.
type CallRecorder interface {
	AICall(purpose, result string)
}

// Engine runs the fixed decision order.
type Engine struct {
	policy   Policy
	factory  ClientFactory
	logger   *slog.Logger
	recorder CallRecorder

	once      sync.Once
	client    Completer
	clientErr error
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRecorder attaches an AI call recorder.
func WithRecorder(r CallRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine constructs an engine. factory may be nil, which disables AI.
func NewEngine(policy Policy, factory ClientFactory, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		policy:  policy,
		factory: factory,
		logger:  logging.NewComponentLogger(logger, "translation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if !policy.aiAllowed && policy.apiKey != "" {
		e.logger.Info("AI model available but ai_allowed is false; using heuristic only")
	}
	return e
}

// Decide classifies one file. It never fails; AI problems degrade to the
// heuristic result.
func (e *Engine) Decide(ctx context.Context, filename, epubTitle string) Decision {
	heur, conflict := heuristic(decisionText(filename, epubTitle))
	if conflict {
		return canonicalize(heur)
	}
	if heur.confidence >= strongConfidence {
		return canonicalize(heur)
	}

	if heur.confidence <= aiCeiling && e.policy.Allowed() {
		capability, err := e.policy.Authorize()
		if err == nil {
			if client := e.lazyClient(); client != nil {
				ai, aiErr := e.classifyWithAI(ctx, capability, client, filename, epubTitle)
				switch {
				case aiErr != nil:
					e.record("error")
					logging.WarnWithContext(logging.WithContext(ctx, e.logger), "AI translation detection failed; using heuristic", "translation_ai_failed",
						logging.Error(aiErr),
						logging.String(logging.FieldErrorHint, "check API key, quota and model name"),
						logging.String(logging.FieldImpact, "file keeps the keyword heuristic result"))
				case ai.confidence > heur.confidence:
					e.record("adopted")
					return canonicalize(ai)
				default:
					e.record("rejected")
				}
			}
		}
	}
	return canonicalize(heur)
}

func (e *Engine) record(result string) {
	if e.recorder != nil {
		e.recorder.AICall("translation", result)
	}
}

func (e *Engine) lazyClient() Completer {
	e.once.Do(func() {
		if e.factory == nil {
			return
		}
		e.client, e.clientErr = e.factory()
		if e.clientErr != nil {
			logging.WarnWithContext(e.logger, "failed to initialize AI client; using heuristic only", "translation_ai_init_failed",
				logging.Error(e.clientErr),
				logging.String(logging.FieldErrorHint, "check llm settings and google_api_key"),
				logging.String(logging.FieldImpact, "AI fallback disabled for this run"))
			e.client = nil
		}
	})
	return e.client
}

const aiSystemPrompt = "You classify Vietnamese web-novel EPUB files. Respond with JSON only."

type aiAnswer struct {
	TranslationType string   `json:"translation_type"`
	Confidence      *float64 `json:"confidence"`
	Reason          string   `json:"reason"`
}

func buildPrompt(filename, epubTitle string) string {
	var b strings.Builder
	b.WriteString("Analyze this Vietnamese novel filename and determine translation type:\n\n")
	b.WriteString("Filename: ")
	b.WriteString(filename)
	if epubTitle != "" {
		b.WriteString("\nEPUB Title: ")
		b.WriteString(epubTitle)
	}
	b.WriteString(`

Determine if this is:
- "Convert" (machine translation / auto-translated)
- "Dịch" (human translation / manually translated)
- "Unknown" (cannot determine)

Look for indicators:
- "Convert" keywords: convert, MTL, machine translation, auto translate
- "Dịch" keywords: dịch, dich, translated by, translator name

Return ONLY JSON:
{
    "translation_type": "Convert" | "Dịch" | "Unknown",
    "confidence": 0.0-1.0,
    "reason": "brief explanation"
}`)
	return b.String()
}

// classifyWithAI requires a capability so no code path reaches the model
// without passing the policy.
func (e *Engine) classifyWithAI(ctx context.Context, capability AICapability, client Completer, filename, epubTitle string) (proposal, error) {
	if !capability.Valid() {
		return proposal{}, services.Wrap(services.ErrLogic, "translation", "ai detect", "called without capability", nil)
	}
	content, err := client.CompleteJSON(ctx, aiSystemPrompt, buildPrompt(filename, epubTitle))
	if err != nil {
		return proposal{}, services.Wrap(services.ErrAI, "translation", "ai detect", "completion failed", err)
	}
	var answer aiAnswer
	if err := llm.DecodeLLMJSON(content, &answer); err != nil {
		return proposal{}, services.Wrap(services.ErrAI, "translation", "ai detect", "invalid AI response format", err)
	}
	confidence := 0.5
	if answer.Confidence != nil {
		confidence = *answer.Confidence
	}
	rawType := strings.TrimSpace(answer.TranslationType)
	if rawType == "" {
		rawType = RawUnknown
	}
	reason := strings.TrimSpace(answer.Reason)
	if reason == "" {
		reason = "AI analysis"
	}
	e.logger.Debug("AI translation answer",
		logging.String("raw_type", rawType),
		logging.Float64("confidence", confidence),
		logging.String("model_reason", fmt.Sprintf("%.120s", reason)))
	return proposal{rawType: rawType, confidence: confidence, method: MethodAI, reason: reason}, nil
}
