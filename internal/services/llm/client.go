package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"epubsort/internal/logging"
	"epubsort/internal/services"
)

const (
	defaultHTTPTimeout     = 60 * time.Second
	defaultBaseURL         = "https://generativelanguage.googleapis.com/v1beta/openai/"
	rateSafetyFactor       = 1.15
	breakerTripFailures    = 3
	defaultBreakerCooldown = 60 * time.Second
)

// Tier is one model with its request budget.
type Tier struct {
	Model string
	RPM   int
}

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Primary        Tier
	Fallback       Tier
	TimeoutSeconds int
	MaxRetries     int
}

// Client wraps the chat completion API with per-tier rate limits and a
// shared circuit breaker.
type Client struct {
	cfg        Config
	api        openai.Client
	httpClient *http.Client
	logger     *slog.Logger
	breaker    *gobreaker.CircuitBreaker[string]
	tiers      []*tierState
	cooldown   time.Duration
}

type tierState struct {
	Tier
	limiter *rate.Limiter
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "llm")
	}
}

// WithBreakerCooldown overrides how long the breaker stays open.
func WithBreakerCooldown(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.cooldown = d
		}
	}
}

// RateGap returns the minimum spacing between calls for rpm, including the
// safety margin. A non-positive rpm disables spacing.
func RateGap(rpm int) time.Duration {
	if rpm <= 0 {
		return 0
	}
	return time.Duration(math.Round(float64(time.Minute) / float64(rpm) * rateSafetyFactor))
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Primary.Model = strings.TrimSpace(cfg.Primary.Model)
	cfg.Fallback.Model = strings.TrimSpace(cfg.Fallback.Model)
	if cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "new client", "api key required", nil)
	}
	if cfg.Primary.Model == "" {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "new client", "primary model required", nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(nil, "llm"),
		cooldown:   defaultBreakerCooldown,
	}
	for _, opt := range opts {
		opt(c)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	c.api = openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(maxRetries),
	)

	c.tiers = append(c.tiers, newTierState(cfg.Primary))
	if cfg.Fallback.Model != "" && cfg.Fallback.Model != cfg.Primary.Model {
		c.tiers = append(c.tiers, newTierState(cfg.Fallback))
	}

	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "llm",
		Timeout: c.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.WarnWithContext(c.logger, "llm circuit breaker state changed", "llm_breaker_state",
				logging.String("from", from.String()),
				logging.String("to", to.String()),
				logging.String(logging.FieldErrorHint, "check API key, quota and network reachability"),
				logging.String(logging.FieldImpact, "AI calls fail fast while the breaker is open"))
		},
	})
	return c, nil
}

func newTierState(t Tier) *tierState {
	limit := rate.Inf
	if gap := RateGap(t.RPM); gap > 0 {
		limit = rate.Every(gap)
	}
	return &tierState{Tier: t, limiter: rate.NewLimiter(limit, 1)}
}

// Model returns the primary model name.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.cfg.Primary.Model
}

type emptyContentError struct {
	Model        string
	FinishReason string
	Refusal      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("model %s returned empty content (finish_reason=%q, refusal=%q)", e.Model, e.FinishReason, e.Refusal)
}

// CompleteJSON sends system and user prompts and returns the raw text the
// model produced. Failures are tagged services.ErrAI.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c == nil {
		return "", services.Wrap(services.ErrAI, "llm", "complete", "client not configured", nil)
	}
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return "", services.Wrap(services.ErrAI, "llm", "complete", "user prompt required", nil)
	}

	content, err := c.breaker.Execute(func() (string, error) {
		return c.completeAcrossTiers(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", services.Wrap(services.ErrAI, "llm", "complete", "circuit open", err)
		}
		return "", services.Wrap(services.ErrAI, "llm", "complete", "", err)
	}
	return content, nil
}

func (c *Client) completeAcrossTiers(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var lastErr error
	for i, tier := range c.tiers {
		if err := tier.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
		start := time.Now()
		content, err := c.completeOnce(ctx, tier.Model, systemPrompt, userPrompt)
		if err == nil {
			c.logger.Debug("llm completion",
				logging.String("model", tier.Model),
				logging.Duration("latency", time.Since(start)))
			return content, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		if i+1 < len(c.tiers) {
			logging.WarnWithContext(c.logger, "llm tier failed; trying fallback model", "llm_tier_fallback",
				logging.String("model", tier.Model),
				logging.String("fallback_model", c.tiers[i+1].Model),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check model availability and quota"),
				logging.String(logging.FieldImpact, "request retried on the fallback model"))
		}
	}
	return "", lastErr
}

func (c *Client) completeOnce(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(0),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("model %s: http %d: %w", model, apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("model %s: %w", model, err)
	}
	var finish, refusal string
	for _, choice := range resp.Choices {
		if finish == "" {
			finish = string(choice.FinishReason)
		}
		if refusal == "" {
			refusal = choice.Message.Refusal
		}
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", &emptyContentError{Model: model, FinishReason: finish, Refusal: refusal}
}
