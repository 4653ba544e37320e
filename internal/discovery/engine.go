package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"epubsort/internal/logging"
	"epubsort/internal/services"
)

// ErrBlocked reports that Google served a CAPTCHA or rate-limit page.
var ErrBlocked = errors.New("search blocked by captcha or rate limit")

const (
	googleHome         = "https://www.google.com/"
	searchBoxSelector  = "[name=q]"
	resultsSelector    = "#search"
	resultsWait        = 8 * time.Second
	bodyWait           = 8 * time.Second
	fetchAttempts      = 2
	fetchRetryPause    = 2 * time.Second
	minTitleRunes      = 2
	defaultThreshold   = 0.20
	defaultCandidates  = 5
	defaultMaxRetries  = 3
	defaultMaxSearches = 25
)

var captchaMarkers = []string{"captcha", "unusual traffic", "not a robot", "recaptcha"}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config tunes the engine. Zero values fall back to the defaults.
type Config struct {
	Headless              bool
	UserAgent             string
	MaxSearchesPerSession int
	MaxRetries            int
	MatchThreshold        float64
	MaxCandidates         int
	DomainScores          map[string]float64
}

// Engine searches for novel metadata. It owns one browser session and must
// not be used from several goroutines at once.
type Engine struct {
	cfg     Config
	domains domainTable
	session *session
	sleep   Sleeper
	jitter  func(lo, hi time.Duration) time.Duration
	logger  *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLauncher replaces the rod launcher.
func WithLauncher(l Launcher) Option {
	return func(e *Engine) { e.session.launch = l }
}

// WithSleeper replaces the jitter, recycle and retry pauses.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) {
		e.sleep = s
		e.session.sleep = s
	}
}

// WithBackoffUnit sets the base of the 2^n navigation backoff.
func WithBackoffUnit(d time.Duration) Option {
	return func(e *Engine) { e.session.backoffUnit = d }
}

// NewEngine builds an engine. The browser is launched lazily on the first
// search.
func NewEngine(cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = defaultThreshold
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = defaultCandidates
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.MaxSearchesPerSession <= 0 {
		cfg.MaxSearchesPerSession = defaultMaxSearches
	}
	logger = logging.NewComponentLogger(logger, "discovery")
	e := &Engine{
		cfg:     cfg,
		domains: newDomainTable(cfg.DomainScores),
		sleep:   sleepContext,
		jitter:  uniformJitter,
		logger:  logger,
	}
	e.session = &session{
		launch:      LaunchRod,
		opts:        LaunchOptions{Headless: cfg.Headless, UserAgent: cfg.UserAgent, BlockImages: true},
		maxSearches: cfg.MaxSearchesPerSession,
		maxRetries:  cfg.MaxRetries,
		backoffUnit: time.Second,
		sleep:       sleepContext,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close shuts the browser down.
func (e *Engine) Close() error {
	b := e.session.browser
	e.session.browser = nil
	if b == nil {
		return nil
	}
	return b.Close()
}

// Search looks up title and returns the first candidate page that parses.
// It returns nil without error when nothing usable is found. ErrBlocked is
// returned, wrapped as a web error, when Google blocks the session.
func (e *Engine) Search(ctx context.Context, title string) (*Metadata, error) {
	title = strings.TrimSpace(title)
	if len([]rune(title)) < minTitleRunes {
		e.logger.Warn("search title too short", logging.String("title", title))
		return nil, nil
	}
	logger := logging.WithContext(ctx, e.logger)
	logger.Info("web search started", logging.String("title", title))

	results, err := e.searchGoogle(ctx, title+" truyện")
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		logger.Info("no search results", logging.String("title", title))
		return nil, nil
	}

	ranked := e.rank(title, results)
	candidates := aboveThreshold(ranked, e.cfg.MatchThreshold)
	if len(candidates) == 0 {
		logger.Info("no result above match threshold",
			logging.Float64("threshold", e.cfg.MatchThreshold),
			logging.Float64("best_score", ranked[0].score))
		return nil, nil
	}

	limit := min(e.cfg.MaxCandidates, len(candidates))
	for i, candidate := range candidates[:limit] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, ok := e.fetchPage(ctx, candidate.URL)
		if !ok {
			logger.Debug("candidate fetch failed", logging.Int("rank", i+1), logging.String("url", truncate(candidate.URL, 70)))
			continue
		}
		if meta, ok := e.domains.parseMetadata(page, candidate.URL); ok {
			logger.Info("web metadata found",
				logging.String("web_title", meta.Title),
				logging.String("source", meta.Source),
				logging.Int("web_chapters", meta.ChapterCount))
			return meta, nil
		}
		logger.Debug("candidate page did not parse", logging.Int("rank", i+1), logging.String("url", truncate(candidate.URL, 70)))
	}
	logger.Info("no candidate page parsed", logging.Int("tried", limit))
	return nil, nil
}

type scoredResult struct {
	serpResult
	score float64
}

// rank scores results, best first. Ties keep SERP order.
func (e *Engine) rank(title string, results []serpResult) []scoredResult {
	scored := make([]scoredResult, 0, len(results))
	for _, r := range results {
		scored = append(scored, scoredResult{serpResult: r, score: e.domains.score(title, r)})
	}
	slices.SortStableFunc(scored, func(a, b scoredResult) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})
	return scored
}

func aboveThreshold(ranked []scoredResult, threshold float64) []scoredResult {
	if cut := slices.IndexFunc(ranked, func(s scoredResult) bool { return s.score < threshold }); cut >= 0 {
		return ranked[:cut]
	}
	return ranked
}

// searchGoogle runs the query with up to MaxRetries attempts. A block is
// never retried: the browser is recycled and ErrBlocked propagates. Other
// failures exhaust into an empty result.
func (e *Engine) searchGoogle(ctx context.Context, query string) ([]serpResult, error) {
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		results, err := e.searchOnce(ctx, query)
		switch {
		case err == nil:
			e.session.countSearch(ctx)
			return results, nil
		case errors.Is(err, ErrBlocked):
			logging.WarnWithContext(e.logger, "google blocked the search session", "captcha_detected",
				logging.String("query", query),
				logging.String(logging.FieldErrorHint, "wait for the cooldown or switch network"),
				logging.String(logging.FieldImpact, "web lookups pause for the cooldown window"))
			if rerr := e.session.recycle(ctx); rerr != nil {
				e.logger.Debug("recycle after block failed", logging.Error(rerr))
			}
			return nil, services.Wrap(services.ErrWeb, "discovery", "search", "captcha detected", err)
		case errors.Is(err, errSearchBoxMissing):
			e.logger.Warn("google search box not found", logging.String("query", query))
			return nil, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
		e.logger.Warn("search attempt failed",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", e.cfg.MaxRetries),
			logging.Error(err))
		if attempt < e.cfg.MaxRetries {
			if serr := e.sleep(ctx, time.Duration(2*attempt)*time.Second); serr != nil {
				return nil, serr
			}
		}
	}
	logging.WarnWithContext(e.logger, "google search failed after retries", "search_exhausted",
		logging.String("query", query),
		logging.String(logging.FieldImpact, "file is organized without web data"))
	return nil, nil
}

var errSearchBoxMissing = errors.New("search box not found")

func (e *Engine) searchOnce(ctx context.Context, query string) ([]serpResult, error) {
	if err := e.session.navigate(ctx, googleHome); err != nil {
		return nil, fmt.Errorf("open google: %w", err)
	}
	if err := e.pause(ctx, time.Second, 1500*time.Millisecond); err != nil {
		return nil, err
	}
	if err := e.checkBlocked(ctx); err != nil {
		return nil, err
	}

	b := e.session.browser
	if err := b.Submit(ctx, searchBoxSelector, query); err != nil {
		if errors.Is(err, ErrSessionClosed) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errSearchBoxMissing, err)
	}
	if err := b.WaitVisible(ctx, resultsSelector, resultsWait); err != nil {
		e.logger.Debug("timed out waiting for results", logging.Error(err))
	}
	if err := e.pause(ctx, 1500*time.Millisecond, 2*time.Second); err != nil {
		return nil, err
	}

	html, err := b.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture serp: %w", err)
	}
	if containsCaptcha(html) {
		return nil, ErrBlocked
	}
	results, err := extractResults(html)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("search results extracted", logging.Int("count", len(results)))
	return results, nil
}

func (e *Engine) checkBlocked(ctx context.Context) error {
	html, err := e.session.browser.HTML(ctx)
	if err != nil {
		return fmt.Errorf("capture page: %w", err)
	}
	if containsCaptcha(html) {
		return ErrBlocked
	}
	return nil
}

func containsCaptcha(html string) bool {
	lowered := strings.ToLower(html)
	for _, marker := range captchaMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// fetchPage loads a candidate page, trying twice with a short pause.
func (e *Engine) fetchPage(ctx context.Context, url string) (pageData, bool) {
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		data, err := e.fetchOnce(ctx, url)
		if err == nil {
			return data, true
		}
		if ctx.Err() != nil {
			return pageData{}, false
		}
		e.logger.Debug("fetch attempt failed", logging.Int("attempt", attempt), logging.Error(err))
		if attempt < fetchAttempts {
			if e.sleep(ctx, fetchRetryPause) != nil {
				return pageData{}, false
			}
		}
	}
	return pageData{}, false
}

func (e *Engine) fetchOnce(ctx context.Context, url string) (pageData, error) {
	if err := e.session.navigate(ctx, url); err != nil {
		return pageData{}, err
	}
	b := e.session.browser
	if err := b.WaitVisible(ctx, "body", bodyWait); err != nil {
		e.logger.Debug("body not visible", logging.Error(err))
	}
	if err := e.pause(ctx, time.Second, 1500*time.Millisecond); err != nil {
		return pageData{}, err
	}
	html, err := b.HTML(ctx)
	if err != nil {
		return pageData{}, fmt.Errorf("capture page: %w", err)
	}
	data, strategy, err := extractPage(html)
	if err != nil {
		return pageData{}, err
	}
	e.logger.Debug("page text extracted", logging.String("strategy", strategy), logging.Int("chars", len([]rune(data.Text))))
	return data, nil
}

// pause waits a random duration in [lo, hi).
func (e *Engine) pause(ctx context.Context, lo, hi time.Duration) error {
	return e.sleep(ctx, e.jitter(lo, hi))
}

func uniformJitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
