package pipeline

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"epubsort/internal/checkpoint"
	"epubsort/internal/config"
	"epubsort/internal/dedup"
	"epubsort/internal/discovery"
	"epubsort/internal/metrics"
	"epubsort/internal/normalizer"
	"epubsort/internal/resultcache"
	"epubsort/internal/services/llm"
	"epubsort/internal/translation"
)

// DependenciesFromConfig builds the production collaborators for cfg: a
// shared lazily-built LLM client, the translation engine, the filename
// normalizer, the rod-backed discovery engine and the JSON stores under the
// cache directory.
func DependenciesFromConfig(cfg *config.Config, logger *slog.Logger, recorder *metrics.Recorder) Dependencies {
	var clientFn func() (*llm.Client, error)
	policy := translation.NewPolicy(cfg.Features.AIAllowed, cfg.APIKeys.GoogleAPIKey)
	if policy.Allowed() {
		clientFn = sync.OnceValues(func() (*llm.Client, error) {
			return llm.NewClient(llm.Config{
				APIKey:         cfg.APIKeys.GoogleAPIKey,
				BaseURL:        cfg.LLM.BaseURL,
				Primary:        llm.Tier{Model: cfg.AIStrategy.Primary.Name, RPM: cfg.AIStrategy.Primary.RPM},
				Fallback:       llm.Tier{Model: cfg.AIStrategy.Fallback.Name, RPM: cfg.AIStrategy.Fallback.RPM},
				TimeoutSeconds: cfg.LLM.TimeoutSeconds,
				MaxRetries:     cfg.LLM.MaxRetries,
			}, llm.WithLogger(logger))
		})
	}

	var classifierFactory translation.ClientFactory
	var normalizerFactory normalizer.ClientFactory
	if clientFn != nil {
		classifierFactory = func() (translation.Completer, error) {
			c, err := clientFn()
			if err != nil {
				return nil, err
			}
			return c, nil
		}
		normalizerFactory = func() (normalizer.Completer, error) {
			c, err := clientFn()
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}

	deps := Dependencies{
		Classifier: translation.NewEngine(policy, classifierFactory, logger, translation.WithRecorder(recorder)),
		Normalizer: normalizer.New(normalizerFactory, logger, normalizer.WithRecorder(recorder)),
		Searcher: discovery.NewEngine(discovery.Config{
			Headless:              cfg.Features.HeadlessBrowser,
			UserAgent:             cfg.WebSearch.UserAgent,
			MaxSearchesPerSession: cfg.WebSearch.MaxSearchesPerSession,
			MaxRetries:            cfg.WebSearch.MaxRetries,
			MatchThreshold:        cfg.WebSearch.MatchThreshold,
			MaxCandidates:         cfg.WebSearch.MaxCandidates,
			DomainScores:          cfg.WebSearch.DomainScores,
		}, logger),
		Registry: dedup.Open(filepath.Join(cfg.Paths.CacheDir, dedup.FileName), logger),
		Metrics:  recorder,
	}
	if cfg.Features.ResumeEnabled {
		deps.Ledger = checkpoint.Open(filepath.Join(cfg.Paths.CacheDir, checkpoint.FileName), logger)
	}
	if cfg.Features.CacheEnabled {
		ttl := time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour
		deps.WebCache, deps.AICache = resultcache.OpenDir(cfg.Paths.CacheDir, ttl, logger)
	}
	return deps
}

// Close releases collaborators that hold resources, such as the browser.
func (o *Orchestrator) Close() error {
	var errs []error
	if closer, ok := o.deps.Searcher.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}
