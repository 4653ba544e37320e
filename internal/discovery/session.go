package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"epubsort/internal/logging"
)

const recyclePause = time.Second

// session owns the single browser instance. It is not safe for concurrent
// use; the engine serializes searches.
type session struct {
	launch      Launcher
	opts        LaunchOptions
	maxSearches int
	maxRetries  int
	backoffUnit time.Duration
	sleep       Sleeper
	logger      *slog.Logger

	browser  Browser
	searches int
}

// init closes any previous browser, launches a new one and checks that it
// answers. The search counter restarts at zero.
func (s *session) init(ctx context.Context) error {
	s.cleanup()
	b, err := s.launch(ctx, s.opts)
	if err != nil {
		return fmt.Errorf("initialize browser: %w", err)
	}
	if err := healthCheck(ctx, b); err != nil {
		_ = b.Close()
		return fmt.Errorf("initialize browser: %w", err)
	}
	s.browser = b
	s.searches = 0
	s.logger.Debug("browser initialized", logging.Bool("headless", s.opts.Headless))
	return nil
}

func healthCheck(ctx context.Context, b Browser) error {
	if err := b.Navigate(ctx, "about:blank"); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	u, err := b.URL(ctx)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if strings.TrimSpace(u) == "" {
		return errors.New("health check: empty page url")
	}
	return nil
}

func (s *session) ensure(ctx context.Context) error {
	if s.browser != nil {
		return nil
	}
	return s.init(ctx)
}

// recycle drops the current browser and starts a fresh one.
func (s *session) recycle(ctx context.Context) error {
	s.logger.Info("recycling browser", logging.Int("searches", s.searches))
	s.cleanup()
	if err := s.sleep(ctx, recyclePause); err != nil {
		return err
	}
	return s.init(ctx)
}

func (s *session) cleanup() {
	if s.browser == nil {
		return
	}
	if err := s.browser.Close(); err != nil {
		s.logger.Debug("browser close failed", logging.Error(err))
	}
	s.browser = nil
}

// countSearch records a completed search and recycles once the per-session
// limit is reached.
func (s *session) countSearch(ctx context.Context) {
	s.searches++
	if s.maxSearches <= 0 || s.searches < s.maxSearches {
		return
	}
	s.logger.Info("max searches per session reached", logging.Int("searches", s.searches))
	if err := s.recycle(ctx); err != nil {
		logging.WarnWithContext(s.logger, "browser recycle failed", "browser_recycle_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next search starts a new browser"))
	}
}

// navigate loads url, retrying with 2^n second backoff. A lost connection
// re-initializes the browser before the next attempt. The landed URL must be
// an http(s) page.
func (s *session) navigate(ctx context.Context, url string) error {
	attempts := max(s.maxRetries, 1)
	unit := s.backoffUnit
	if unit <= 0 {
		unit = time.Second
	}
	return retry.Do(
		func() error {
			if err := s.ensure(ctx); err != nil {
				return err
			}
			if err := s.browser.Navigate(ctx, url); err != nil {
				if errors.Is(err, ErrSessionClosed) {
					s.logger.Warn("browser disconnected; reinitializing", logging.Error(err))
					if initErr := s.init(ctx); initErr != nil {
						return errors.Join(err, initErr)
					}
				}
				return err
			}
			landed, err := s.browser.URL(ctx)
			if err != nil {
				return err
			}
			if !strings.HasPrefix(landed, "http") {
				return fmt.Errorf("invalid url after navigation: %q", landed)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return unit << n
		}),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("navigation attempt failed",
				logging.Int("attempt", int(n)+1),
				logging.String("url", truncate(url, 70)),
				logging.Error(err))
		}),
	)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
