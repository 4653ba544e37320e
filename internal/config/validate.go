package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. A missing API key is not an
// error; callers report it with Warnings.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAIStrategy(); err != nil {
		return err
	}
	if err := c.validateWebSearch(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateLogging()
}

// Warnings returns non-fatal configuration problems.
func (c *Config) Warnings() []string {
	var warnings []string
	if !c.HasAPIKey() {
		warnings = append(warnings, "api_keys.google_api_key is not set; AI features are disabled")
	}
	if c.Features.AIAllowed && !c.HasAPIKey() {
		warnings = append(warnings, "features.ai_allowed is true but no API key is configured")
	}
	return warnings
}

func (c *Config) validatePaths() error {
	if c.Paths.InputFolder == "" {
		return errors.New("paths.input_folder must be set")
	}
	return nil
}

func (c *Config) validateAIStrategy() error {
	if c.AIStrategy.Primary.Name == "" {
		return errors.New("ai_strategy.primary.name must be set")
	}
	if c.AIStrategy.Primary.RPM <= 0 {
		return errors.New("ai_strategy.primary.rpm must be positive")
	}
	if c.AIStrategy.Fallback.Name != "" && c.AIStrategy.Fallback.RPM <= 0 {
		return errors.New("ai_strategy.fallback.rpm must be positive when a fallback model is set")
	}
	return nil
}

func (c *Config) validateWebSearch() error {
	if c.WebSearch.MatchThreshold < 0 || c.WebSearch.MatchThreshold > 1 {
		return errors.New("web_search.match_threshold must be between 0 and 1")
	}
	if c.WebSearch.CaptchaCooldownMinutes < 0 {
		return errors.New("web_search.captcha_cooldown_minutes must be >= 0")
	}
	for domain, score := range c.WebSearch.DomainScores {
		if score < 0 || score > 1 {
			return fmt.Errorf("web_search.domain_scores.%s must be between 0 and 1", domain)
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.TTLDays <= 0 {
		return errors.New("cache.ttl_days must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
