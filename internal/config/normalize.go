package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnvOverrides()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAIStrategy()
	c.normalizeLLM()
	c.normalizeWebSearch()
	c.normalizeLogging()
	return nil
}

// applyEnvOverrides lets the environment win over file values. Boolean
// switches only turn on; an unset or non-"true" value leaves the file value.
func (c *Config) applyEnvOverrides() {
	if value, ok := lookupNonEmpty("GOOGLE_API_KEY"); ok {
		c.APIKeys.GoogleAPIKey = value
	}
	if value, ok := lookupNonEmpty("INPUT_FOLDER"); ok {
		c.Paths.InputFolder = value
	}
	if value, ok := lookupNonEmpty("OUTPUT_FOLDER"); ok {
		c.Paths.OutputBaseFolder = value
	}
	if envTrue("DRY_RUN") {
		c.Features.DryRun = true
	}
	if envTrue("HEADLESS") {
		c.Features.HeadlessBrowser = true
	}
}

func lookupNonEmpty(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func envTrue(key string) bool {
	value, _ := os.LookupEnv(key)
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

func (c *Config) normalizePaths() error {
	var err error
	c.Paths.InputFolder = strings.TrimSpace(c.Paths.InputFolder)
	if c.Paths.InputFolder, err = expandPath(c.Paths.InputFolder); err != nil {
		return fmt.Errorf("paths.input_folder: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputBaseFolder) == "" {
		c.Paths.OutputBaseFolder = defaultOutputBaseFolder
	}
	if c.Paths.OutputBaseFolder, err = expandPath(c.Paths.OutputBaseFolder); err != nil {
		return fmt.Errorf("paths.output_base_folder: %w", err)
	}
	if c.Paths.LogFile, err = expandPath(strings.TrimSpace(c.Paths.LogFile)); err != nil {
		return fmt.Errorf("paths.log_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ReportDir) == "" {
		c.Paths.ReportDir = defaultReportDir
	}
	if c.Paths.ReportDir, err = expandPath(c.Paths.ReportDir); err != nil {
		return fmt.Errorf("paths.report_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAIStrategy() {
	c.APIKeys.GoogleAPIKey = strings.TrimSpace(c.APIKeys.GoogleAPIKey)
	c.AIStrategy.Primary.Name = strings.TrimSpace(c.AIStrategy.Primary.Name)
	c.AIStrategy.Fallback.Name = strings.TrimSpace(c.AIStrategy.Fallback.Name)
	if c.AIStrategy.Primary.BatchSize <= 0 {
		c.AIStrategy.Primary.BatchSize = defaultPrimaryBatchSize
	}
	if c.AIStrategy.Fallback.BatchSize <= 0 {
		c.AIStrategy.Fallback.BatchSize = defaultFallbackBatchSize
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if !strings.HasSuffix(c.LLM.BaseURL, "/") {
		c.LLM.BaseURL += "/"
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxRetries < 0 {
		c.LLM.MaxRetries = 0
	}
}

func (c *Config) normalizeWebSearch() {
	if c.WebSearch.MaxSearchesPerSession <= 0 {
		c.WebSearch.MaxSearchesPerSession = defaultMaxSearchesPerSession
	}
	if c.WebSearch.MaxRetries <= 0 {
		c.WebSearch.MaxRetries = defaultWebMaxRetries
	}
	if c.WebSearch.MaxCandidates <= 0 {
		c.WebSearch.MaxCandidates = defaultMaxCandidates
	}
	c.WebSearch.UserAgent = strings.TrimSpace(c.WebSearch.UserAgent)
	if c.WebSearch.UserAgent == "" {
		c.WebSearch.UserAgent = defaultUserAgent
	}
	if len(c.WebSearch.DomainScores) > 0 {
		scores := make(map[string]float64, len(c.WebSearch.DomainScores))
		for domain, score := range c.WebSearch.DomainScores {
			domain = strings.ToLower(strings.TrimSpace(domain))
			if domain == "" {
				continue
			}
			scores[domain] = score
		}
		c.WebSearch.DomainScores = scores
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
