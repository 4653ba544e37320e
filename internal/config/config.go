package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// APIKeys holds credentials for external services.
type APIKeys struct {
	GoogleAPIKey     string `toml:"google_api_key" yaml:"google_api_key"`
	MetruyencvCookie string `toml:"metruyencv_cookie" yaml:"metruyencv_cookie"`
}

// Model describes one LLM tier.
type Model struct {
	Name      string `toml:"name" yaml:"name"`
	RPM       int    `toml:"rpm" yaml:"rpm"`
	BatchSize int    `toml:"batch_size" yaml:"batch_size"`
}

// AIStrategy selects the primary and fallback models.
type AIStrategy struct {
	Primary  Model `toml:"primary" yaml:"primary"`
	Fallback Model `toml:"fallback" yaml:"fallback"`
}

// LLM contains connection settings for the OpenAI-compatible endpoint.
type LLM struct {
	BaseURL        string `toml:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries" yaml:"max_retries"`
}

// Features toggles run behavior.
type Features struct {
	DryRun          bool `toml:"dry_run" yaml:"dry_run"`
	ResumeEnabled   bool `toml:"resume_enabled" yaml:"resume_enabled"`
	CacheEnabled    bool `toml:"cache_enabled" yaml:"cache_enabled"`
	HeadlessBrowser bool `toml:"headless_browser" yaml:"headless_browser"`
	AIAllowed       bool `toml:"ai_allowed" yaml:"ai_allowed"`
}

// Paths contains input, output and state locations.
type Paths struct {
	InputFolder      string `toml:"input_folder" yaml:"input_folder"`
	OutputBaseFolder string `toml:"output_base_folder" yaml:"output_base_folder"`
	LogFile          string `toml:"log_file" yaml:"log_file"`
	CacheDir         string `toml:"cache_dir" yaml:"cache_dir"`
	ReportDir        string `toml:"report_dir" yaml:"report_dir"`
}

// WebSearch contains web discovery tuning.
type WebSearch struct {
	CaptchaCooldownMinutes int                `toml:"captcha_cooldown_minutes" yaml:"captcha_cooldown_minutes"`
	MaxSearchesPerSession  int                `toml:"max_searches_per_session" yaml:"max_searches_per_session"`
	MaxRetries             int                `toml:"max_retries" yaml:"max_retries"`
	MatchThreshold         float64            `toml:"match_threshold" yaml:"match_threshold"`
	MaxCandidates          int                `toml:"max_candidates" yaml:"max_candidates"`
	UserAgent              string             `toml:"user_agent" yaml:"user_agent"`
	DomainScores           map[string]float64 `toml:"domain_scores" yaml:"domain_scores"`
}

// Cache contains result cache settings.
type Cache struct {
	TTLDays int `toml:"ttl_days" yaml:"ttl_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format" yaml:"format"`
	Level         string `toml:"level" yaml:"level"`
	RetentionDays int    `toml:"retention_days" yaml:"retention_days"`
}

// Config encapsulates all configuration values for epubsort.
//
// Configuration sections:
//   - APIKeys: Google API key for Gemini/Gemma models
//   - AIStrategy: model tiers and rate limits
//   - LLM: endpoint, timeout and retry settings
//   - Features: dry run, resume, cache, headless browser, AI gate
//   - Paths: input, output, log, cache and report locations
//   - WebSearch: browser session and match tuning
//   - Cache: result cache expiry
//   - Logging: log format, level, and retention
type Config struct {
	APIKeys    APIKeys    `toml:"api_keys" yaml:"api_keys"`
	AIStrategy AIStrategy `toml:"ai_strategy" yaml:"ai_strategy"`
	LLM        LLM        `toml:"llm" yaml:"llm"`
	Features   Features   `toml:"features" yaml:"features"`
	Paths      Paths      `toml:"paths" yaml:"paths"`
	WebSearch  WebSearch  `toml:"web_search" yaml:"web_search"`
	Cache      Cache      `toml:"cache" yaml:"cache"`
	Logging    Logging    `toml:"logging" yaml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/epubsort/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. The decoder is chosen by file extension:
// .yaml/.yml use YAML, .json uses the legacy upper-case layout, anything else is TOML.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	case ".json":
		var legacy legacyConfig
		if err := json.Unmarshal(data, &legacy); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
		legacy.apply(cfg)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	for _, name := range []string{"epubsort.toml", "config.json"} {
		projectPath, err := filepath.Abs(name)
		if err != nil {
			return "", false, err
		}
		if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
			return projectPath, true, nil
		}
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output, cache and report directories.
// The input folder is left alone; a missing input folder is handled by the pipeline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputBaseFolder, c.Paths.CacheDir, c.Paths.ReportDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.LogFile); c.Paths.LogFile != "" && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the path of the run lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.CacheDir, "epubsort.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// HasAPIKey reports whether a Google API key is configured.
func (c *Config) HasAPIKey() bool {
	return strings.TrimSpace(c.APIKeys.GoogleAPIKey) != ""
}
