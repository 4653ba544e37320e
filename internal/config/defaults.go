package config

const (
	defaultInputFolder            = "books"
	defaultOutputBaseFolder       = "Output"
	defaultLogFile                = "app.log"
	defaultCacheDir               = ".cache"
	defaultReportDir              = "result"
	defaultPrimaryModel           = "gemma-3-27b-it"
	defaultPrimaryRPM             = 30
	defaultPrimaryBatchSize       = 5
	defaultFallbackModel          = "gemini-2.0-flash-exp"
	defaultFallbackRPM            = 5
	defaultFallbackBatchSize      = 4
	defaultLLMBaseURL             = "https://generativelanguage.googleapis.com/v1beta/openai/"
	defaultLLMTimeoutSeconds      = 60
	defaultLLMMaxRetries          = 2
	defaultCaptchaCooldownMinutes = 10
	defaultMaxSearchesPerSession  = 25
	defaultWebMaxRetries          = 3
	defaultMatchThreshold         = 0.20
	defaultMaxCandidates          = 5
	defaultUserAgent              = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultCacheTTLDays           = 30
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		AIStrategy: AIStrategy{
			Primary: Model{
				Name:      defaultPrimaryModel,
				RPM:       defaultPrimaryRPM,
				BatchSize: defaultPrimaryBatchSize,
			},
			Fallback: Model{
				Name:      defaultFallbackModel,
				RPM:       defaultFallbackRPM,
				BatchSize: defaultFallbackBatchSize,
			},
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			MaxRetries:     defaultLLMMaxRetries,
		},
		Features: Features{
			ResumeEnabled: true,
			CacheEnabled:  true,
		},
		Paths: Paths{
			InputFolder:      defaultInputFolder,
			OutputBaseFolder: defaultOutputBaseFolder,
			LogFile:          defaultLogFile,
			CacheDir:         defaultCacheDir,
			ReportDir:        defaultReportDir,
		},
		WebSearch: WebSearch{
			CaptchaCooldownMinutes: defaultCaptchaCooldownMinutes,
			MaxSearchesPerSession:  defaultMaxSearchesPerSession,
			MaxRetries:             defaultWebMaxRetries,
			MatchThreshold:         defaultMatchThreshold,
			MaxCandidates:          defaultMaxCandidates,
			UserAgent:              defaultUserAgent,
		},
		Cache: Cache{
			TTLDays: defaultCacheTTLDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
