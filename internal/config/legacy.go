package config

// legacyConfig mirrors the upper-case config.json layout used by earlier
// deployments. Only keys present in the file override defaults.
type legacyConfig struct {
	APIKeys *struct {
		GoogleAPIKey     *string `json:"GOOGLE_API_KEY"`
		MetruyencvCookie *string `json:"METRUYENCV_COOKIE"`
	} `json:"API_KEYS"`
	AIStrategy *struct {
		Primary  *legacyModel `json:"PRIMARY"`
		Fallback *legacyModel `json:"FALLBACK"`
	} `json:"AI_STRATEGY"`
	Paths *struct {
		InputFolder      *string `json:"INPUT_FOLDER"`
		OutputBaseFolder *string `json:"OUTPUT_BASE_FOLDER"`
		LogFile          *string `json:"LOG_FILE"`
		CacheDir         *string `json:"CACHE_DIR"`
	} `json:"PATHS"`
	Features *struct {
		DryRun          *bool `json:"DRY_RUN"`
		ResumeEnabled   *bool `json:"RESUME_ENABLED"`
		CacheEnabled    *bool `json:"CACHE_ENABLED"`
		HeadlessBrowser *bool `json:"HEADLESS_BROWSER"`
		AIAllowed       *bool `json:"AI_ALLOWED"`
	} `json:"FEATURES"`
	WebSearch *struct {
		CaptchaCooldownMinutes *int `json:"CAPTCHA_COOLDOWN_MINUTES"`
	} `json:"WEB_SEARCH"`
}

type legacyModel struct {
	Name      *string `json:"NAME"`
	RPM       *int    `json:"RPM"`
	BatchSize *int    `json:"BATCH_SIZE"`
}

func (l legacyConfig) apply(cfg *Config) {
	if k := l.APIKeys; k != nil {
		setString(&cfg.APIKeys.GoogleAPIKey, k.GoogleAPIKey)
		setString(&cfg.APIKeys.MetruyencvCookie, k.MetruyencvCookie)
	}
	if s := l.AIStrategy; s != nil {
		s.Primary.apply(&cfg.AIStrategy.Primary)
		s.Fallback.apply(&cfg.AIStrategy.Fallback)
	}
	if p := l.Paths; p != nil {
		setString(&cfg.Paths.InputFolder, p.InputFolder)
		setString(&cfg.Paths.OutputBaseFolder, p.OutputBaseFolder)
		setString(&cfg.Paths.LogFile, p.LogFile)
		setString(&cfg.Paths.CacheDir, p.CacheDir)
	}
	if f := l.Features; f != nil {
		setBool(&cfg.Features.DryRun, f.DryRun)
		setBool(&cfg.Features.ResumeEnabled, f.ResumeEnabled)
		setBool(&cfg.Features.CacheEnabled, f.CacheEnabled)
		setBool(&cfg.Features.HeadlessBrowser, f.HeadlessBrowser)
		setBool(&cfg.Features.AIAllowed, f.AIAllowed)
	}
	if w := l.WebSearch; w != nil && w.CaptchaCooldownMinutes != nil {
		cfg.WebSearch.CaptchaCooldownMinutes = *w.CaptchaCooldownMinutes
	}
}

func (m *legacyModel) apply(dst *Model) {
	if m == nil {
		return
	}
	setString(&dst.Name, m.Name)
	if m.RPM != nil {
		dst.RPM = *m.RPM
	}
	if m.BatchSize != nil {
		dst.BatchSize = *m.BatchSize
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
