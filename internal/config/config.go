// Package config loads application configuration via viper and initializes
// the global zap logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	WebSearch  WebSearchConfig  `yaml:"websearch" mapstructure:"websearch"`
	Reader     ReaderConfig     `yaml:"reader" mapstructure:"reader"`
	VideoMeta  VideoMetaConfig  `yaml:"videometa" mapstructure:"videometa"`
	Transcribe TranscribeConfig `yaml:"transcribe" mapstructure:"transcribe"`
	Moderation ModerationConfig `yaml:"moderation" mapstructure:"moderation"`
	Acquire    AcquireConfig    `yaml:"acquire" mapstructure:"acquire"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Usage      UsageConfig      `yaml:"usage" mapstructure:"usage"`
	Prompts    PromptsConfig    `yaml:"prompts" mapstructure:"prompts"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RedisConfig configures the optional shared counter store. An empty Addr
// disables Redis; rate limiting then falls back to in-memory windows.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// LLMConfig holds the completion service settings.
type LLMConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	TriageModel       string  `yaml:"triage_model" mapstructure:"triage_model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// WebSearchConfig holds the web search service settings.
type WebSearchConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ReaderConfig holds the article extraction service settings.
type ReaderConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// VideoMetaConfig holds the video metadata/transcript service settings.
type VideoMetaConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// TranscribeConfig holds the async audio transcription service settings.
type TranscribeConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	CallbackURL string `yaml:"callback_url" mapstructure:"callback_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ModerationConfig holds the content screening service settings.
type ModerationConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AcquireConfig configures the acquisition adapters.
type AcquireConfig struct {
	FetchAttempts        int `yaml:"fetch_attempts" mapstructure:"fetch_attempts"`
	ScrapeAttempts       int `yaml:"scrape_attempts" mapstructure:"scrape_attempts"`
	CallTimeoutSecs      int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	WaterfallTimeoutSecs int `yaml:"waterfall_timeout_secs" mapstructure:"waterfall_timeout_secs"`
	TranscriptInterval   int `yaml:"transcript_interval_secs" mapstructure:"transcript_interval_secs"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	GlobalDeadlineSecs  int `yaml:"global_deadline_secs" mapstructure:"global_deadline_secs"`
	EnrichDeadlineSecs  int `yaml:"enrich_deadline_secs" mapstructure:"enrich_deadline_secs"`
	MinClaimTextLength  int `yaml:"min_claim_text_length" mapstructure:"min_claim_text_length"`
	MaxSourceTextChars  int `yaml:"max_source_text_chars" mapstructure:"max_source_text_chars"`
	SectionMaxAttempts  int `yaml:"section_max_attempts" mapstructure:"section_max_attempts"`
	SelfHealMaxAttempts int `yaml:"self_heal_max_attempts" mapstructure:"self_heal_max_attempts"`
}

// CacheConfig configures cross-tenant analysis reuse. Staleness windows are
// per content type; fast-changing text gets a short window, immutable media
// a long one.
type CacheConfig struct {
	Enabled               bool `yaml:"enabled" mapstructure:"enabled"`
	ArticleStalenessHours int  `yaml:"article_staleness_hours" mapstructure:"article_staleness_hours"`
	PostStalenessHours    int  `yaml:"post_staleness_hours" mapstructure:"post_staleness_hours"`
	MediaStalenessHours   int  `yaml:"media_staleness_hours" mapstructure:"media_staleness_hours"`
}

// StalenessFor returns the staleness window for a content type.
func (c CacheConfig) StalenessFor(contentType string) time.Duration {
	switch contentType {
	case "article":
		return time.Duration(c.ArticleStalenessHours) * time.Hour
	case "social_post":
		return time.Duration(c.PostStalenessHours) * time.Hour
	default:
		return time.Duration(c.MediaStalenessHours) * time.Hour
	}
}

// UsageConfig configures quota and rate limiting.
type UsageConfig struct {
	MonthlyAnalysisLimit int `yaml:"monthly_analysis_limit" mapstructure:"monthly_analysis_limit"`
	RateLimitPerMinute   int `yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	RateWindowSecs       int `yaml:"rate_window_secs" mapstructure:"rate_window_secs"`
}

// PromptsConfig configures the prompt template registry.
type PromptsConfig struct {
	Path         string `yaml:"path" mapstructure:"path"`
	CacheTTLSecs int    `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.triage_model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.requests_per_second", 5)
	v.SetDefault("llm.timeout_secs", 90)
	v.SetDefault("websearch.base_url", "https://api.perplexity.ai")
	v.SetDefault("websearch.model", "sonar-pro")
	v.SetDefault("websearch.timeout_secs", 20)
	v.SetDefault("reader.base_url", "https://r.jina.ai")
	v.SetDefault("reader.timeout_secs", 30)
	v.SetDefault("videometa.timeout_secs", 30)
	v.SetDefault("transcribe.timeout_secs", 30)
	v.SetDefault("moderation.base_url", "https://api.openai.com/v1")
	v.SetDefault("moderation.timeout_secs", 15)
	v.SetDefault("acquire.fetch_attempts", 3)
	v.SetDefault("acquire.scrape_attempts", 5)
	v.SetDefault("acquire.call_timeout_secs", 30)
	v.SetDefault("acquire.waterfall_timeout_secs", 45)
	v.SetDefault("acquire.transcript_interval_secs", 60)
	v.SetDefault("pipeline.global_deadline_secs", 300)
	v.SetDefault("pipeline.enrich_deadline_secs", 40)
	v.SetDefault("pipeline.min_claim_text_length", 280)
	v.SetDefault("pipeline.max_source_text_chars", 120000)
	v.SetDefault("pipeline.section_max_attempts", 3)
	v.SetDefault("pipeline.self_heal_max_attempts", 1)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.article_staleness_hours", 72)
	v.SetDefault("cache.post_staleness_hours", 24)
	v.SetDefault("cache.media_staleness_hours", 2160)
	v.SetDefault("usage.monthly_analysis_limit", 100)
	v.SetDefault("usage.rate_limit_per_minute", 20)
	v.SetDefault("usage.rate_window_secs", 60)
	v.SetDefault("prompts.cache_ttl_secs", 300)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
