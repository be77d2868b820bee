package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	Sources     SourcesConfig     `yaml:"sources" mapstructure:"sources"`
	YellowPages YellowPagesConfig `yaml:"yellowpages" mapstructure:"yellowpages"`
	Yelp        YelpConfig        `yaml:"yelp" mapstructure:"yelp"`
	Maps        MapsConfig        `yaml:"maps" mapstructure:"maps"`
	LinkedIn    LinkedInConfig    `yaml:"linkedin" mapstructure:"linkedin"`
	Growjo      GrowjoConfig      `yaml:"growjo" mapstructure:"growjo"`
	Apollo      ApolloConfig      `yaml:"apollo" mapstructure:"apollo"`
	DeepSeek    DeepSeekConfig    `yaml:"deepseek" mapstructure:"deepseek"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Jina        JinaConfig        `yaml:"jina" mapstructure:"jina"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Stream      StreamConfig      `yaml:"stream" mapstructure:"stream"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	NATS        NATSConfig        `yaml:"nats" mapstructure:"nats"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the lead database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig configures the company-name match cache.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	LegacyFile  string `yaml:"legacy_file" mapstructure:"legacy_file"`
}

// FetchConfig configures the shared HTTP fetcher.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// SourcesConfig selects which lead sources run and how they paginate.
type SourcesConfig struct {
	Enabled  []string `yaml:"enabled" mapstructure:"enabled"`
	MaxPages int      `yaml:"max_pages" mapstructure:"max_pages"`
}

// YellowPagesConfig configures the business directory source.
type YellowPagesConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// YelpConfig configures the review-site source.
type YelpConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	DelayMS  int    `yaml:"delay_ms" mapstructure:"delay_ms"`
	PageSize int    `yaml:"page_size" mapstructure:"page_size"`
}

// MapsConfig configures the browser-driven maps source.
type MapsConfig struct {
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	Headless        bool   `yaml:"headless" mapstructure:"headless"`
	ChromePath      string `yaml:"chrome_path" mapstructure:"chrome_path"`
	MaxResults      int    `yaml:"max_results" mapstructure:"max_results"`
	PlaceTimeoutSec int    `yaml:"place_timeout_secs" mapstructure:"place_timeout_secs"`
	WaitTimeoutSec  int    `yaml:"wait_timeout_secs" mapstructure:"wait_timeout_secs"`
}

// LinkedInConfig configures the professional-network source.
type LinkedInConfig struct {
	SiteFilter string `yaml:"site_filter" mapstructure:"site_filter"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// GrowjoConfig configures the revenue estimator source.
type GrowjoConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ApolloConfig holds Apollo.io API settings.
type ApolloConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	PerPage int    `yaml:"per_page" mapstructure:"per_page"`
}

// DeepSeekConfig holds DeepSeek API settings.
type DeepSeekConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// BatchConfig configures batch processing and pacing.
type BatchConfig struct {
	Concurrency  int  `yaml:"concurrency" mapstructure:"concurrency"`
	BatchSize    int  `yaml:"batch_size" mapstructure:"batch_size"`
	PauseMinSecs int  `yaml:"pause_min_secs" mapstructure:"pause_min_secs"`
	PauseMaxSecs int  `yaml:"pause_max_secs" mapstructure:"pause_max_secs"`
	Retry        bool `yaml:"retry" mapstructure:"retry"`
}

// StreamConfig configures live job streaming.
type StreamConfig struct {
	TickMS int `yaml:"tick_ms" mapstructure:"tick_ms"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// NATSConfig configures optional job event fan-out.
type NATSConfig struct {
	URL           string `yaml:"url" mapstructure:"url"`
	SubjectPrefix string `yaml:"subject_prefix" mapstructure:"subject_prefix"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the settings a given command mode depends on and
// reports every problem at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "scrape", "revenue", "enrich", "serve", "cache":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" && mode != "enrich" && mode != "cache" {
		errs = append(errs, "store.database_url is required")
	}

	switch c.Cache.Driver {
	case "sqlite":
		if c.Cache.Path == "" {
			errs = append(errs, "cache.path is required for the sqlite cache")
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" && c.Store.DatabaseURL == "" {
			errs = append(errs, "cache.database_url is required for the postgres cache")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q is not sqlite, postgres or memory", c.Cache.Driver))
	}

	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50 {
		errs = append(errs, "batch.concurrency must be between 1 and 50")
	}
	if c.Batch.BatchSize < 1 {
		errs = append(errs, "batch.batch_size must be >= 1")
	}
	if c.Batch.PauseMinSecs < 0 || c.Batch.PauseMaxSecs < c.Batch.PauseMinSecs {
		errs = append(errs, "batch.pause_max_secs must be >= pause_min_secs >= 0")
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

// PostgresCacheURL returns the DSN for the postgres match cache, falling
// back to the store DSN.
func (c *Config) PostgresCacheURL() string {
	if c.Cache.DatabaseURL != "" {
		return c.Cache.DatabaseURL
	}
	return c.Store.DatabaseURL
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadgen.db")
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "match_cache.db")
	v.SetDefault("cache.legacy_file", "company_cache.json")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.rate_per_sec", 1.0)
	v.SetDefault("fetch.burst", 2)
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("sources.enabled", []string{"yellowpages", "yelp", "maps", "linkedin", "apollo"})
	v.SetDefault("sources.max_pages", 5)
	v.SetDefault("yellowpages.base_url", "https://www.yellowpages.com")
	v.SetDefault("yelp.base_url", "https://www.yelp.com")
	v.SetDefault("yelp.delay_ms", 1500)
	v.SetDefault("yelp.page_size", 10)
	v.SetDefault("maps.base_url", "https://www.google.com")
	v.SetDefault("maps.headless", true)
	v.SetDefault("maps.max_results", 40)
	v.SetDefault("maps.place_timeout_secs", 45)
	v.SetDefault("maps.wait_timeout_secs", 10)
	v.SetDefault("linkedin.site_filter", "linkedin.com/company")
	v.SetDefault("linkedin.max_results", 20)
	v.SetDefault("growjo.base_url", "https://growjo.com")
	v.SetDefault("apollo.base_url", "https://api.apollo.io/api/v1")
	v.SetDefault("apollo.per_page", 25)
	v.SetDefault("deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("deepseek.model", "deepseek-chat")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("batch.concurrency", 5)
	v.SetDefault("batch.batch_size", 20)
	v.SetDefault("batch.pause_min_secs", 5)
	v.SetDefault("batch.pause_max_secs", 15)
	v.SetDefault("batch.retry", true)
	v.SetDefault("stream.tick_ms", 1000)
	v.SetDefault("nats.subject_prefix", "leadgen.jobs")

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
