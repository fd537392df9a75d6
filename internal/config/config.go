// Package config loads process configuration from an optional YAML file,
// a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/FranksOps/shopwise/internal/scraper"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. SHOPWISE_SEARCH_SITE_FILTER.
const EnvPrefix = "SHOPWISE"

type Config struct {
	LLM     LLM     `mapstructure:"llm"`
	Search  Search  `mapstructure:"search"`
	Planner Planner `mapstructure:"planner"`
	Scraper Scraper `mapstructure:"scraper"`
	Context Context `mapstructure:"context"`
	Storage Storage `mapstructure:"storage"`
	Server  Server  `mapstructure:"server"`
	Log     Log     `mapstructure:"log"`
}

type LLM struct {
	// Provider is "gemini" or "openai".
	Provider     string        `mapstructure:"provider"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type Search struct {
	APIKey     string `mapstructure:"api_key"`
	EngineID   string `mapstructure:"engine_id"`
	Endpoint   string `mapstructure:"endpoint"`
	NumResults int    `mapstructure:"num_results"`
	// SiteFilter is applied as inurl:<filter>. Empty searches the whole web.
	SiteFilter string        `mapstructure:"site_filter"`
	Locale     string        `mapstructure:"locale"`
	Language   string        `mapstructure:"language"`
	SafeMode   string        `mapstructure:"safe_mode"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type Planner struct {
	MaxKeywords int `mapstructure:"max_keywords"`
}

type Scraper struct {
	Concurrency    int           `mapstructure:"concurrency"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	Fingerprint    string        `mapstructure:"fingerprint"`
	UserAgents     []string      `mapstructure:"user_agents"`
	AcceptLanguage string        `mapstructure:"accept_language"`
	// RateLimit is requests per second per host; 0 disables limiting.
	RateLimit     float64           `mapstructure:"rate_limit"`
	Jitter        float64           `mapstructure:"jitter"`
	RespectRobots bool              `mapstructure:"respect_robots"`
	MaxBodyBytes  int64             `mapstructure:"max_body_bytes"`
	Selectors     scraper.Selectors `mapstructure:"selectors"`
}

type Context struct {
	// Budget is the maximum context length in characters.
	Budget int `mapstructure:"budget"`
}

type Storage struct {
	// Kind is one of none, sqlite, postgres, json.
	Kind string `mapstructure:"kind"`
	// DSN is a file path for sqlite and json, a connection string for postgres.
	DSN string `mapstructure:"dsn"`
}

type Server struct {
	Addr string `mapstructure:"addr"`
	// MetricsAddr moves /metrics to its own listener when set.
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv maps config keys to the bare variable names earlier deployments used.
var legacyEnv = map[string][]string{
	"llm.api_key":      {"gemini_api_key", "GEMINI_API_KEY"},
	"llm.model":        {"model_name", "MODEL_NAME"},
	"search.api_key":   {"google_search_api_key", "GOOGLE_SEARCH_API_KEY"},
	"search.engine_id": {"google_cse_id", "GOOGLE_CSE_ID"},
}

// SetDefaults registers every key so that environment overrides and
// Unmarshal see it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-1.5-flash")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.retry_backoff", time.Second)

	v.SetDefault("search.api_key", "")
	v.SetDefault("search.engine_id", "")
	v.SetDefault("search.endpoint", "")
	v.SetDefault("search.num_results", 10)
	v.SetDefault("search.site_filter", "24h.pchome.com.tw/prod")
	v.SetDefault("search.locale", "tw")
	v.SetDefault("search.language", "zh-TW")
	v.SetDefault("search.safe_mode", "active")
	v.SetDefault("search.timeout", 15*time.Second)

	v.SetDefault("planner.max_keywords", 5)

	v.SetDefault("scraper.concurrency", 4)
	v.SetDefault("scraper.fetch_timeout", 10*time.Second)
	v.SetDefault("scraper.fingerprint", "chrome")
	v.SetDefault("scraper.user_agents", []string{})
	v.SetDefault("scraper.accept_language", "")
	v.SetDefault("scraper.rate_limit", 0.0)
	v.SetDefault("scraper.jitter", 0.0)
	v.SetDefault("scraper.respect_robots", false)
	v.SetDefault("scraper.max_body_bytes", scraper.DefaultMaxBodyBytes)

	v.SetDefault("context.budget", 12000)

	v.SetDefault("storage.kind", "none")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_addr", "")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration into v and returns the decoded Config.
// file may be empty, in which case shopwise.yaml is looked up in . and
// ./configs and silently skipped when absent. A .env file in the working
// directory is loaded first without overriding variables already set.
func Load(v *viper.Viper, file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("shopwise")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings needed to run comparisons.
func (c *Config) Validate() error {
	var errs []error
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("llm.provider must be gemini or openai, got %q", c.LLM.Provider))
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key is required (gemini_api_key)"))
	}
	if c.Search.APIKey == "" {
		errs = append(errs, errors.New("search.api_key is required (google_search_api_key)"))
	}
	if c.Search.EngineID == "" {
		errs = append(errs, errors.New("search.engine_id is required (google_cse_id)"))
	}
	if c.Search.NumResults <= 0 {
		errs = append(errs, errors.New("search.num_results must be positive"))
	}
	if c.Scraper.Concurrency <= 0 {
		errs = append(errs, errors.New("scraper.concurrency must be positive"))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Validate checks only the storage section, for commands that never call
// upstream services.
func (s Storage) Validate() error {
	switch s.Kind {
	case "none", "":
		return nil
	case "sqlite", "postgres", "json":
		if s.DSN == "" {
			return fmt.Errorf("storage.dsn is required for %s", s.Kind)
		}
		return nil
	default:
		return fmt.Errorf("storage.kind must be none, sqlite, postgres or json, got %q", s.Kind)
	}
}

// NewLogger builds the process logger.
func NewLogger(l Log, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
