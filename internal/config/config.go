// Package config handles configuration loading for MarketDesk.
// It supports YAML config files, a local .env file, and environment
// variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MARKETDESK_API_PORT.
const EnvPrefix = "MARKETDESK"

// Config represents the complete application configuration.
type Config struct {
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
	Market     MarketConfig     `mapstructure:"market"     yaml:"market"`
	Options    OptionsConfig    `mapstructure:"options"    yaml:"options"`
	Simulation SimulationConfig `mapstructure:"simulation" yaml:"simulation"`
	News       NewsConfig       `mapstructure:"news"       yaml:"news"`
	LLM        LLMConfig        `mapstructure:"llm"        yaml:"llm"`
	Portfolio  PortfolioConfig  `mapstructure:"portfolio"  yaml:"portfolio"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host              string   `mapstructure:"host"                yaml:"host"`
	Port              int      `mapstructure:"port"                yaml:"port"`
	CORSOrigins       []string `mapstructure:"cors_origins"        yaml:"cors_origins"`
	RequestTimeoutSec int      `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
	QuoteStreamSec    int      `mapstructure:"quote_stream_sec"    yaml:"quote_stream_sec"` // WebSocket quote push interval
}

// MarketConfig controls the synthetic market.
type MarketConfig struct {
	Seed        int64    `mapstructure:"seed"          yaml:"seed"`
	Watchlist   []string `mapstructure:"watchlist"     yaml:"watchlist"`
	QuoteTTLSec int      `mapstructure:"quote_ttl_sec" yaml:"quote_ttl_sec"`
	ExpiryCount int      `mapstructure:"expiry_count"  yaml:"expiry_count"` // monthly expiries per chain
	StrikeCount int      `mapstructure:"strike_count"  yaml:"strike_count"` // strikes either side of ATM
	HistoryDays int      `mapstructure:"history_days"  yaml:"history_days"`
}

// OptionsConfig holds pricing defaults.
type OptionsConfig struct {
	RiskFreeRate  float64 `mapstructure:"risk_free_rate"  yaml:"risk_free_rate"`
	DefaultVol    float64 `mapstructure:"default_vol"     yaml:"default_vol"`
	SweepRangePct float64 `mapstructure:"sweep_range_pct" yaml:"sweep_range_pct"`
	StrategyWidth float64 `mapstructure:"strategy_width"  yaml:"strategy_width"`
}

// SimulationConfig holds Monte Carlo settings.
type SimulationConfig struct {
	Iterations int `mapstructure:"iterations" yaml:"iterations"`
	Workers    int `mapstructure:"workers"    yaml:"workers"` // 0 = GOMAXPROCS
}

// NewsConfig holds RSS settings.
type NewsConfig struct {
	Feeds            []string `mapstructure:"feeds"              yaml:"feeds"`
	CacheTTLSec      int      `mapstructure:"cache_ttl_sec"      yaml:"cache_ttl_sec"`
	RequestsPerMin   int      `mapstructure:"requests_per_min"   yaml:"requests_per_min"`
	TimeoutSec       int      `mapstructure:"timeout_sec"        yaml:"timeout_sec"`
	FallbackToSample bool     `mapstructure:"fallback_to_sample" yaml:"fallback_to_sample"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Primary     string   `mapstructure:"primary"      yaml:"primary"` // "openai", "ollama", "template"
	Fallbacks   []string `mapstructure:"fallbacks"    yaml:"fallbacks"`
	OpenAIKey   string   `mapstructure:"openai_key"   yaml:"openai_key"`
	OpenAIURL   string   `mapstructure:"openai_url"   yaml:"openai_url"`
	OllamaURL   string   `mapstructure:"ollama_url"   yaml:"ollama_url"`
	Model       string   `mapstructure:"model"        yaml:"model"`
	OllamaModel string   `mapstructure:"ollama_model" yaml:"ollama_model"`
	Temperature float64  `mapstructure:"temperature"  yaml:"temperature"`
	MaxTokens   int      `mapstructure:"max_tokens"   yaml:"max_tokens"`
	MaxRetries  int      `mapstructure:"max_retries"  yaml:"max_retries"`
	TimeoutSec  int      `mapstructure:"timeout_sec"  yaml:"timeout_sec"`
}

// PortfolioConfig holds demo portfolio settings.
type PortfolioConfig struct {
	SeedDemo     bool    `mapstructure:"seed_demo"      yaml:"seed_demo"`
	RiskFreeRate float64 `mapstructure:"risk_free_rate" yaml:"risk_free_rate"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"        yaml:"level"`  // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"       yaml:"format"` // "text" or "json"
	File       string `mapstructure:"file"         yaml:"file"`   // rotating log file; empty disables
	MaxSizeMB  int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"  yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.marketdesk/config.yaml (home directory)
//  3. /etc/marketdesk/config.yaml (system)
//
// A .env file in the working directory is loaded first. Environment
// variables override config file values.
// Format: MARKETDESK_<SECTION>_<KEY>, e.g., MARKETDESK_LLM_OPENAI_KEY
func Load() (*Config, error) {
	loadDotEnv(".env")

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".marketdesk"))
	v.AddConfigPath("/etc/marketdesk")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"))

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

// Default returns the built-in defaults, ignoring files and environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if c.Options.DefaultVol <= 0 {
		errs = append(errs, fmt.Errorf("options.default_vol must be positive"))
	}
	if c.Options.SweepRangePct <= 0 || c.Options.SweepRangePct > 1 {
		errs = append(errs, fmt.Errorf("options.sweep_range_pct must be in (0, 1]"))
	}
	if c.Simulation.Iterations < 0 {
		errs = append(errs, fmt.Errorf("simulation.iterations must not be negative"))
	}
	switch c.LLM.Primary {
	case "openai", "ollama", "template":
	default:
		errs = append(errs, fmt.Errorf("llm.primary %q unknown", c.LLM.Primary))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.request_timeout_sec", 30)
	v.SetDefault("api.quote_stream_sec", 5)

	// Synthetic market
	v.SetDefault("market.seed", 42)
	v.SetDefault("market.watchlist", []string{"AAPL", "MSFT", "NVDA", "AMZN", "SPY"})
	v.SetDefault("market.quote_ttl_sec", 15)
	v.SetDefault("market.expiry_count", 3)
	v.SetDefault("market.strike_count", 8)
	v.SetDefault("market.history_days", 365)

	// Options
	v.SetDefault("options.risk_free_rate", 0.05)
	v.SetDefault("options.default_vol", 0.25)
	v.SetDefault("options.sweep_range_pct", 0.5)
	v.SetDefault("options.strategy_width", 0.05)

	// Simulation
	v.SetDefault("simulation.iterations", 10000)
	v.SetDefault("simulation.workers", 0)

	// News
	v.SetDefault("news.feeds", []string{
		"https://feeds.content.dowjones.io/public/rss/mw_topstories",
		"https://www.cnbc.com/id/100003114/device/rss/rss.html",
		"https://finance.yahoo.com/news/rssindex",
	})
	v.SetDefault("news.cache_ttl_sec", 300)
	v.SetDefault("news.requests_per_min", 30)
	v.SetDefault("news.timeout_sec", 10)
	v.SetDefault("news.fallback_to_sample", false)

	// LLM
	v.SetDefault("llm.primary", "template")
	v.SetDefault("llm.fallbacks", []string{})
	v.SetDefault("llm.openai_url", "")
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.ollama_model", "llama3.1")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.timeout_sec", 60)

	// Portfolio
	v.SetDefault("portfolio.seed_demo", true)
	v.SetDefault("portfolio.risk_free_rate", 0.04)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("MARKETDESK_LLM_OPENAI_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.LLM.OpenAIKey == "" {
		cfg.LLM.OpenAIKey = key
	}
}

// loadDotEnv loads KEY=VALUE pairs from path without overriding variables
// already set in the environment. A missing file is not an error.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
	}
}

// Dump renders cfg as YAML with secrets masked.
func Dump(cfg *Config) ([]byte, error) {
	redacted := *cfg
	if redacted.LLM.OpenAIKey != "" {
		redacted.LLM.OpenAIKey = maskKey(redacted.LLM.OpenAIKey)
	}
	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
