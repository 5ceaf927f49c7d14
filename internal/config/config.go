// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/cardimg-scraper/internal/scrape"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig                   `mapstructure:"server"`
	Auth     AuthConfig                     `mapstructure:"auth"`
	Logging  LoggingConfig                  `mapstructure:"logging"`
	DB       DBConfig                       `mapstructure:"db"`
	Storage  StorageConfig                  `mapstructure:"storage"`
	Queue    QueueConfig                    `mapstructure:"queue"`
	Scraper  ScraperConfig                  `mapstructure:"scraper"`
	Headless HeadlessConfig                 `mapstructure:"headless"`
	Batch    BatchConfig                    `mapstructure:"batch"`
	Domains  map[string]scrape.SelectorRule `mapstructure:"domains"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DBConfig controls access to the progress database.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// StorageConfig selects and parameterizes the content store.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// QueueConfig selects and parameterizes the work queue.
type QueueConfig struct {
	Provider       string `mapstructure:"provider"`
	ProjectID      string `mapstructure:"project_id"`
	TopicID        string `mapstructure:"topic_id"`
	SubscriptionID string `mapstructure:"subscription_id"`
	Depth          int    `mapstructure:"depth"`
	MaxDelivery    int    `mapstructure:"max_delivery"`
}

// ScraperConfig governs worker behavior.
type ScraperConfig struct {
	Version        string `mapstructure:"version"`
	UserAgent      string `mapstructure:"user_agent"`
	DelayMs        int    `mapstructure:"delay_ms"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Concurrency    int    `mapstructure:"concurrency"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
}

// HeadlessConfig configures the headless fallback fetcher.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// BatchConfig controls batch lifecycle knobs.
type BatchConfig struct {
	TTLDays int `mapstructure:"ttl_days"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	// Domain names are map keys; the default "." delimiter would split
	// them into nested keys.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetEnvPrefix("CARDIMG")
	v.SetEnvKeyReplacer(strings.NewReplacer("::", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server::port", 8080)
	v.SetDefault("logging::development", true)
	v.SetDefault("storage::provider", "memory")
	v.SetDefault("queue::provider", "memory")
	v.SetDefault("queue::depth", 256)
	v.SetDefault("queue::max_delivery", 10)
	v.SetDefault("scraper::version", "dev")
	v.SetDefault("scraper::user_agent", "cardimg-scraper/1.0")
	v.SetDefault("scraper::delay_ms", 100)
	v.SetDefault("scraper::timeout_seconds", 15)
	v.SetDefault("scraper::concurrency", 4)
	v.SetDefault("scraper::respect_robots", true)
	v.SetDefault("headless::enabled", false)
	v.SetDefault("headless::max_parallel", 1)
	v.SetDefault("headless::nav_timeout_seconds", 25)
	v.SetDefault("batch::ttl_days", 30)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if c.Batch.TTLDays <= 0 {
		return fmt.Errorf("batch.ttl_days must be > 0")
	}
	if len(c.Domains) == 0 {
		return fmt.Errorf("at least one approved domain must be configured")
	}
	switch c.Storage.Provider {
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when provider is gcs")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set when provider is local")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	switch c.Queue.Provider {
	case "pubsub":
		if c.Queue.ProjectID == "" || c.Queue.TopicID == "" || c.Queue.SubscriptionID == "" {
			return fmt.Errorf("queue.project_id, topic_id and subscription_id must be set when provider is pubsub")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown queue provider: %s", c.Queue.Provider)
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// ApprovedDomains returns the keys of the domain-selector table; the
// values are only relevant to the scrape worker.
func (c Config) ApprovedDomains() []string {
	domains := make([]string, 0, len(c.Domains))
	for d := range c.Domains {
		domains = append(domains, d)
	}
	return domains
}

// Delay converts the configured politeness delay into a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Scraper.DelayMs) * time.Millisecond
}

// TTL converts the configured batch lifetime into a duration.
func (c Config) TTL() time.Duration {
	return time.Duration(c.Batch.TTLDays) * 24 * time.Hour
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}
