// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Geo      GeoConfig      `mapstructure:"geo"`
	Content  ContentConfig  `mapstructure:"content"`
	Cache    CacheConfig    `mapstructure:"cache"`
	DB       DBConfig       `mapstructure:"db"`
	Input    InputConfig    `mapstructure:"input"`
	Output   OutputConfig   `mapstructure:"output"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// BrowserConfig configures the headless rendering subsystem.
type BrowserConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	MaxSessions    int    `mapstructure:"max_sessions"`
	NavTimeoutSec  int    `mapstructure:"nav_timeout_seconds"`
	RoomTimeoutSec int    `mapstructure:"room_timeout_seconds"`
}

// PipelineConfig governs scheduling across venues.
type PipelineConfig struct {
	Concurrency      int `mapstructure:"concurrency"`
	VenueDeadlineSec int `mapstructure:"venue_deadline_seconds"`
}

// GeoConfig configures the place-details lookup client.
type GeoConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Language       string  `mapstructure:"language"`
	RPS            float64 `mapstructure:"rps"`
	MaxRetries     int     `mapstructure:"max_retries"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// ContentConfig configures the venue-website crawl client.
type ContentConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	RPS            float64 `mapstructure:"rps"`
	MaxRetries     int     `mapstructure:"max_retries"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// CacheConfig selects the enrichment cache backend.
type CacheConfig struct {
	Backend  string `mapstructure:"backend"` // "memory" or "redis"
	RedisURL string `mapstructure:"redis_url"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// DBConfig controls result persistence. An empty DSN disables it.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// InputConfig sets how venue batch files are parsed.
type InputConfig struct {
	Delimiter string `mapstructure:"delimiter"`
}

// OutputConfig sets where the consolidated CSV lands.
type OutputConfig struct {
	Path      string `mapstructure:"path"`
	Delimiter string `mapstructure:"delimiter"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VENUEMINER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("browser.user_agent", "venueminer/1.0")
	v.SetDefault("browser.max_sessions", 4)
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("browser.room_timeout_seconds", 10)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.venue_deadline_seconds", 180)
	v.SetDefault("geo.base_url", "https://places.googleapis.com")
	v.SetDefault("geo.language", "fr")
	v.SetDefault("geo.rps", 5.0)
	v.SetDefault("geo.max_retries", 3)
	v.SetDefault("geo.timeout_seconds", 20)
	v.SetDefault("content.user_agent", "venueminer/1.0")
	v.SetDefault("content.rps", 2.0)
	v.SetDefault("content.max_retries", 3)
	v.SetDefault("content.timeout_seconds", 30)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl_hours", 24*7)
	v.SetDefault("input.delimiter", ",")
	v.SetDefault("output.path", "rooms.csv")
	v.SetDefault("output.delimiter", ",")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0")
	}
	if c.Browser.MaxSessions <= 0 {
		return fmt.Errorf("browser.max_sessions must be > 0")
	}
	if c.Browser.NavTimeoutSec <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url must be set when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if len(c.Input.Delimiter) != 1 {
		return fmt.Errorf("input.delimiter must be a single character")
	}
	if len(c.Output.Delimiter) != 1 {
		return fmt.Errorf("output.delimiter must be a single character")
	}
	return nil
}

// VenueDeadline converts the per-venue budget into a duration. Zero means
// no bound.
func (c Config) VenueDeadline() time.Duration {
	return time.Duration(c.Pipeline.VenueDeadlineSec) * time.Second
}

// NavTimeout returns the page-load budget as a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}

// RoomTimeout returns the per-room disclosure budget as a duration.
func (c Config) RoomTimeout() time.Duration {
	return time.Duration(c.Browser.RoomTimeoutSec) * time.Second
}

// CacheTTL returns the enrichment cache lifetime as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// InputDelimiter returns the batch field separator as a rune. Validate
// guarantees a single character.
func (c Config) InputDelimiter() rune {
	return rune(c.Input.Delimiter[0])
}

// OutputDelimiter returns the consolidated CSV field separator as a rune.
// Validate guarantees a single character.
func (c Config) OutputDelimiter() rune {
	return rune(c.Output.Delimiter[0])
}
