// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jkmedia/shortscout/internal/shorts"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	DB         DBConfig          `mapstructure:"db"`
	Extract    ExtractConfig     `mapstructure:"extract"`
	Acquire    AcquireConfig     `mapstructure:"acquire"`
	Publish    PublishConfig     `mapstructure:"publish"`
	Run        RunConfig         `mapstructure:"run"`
	Logging    LoggingConfig     `mapstructure:"logging"`
	Partitions []PartitionTarget `mapstructure:"partitions"`
}

// ServerConfig controls the diagnostics HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DBConfig controls access to the candidate catalog.
type DBConfig struct {
	DSN                 string `mapstructure:"dsn"`
	MaxConns            int    `mapstructure:"max_conns"`
	MinConns            int    `mapstructure:"min_conns"`
	ConnLifetimeMinutes int    `mapstructure:"conn_lifetime_minutes"`
}

// ExtractConfig governs search page fetching and rendering.
type ExtractConfig struct {
	UserAgent           string  `mapstructure:"user_agent"`
	AcceptLanguage      string  `mapstructure:"accept_language"`
	NavTimeoutSeconds   int     `mapstructure:"nav_timeout_seconds"`
	ScrollPauseMs       int     `mapstructure:"scroll_pause_ms"`
	MaxScrolls          int     `mapstructure:"max_scrolls"`
	NavQPS              float64 `mapstructure:"nav_qps"`
	ProbeTimeoutSeconds int     `mapstructure:"probe_timeout_seconds"`
	MinHTMLBytes        int     `mapstructure:"min_html_bytes"`
}

// AcquireConfig governs media download and thumbnail handling.
type AcquireConfig struct {
	WorkDir                 string `mapstructure:"work_dir"`
	Binary                  string `mapstructure:"binary"`
	Format                  string `mapstructure:"format"`
	MaxAttempts             int    `mapstructure:"max_attempts"`
	BackoffCapSeconds       int    `mapstructure:"backoff_cap_seconds"`
	CookieFile              string `mapstructure:"cookie_file"`
	NetrcFile               string `mapstructure:"netrc_file"`
	BrowserProfileDir       string `mapstructure:"browser_profile_dir"`
	UserAgent               string `mapstructure:"user_agent"`
	ThumbnailTimeoutSeconds int    `mapstructure:"thumbnail_timeout_seconds"`
}

// PublishConfig addresses the downstream distribution endpoint.
type PublishConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	ClientID       string `mapstructure:"client_id"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RunConfig bounds a whole pipeline run.
type RunConfig struct {
	TimeoutMinutes int `mapstructure:"timeout_minutes"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// PartitionTarget binds one search URL to its language/category partition.
type PartitionTarget struct {
	Language int    `mapstructure:"language"`
	Category int    `mapstructure:"category"`
	URL      string `mapstructure:"url"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHORTSCOUT")
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
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("extract.user_agent", "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0")
	v.SetDefault("extract.accept_language", "en-US,en;q=0.9")
	v.SetDefault("extract.nav_timeout_seconds", 45)
	v.SetDefault("extract.scroll_pause_ms", 750)
	v.SetDefault("extract.max_scrolls", 6)
	v.SetDefault("extract.nav_qps", 0.5)
	v.SetDefault("extract.probe_timeout_seconds", 15)
	v.SetDefault("extract.min_html_bytes", 2048)
	v.SetDefault("acquire.work_dir", "downloads")
	v.SetDefault("acquire.binary", "yt-dlp")
	v.SetDefault("acquire.format", "best[ext=mp4]/best")
	v.SetDefault("acquire.max_attempts", 3)
	v.SetDefault("acquire.backoff_cap_seconds", 30)
	v.SetDefault("acquire.thumbnail_timeout_seconds", 20)
	v.SetDefault("publish.client_id", "3")
	v.SetDefault("publish.timeout_seconds", 300)
	v.SetDefault("run.timeout_minutes", 45)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set")
	}
	if c.Publish.Endpoint == "" {
		return fmt.Errorf("publish.endpoint must be set")
	}
	if c.Acquire.MaxAttempts <= 0 {
		return fmt.Errorf("acquire.max_attempts must be > 0")
	}
	if len(c.Partitions) == 0 {
		return fmt.Errorf("at least one partition target must be configured")
	}
	for i, p := range c.Partitions {
		if p.URL == "" {
			return fmt.Errorf("partitions[%d].url must be set", i)
		}
	}
	return nil
}

// Targets converts the configured partitions into search targets.
func (c Config) Targets() []shorts.SearchTarget {
	out := make([]shorts.SearchTarget, 0, len(c.Partitions))
	for _, p := range c.Partitions {
		out = append(out, shorts.SearchTarget{
			URL:       p.URL,
			Partition: shorts.Partition{Language: p.Language, Category: p.Category},
		})
	}
	return out
}

// RunTimeout converts the run budget into a duration.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Run.TimeoutMinutes) * time.Minute
}
