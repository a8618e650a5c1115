// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/okabe/favcrawl/internal/catalog"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Session SessionConfig `mapstructure:"session"`
	DB      DBConfig      `mapstructure:"db"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SiteConfig pins the target site host.
type SiteConfig struct {
	// HostSegment is the mutable label of the site host; the full base URL
	// is derived from it.
	HostSegment string `mapstructure:"host_segment"`
}

// FetchConfig selects and tunes the page transport.
type FetchConfig struct {
	Mode                    string `mapstructure:"mode"`
	UserAgent               string `mapstructure:"user_agent"`
	PageTimeoutSeconds      int    `mapstructure:"page_timeout_seconds"`
	ChallengeTimeoutSeconds int    `mapstructure:"challenge_timeout_seconds"`
	Channel                 string `mapstructure:"channel"`
	Headless                bool   `mapstructure:"headless"`
}

// CrawlConfig governs pacing and listing traversal.
type CrawlConfig struct {
	Scope        string   `mapstructure:"scope"`
	Tags         []string `mapstructure:"tags"`
	SortType     string   `mapstructure:"sort_type"`
	DelayMinMs   int      `mapstructure:"delay_min_ms"`
	DelayMaxMs   int      `mapstructure:"delay_max_ms"`
	MaxPages     int      `mapstructure:"max_pages"`
	Names        []string `mapstructure:"names"`
	CodeContains []string `mapstructure:"code_contains"`
	CodePrefixes []string `mapstructure:"code_prefixes"`
}

// SessionConfig locates the exported cookie snapshot.
type SessionConfig struct {
	CookiePath string `mapstructure:"cookie_path"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// PathsConfig collects the run-state file locations.
type PathsConfig struct {
	CheckpointFile string `mapstructure:"checkpoint_file"`
	HistoryFile    string `mapstructure:"history_file"`
	ProfileDir     string `mapstructure:"profile_dir"`
	DebugDir       string `mapstructure:"debug_dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FAVCRAWL")
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
	v.SetDefault("site.host_segment", "jdbase")
	v.SetDefault("fetch.mode", "browser")
	v.SetDefault("fetch.page_timeout_seconds", 30)
	v.SetDefault("fetch.challenge_timeout_seconds", 180)
	v.SetDefault("fetch.headless", false)
	v.SetDefault("crawl.scope", "actor")
	v.SetDefault("crawl.delay_min_ms", 800)
	v.SetDefault("crawl.delay_max_ms", 1600)
	v.SetDefault("crawl.max_pages", 200)
	v.SetDefault("session.cookie_path", "userdata/cookies.json")
	v.SetDefault("paths.checkpoint_file", "userdata/checkpoints.json")
	v.SetDefault("paths.history_file", "userdata/history.jsonl")
	v.SetDefault("paths.profile_dir", "userdata/browser_profile")
	v.SetDefault("paths.debug_dir", "debug")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if !catalog.ValidHostSegment(catalog.NormalizeHostSegment(c.Site.HostSegment)) {
		return fmt.Errorf("site.host_segment %q is not a valid host label", c.Site.HostSegment)
	}
	if c.Fetch.PageTimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.page_timeout_seconds must be > 0")
	}
	if c.Fetch.ChallengeTimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.challenge_timeout_seconds must be > 0")
	}
	if c.Crawl.DelayMinMs < 0 {
		return fmt.Errorf("crawl.delay_min_ms must be >= 0")
	}
	if c.Crawl.DelayMaxMs < c.Crawl.DelayMinMs {
		return fmt.Errorf("crawl.delay_max_ms must be >= crawl.delay_min_ms")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	return nil
}

// BaseURL derives the full site base URL from the host segment.
func (c Config) BaseURL() (string, error) {
	return catalog.BaseURL(catalog.NormalizeHostSegment(c.Site.HostSegment))
}

// PageTimeout converts the configured seconds to a duration.
func (c FetchConfig) PageTimeout() time.Duration {
	return time.Duration(c.PageTimeoutSeconds) * time.Second
}

// ChallengeTimeout converts the configured seconds to a duration.
func (c FetchConfig) ChallengeTimeout() time.Duration {
	return time.Duration(c.ChallengeTimeoutSeconds) * time.Second
}
