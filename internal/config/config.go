// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pressfeed/harvester/internal/harvest"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig           `mapstructure:"logging"`
	Crawler    CrawlerConfig           `mapstructure:"crawler"`
	Store      StoreConfig             `mapstructure:"store"`
	Archive    ArchiveConfig           `mapstructure:"archive"`
	Publisher  PublisherConfig         `mapstructure:"publisher"`
	Progress   ProgressConfig          `mapstructure:"progress"`
	Supervisor SupervisorConfig        `mapstructure:"supervisor"`
	Server     ServerConfig            `mapstructure:"server"`
	Sources    []harvest.SourceProfile `mapstructure:"sources"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// ScrollConfig bounds the full-page realization loop.
type ScrollConfig struct {
	SettleSeconds int `mapstructure:"settle_seconds"`
	MaxRounds     int `mapstructure:"max_rounds"`
	MaxSeconds    int `mapstructure:"max_seconds"`
}

// CrawlerConfig governs the browser session and crawl pipeline behavior.
type CrawlerConfig struct {
	Headless              bool         `mapstructure:"headless"`
	UserAgent             string       `mapstructure:"user_agent"`
	SettleSeconds         int          `mapstructure:"settle_seconds"`
	NavTimeoutSeconds     int          `mapstructure:"nav_timeout_seconds"`
	LocatorTimeoutSeconds int          `mapstructure:"locator_timeout_seconds"`
	DismissTimeoutSeconds int          `mapstructure:"dismiss_timeout_seconds"`
	Scroll                ScrollConfig `mapstructure:"scroll"`
	Continuous            bool         `mapstructure:"continuous"`
	PassIntervalSeconds   int          `mapstructure:"pass_interval_seconds"`
}

// StoreConfig selects and configures the article store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	Shape   string `mapstructure:"shape"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
}

// ArchiveConfig controls raw HTML snapshot archiving.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// PublisherConfig controls article-stored notifications. The memory backend
// records publishes in process, for dry runs.
type PublisherConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ProgressConfig locates the progress-signal sink consumed by the supervisor.
type ProgressConfig struct {
	Dir    string `mapstructure:"dir"`
	File   string `mapstructure:"file"`
	Backup string `mapstructure:"backup"`
}

// SupervisorConfig tunes the liveness supervisor.
type SupervisorConfig struct {
	PollSeconds      int    `mapstructure:"poll_seconds"`
	StalenessSeconds int    `mapstructure:"staleness_seconds"`
	GraceSeconds     int    `mapstructure:"grace_seconds"`
	Log              string `mapstructure:"log"`
}

// ServerConfig controls the optional debug HTTP listener.
type ServerConfig struct {
	DebugAddr string `mapstructure:"debug_addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("crawler.headless", true)
	v.SetDefault("crawler.user_agent", "pressfeed-harvester/0.1")
	v.SetDefault("crawler.settle_seconds", 5)
	v.SetDefault("crawler.nav_timeout_seconds", 10)
	v.SetDefault("crawler.locator_timeout_seconds", 5)
	v.SetDefault("crawler.dismiss_timeout_seconds", 5)
	v.SetDefault("crawler.scroll.settle_seconds", 3)
	v.SetDefault("crawler.scroll.max_rounds", 20)
	v.SetDefault("crawler.scroll.max_seconds", 90)
	v.SetDefault("crawler.continuous", false)
	v.SetDefault("crawler.pass_interval_seconds", 300)
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.path", "scraped_articles.json")
	v.SetDefault("store.shape", "feed")
	v.SetDefault("store.table", "articles")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.backend", "local")
	v.SetDefault("archive.dir", "snapshots")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("publisher.enabled", false)
	v.SetDefault("publisher.backend", "pubsub")
	v.SetDefault("progress.dir", "logs")
	v.SetDefault("progress.file", "scraper.log")
	v.SetDefault("progress.backup", "previous_scrape.log")
	v.SetDefault("supervisor.poll_seconds", 10)
	v.SetDefault("supervisor.staleness_seconds", 300)
	v.SetDefault("supervisor.grace_seconds", 10)
	v.SetDefault("supervisor.log", "logs/watchdog.log")
	v.SetDefault("server.debug_addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.SettleSeconds < 0 {
		return fmt.Errorf("crawler.settle_seconds must be >= 0")
	}
	if c.Crawler.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.nav_timeout_seconds must be > 0")
	}
	if c.Crawler.LocatorTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.locator_timeout_seconds must be > 0")
	}
	if c.Crawler.Scroll.MaxRounds <= 0 {
		return fmt.Errorf("crawler.scroll.max_rounds must be > 0")
	}
	if c.Crawler.Scroll.MaxSeconds <= 0 {
		return fmt.Errorf("crawler.scroll.max_seconds must be > 0")
	}
	switch c.Store.Backend {
	case "file":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the file backend")
		}
		if c.Store.Shape != "feed" && c.Store.Shape != "keyed" {
			return fmt.Errorf("store.shape must be feed or keyed, got %q", c.Store.Shape)
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if c.Archive.Enabled {
		switch c.Archive.Backend {
		case "local":
			if c.Archive.Dir == "" {
				return fmt.Errorf("archive.dir is required for the local backend")
			}
		case "gcs":
			if c.Archive.Bucket == "" {
				return fmt.Errorf("archive.bucket is required for the gcs backend")
			}
		default:
			return fmt.Errorf("unknown archive.backend %q", c.Archive.Backend)
		}
	}
	if c.Publisher.Enabled {
		if c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.topic is required when publishing is enabled")
		}
		switch c.Publisher.Backend {
		case "pubsub":
			if c.Publisher.ProjectID == "" {
				return fmt.Errorf("publisher.project_id is required for the pubsub backend")
			}
		case "memory":
		default:
			return fmt.Errorf("unknown publisher.backend %q", c.Publisher.Backend)
		}
	}
	if c.Supervisor.PollSeconds <= 0 {
		return fmt.Errorf("supervisor.poll_seconds must be > 0")
	}
	if c.Supervisor.StalenessSeconds <= 0 {
		return fmt.Errorf("supervisor.staleness_seconds must be > 0")
	}
	for i, src := range c.Sources {
		if err := src.Validate(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
	}
	return nil
}

// ProgressPath returns the full path of the progress-signal file.
func (c Config) ProgressPath() string {
	return filepath.Join(c.Progress.Dir, c.Progress.File)
}

// ProgressBackupPath returns the rotation target for a prior signal file.
func (c Config) ProgressBackupPath() string {
	return filepath.Join(c.Progress.Dir, c.Progress.Backup)
}

// SettleDelay converts the listing settle knob into a duration.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Crawler.SettleSeconds) * time.Second
}

// NavTimeout bounds navigation and document readiness waits.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Crawler.NavTimeoutSeconds) * time.Second
}

// LocatorTimeout bounds individual extraction locator waits.
func (c Config) LocatorTimeout() time.Duration {
	return time.Duration(c.Crawler.LocatorTimeoutSeconds) * time.Second
}

// DismissTimeout bounds each interstitial clickability wait.
func (c Config) DismissTimeout() time.Duration {
	return time.Duration(c.Crawler.DismissTimeoutSeconds) * time.Second
}

// ScrollSettle is the per-round settle delay during listing expansion.
func (c Config) ScrollSettle() time.Duration {
	return time.Duration(c.Crawler.Scroll.SettleSeconds) * time.Second
}

// ScrollMaxElapsed is the wall-clock ceiling for listing expansion.
func (c Config) ScrollMaxElapsed() time.Duration {
	return time.Duration(c.Crawler.Scroll.MaxSeconds) * time.Second
}

// PassInterval is the delay between passes in continuous mode.
func (c Config) PassInterval() time.Duration {
	return time.Duration(c.Crawler.PassIntervalSeconds) * time.Second
}

// PollInterval is the supervisor tick period.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Supervisor.PollSeconds) * time.Second
}

// StalenessThreshold is the maximum tolerated progress-signal age.
func (c Config) StalenessThreshold() time.Duration {
	return time.Duration(c.Supervisor.StalenessSeconds) * time.Second
}

// TerminateGrace is how long the supervisor waits after a graceful signal.
func (c Config) TerminateGrace() time.Duration {
	return time.Duration(c.Supervisor.GraceSeconds) * time.Second
}
