// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/storefront-crawler/internal/crawler"
	"github.com/JakeFAU/storefront-crawler/internal/extract"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Extract ExtractConfig `mapstructure:"extract"`
	Storage StorageConfig `mapstructure:"storage"`
	Publish PublishConfig `mapstructure:"publish"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`

	baseDomainDerived bool
}

// CrawlerConfig governs the crawl loop and fetcher.
type CrawlerConfig struct {
	StartURL               string   `mapstructure:"start_url"`
	BaseDomain             string   `mapstructure:"base_domain"`
	RequestTimeoutSeconds  int      `mapstructure:"request_timeout_seconds"`
	InterFetchDelaySeconds float64  `mapstructure:"inter_fetch_delay_seconds"`
	BlockedExtensions      []string `mapstructure:"blocked_extensions"`
	Concurrency            int      `mapstructure:"concurrency"`
	UserAgent              string   `mapstructure:"user_agent"`
	MaxPages               int      `mapstructure:"max_pages"`
	AbortOnStoreError      bool     `mapstructure:"abort_on_store_error"`
}

// ExtractConfig overrides the page selectors. Empty values keep the defaults.
type ExtractConfig struct {
	Container   string   `mapstructure:"container"`
	Name        string   `mapstructure:"name"`
	Price       string   `mapstructure:"price"`
	Description string   `mapstructure:"description"`
	Image       string   `mapstructure:"image"`
	ImageAttrs  []string `mapstructure:"image_attrs"`
	CardLink    string   `mapstructure:"card_link"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend    string `mapstructure:"backend"`
	DSN        string `mapstructure:"dsn"`
	Path       string `mapstructure:"path"`
	OnConflict string `mapstructure:"on_conflict"`
	MaxConns   int32  `mapstructure:"max_conns"`
}

// PublishConfig controls observation events. An empty backend disables publishing.
type PublishConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the optional status server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.start_url", "")
	v.SetDefault("crawler.base_domain", "")
	v.SetDefault("crawler.request_timeout_seconds", 10)
	v.SetDefault("crawler.inter_fetch_delay_seconds", 0)
	v.SetDefault("crawler.blocked_extensions", crawler.DefaultBlockedExtensions)
	v.SetDefault("crawler.concurrency", 1)
	v.SetDefault("crawler.user_agent", "storefront-crawler/0.1")
	v.SetDefault("crawler.max_pages", 0)
	v.SetDefault("crawler.abort_on_store_error", true)
	v.SetDefault("extract.container", extract.DefaultSelectors.Container)
	v.SetDefault("extract.name", extract.DefaultSelectors.Name)
	v.SetDefault("extract.price", extract.DefaultSelectors.Price)
	v.SetDefault("extract.description", extract.DefaultSelectors.Description)
	v.SetDefault("extract.image", extract.DefaultSelectors.Image)
	v.SetDefault("extract.image_attrs", extract.DefaultSelectors.ImageAttrs)
	v.SetDefault("extract.card_link", extract.DefaultSelectors.CardLink)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.on_conflict", string(crawler.MetadataKeepFirst))
	v.SetDefault("storage.max_conns", 4)
	v.SetDefault("publish.backend", "")
	v.SetDefault("publish.project_id", "")
	v.SetDefault("publish.topic", "price-observations")
	v.SetDefault("server.addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// applyDerived fills values whose defaults depend on other keys.
func (c *Config) applyDerived() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Publish.Backend = strings.ToLower(strings.TrimSpace(c.Publish.Backend))
	if c.Storage.Path == "" {
		switch c.Storage.Backend {
		case "sqlite", "":
			c.Storage.Path = "elclon.db"
		case "csv":
			c.Storage.Path = "products.csv"
		}
	}
	if c.Crawler.BaseDomain == "" && c.Crawler.StartURL != "" {
		if domain, err := crawler.BaseDomain(c.Crawler.StartURL); err == nil {
			c.Crawler.BaseDomain = domain
			c.baseDomainDerived = true
		}
	}
}

// Validate enforces required values and reasonable limits. A start URL is only
// required to crawl; see RequireStartURL.
func (c Config) Validate() error {
	if c.Crawler.StartURL != "" {
		if _, err := crawler.NormalizeURL(c.Crawler.StartURL); err != nil {
			return fmt.Errorf("crawler.start_url: %w", err)
		}
	}
	if c.Crawler.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.request_timeout_seconds must be > 0")
	}
	if c.Crawler.InterFetchDelaySeconds < 0 {
		return fmt.Errorf("crawler.inter_fetch_delay_seconds must be >= 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must be >= 0")
	}
	if _, err := c.MetadataPolicy(); err != nil {
		return fmt.Errorf("storage.on_conflict: %w", err)
	}
	switch c.Storage.Backend {
	case "sqlite", "csv":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path must be set for the %s backend", c.Storage.Backend)
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn must be set for the postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	switch c.Publish.Backend {
	case "", "none":
	case "memory":
		if c.Publish.Topic == "" {
			return fmt.Errorf("publish.topic must be set")
		}
	case "pubsub":
		if c.Publish.ProjectID == "" {
			return fmt.Errorf("publish.project_id must be set for the pubsub backend")
		}
		if c.Publish.Topic == "" {
			return fmt.Errorf("publish.topic must be set")
		}
	default:
		return fmt.Errorf("publish.backend %q is not supported", c.Publish.Backend)
	}
	return nil
}

// PublishEnabled reports whether observation events should be published.
func (c Config) PublishEnabled() bool {
	return c.Publish.Backend != "" && c.Publish.Backend != "none"
}

// RequireStartURL reports an error when no crawl root is configured.
func (c Config) RequireStartURL() error {
	if c.Crawler.StartURL == "" {
		return fmt.Errorf("crawler.start_url must be set")
	}
	if c.Crawler.BaseDomain == "" {
		return fmt.Errorf("crawler.base_domain could not be derived from %q", c.Crawler.StartURL)
	}
	return nil
}

// SetStartURL overrides the crawl root (e.g. from a CLI flag) and rederives the base domain.
func (c *Config) SetStartURL(raw string) error {
	c.Crawler.StartURL = raw
	if c.baseDomainDerived {
		c.Crawler.BaseDomain = ""
		c.baseDomainDerived = false
	}
	c.applyDerived()
	return c.Validate()
}

// RequestTimeout converts the request timeout to a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.RequestTimeoutSeconds) * time.Second
}

// InterFetchDelay converts the inter-fetch delay to a duration.
func (c Config) InterFetchDelay() time.Duration {
	return time.Duration(c.Crawler.InterFetchDelaySeconds * float64(time.Second))
}

// MetadataPolicy parses storage.on_conflict.
func (c Config) MetadataPolicy() (crawler.MetadataPolicy, error) {
	return crawler.ParseMetadataPolicy(c.Storage.OnConflict)
}

// Selectors converts the extract section into parser selectors.
func (c Config) Selectors() extract.Selectors {
	return extract.Selectors{
		Container:   c.Extract.Container,
		Name:        c.Extract.Name,
		Price:       c.Extract.Price,
		Description: c.Extract.Description,
		Image:       c.Extract.Image,
		ImageAttrs:  c.Extract.ImageAttrs,
		CardLink:    c.Extract.CardLink,
	}
}

// EngineConfig converts the crawler section into engine settings.
func (c Config) EngineConfig() crawler.Config {
	return crawler.Config{
		StartURL:          c.Crawler.StartURL,
		RequestTimeout:    c.RequestTimeout(),
		Concurrency:       c.Crawler.Concurrency,
		MaxPages:          c.Crawler.MaxPages,
		AbortOnStoreError: c.Crawler.AbortOnStoreError,
	}
}
