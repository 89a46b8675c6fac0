// Package config loads the channel definitions served by feed-rss.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/richardwooding/feed-rss/model"
	"github.com/richardwooding/feed-rss/rss"
)

// Config is the top-level configuration file.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Source   SourceConfig    `yaml:"source"`
	Channels []ChannelConfig `yaml:"channels"`
}

// ServerConfig configures the HTTP host.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// SourceConfig configures how content is loaded.
type SourceConfig struct {
	// Database is an optional SQLite file holding a nodes table. Channels
	// without their own source read from it.
	Database          string        `yaml:"database"`
	Timeout           time.Duration `yaml:"timeout"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	FailureThreshold  uint32        `yaml:"failure_threshold"`
	AllowPrivateIPs   bool          `yaml:"allow_private_ips"`
	UserAgent         string        `yaml:"user_agent"`
}

// ChannelConfig describes one published feed.
type ChannelConfig struct {
	Name        string `yaml:"name"`
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Generator   string `yaml:"generator"`
	Description string `yaml:"description"`
	Language    string `yaml:"language"`
	// Source is a JSON file or HTTP(S) URL. Empty means the shared database.
	Source string `yaml:"source"`
	// BaseURL resolves relative node URLs.
	BaseURL string `yaml:"base_url"`
	// Parent restricts the channel to the children of one node.
	Parent *int64 `yaml:"parent"`
	// Enrich copies description and content from nodes into items.
	Enrich bool   `yaml:"enrich"`
	Format string `yaml:"format"`
}

var (
	channelName  = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// Load reads a YAML configuration file. ${VAR} references are expanded from
// the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.NewFeedErrorWithCause(model.ErrorTypeConfiguration, "failed to read config file", err).
			WithURL(path).
			WithOperation("load_config").
			WithComponent("config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, defaults and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, model.NewFeedErrorWithCause(model.ErrorTypeConfiguration, "failed to parse config", err).
			WithOperation("parse_config").
			WithComponent("config")
	}

	setDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv replaces ${VAR} references with environment values. A bare $
// is kept, so titles such as "Deals under $5" survive.
func expandEnv(data string) string {
	return envReference.ReplaceAllStringFunc(data, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = 30 * time.Second
	}
	if cfg.Source.CacheTTL == 0 {
		cfg.Source.CacheTTL = 5 * time.Minute
	}
	if cfg.Source.RequestsPerSecond <= 0 {
		cfg.Source.RequestsPerSecond = 2
	}
	if cfg.Source.Burst <= 0 {
		cfg.Source.Burst = 5
	}
	if cfg.Source.FailureThreshold == 0 {
		cfg.Source.FailureThreshold = 3
	}
	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		if ch.Name == "" && ch.Source != "" {
			ch.Name = model.GenerateChannelID(ch.Source)
		}
		if ch.Title == "" {
			ch.Title = ch.Name
		}
	}
}

// Validate checks channel names and formats and that every channel has
// somewhere to read content from.
func (c *Config) Validate() error {
	if len(c.Channels) == 0 {
		return configError("at least one channel must be configured", nil)
	}
	seen := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if !channelName.MatchString(ch.Name) {
			return configError(fmt.Sprintf("invalid channel name %q", ch.Name), nil)
		}
		if seen[ch.Name] {
			return configError(fmt.Sprintf("duplicate channel name %q", ch.Name), nil)
		}
		seen[ch.Name] = true

		if ch.Source == "" && c.Source.Database == "" {
			return configError(fmt.Sprintf("channel %q has no source and no database is configured", ch.Name), nil)
		}
		if _, err := rss.ParseFormat(ch.Format); err != nil {
			return configError(fmt.Sprintf("channel %q: format %q", ch.Name, ch.Format), err)
		}
	}
	return nil
}

// ListChannels returns the configured channels in file order.
func (c *Config) ListChannels() []ChannelConfig {
	return c.Channels
}

// Channel returns the channel with the given name.
func (c *Config) Channel(name string) (ChannelConfig, bool) {
	for _, ch := range c.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return ChannelConfig{}, false
}

// RenderFormat returns the parsed format of the channel.
func (ch ChannelConfig) RenderFormat() rss.Format {
	format, _ := rss.ParseFormat(ch.Format)
	return format
}

// Convert returns the conversion function the channel uses.
func (ch ChannelConfig) Convert() rss.ConvertFunc {
	if ch.Enrich {
		return rss.EnrichedConvert
	}
	return rss.DefaultConvert
}

var errInvalidConfig = errors.New("invalid configuration")

func configError(message string, cause error) *model.FeedError {
	if cause == nil {
		cause = errInvalidConfig
	}
	return model.NewFeedErrorWithCause(model.ErrorTypeConfiguration, message, cause).
		WithOperation("validate_config").
		WithComponent("config")
}
