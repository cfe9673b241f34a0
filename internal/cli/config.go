package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/poissonfields/pkg/pipeline"
)

// Environment variables read on top of the config file.
const (
	envBingKey      = "BING_KEY"
	envRedisURL     = "REDIS_URL"
	envWebhookURL   = "POISSONFIELDS_WEBHOOK_URL"
	envWebhookToken = "POISSONFIELDS_WEBHOOK_TOKEN"
)

// Config is the on-disk configuration. Precedence, lowest first: built-in
// defaults, config file, environment, command-line flags.
//
//	[pipeline]
//	width = 900
//	timeout = "30s"
//
//	[provider]
//	urls = ["https://example.com/a.png"]
//
//	[publish]
//	dir = "out"
//	post_chance = 2
type Config struct {
	Pipeline pipeline.Options `toml:"pipeline"`
	Provider ProviderConfig   `toml:"provider"`
	Cache    CacheConfig      `toml:"cache"`
	Publish  PublishConfig    `toml:"publish"`
	Serve    ServeConfig      `toml:"serve"`
}

// ProviderConfig selects where candidate URLs come from.
type ProviderConfig struct {
	BingKey      string   `toml:"bing_key"`
	BingEndpoint string   `toml:"bing_endpoint"`
	URLs         []string `toml:"urls"`
	URLFile      string   `toml:"url_file"`
	TermsFile    string   `toml:"terms_file"`

	// AllowPrivateHosts lets downloads reach loopback and private networks,
	// e.g. a local image mirror.
	AllowPrivateHosts bool `toml:"allow_private_hosts"`
}

// CacheConfig selects the byte cache backend.
type CacheConfig struct {
	Dir      string `toml:"dir"`
	RedisURL string `toml:"redis_url"`

	// Namespace prefixes every cache key, so deployments with different
	// providers can share one Redis database.
	Namespace string `toml:"namespace"`
}

// PublishConfig configures the publish command.
type PublishConfig struct {
	Dir          string   `toml:"dir"`
	WebhookURL   string   `toml:"webhook_url"`
	WebhookToken string   `toml:"webhook_token"`
	PostChance   int      `toml:"post_chance"`   // Percent, used with --random
	Suffixes     []string `toml:"suffixes"`      // Caption tags
	SuffixChance int      `toml:"suffix_chance"` // Percent
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// Defaults for the command surfaces.
const (
	defaultAddr         = ":8080"
	defaultPublishDir   = "collages"
	defaultPostChance   = 2
	defaultSuffixChance = 25
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Publish: PublishConfig{
			Dir:          defaultPublishDir,
			PostChance:   defaultPostChance,
			SuffixChance: defaultSuffixChance,
		},
		Serve: ServeConfig{Addr: defaultAddr},
	}
}

// loadConfig reads path on top of the defaults and applies the environment.
// A missing file at the default location is not an error; a missing file the
// user asked for is.
func loadConfig(path string, explicit bool) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		case err != nil:
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		default:
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				return cfg, fmt.Errorf("load config %s: unknown keys %v", path, undecoded)
			}
		}
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

// applyEnv overrides secrets and endpoints from the environment.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(envBingKey); v != "" {
		c.Provider.BingKey = v
	}
	if v := getenv(envRedisURL); v != "" {
		c.Cache.RedisURL = v
	}
	if v := getenv(envWebhookURL); v != "" {
		c.Publish.WebhookURL = v
	}
	if v := getenv(envWebhookToken); v != "" {
		c.Publish.WebhookToken = v
	}
}
