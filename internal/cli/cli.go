package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/poissonfields/pkg/cache"
	perrors "github.com/matzehuels/poissonfields/pkg/errors"
	"github.com/matzehuels/poissonfields/pkg/integrations"
	"github.com/matzehuels/poissonfields/pkg/integrations/bing"
	"github.com/matzehuels/poissonfields/pkg/integrations/static"
	"github.com/matzehuels/poissonfields/pkg/pipeline"
	"github.com/matzehuels/poissonfields/pkg/terms"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "poissonfields"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// config is loaded by the root command before any subcommand runs.
	config Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		config: DefaultConfig(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner wires the search provider, the fetch client and the term list
// from the loaded config. The returned closer releases the cache backend.
func (c *CLI) newRunner(ctx context.Context, src sourceFlags, noCache bool) (*pipeline.Runner, io.Closer, error) {
	backend, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, nil, err
	}

	fetcher := integrations.NewClient(cache.NewObserved(backend, cache.KeyTypeAsset), nil, c.clientOptions()...)
	searcher, err := c.newSearcher(src, backend)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}

	runner := pipeline.NewRunner(searcher, fetcher, c.Logger)
	if path := c.config.Provider.TermsFile; path != "" {
		picker, err := terms.FromFile(path)
		if err != nil {
			backend.Close()
			return nil, nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "terms file")
		}
		runner.Terms = picker
	}
	return runner, backend, nil
}

// newSearcher prefers an explicit URL list over Bing.
func (c *CLI) newSearcher(src sourceFlags, backend cache.Cache) (pipeline.Searcher, error) {
	urls := src.urls
	if len(urls) == 0 {
		urls = c.config.Provider.URLs
	}
	urlFile := src.urlFile
	if urlFile == "" {
		urlFile = c.config.Provider.URLFile
	}

	switch {
	case len(urls) > 0:
		c.Logger.Debug("using static provider", "urls", len(urls))
		return static.New(urls), nil
	case urlFile != "":
		p, err := static.FromFile(urlFile)
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "url file")
		}
		return p, nil
	}

	var opts []bing.Option
	if ep := c.config.Provider.BingEndpoint; ep != "" {
		opts = append(opts, bing.WithBaseURL(ep))
	}
	p, err := bing.NewProvider(c.config.Provider.BingKey, cache.NewObserved(backend, cache.KeyTypeSearch), c.clientOptions(), opts...)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "no image provider: set BING_KEY or pass --urls")
	}
	return p, nil
}

// clientOptions applies the [provider] and [cache] settings to HTTP clients.
func (c *CLI) clientOptions() []integrations.Option {
	var opts []integrations.Option
	if c.config.Provider.AllowPrivateHosts {
		opts = append(opts, integrations.AllowPrivateHosts())
	}
	if ns := c.config.Cache.Namespace; ns != "" {
		opts = append(opts, integrations.WithKeyer(cache.NewScopedKeyer(cache.NewDefaultKeyer(), ns+":")))
	}
	return opts
}

// newCache picks Redis when configured, the file cache otherwise.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if url := c.config.Cache.RedisURL; url != "" {
		rc, err := cache.NewRedisCache(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return rc, nil
	}
	dir, err := c.cacheDir()
	if err != nil {
		c.Logger.Warn("cache disabled", "error", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory or the XDG default.
func (c *CLI) cacheDir() (string, error) {
	if c.config.Cache.Dir != "" {
		return c.config.Cache.Dir, nil
	}
	return cacheDir()
}

// cacheDir returns the cache directory using XDG standard (~/.cache/poissonfields/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configPath returns the default config file location (~/.config/poissonfields/config.toml).
func configPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}
