// Package backfill wires a market data provider, a candle cache, and the
// backfill engine into one client. It is the entry point for embedding the
// engine in a program: load a configuration, create a client, call Start.
package backfill

import (
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/argo-backfill/internal/backfill/engine"
	"github.com/rxtech-lab/argo-backfill/internal/backfill/engine/engine_v1"
	"github.com/rxtech-lab/argo-backfill/internal/logger"
	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/pkg/cache"
	"github.com/rxtech-lab/argo-backfill/pkg/errors"
	"github.com/rxtech-lab/argo-backfill/pkg/marketdata/provider"
)

// ClientConfig holds the full configuration for a backfill client: which
// provider to fetch from, which cache backend to store into, and how the
// engine schedules its work.
type ClientConfig struct {
	Provider provider.Config             `json:"provider" yaml:"provider" jsonschema:"title=Provider"`
	Cache    cache.Config                `json:"cache" yaml:"cache" jsonschema:"title=Cache"`
	Engine   engine.BackfillEngineConfig `json:"engine" yaml:"engine" jsonschema:"title=Engine"`
}

// Validate checks the full configuration, including the engine's policy
// table semantics.
func (c *ClientConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	return c.Engine.Validate()
}

// LoadConfig reads and validates a YAML client configuration file.
func LoadConfig(path string) (ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClientConfig{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	var config ClientConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return ClientConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
	}

	if err := config.Validate(); err != nil {
		return ClientConfig{}, err
	}

	return config, nil
}

// CoverageEntry describes the stored history for one granularity of a symbol.
type CoverageEntry struct {
	Granularity types.Granularity
	Candles     int
	Extent      optional.Option[types.TimeRange]
}

// Client assembles the collaborators behind a running backfill session.
type Client struct {
	config   ClientConfig
	provider provider.Provider
	cache    cache.Cache
	engine   engine.BackfillEngine
	log      *logger.Logger
}

// NewClient creates a backfill client from the given configuration. The
// context is used for opening server-backed caches. A nil logger falls back
// to the default production logger.
func NewClient(ctx context.Context, config ClientConfig, log *logger.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		var err error

		log, err = logger.NewLogger()
		if err != nil {
			return nil, err
		}
	}

	dataProvider, err := provider.NewProvider(config.Provider, log)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidProvider, "failed to create provider", err)
	}

	store, err := cache.NewCache(ctx, config.Cache, log)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheOpenFailed, "failed to open cache", err)
	}

	backfillEngine, err := engine_v1.NewBackfillEngineV1(config.Engine, dataProvider, store, log)
	if err != nil {
		if closeErr := store.Close(); closeErr != nil {
			log.Warn("Failed to close cache after engine setup error")
		}

		return nil, err
	}

	return &Client{
		config:   config,
		provider: dataProvider,
		cache:    store,
		engine:   backfillEngine,
		log:      log,
	}, nil
}

// Start runs the initial load and, on success, begins background progressive
// loading. It blocks until the initial load finishes.
func (c *Client) Start(ctx context.Context, callbacks engine.BackfillCallbacks) error {
	return c.engine.Start(ctx, callbacks)
}

// Stop halts the engine and waits for in-flight tasks to settle.
func (c *Client) Stop() {
	c.engine.Stop()
}

// UpdateLatest fetches the newest candle for the symbol at every configured
// granularity. It works in any engine state.
func (c *Client) UpdateLatest(ctx context.Context, symbol string) error {
	return c.engine.UpdateLatest(ctx, symbol)
}

// State returns the engine's current lifecycle state.
func (c *Client) State() types.EngineState {
	return c.engine.State()
}

// Stats returns a snapshot of the engine's session statistics.
func (c *Client) Stats() types.BackfillStats {
	return c.engine.Stats()
}

// WriteStats writes the current session statistics to a YAML file.
func (c *Client) WriteStats(path string) error {
	return types.WriteBackfillStats(path, c.engine.Stats())
}

// ProviderName returns the identifier of the configured provider.
func (c *Client) ProviderName() string {
	return c.provider.Name()
}

// Coverage reports the stored candle count and extent for every granularity
// in the engine's policy table.
func (c *Client) Coverage(ctx context.Context, symbol string) ([]CoverageEntry, error) {
	var entries []CoverageEntry

	for _, granularity := range types.AllGranularities() {
		if _, ok := c.config.Engine.Policies[granularity]; !ok {
			continue
		}

		count, err := c.cache.Count(ctx, symbol, granularity)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeCacheQueryFailed, err, "count query failed for %s %s", symbol, granularity)
		}

		extent, err := c.cache.Coverage(ctx, symbol, granularity)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeCacheQueryFailed, err, "coverage query failed for %s %s", symbol, granularity)
		}

		entries = append(entries, CoverageEntry{
			Granularity: granularity,
			Candles:     count,
			Extent:      extent,
		})
	}

	return entries, nil
}

// Summary aggregates the stored candles for one symbol and granularity
// inside [start, end).
func (c *Client) Summary(ctx context.Context, symbol string, granularity types.Granularity, start, end time.Time) (cache.RangeSummary, error) {
	return c.cache.RangeSummary(ctx, symbol, granularity, start, end)
}

// Export writes the stored candles for one symbol and granularity inside
// [start, end) to a CSV or Parquet file. Only file-backed caches support
// exporting.
func (c *Client) Export(ctx context.Context, symbol string, granularity types.Granularity, start, end time.Time, format cache.ExportFormat, outputPath string) error {
	exporter, ok := c.cache.(interface {
		Export(ctx context.Context, symbol string, granularity types.Granularity, start, end time.Time, format cache.ExportFormat, outputPath string) error
	})
	if !ok {
		return errors.Newf(errors.ErrCodeCacheExportFailed, "cache backend %s does not support export", c.config.Cache.Type)
	}

	return exporter.Export(ctx, symbol, granularity, start, end, format, outputPath)
}

// Close stops the engine and releases the cache backend.
func (c *Client) Close() error {
	c.engine.Stop()

	return c.cache.Close()
}
