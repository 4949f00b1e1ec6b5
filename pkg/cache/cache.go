// Package cache provides the persistent candle cache behind the backfill
// engine. Backends share one contract: idempotent chunk storage keyed by
// (symbol, granularity, bucket time), gap queries over a time range, and
// coverage reporting.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-backfill/internal/logger"
	"github.com/rxtech-lab/argo-backfill/internal/types"
)

// CacheType defines the type of cache backend.
type CacheType string

const (
	CacheTypeDuckDB     CacheType = "duckdb"
	CacheTypeMemory     CacheType = "memory"
	CacheTypePostgres   CacheType = "postgres"
	CacheTypeClickHouse CacheType = "clickhouse"
)

// Config holds the configuration for opening a cache backend.
type Config struct {
	Type CacheType `json:"type" yaml:"type" jsonschema:"title=Cache Type,enum=duckdb,enum=memory,enum=postgres,enum=clickhouse" validate:"required,oneof=duckdb memory postgres clickhouse"`
	// Path is the database file location for file-backed caches (duckdb).
	Path string `json:"path,omitempty" yaml:"path,omitempty" jsonschema:"title=Cache Path" validate:"required_if=Type duckdb"`
	// DSN is the connection string for server-backed caches (postgres, clickhouse).
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty" jsonschema:"title=Cache DSN" validate:"required_if=Type postgres,required_if=Type clickhouse" keychain:"true"`
}

// RangeSummary aggregates stored candles over a time range. Volume totals
// use decimal arithmetic so large ranges do not accumulate float error.
type RangeSummary struct {
	Candles     int
	TotalVolume decimal.Decimal
	VWAP        decimal.Decimal
	First       time.Time
	Last        time.Time
}

// Cache is the persistent candle store used by the backfill engine.
// Implementations must be safe for concurrent use.
type Cache interface {
	// QueryGaps returns the bucket-aligned sub-ranges of [start, end) that
	// hold no stored candles, ordered by start time.
	QueryGaps(ctx context.Context, symbol string, granularity types.Granularity, start, end time.Time) ([]types.TimeRange, error)

	// StoreChunk upserts candles for one symbol and granularity and returns
	// the number of candles written. Storing the same chunk twice leaves the
	// cache unchanged.
	StoreChunk(ctx context.Context, symbol string, granularity types.Granularity, candles []types.Candle) (int, error)

	// Coverage returns the stored extent [earliestBucket, latestBucket+granularity)
	// for the symbol, or None when nothing is stored.
	Coverage(ctx context.Context, symbol string, granularity types.Granularity) (optional.Option[types.TimeRange], error)

	// Count returns the number of stored candles for the symbol and granularity.
	Count(ctx context.Context, symbol string, granularity types.Granularity) (int, error)

	// RangeSummary aggregates the stored candles inside [start, end).
	RangeSummary(ctx context.Context, symbol string, granularity types.Granularity, start, end time.Time) (RangeSummary, error)

	// Close releases the backend resources.
	Close() error
}

// NewCache opens a cache backend from the given configuration.
func NewCache(ctx context.Context, config Config, log *logger.Logger) (Cache, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid cache configuration: %w", err)
	}

	switch config.Type {
	case CacheTypeDuckDB:
		return NewDuckDBCache(config.Path, log)
	case CacheTypeMemory:
		return NewMemoryCache(log), nil
	case CacheTypePostgres:
		return NewPostgresCache(ctx, config.DSN, log)
	case CacheTypeClickHouse:
		return NewClickHouseCache(ctx, config.DSN, log)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}

// summarize folds candles into a RangeSummary. Shared by all backends so
// aggregation semantics stay identical regardless of storage engine.
func summarize(candles []types.Candle) RangeSummary {
	summary := RangeSummary{
		Candles:     len(candles),
		TotalVolume: decimal.Zero,
		VWAP:        decimal.Zero,
		First:       time.Time{},
		Last:        time.Time{},
	}

	if len(candles) == 0 {
		return summary
	}

	notional := decimal.Zero

	for i, c := range candles {
		if i == 0 || c.Time.Before(summary.First) {
			summary.First = c.Time
		}

		if c.Time.After(summary.Last) {
			summary.Last = c.Time
		}

		volume := decimal.NewFromFloat(c.Volume)
		summary.TotalVolume = summary.TotalVolume.Add(volume)
		notional = notional.Add(volume.Mul(decimal.NewFromFloat(c.Close)))
	}

	if summary.TotalVolume.IsPositive() {
		summary.VWAP = notional.Div(summary.TotalVolume)
	}

	return summary
}
