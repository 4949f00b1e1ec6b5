package cache

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-backfill/internal/logger"
	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/internal/version"
	"github.com/rxtech-lab/argo-backfill/pkg/errors"
)

// PostgresCache stores candles in a PostgreSQL database. Chunk stores use
// COPY for throughput: existing rows for the chunk's buckets are deleted in
// the same transaction, so re-storing a chunk is idempotent.
type PostgresCache struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

var _ Cache = (*PostgresCache)(nil)

// NewPostgresCache connects to the database behind dsn, creates the candle
// tables when missing, and verifies schema compatibility.
func NewPostgresCache(ctx context.Context, dsn string, log *logger.Logger) (*PostgresCache, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheOpenFailed, "failed to connect to postgres cache", err)
	}

	cache := &PostgresCache{
		pool: pool,
		log:  log,
	}

	if err := cache.ensureSchema(ctx); err != nil {
		pool.Close()

		return nil, err
	}

	return cache, nil
}

// QueryGaps implements Cache.
func (c *PostgresCache) QueryGaps(ctx context.Context, symbol string, granularity types.Granularity, start, end time.Time) ([]types.TimeRange, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT bucket_time FROM candles
		WHERE symbol = $1 AND granularity_seconds = $2 AND bucket_time >= $3 AND bucket_time < $4
		ORDER BY bucket_time`,
		symbol, granularity.Seconds(), granularity.Align(start), end)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheQueryFailed, "gap query failed", err)
	}
	defer rows.Close()

	var stored []time.Time

	for rows.Next() {
		var bucket time.Time

		if err := rows.Scan(&bucket); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to scan bucket time", err)
		}

		stored = append(stored, bucket.UTC())
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheQueryFailed, "bucket time iteration failed", err)
	}

	return computeGaps(granularity, start, end, stored), nil
}

// StoreChunk implements Cache.
func (c *PostgresCache) StoreChunk(ctx context.Context, symbol string, granularity types.Granularity, candles []types.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	buckets := make([]time.Time, len(candles))
	for i, candle := range candles {
		buckets[i] = granularity.Align(candle.Time)
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	// Replace any existing rows for the chunk's buckets, then bulk load.
	_, err = tx.Exec(ctx, `
		DELETE FROM candles
		WHERE symbol = $1 AND granularity_seconds = $2 AND bucket_time = ANY($3)`,
		symbol, granularity.Seconds(), buckets)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to clear chunk buckets", err)
	}

	copied, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"candles"},
		[]string{"symbol", "granularity_seconds", "bucket_time", "open", "high", "low", "close", "volume"},
		pgx.CopyFromSlice(len(candles), func(i int) ([]any, error) {
			candle := candles[i]

			return []any{
				symbol,
				granularity.Seconds(),
				buckets[i],
				candle.Open,
				candle.High,
				candle.Low,
				candle.Close,
				candle.Volume,
			}, nil
		}),
	)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeCacheWriteFailed, "copy failed", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to commit chunk", err)
	}

	return int(copied), nil
}

// Coverage implements Cache.
func (c *PostgresCache) Coverage(ctx context.Context, symbol string, granularity types.Granularity) (optional.Option[types.TimeRange], error) {
	var earliest, latest *time.Time

	err := c.pool.QueryRow(ctx, `
		SELECT MIN(bucket_time), MAX(bucket_time) FROM candles
		WHERE symbol = $1 AND granularity_seconds = $2`,
		symbol, granularity.Seconds()).Scan(&earliest, &latest)
	if err != nil {
		return optional.None[types.TimeRange](), errors.Wrap(errors.ErrCodeCacheQueryFailed, "coverage query failed", err)
	}

	if earliest == nil || latest == nil {
		return optional.None[types.TimeRange](), nil
	}

	return optional.Some(coverageRange(granularity, *earliest, *latest)), nil
}

// Count implements Cache.
func (c *PostgresCache) Count(ctx context.Context, symbol string, granularity types.Granularity) (int, error) {
	var count int

	err := c.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM candles
		WHERE symbol = $1 AND granularity_seconds = $2`,
		symbol, granularity.Seconds()).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeCacheQueryFailed, "count query failed", err)
	}

	return count, nil
}

// RangeSummary implements Cache.
func (c *PostgresCache) RangeSummary(ctx context.Context, symbol string, granularity types.Granularity, start, end time.Time) (RangeSummary, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT bucket_time, close, volume FROM candles
		WHERE symbol = $1 AND granularity_seconds = $2 AND bucket_time >= $3 AND bucket_time < $4
		ORDER BY bucket_time`,
		symbol, granularity.Seconds(), start, end)
	if err != nil {
		return RangeSummary{}, errors.Wrap(errors.ErrCodeCacheQueryFailed, "summary query failed", err)
	}
	defer rows.Close()

	var candles []types.Candle

	for rows.Next() {
		var (
			bucket        time.Time
			close, volume float64
		)

		if err := rows.Scan(&bucket, &close, &volume); err != nil {
			return RangeSummary{}, errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to scan summary row", err)
		}

		candles = append(candles, types.Candle{
			Symbol: symbol,
			Time:   bucket.UTC(),
			Open:   0,
			High:   0,
			Low:    0,
			Close:  close,
			Volume: volume,
		})
	}

	if err := rows.Err(); err != nil {
		return RangeSummary{}, errors.Wrap(errors.ErrCodeCacheQueryFailed, "summary row iteration failed", err)
	}

	return summarize(candles), nil
}

// Close implements Cache.
func (c *PostgresCache) Close() error {
	c.pool.Close()

	return nil
}

func (c *PostgresCache) ensureSchema(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT NOT NULL,
			granularity_seconds BIGINT NOT NULL,
			bucket_time TIMESTAMPTZ NOT NULL,
			open DOUBLE PRECISION,
			high DOUBLE PRECISION,
			low DOUBLE PRECISION,
			close DOUBLE PRECISION,
			volume DOUBLE PRECISION,
			PRIMARY KEY (symbol, granularity_seconds, bucket_time)
		);
		CREATE TABLE IF NOT EXISTS cache_metadata (
			key TEXT PRIMARY KEY,
			value TEXT
		)`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheOpenFailed, "failed to create cache tables", err)
	}

	var stored string

	err = c.pool.QueryRow(ctx, `SELECT value FROM cache_metadata WHERE key = 'schema_version'`).Scan(&stored)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = c.pool.Exec(ctx, `INSERT INTO cache_metadata (key, value) VALUES ('schema_version', $1)`, version.SchemaVersion)
		if err != nil {
			return errors.Wrap(errors.ErrCodeCacheOpenFailed, "failed to record schema version", err)
		}

		return nil
	case err != nil:
		return errors.Wrap(errors.ErrCodeCacheOpenFailed, "failed to read schema version", err)
	default:
		if err := version.CheckSchemaCompatibility(version.SchemaVersion, stored); err != nil {
			return errors.Wrap(errors.ErrCodeCacheSchemaMismatch, "cache schema is incompatible with this build", err)
		}

		return nil
	}
}
