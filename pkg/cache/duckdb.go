package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-backfill/internal/logger"
	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/internal/version"
	"github.com/rxtech-lab/argo-backfill/pkg/errors"
)

// ExportFormat selects the output format for DuckDB exports.
type ExportFormat string

const (
	ExportFormatCSV     ExportFormat = "csv"
	ExportFormatParquet ExportFormat = "parquet"
)

// DuckDBCache stores candles in an embedded DuckDB database file. It is the
// default backend: a single local file, no server, fast range scans.
type DuckDBCache struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType

	// DuckDB allows a single writer; serialize chunk stores.
	writeMu sync.Mutex
}

var _ Cache = (*DuckDBCache)(nil)

// NewDuckDBCache opens (or creates) the cache database at path and verifies
// the stored schema version is compatible with this build.
func NewDuckDBCache(path string, log *logger.Logger) (*DuckDBCache, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheOpenFailed, "failed to open duckdb cache", err)
	}

	cache := &DuckDBCache{
		db:      db,
		log:     log,
		sq:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		writeMu: sync.Mutex{},
	}

	if err := cache.ensureSchema(); err != nil {
		db.Close()

		return nil, err
	}

	return cache, nil
}

// QueryGaps implements Cache.
func (c *DuckDBCache) QueryGaps(ctx context.Context, symbol string, granularity types.Granularity, start, end time.Time) ([]types.TimeRange, error) {
	stored, err := c.bucketTimes(ctx, symbol, granularity, granularity.Align(start), end)
	if err != nil {
		return nil, err
	}

	return computeGaps(granularity, start, end, stored), nil
}

// StoreChunk implements Cache.
func (c *DuckDBCache) StoreChunk(ctx context.Context, symbol string, granularity types.Granularity, candles []types.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to begin transaction", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (id, symbol, granularity_seconds, bucket_time, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, granularity_seconds, bucket_time) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`)
	if err != nil {
		tx.Rollback()

		return 0, errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to prepare insert statement", err)
	}

	for _, candle := range candles {
		bucket := granularity.Align(candle.Time)

		_, err := stmt.ExecContext(ctx,
			uuid.New().String(),
			symbol,
			granularity.Seconds(),
			bucket,
			candle.Open,
			candle.High,
			candle.Low,
			candle.Close,
			candle.Volume,
		)
		if err != nil {
			stmt.Close()
			tx.Rollback()

			return 0, errors.Wrapf(errors.ErrCodeCacheWriteFailed, err, "failed to insert candle at %s", bucket)
		}
	}

	stmt.Close()

	if err := tx.Commit(); err != nil {
		tx.Rollback()

		return 0, errors.Wrap(errors.ErrCodeCacheWriteFailed, "failed to commit chunk", err)
	}

	return len(candles), nil
}

// Coverage implements Cache.
func (c *DuckDBCache) Coverage(ctx context.Context, symbol string, granularity types.Granularity) (optional.Option[types.TimeRange], error) {
	query, args, err := c.sq.
		Select("MIN(bucket_time)", "MAX(bucket_time)").
		From("candles").
		Where(squirrel.And{
			squirrel.Eq{"symbol": symbol},
			squirrel.Eq{"granularity_seconds": granularity.Seconds()},
		}).
		ToSql()
	if err != nil {
		return optional.None[types.TimeRange](), errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to build coverage query", err)
	}

	var earliest, latest sql.NullTime

	err = c.db.QueryRowContext(ctx, query, args...).Scan(&earliest, &latest)
	if err != nil {
		return optional.None[types.TimeRange](), errors.Wrap(errors.ErrCodeCacheQueryFailed, "coverage query failed", err)
	}

	if !earliest.Valid || !latest.Valid {
		return optional.None[types.TimeRange](), nil
	}

	return optional.Some(coverageRange(granularity, earliest.Time, latest.Time)), nil
}

// Count implements Cache.
func (c *DuckDBCache) Count(ctx context.Context, symbol string, granularity types.Granularity) (int, error) {
	query, args, err := c.sq.
		Select("COUNT(*)").
		From("candles").
		Where(squirrel.And{
			squirrel.Eq{"symbol": symbol},
			squirrel.Eq{"granularity_seconds": granularity.Seconds()},
		}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to build count query", err)
	}

	var count int

	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeCacheQueryFailed, "count query failed", err)
	}

	return count, nil
}

// RangeSummary implements Cache.
func (c *DuckDBCache) RangeSummary(ctx context.Context, symbol string, granularity types.Granularity, start, end time.Time) (RangeSummary, error) {
	query, args, err := c.sq.
		Select("bucket_time", "close", "volume").
		From("candles").
		Where(squirrel.And{
			squirrel.Eq{"symbol": symbol},
			squirrel.Eq{"granularity_seconds": granularity.Seconds()},
			squirrel.GtOrEq{"bucket_time": start},
			squirrel.Lt{"bucket_time": end},
		}).
		OrderBy("bucket_time ASC").
		ToSql()
	if err != nil {
		return RangeSummary{}, errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to build summary query", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
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

// Export copies the stored candles for one symbol and granularity inside
// [start, end) into a CSV or Parquet file at outputPath.
func (c *DuckDBCache) Export(ctx context.Context, symbol string, granularity types.Granularity, start, end time.Time, format ExportFormat, outputPath string) error {
	var formatClause string

	switch format {
	case ExportFormatCSV:
		formatClause = "FORMAT CSV, HEADER"
	case ExportFormatParquet:
		formatClause = "FORMAT PARQUET"
	default:
		return errors.Newf(errors.ErrCodeInvalidParameter, "unsupported export format: %s", format)
	}

	// COPY does not accept bound parameters, so inline sanitized literals.
	copyStmt := fmt.Sprintf(`
		COPY (
			SELECT bucket_time AS time, symbol, open, high, low, close, volume
			FROM candles
			WHERE symbol = '%s'
			  AND granularity_seconds = %d
			  AND bucket_time >= '%s'
			  AND bucket_time < '%s'
			ORDER BY bucket_time
		) TO '%s' (%s)`,
		escapeLiteral(symbol),
		granularity.Seconds(),
		start.UTC().Format("2006-01-02 15:04:05"),
		end.UTC().Format("2006-01-02 15:04:05"),
		escapeLiteral(outputPath),
		formatClause,
	)

	if _, err := c.db.ExecContext(ctx, copyStmt); err != nil {
		return errors.Wrapf(errors.ErrCodeCacheExportFailed, err, "failed to export %s %s to %s", symbol, granularity, outputPath)
	}

	c.log.Info("exported candles",
		zap.String("symbol", symbol),
		zap.String("granularity", granularity.String()),
		zap.String("output", outputPath),
		zap.String("format", string(format)),
	)

	return nil
}

// Close implements Cache.
func (c *DuckDBCache) Close() error {
	return c.db.Close()
}

// bucketTimes returns the sorted stored bucket open times in [origin, end).
func (c *DuckDBCache) bucketTimes(ctx context.Context, symbol string, granularity types.Granularity, origin, end time.Time) ([]time.Time, error) {
	query, args, err := c.sq.
		Select("bucket_time").
		From("candles").
		Where(squirrel.And{
			squirrel.Eq{"symbol": symbol},
			squirrel.Eq{"granularity_seconds": granularity.Seconds()},
			squirrel.GtOrEq{"bucket_time": origin},
			squirrel.Lt{"bucket_time": end},
		}).
		OrderBy("bucket_time ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to build gap query", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheQueryFailed, "gap query failed", err)
	}
	defer rows.Close()

	var times []time.Time

	for rows.Next() {
		var bucket time.Time

		if err := rows.Scan(&bucket); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to scan bucket time", err)
		}

		times = append(times, bucket.UTC())
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheQueryFailed, "bucket time iteration failed", err)
	}

	return times, nil
}

// ensureSchema creates the candle and metadata tables and verifies the
// stored schema version is usable by this build.
func (c *DuckDBCache) ensureSchema() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			id TEXT,
			symbol TEXT NOT NULL,
			granularity_seconds BIGINT NOT NULL,
			bucket_time TIMESTAMP NOT NULL,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE,
			PRIMARY KEY (symbol, granularity_seconds, bucket_time)
		);
		CREATE TABLE IF NOT EXISTS cache_metadata (
			key TEXT PRIMARY KEY,
			value TEXT
		);
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheOpenFailed, "failed to create cache tables", err)
	}

	var stored string

	err = c.db.QueryRow(`SELECT value FROM cache_metadata WHERE key = 'schema_version'`).Scan(&stored)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = c.db.Exec(`INSERT INTO cache_metadata (key, value) VALUES ('schema_version', $1)`, version.SchemaVersion)
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

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
