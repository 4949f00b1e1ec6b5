package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-backfill/internal/logger"
	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/pkg/errors"
)

// MemoryCache keeps candles in process memory. It is the backend for tests
// and short-lived tooling; nothing survives a restart.
type MemoryCache struct {
	log *logger.Logger

	// candles[symbol][granularity][bucketUnix] = candle
	candles map[string]map[types.Granularity]map[int64]types.Candle

	mu     sync.RWMutex
	closed bool
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache(log *logger.Logger) *MemoryCache {
	return &MemoryCache{
		log:     log,
		candles: make(map[string]map[types.Granularity]map[int64]types.Candle),
		mu:      sync.RWMutex{},
		closed:  false,
	}
}

// QueryGaps implements Cache.
func (c *MemoryCache) QueryGaps(ctx context.Context, symbol string, granularity types.Granularity, start, end time.Time) ([]types.TimeRange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.New(errors.ErrCodeCacheClosed, "cache is closed")
	}

	stored := c.bucketTimesLocked(symbol, granularity, start, end)

	return computeGaps(granularity, start, end, stored), nil
}

// StoreChunk implements Cache.
func (c *MemoryCache) StoreChunk(ctx context.Context, symbol string, granularity types.Granularity, candles []types.Candle) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, errors.New(errors.ErrCodeCacheClosed, "cache is closed")
	}

	if len(candles) == 0 {
		return 0, nil
	}

	byGranularity, ok := c.candles[symbol]
	if !ok {
		byGranularity = make(map[types.Granularity]map[int64]types.Candle)
		c.candles[symbol] = byGranularity
	}

	buckets, ok := byGranularity[granularity]
	if !ok {
		buckets = make(map[int64]types.Candle)
		byGranularity[granularity] = buckets
	}

	for _, candle := range candles {
		aligned := granularity.Align(candle.Time)
		candle.Time = aligned
		buckets[aligned.Unix()] = candle
	}

	return len(candles), nil
}

// Coverage implements Cache.
func (c *MemoryCache) Coverage(ctx context.Context, symbol string, granularity types.Granularity) (optional.Option[types.TimeRange], error) {
	if err := ctx.Err(); err != nil {
		return optional.None[types.TimeRange](), err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return optional.None[types.TimeRange](), errors.New(errors.ErrCodeCacheClosed, "cache is closed")
	}

	buckets := c.candles[symbol][granularity]
	if len(buckets) == 0 {
		return optional.None[types.TimeRange](), nil
	}

	var earliest, latest int64

	first := true
	for bucket := range buckets {
		if first {
			earliest, latest = bucket, bucket
			first = false

			continue
		}

		if bucket < earliest {
			earliest = bucket
		}

		if bucket > latest {
			latest = bucket
		}
	}

	covered := coverageRange(granularity, time.Unix(earliest, 0).UTC(), time.Unix(latest, 0).UTC())

	return optional.Some(covered), nil
}

// Count implements Cache.
func (c *MemoryCache) Count(ctx context.Context, symbol string, granularity types.Granularity) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, errors.New(errors.ErrCodeCacheClosed, "cache is closed")
	}

	return len(c.candles[symbol][granularity]), nil
}

// RangeSummary implements Cache.
func (c *MemoryCache) RangeSummary(ctx context.Context, symbol string, granularity types.Granularity, start, end time.Time) (RangeSummary, error) {
	if err := ctx.Err(); err != nil {
		return RangeSummary{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return RangeSummary{}, errors.New(errors.ErrCodeCacheClosed, "cache is closed")
	}

	var inRange []types.Candle

	for bucket, candle := range c.candles[symbol][granularity] {
		t := time.Unix(bucket, 0).UTC()
		if !t.Before(start) && t.Before(end) {
			inRange = append(inRange, candle)
		}
	}

	return summarize(inRange), nil
}

// Close implements Cache.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.candles = make(map[string]map[types.Granularity]map[int64]types.Candle)

	return nil
}

// bucketTimesLocked returns the sorted stored bucket open times within
// [start, end). Callers must hold at least the read lock.
func (c *MemoryCache) bucketTimesLocked(symbol string, granularity types.Granularity, start, end time.Time) []time.Time {
	buckets := c.candles[symbol][granularity]
	if len(buckets) == 0 {
		return nil
	}

	times := make([]time.Time, 0, len(buckets))
	origin := granularity.Align(start)

	for bucket := range buckets {
		t := time.Unix(bucket, 0).UTC()
		if !t.Before(origin) && t.Before(end) {
			times = append(times, t)
		}
	}

	sort.Slice(times, func(i, j int) bool {
		return times[i].Before(times[j])
	})

	return times
}
