package engine_v1

import (
	"context"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rxtech-lab/argo-backfill/internal/logger"
	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/pkg/cache"
	"github.com/rxtech-lab/argo-backfill/pkg/errors"
	"github.com/rxtech-lab/argo-backfill/pkg/marketdata/provider"
)

// fetchWindowBuckets caps one provider request at 300 candles, small enough
// that upstream APIs serve it in a single page.
const fetchWindowBuckets = 300

// chunkFetcher fills one task window at a time: it asks the cache which
// sub-ranges are missing and fetches only those from the provider, so
// re-running a task over covered ground costs no provider requests.
type chunkFetcher struct {
	provider provider.Provider
	cache    cache.Cache
	limiter  *rate.Limiter
	log      *logger.Logger
}

func newChunkFetcher(dataProvider provider.Provider, store cache.Cache, limiter *rate.Limiter, log *logger.Logger) *chunkFetcher {
	return &chunkFetcher{
		provider: dataProvider,
		cache:    store,
		limiter:  limiter,
		log:      log,
	}
}

// fetchChunk fills the task window and returns the number of candles stored.
// Individual sub-window failures are logged and skipped; the task itself
// fails only when the gap query fails, the context is cancelled, or every
// sub-window attempt errored.
func (f *chunkFetcher) fetchChunk(ctx context.Context, task types.BackfillTask) (int, error) {
	gaps, err := f.cache.QueryGaps(ctx, task.Symbol, task.Granularity, task.Window.Start, task.Window.End)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeTaskFailed, err, "gap query failed for %s", task)
	}

	if len(gaps) == 0 {
		return 0, nil
	}

	var (
		stored    int
		attempted int
		failed    int
	)

	step := fetchWindowBuckets * task.Granularity.Duration()

	for _, gap := range gaps {
		for cursor := gap.Start; cursor.Before(gap.End); cursor = cursor.Add(step) {
			windowEnd := cursor.Add(step)
			if windowEnd.After(gap.End) {
				windowEnd = gap.End
			}

			window := types.NewTimeRange(cursor, windowEnd)
			attempted++

			if err := f.limiter.Wait(ctx); err != nil {
				return stored, errors.Wrap(errors.ErrCodeEngineStopped, "rate limiter interrupted", err)
			}

			candles, err := f.provider.FetchCandles(ctx, task.Symbol, task.Granularity, optional.Some(window))
			if err != nil {
				if ctx.Err() != nil {
					return stored, errors.Wrap(errors.ErrCodeEngineStopped, "fetch cancelled", ctx.Err())
				}

				f.log.Warn("Sub-window fetch failed, skipping",
					zap.String("symbol", task.Symbol),
					zap.String("granularity", string(task.Granularity)),
					zap.Time("start", window.Start),
					zap.Time("end", window.End),
					zap.Error(err),
				)

				failed++

				continue
			}

			if len(candles) == 0 {
				continue
			}

			count, err := f.cache.StoreChunk(ctx, task.Symbol, task.Granularity, candles)
			if err != nil {
				f.log.Warn("Sub-window store failed, skipping",
					zap.String("symbol", task.Symbol),
					zap.String("granularity", string(task.Granularity)),
					zap.Time("start", window.Start),
					zap.Time("end", window.End),
					zap.Error(err),
				)

				failed++

				continue
			}

			stored += count
		}
	}

	if failed > 0 && failed == attempted {
		return 0, errors.Newf(errors.ErrCodeTaskFailed, "all %d sub-windows failed for %s", failed, task)
	}

	return stored, nil
}

// fetchLatest stores the newest candle for one symbol and granularity.
func (f *chunkFetcher) fetchLatest(ctx context.Context, symbol string, granularity types.Granularity) (int, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, errors.Wrap(errors.ErrCodeEngineStopped, "rate limiter interrupted", err)
	}

	candles, err := f.provider.FetchCandles(ctx, symbol, granularity, optional.None[types.TimeRange]())
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeProviderFetchFailed, err, "latest fetch failed for %s %s", symbol, granularity)
	}

	if len(candles) == 0 {
		return 0, nil
	}

	count, err := f.cache.StoreChunk(ctx, symbol, granularity, candles)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeCacheWriteFailed, err, "latest store failed for %s %s", symbol, granularity)
	}

	return count, nil
}
