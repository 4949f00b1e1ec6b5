package engine_v1

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rxtech-lab/argo-backfill/internal/backfill/engine"
	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/pkg/cache"
	"github.com/rxtech-lab/argo-backfill/pkg/errors"
)

const secondsPerDay = 86400

// basePriority returns the priority band for a granularity. Finer data is
// more urgent: one-minute candles occupy the lowest band and run first.
func basePriority(granularity types.Granularity) float64 {
	switch granularity {
	case types.GranularityOneMinute:
		return 1
	case types.GranularityFiveMinutes:
		return 2
	case types.GranularityFifteenMinutes:
		return 3
	case types.GranularityOneHour:
		return 4
	case types.GranularitySixHours:
		return 5
	case types.GranularityOneDay:
		return 6
	default:
		return 7
	}
}

// taskPriority adds the chunk's age in days to the granularity band, so
// within a band the windows closest to now run first.
func taskPriority(granularity types.Granularity, chunkEnd, now time.Time) float64 {
	return basePriority(granularity) + now.Sub(chunkEnd).Seconds()/secondsPerDay
}

// daysDuration converts a policy day count to a fixed 86400-second-per-day
// duration, independent of calendar irregularities.
func daysDuration(days int) time.Duration {
	return time.Duration(days) * secondsPerDay * time.Second
}

func newTask(symbol string, granularity types.Granularity, window types.TimeRange, now time.Time) types.BackfillTask {
	return types.BackfillTask{
		ID:          uuid.New().String(),
		Symbol:      symbol,
		Granularity: granularity,
		Window:      window,
		Priority:    taskPriority(granularity, window.End, now),
	}
}

// buildInitialTasks creates one task per symbol and granularity covering the
// policy's initial window ending at now, ordered by priority.
func buildInitialTasks(policies map[types.Granularity]engine.LoadPolicy, symbols []string, now time.Time) []types.BackfillTask {
	now = now.UTC()

	var tasks []types.BackfillTask

	for _, symbol := range symbols {
		for _, granularity := range types.AllGranularities() {
			policy, ok := policies[granularity]
			if !ok {
				continue
			}

			start := now.Add(-daysDuration(policy.InitialDays))
			tasks = append(tasks, newTask(symbol, granularity, types.NewTimeRange(start, now), now))
		}
	}

	sortTasks(tasks)

	return tasks
}

// buildProgressiveTasks walks each symbol's stored coverage backward toward
// the policy depth, one chunk window per step, with the last chunk clamped to
// the depth floor. Symbols with no stored data seed the walk from now.
func buildProgressiveTasks(ctx context.Context, store cache.Cache, policies map[types.Granularity]engine.LoadPolicy, symbols []string, now time.Time) ([]types.BackfillTask, error) {
	now = now.UTC()

	var tasks []types.BackfillTask

	for _, symbol := range symbols {
		for _, granularity := range types.AllGranularities() {
			policy, ok := policies[granularity]
			if !ok {
				continue
			}

			coverage, err := store.Coverage(ctx, symbol, granularity)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeCacheQueryFailed, err, "coverage query failed for %s %s", symbol, granularity)
			}

			cursor := now
			if coverage.IsSome() {
				cursor = coverage.Unwrap().Start
			}

			floor := now.Add(-daysDuration(policy.MaxDays))
			chunk := daysDuration(policy.ChunkDays)

			for cursor.After(floor) {
				chunkStart := cursor.Add(-chunk)
				if chunkStart.Before(floor) {
					chunkStart = floor
				}

				tasks = append(tasks, newTask(symbol, granularity, types.NewTimeRange(chunkStart, cursor), now))
				cursor = chunkStart
			}
		}
	}

	sortTasks(tasks)

	return tasks, nil
}

// sortTasks orders tasks by ascending priority. The sort is stable so tasks
// with equal priority keep their build order.
func sortTasks(tasks []types.BackfillTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority < tasks[j].Priority
	})
}
