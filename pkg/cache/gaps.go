package cache

import (
	"time"

	"github.com/rxtech-lab/argo-backfill/internal/types"
)

// computeGaps walks the aligned bucket grid of [start, end) and groups the
// bucket open times missing from stored into contiguous ranges. stored must
// be sorted ascending and bucket aligned; every backend queries bucket times
// with ORDER BY so the precondition holds by construction.
//
// A returned range spans [firstMissingBucket, lastMissingBucket+granularity),
// so it can be handed directly to a fetch window.
func computeGaps(granularity types.Granularity, start, end time.Time, stored []time.Time) []types.TimeRange {
	step := granularity.Duration()
	if step <= 0 || !end.After(start) {
		return nil
	}

	cursor := granularity.Align(start)
	idx := 0

	// Skip stored buckets before the walk origin.
	for idx < len(stored) && stored[idx].Before(cursor) {
		idx++
	}

	var gaps []types.TimeRange

	for cursor.Before(end) {
		if idx < len(stored) && stored[idx].Equal(cursor) {
			idx++
			cursor = cursor.Add(step)

			continue
		}

		gapStart := cursor

		for cursor.Before(end) {
			if idx < len(stored) && stored[idx].Equal(cursor) {
				break
			}

			cursor = cursor.Add(step)
		}

		gaps = append(gaps, types.TimeRange{Start: gapStart, End: cursor})
	}

	return gaps
}

// coverageRange converts the stored extent [earliest, latest] of bucket open
// times into the half-open covered interval [earliest, latest+granularity).
func coverageRange(granularity types.Granularity, earliest, latest time.Time) types.TimeRange {
	return types.TimeRange{
		Start: earliest.UTC(),
		End:   latest.UTC().Add(granularity.Duration()),
	}
}
