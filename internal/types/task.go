package types

import "fmt"

// BackfillTask describes one chunk of history to fetch: a symbol, a
// granularity, and a half-open time window.
type BackfillTask struct {
	// ID uniquely identifies this task instance.
	ID string `json:"id"`

	// Symbol is the trading symbol the chunk belongs to.
	Symbol string `json:"symbol"`

	// Granularity is the candle bucket size to fetch.
	Granularity Granularity `json:"granularity"`

	// Window is the half-open chunk window [Start, End).
	Window TimeRange `json:"window"`

	// Priority orders execution; lower values run first.
	Priority float64 `json:"priority"`
}

// Key returns the deduplication key for the task window. Two tasks covering
// the same symbol, granularity, and window share a key regardless of their
// IDs, so an identical window can never run twice concurrently.
func (t BackfillTask) Key() string {
	return fmt.Sprintf("%s|%s|%d|%d", t.Symbol, t.Granularity, t.Window.Start.Unix(), t.Window.End.Unix())
}

func (t BackfillTask) String() string {
	return fmt.Sprintf("%s %s [%s, %s)", t.Symbol, t.Granularity,
		t.Window.Start.Format("2006-01-02T15:04:05Z"), t.Window.End.Format("2006-01-02T15:04:05Z"))
}
