package types

import "time"

// TimeRange is a half-open interval [Start, End) on the UTC timeline.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeRange builds a TimeRange with both endpoints normalized to UTC.
func NewTimeRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start.UTC(), End: end.UTC()}
}

// Span returns the length of the range.
func (r TimeRange) Span() time.Duration {
	return r.End.Sub(r.Start)
}

// IsValid reports whether the range has positive length.
func (r TimeRange) IsValid() bool {
	return r.End.After(r.Start)
}

// Contains reports whether t falls inside the half-open interval.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}
