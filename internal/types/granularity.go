package types

import (
	"fmt"
	"time"
)

// Granularity identifies one of the supported candle bucket sizes.
type Granularity string

const (
	GranularityOneMinute      Granularity = "1m"
	GranularityFiveMinutes    Granularity = "5m"
	GranularityFifteenMinutes Granularity = "15m"
	GranularityOneHour        Granularity = "1h"
	GranularitySixHours       Granularity = "6h"
	GranularityOneDay         Granularity = "1d"
)

// AllGranularities returns the supported granularities ordered from finest
// to coarsest.
func AllGranularities() []Granularity {
	return []Granularity{
		GranularityOneMinute,
		GranularityFiveMinutes,
		GranularityFifteenMinutes,
		GranularityOneHour,
		GranularitySixHours,
		GranularityOneDay,
	}
}

// Seconds returns the bucket size in seconds.
func (g Granularity) Seconds() int64 {
	switch g {
	case GranularityOneMinute:
		return 60
	case GranularityFiveMinutes:
		return 300
	case GranularityFifteenMinutes:
		return 900
	case GranularityOneHour:
		return 3600
	case GranularitySixHours:
		return 21600
	case GranularityOneDay:
		return 86400
	default:
		return 0
	}
}

// Duration returns the bucket size as a time.Duration.
func (g Granularity) Duration() time.Duration {
	return time.Duration(g.Seconds()) * time.Second
}

// IsValid reports whether g is one of the supported granularities.
func (g Granularity) IsValid() bool {
	return g.Seconds() > 0
}

func (g Granularity) String() string {
	return string(g)
}

// Align truncates t down to the open time of the bucket containing it.
// Alignment is done on the Unix epoch so day buckets start at 00:00 UTC.
func (g Granularity) Align(t time.Time) time.Time {
	s := g.Seconds()
	if s <= 0 {
		return t.UTC()
	}

	return time.Unix((t.Unix()/s)*s, 0).UTC()
}

// GranularityFromSeconds maps a bucket size in seconds back to its Granularity.
func GranularityFromSeconds(seconds int64) (Granularity, error) {
	for _, g := range AllGranularities() {
		if g.Seconds() == seconds {
			return g, nil
		}
	}

	return "", fmt.Errorf("unsupported granularity: %d seconds", seconds)
}

// ParseGranularity validates a granularity label such as "5m" or "1d".
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	if !g.IsValid() {
		return "", fmt.Errorf("unsupported granularity: %q", s)
	}

	return g, nil
}
