package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineState represents the current state of the backfill engine.
type EngineState string

const (
	// EngineStateIdle indicates the engine has not started loading data yet.
	EngineStateIdle EngineState = "idle"

	// EngineStateInitialLoading indicates the engine is loading the most
	// recent history window for every symbol and granularity.
	EngineStateInitialLoading EngineState = "initial_loading"

	// EngineStateBackgroundActive indicates the initial load finished and the
	// engine is extending history backward in background passes.
	EngineStateBackgroundActive EngineState = "background_active"

	// EngineStateStopped indicates the engine has stopped.
	EngineStateStopped EngineState = "stopped"
)

// BackfillStats contains counters for a backfill run.
type BackfillStats struct {
	// State is the engine state at the time of the snapshot.
	State EngineState `yaml:"state" json:"state"`

	// SessionStart is when this run started.
	SessionStart time.Time `yaml:"session_start" json:"session_start"`

	// LastUpdated is when these statistics were last updated.
	LastUpdated time.Time `yaml:"last_updated" json:"last_updated"`

	// Symbols being backfilled in this run.
	Symbols []string `yaml:"symbols" json:"symbols"`

	// TasksSucceeded is the number of chunk tasks that completed.
	TasksSucceeded int64 `yaml:"tasks_succeeded" json:"tasks_succeeded"`

	// TasksFailed is the number of chunk tasks that returned an error.
	TasksFailed int64 `yaml:"tasks_failed" json:"tasks_failed"`

	// TasksSkipped is the number of tasks suppressed because an identical
	// window was already in flight.
	TasksSkipped int64 `yaml:"tasks_skipped" json:"tasks_skipped"`

	// CandlesStored is the number of candles written to the cache.
	CandlesStored int64 `yaml:"candles_stored" json:"candles_stored"`

	// PassesCompleted is the number of finished progressive passes.
	PassesCompleted int64 `yaml:"passes_completed" json:"passes_completed"`
}

// WriteBackfillStats writes backfill statistics to a YAML file.
func WriteBackfillStats(path string, stats BackfillStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal backfill stats to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backfill stats to file: %w", err)
	}

	return nil
}

// ReadBackfillStats reads backfill statistics from a YAML file.
func ReadBackfillStats(path string) (BackfillStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BackfillStats{}, fmt.Errorf("failed to read backfill stats file: %w", err)
	}

	var stats BackfillStats
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return BackfillStats{}, fmt.Errorf("failed to unmarshal backfill stats: %w", err)
	}

	return stats, nil
}

// NewBackfillStats creates a new BackfillStats with initialized values.
func NewBackfillStats(symbols []string) BackfillStats {
	now := time.Now().UTC()

	return BackfillStats{
		State:           EngineStateIdle,
		SessionStart:    now,
		LastUpdated:     now,
		Symbols:         symbols,
		TasksSucceeded:  0,
		TasksFailed:     0,
		TasksSkipped:    0,
		CandlesStored:   0,
		PassesCompleted: 0,
	}
}
