package engine

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/pkg/errors"
	"github.com/rxtech-lab/argo-backfill/pkg/utils"
)

// Default configuration values.
const (
	DefaultMaxConcurrentTasks        = 3
	DefaultBackgroundIntervalMinutes = 60
	DefaultRequestsPerMinute         = 600
)

// Lifecycle callback types for backfill phases.

// OnStateChangeCallback is called when the engine state changes.
type OnStateChangeCallback func(oldState, newState types.EngineState)

// OnTaskStartCallback is called when a chunk task begins executing.
type OnTaskStartCallback func(task types.BackfillTask)

// OnTaskCompleteCallback is called when a chunk task finishes. candles is the
// number of candles stored; err is non-nil when the task failed.
type OnTaskCompleteCallback func(task types.BackfillTask, candles int, err error)

// OnPassCompleteCallback is called when a progressive pass finishes.
type OnPassCompleteCallback func(stats types.BackfillStats)

// BackfillCallbacks holds all lifecycle callback functions for the backfill
// engine. All fields are pointers - nil means no callback will be invoked.
type BackfillCallbacks struct {
	// OnStateChange is called when the engine state changes.
	OnStateChange *OnStateChangeCallback

	// OnTaskStart is called when a chunk task begins executing.
	OnTaskStart *OnTaskStartCallback

	// OnTaskComplete is called when a chunk task finishes.
	OnTaskComplete *OnTaskCompleteCallback

	// OnPassComplete is called when a progressive pass finishes.
	OnPassComplete *OnPassCompleteCallback
}

// LoadPolicy controls how much history one granularity accumulates and how
// the history is chunked while loading progressively.
type LoadPolicy struct {
	// InitialDays is the number of days fetched up front so recent data is
	// available quickly.
	InitialDays int `json:"initial_days" yaml:"initial_days" jsonschema:"title=Initial Days,description=Days of history loaded during the initial pass" validate:"required,gt=0"`

	// MaxDays is the history depth the engine works backward toward.
	MaxDays int `json:"max_days" yaml:"max_days" jsonschema:"title=Max Days,description=Total days of history to accumulate" validate:"required,gtefield=InitialDays"`

	// ChunkDays is the window size of one progressive chunk.
	ChunkDays int `json:"chunk_days" yaml:"chunk_days" jsonschema:"title=Chunk Days,description=Days fetched per progressive chunk" validate:"required,gt=0"`
}

// BackfillEngineConfig holds the configuration for the backfill engine.
type BackfillEngineConfig struct {
	// Symbols are the trading symbols to backfill.
	Symbols []string `json:"symbols" yaml:"symbols" jsonschema:"title=Symbols,description=Trading symbols to backfill" validate:"required,min=1,dive,required"`

	// Policies maps each granularity to its load policy. Granularities
	// without an entry are not loaded.
	Policies map[types.Granularity]LoadPolicy `json:"policies" yaml:"policies" jsonschema:"title=Load Policies,description=Per-granularity history depth and chunking" validate:"required,min=1,dive"`

	// MaxConcurrentTasks caps how many chunk tasks run at once (default: 3).
	MaxConcurrentTasks int `json:"max_concurrent_tasks" yaml:"max_concurrent_tasks" jsonschema:"description=Maximum chunk tasks running concurrently,default=3" validate:"omitempty,gte=1"`

	// BackgroundIntervalMinutes is how often a progressive pass runs after
	// the initial load completes (default: 60).
	BackgroundIntervalMinutes int `json:"background_interval_minutes" yaml:"background_interval_minutes" jsonschema:"description=Minutes between progressive passes,default=60" validate:"omitempty,gte=1"`

	// RequestsPerMinute is the provider request budget shared by all tasks
	// (default: 600). Throttling is best effort - short bursts can exceed
	// the average rate.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" jsonschema:"description=Provider request budget per minute,default=600" validate:"omitempty,gte=1"`
}

// Validate checks the engine configuration, including the policy table.
func (c *BackfillEngineConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid engine configuration", err)
	}

	for granularity := range c.Policies {
		if !granularity.IsValid() {
			return errors.Newf(errors.ErrCodeInvalidGranularity, "unsupported granularity in policy table: %q", granularity)
		}
	}

	return nil
}

// DefaultPolicies returns the built-in load policy table. Finer granularities
// start shallow and stay shallow; coarser ones accumulate years of history.
func DefaultPolicies() map[types.Granularity]LoadPolicy {
	return map[types.Granularity]LoadPolicy{
		types.GranularityOneMinute:      {InitialDays: 1, MaxDays: 7, ChunkDays: 1},
		types.GranularityFiveMinutes:    {InitialDays: 2, MaxDays: 30, ChunkDays: 2},
		types.GranularityFifteenMinutes: {InitialDays: 3, MaxDays: 60, ChunkDays: 5},
		types.GranularityOneHour:        {InitialDays: 7, MaxDays: 180, ChunkDays: 10},
		types.GranularitySixHours:       {InitialDays: 30, MaxDays: 365, ChunkDays: 30},
		types.GranularityOneDay:         {InitialDays: 90, MaxDays: 1460, ChunkDays: 90},
	}
}

// DefaultConfig returns a configuration with the built-in policy table and
// default limits for the given symbols.
func DefaultConfig(symbols []string) BackfillEngineConfig {
	return BackfillEngineConfig{
		Symbols:                   symbols,
		Policies:                  DefaultPolicies(),
		MaxConcurrentTasks:        DefaultMaxConcurrentTasks,
		BackgroundIntervalMinutes: DefaultBackgroundIntervalMinutes,
		RequestsPerMinute:         DefaultRequestsPerMinute,
	}
}

// GetConfigSchema returns the JSON schema for BackfillEngineConfig.
func GetConfigSchema() (string, error) {
	return utils.ToJSONSchema(&BackfillEngineConfig{}) //nolint:exhaustruct // Empty config for schema generation
}

// BackfillEngine loads historical candles progressively: the most recent
// window for every symbol and granularity first, then older history extended
// chunk by chunk in background passes.
type BackfillEngine interface {
	// Start runs the initial load and, when at least one task succeeds,
	// begins background progressive loading. Blocks until the initial load
	// completes. When every initial task fails the engine returns to idle
	// and an error is returned.
	Start(ctx context.Context, callbacks BackfillCallbacks) error

	// UpdateLatest fetches and stores the newest candle for every configured
	// granularity of the symbol. Callable in any state.
	UpdateLatest(ctx context.Context, symbol string) error

	// State returns the current engine state.
	State() types.EngineState

	// Stats returns a snapshot of the run counters.
	Stats() types.BackfillStats

	// Stop cancels background work, clears in-flight task bookkeeping, and
	// moves the engine to the stopped state. The engine can be started again
	// afterwards.
	Stop()

	// GetConfigSchema returns the JSON schema for engine configuration.
	GetConfigSchema() (string, error)
}
