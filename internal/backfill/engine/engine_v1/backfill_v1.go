package engine_v1

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rxtech-lab/argo-backfill/internal/backfill/engine"
	"github.com/rxtech-lab/argo-backfill/internal/logger"
	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/pkg/cache"
	"github.com/rxtech-lab/argo-backfill/pkg/errors"
	"github.com/rxtech-lab/argo-backfill/pkg/marketdata/provider"
)

// BackfillEngineV1 implements the BackfillEngine interface. One engine runs
// one session at a time; after Stop it can be started again with a fresh run
// context.
type BackfillEngineV1 struct {
	config   engine.BackfillEngineConfig
	provider provider.Provider
	cache    cache.Cache
	log      *logger.Logger

	fetcher  *chunkFetcher
	inflight *inflightSet
	sem      chan struct{}

	backgroundInterval time.Duration

	// mu guards state, callbacks, and the run context of the active session.
	mu        sync.Mutex
	state     types.EngineState
	callbacks engine.BackfillCallbacks
	runCancel context.CancelFunc
	runWg     sync.WaitGroup

	statsMu sync.Mutex
	stats   types.BackfillStats

	// now supplies the current time; tests substitute a fixed clock.
	now func() time.Time
}

// NewBackfillEngineV1 creates a backfill engine from its collaborators: the
// provider candles are fetched from, the cache they are stored in, and the
// configuration controlling depth, chunking, and throughput. A nil logger
// falls back to the default production logger.
func NewBackfillEngineV1(config engine.BackfillEngineConfig, dataProvider provider.Provider, store cache.Cache, log *logger.Logger) (*BackfillEngineV1, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if dataProvider == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "provider not set")
	}

	if store == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "cache not set")
	}

	if log == nil {
		var err error

		log, err = logger.NewLogger()
		if err != nil {
			return nil, err
		}
	}

	// Set default values
	if config.MaxConcurrentTasks <= 0 {
		config.MaxConcurrentTasks = engine.DefaultMaxConcurrentTasks
	}

	if config.BackgroundIntervalMinutes <= 0 {
		config.BackgroundIntervalMinutes = engine.DefaultBackgroundIntervalMinutes
	}

	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = engine.DefaultRequestsPerMinute
	}

	limiter := rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), config.MaxConcurrentTasks)

	return &BackfillEngineV1{
		config:             config,
		provider:           dataProvider,
		cache:              store,
		log:                log,
		fetcher:            newChunkFetcher(dataProvider, store, limiter, log),
		inflight:           newInflightSet(),
		sem:                make(chan struct{}, config.MaxConcurrentTasks),
		backgroundInterval: time.Duration(config.BackgroundIntervalMinutes) * time.Minute,
		mu:                 sync.Mutex{},
		state:              types.EngineStateIdle,
		callbacks:          engine.BackfillCallbacks{OnStateChange: nil, OnTaskStart: nil, OnTaskComplete: nil, OnPassComplete: nil},
		runCancel:          nil,
		runWg:              sync.WaitGroup{},
		statsMu:            sync.Mutex{},
		stats:              types.NewBackfillStats(config.Symbols),
		now:                time.Now,
	}, nil
}

// Start implements engine.BackfillEngine. It blocks until the initial load
// completes: on success background progressive loading begins, and when every
// initial task fails the engine returns to idle.
func (e *BackfillEngineV1) Start(ctx context.Context, callbacks engine.BackfillCallbacks) error {
	e.mu.Lock()

	if e.state == types.EngineStateInitialLoading || e.state == types.EngineStateBackgroundActive {
		e.mu.Unlock()

		return errors.New(errors.ErrCodeEngineAlreadyRunning, "engine already running - call Stop() first")
	}

	runCtx, cancel := context.WithCancel(ctx)
	oldState := e.state
	e.state = types.EngineStateInitialLoading
	e.runCancel = cancel
	e.callbacks = callbacks
	e.mu.Unlock()

	e.resetStats()
	e.emitStateChange(callbacks, oldState, types.EngineStateInitialLoading)

	tasks := buildInitialTasks(e.config.Policies, e.config.Symbols, e.now().UTC())

	e.log.Info("Initial load starting",
		zap.Strings("symbols", e.config.Symbols),
		zap.Int("tasks", len(tasks)),
	)

	succeeded := e.executePass(runCtx, tasks, callbacks)

	if runCtx.Err() != nil {
		// Covers both Stop() and parent context cancellation; the transition
		// is a no-op when Stop already moved the state.
		e.transition(types.EngineStateInitialLoading, types.EngineStateStopped)
		cancel()

		return errors.Wrap(errors.ErrCodeEngineStopped, "initial load interrupted", runCtx.Err())
	}

	if len(tasks) > 0 && succeeded == 0 {
		e.transition(types.EngineStateInitialLoading, types.EngineStateIdle)
		cancel()

		return errors.New(errors.ErrCodeInitialLoadFailed, "initial load failed for all tasks")
	}

	if !e.transition(types.EngineStateInitialLoading, types.EngineStateBackgroundActive) {
		return errors.New(errors.ErrCodeEngineStopped, "engine stopped during initial load")
	}

	e.log.Info("Initial load complete",
		zap.Int64("tasks_succeeded", succeeded),
	)

	e.runWg.Add(1)

	go e.backgroundLoop(runCtx, callbacks)

	return nil
}

// UpdateLatest implements engine.BackfillEngine. It fetches and stores the
// newest candle for every granularity in the policy table, bounded by the
// same concurrency limit as chunk tasks.
func (e *BackfillEngineV1) UpdateLatest(ctx context.Context, symbol string) error {
	if symbol == "" {
		return errors.New(errors.ErrCodeInvalidSymbol, "symbol is required")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.config.MaxConcurrentTasks)

	for _, granularity := range types.AllGranularities() {
		if _, ok := e.config.Policies[granularity]; !ok {
			continue
		}

		group.Go(func() error {
			stored, err := e.fetcher.fetchLatest(groupCtx, symbol, granularity)
			if err != nil {
				return err
			}

			e.addCandles(int64(stored))

			return nil
		})
	}

	return group.Wait()
}

// State implements engine.BackfillEngine.
func (e *BackfillEngineV1) State() types.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// Stats implements engine.BackfillEngine.
func (e *BackfillEngineV1) Stats() types.BackfillStats {
	e.statsMu.Lock()
	snapshot := e.stats
	e.statsMu.Unlock()

	snapshot.State = e.State()

	return snapshot
}

// Stop implements engine.BackfillEngine. It cancels the run context, waits
// for the background loop to exit, and clears the in-flight set. Safe to call
// from any state; stopping a stopped engine is a no-op.
func (e *BackfillEngineV1) Stop() {
	e.mu.Lock()

	if e.state == types.EngineStateStopped {
		e.mu.Unlock()

		return
	}

	oldState := e.state
	e.state = types.EngineStateStopped
	cancel := e.runCancel
	e.runCancel = nil
	callbacks := e.callbacks
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	e.runWg.Wait()
	e.inflight.Clear()

	e.emitStateChange(callbacks, oldState, types.EngineStateStopped)
	e.log.Info("Engine stopped")
}

// GetConfigSchema implements engine.BackfillEngine.
func (e *BackfillEngineV1) GetConfigSchema() (string, error) {
	return engine.GetConfigSchema()
}

// backgroundLoop runs one progressive pass immediately, then one per tick
// until the run context is cancelled. A failed pass is not retried early; the
// next tick covers it.
func (e *BackfillEngineV1) backgroundLoop(ctx context.Context, callbacks engine.BackfillCallbacks) {
	defer e.runWg.Done()

	e.runProgressivePass(ctx, callbacks)

	ticker := time.NewTicker(e.backgroundInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Settles the state when the parent context was cancelled without
			// Stop(); a no-op when Stop already moved the state.
			e.transition(types.EngineStateBackgroundActive, types.EngineStateStopped)

			return
		case <-ticker.C:
			e.runProgressivePass(ctx, callbacks)
		}
	}
}

// runProgressivePass builds and executes one round of progressive tasks.
func (e *BackfillEngineV1) runProgressivePass(ctx context.Context, callbacks engine.BackfillCallbacks) {
	if ctx.Err() != nil {
		return
	}

	tasks, err := buildProgressiveTasks(ctx, e.cache, e.config.Policies, e.config.Symbols, e.now().UTC())
	if err != nil {
		e.log.Warn("Progressive task build failed, retrying next pass",
			zap.Error(err),
		)

		return
	}

	if len(tasks) == 0 {
		e.log.Debug("History complete, nothing to backfill")
	} else {
		e.log.Info("Progressive pass starting",
			zap.Int("tasks", len(tasks)),
		)

		e.executePass(ctx, tasks, callbacks)
	}

	if ctx.Err() != nil {
		return
	}

	stats := e.passCompleted()

	if callbacks.OnPassComplete != nil {
		(*callbacks.OnPassComplete)(stats)
	}
}

// executePass runs tasks in priority order with bounded concurrency and
// returns how many succeeded. Each task key is held in the in-flight set for
// exactly the task's execution; identical windows already in flight are
// skipped.
func (e *BackfillEngineV1) executePass(ctx context.Context, tasks []types.BackfillTask, callbacks engine.BackfillCallbacks) int64 {
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)

loop:
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}

		if !e.inflight.Add(task.Key()) {
			e.taskSkipped()
			e.log.Debug("Task window already in flight, skipping",
				zap.String("task", task.String()),
			)

			continue
		}

		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			e.inflight.Remove(task.Key())

			break loop
		}

		wg.Add(1)

		go func(task types.BackfillTask) {
			defer wg.Done()
			defer func() { <-e.sem }()
			defer e.inflight.Remove(task.Key())

			if callbacks.OnTaskStart != nil {
				(*callbacks.OnTaskStart)(task)
			}

			stored, err := e.fetcher.fetchChunk(ctx, task)

			switch {
			case err != nil && ctx.Err() != nil:
				// Cancelled mid-task; not a data failure.
			case err != nil:
				e.taskFailed()
				e.log.Warn("Task failed",
					zap.String("task", task.String()),
					zap.Error(err),
				)
			default:
				e.taskSucceeded(int64(stored))
				succeeded.Add(1)
			}

			if callbacks.OnTaskComplete != nil {
				(*callbacks.OnTaskComplete)(task, stored, err)
			}
		}(task)
	}

	wg.Wait()

	return succeeded.Load()
}

// transition moves the engine from one state to another and emits the
// change. It reports false without side effects when the engine is no longer
// in the from state.
func (e *BackfillEngineV1) transition(from, to types.EngineState) bool {
	e.mu.Lock()

	if e.state != from {
		e.mu.Unlock()

		return false
	}

	e.state = to
	callbacks := e.callbacks
	e.mu.Unlock()

	e.emitStateChange(callbacks, from, to)

	return true
}

func (e *BackfillEngineV1) emitStateChange(callbacks engine.BackfillCallbacks, from, to types.EngineState) {
	e.log.Info("Engine state changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	if callbacks.OnStateChange != nil {
		(*callbacks.OnStateChange)(from, to)
	}
}

func (e *BackfillEngineV1) resetStats() {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.stats = types.NewBackfillStats(e.config.Symbols)
}

func (e *BackfillEngineV1) taskSucceeded(candles int64) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.stats.TasksSucceeded++
	e.stats.CandlesStored += candles
	e.stats.LastUpdated = e.now().UTC()
}

func (e *BackfillEngineV1) taskFailed() {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.stats.TasksFailed++
	e.stats.LastUpdated = e.now().UTC()
}

func (e *BackfillEngineV1) taskSkipped() {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.stats.TasksSkipped++
	e.stats.LastUpdated = e.now().UTC()
}

func (e *BackfillEngineV1) addCandles(candles int64) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.stats.CandlesStored += candles
	e.stats.LastUpdated = e.now().UTC()
}

func (e *BackfillEngineV1) passCompleted() types.BackfillStats {
	e.statsMu.Lock()
	e.stats.PassesCompleted++
	e.stats.LastUpdated = e.now().UTC()
	snapshot := e.stats
	e.statsMu.Unlock()

	snapshot.State = e.State()

	return snapshot
}

// Verify BackfillEngineV1 implements engine.BackfillEngine interface.
var _ engine.BackfillEngine = (*BackfillEngineV1)(nil)
