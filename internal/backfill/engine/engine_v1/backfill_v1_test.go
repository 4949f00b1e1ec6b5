package engine_v1

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-backfill/internal/backfill/engine"
	"github.com/rxtech-lab/argo-backfill/internal/logger"
	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/pkg/cache"
	"github.com/rxtech-lab/argo-backfill/pkg/errors"
)

// fixedNow is midnight UTC so windows derived from it are aligned for every
// supported granularity.
var fixedNow = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

// newTestLogger builds a silent logger for engine tests.
func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.OutputPaths = []string{}
	loggerConfig.ErrorOutputPaths = []string{}

	zapLogger, err := loggerConfig.Build()
	if err != nil {
		t.Fatalf("failed to build test logger: %v", err)
	}

	return &logger.Logger{Logger: zapLogger}
}

func newCandle(symbol string, bucket time.Time) types.Candle {
	return types.Candle{
		Symbol: symbol,
		Time:   bucket,
		Open:   100,
		High:   101,
		Low:    99,
		Close:  100.5,
		Volume: 10,
	}
}

// candlesForWindow fills every aligned bucket inside [Start, End).
func candlesForWindow(symbol string, granularity types.Granularity, window types.TimeRange) []types.Candle {
	var candles []types.Candle

	for t := granularity.Align(window.Start); t.Before(window.End); t = t.Add(granularity.Duration()) {
		if t.Before(window.Start) {
			continue
		}

		candles = append(candles, newCandle(symbol, t))
	}

	return candles
}

type fetchCall struct {
	symbol      string
	granularity types.Granularity
	window      optional.Option[types.TimeRange]
}

// fakeProvider serves synthetic candles for any requested window and records
// every call. Failure and blocking behavior are configurable per test.
type fakeProvider struct {
	mu            sync.Mutex
	calls         []fetchCall
	concurrent    int
	maxConcurrent int

	// failAll fails every call; failCalls fails specific 0-based call indexes.
	failAll   bool
	failCalls map[int]bool
	// empty makes every call return no candles.
	empty bool
	// blockCh, when set, blocks calls until the channel closes or the
	// context is cancelled.
	blockCh chan struct{}
	// latest is the bucket served for latest-candle requests.
	latest time.Time
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		latest: fixedNow.Add(-time.Minute),
	}
}

func (p *fakeProvider) FetchCandles(ctx context.Context, symbol string, granularity types.Granularity, window optional.Option[types.TimeRange]) ([]types.Candle, error) {
	p.mu.Lock()
	index := len(p.calls)
	p.calls = append(p.calls, fetchCall{symbol: symbol, granularity: granularity, window: window})
	p.concurrent++

	if p.concurrent > p.maxConcurrent {
		p.maxConcurrent = p.concurrent
	}

	fail := p.failAll || p.failCalls[index]
	empty := p.empty
	blockCh := p.blockCh
	latest := p.latest
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.concurrent--
		p.mu.Unlock()
	}()

	if blockCh != nil {
		select {
		case <-blockCh:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if fail {
		return nil, fmt.Errorf("upstream unavailable")
	}

	if empty {
		return nil, nil
	}

	if window.IsNone() {
		return []types.Candle{newCandle(symbol, granularity.Align(latest))}, nil
	}

	return candlesForWindow(symbol, granularity, window.Unwrap()), nil
}

func (p *fakeProvider) Name() string {
	return "fake"
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.calls)
}

func (p *fakeProvider) recordedCalls() []fetchCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]fetchCall(nil), p.calls...)
}

func (p *fakeProvider) peakConcurrent() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.maxConcurrent
}

type BackfillEngineV1TestSuite struct {
	suite.Suite
	provider *fakeProvider
	cache    *cache.MemoryCache
}

func TestBackfillEngineV1Suite(t *testing.T) {
	suite.Run(t, new(BackfillEngineV1TestSuite))
}

func (suite *BackfillEngineV1TestSuite) SetupTest() {
	suite.provider = newFakeProvider()
	suite.cache = cache.NewMemoryCache(newTestLogger(suite.T()))
}

// newEngine builds an engine over the suite's fake provider and memory cache
// with a fixed clock.
func (suite *BackfillEngineV1TestSuite) newEngine(config engine.BackfillEngineConfig) *BackfillEngineV1 {
	eng, err := NewBackfillEngineV1(config, suite.provider, suite.cache, newTestLogger(suite.T()))
	suite.Require().NoError(err)

	eng.now = func() time.Time { return fixedNow }

	return eng
}

// settledConfig uses MaxDays equal to InitialDays so the initial load settles
// coverage at the policy floor and progressive passes have nothing to do.
func settledConfig(symbols []string, policies map[types.Granularity]engine.LoadPolicy) engine.BackfillEngineConfig {
	return engine.BackfillEngineConfig{
		Symbols:            symbols,
		Policies:           policies,
		RequestsPerMinute:  60000,
		MaxConcurrentTasks: 3,
	}
}

func (suite *BackfillEngineV1TestSuite) TestNewEngineRequiresProvider() {
	config := engine.DefaultConfig([]string{"BTCUSDT"})

	_, err := NewBackfillEngineV1(config, nil, suite.cache, newTestLogger(suite.T()))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))
}

func (suite *BackfillEngineV1TestSuite) TestNewEngineRequiresCache() {
	config := engine.DefaultConfig([]string{"BTCUSDT"})

	_, err := NewBackfillEngineV1(config, suite.provider, nil, newTestLogger(suite.T()))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))
}

func (suite *BackfillEngineV1TestSuite) TestNewEngineRejectsInvalidConfig() {
	config := engine.DefaultConfig(nil)

	_, err := NewBackfillEngineV1(config, suite.provider, suite.cache, newTestLogger(suite.T()))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *BackfillEngineV1TestSuite) TestNewEngineAppliesDefaults() {
	config := engine.BackfillEngineConfig{
		Symbols:  []string{"BTCUSDT"},
		Policies: engine.DefaultPolicies(),
	}

	eng, err := NewBackfillEngineV1(config, suite.provider, suite.cache, newTestLogger(suite.T()))
	suite.Require().NoError(err)

	suite.Equal(engine.DefaultMaxConcurrentTasks, eng.config.MaxConcurrentTasks)
	suite.Equal(engine.DefaultBackgroundIntervalMinutes, eng.config.BackgroundIntervalMinutes)
	suite.Equal(engine.DefaultRequestsPerMinute, eng.config.RequestsPerMinute)
	suite.Equal(types.EngineStateIdle, eng.State())
}

func (suite *BackfillEngineV1TestSuite) TestStartRunsInitialLoad() {
	config := settledConfig([]string{"BTCUSDT"}, map[types.Granularity]engine.LoadPolicy{
		types.GranularityFiveMinutes: {InitialDays: 2, MaxDays: 2, ChunkDays: 2},
		types.GranularityOneHour:     {InitialDays: 7, MaxDays: 7, ChunkDays: 7},
	})
	eng := suite.newEngine(config)

	suite.Require().NoError(eng.Start(context.Background(), engine.BackfillCallbacks{}))
	defer eng.Stop()

	suite.Equal(types.EngineStateBackgroundActive, eng.State())

	fiveMinCount, err := suite.cache.Count(context.Background(), "BTCUSDT", types.GranularityFiveMinutes)
	suite.Require().NoError(err)
	suite.Equal(2*288, fiveMinCount)

	hourCount, err := suite.cache.Count(context.Background(), "BTCUSDT", types.GranularityOneHour)
	suite.Require().NoError(err)
	suite.Equal(7*24, hourCount)

	stats := eng.Stats()
	suite.Equal(int64(2), stats.TasksSucceeded)
	suite.Equal(int64(2*288+7*24), stats.CandlesStored)
	suite.Zero(stats.TasksFailed)
}

func (suite *BackfillEngineV1TestSuite) TestStartFailsWhenAllTasksFail() {
	suite.provider.failAll = true

	config := settledConfig([]string{"BTCUSDT"}, map[types.Granularity]engine.LoadPolicy{
		types.GranularityFiveMinutes: {InitialDays: 2, MaxDays: 2, ChunkDays: 2},
		types.GranularityOneHour:     {InitialDays: 7, MaxDays: 7, ChunkDays: 7},
	})
	eng := suite.newEngine(config)

	err := eng.Start(context.Background(), engine.BackfillCallbacks{})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInitialLoadFailed))
	suite.Equal(types.EngineStateIdle, eng.State())
	suite.Equal(int64(2), eng.Stats().TasksFailed)
}

func (suite *BackfillEngineV1TestSuite) TestStartSucceedsOnPartialFailure() {
	// The first task's sub-windows fail; the other task succeeds, which is
	// enough for the engine to go background-active. The immediate
	// progressive pass then retries the failed window and succeeds.
	suite.provider.failCalls = map[int]bool{0: true, 1: true}

	config := settledConfig([]string{"BTCUSDT"}, map[types.Granularity]engine.LoadPolicy{
		types.GranularityFiveMinutes: {InitialDays: 2, MaxDays: 2, ChunkDays: 2},
	})
	config.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	config.MaxConcurrentTasks = 1

	eng := suite.newEngine(config)

	passCh := make(chan types.BackfillStats, 1)
	onPass := engine.OnPassCompleteCallback(func(stats types.BackfillStats) {
		passCh <- stats
	})

	suite.Require().NoError(eng.Start(context.Background(), engine.BackfillCallbacks{OnPassComplete: &onPass}))
	defer eng.Stop()

	var passStats types.BackfillStats
	select {
	case passStats = <-passCh:
	case <-time.After(2 * time.Second):
		suite.FailNow("progressive pass did not complete")
	}

	suite.Equal(int64(2), passStats.TasksSucceeded)
	suite.Equal(int64(1), passStats.TasksFailed)

	for _, symbol := range []string{"BTCUSDT", "ETHUSDT"} {
		count, err := suite.cache.Count(context.Background(), symbol, types.GranularityFiveMinutes)
		suite.Require().NoError(err)
		suite.Equal(2*288, count, "expected full coverage for %s after retry", symbol)
	}
}

func (suite *BackfillEngineV1TestSuite) TestStartWhileRunningReturnsError() {
	config := settledConfig([]string{"BTCUSDT"}, map[types.Granularity]engine.LoadPolicy{
		types.GranularityOneDay: {InitialDays: 1, MaxDays: 1, ChunkDays: 1},
	})
	eng := suite.newEngine(config)

	suite.Require().NoError(eng.Start(context.Background(), engine.BackfillCallbacks{}))
	defer eng.Stop()

	err := eng.Start(context.Background(), engine.BackfillCallbacks{})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeEngineAlreadyRunning))
}

func (suite *BackfillEngineV1TestSuite) TestStopAndRestart() {
	config := settledConfig([]string{"BTCUSDT"}, map[types.Granularity]engine.LoadPolicy{
		types.GranularityOneDay: {InitialDays: 1, MaxDays: 1, ChunkDays: 1},
	})
	eng := suite.newEngine(config)

	suite.Require().NoError(eng.Start(context.Background(), engine.BackfillCallbacks{}))
	eng.Stop()
	suite.Equal(types.EngineStateStopped, eng.State())

	// A stopped engine can run a fresh session.
	suite.Require().NoError(eng.Start(context.Background(), engine.BackfillCallbacks{}))
	defer eng.Stop()

	suite.Equal(types.EngineStateBackgroundActive, eng.State())
	suite.Equal(int64(1), eng.Stats().TasksSucceeded)
}

func (suite *BackfillEngineV1TestSuite) TestStopDuringInitialLoad() {
	block := make(chan struct{})
	suite.provider.blockCh = block

	config := settledConfig([]string{"BTCUSDT"}, map[types.Granularity]engine.LoadPolicy{
		types.GranularityFiveMinutes: {InitialDays: 2, MaxDays: 2, ChunkDays: 2},
		types.GranularityOneHour:     {InitialDays: 7, MaxDays: 7, ChunkDays: 7},
	})
	eng := suite.newEngine(config)

	errCh := make(chan error, 1)

	go func() {
		errCh <- eng.Start(context.Background(), engine.BackfillCallbacks{})
	}()

	suite.Require().Eventually(func() bool {
		return suite.provider.callCount() > 0
	}, time.Second, 5*time.Millisecond)

	eng.Stop()

	err := <-errCh
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeEngineStopped))
	suite.Equal(types.EngineStateStopped, eng.State())
	suite.Zero(eng.inflight.Len())
}

func (suite *BackfillEngineV1TestSuite) TestConcurrencyBounded() {
	block := make(chan struct{})
	suite.provider.blockCh = block

	policies := make(map[types.Granularity]engine.LoadPolicy)
	for _, granularity := range types.AllGranularities() {
		policies[granularity] = engine.LoadPolicy{InitialDays: 1, MaxDays: 1, ChunkDays: 1}
	}

	config := settledConfig([]string{"BTCUSDT", "ETHUSDT"}, policies)
	eng := suite.newEngine(config)

	errCh := make(chan error, 1)

	go func() {
		errCh <- eng.Start(context.Background(), engine.BackfillCallbacks{})
	}()

	// Twelve tasks are pending but only three may fetch at once.
	suite.Require().Eventually(func() bool {
		return suite.provider.peakConcurrent() == 3
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	suite.Equal(3, suite.provider.peakConcurrent())

	close(block)

	suite.Require().NoError(<-errCh)
	defer eng.Stop()

	suite.Equal(int64(12), eng.Stats().TasksSucceeded)
}

func (suite *BackfillEngineV1TestSuite) TestProgressivePassExtendsCoverage() {
	config := settledConfig([]string{"BTCUSDT"}, map[types.Granularity]engine.LoadPolicy{
		types.GranularityFiveMinutes: {InitialDays: 2, MaxDays: 6, ChunkDays: 2},
	})
	eng := suite.newEngine(config)

	passCh := make(chan types.BackfillStats, 1)
	onPass := engine.OnPassCompleteCallback(func(stats types.BackfillStats) {
		passCh <- stats
	})

	callbacks := engine.BackfillCallbacks{OnPassComplete: &onPass}

	suite.Require().NoError(eng.Start(context.Background(), callbacks))
	defer eng.Stop()

	var passStats types.BackfillStats
	select {
	case passStats = <-passCh:
	case <-time.After(2 * time.Second):
		suite.FailNow("progressive pass did not complete")
	}

	suite.Equal(int64(1), passStats.PassesCompleted)

	count, err := suite.cache.Count(context.Background(), "BTCUSDT", types.GranularityFiveMinutes)
	suite.Require().NoError(err)
	suite.Equal(6*288, count)

	coverage, err := suite.cache.Coverage(context.Background(), "BTCUSDT", types.GranularityFiveMinutes)
	suite.Require().NoError(err)
	suite.Require().True(coverage.IsSome())
	suite.Equal(fixedNow.Add(-6*24*time.Hour), coverage.Unwrap().Start)

	// One initial task plus two progressive chunks.
	suite.Equal(int64(3), eng.Stats().TasksSucceeded)
}

func (suite *BackfillEngineV1TestSuite) TestUpdateLatestWorksWithoutStart() {
	config := settledConfig([]string{"BTCUSDT"}, map[types.Granularity]engine.LoadPolicy{
		types.GranularityFiveMinutes: {InitialDays: 2, MaxDays: 2, ChunkDays: 2},
		types.GranularityOneHour:     {InitialDays: 7, MaxDays: 7, ChunkDays: 7},
	})
	eng := suite.newEngine(config)

	suite.Equal(types.EngineStateIdle, eng.State())
	suite.Require().NoError(eng.UpdateLatest(context.Background(), "BTCUSDT"))

	for _, granularity := range []types.Granularity{types.GranularityFiveMinutes, types.GranularityOneHour} {
		count, err := suite.cache.Count(context.Background(), "BTCUSDT", granularity)
		suite.Require().NoError(err)
		suite.Equal(1, count, "expected one latest candle for %s", granularity)
	}

	for _, call := range suite.provider.recordedCalls() {
		suite.True(call.window.IsNone(), "latest fetches must not carry a window")
	}
}

func (suite *BackfillEngineV1TestSuite) TestUpdateLatestRequiresSymbol() {
	config := settledConfig([]string{"BTCUSDT"}, map[types.Granularity]engine.LoadPolicy{
		types.GranularityOneDay: {InitialDays: 1, MaxDays: 1, ChunkDays: 1},
	})
	eng := suite.newEngine(config)

	err := eng.UpdateLatest(context.Background(), "")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidSymbol))
}

func (suite *BackfillEngineV1TestSuite) TestUpdateLatestPropagatesFailure() {
	suite.provider.failAll = true

	config := settledConfig([]string{"BTCUSDT"}, map[types.Granularity]engine.LoadPolicy{
		types.GranularityOneDay: {InitialDays: 1, MaxDays: 1, ChunkDays: 1},
	})
	eng := suite.newEngine(config)

	err := eng.UpdateLatest(context.Background(), "BTCUSDT")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeProviderFetchFailed))
}

func (suite *BackfillEngineV1TestSuite) TestCallbackSequence() {
	config := settledConfig([]string{"BTCUSDT"}, map[types.Granularity]engine.LoadPolicy{
		types.GranularityOneHour: {InitialDays: 1, MaxDays: 1, ChunkDays: 1},
	})
	eng := suite.newEngine(config)

	var (
		mu          sync.Mutex
		transitions []string
		started     []string
		completed   []string
	)

	onState := engine.OnStateChangeCallback(func(from, to types.EngineState) {
		mu.Lock()
		defer mu.Unlock()

		transitions = append(transitions, string(from)+">"+string(to))
	})
	onTaskStart := engine.OnTaskStartCallback(func(task types.BackfillTask) {
		mu.Lock()
		defer mu.Unlock()

		started = append(started, task.Key())
	})
	onTaskComplete := engine.OnTaskCompleteCallback(func(task types.BackfillTask, candles int, err error) {
		mu.Lock()
		defer mu.Unlock()

		completed = append(completed, task.Key())
	})

	callbacks := engine.BackfillCallbacks{
		OnStateChange:  &onState,
		OnTaskStart:    &onTaskStart,
		OnTaskComplete: &onTaskComplete,
	}

	suite.Require().NoError(eng.Start(context.Background(), callbacks))
	eng.Stop()

	mu.Lock()
	defer mu.Unlock()

	suite.Equal([]string{
		"idle>initial_loading",
		"initial_loading>background_active",
		"background_active>stopped",
	}, transitions)
	suite.Len(started, 1)
	suite.Equal(started, completed)
}

func (suite *BackfillEngineV1TestSuite) TestDedupSkipsWindowAlreadyInFlight() {
	block := make(chan struct{})
	suite.provider.blockCh = block

	config := settledConfig([]string{"BTCUSDT"}, map[types.Granularity]engine.LoadPolicy{
		types.GranularityOneHour: {InitialDays: 1, MaxDays: 1, ChunkDays: 1},
	})
	eng := suite.newEngine(config)

	task := buildInitialTasks(config.Policies, config.Symbols, fixedNow)[0]
	duplicate := task
	duplicate.ID = "duplicate"

	done := make(chan int64, 1)

	go func() {
		done <- eng.executePass(context.Background(), []types.BackfillTask{task, duplicate}, engine.BackfillCallbacks{})
	}()

	// The first task is blocked inside the provider, so the duplicate is
	// evaluated while the key is still in flight.
	suite.Require().Eventually(func() bool {
		return suite.provider.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	close(block)

	suite.Equal(int64(1), <-done)
	suite.Equal(int64(1), eng.Stats().TasksSkipped)
	suite.Zero(eng.inflight.Len())
}

func (suite *BackfillEngineV1TestSuite) TestStopWithoutStart() {
	config := settledConfig([]string{"BTCUSDT"}, map[types.Granularity]engine.LoadPolicy{
		types.GranularityOneDay: {InitialDays: 1, MaxDays: 1, ChunkDays: 1},
	})
	eng := suite.newEngine(config)

	eng.Stop()
	suite.Equal(types.EngineStateStopped, eng.State())

	// Stopping again is a no-op.
	eng.Stop()
	suite.Equal(types.EngineStateStopped, eng.State())
}

func (suite *BackfillEngineV1TestSuite) TestGetConfigSchema() {
	config := settledConfig([]string{"BTCUSDT"}, map[types.Granularity]engine.LoadPolicy{
		types.GranularityOneDay: {InitialDays: 1, MaxDays: 1, ChunkDays: 1},
	})
	eng := suite.newEngine(config)

	schema, err := eng.GetConfigSchema()
	suite.NoError(err)
	suite.Contains(schema, "policies")
}
