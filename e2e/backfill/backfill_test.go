package backfill_test

import (
	"context"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-backfill/e2e/backfill/mockserver"
	"github.com/rxtech-lab/argo-backfill/internal/backfill/engine"
	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/pkg/errors"
)

func (suite *BackfillE2ETestSuite) TestInitialLoadPopulatesCache() {
	client := suite.newClient(suite.server, hourlyPolicy(), "BTCUSDT")

	var (
		mu          sync.Mutex
		completed   int
		transitions []types.EngineState
	)

	onStateChange := engine.OnStateChangeCallback(func(oldState, newState types.EngineState) {
		mu.Lock()
		defer mu.Unlock()

		transitions = append(transitions, newState)
	})
	onTaskComplete := engine.OnTaskCompleteCallback(func(task types.BackfillTask, candles int, err error) {
		mu.Lock()
		defer mu.Unlock()

		completed++
	})

	err := client.Start(context.Background(), engine.BackfillCallbacks{
		OnStateChange:  &onStateChange,
		OnTaskComplete: &onTaskComplete,
	})
	suite.Require().NoError(err)

	suite.Equal(types.EngineStateBackgroundActive, client.State())

	mu.Lock()
	suite.GreaterOrEqual(completed, 1)
	suite.Contains(transitions, types.EngineStateInitialLoading)
	suite.Contains(transitions, types.EngineStateBackgroundActive)
	mu.Unlock()

	entries, err := client.Coverage(context.Background(), "BTCUSDT")
	suite.Require().NoError(err)
	suite.Require().Len(entries, 1)
	suite.Equal(types.GranularityOneHour, entries[0].Granularity)
	suite.GreaterOrEqual(entries[0].Candles, 24)
	suite.True(entries[0].Extent.IsSome())

	stats := client.Stats()
	suite.GreaterOrEqual(stats.TasksSucceeded, int64(1))
	suite.GreaterOrEqual(stats.CandlesStored, int64(24))
	suite.GreaterOrEqual(suite.server.RequestCount(), 1)
}

func (suite *BackfillE2ETestSuite) TestProgressivePassReachesHistoryFloor() {
	client := suite.newClient(suite.server, hourlyPolicy(), "BTCUSDT")

	passCh := make(chan types.BackfillStats, 4)
	onPass := engine.OnPassCompleteCallback(func(stats types.BackfillStats) {
		passCh <- stats
	})

	start := time.Now().UTC()
	err := client.Start(context.Background(), engine.BackfillCallbacks{OnPassComplete: &onPass})
	suite.Require().NoError(err)

	var passStats types.BackfillStats
	select {
	case passStats = <-passCh:
	case <-time.After(15 * time.Second):
		suite.FailNow("progressive pass did not complete")
	}

	suite.Equal(int64(1), passStats.PassesCompleted)

	// Initial load covered one day; the first pass walks one chunk further
	// back, which lands on the two-day floor.
	entries, err := client.Coverage(context.Background(), "BTCUSDT")
	suite.Require().NoError(err)
	suite.Require().Len(entries, 1)
	suite.Require().True(entries[0].Extent.IsSome())

	extent := entries[0].Extent.Unwrap()
	suite.True(extent.Start.Before(start.Add(-46*time.Hour)),
		"coverage should reach the history floor, starts at %s", extent.Start)
	suite.GreaterOrEqual(entries[0].Candles, 46)
}

func (suite *BackfillE2ETestSuite) TestUpdateLatestWithoutStart() {
	policies := map[types.Granularity]engine.LoadPolicy{
		types.GranularityOneMinute: {InitialDays: 1, MaxDays: 2, ChunkDays: 1},
		types.GranularityOneHour:   {InitialDays: 1, MaxDays: 2, ChunkDays: 1},
	}
	client := suite.newClient(suite.server, policies, "BTCUSDT")

	err := client.UpdateLatest(context.Background(), "BTCUSDT")
	suite.Require().NoError(err)

	// One latest-candle request per configured granularity, engine still idle.
	suite.Equal(types.EngineStateIdle, client.State())
	suite.Equal(2, suite.server.RequestCount())

	entries, err := client.Coverage(context.Background(), "BTCUSDT")
	suite.Require().NoError(err)
	suite.Require().Len(entries, 2)

	for _, entry := range entries {
		suite.Equal(1, entry.Candles, "expected a single latest candle for %s", entry.Granularity)
		suite.True(entry.Extent.IsSome())
	}
}

func (suite *BackfillE2ETestSuite) TestInitialLoadFailureAllowsRestart() {
	client := suite.newClient(suite.server, hourlyPolicy(), "BTCUSDT")

	suite.server.FailNext(100)

	err := client.Start(context.Background(), engine.BackfillCallbacks{})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInitialLoadFailed))
	suite.Equal(types.EngineStateIdle, client.State())
	suite.GreaterOrEqual(client.Stats().TasksFailed, int64(1))

	// Once the upstream recovers, the same client starts cleanly.
	suite.server.Reset()

	err = client.Start(context.Background(), engine.BackfillCallbacks{})
	suite.Require().NoError(err)
	suite.Equal(types.EngineStateBackgroundActive, client.State())

	entries, err := client.Coverage(context.Background(), "BTCUSDT")
	suite.Require().NoError(err)
	suite.Require().Len(entries, 1)
	suite.GreaterOrEqual(entries[0].Candles, 24)
}

func (suite *BackfillE2ETestSuite) TestStopAndRestartKeepsCoverage() {
	client := suite.newClient(suite.server, hourlyPolicy(), "BTCUSDT")

	suite.Require().NoError(client.Start(context.Background(), engine.BackfillCallbacks{}))
	suite.Equal(types.EngineStateBackgroundActive, client.State())

	client.Stop()
	suite.Equal(types.EngineStateStopped, client.State())

	entries, err := client.Coverage(context.Background(), "BTCUSDT")
	suite.Require().NoError(err)
	suite.Require().Len(entries, 1)
	candlesAfterStop := entries[0].Candles

	// Restarting resumes from the cached coverage instead of refetching it.
	suite.Require().NoError(client.Start(context.Background(), engine.BackfillCallbacks{}))
	suite.Equal(types.EngineStateBackgroundActive, client.State())

	entries, err = client.Coverage(context.Background(), "BTCUSDT")
	suite.Require().NoError(err)
	suite.Require().Len(entries, 1)
	suite.GreaterOrEqual(entries[0].Candles, candlesAfterStop)
}

func (suite *BackfillE2ETestSuite) TestConcurrentFetchesAreCapped() {
	server := mockserver.NewMockKlinesServer(mockserver.ServerConfig{
		Seed:    7,
		Latency: 50 * time.Millisecond,
	})
	suite.Require().NoError(server.Start(":0"))

	defer func() {
		suite.Require().NoError(server.Stop())
	}()

	// Four granularities produce four initial tasks; the one-minute window
	// alone spans several sub-window requests.
	policies := map[types.Granularity]engine.LoadPolicy{
		types.GranularityOneMinute:      {InitialDays: 1, MaxDays: 2, ChunkDays: 1},
		types.GranularityFiveMinutes:    {InitialDays: 1, MaxDays: 2, ChunkDays: 1},
		types.GranularityFifteenMinutes: {InitialDays: 1, MaxDays: 2, ChunkDays: 1},
		types.GranularityOneHour:        {InitialDays: 1, MaxDays: 2, ChunkDays: 1},
	}
	client := suite.newClient(server, policies, "BTCUSDT")

	suite.Require().NoError(client.Start(context.Background(), engine.BackfillCallbacks{}))
	client.Stop()

	suite.LessOrEqual(server.PeakConcurrent(), 3)
	suite.GreaterOrEqual(server.PeakConcurrent(), 2)
	suite.GreaterOrEqual(server.RequestCount(), 8)
}
