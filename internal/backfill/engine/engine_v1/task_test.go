package engine_v1

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-backfill/internal/backfill/engine"
	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/pkg/cache"
)

type TaskBuilderTestSuite struct {
	suite.Suite
	cache *cache.MemoryCache
}

func TestTaskBuilderSuite(t *testing.T) {
	suite.Run(t, new(TaskBuilderTestSuite))
}

func (suite *TaskBuilderTestSuite) SetupTest() {
	suite.cache = cache.NewMemoryCache(newTestLogger(suite.T()))
}

func (suite *TaskBuilderTestSuite) storeBuckets(symbol string, granularity types.Granularity, from time.Time, count int) {
	var candles []types.Candle
	for i := range count {
		candles = append(candles, newCandle(symbol, from.Add(time.Duration(i)*granularity.Duration())))
	}

	_, err := suite.cache.StoreChunk(context.Background(), symbol, granularity, candles)
	suite.Require().NoError(err)
}

func (suite *TaskBuilderTestSuite) TestBasePriorityOrdersFinestFirst() {
	ordered := types.AllGranularities()

	for i := 1; i < len(ordered); i++ {
		suite.Less(basePriority(ordered[i-1]), basePriority(ordered[i]))
	}

	suite.Equal(float64(1), basePriority(types.GranularityOneMinute))
	suite.Equal(float64(6), basePriority(types.GranularityOneDay))
}

func (suite *TaskBuilderTestSuite) TestTaskPriorityAddsAgeInDays() {
	chunkEnd := fixedNow.Add(-36 * time.Hour)

	suite.InDelta(2+1.5, taskPriority(types.GranularityFiveMinutes, chunkEnd, fixedNow), 1e-9)
	suite.Equal(float64(6), taskPriority(types.GranularityOneDay, fixedNow, fixedNow))
}

func (suite *TaskBuilderTestSuite) TestBuildInitialTasksWindows() {
	tasks := buildInitialTasks(engine.DefaultPolicies(), []string{"BTCUSDT"}, fixedNow)

	suite.Require().Len(tasks, 6)

	// Sorted by priority band: finest granularity first.
	suite.Equal(types.GranularityOneMinute, tasks[0].Granularity)
	suite.Equal(types.GranularityOneDay, tasks[5].Granularity)

	for _, task := range tasks {
		suite.Equal("BTCUSDT", task.Symbol)
		suite.Equal(fixedNow, task.Window.End)
		suite.Equal(basePriority(task.Granularity), task.Priority)
		suite.NotEmpty(task.ID)
	}

	// Window depth follows each granularity's initial days.
	suite.Equal(fixedNow.Add(-1*24*time.Hour), tasks[0].Window.Start)
	suite.Equal(fixedNow.Add(-90*24*time.Hour), tasks[5].Window.Start)
}

func (suite *TaskBuilderTestSuite) TestBuildInitialTasksSkipsMissingPolicies() {
	policies := map[types.Granularity]engine.LoadPolicy{
		types.GranularityFiveMinutes: {InitialDays: 2, MaxDays: 30, ChunkDays: 2},
	}

	tasks := buildInitialTasks(policies, []string{"BTCUSDT"}, fixedNow)

	suite.Require().Len(tasks, 1)
	suite.Equal(types.GranularityFiveMinutes, tasks[0].Granularity)
}

func (suite *TaskBuilderTestSuite) TestBuildInitialTasksGroupsByBand() {
	policies := map[types.Granularity]engine.LoadPolicy{
		types.GranularityOneMinute:   {InitialDays: 1, MaxDays: 7, ChunkDays: 1},
		types.GranularityFiveMinutes: {InitialDays: 2, MaxDays: 30, ChunkDays: 2},
	}

	tasks := buildInitialTasks(policies, []string{"BTCUSDT", "ETHUSDT"}, fixedNow)

	suite.Require().Len(tasks, 4)

	// Both one-minute tasks run before any five-minute task; within a band
	// the symbol order is preserved.
	suite.Equal(types.GranularityOneMinute, tasks[0].Granularity)
	suite.Equal("BTCUSDT", tasks[0].Symbol)
	suite.Equal(types.GranularityOneMinute, tasks[1].Granularity)
	suite.Equal("ETHUSDT", tasks[1].Symbol)
	suite.Equal(types.GranularityFiveMinutes, tasks[2].Granularity)
	suite.Equal(types.GranularityFiveMinutes, tasks[3].Granularity)
}

func (suite *TaskBuilderTestSuite) TestBuildProgressiveTasksEmptyCacheSeedsFromNow() {
	policies := map[types.Granularity]engine.LoadPolicy{
		types.GranularityFiveMinutes: {InitialDays: 2, MaxDays: 30, ChunkDays: 2},
	}

	tasks, err := buildProgressiveTasks(context.Background(), suite.cache, policies, []string{"BTCUSDT"}, fixedNow)
	suite.Require().NoError(err)

	suite.Require().Len(tasks, 15)

	// Newest chunk first, each window exactly two days, walking back to the
	// thirty-day floor.
	suite.Equal(fixedNow, tasks[0].Window.End)
	suite.Equal(fixedNow.Add(-2*24*time.Hour), tasks[0].Window.Start)
	suite.Equal(fixedNow.Add(-30*24*time.Hour), tasks[14].Window.Start)

	for i, task := range tasks {
		suite.Equal(48*time.Hour, task.Window.Span())
		suite.InDelta(2+float64(2*i), task.Priority, 1e-9)
	}
}

func (suite *TaskBuilderTestSuite) TestBuildProgressiveTasksWalksFromCoverage() {
	// Stored history already reaches four days back.
	start := fixedNow.Add(-4 * 24 * time.Hour)
	suite.storeBuckets("BTCUSDT", types.GranularityFiveMinutes, start, 4*288)

	policies := map[types.Granularity]engine.LoadPolicy{
		types.GranularityFiveMinutes: {InitialDays: 2, MaxDays: 30, ChunkDays: 2},
	}

	tasks, err := buildProgressiveTasks(context.Background(), suite.cache, policies, []string{"BTCUSDT"}, fixedNow)
	suite.Require().NoError(err)

	suite.Require().Len(tasks, 13)
	suite.Equal(start, tasks[0].Window.End)
	suite.Equal(start.Add(-48*time.Hour), tasks[0].Window.Start)
	suite.Equal(fixedNow.Add(-30*24*time.Hour), tasks[12].Window.Start)
}

func (suite *TaskBuilderTestSuite) TestBuildProgressiveTasksClampsFinalChunk() {
	policies := map[types.Granularity]engine.LoadPolicy{
		types.GranularityOneHour: {InitialDays: 1, MaxDays: 7, ChunkDays: 3},
	}

	tasks, err := buildProgressiveTasks(context.Background(), suite.cache, policies, []string{"BTCUSDT"}, fixedNow)
	suite.Require().NoError(err)

	suite.Require().Len(tasks, 3)
	suite.Equal(72*time.Hour, tasks[0].Window.Span())
	suite.Equal(72*time.Hour, tasks[1].Window.Span())

	// The last chunk is clamped to the seven-day floor.
	suite.Equal(24*time.Hour, tasks[2].Window.Span())
	suite.Equal(fixedNow.Add(-7*24*time.Hour), tasks[2].Window.Start)
}

func (suite *TaskBuilderTestSuite) TestBuildProgressiveTasksStopsAtFloor() {
	// Coverage already reaches past the policy depth.
	start := fixedNow.Add(-31 * 24 * time.Hour)
	suite.storeBuckets("BTCUSDT", types.GranularityFiveMinutes, start, 288)

	policies := map[types.Granularity]engine.LoadPolicy{
		types.GranularityFiveMinutes: {InitialDays: 2, MaxDays: 30, ChunkDays: 2},
	}

	tasks, err := buildProgressiveTasks(context.Background(), suite.cache, policies, []string{"BTCUSDT"}, fixedNow)
	suite.Require().NoError(err)

	suite.Empty(tasks)
}

func (suite *TaskBuilderTestSuite) TestSortTasksInterleavesBandsByAge() {
	policies := map[types.Granularity]engine.LoadPolicy{
		types.GranularityOneMinute: {InitialDays: 1, MaxDays: 7, ChunkDays: 1},
		types.GranularityOneDay:    {InitialDays: 90, MaxDays: 1460, ChunkDays: 90},
	}

	tasks, err := buildProgressiveTasks(context.Background(), suite.cache, policies, []string{"BTCUSDT"}, fixedNow)
	suite.Require().NoError(err)

	// One-minute chunks run first until their windows age past five days,
	// then the fresh daily chunk slots in between them.
	suite.Require().Len(tasks, 7+17)
	suite.Equal(types.GranularityOneMinute, tasks[0].Granularity)

	var dayIndex int
	for i, task := range tasks {
		if task.Granularity == types.GranularityOneDay {
			dayIndex = i

			break
		}
	}

	// The first daily chunk ties with the five-day-old one-minute chunk at
	// priority 6; the stable sort keeps the one-minute chunk ahead.
	suite.Equal(6, dayIndex)
	suite.Equal(types.GranularityOneMinute, tasks[5].Granularity)
	suite.InDelta(6.0, tasks[5].Priority, 1e-9)
	suite.Equal(types.GranularityOneMinute, tasks[7].Granularity)
	suite.InDelta(7.0, tasks[7].Priority, 1e-9)
}

func (suite *TaskBuilderTestSuite) TestBuildProgressiveTasksPropagatesCacheError() {
	suite.Require().NoError(suite.cache.Close())

	policies := map[types.Granularity]engine.LoadPolicy{
		types.GranularityFiveMinutes: {InitialDays: 2, MaxDays: 30, ChunkDays: 2},
	}

	_, err := buildProgressiveTasks(context.Background(), suite.cache, policies, []string{"BTCUSDT"}, fixedNow)
	suite.Error(err)
}
