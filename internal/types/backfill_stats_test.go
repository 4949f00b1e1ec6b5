package types

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type BackfillStatsTestSuite struct {
	suite.Suite
}

func TestBackfillStatsSuite(t *testing.T) {
	suite.Run(t, new(BackfillStatsTestSuite))
}

func (suite *BackfillStatsTestSuite) TestNewBackfillStats() {
	stats := NewBackfillStats([]string{"BTCUSDT", "ETHUSDT"})

	suite.Equal(EngineStateIdle, stats.State)
	suite.Equal([]string{"BTCUSDT", "ETHUSDT"}, stats.Symbols)
	suite.False(stats.SessionStart.IsZero())
	suite.Equal(stats.SessionStart, stats.LastUpdated)
	suite.Zero(stats.TasksSucceeded)
	suite.Zero(stats.CandlesStored)
}

func (suite *BackfillStatsTestSuite) TestWriteAndReadRoundTrip() {
	stats := NewBackfillStats([]string{"BTCUSDT"})
	stats.State = EngineStateBackgroundActive
	stats.TasksSucceeded = 12
	stats.TasksFailed = 1
	stats.CandlesStored = 3600
	stats.PassesCompleted = 2

	path := filepath.Join(suite.T().TempDir(), "stats.yaml")
	suite.Require().NoError(WriteBackfillStats(path, stats))

	loaded, err := ReadBackfillStats(path)
	suite.Require().NoError(err)

	suite.Equal(EngineStateBackgroundActive, loaded.State)
	suite.Equal([]string{"BTCUSDT"}, loaded.Symbols)
	suite.Equal(int64(12), loaded.TasksSucceeded)
	suite.Equal(int64(1), loaded.TasksFailed)
	suite.Equal(int64(3600), loaded.CandlesStored)
	suite.Equal(int64(2), loaded.PassesCompleted)
}

func (suite *BackfillStatsTestSuite) TestReadMissingFile() {
	_, err := ReadBackfillStats(filepath.Join(suite.T().TempDir(), "missing.yaml"))
	suite.Error(err)
}
