package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type GranularityTestSuite struct {
	suite.Suite
}

func TestGranularitySuite(t *testing.T) {
	suite.Run(t, new(GranularityTestSuite))
}

func (suite *GranularityTestSuite) TestSeconds() {
	tests := []struct {
		granularity Granularity
		seconds     int64
	}{
		{GranularityOneMinute, 60},
		{GranularityFiveMinutes, 300},
		{GranularityFifteenMinutes, 900},
		{GranularityOneHour, 3600},
		{GranularitySixHours, 21600},
		{GranularityOneDay, 86400},
	}

	for _, tt := range tests {
		suite.Run(string(tt.granularity), func() {
			suite.Equal(tt.seconds, tt.granularity.Seconds())
			suite.Equal(time.Duration(tt.seconds)*time.Second, tt.granularity.Duration())
			suite.True(tt.granularity.IsValid())
		})
	}
}

func (suite *GranularityTestSuite) TestInvalidGranularity() {
	g := Granularity("2h")

	suite.False(g.IsValid())
	suite.Equal(int64(0), g.Seconds())
}

func (suite *GranularityTestSuite) TestGranularityFromSeconds() {
	g, err := GranularityFromSeconds(300)
	suite.NoError(err)
	suite.Equal(GranularityFiveMinutes, g)

	_, err = GranularityFromSeconds(42)
	suite.Error(err)
}

func (suite *GranularityTestSuite) TestParseGranularity() {
	g, err := ParseGranularity("1h")
	suite.NoError(err)
	suite.Equal(GranularityOneHour, g)

	_, err = ParseGranularity("3m")
	suite.Error(err)
}

func (suite *GranularityTestSuite) TestAlign() {
	t := time.Date(2024, 3, 15, 10, 37, 42, 123, time.UTC)

	suite.Equal(time.Date(2024, 3, 15, 10, 37, 0, 0, time.UTC), GranularityOneMinute.Align(t))
	suite.Equal(time.Date(2024, 3, 15, 10, 35, 0, 0, time.UTC), GranularityFiveMinutes.Align(t))
	suite.Equal(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), GranularityOneHour.Align(t))
	suite.Equal(time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC), GranularitySixHours.Align(t))
	suite.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), GranularityOneDay.Align(t))
}

func (suite *GranularityTestSuite) TestAlignIsIdempotent() {
	for _, g := range AllGranularities() {
		aligned := g.Align(time.Now())
		suite.Equal(aligned, g.Align(aligned))
	}
}

func (suite *GranularityTestSuite) TestAllGranularitiesOrderedFinestFirst() {
	all := AllGranularities()

	suite.Len(all, 6)

	for i := 1; i < len(all); i++ {
		suite.Less(all[i-1].Seconds(), all[i].Seconds())
	}
}
