package types

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type StockTestSuite struct {
	suite.Suite
}

func TestStockSuite(t *testing.T) {
	suite.Run(t, new(StockTestSuite))
}

func (suite *StockTestSuite) TestZeroValueRecordHasUndefinedIndicators() {
	record := StockRecord{}

	suite.True(record.EMA5.IsNone())
	suite.True(record.EMA10.IsNone())
	suite.True(record.EMA20.IsNone())
	suite.True(record.PrevChangePct.IsNone())
	suite.True(record.TodayChangePct.IsNone())
}

func (suite *StockTestSuite) TestSignalBullish() {
	record := StockRecord{
		Symbol: "ACME",
		Close:  120,
		EMA10:  optional.Some(110.0),
		EMA20:  optional.Some(100.0),
	}

	suite.Equal(TrendSignalBullish, record.Signal())
}

func (suite *StockTestSuite) TestSignalBearish() {
	record := StockRecord{
		Symbol: "ACME",
		Close:  90,
		EMA10:  optional.Some(95.0),
		EMA20:  optional.Some(100.0),
	}

	suite.Equal(TrendSignalBearish, record.Signal())
}

func (suite *StockTestSuite) TestSignalNeutral() {
	record := StockRecord{
		Symbol: "ACME",
		Close:  105,
		EMA10:  optional.Some(110.0),
		EMA20:  optional.Some(100.0),
	}

	suite.Equal(TrendSignalNeutral, record.Signal())
}

func (suite *StockTestSuite) TestSignalUndefinedEMAIsNeutral() {
	record := StockRecord{
		Symbol: "ACME",
		Close:  120,
		EMA10:  optional.Some(110.0),
	}

	suite.Equal(TrendSignalNeutral, record.Signal())
}

func (suite *StockTestSuite) TestATHDistancePct() {
	record := StockRecord{
		Symbol: "ACME",
		Close:  90,
		ATH:    100,
	}

	distance := record.ATHDistancePct()
	suite.True(distance.IsSome())
	suite.InDelta(-10.0, distance.Unwrap(), 1e-9)
}

func (suite *StockTestSuite) TestATHDistancePctNoATH() {
	record := StockRecord{Symbol: "ACME", Close: 90}

	suite.True(record.ATHDistancePct().IsNone())
}

func (suite *StockTestSuite) TestIsStale() {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	record := StockRecord{
		Symbol:      "ACME",
		LastUpdated: now.Add(-2 * time.Hour),
	}

	suite.True(record.IsStale(now, time.Hour))
	suite.False(record.IsStale(now, 3*time.Hour))
}

func (suite *StockTestSuite) TestIsStaleNeverUpdated() {
	record := StockRecord{Symbol: "ACME"}

	suite.True(record.IsStale(time.Now(), 24*time.Hour))
}
