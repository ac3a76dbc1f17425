package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

type MarketTestSuite struct {
	suite.Suite
}

func TestMarketSuite(t *testing.T) {
	suite.Run(t, new(MarketTestSuite))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (suite *MarketTestSuite) TestCandleStruct() {
	now := time.Now()
	candle := Candle{
		Symbol: "ACME",
		Time:   now,
		Open:   150.0,
		High:   155.0,
		Low:    148.0,
		Close:  152.5,
		Volume: 1000000.0,
	}

	suite.Equal("ACME", candle.Symbol)
	suite.Equal(now, candle.Time)
	suite.Equal(150.0, candle.Open)
	suite.Equal(155.0, candle.High)
	suite.Equal(148.0, candle.Low)
	suite.Equal(152.5, candle.Close)
	suite.Equal(1000000.0, candle.Volume)
}

func (suite *MarketTestSuite) TestNewPriceSeriesOrdered() {
	series, err := NewPriceSeries("ACME", []Candle{
		{Symbol: "ACME", Time: day(2024, 1, 1), Open: 100, High: 104, Low: 99, Close: 102, Volume: 1000},
		{Symbol: "ACME", Time: day(2024, 1, 2), Open: 102, High: 106, Low: 101, Close: 105, Volume: 1200},
		{Symbol: "ACME", Time: day(2024, 1, 3), Open: 105, High: 107, Low: 103, Close: 104, Volume: 900},
	})

	suite.NoError(err)
	suite.Equal("ACME", series.Symbol)
	suite.Equal(3, series.Len())
}

func (suite *MarketTestSuite) TestNewPriceSeriesNonMonotonic() {
	_, err := NewPriceSeries("ACME", []Candle{
		{Symbol: "ACME", Time: day(2024, 1, 2), Open: 100, High: 104, Low: 99, Close: 102, Volume: 1000},
		{Symbol: "ACME", Time: day(2024, 1, 1), Open: 102, High: 106, Low: 101, Close: 105, Volume: 1200},
	})

	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNonMonotonicSeries))
}

func (suite *MarketTestSuite) TestNewPriceSeriesDuplicateTimestamp() {
	_, err := NewPriceSeries("ACME", []Candle{
		{Symbol: "ACME", Time: day(2024, 1, 1), Open: 100, High: 104, Low: 99, Close: 102, Volume: 1000},
		{Symbol: "ACME", Time: day(2024, 1, 1), Open: 102, High: 106, Low: 101, Close: 105, Volume: 1200},
	})

	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNonMonotonicSeries))
}

func (suite *MarketTestSuite) TestNewPriceSeriesEmpty() {
	series, err := NewPriceSeries("ACME", nil)

	suite.NoError(err)
	suite.Equal(0, series.Len())

	_, ok := series.Last()
	suite.False(ok)
}

func (suite *MarketTestSuite) TestCloses() {
	series, err := NewPriceSeries("ACME", []Candle{
		{Symbol: "ACME", Time: day(2024, 1, 1), Open: 100, High: 104, Low: 99, Close: 102, Volume: 1000},
		{Symbol: "ACME", Time: day(2024, 1, 2), Open: 102, High: 106, Low: 101, Close: 105, Volume: 1200},
	})

	suite.NoError(err)
	suite.Equal([]float64{102, 105}, series.Closes())
}

func (suite *MarketTestSuite) TestLast() {
	series, err := NewPriceSeries("ACME", []Candle{
		{Symbol: "ACME", Time: day(2024, 1, 1), Open: 100, High: 104, Low: 99, Close: 102, Volume: 1000},
		{Symbol: "ACME", Time: day(2024, 1, 2), Open: 102, High: 106, Low: 101, Close: 105, Volume: 1200},
	})

	suite.NoError(err)

	last, ok := series.Last()
	suite.True(ok)
	suite.Equal(105.0, last.Close)
	suite.Equal(day(2024, 1, 2), last.Time)
}
