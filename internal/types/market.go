package types

import (
	"time"

	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

// Candle is a single daily OHLC bar.
type Candle struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// PriceSeries is an ordered run of daily candles for one symbol, oldest first.
type PriceSeries struct {
	Symbol  string
	Candles []Candle
}

// NewPriceSeries builds a series from candles and validates its ordering.
// Timestamps must be strictly increasing; a malformed series is a computation
// error rather than something the indicator layer silently reorders.
func NewPriceSeries(symbol string, candles []Candle) (PriceSeries, error) {
	series := PriceSeries{
		Symbol:  symbol,
		Candles: candles,
	}
	if err := series.Validate(); err != nil {
		return PriceSeries{}, err
	}

	return series, nil
}

// Validate checks that candle timestamps are strictly increasing.
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s.Candles); i++ {
		prev := s.Candles[i-1].Time
		curr := s.Candles[i].Time

		if !curr.After(prev) {
			return errors.Newf(errors.ErrCodeNonMonotonicSeries,
				"non-monotonic timestamps for %s: candle %d (%s) is not after candle %d (%s)",
				s.Symbol, i, curr.Format(time.DateOnly), i-1, prev.Format(time.DateOnly))
		}
	}

	return nil
}

// Len returns the number of candles in the series.
func (s PriceSeries) Len() int {
	return len(s.Candles)
}

// Closes returns the close prices in series order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		closes[i] = c.Close
	}

	return closes
}

// Last returns the most recent candle. The boolean is false for an empty series.
func (s PriceSeries) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}

	return s.Candles[len(s.Candles)-1], true
}
