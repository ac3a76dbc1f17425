package indicator

import (
	"github.com/moznion/go-optional"

	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

// DefaultEMAPeriods are the windows the watchlist tracks.
var DefaultEMAPeriods = []int{5, 10, 20}

// EMA computes the exponential moving average of the final element of closes.
// The seed is the simple average of the first period closes; every later
// close is smoothed in with alpha = 2/(period+1), matching pandas ewm with
// adjust=False. Fewer than period closes is an InsufficientDataError.
func EMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	if len(closes) < period {
		return 0, errors.NewInsufficientDataErrorf(period, len(closes), "",
			"insufficient data for EMA%d: required %d, got %d", period, period, len(closes))
	}

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += closes[i]
	}

	sma /= float64(period)

	alpha := 2.0 / float64(period+1)

	ema := sma
	for i := period; i < len(closes); i++ {
		ema = (closes[i] * alpha) + (ema * (1 - alpha))
	}

	return ema, nil
}

// EMASeries computes the EMA value at every index of closes. The first
// period-1 entries are None; index period-1 carries the SMA seed.
func EMASeries(closes []float64, period int) ([]optional.Option[float64], error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	series := make([]optional.Option[float64], len(closes))
	for i := range series {
		series[i] = optional.None[float64]()
	}

	if len(closes) < period {
		return series, nil
	}

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += closes[i]
	}

	sma /= float64(period)
	series[period-1] = optional.Some(sma)

	alpha := 2.0 / float64(period+1)

	ema := sma
	for i := period; i < len(closes); i++ {
		ema = (closes[i] * alpha) + (ema * (1 - alpha))
		series[i] = optional.Some(ema)
	}

	return series, nil
}
