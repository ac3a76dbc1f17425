package backtest

import (
	"context"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/stockpulse-lab/stockpulse/internal/indicator"
	"github.com/stockpulse-lab/stockpulse/internal/logger"
	"github.com/stockpulse-lab/stockpulse/internal/types"
	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

// athFloorFraction is the share of the running all-time high a close must
// hold to stay in regime.
const athFloorFraction = 0.80

const (
	fastEMAPeriod = 5
	slowEMAPeriod = 10
)

// Simulator replays a price history looking for qualifying regimes and
// measures how quickly big up candles inside them reverse.
type Simulator struct {
	logger *logger.Logger
}

func NewSimulator(log *logger.Logger) *Simulator {
	return &Simulator{
		logger: log,
	}
}

// Run scans the series for qualifying periods, where the close holds at
// least 80% of the all-time high to date and EMA5 sits above EMA10. Inside
// each period, any day whose candle gains upCandlePct or more is a setup;
// the following 5 trading days are scanned for the first close below the
// setup day's open. Setups whose scan window is truncated by the end of the
// series count as unresolved.
func (s *Simulator) Run(ctx context.Context, series types.PriceSeries, upCandlePct float64) (types.BacktestReport, error) {
	if upCandlePct <= 0 {
		return types.BacktestReport{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"up candle percentage must be positive, got %.2f", upCandlePct)
	}

	if err := series.Validate(); err != nil {
		return types.BacktestReport{}, errors.Wrapf(errors.ErrCodeBacktestFailed, err,
			"invalid price series for %s", series.Symbol)
	}

	if series.Len() == 0 {
		return types.BacktestReport{}, errors.Newf(errors.ErrCodeBacktestEmptySeries,
			"no candles to backtest for %s", series.Symbol)
	}

	closes := series.Closes()

	fast, err := indicator.EMASeries(closes, fastEMAPeriod)
	if err != nil {
		return types.BacktestReport{}, err
	}

	slow, err := indicator.EMASeries(closes, slowEMAPeriod)
	if err != nil {
		return types.BacktestReport{}, err
	}

	report := types.BacktestReport{
		Symbol:      series.Symbol,
		UpCandlePct: upCandlePct,
		TotalSetups: 0,
		Overall:     types.ReversalHistogram{},
		Periods:     nil,
	}

	athToDate := closes[0]
	inPeriod := false

	var period types.QualifyingPeriod

	for i, candle := range series.Candles {
		if err := ctx.Err(); err != nil {
			return types.BacktestReport{}, errors.Wrapf(errors.ErrCodeJobCancelled, err,
				"backtest for %s cancelled", series.Symbol)
		}

		if candle.Close > athToDate {
			athToDate = candle.Close
		}

		if !inRegime(candle.Close, athToDate, fast[i], slow[i]) {
			if inPeriod {
				report.Periods = append(report.Periods, period)
				inPeriod = false
			}

			continue
		}

		if !inPeriod {
			inPeriod = true
			period = types.QualifyingPeriod{
				Start:     candle.Time,
				End:       candle.Time,
				Setups:    0,
				Histogram: types.ReversalHistogram{},
			}
		}

		period.End = candle.Time

		if !isSetup(candle, upCandlePct) {
			continue
		}

		period.Setups++
		period.Histogram.Record(reversalOffset(series.Candles, i))
	}

	if inPeriod {
		report.Periods = append(report.Periods, period)
	}

	for _, p := range report.Periods {
		report.TotalSetups += p.Setups
		report.Overall.Merge(p.Histogram)
	}

	s.logger.Debug("Backtest complete",
		zap.String("symbol", series.Symbol),
		zap.Int("candles", series.Len()),
		zap.Int("periods", len(report.Periods)),
		zap.Int("setups", report.TotalSetups),
		zap.Int("unresolved", report.Overall.Unresolved),
	)

	return report, nil
}

func inRegime(close, athToDate float64, fast, slow optional.Option[float64]) bool {
	if athToDate <= 0 || close < athFloorFraction*athToDate {
		return false
	}

	if fast.IsNone() || slow.IsNone() {
		return false
	}

	return fast.Unwrap() > slow.Unwrap()
}

func isSetup(candle types.Candle, upCandlePct float64) bool {
	if candle.Open <= 0 {
		return false
	}

	return (candle.Close-candle.Open)/candle.Open*100 >= upCandlePct
}

// reversalOffset scans up to MaxReversalOffset trading days past the setup
// at index i for the first close below the setup day's open. None means no
// reversal inside the window, truncation included.
func reversalOffset(candles []types.Candle, i int) optional.Option[int] {
	setupOpen := candles[i].Open

	for day := 1; day <= types.MaxReversalOffset; day++ {
		next := i + day
		if next >= len(candles) {
			return optional.None[int]()
		}

		if candles[next].Close < setupOpen {
			return optional.Some(day)
		}
	}

	return optional.None[int]()
}
