// Package indicator derives watchlist indicators from daily price series:
// EMA(5/10/20), the all-time-high close, and open-to-close change
// percentages.
package indicator

import (
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/stockpulse-lab/stockpulse/internal/logger"
	"github.com/stockpulse-lab/stockpulse/internal/types"
	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

// Engine turns a PriceSeries into a StockRecord. It is pure: no persistence,
// no clock dependence beyond stamping LastUpdated on the result.
type Engine struct {
	logger *logger.Logger
}

// NewEngine creates a new indicator engine.
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{
		logger: log,
	}
}

// Compute derives a StockRecord from the series. priorATH is the high-water
// close from earlier computations; None means this is the first computation
// for the symbol. Short history degrades to a partial record with undefined
// EMAs rather than failing; an empty or malformed series is an error.
func (e *Engine) Compute(series types.PriceSeries, priorATH optional.Option[float64]) (types.StockRecord, error) {
	if err := series.Validate(); err != nil {
		return types.StockRecord{}, err
	}

	last, ok := series.Last()
	if !ok {
		return types.StockRecord{}, errors.Newf(errors.ErrCodeDataUnavailable,
			"no candles available for %s", series.Symbol)
	}

	closes := series.Closes()

	record := types.StockRecord{
		Symbol:         series.Symbol,
		ATH:            mergeATH(priorATH, closes),
		Open:           last.Open,
		Close:          last.Close,
		EMA5:           emaOrNone(e.logger, series.Symbol, closes, 5),
		EMA10:          emaOrNone(e.logger, series.Symbol, closes, 10),
		EMA20:          emaOrNone(e.logger, series.Symbol, closes, 20),
		PrevChangePct:  optional.None[float64](),
		TodayChangePct: changePct(last),
		LastUpdated:    time.Now().UTC(),
	}

	// The most recently completed prior session, when one exists.
	if series.Len() >= 2 {
		record.PrevChangePct = changePct(series.Candles[series.Len()-2])
	}

	return record, nil
}

// mergeATH merges the prior high-water mark with the window max close.
// A missing prior is treated as the identity, so the first computation sets
// the ATH to the window max.
func mergeATH(priorATH optional.Option[float64], closes []float64) float64 {
	ath := 0.0
	if priorATH.IsSome() {
		ath = priorATH.Unwrap()
	}

	for _, c := range closes {
		if c > ath {
			ath = c
		}
	}

	return ath
}

// changePct computes the candle's open-to-close move in percent. A zero or
// negative open makes the ratio undefined.
func changePct(candle types.Candle) optional.Option[float64] {
	if candle.Open <= 0 {
		return optional.None[float64]()
	}

	return optional.Some((candle.Close - candle.Open) / candle.Open * 100)
}

func emaOrNone(log *logger.Logger, symbol string, closes []float64, period int) optional.Option[float64] {
	value, err := EMA(closes, period)
	if err != nil {
		if log != nil && errors.IsInsufficientDataError(err) {
			log.Debug("EMA undefined, not enough history",
				zap.String("symbol", symbol),
				zap.Int("period", period),
				zap.Int("candles", len(closes)),
			)
		}

		return optional.None[float64]()
	}

	return optional.Some(value)
}
