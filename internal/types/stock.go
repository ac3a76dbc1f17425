package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// TrendSignal is a coarse read of a record's EMA alignment.
type TrendSignal string

const (
	TrendSignalBullish TrendSignal = "Bullish"
	TrendSignalBearish TrendSignal = "Bearish"
	TrendSignalNeutral TrendSignal = "Neutral"
)

// StockRecord is the per-symbol row of the watchlist: latest prices plus the
// indicators derived from them. EMA and change-percentage fields stay None
// until enough candles exist; a zero there would be indistinguishable from a
// real value.
type StockRecord struct {
	Symbol    string `yaml:"symbol" json:"symbol" csv:"symbol"`
	Group     string `yaml:"group" json:"group" csv:"group"`
	StockName string `yaml:"stock_name" json:"stock_name" csv:"stock_name"`
	// ATH is the high-water close price. It never decreases across refreshes
	// for a fixed symbol.
	ATH   float64 `yaml:"ath" json:"ath" csv:"ath"`
	Open  float64 `yaml:"open" json:"open" csv:"open"`
	Close float64 `yaml:"close" json:"close" csv:"close"`

	EMA5  optional.Option[float64] `yaml:"ema5" json:"ema5" csv:"ema5"`
	EMA10 optional.Option[float64] `yaml:"ema10" json:"ema10" csv:"ema10"`
	EMA20 optional.Option[float64] `yaml:"ema20" json:"ema20" csv:"ema20"`

	// PrevChangePct is the open-to-close move of the most recently completed
	// prior session; TodayChangePct is the current session's own move.
	PrevChangePct  optional.Option[float64] `yaml:"prev_change_pct" json:"prev_change_pct" csv:"prev_change_pct"`
	TodayChangePct optional.Option[float64] `yaml:"today_change_pct" json:"today_change_pct" csv:"today_change_pct"`

	LastUpdated time.Time `yaml:"last_updated" json:"last_updated" csv:"last_updated"`
}

// Signal classifies the record as Bullish when close > ema10 > ema20,
// Bearish when close < ema10 < ema20, Neutral otherwise or when either
// EMA is undefined.
func (r *StockRecord) Signal() TrendSignal {
	if r.EMA10.IsNone() || r.EMA20.IsNone() {
		return TrendSignalNeutral
	}

	ema10 := r.EMA10.Unwrap()
	ema20 := r.EMA20.Unwrap()

	switch {
	case r.Close > ema10 && ema10 > ema20:
		return TrendSignalBullish
	case r.Close < ema10 && ema10 < ema20:
		return TrendSignalBearish
	default:
		return TrendSignalNeutral
	}
}

// ATHDistancePct returns how far the close sits from the ATH as a signed
// percentage of the ATH. None when no ATH has been observed yet.
func (r *StockRecord) ATHDistancePct() optional.Option[float64] {
	if r.ATH <= 0 {
		return optional.None[float64]()
	}

	return optional.Some((r.Close - r.ATH) / r.ATH * 100)
}

// IsStale reports whether the record's last refresh is older than the given
// threshold at the given instant. Advisory only; stale records still compute.
func (r *StockRecord) IsStale(now time.Time, threshold time.Duration) bool {
	if r.LastUpdated.IsZero() {
		return true
	}

	return now.Sub(r.LastUpdated) > threshold
}
