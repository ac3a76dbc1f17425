package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// MaxReversalOffset is how many trading days a setup is given to reverse.
const MaxReversalOffset = 5

// ReversalHistogram counts setup outcomes by the day offset (1-5) at which
// the close first dropped below the setup day's open. Setups with no reversal
// inside the window, including those truncated by the end of the series,
// count as unresolved.
type ReversalHistogram struct {
	DayCounts  [MaxReversalOffset]int `yaml:"day_counts" json:"day_counts"`
	Unresolved int                    `yaml:"unresolved" json:"unresolved"`
}

// Record tallies one setup outcome. None means unresolved.
func (h *ReversalHistogram) Record(offset optional.Option[int]) {
	if offset.IsNone() {
		h.Unresolved++

		return
	}

	day := offset.Unwrap()
	if day >= 1 && day <= MaxReversalOffset {
		h.DayCounts[day-1]++
	}
}

// Count returns the tally for a given day offset (1-5).
func (h *ReversalHistogram) Count(day int) int {
	if day < 1 || day > MaxReversalOffset {
		return 0
	}

	return h.DayCounts[day-1]
}

// Total returns the number of setups recorded, resolved or not.
func (h *ReversalHistogram) Total() int {
	total := h.Unresolved
	for _, c := range h.DayCounts {
		total += c
	}

	return total
}

// Merge adds another histogram's tallies into this one.
func (h *ReversalHistogram) Merge(other ReversalHistogram) {
	for i, c := range other.DayCounts {
		h.DayCounts[i] += c
	}

	h.Unresolved += other.Unresolved
}

// ProbabilityPct returns the share of setups that reversed at the given day
// offset, as a percentage of all setups in this histogram. Zero when empty.
func (h *ReversalHistogram) ProbabilityPct(day int) float64 {
	total := h.Total()
	if total == 0 {
		return 0
	}

	return float64(h.Count(day)) / float64(total) * 100
}

// QualifyingPeriod is one contiguous in-regime date range and the setup
// outcomes observed inside it. A period with zero setups still appears in
// the report.
type QualifyingPeriod struct {
	Start     time.Time         `yaml:"start" json:"start"`
	End       time.Time         `yaml:"end" json:"end"`
	Setups    int               `yaml:"setups" json:"setups"`
	Histogram ReversalHistogram `yaml:"histogram" json:"histogram"`
}

// BacktestReport is the aggregate result of one pattern backtest run.
type BacktestReport struct {
	Symbol      string             `yaml:"symbol" json:"symbol"`
	UpCandlePct float64            `yaml:"up_candle_pct" json:"up_candle_pct"`
	TotalSetups int                `yaml:"total_setups" json:"total_setups"`
	Overall     ReversalHistogram  `yaml:"overall" json:"overall"`
	Periods     []QualifyingPeriod `yaml:"periods" json:"periods"`
}
