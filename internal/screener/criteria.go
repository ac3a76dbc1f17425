package screener

import (
	"github.com/moznion/go-optional"

	"github.com/stockpulse-lab/stockpulse/internal/types"
	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

// EMAComparison selects one pairwise EMA ordering clause.
type EMAComparison string

const (
	EMA5GtEMA10  EMAComparison = "ema5_gt_ema10"
	EMA10GtEMA20 EMAComparison = "ema10_gt_ema20"
	EMA5GtEMA20  EMAComparison = "ema5_gt_ema20"
	EMA5LtEMA10  EMAComparison = "ema5_lt_ema10"
	EMA10LtEMA20 EMAComparison = "ema10_lt_ema20"
	EMA5LtEMA20  EMAComparison = "ema5_lt_ema20"
)

// Criteria is a compound filter over StockRecords. Every clause is
// independently optional: a None (or false flag) clause is absent from the
// AND chain entirely, it is never evaluated as vacuously true or false.
type Criteria struct {
	// CloseAboveEMA10 requires close > ema10.
	CloseAboveEMA10 bool `yaml:"cp_gt_ema10" json:"cp_gt_ema10"`
	// EMA10AboveEMA20 requires ema10 > ema20.
	EMA10AboveEMA20 bool `yaml:"ema10_gt_ema20" json:"ema10_gt_ema20"`
	// Group matches exactly, case-sensitive.
	Group optional.Option[string] `yaml:"group" json:"group"`
	// MinClose/MaxClose bound the close price; either bound may be set alone.
	MinClose optional.Option[float64] `yaml:"min_cp" json:"min_cp"`
	MaxClose optional.Option[float64] `yaml:"max_cp" json:"max_cp"`
	// CloseAboveATHPct requires close > pct% of the ATH,
	// e.g. 80 keeps records whose close exceeds 0.80*ATH.
	CloseAboveATHPct optional.Option[float64] `yaml:"cp_gt_ath_pct" json:"cp_gt_ath_pct"`
	// EMAPair selects a single pairwise EMA comparison.
	EMAPair optional.Option[EMAComparison] `yaml:"ema_comparison" json:"ema_comparison"`
	// PrevChangeMin/Max bound the prior session's open-to-close move in
	// percent; each side is independently enabled.
	PrevChangeMin optional.Option[float64] `yaml:"prev_change_gt" json:"prev_change_gt"`
	PrevChangeMax optional.Option[float64] `yaml:"prev_change_lt" json:"prev_change_lt"`
	// TodayChangeMin/Max bound the current session's move likewise.
	TodayChangeMin optional.Option[float64] `yaml:"today_change_gt" json:"today_change_gt"`
	TodayChangeMax optional.Option[float64] `yaml:"today_change_lt" json:"today_change_lt"`
}

// Validate checks that the criteria's enabled clauses are well formed.
func (c *Criteria) Validate() error {
	if c.EMAPair.IsSome() {
		switch c.EMAPair.Unwrap() {
		case EMA5GtEMA10, EMA10GtEMA20, EMA5GtEMA20, EMA5LtEMA10, EMA10LtEMA20, EMA5LtEMA20:
		default:
			return errors.Newf(errors.ErrCodeInvalidCriteria,
				"unknown ema comparison %q", c.EMAPair.Unwrap())
		}
	}

	if c.CloseAboveATHPct.IsSome() && c.CloseAboveATHPct.Unwrap() < 0 {
		return errors.New(errors.ErrCodeInvalidCriteria, "cp_gt_ath_pct must not be negative")
	}

	return nil
}

// IsEmpty reports whether no clause is enabled.
func (c *Criteria) IsEmpty() bool {
	return !c.CloseAboveEMA10 &&
		!c.EMA10AboveEMA20 &&
		c.Group.IsNone() &&
		c.MinClose.IsNone() &&
		c.MaxClose.IsNone() &&
		c.CloseAboveATHPct.IsNone() &&
		c.EMAPair.IsNone() &&
		c.PrevChangeMin.IsNone() &&
		c.PrevChangeMax.IsNone() &&
		c.TodayChangeMin.IsNone() &&
		c.TodayChangeMax.IsNone()
}

// clause is one enabled predicate over a record.
type clause func(record *types.StockRecord) bool

// clauses folds the enabled criteria into predicates. Disabled clauses are
// simply not present.
func (c *Criteria) clauses() []clause {
	var out []clause

	if c.CloseAboveEMA10 {
		out = append(out, func(r *types.StockRecord) bool {
			return r.EMA10.IsSome() && r.Close > r.EMA10.Unwrap()
		})
	}

	if c.EMA10AboveEMA20 {
		out = append(out, func(r *types.StockRecord) bool {
			return r.EMA10.IsSome() && r.EMA20.IsSome() && r.EMA10.Unwrap() > r.EMA20.Unwrap()
		})
	}

	if c.Group.IsSome() {
		group := c.Group.Unwrap()
		out = append(out, func(r *types.StockRecord) bool {
			return r.Group == group
		})
	}

	if c.MinClose.IsSome() {
		min := c.MinClose.Unwrap()
		out = append(out, func(r *types.StockRecord) bool {
			return r.Close >= min
		})
	}

	if c.MaxClose.IsSome() {
		max := c.MaxClose.Unwrap()
		out = append(out, func(r *types.StockRecord) bool {
			return r.Close <= max
		})
	}

	if c.CloseAboveATHPct.IsSome() {
		pct := c.CloseAboveATHPct.Unwrap()
		out = append(out, func(r *types.StockRecord) bool {
			return r.ATH > 0 && r.Close > pct/100*r.ATH
		})
	}

	if c.EMAPair.IsSome() {
		comparison := c.EMAPair.Unwrap()
		out = append(out, func(r *types.StockRecord) bool {
			return compareEMAs(r, comparison)
		})
	}

	if c.PrevChangeMin.IsSome() {
		min := c.PrevChangeMin.Unwrap()
		out = append(out, func(r *types.StockRecord) bool {
			return r.PrevChangePct.IsSome() && r.PrevChangePct.Unwrap() >= min
		})
	}

	if c.PrevChangeMax.IsSome() {
		max := c.PrevChangeMax.Unwrap()
		out = append(out, func(r *types.StockRecord) bool {
			return r.PrevChangePct.IsSome() && r.PrevChangePct.Unwrap() <= max
		})
	}

	if c.TodayChangeMin.IsSome() {
		min := c.TodayChangeMin.Unwrap()
		out = append(out, func(r *types.StockRecord) bool {
			return r.TodayChangePct.IsSome() && r.TodayChangePct.Unwrap() >= min
		})
	}

	if c.TodayChangeMax.IsSome() {
		max := c.TodayChangeMax.Unwrap()
		out = append(out, func(r *types.StockRecord) bool {
			return r.TodayChangePct.IsSome() && r.TodayChangePct.Unwrap() <= max
		})
	}

	return out
}

func compareEMAs(r *types.StockRecord, comparison EMAComparison) bool {
	if r.EMA5.IsNone() || r.EMA10.IsNone() || r.EMA20.IsNone() {
		return false
	}

	ema5 := r.EMA5.Unwrap()
	ema10 := r.EMA10.Unwrap()
	ema20 := r.EMA20.Unwrap()

	switch comparison {
	case EMA5GtEMA10:
		return ema5 > ema10
	case EMA10GtEMA20:
		return ema10 > ema20
	case EMA5GtEMA20:
		return ema5 > ema20
	case EMA5LtEMA10:
		return ema5 < ema10
	case EMA10LtEMA20:
		return ema10 < ema20
	case EMA5LtEMA20:
		return ema5 < ema20
	default:
		return false
	}
}
