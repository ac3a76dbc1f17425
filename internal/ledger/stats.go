package ledger

import (
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/stockpulse-lab/stockpulse/internal/types"
)

// TradeLogSummary is the performance rollup over a slice of completed trades.
type TradeLogSummary struct {
	TotalTrades   int                          `yaml:"total_trades" json:"total_trades"`
	WinningTrades int                          `yaml:"winning_trades" json:"winning_trades"`
	LosingTrades  int                          `yaml:"losing_trades" json:"losing_trades"`
	WinRate       float64                      `yaml:"win_rate" json:"win_rate"`
	NetPnL        float64                      `yaml:"net_pnl" json:"net_pnl"`
	NetPnLPct     float64                      `yaml:"net_pnl_pct" json:"net_pnl_pct"`
	AvgPnL        float64                      `yaml:"avg_pnl" json:"avg_pnl"`
	BestTrade     optional.Option[types.Trade] `yaml:"best_trade" json:"best_trade"`
	WorstTrade    optional.Option[types.Trade] `yaml:"worst_trade" json:"worst_trade"`
}

// Stats summarizes a trade log. Wins are trades with positive P&L, losses
// negative; break-even trades count toward neither.
func Stats(trades []types.Trade) TradeLogSummary {
	summary := TradeLogSummary{
		TotalTrades:   len(trades),
		WinningTrades: 0,
		LosingTrades:  0,
		WinRate:       0,
		NetPnL:        0,
		NetPnLPct:     0,
		AvgPnL:        0,
		BestTrade:     optional.None[types.Trade](),
		WorstTrade:    optional.None[types.Trade](),
	}

	if len(trades) == 0 {
		return summary
	}

	netPnL := decimal.Zero
	invested := decimal.Zero

	bestIdx, worstIdx := 0, 0

	for i, trade := range trades {
		switch {
		case trade.PnL > 0:
			summary.WinningTrades++
		case trade.PnL < 0:
			summary.LosingTrades++
		}

		netPnL = netPnL.Add(decimal.NewFromFloat(trade.PnL))
		invested = invested.Add(
			decimal.NewFromFloat(trade.BuyPrice).Mul(decimal.NewFromInt(int64(trade.Quantity))))

		if trade.PnL > trades[bestIdx].PnL {
			bestIdx = i
		}

		if trade.PnL < trades[worstIdx].PnL {
			worstIdx = i
		}
	}

	netPnLF, _ := netPnL.Float64()
	summary.NetPnL = netPnLF
	summary.AvgPnL = netPnLF / float64(len(trades))
	summary.WinRate = float64(summary.WinningTrades) / float64(len(trades)) * 100

	if invested.IsPositive() {
		pct, _ := netPnL.Div(invested).Mul(decimal.NewFromInt(100)).Float64()
		summary.NetPnLPct = pct
	}

	summary.BestTrade = optional.Some(trades[bestIdx])
	summary.WorstTrade = optional.Some(trades[worstIdx])

	return summary
}
