package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/stockpulse-lab/stockpulse/internal/logger"
	"github.com/stockpulse-lab/stockpulse/internal/types"
	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

type LedgerTestSuite struct {
	suite.Suite
	ledger *Ledger
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (suite *LedgerTestSuite) SetupTest() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	suite.ledger = NewLedger(log)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (suite *LedgerTestSuite) buyACME() types.Position {
	position, err := suite.ledger.Buy(types.BuyCommand{
		Symbol:   "ACME",
		Price:    50,
		Quantity: 100,
		Date:     day(2024, 3, 15),
		Stoploss: optional.Some(45.0),
	})
	suite.Require().NoError(err)

	return position
}

func (suite *LedgerTestSuite) TestBuyOpensLot() {
	position := suite.buyACME()

	suite.Equal("ACME", position.Symbol)
	suite.Equal(types.PositionStatusOpen, position.Status)
	suite.Equal(100, position.Quantity)
	suite.Equal(100, position.Remaining)
	suite.Equal(45.0, position.Stoploss.Unwrap())
	suite.Len(suite.ledger.OpenLots(), 1)
}

func (suite *LedgerTestSuite) TestBuyNeverMergesLots() {
	first := suite.buyACME()
	second := suite.buyACME()

	suite.NotEqual(first.Key(), second.Key())
	suite.Len(suite.ledger.OpenLots(), 2)
}

func (suite *LedgerTestSuite) TestBuyRejectsInvalidCommand() {
	_, err := suite.ledger.Buy(types.BuyCommand{
		Symbol:   "ACME",
		Price:    -1,
		Quantity: 100,
		Date:     day(2024, 3, 15),
	})

	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidOrder))
	suite.Empty(suite.ledger.OpenLots())
}

func (suite *LedgerTestSuite) TestPartialSell() {
	position := suite.buyACME()

	result, err := suite.ledger.Sell(types.SellCommand{
		Lot:      position.Key(),
		Quantity: 40,
		Price:    60,
		Date:     day(2024, 4, 1),
	})
	suite.NoError(err)

	suite.Equal(60, result.Lot.Remaining)
	suite.Equal(types.PositionStatusPartiallyClosed, result.Lot.Status)
	suite.False(result.Closed)

	suite.InDelta(400.0, result.Trade.PnL, 1e-9)
	suite.InDelta(20.0, result.Trade.PnLPct, 1e-9)
	suite.Equal(40, result.Trade.Quantity)
	suite.NotEmpty(result.Trade.ID)
}

func (suite *LedgerTestSuite) TestFullSellClosesAndRemovesLot() {
	position := suite.buyACME()

	result, err := suite.ledger.Sell(types.SellCommand{
		Lot:      position.Key(),
		Quantity: 100,
		Price:    55,
		Date:     day(2024, 4, 1),
	})
	suite.NoError(err)

	suite.True(result.Closed)
	suite.Equal(types.PositionStatusClosed, result.Lot.Status)
	suite.Equal(0, result.Lot.Remaining)
	suite.Empty(suite.ledger.OpenLots())
}

func (suite *LedgerTestSuite) TestOversellFailsWithoutMutation() {
	position := suite.buyACME()

	_, err := suite.ledger.Sell(types.SellCommand{
		Lot:      position.Key(),
		Quantity: 40,
		Price:    60,
		Date:     day(2024, 4, 1),
	})
	suite.Require().NoError(err)

	// 60 remaining; selling 61 must fail and change nothing.
	_, err = suite.ledger.Sell(types.SellCommand{
		Lot:      position.Key(),
		Quantity: 61,
		Price:    60,
		Date:     day(2024, 4, 2),
	})

	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeOversell))

	lot, err := suite.ledger.Get(position.Key())
	suite.NoError(err)
	suite.Equal(60, lot.Remaining)
	suite.Equal(types.PositionStatusPartiallyClosed, lot.Status)
	suite.Len(suite.ledger.Trades(), 1)
}

func (suite *LedgerTestSuite) TestSellUnknownLot() {
	_, err := suite.ledger.Sell(types.SellCommand{
		Lot:      types.LotKey{Symbol: "GHOST", BuyDate: "2024-01-01", BuyPrice: 10, Quantity: 5},
		Quantity: 5,
		Price:    12,
		Date:     day(2024, 4, 1),
	})

	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeLotNotFound))
}

func (suite *LedgerTestSuite) TestTradeQuantitiesNeverExceedLot() {
	position := suite.buyACME()
	key := position.Key()

	for i := 0; i < 4; i++ {
		_, err := suite.ledger.Sell(types.SellCommand{
			Lot:      key,
			Quantity: 25,
			Price:    55,
			Date:     day(2024, 4, 1+i),
		})
		suite.Require().NoError(err)
	}

	sold := 0
	for _, trade := range suite.ledger.Trades() {
		sold += trade.Quantity
	}

	suite.Equal(position.Quantity, sold)
	suite.Empty(suite.ledger.OpenLots())

	// Lot is gone; further sells must fail.
	_, err := suite.ledger.Sell(types.SellCommand{
		Lot:      key,
		Quantity: 1,
		Price:    55,
		Date:     day(2024, 4, 10),
	})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeLotNotFound))
}

func (suite *LedgerTestSuite) TestEditRekeysLot() {
	position := suite.buyACME()
	oldKey := position.Key()

	updated, err := suite.ledger.Edit(types.EditCommand{
		Lot:      oldKey,
		NewPrice: optional.Some(52.0),
	})
	suite.NoError(err)
	suite.Equal(52.0, updated.BuyPrice)
	suite.NotEqual(oldKey, updated.Key())

	// The old identity no longer resolves; the new one does.
	_, err = suite.ledger.Get(oldKey)
	suite.Error(err)

	lot, err := suite.ledger.Get(updated.Key())
	suite.NoError(err)
	suite.Equal(52.0, lot.BuyPrice)
}

func (suite *LedgerTestSuite) TestEditStoplossKeepsIdentity() {
	position := suite.buyACME()

	updated, err := suite.ledger.Edit(types.EditCommand{
		Lot:         position.Key(),
		NewStoploss: optional.Some(48.0),
	})
	suite.NoError(err)
	suite.Equal(position.Key(), updated.Key())
	suite.Equal(48.0, updated.Stoploss.Unwrap())
}

func (suite *LedgerTestSuite) TestEditDoesNotTouchEmittedTrades() {
	position := suite.buyACME()

	result, err := suite.ledger.Sell(types.SellCommand{
		Lot:      position.Key(),
		Quantity: 40,
		Price:    60,
		Date:     day(2024, 4, 1),
	})
	suite.Require().NoError(err)

	_, err = suite.ledger.Edit(types.EditCommand{
		Lot:      position.Key(),
		NewPrice: optional.Some(55.0),
	})
	suite.NoError(err)

	trades := suite.ledger.Trades()
	suite.Require().Len(trades, 1)
	suite.Equal(result.Trade, trades[0])
	suite.Equal(50.0, trades[0].BuyPrice)
}

func (suite *LedgerTestSuite) TestEditQuantityBelowSoldFails() {
	position := suite.buyACME()

	_, err := suite.ledger.Sell(types.SellCommand{
		Lot:      position.Key(),
		Quantity: 40,
		Price:    60,
		Date:     day(2024, 4, 1),
	})
	suite.Require().NoError(err)

	_, err = suite.ledger.Edit(types.EditCommand{
		Lot:         position.Key(),
		NewQuantity: optional.Some(30),
	})

	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidOrder))

	lot, err := suite.ledger.Get(position.Key())
	suite.NoError(err)
	suite.Equal(60, lot.Remaining)
}

func (suite *LedgerTestSuite) TestRemoveDeletesWithoutTrade() {
	position := suite.buyACME()

	err := suite.ledger.Remove(position.Key())
	suite.NoError(err)
	suite.Empty(suite.ledger.OpenLots())
	suite.Empty(suite.ledger.Trades())
}

func (suite *LedgerTestSuite) TestRemoveUnknownLot() {
	err := suite.ledger.Remove(types.LotKey{Symbol: "GHOST", BuyDate: "2024-01-01", BuyPrice: 10, Quantity: 5})

	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeLotNotFound))
}

func (suite *LedgerTestSuite) TestRestoreReplacesOpenLots() {
	suite.buyACME()

	restored := types.Position{
		Symbol:    "TCS",
		StockName: "Tata Consultancy",
		BuyPrice:  200,
		BuyDate:   day(2024, 3, 20),
		Quantity:  10,
		Remaining: 10,
		Stoploss:  optional.None[float64](),
		Status:    types.PositionStatusOpen,
		Index:     0,
	}

	suite.ledger.Restore([]types.Position{restored})

	lots := suite.ledger.OpenLots()
	suite.Require().Len(lots, 1)
	suite.Equal("TCS", lots[0].Symbol)

	// Restored lots are addressable like freshly bought ones.
	result, err := suite.ledger.Sell(types.SellCommand{
		Lot:      restored.Key(),
		Price:    210,
		Quantity: 10,
		Date:     day(2024, 4, 1),
	})
	suite.NoError(err)
	suite.True(result.Closed)
}

func (suite *LedgerTestSuite) TestSummary() {
	suite.buyACME()

	_, err := suite.ledger.Buy(types.BuyCommand{
		Symbol:   "TCS",
		Price:    200,
		Quantity: 10,
		Date:     day(2024, 3, 20),
	})
	suite.Require().NoError(err)

	summary := suite.ledger.Summary(map[string]float64{
		"ACME": 60,
		"TCS":  190,
	})

	// ACME: 100*50 -> 100*60; TCS: 10*200 -> 10*190.
	suite.InDelta(7000.0, summary.TotalInvestment, 1e-9)
	suite.InDelta(7900.0, summary.TotalCurrentValue, 1e-9)
	suite.InDelta(900.0, summary.TotalPnL, 1e-9)
	suite.InDelta(900.0/7000.0*100, summary.TotalPnLPct, 1e-9)
}

func (suite *LedgerTestSuite) TestSummaryMissingPriceFallsBackToBuyPrice() {
	suite.buyACME()

	summary := suite.ledger.Summary(nil)

	suite.InDelta(5000.0, summary.TotalInvestment, 1e-9)
	suite.InDelta(5000.0, summary.TotalCurrentValue, 1e-9)
	suite.InDelta(0.0, summary.TotalPnL, 1e-9)
	suite.InDelta(0.0, summary.TotalPnLPct, 1e-9)
}

func (suite *LedgerTestSuite) TestSummaryEmptyLedger() {
	summary := suite.ledger.Summary(map[string]float64{"ACME": 60})

	suite.Equal(0.0, summary.TotalInvestment)
	suite.Equal(0.0, summary.TotalPnLPct)
}

func (suite *LedgerTestSuite) TestConcurrentSellsNeverOversell() {
	position := suite.buyACME()
	key := position.Key()

	var wg sync.WaitGroup

	successes := make(chan int, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := suite.ledger.Sell(types.SellCommand{
				Lot:      key,
				Quantity: 30,
				Price:    60,
				Date:     day(2024, 4, 1),
			})
			if err == nil {
				successes <- 30
			}
		}()
	}

	wg.Wait()
	close(successes)

	sold := 0
	for qty := range successes {
		sold += qty
	}

	// 100 shares in the lot, 30 per sell: at most three sells can succeed.
	suite.LessOrEqual(sold, position.Quantity)
	suite.Equal(3, sold/30)
}

func (suite *LedgerTestSuite) TestStats() {
	trades := []types.Trade{
		{Symbol: "ACME", BuyPrice: 50, SellPrice: 60, Quantity: 10, PnL: 100, PnLPct: 20},
		{Symbol: "TCS", BuyPrice: 200, SellPrice: 190, Quantity: 5, PnL: -50, PnLPct: -5},
		{Symbol: "BETA", BuyPrice: 20, SellPrice: 20, Quantity: 10, PnL: 0, PnLPct: 0},
	}

	summary := Stats(trades)

	suite.Equal(3, summary.TotalTrades)
	suite.Equal(1, summary.WinningTrades)
	suite.Equal(1, summary.LosingTrades)
	suite.InDelta(100.0/3.0, summary.WinRate, 1e-9)
	suite.InDelta(50.0, summary.NetPnL, 1e-9)
	// invested = 500 + 1000 + 200 = 1700
	suite.InDelta(50.0/1700.0*100, summary.NetPnLPct, 1e-9)
	suite.InDelta(50.0/3.0, summary.AvgPnL, 1e-9)
	suite.Equal("ACME", summary.BestTrade.Unwrap().Symbol)
	suite.Equal("TCS", summary.WorstTrade.Unwrap().Symbol)
}

func (suite *LedgerTestSuite) TestStatsEmpty() {
	summary := Stats(nil)

	suite.Equal(0, summary.TotalTrades)
	suite.True(summary.BestTrade.IsNone())
	suite.True(summary.WorstTrade.IsNone())
}
