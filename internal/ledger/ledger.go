// Package ledger tracks open lots and completed trades. Each buy opens an
// independent lot; sells, edits, and removals address one lot by its identity
// tuple. Every operation is all-or-nothing: validation failures leave the
// ledger untouched.
package ledger

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stockpulse-lab/stockpulse/internal/logger"
	"github.com/stockpulse-lab/stockpulse/internal/types"
	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

// SellResult bundles the outcome of one sell: the emitted trade and the lot
// as it stands after the sale.
type SellResult struct {
	Trade  types.Trade
	Lot    types.Position
	Closed bool
}

// Summary aggregates open lots against current prices.
type Summary struct {
	TotalInvestment   float64 `yaml:"total_investment" json:"total_investment"`
	TotalCurrentValue float64 `yaml:"total_current_value" json:"total_current_value"`
	TotalPnL          float64 `yaml:"total_pnl" json:"total_pnl"`
	TotalPnLPct       float64 `yaml:"total_pnl_pct" json:"total_pnl_pct"`
}

// Ledger is the in-memory lot state machine. A single mutex serializes
// mutations so concurrent sells against the same lot are re-validated against
// the post-first-sell remaining quantity.
type Ledger struct {
	mu     sync.Mutex
	lots   map[types.LotKey]*types.Position
	order  []types.LotKey
	trades []types.Trade
	logger *logger.Logger
}

// NewLedger creates an empty ledger.
func NewLedger(log *logger.Logger) *Ledger {
	return &Ledger{
		mu:     sync.Mutex{},
		lots:   make(map[types.LotKey]*types.Position),
		order:  nil,
		trades: nil,
		logger: log,
	}
}

// Restore replaces the open-lot state with a stored snapshot, typically at
// startup. Trades are not restored; the trade log lives in the store.
func (l *Ledger) Restore(positions []types.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lots = make(map[types.LotKey]*types.Position, len(positions))
	l.order = make([]types.LotKey, 0, len(positions))

	for i := range positions {
		position := positions[i]
		key := position.Key()
		l.lots[key] = &position
		l.order = append(l.order, key)
	}
}

// Buy opens a new lot. Existing lots of the same symbol are never merged;
// identical identity tuples are disambiguated by index.
func (l *Ledger) Buy(cmd types.BuyCommand) (types.Position, error) {
	if err := cmd.Validate(); err != nil {
		return types.Position{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	position := types.Position{
		Symbol:    cmd.Symbol,
		StockName: cmd.StockName,
		BuyPrice:  cmd.Price,
		BuyDate:   cmd.Date,
		Quantity:  cmd.Quantity,
		Remaining: cmd.Quantity,
		Stoploss:  cmd.Stoploss,
		Status:    types.PositionStatusOpen,
		Index:     0,
	}
	position.Index = l.nextIndexLocked(position.Key())

	key := position.Key()
	l.lots[key] = &position
	l.order = append(l.order, key)

	if l.logger != nil {
		l.logger.Info("lot opened",
			zap.String("symbol", cmd.Symbol),
			zap.Float64("price", cmd.Price),
			zap.Int("quantity", cmd.Quantity),
		)
	}

	return position, nil
}

// Sell sells quantity out of one lot and emits exactly one immutable Trade.
// Overselling, an unknown lot, and non-positive quantity or price all fail
// with an invalid-order error and no state change.
func (l *Ledger) Sell(cmd types.SellCommand) (SellResult, error) {
	if err := cmd.Validate(); err != nil {
		return SellResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lot, ok := l.lots[cmd.Lot]
	if !ok {
		return SellResult{}, errors.Newf(errors.ErrCodeLotNotFound,
			"no open lot %s %s@%v qty=%d", cmd.Lot.Symbol, cmd.Lot.BuyDate, cmd.Lot.BuyPrice, cmd.Lot.Quantity)
	}

	if cmd.Quantity > lot.Remaining {
		return SellResult{}, errors.Newf(errors.ErrCodeOversell,
			"cannot sell %d of %s: only %d remaining", cmd.Quantity, lot.Symbol, lot.Remaining)
	}

	trade := newTrade(lot, cmd)

	lot.Remaining -= cmd.Quantity
	if lot.Remaining == 0 {
		lot.Status = types.PositionStatusClosed
		l.deleteLocked(cmd.Lot)
	} else {
		lot.Status = types.PositionStatusPartiallyClosed
	}

	l.trades = append(l.trades, trade)

	if l.logger != nil {
		l.logger.Info("lot sold",
			zap.String("symbol", lot.Symbol),
			zap.Int("quantity", cmd.Quantity),
			zap.Int("remaining", lot.Remaining),
			zap.Float64("pnl", trade.PnL),
		)
	}

	return SellResult{
		Trade:  trade,
		Lot:    *lot,
		Closed: lot.Remaining == 0,
	}, nil
}

// Edit mutates a still-open lot. Changing price, date, or quantity changes
// the lot's identity tuple, so the lot is re-keyed; already-emitted trades
// are immutable and unaffected.
func (l *Ledger) Edit(cmd types.EditCommand) (types.Position, error) {
	if err := cmd.Validate(); err != nil {
		return types.Position{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lot, ok := l.lots[cmd.Lot]
	if !ok {
		return types.Position{}, errors.Newf(errors.ErrCodeLotNotFound,
			"no open lot %s %s@%v qty=%d", cmd.Lot.Symbol, cmd.Lot.BuyDate, cmd.Lot.BuyPrice, cmd.Lot.Quantity)
	}

	sold := lot.Quantity - lot.Remaining

	if cmd.NewQuantity.IsSome() && cmd.NewQuantity.Unwrap() < sold {
		return types.Position{}, errors.Newf(errors.ErrCodeInvalidOrder,
			"new quantity %d is below the %d already sold from this lot", cmd.NewQuantity.Unwrap(), sold)
	}

	updated := *lot
	if cmd.NewPrice.IsSome() {
		updated.BuyPrice = cmd.NewPrice.Unwrap()
	}

	if cmd.NewDate.IsSome() {
		updated.BuyDate = cmd.NewDate.Unwrap()
	}

	if cmd.NewQuantity.IsSome() {
		updated.Quantity = cmd.NewQuantity.Unwrap()
		updated.Remaining = updated.Quantity - sold
	}

	if cmd.NewStoploss.IsSome() {
		updated.Stoploss = cmd.NewStoploss
	}

	newKey := updated.Key()
	if newKey != cmd.Lot {
		// Identity changed: re-key, keeping the slot free of collisions.
		updated.Index = l.nextIndexLocked(newKey)
		newKey = updated.Key()
	}

	l.deleteLocked(cmd.Lot)
	l.lots[newKey] = &updated
	l.order = append(l.order, newKey)

	return updated, nil
}

// Remove deletes an open lot without emitting a Trade.
func (l *Ledger) Remove(key types.LotKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.lots[key]; !ok {
		return errors.Newf(errors.ErrCodeLotNotFound,
			"no open lot %s %s@%v qty=%d", key.Symbol, key.BuyDate, key.BuyPrice, key.Quantity)
	}

	l.deleteLocked(key)

	return nil
}

// Get returns the open lot with the given identity.
func (l *Ledger) Get(key types.LotKey) (types.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lot, ok := l.lots[key]
	if !ok {
		return types.Position{}, errors.Newf(errors.ErrCodeLotNotFound,
			"no open lot %s %s@%v qty=%d", key.Symbol, key.BuyDate, key.BuyPrice, key.Quantity)
	}

	return *lot, nil
}

// OpenLots returns all open lots in the order they were opened or re-keyed.
func (l *Ledger) OpenLots() []types.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.Position, 0, len(l.lots))

	for _, key := range l.order {
		if lot, ok := l.lots[key]; ok {
			out = append(out, *lot)
		}
	}

	return out
}

// Trades returns the trade log in emission order.
func (l *Ledger) Trades() []types.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.Trade, len(l.trades))
	copy(out, l.trades)

	return out
}

// Summary values open lots against current prices. Lots whose symbol has no
// current price are valued at their buy price.
func (l *Ledger) Summary(currentPrices map[string]float64) Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	investment := decimal.Zero
	currentValue := decimal.Zero

	for _, key := range l.order {
		lot, ok := l.lots[key]
		if !ok {
			continue
		}

		price, ok := currentPrices[lot.Symbol]
		if !ok || price <= 0 {
			price = lot.BuyPrice
		}

		qty := decimal.NewFromInt(int64(lot.Remaining))
		investment = investment.Add(decimal.NewFromFloat(lot.BuyPrice).Mul(qty))
		currentValue = currentValue.Add(decimal.NewFromFloat(price).Mul(qty))
	}

	pnl := currentValue.Sub(investment)

	pnlPct := decimal.Zero
	if investment.IsPositive() {
		pnlPct = pnl.Div(investment).Mul(decimal.NewFromInt(100))
	}

	investmentF, _ := investment.Float64()
	currentValueF, _ := currentValue.Float64()
	pnlF, _ := pnl.Float64()
	pnlPctF, _ := pnlPct.Float64()

	return Summary{
		TotalInvestment:   investmentF,
		TotalCurrentValue: currentValueF,
		TotalPnL:          pnlF,
		TotalPnLPct:       pnlPctF,
	}
}

func newTrade(lot *types.Position, cmd types.SellCommand) types.Trade {
	buy := decimal.NewFromFloat(lot.BuyPrice)
	sell := decimal.NewFromFloat(cmd.Price)
	qty := decimal.NewFromInt(int64(cmd.Quantity))

	pnl := sell.Sub(buy).Mul(qty)
	pnlPct := sell.Sub(buy).Div(buy).Mul(decimal.NewFromInt(100))

	pnlF, _ := pnl.Float64()
	pnlPctF, _ := pnlPct.Float64()

	return types.Trade{
		ID:        uuid.New().String(),
		Symbol:    lot.Symbol,
		StockName: lot.StockName,
		BuyPrice:  lot.BuyPrice,
		SellPrice: cmd.Price,
		Quantity:  cmd.Quantity,
		BuyDate:   lot.BuyDate,
		SellDate:  cmd.Date,
		PnL:       pnlF,
		PnLPct:    pnlPctF,
	}
}

// nextIndexLocked returns the first free index for the key's base tuple.
func (l *Ledger) nextIndexLocked(key types.LotKey) int {
	index := 0

	for {
		key.Index = index
		if _, ok := l.lots[key]; !ok {
			return index
		}

		index++
	}
}

func (l *Ledger) deleteLocked(key types.LotKey) {
	delete(l.lots, key)

	for i, k := range l.order {
		if k == key {
			l.order = append(l.order[:i], l.order[i+1:]...)

			break
		}
	}
}
