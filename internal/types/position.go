package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

type PositionStatus string

const (
	PositionStatusOpen            PositionStatus = "OPEN"
	PositionStatusPartiallyClosed PositionStatus = "PARTIALLY_CLOSED"
	PositionStatusClosed          PositionStatus = "CLOSED"
)

// LotKey is the identity tuple of a lot. Two buys of the same symbol on the
// same day at the same price and quantity are still distinct lots; Index
// disambiguates them. Editing a lot's price, date, or quantity re-keys it.
type LotKey struct {
	Symbol   string  `yaml:"symbol" json:"symbol" csv:"symbol" validate:"required"`
	BuyDate  string  `yaml:"buy_date" json:"buy_date" csv:"buy_date" validate:"required"`
	BuyPrice float64 `yaml:"buy_price" json:"buy_price" csv:"buy_price" validate:"required,gt=0"`
	Quantity int     `yaml:"quantity" json:"quantity" csv:"quantity" validate:"required,gt=0"`
	Index    int     `yaml:"index" json:"index" csv:"index" validate:"gte=0"`
}

// Position is a single open lot. Quantity is the original buy quantity and
// never changes; Remaining decreases with each sell until the lot closes.
type Position struct {
	Symbol    string                   `yaml:"symbol" json:"symbol" csv:"symbol"`
	StockName string                   `yaml:"stock_name" json:"stock_name" csv:"stock_name"`
	BuyPrice  float64                  `yaml:"buy_price" json:"buy_price" csv:"buy_price"`
	BuyDate   time.Time                `yaml:"buy_date" json:"buy_date" csv:"buy_date"`
	Quantity  int                      `yaml:"quantity" json:"quantity" csv:"quantity"`
	Remaining int                      `yaml:"remaining" json:"remaining" csv:"remaining"`
	Stoploss  optional.Option[float64] `yaml:"stoploss" json:"stoploss" csv:"stoploss"`
	Status    PositionStatus           `yaml:"status" json:"status" csv:"status"`
	Index     int                      `yaml:"index" json:"index" csv:"index"`
}

// Key returns the lot's identity tuple.
func (p *Position) Key() LotKey {
	return LotKey{
		Symbol:   p.Symbol,
		BuyDate:  p.BuyDate.Format(time.DateOnly),
		BuyPrice: p.BuyPrice,
		Quantity: p.Quantity,
		Index:    p.Index,
	}
}

// Trade is the immutable record of one sell event against one lot.
type Trade struct {
	ID        string    `yaml:"id" json:"id" csv:"id"`
	Symbol    string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	StockName string    `yaml:"stock_name" json:"stock_name" csv:"stock_name"`
	BuyPrice  float64   `yaml:"buy_price" json:"buy_price" csv:"buy_price"`
	SellPrice float64   `yaml:"sell_price" json:"sell_price" csv:"sell_price"`
	Quantity  int       `yaml:"quantity" json:"quantity" csv:"quantity"`
	BuyDate   time.Time `yaml:"buy_date" json:"buy_date" csv:"buy_date"`
	SellDate  time.Time `yaml:"sell_date" json:"sell_date" csv:"sell_date"`
	PnL       float64   `yaml:"pnl" json:"pnl" csv:"pnl"`
	PnLPct    float64   `yaml:"pnl_pct" json:"pnl_pct" csv:"pnl_pct"`
}

// BuyCommand opens a new lot. It never merges with existing lots of the
// same symbol.
type BuyCommand struct {
	Symbol    string                   `yaml:"symbol" json:"symbol" validate:"required"`
	StockName string                   `yaml:"stock_name" json:"stock_name"`
	Price     float64                  `yaml:"price" json:"price" validate:"required,gt=0"`
	Quantity  int                      `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	Date      time.Time                `yaml:"date" json:"date" validate:"required"`
	Stoploss  optional.Option[float64] `yaml:"stoploss" json:"stoploss"`
}

// SellCommand sells part or all of one specific lot.
type SellCommand struct {
	Lot      LotKey    `yaml:"lot" json:"lot" validate:"required"`
	Quantity int       `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	Price    float64   `yaml:"price" json:"price" validate:"required,gt=0"`
	Date     time.Time `yaml:"date" json:"date" validate:"required"`
}

// EditCommand mutates a still-open lot in place. Unset fields are untouched.
type EditCommand struct {
	Lot         LotKey                     `yaml:"lot" json:"lot" validate:"required"`
	NewPrice    optional.Option[float64]   `yaml:"new_price" json:"new_price"`
	NewQuantity optional.Option[int]       `yaml:"new_quantity" json:"new_quantity"`
	NewDate     optional.Option[time.Time] `yaml:"new_date" json:"new_date"`
	NewStoploss optional.Option[float64]   `yaml:"new_stoploss" json:"new_stoploss"`
}

// Validate validates the BuyCommand struct.
func (c *BuyCommand) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid buy command", err)
	}

	if c.Stoploss.IsSome() && c.Stoploss.Unwrap() <= 0 {
		return errors.New(errors.ErrCodeInvalidOrder, "stoploss must be positive when set")
	}

	return nil
}

// Validate validates the SellCommand struct.
func (c *SellCommand) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid sell command", err)
	}

	return nil
}

// Validate validates the EditCommand struct.
func (c *EditCommand) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid edit command", err)
	}

	if c.NewPrice.IsSome() && c.NewPrice.Unwrap() <= 0 {
		return errors.New(errors.ErrCodeInvalidOrder, "new price must be positive")
	}

	if c.NewQuantity.IsSome() && c.NewQuantity.Unwrap() <= 0 {
		return errors.New(errors.ErrCodeInvalidOrder, "new quantity must be positive")
	}

	if c.NewStoploss.IsSome() && c.NewStoploss.Unwrap() <= 0 {
		return errors.New(errors.ErrCodeInvalidOrder, "new stoploss must be positive when set")
	}

	return nil
}
