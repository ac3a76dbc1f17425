package marketdata

import (
	"context"

	"github.com/stockpulse-lab/stockpulse/internal/types"
	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderPolygon ProviderType = "polygon"
)

// Provider fetches daily candles from an external market data vendor.
type Provider interface {
	// GetLatestCandle returns the most recent completed daily candle for
	// the symbol.
	GetLatestCandle(ctx context.Context, symbol string) (types.Candle, error)
	// GetHistory returns rangeYears of daily candles for the symbol,
	// oldest first.
	GetHistory(ctx context.Context, symbol string, rangeYears int) (types.PriceSeries, error)
}

// NewProvider creates a market data provider of the given type.
func NewProvider(providerType ProviderType, apiKey string) (Provider, error) {
	switch providerType {
	case ProviderPolygon:
		return NewPolygonProvider(apiKey)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider,
			"unsupported market data provider: %s", providerType)
	}
}
