package marketdata

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/stockpulse-lab/stockpulse/internal/types"
	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

// latestLookbackDays is how far back GetLatestCandle searches for the most
// recent completed session. Covers weekends and long holiday gaps.
const latestLookbackDays = 10

// PolygonAggsIterator abstracts polygon's aggregate iterator so tests can
// inject canned data.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient is the slice of the polygon REST client this provider uses.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, opts ...models.RequestOption) PolygonAggsIterator
}

type polygonRESTClient struct {
	client *polygon.Client
}

func (c *polygonRESTClient) ListAggs(ctx context.Context, params *models.ListAggsParams, opts ...models.RequestOption) PolygonAggsIterator {
	return c.client.ListAggs(ctx, params, opts...)
}

type PolygonProvider struct {
	api PolygonAPIClient
}

func NewPolygonProvider(apiKey string) (*PolygonProvider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidProvider, "polygon api key is required")
	}

	return &PolygonProvider{
		api: &polygonRESTClient{client: polygon.New(apiKey)},
	}, nil
}

func newPolygonProviderWithClient(api PolygonAPIClient) *PolygonProvider {
	return &PolygonProvider{
		api: api,
	}
}

// GetLatestCandle implements Provider.
func (p *PolygonProvider) GetLatestCandle(ctx context.Context, symbol string) (types.Candle, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -latestLookbackDays)

	candles, err := p.fetchRange(ctx, symbol, start, end)
	if err != nil {
		return types.Candle{}, err
	}

	if len(candles) == 0 {
		return types.Candle{}, errors.Newf(errors.ErrCodeDataUnavailable,
			"no recent candles for %s", symbol)
	}

	return candles[len(candles)-1], nil
}

// GetHistory implements Provider.
func (p *PolygonProvider) GetHistory(ctx context.Context, symbol string, rangeYears int) (types.PriceSeries, error) {
	if rangeYears <= 0 {
		return types.PriceSeries{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"history range must be positive, got %d years", rangeYears)
	}

	end := time.Now().UTC()
	start := end.AddDate(-rangeYears, 0, 0)

	candles, err := p.fetchRange(ctx, symbol, start, end)
	if err != nil {
		return types.PriceSeries{}, err
	}

	series, err := types.NewPriceSeries(symbol, candles)
	if err != nil {
		return types.PriceSeries{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err,
			"polygon returned a malformed series for %s", symbol)
	}

	return series, nil
}

func (p *PolygonProvider) fetchRange(ctx context.Context, symbol string, start, end time.Time) ([]types.Candle, error) {
	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithLimit(50000)

	iter := p.api.ListAggs(ctx, params)

	var candles []types.Candle

	for iter.Next() {
		agg := iter.Item()
		candles = append(candles, types.Candle{
			Symbol: symbol,
			Time:   time.Time(agg.Timestamp),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	if iter.Err() != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, iter.Err(),
			"failed to fetch polygon aggregates for %s", symbol)
	}

	return candles, nil
}
