package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/stockpulse-lab/stockpulse/internal/logger"
	"github.com/stockpulse-lab/stockpulse/internal/store"
	"github.com/stockpulse-lab/stockpulse/internal/types"
	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

// fakeProvider serves canned series and can block or fail per symbol.
type fakeProvider struct {
	mu     sync.Mutex
	series map[string]types.PriceSeries
	errs   map[string]error

	release   chan struct{} // when set, GetHistory blocks until closed
	active    int32
	maxActive int32
}

func (f *fakeProvider) GetLatestCandle(_ context.Context, symbol string) (types.Candle, error) {
	f.mu.Lock()
	series, ok := f.series[symbol]
	f.mu.Unlock()

	if !ok || series.Len() == 0 {
		return types.Candle{}, errors.Newf(errors.ErrCodeDataUnavailable, "no data for %s", symbol)
	}

	return series.Candles[series.Len()-1], nil
}

func (f *fakeProvider) GetHistory(_ context.Context, symbol string, _ int) (types.PriceSeries, error) {
	current := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)

	for {
		observed := atomic.LoadInt32(&f.maxActive)
		if current <= observed || atomic.CompareAndSwapInt32(&f.maxActive, observed, current) {
			break
		}
	}

	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.errs[symbol]; ok {
		return types.PriceSeries{}, err
	}

	series, ok := f.series[symbol]
	if !ok {
		return types.PriceSeries{}, errors.Newf(errors.ErrCodeMarketDataFetchFailed, "unknown symbol %s", symbol)
	}

	return series, nil
}

func risingSeries(symbol string, days int) types.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]types.Candle, 0, days)

	for i := 0; i < days; i++ {
		price := 100.0 + float64(i)
		candles = append(candles, types.Candle{
			Symbol: symbol,
			Time:   start.AddDate(0, 0, i),
			Open:   price - 0.5,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000,
		})
	}

	return types.PriceSeries{Symbol: symbol, Candles: candles}
}

type ServiceTestSuite struct {
	suite.Suite
	store    *store.Store
	provider *fakeProvider
	service  *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (suite *ServiceTestSuite) SetupTest() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	suite.store, err = store.NewStore("", log)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.store.Initialize())

	suite.provider = &fakeProvider{
		series: map[string]types.PriceSeries{
			"ACME": risingSeries("ACME", 25),
			"TCS":  risingSeries("TCS", 25),
			"BETA": risingSeries("BETA", 3),
		},
		errs: map[string]error{},
	}

	suite.service = NewService(suite.provider, suite.store, log, Config{
		Workers:      2,
		HistoryYears: 1,
	})
}

func (suite *ServiceTestSuite) TearDownTest() {
	suite.store.Close()
}

func (suite *ServiceTestSuite) TestRefreshSymbolComputesAndPersists() {
	record, err := suite.service.RefreshSymbol(context.Background(), "ACME")
	suite.NoError(err)
	suite.Equal("ACME", record.Symbol)
	suite.InDelta(124.0, record.ATH, 1e-9)
	suite.True(record.EMA20.IsSome())

	stored, err := suite.store.GetStock("ACME")
	suite.NoError(err)
	suite.Require().True(stored.IsSome())
	suite.InDelta(124.0, stored.Unwrap().ATH, 1e-9)
}

func (suite *ServiceTestSuite) TestRefreshPreservesGroupAndPriorATH() {
	suite.Require().NoError(suite.store.UpsertStock(types.StockRecord{
		Symbol:         "ACME",
		Group:          "industrials",
		StockName:      "Acme Corp",
		ATH:            200,
		Open:           150,
		Close:          150,
		EMA5:           optional.None[float64](),
		EMA10:          optional.None[float64](),
		EMA20:          optional.None[float64](),
		PrevChangePct:  optional.None[float64](),
		TodayChangePct: optional.None[float64](),
		LastUpdated:    time.Now().UTC(),
	}))

	record, err := suite.service.RefreshSymbol(context.Background(), "ACME")
	suite.NoError(err)
	suite.Equal("industrials", record.Group)
	suite.Equal("Acme Corp", record.StockName)
	// The stored high-water mark beats anything in the fetched window.
	suite.InDelta(200.0, record.ATH, 1e-9)
}

func (suite *ServiceTestSuite) TestShortHistoryDegradesGracefully() {
	record, err := suite.service.RefreshSymbol(context.Background(), "BETA")
	suite.NoError(err)
	suite.True(record.EMA5.IsNone())
	suite.True(record.EMA20.IsNone())
	suite.InDelta(102.0, record.Close, 1e-9)
}

func (suite *ServiceTestSuite) TestRefreshEmptySymbol() {
	_, err := suite.service.RefreshSymbol(context.Background(), "")

	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidSymbol))
}

func (suite *ServiceTestSuite) TestRefreshAllCapturesPerSymbolFailures() {
	suite.provider.errs["TCS"] = errors.New(errors.ErrCodeMarketDataFetchFailed, "rate limited")

	report := suite.service.RefreshAll(context.Background(), []string{"ACME", "TCS", "BETA"})

	suite.NotEmpty(report.JobID)
	suite.ElementsMatch([]string{"ACME", "BETA"}, report.Refreshed)
	suite.Require().Len(report.Failures, 1)
	suite.Equal("TCS", report.Failures[0].Symbol)
	suite.Contains(report.Failures[0].Error, "rate limited")
	suite.False(report.FinishedAt.Before(report.StartedAt))
}

func (suite *ServiceTestSuite) TestRefreshAllBoundsParallelism() {
	symbols := []string{"ACME", "TCS", "BETA", "ACME2", "TCS2"}
	for _, symbol := range symbols {
		suite.provider.series[symbol] = risingSeries(symbol, 25)
	}

	report := suite.service.RefreshAll(context.Background(), symbols)

	suite.Len(report.Refreshed, len(symbols))
	suite.LessOrEqual(atomic.LoadInt32(&suite.provider.maxActive), int32(2))
}

func (suite *ServiceTestSuite) TestConcurrentRefreshOfSameSymbolIsSuperseded() {
	suite.provider.release = make(chan struct{})

	firstDone := make(chan error, 1)

	go func() {
		_, err := suite.service.RefreshSymbol(context.Background(), "ACME")
		firstDone <- err
	}()

	// Wait for the first refresh to reach the provider.
	suite.Eventually(func() bool {
		return atomic.LoadInt32(&suite.provider.active) == 1
	}, time.Second, time.Millisecond)

	_, err := suite.service.RefreshSymbol(context.Background(), "ACME")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeJobSuperseded))

	close(suite.provider.release)
	suite.NoError(<-firstDone)
}

func (suite *ServiceTestSuite) TestCancelledRefreshCommitsNothing() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := suite.service.RefreshSymbol(ctx, "ACME")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeJobCancelled))

	stored, err := suite.store.GetStock("ACME")
	suite.NoError(err)
	suite.True(stored.IsNone())
}

func (suite *ServiceTestSuite) TestStaleSymbolsReported() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	service := NewService(suite.provider, suite.store, log, Config{
		Workers:        2,
		HistoryYears:   1,
		StaleThreshold: time.Hour,
	})

	suite.Require().NoError(suite.store.UpsertStock(types.StockRecord{
		Symbol:         "TCS",
		Group:          "",
		StockName:      "",
		ATH:            100,
		Open:           90,
		Close:          95,
		EMA5:           optional.None[float64](),
		EMA10:          optional.None[float64](),
		EMA20:          optional.None[float64](),
		PrevChangePct:  optional.None[float64](),
		TodayChangePct: optional.None[float64](),
		LastUpdated:    time.Now().UTC().Add(-48 * time.Hour),
	}))

	suite.provider.errs["TCS"] = errors.New(errors.ErrCodeMarketDataFetchFailed, "unreachable")

	report := service.RefreshAll(context.Background(), []string{"ACME", "TCS"})

	suite.ElementsMatch([]string{"ACME"}, report.Refreshed)
	suite.Equal([]string{"TCS"}, report.Stale)
}

func (suite *ServiceTestSuite) TestRefreshWatchlist() {
	suite.Require().NoError(suite.store.UpsertStock(types.StockRecord{
		Symbol:         "ACME",
		Group:          "industrials",
		StockName:      "Acme Corp",
		ATH:            100,
		Open:           90,
		Close:          95,
		EMA5:           optional.None[float64](),
		EMA10:          optional.None[float64](),
		EMA20:          optional.None[float64](),
		PrevChangePct:  optional.None[float64](),
		TodayChangePct: optional.None[float64](),
		LastUpdated:    time.Now().UTC(),
	}))

	report, err := suite.service.RefreshWatchlist(context.Background())
	suite.NoError(err)
	suite.Equal([]string{"ACME"}, report.Refreshed)
}
