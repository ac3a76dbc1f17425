package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/stockpulse-lab/stockpulse/internal/indicator"
	"github.com/stockpulse-lab/stockpulse/internal/logger"
	"github.com/stockpulse-lab/stockpulse/internal/store"
	"github.com/stockpulse-lab/stockpulse/internal/types"
	"github.com/stockpulse-lab/stockpulse/pkg/errors"
	"github.com/stockpulse-lab/stockpulse/pkg/marketdata"
)

const (
	defaultWorkers      = 4
	defaultHistoryYears = 5
)

// Config controls a refresh service. Zero values fall back to defaults.
type Config struct {
	// Workers bounds how many symbols refresh in parallel.
	Workers int `yaml:"workers" json:"workers" validate:"gte=0"`
	// HistoryYears is how much daily history to pull per symbol.
	HistoryYears int `yaml:"history_years" json:"history_years" validate:"gte=0"`
	// StaleThreshold marks records older than this as stale in job reports.
	// Advisory only.
	StaleThreshold time.Duration `yaml:"stale_threshold" json:"stale_threshold"`
	// ShowProgress renders a terminal progress bar during batch jobs.
	ShowProgress bool `yaml:"show_progress" json:"show_progress"`
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}

	if c.HistoryYears <= 0 {
		c.HistoryYears = defaultHistoryYears
	}

	return c
}

// SymbolFailure is one symbol's error inside a batch job. Failures never
// abort sibling symbols.
type SymbolFailure struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	Error  string `yaml:"error" json:"error"`
}

// JobReport summarizes one batch refresh.
type JobReport struct {
	JobID      string          `yaml:"job_id" json:"job_id"`
	StartedAt  time.Time       `yaml:"started_at" json:"started_at"`
	FinishedAt time.Time       `yaml:"finished_at" json:"finished_at"`
	Refreshed  []string        `yaml:"refreshed" json:"refreshed"`
	Failures   []SymbolFailure `yaml:"failures" json:"failures"`
	// Stale lists symbols whose stored record is still older than the
	// configured threshold after the job, typically because their fetch
	// failed.
	Stale []string `yaml:"stale" json:"stale"`
}

// Service recomputes watchlist indicators from fresh market data. Per-symbol
// work is serialized so concurrent refreshes can never interleave ATH
// read-modify-write cycles for the same symbol.
type Service struct {
	provider marketdata.Provider
	store    *store.Store
	engine   *indicator.Engine
	logger   *logger.Logger
	config   Config

	mu       sync.Mutex
	inFlight map[string]*sync.Mutex
}

func NewService(provider marketdata.Provider, st *store.Store, log *logger.Logger, config Config) *Service {
	return &Service{
		provider: provider,
		store:    st,
		engine:   indicator.NewEngine(log),
		logger:   log,
		config:   config.withDefaults(),
		mu:       sync.Mutex{},
		inFlight: make(map[string]*sync.Mutex),
	}
}

// RefreshSymbol fetches history for one symbol, recomputes its indicators
// and commits the new record in one write. The fetch and compute happen into
// a local result; nothing is stored until both succeed, so a failure or
// cancellation leaves the previous record intact.
func (s *Service) RefreshSymbol(ctx context.Context, symbol string) (types.StockRecord, error) {
	if symbol == "" {
		return types.StockRecord{}, errors.New(errors.ErrCodeInvalidSymbol, "symbol must not be empty")
	}

	lock := s.symbolLock(symbol)
	if !lock.TryLock() {
		return types.StockRecord{}, errors.Newf(errors.ErrCodeJobSuperseded,
			"refresh already in flight for %s", symbol)
	}
	defer lock.Unlock()

	prior, err := s.store.GetStock(symbol)
	if err != nil {
		return types.StockRecord{}, err
	}

	series, err := s.provider.GetHistory(ctx, symbol, s.config.HistoryYears)
	if err != nil {
		return types.StockRecord{}, err
	}

	priorATH := optional.None[float64]()

	if prior.IsSome() {
		priorATH = optional.Some(prior.Unwrap().ATH)
	}

	record, err := s.engine.Compute(series, priorATH)
	if err != nil {
		return types.StockRecord{}, err
	}

	if prior.IsSome() {
		record.Group = prior.Unwrap().Group
		record.StockName = prior.Unwrap().StockName
	}

	if err := ctx.Err(); err != nil {
		return types.StockRecord{}, errors.Wrapf(errors.ErrCodeJobCancelled, err,
			"refresh of %s cancelled before commit", symbol)
	}

	if err := s.store.UpsertStock(record); err != nil {
		return types.StockRecord{}, err
	}

	return record, nil
}

// RefreshAll refreshes the given symbols on a bounded worker pool. Each
// symbol succeeds or fails on its own; the report carries every outcome.
func (s *Service) RefreshAll(ctx context.Context, symbols []string) JobReport {
	report := JobReport{
		JobID:      uuid.New().String(),
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Time{},
		Refreshed:  nil,
		Failures:   nil,
		Stale:      nil,
	}

	s.logger.Info("Starting batch refresh",
		zap.String("job_id", report.JobID),
		zap.Int("symbols", len(symbols)),
		zap.Int("workers", s.config.Workers),
	)

	var bar *progressbar.ProgressBar
	if s.config.ShowProgress {
		bar = progressbar.Default(int64(len(symbols)))
	}

	var (
		wg       sync.WaitGroup
		reportMu sync.Mutex
	)

	sem := make(chan struct{}, s.config.Workers)

	for _, symbol := range symbols {
		wg.Add(1)

		go func(symbol string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			_, err := s.RefreshSymbol(ctx, symbol)

			reportMu.Lock()
			defer reportMu.Unlock()

			if err != nil {
				report.Failures = append(report.Failures, SymbolFailure{
					Symbol: symbol,
					Error:  err.Error(),
				})
			} else {
				report.Refreshed = append(report.Refreshed, symbol)
			}

			if bar != nil {
				bar.Add(1)
			}
		}(symbol)
	}

	wg.Wait()

	if bar != nil {
		bar.Finish()
	}

	report.FinishedAt = time.Now().UTC()
	report.Stale = s.staleAfter(report)

	s.logger.Info("Batch refresh finished",
		zap.String("job_id", report.JobID),
		zap.Int("refreshed", len(report.Refreshed)),
		zap.Int("failed", len(report.Failures)),
		zap.Int("stale", len(report.Stale)),
	)

	return report
}

// RefreshWatchlist refreshes every symbol currently in the store.
func (s *Service) RefreshWatchlist(ctx context.Context) (JobReport, error) {
	records, err := s.store.ListStocks()
	if err != nil {
		return JobReport{}, err
	}

	symbols := make([]string, 0, len(records))
	for _, record := range records {
		symbols = append(symbols, record.Symbol)
	}

	return s.RefreshAll(ctx, symbols), nil
}

// staleAfter checks failed symbols against the staleness threshold. A symbol
// whose stored record is still fresh enough is not reported even if this
// particular refresh failed.
func (s *Service) staleAfter(report JobReport) []string {
	if s.config.StaleThreshold <= 0 {
		return nil
	}

	now := time.Now().UTC()

	var stale []string

	for _, failure := range report.Failures {
		record, err := s.store.GetStock(failure.Symbol)
		if err != nil || record.IsNone() {
			continue
		}

		stored := record.Unwrap()
		if stored.IsStale(now, s.config.StaleThreshold) {
			stale = append(stale, failure.Symbol)
		}
	}

	return stale
}

func (s *Service) symbolLock(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.inFlight[symbol]
	if !ok {
		lock = &sync.Mutex{}
		s.inFlight[symbol] = lock
	}

	return lock
}
