package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/stockpulse-lab/stockpulse/internal/api"
	"github.com/stockpulse-lab/stockpulse/internal/backtest"
	"github.com/stockpulse-lab/stockpulse/internal/config"
	"github.com/stockpulse-lab/stockpulse/internal/ledger"
	"github.com/stockpulse-lab/stockpulse/internal/logger"
	"github.com/stockpulse-lab/stockpulse/internal/refresh"
	"github.com/stockpulse-lab/stockpulse/internal/screener"
	"github.com/stockpulse-lab/stockpulse/internal/store"
	"github.com/stockpulse-lab/stockpulse/pkg/errors"
	"github.com/stockpulse-lab/stockpulse/pkg/marketdata"
)

// app bundles the services shared by every subcommand.
type app struct {
	config    config.Config
	logger    *logger.Logger
	store     *store.Store
	provider  marketdata.Provider
	refresher *refresh.Service
}

// newApp builds the shared service graph from the config file given by the
// global --config flag.
func newApp(cmd *cli.Command) (*app, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	appLogger, err := logger.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	st, err := store.NewStore(cfg.Database.Path, appLogger)
	if err != nil {
		return nil, err
	}

	if err := st.Initialize(); err != nil {
		return nil, err
	}

	provider, err := marketdata.NewProvider(
		marketdata.ProviderType(cfg.Provider.Type), cfg.PolygonAPIKey())
	if err != nil {
		return nil, err
	}

	refresher := refresh.NewService(provider, st, appLogger, refresh.Config{
		Workers:        cfg.Refresh.Workers,
		HistoryYears:   cfg.Refresh.HistoryYears,
		StaleThreshold: time.Duration(cfg.Refresh.StaleThreshold),
		ShowProgress:   cfg.Refresh.ShowProgress,
	})

	return &app{
		config:    cfg,
		logger:    appLogger,
		store:     st,
		provider:  provider,
		refresher: refresher,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close store", zap.Error(err))
	}
}

// printJSON renders any result to stdout as indented JSON.
func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}

// refreshAction refreshes the given symbols, or the whole watchlist when no
// symbols are passed, and prints the job report.
func refreshAction(ctx context.Context, cmd *cli.Command) error {
	application, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer application.close()

	symbols := cmd.Args().Slice()

	var report refresh.JobReport

	if len(symbols) == 0 {
		report, err = application.refresher.RefreshWatchlist(ctx)
		if err != nil {
			return err
		}
	} else {
		report = application.refresher.RefreshAll(ctx, symbols)
	}

	return printJSON(report)
}

// screenAction filters the stored watchlist with criteria read from a JSON
// file and prints the matching records.
func screenAction(ctx context.Context, cmd *cli.Command) error {
	application, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer application.close()

	content, err := os.ReadFile(cmd.String("criteria"))
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidCriteria, err,
			"failed to read criteria file %s", cmd.String("criteria"))
	}

	var criteria screener.Criteria
	if err := json.Unmarshal(content, &criteria); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidCriteria, "malformed criteria file", err)
	}

	records, err := application.store.ListStocks()
	if err != nil {
		return err
	}

	scr := screener.NewScreener(application.logger)

	matches, total, err := scr.Filter(records, criteria)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"matches": matches,
		"total":   total,
	})
}

// backtestAction fetches history for one symbol, runs the up-candle reversal
// study, and prints the report.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	application, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer application.close()

	series, err := application.provider.GetHistory(ctx, cmd.String("symbol"), int(cmd.Int("years")))
	if err != nil {
		return err
	}

	simulator := backtest.NewSimulator(application.logger)

	report, err := simulator.Run(ctx, series, cmd.Float("up-pct"))
	if err != nil {
		return err
	}

	return printJSON(report)
}

// serveAction starts the HTTP API and blocks until SIGINT or SIGTERM.
func serveAction(ctx context.Context, cmd *cli.Command) error {
	application, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer application.close()

	lotLedger := ledger.NewLedger(application.logger)

	positions, err := application.store.LoadPositions()
	if err != nil {
		return err
	}

	lotLedger.Restore(positions)

	server := api.NewServer(
		application.store,
		lotLedger,
		application.refresher,
		application.provider,
		application.logger,
	)

	address := cmd.String("address")
	if address == "" {
		address = application.config.Server.Address
	}

	if err := server.Start(address); err != nil {
		return err
	}

	log.Printf("listening on %s", server.Address())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	return server.Stop()
}

func main() {
	cmd := &cli.Command{
		Name:  "stockpulse",
		Usage: "Watchlist analytics: refresh indicators, screen, track lots, and backtest",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "refresh",
				Usage:     "Refresh indicators for the given symbols, or the whole watchlist",
				ArgsUsage: "[symbol ...]",
				Action:    refreshAction,
			},
			{
				Name:  "screen",
				Usage: "Filter the watchlist with criteria from a JSON file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "criteria",
						Usage:    "Path to a JSON criteria file",
						Required: true,
					},
				},
				Action: screenAction,
			},
			{
				Name:  "backtest",
				Usage: "Run the up-candle reversal study for one symbol",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "symbol",
						Aliases:  []string{"s"},
						Usage:    "Ticker symbol to study",
						Required: true,
					},
					&cli.FloatFlag{
						Name:  "up-pct",
						Usage: "Minimum up-candle percentage that marks a setup day",
						Value: 4.0,
					},
					&cli.IntFlag{
						Name:  "years",
						Usage: "Years of daily history to fetch",
						Value: 5,
					},
				},
				Action: backtestAction,
			},
			{
				Name:  "serve",
				Usage: "Start the HTTP API server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "address",
						Aliases: []string{"a"},
						Usage:   "Listen address, e.g. :8080 (defaults to the config value)",
					},
				},
				Action: serveAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
