// Package api exposes the watchlist engine over HTTP.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/stockpulse-lab/stockpulse/internal/backtest"
	"github.com/stockpulse-lab/stockpulse/internal/ledger"
	"github.com/stockpulse-lab/stockpulse/internal/logger"
	"github.com/stockpulse-lab/stockpulse/internal/refresh"
	"github.com/stockpulse-lab/stockpulse/internal/screener"
	"github.com/stockpulse-lab/stockpulse/internal/store"
	"github.com/stockpulse-lab/stockpulse/pkg/marketdata"
)

// Server wires the engine components behind a REST API.
type Server struct {
	store     *store.Store
	ledger    *ledger.Ledger
	screener  *screener.Screener
	simulator *backtest.Simulator
	refresher *refresh.Service
	provider  marketdata.Provider
	logger    *logger.Logger

	httpServer *http.Server
	listener   net.Listener
}

func NewServer(
	st *store.Store,
	lg *ledger.Ledger,
	refresher *refresh.Service,
	provider marketdata.Provider,
	log *logger.Logger,
) *Server {
	return &Server{
		store:      st,
		ledger:     lg,
		screener:   screener.NewScreener(log),
		simulator:  backtest.NewSimulator(log),
		refresher:  refresher,
		provider:   provider,
		logger:     log,
		httpServer: nil,
		listener:   nil,
	}
}

// Router builds the route table. Exposed so tests can drive handlers
// through httptest without opening a socket.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/stocks", s.handleListStocks).Methods("GET")
	router.HandleFunc("/api/stocks", s.handleAddStock).Methods("POST")
	router.HandleFunc("/api/stocks/{symbol}", s.handleGetStock).Methods("GET")
	router.HandleFunc("/api/stocks/{symbol}", s.handleDeleteStock).Methods("DELETE")
	router.HandleFunc("/api/refresh", s.handleRefreshAll).Methods("POST")
	router.HandleFunc("/api/refresh/{symbol}", s.handleRefreshSymbol).Methods("POST")

	router.HandleFunc("/api/screener", s.handleScreen).Methods("POST")
	router.HandleFunc("/api/screener/schema", s.handleScreenerSchema).Methods("GET")

	router.HandleFunc("/api/positions", s.handleListPositions).Methods("GET")
	router.HandleFunc("/api/positions/summary", s.handlePositionsSummary).Methods("GET")
	router.HandleFunc("/api/orders/buy", s.handleBuy).Methods("POST")
	router.HandleFunc("/api/orders/sell", s.handleSell).Methods("POST")
	router.HandleFunc("/api/orders/edit", s.handleEdit).Methods("POST")
	router.HandleFunc("/api/orders/remove", s.handleRemove).Methods("POST")

	router.HandleFunc("/api/trades", s.handleListTrades).Methods("GET")
	router.HandleFunc("/api/trades/summary", s.handleTradesSummary).Methods("GET")

	router.HandleFunc("/api/backtest", s.handleBacktest).Methods("POST")

	return router
}

// Start begins serving on the given address. An empty address picks a
// random port; Address reports the bound one.
func (s *Server) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	s.logger.Info("API server started", zap.String("address", s.Address()))

	return nil
}

// Stop shuts the server down, draining in-flight requests.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// Address returns the bound listen address.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}
