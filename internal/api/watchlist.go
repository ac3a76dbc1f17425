package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/moznion/go-optional"

	"github.com/stockpulse-lab/stockpulse/internal/screener"
	"github.com/stockpulse-lab/stockpulse/internal/types"
	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

// stockView decorates a record with its derived trend fields.
type stockView struct {
	types.StockRecord
	Signal         types.TrendSignal        `json:"signal"`
	ATHDistancePct optional.Option[float64] `json:"ath_distance_pct"`
}

func viewOf(record types.StockRecord) stockView {
	return stockView{
		StockRecord:    record,
		Signal:         record.Signal(),
		ATHDistancePct: record.ATHDistancePct(),
	}
}

func (s *Server) handleListStocks(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListStocks()
	if err != nil {
		s.writeError(w, err)

		return
	}

	views := make([]stockView, 0, len(records))
	for _, record := range records {
		views = append(views, viewOf(record))
	}

	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetStock(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	record, err := s.store.GetStock(symbol)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if record.IsNone() {
		s.writeError(w, errors.Newf(errors.ErrCodeDataNotFound, "stock %s not found", symbol))

		return
	}

	s.writeJSON(w, http.StatusOK, viewOf(record.Unwrap()))
}

type addStockRequest struct {
	Symbol    string `json:"symbol"`
	Group     string `json:"group"`
	StockName string `json:"stock_name"`
}

// handleAddStock registers a symbol and performs its first refresh.
func (s *Server) handleAddStock(w http.ResponseWriter, r *http.Request) {
	var req addStockRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)

		return
	}

	if req.Symbol == "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidSymbol, "symbol must not be empty"))

		return
	}

	existing, err := s.store.GetStock(req.Symbol)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if existing.IsSome() {
		s.writeError(w, errors.Newf(errors.ErrCodeDuplicateSymbol,
			"stock %s is already on the watchlist", req.Symbol))

		return
	}

	record, err := s.refresher.RefreshSymbol(r.Context(), req.Symbol)
	if err != nil {
		s.writeError(w, err)

		return
	}

	record.Group = req.Group
	record.StockName = req.StockName

	if err := s.store.UpsertStock(record); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, viewOf(record))
}

func (s *Server) handleDeleteStock(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	if err := s.store.DeleteStock(symbol); err != nil {
		s.writeError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	report, err := s.refresher.RefreshWatchlist(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRefreshSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	record, err := s.refresher.RefreshSymbol(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, viewOf(record))
}

type screenResponse struct {
	Matches []stockView `json:"matches"`
	Total   int         `json:"total"`
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	var criteria screener.Criteria
	if err := decodeBody(r, &criteria); err != nil {
		s.writeError(w, err)

		return
	}

	records, err := s.store.ListStocks()
	if err != nil {
		s.writeError(w, err)

		return
	}

	matches, total, err := s.screener.Filter(records, criteria)
	if err != nil {
		s.writeError(w, err)

		return
	}

	views := make([]stockView, 0, len(matches))
	for _, record := range matches {
		views = append(views, viewOf(record))
	}

	s.writeJSON(w, http.StatusOK, screenResponse{Matches: views, Total: total})
}

func (s *Server) handleScreenerSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := screener.CriteriaJSONSchema()
	if err != nil {
		s.writeError(w, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(schema))
}
