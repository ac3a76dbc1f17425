package api

import (
	"net/http"

	"github.com/stockpulse-lab/stockpulse/internal/types"
)

// persistLots snapshots the ledger's open lots to the store. Mutations
// commit in memory first; persistence failures are logged as errors by the
// store path but do not roll back the ledger.
func (s *Server) persistLots(w http.ResponseWriter) bool {
	if err := s.store.ReplacePositions(s.ledger.OpenLots()); err != nil {
		s.writeError(w, err)

		return false
	}

	return true
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var cmd types.BuyCommand
	if err := decodeBody(r, &cmd); err != nil {
		s.writeError(w, err)

		return
	}

	position, err := s.ledger.Buy(cmd)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if !s.persistLots(w) {
		return
	}

	s.writeJSON(w, http.StatusCreated, position)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var cmd types.SellCommand
	if err := decodeBody(r, &cmd); err != nil {
		s.writeError(w, err)

		return
	}

	result, err := s.ledger.Sell(cmd)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if err := s.store.InsertTrade(result.Trade); err != nil {
		s.writeError(w, err)

		return
	}

	if !s.persistLots(w) {
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var cmd types.EditCommand
	if err := decodeBody(r, &cmd); err != nil {
		s.writeError(w, err)

		return
	}

	position, err := s.ledger.Edit(cmd)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if !s.persistLots(w) {
		return
	}

	s.writeJSON(w, http.StatusOK, position)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var key types.LotKey
	if err := decodeBody(r, &key); err != nil {
		s.writeError(w, err)

		return
	}

	if err := s.ledger.Remove(key); err != nil {
		s.writeError(w, err)

		return
	}

	if !s.persistLots(w) {
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.OpenLots())
}

func (s *Server) handlePositionsSummary(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListStocks()
	if err != nil {
		s.writeError(w, err)

		return
	}

	prices := make(map[string]float64, len(records))
	for _, record := range records {
		prices[record.Symbol] = record.Close
	}

	s.writeJSON(w, http.StatusOK, s.ledger.Summary(prices))
}
