package api

import (
	"net/http"
	"time"

	"github.com/stockpulse-lab/stockpulse/internal/ledger"
	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	if from == "" && to == "" {
		trades, err := s.store.ListTrades()
		if err != nil {
			s.writeError(w, err)

			return
		}

		s.writeJSON(w, http.StatusOK, trades)

		return
	}

	start, end, err := parseDateRange(from, to)
	if err != nil {
		s.writeError(w, err)

		return
	}

	trades, err := s.store.TradesBetween(start, end)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleTradesSummary(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.ListTrades()
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, ledger.Stats(trades))
}

type backtestRequest struct {
	Symbol      string  `json:"symbol"`
	UpCandlePct float64 `json:"up_candle_pct"`
	RangeYears  int     `json:"range_years"`
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)

		return
	}

	if req.Symbol == "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidSymbol, "symbol must not be empty"))

		return
	}

	if req.RangeYears <= 0 {
		req.RangeYears = 5
	}

	series, err := s.provider.GetHistory(r.Context(), req.Symbol, req.RangeYears)
	if err != nil {
		s.writeError(w, err)

		return
	}

	report, err := s.simulator.Run(r.Context(), series, req.UpCandlePct)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

func parseDateRange(from, to string) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

	if from != "" {
		parsed, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err,
				"invalid from date %q, want YYYY-MM-DD", from)
		}

		start = parsed
	}

	if to != "" {
		parsed, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return time.Time{}, time.Time{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err,
				"invalid to date %q, want YYYY-MM-DD", to)
		}

		end = parsed
	}

	return start, end, nil
}
