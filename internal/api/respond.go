package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}

	s.writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Code:  int(errors.GetCode(err)),
	})
}

func statusFor(err error) int {
	switch {
	case errors.HasCode(err, errors.ErrCodeLotNotFound),
		errors.HasCode(err, errors.ErrCodeDataNotFound):
		return http.StatusNotFound
	case errors.HasCode(err, errors.ErrCodeDuplicateSymbol):
		return http.StatusConflict
	case errors.HasCode(err, errors.ErrCodeInvalidOrder),
		errors.HasCode(err, errors.ErrCodeOversell),
		errors.HasCode(err, errors.ErrCodeInvalidCriteria),
		errors.HasCode(err, errors.ErrCodeInvalidParameter),
		errors.HasCode(err, errors.ErrCodeInvalidSymbol),
		errors.HasCode(err, errors.ErrCodeInvalidPeriod),
		errors.HasCode(err, errors.ErrCodeBacktestEmptySeries):
		return http.StatusBadRequest
	case errors.HasCode(err, errors.ErrCodeJobSuperseded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "malformed request body", err)
	}

	return nil
}
