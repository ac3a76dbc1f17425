// Package screener filters watchlist records against compound criteria.
package screener

import (
	"go.uber.org/zap"

	"github.com/stockpulse-lab/stockpulse/internal/logger"
	"github.com/stockpulse-lab/stockpulse/internal/types"
)

// Screener evaluates compound criteria over a collection of StockRecords.
type Screener struct {
	logger *logger.Logger
}

// NewScreener creates a new screener.
func NewScreener(log *logger.Logger) *Screener {
	return &Screener{
		logger: log,
	}
}

// Filter returns the records matching every enabled clause of the criteria,
// in input order, along with the total number of candidates considered.
// Empty criteria return all input records unchanged.
func (s *Screener) Filter(records []types.StockRecord, criteria Criteria) ([]types.StockRecord, int, error) {
	if err := criteria.Validate(); err != nil {
		return nil, 0, err
	}

	total := len(records)

	clauses := criteria.clauses()
	if len(clauses) == 0 {
		return records, total, nil
	}

	matches := make([]types.StockRecord, 0, len(records))

	for i := range records {
		if matchesAll(&records[i], clauses) {
			matches = append(matches, records[i])
		}
	}

	if s.logger != nil {
		s.logger.Debug("screener filter applied",
			zap.Int("total", total),
			zap.Int("matches", len(matches)),
			zap.Int("clauses", len(clauses)),
		)
	}

	return matches, total, nil
}

func matchesAll(record *types.StockRecord, clauses []clause) bool {
	for _, predicate := range clauses {
		if !predicate(record) {
			return false
		}
	}

	return true
}
