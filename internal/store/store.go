package store

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/stockpulse-lab/stockpulse/internal/logger"
	"github.com/stockpulse-lab/stockpulse/internal/types"
	"github.com/stockpulse-lab/stockpulse/pkg/errors"
)

// Store persists the watchlist, open lots and the trade log in DuckDB.
// Pass an empty path for an in-memory database.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

func NewStore(path string, log *logger.Logger) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to open database at %s", path)
	}

	return &Store{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the tables. Safe to call on an existing database.
func (s *Store) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS stocks (
			symbol TEXT PRIMARY KEY,
			stock_group TEXT,
			stock_name TEXT,
			ath DOUBLE,
			open DOUBLE,
			close DOUBLE,
			ema5 DOUBLE,
			ema10 DOUBLE,
			ema20 DOUBLE,
			prev_change_pct DOUBLE,
			today_change_pct DOUBLE,
			last_updated TIMESTAMP
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create stocks table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS positions (
			symbol TEXT,
			stock_name TEXT,
			buy_price DOUBLE,
			buy_date TIMESTAMP,
			quantity INTEGER,
			remaining INTEGER,
			stoploss DOUBLE,
			status TEXT,
			lot_index INTEGER
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create positions table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT,
			stock_name TEXT,
			buy_price DOUBLE,
			sell_price DOUBLE,
			quantity INTEGER,
			buy_date TIMESTAMP,
			sell_date TIMESTAMP,
			pnl DOUBLE,
			pnl_pct DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create trades table", err)
	}

	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertStock writes a record, replacing any previous row for the symbol.
// A write that would lower the stored high-water ATH is rejected; callers
// merge the prior ATH before computing, so a decrease means corrupt input.
func (s *Store) UpsertStock(record types.StockRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to begin transaction", err)
	}

	var storedATH float64

	row := s.sq.
		Select("ath").
		From("stocks").
		Where(squirrel.Eq{"symbol": record.Symbol}).
		RunWith(tx).
		QueryRow()

	err = row.Scan(&storedATH)

	switch {
	case err == sql.ErrNoRows:
		insert := s.sq.
			Insert("stocks").
			Columns(
				"symbol", "stock_group", "stock_name", "ath", "open", "close",
				"ema5", "ema10", "ema20", "prev_change_pct", "today_change_pct", "last_updated",
			).
			Values(
				record.Symbol, record.Group, record.StockName, record.ATH, record.Open, record.Close,
				nullable(record.EMA5), nullable(record.EMA10), nullable(record.EMA20),
				nullable(record.PrevChangePct), nullable(record.TodayChangePct), record.LastUpdated,
			).
			RunWith(tx)

		if _, err := insert.Exec(); err != nil {
			tx.Rollback()

			return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to insert stock %s", record.Symbol)
		}
	case err != nil:
		tx.Rollback()

		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read stock %s", record.Symbol)
	default:
		if record.ATH < storedATH {
			tx.Rollback()

			return errors.Newf(errors.ErrCodeHighWaterMarkDecreased,
				"refusing to lower ATH for %s from %.4f to %.4f", record.Symbol, storedATH, record.ATH)
		}

		update := s.sq.
			Update("stocks").
			Set("stock_group", record.Group).
			Set("stock_name", record.StockName).
			Set("ath", record.ATH).
			Set("open", record.Open).
			Set("close", record.Close).
			Set("ema5", nullable(record.EMA5)).
			Set("ema10", nullable(record.EMA10)).
			Set("ema20", nullable(record.EMA20)).
			Set("prev_change_pct", nullable(record.PrevChangePct)).
			Set("today_change_pct", nullable(record.TodayChangePct)).
			Set("last_updated", record.LastUpdated).
			Where(squirrel.Eq{"symbol": record.Symbol}).
			RunWith(tx)

		if _, err := update.Exec(); err != nil {
			tx.Rollback()

			return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to update stock %s", record.Symbol)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to commit stock upsert", err)
	}

	s.logger.Debug("Stock upserted",
		zap.String("symbol", record.Symbol),
		zap.Float64("ath", record.ATH),
	)

	return nil
}

// GetStock looks up one record by symbol. None when the symbol is unknown.
func (s *Store) GetStock(symbol string) (optional.Option[types.StockRecord], error) {
	query := s.sq.
		Select(stockColumns...).
		From("stocks").
		Where(squirrel.Eq{"symbol": symbol}).
		RunWith(s.db)

	record, err := scanStock(query.QueryRow())
	if err == sql.ErrNoRows {
		return optional.None[types.StockRecord](), nil
	}

	if err != nil {
		return optional.None[types.StockRecord](), errors.Wrapf(errors.ErrCodeQueryFailed, err,
			"failed to query stock %s", symbol)
	}

	return optional.Some(record), nil
}

// ListStocks returns every watchlist record, ordered by symbol.
func (s *Store) ListStocks() ([]types.StockRecord, error) {
	query := s.sq.
		Select(stockColumns...).
		From("stocks").
		OrderBy("symbol ASC").
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query stocks", err)
	}
	defer rows.Close()

	var records []types.StockRecord

	for rows.Next() {
		record, err := scanStock(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan stock", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating stocks", err)
	}

	return records, nil
}

// DeleteStock removes a symbol from the watchlist.
func (s *Store) DeleteStock(symbol string) error {
	result, err := s.sq.
		Delete("stocks").
		Where(squirrel.Eq{"symbol": symbol}).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to delete stock %s", symbol)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return errors.Newf(errors.ErrCodeDataNotFound, "stock %s not found", symbol)
	}

	return nil
}

// ReplacePositions rewrites the open-lot snapshot in one transaction. The
// in-memory ledger is the source of truth; this persists its current state
// atomically so a crash never leaves a half-written lot set.
func (s *Store) ReplacePositions(positions []types.Position) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to begin transaction", err)
	}

	if _, err := tx.Exec(`DELETE FROM positions`); err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to clear positions", err)
	}

	for _, position := range positions {
		insert := s.sq.
			Insert("positions").
			Columns(
				"symbol", "stock_name", "buy_price", "buy_date", "quantity",
				"remaining", "stoploss", "status", "lot_index",
			).
			Values(
				position.Symbol, position.StockName, position.BuyPrice, position.BuyDate,
				position.Quantity, position.Remaining, nullable(position.Stoploss),
				string(position.Status), position.Index,
			).
			RunWith(tx)

		if _, err := insert.Exec(); err != nil {
			tx.Rollback()

			return errors.Wrapf(errors.ErrCodeQueryFailed, err,
				"failed to insert position %s", position.Symbol)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to commit positions", err)
	}

	return nil
}

// LoadPositions reads back the persisted open-lot snapshot.
func (s *Store) LoadPositions() ([]types.Position, error) {
	query := s.sq.
		Select(
			"symbol", "stock_name", "buy_price", "buy_date", "quantity",
			"remaining", "stoploss", "status", "lot_index",
		).
		From("positions").
		OrderBy("buy_date ASC, symbol ASC, lot_index ASC").
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query positions", err)
	}
	defer rows.Close()

	var positions []types.Position

	for rows.Next() {
		var (
			position types.Position
			stoploss sql.NullFloat64
			status   string
		)

		err := rows.Scan(
			&position.Symbol,
			&position.StockName,
			&position.BuyPrice,
			&position.BuyDate,
			&position.Quantity,
			&position.Remaining,
			&stoploss,
			&status,
			&position.Index,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan position", err)
		}

		position.Stoploss = fromNull(stoploss)
		position.Status = types.PositionStatus(status)
		positions = append(positions, position)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating positions", err)
	}

	return positions, nil
}

// InsertTrade appends one immutable trade to the log.
func (s *Store) InsertTrade(trade types.Trade) error {
	insert := s.sq.
		Insert("trades").
		Columns(
			"id", "symbol", "stock_name", "buy_price", "sell_price",
			"quantity", "buy_date", "sell_date", "pnl", "pnl_pct",
		).
		Values(
			trade.ID, trade.Symbol, trade.StockName, trade.BuyPrice, trade.SellPrice,
			trade.Quantity, trade.BuyDate, trade.SellDate, trade.PnL, trade.PnLPct,
		).
		RunWith(s.db)

	if _, err := insert.Exec(); err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to insert trade %s", trade.ID)
	}

	return nil
}

// ListTrades returns the whole trade log, oldest sale first.
func (s *Store) ListTrades() ([]types.Trade, error) {
	return s.queryTrades(s.sq.
		Select(tradeColumns...).
		From("trades").
		OrderBy("sell_date ASC"))
}

// TradesBetween returns trades whose sell date falls in [start, end].
func (s *Store) TradesBetween(start, end time.Time) ([]types.Trade, error) {
	return s.queryTrades(s.sq.
		Select(tradeColumns...).
		From("trades").
		Where(squirrel.GtOrEq{"sell_date": start}).
		Where(squirrel.LtOrEq{"sell_date": end}).
		OrderBy("sell_date ASC"))
}

func (s *Store) queryTrades(builder squirrel.SelectBuilder) ([]types.Trade, error) {
	rows, err := builder.RunWith(s.db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query trades", err)
	}
	defer rows.Close()

	var trades []types.Trade

	for rows.Next() {
		var trade types.Trade

		err := rows.Scan(
			&trade.ID,
			&trade.Symbol,
			&trade.StockName,
			&trade.BuyPrice,
			&trade.SellPrice,
			&trade.Quantity,
			&trade.BuyDate,
			&trade.SellDate,
			&trade.PnL,
			&trade.PnLPct,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan trade", err)
		}

		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating trades", err)
	}

	return trades, nil
}

var stockColumns = []string{
	"symbol", "stock_group", "stock_name", "ath", "open", "close",
	"ema5", "ema10", "ema20", "prev_change_pct", "today_change_pct", "last_updated",
}

var tradeColumns = []string{
	"id", "symbol", "stock_name", "buy_price", "sell_price",
	"quantity", "buy_date", "sell_date", "pnl", "pnl_pct",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStock(row rowScanner) (types.StockRecord, error) {
	var (
		record                        types.StockRecord
		ema5, ema10, ema20            sql.NullFloat64
		prevChangePct, todayChangePct sql.NullFloat64
	)

	err := row.Scan(
		&record.Symbol,
		&record.Group,
		&record.StockName,
		&record.ATH,
		&record.Open,
		&record.Close,
		&ema5,
		&ema10,
		&ema20,
		&prevChangePct,
		&todayChangePct,
		&record.LastUpdated,
	)
	if err != nil {
		return types.StockRecord{}, err
	}

	record.EMA5 = fromNull(ema5)
	record.EMA10 = fromNull(ema10)
	record.EMA20 = fromNull(ema20)
	record.PrevChangePct = fromNull(prevChangePct)
	record.TodayChangePct = fromNull(todayChangePct)

	return record, nil
}

func nullable(value optional.Option[float64]) any {
	if value.IsNone() {
		return nil
	}

	return value.Unwrap()
}

func fromNull(value sql.NullFloat64) optional.Option[float64] {
	if !value.Valid {
		return optional.None[float64]()
	}

	return optional.Some(value.Float64)
}
