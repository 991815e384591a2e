package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"upbit-trader/internal/errors"
	"upbit-trader/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the database at
// dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		market TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(market, timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_candles_market_time ON candles(market, timestamp);

	CREATE TABLE IF NOT EXISTS trade_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		market TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		return_pct REAL NOT NULL,
		hold_seconds INTEGER NOT NULL,
		closed_at DATETIME NOT NULL,
		indicator_snapshot TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_market ON trade_outcomes(market, closed_at);

	CREATE TABLE IF NOT EXISTS weight_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		market TEXT NOT NULL,
		weights TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_weights_market ON weight_snapshots(market, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveCandles upserts a batch of candles for a market in one
// transaction.
func (s *SQLiteStore) SaveCandles(ctx context.Context, market string, candles []models.Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", errors.ErrDatabaseError, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (market, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(market, timestamp) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low,
			close=excluded.close, volume=excluded.volume`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", errors.ErrDatabaseError, err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, market, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("%w: insert candle: %v", errors.ErrDatabaseError, err)
		}
	}
	return tx.Commit()
}

// GetCandles returns candles for a market in [from, to], oldest first.
func (s *SQLiteStore) GetCandles(ctx context.Context, market string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE market = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC`, market, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: query candles: %v", errors.ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("%w: scan candle: %v", errors.ErrDatabaseError, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveOutcome persists a closed trade with its indicator snapshot.
func (s *SQLiteStore) SaveOutcome(ctx context.Context, outcome models.TradeOutcome) error {
	snapshot, err := json.Marshal(outcome.IndicatorSnapshot)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trade_outcomes (market, side, entry_price, exit_price, return_pct, hold_seconds, closed_at, indicator_snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		outcome.Market, string(outcome.Side), outcome.EntryPrice, outcome.ExitPrice,
		outcome.RealizedReturnPercent, int64(outcome.HoldingDuration.Seconds()),
		outcome.ClosedAt.UTC(), string(snapshot))
	if err != nil {
		return fmt.Errorf("%w: insert outcome: %v", errors.ErrDatabaseError, err)
	}
	return nil
}

// GetOutcomes returns a market's closed trades, oldest first.
func (s *SQLiteStore) GetOutcomes(ctx context.Context, market string) ([]models.TradeOutcome, error) {
	return s.queryOutcomes(ctx, `
		SELECT market, side, entry_price, exit_price, return_pct, hold_seconds, closed_at, indicator_snapshot
		FROM trade_outcomes WHERE market = ? ORDER BY closed_at ASC`, market)
}

// GetAllOutcomes returns every closed trade, oldest first. Used to
// replay learning state at startup.
func (s *SQLiteStore) GetAllOutcomes(ctx context.Context) ([]models.TradeOutcome, error) {
	return s.queryOutcomes(ctx, `
		SELECT market, side, entry_price, exit_price, return_pct, hold_seconds, closed_at, indicator_snapshot
		FROM trade_outcomes ORDER BY closed_at ASC`)
}

func (s *SQLiteStore) queryOutcomes(ctx context.Context, query string, args ...interface{}) ([]models.TradeOutcome, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query outcomes: %v", errors.ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []models.TradeOutcome
	for rows.Next() {
		var o models.TradeOutcome
		var side, snapshot string
		var holdSeconds int64
		if err := rows.Scan(&o.Market, &side, &o.EntryPrice, &o.ExitPrice,
			&o.RealizedReturnPercent, &holdSeconds, &o.ClosedAt, &snapshot); err != nil {
			return nil, fmt.Errorf("%w: scan outcome: %v", errors.ErrDatabaseError, err)
		}
		o.Side = models.Side(side)
		o.HoldingDuration = time.Duration(holdSeconds) * time.Second
		if snapshot != "" {
			if err := json.Unmarshal([]byte(snapshot), &o.IndicatorSnapshot); err != nil {
				return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetDailyReturns derives close-to-close daily returns in percent from
// the stored candles, most recent `days` entries, oldest first.
func (s *SQLiteStore) GetDailyReturns(ctx context.Context, market string, days int) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT close FROM candles
		WHERE market = ?
		ORDER BY timestamp DESC LIMIT ?`, market, days+1)
	if err != nil {
		return nil, fmt.Errorf("%w: query closes: %v", errors.ErrDatabaseError, err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("%w: scan close: %v", errors.ErrDatabaseError, err)
		}
		closes = append(closes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest first from the query; flip to chronological.
	returns := make([]float64, 0, len(closes))
	for i := len(closes) - 1; i > 0; i-- {
		prev, cur := closes[i], closes[i-1]
		if prev == 0 {
			continue
		}
		returns = append(returns, (cur-prev)/prev*100)
	}
	return returns, nil
}

// SaveWeightSnapshot stores the weights applied for a market at this
// moment.
func (s *SQLiteStore) SaveWeightSnapshot(ctx context.Context, market string, weights models.IndicatorWeights) error {
	blob, err := json.Marshal(weights)
	if err != nil {
		return fmt.Errorf("marshaling weights: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO weight_snapshots (market, weights) VALUES (?, ?)`, market, string(blob)); err != nil {
		return fmt.Errorf("%w: insert snapshot: %v", errors.ErrDatabaseError, err)
	}
	return nil
}

// GetLatestWeightSnapshot returns the most recent stored weights for a
// market. Missing data is ErrDataNotFound.
func (s *SQLiteStore) GetLatestWeightSnapshot(ctx context.Context, market string) (models.IndicatorWeights, time.Time, error) {
	var blob string
	var at time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT weights, created_at FROM weight_snapshots
		WHERE market = ? ORDER BY created_at DESC, id DESC LIMIT 1`, market).Scan(&blob, &at)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, fmt.Errorf("%w: no weight snapshot for %s", errors.ErrDataNotFound, market)
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: query snapshot: %v", errors.ErrDatabaseError, err)
	}

	var weights models.IndicatorWeights
	if err := json.Unmarshal([]byte(blob), &weights); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshaling weights: %w", err)
	}
	return weights, at, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
