// Package sqlite stores candle history for backfill and strategy settings
// documents for the condition engine.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"trading-condengine/internal/logger"
	"trading-condengine/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS candles (
	symbol   TEXT    NOT NULL,
	interval TEXT    NOT NULL,
	ts       INTEGER NOT NULL,
	open     REAL    NOT NULL,
	high     REAL    NOT NULL,
	low      REAL    NOT NULL,
	close    REAL    NOT NULL,
	volume   REAL,
	PRIMARY KEY (symbol, interval, ts)
);

CREATE TABLE IF NOT EXISTS strategy_settings (
	strategy_id TEXT    PRIMARY KEY,
	data        TEXT    NOT NULL,
	updated_at  INTEGER NOT NULL
);
`

// Store is a SQLite-backed candle backfiller and settings source.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the database at path in WAL mode.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "sqlite open")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite schema")
	}

	s := &Store{db: db, log: logger.Component("sqlite")}
	s.log.Info().Str("path", path).Msg("opened database")
	return s, nil
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Backfill returns up to limit most recent candles, oldest first.
func (s *Store) Backfill(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, COALESCE(volume, 0) AS volume
			FROM candles
			WHERE symbol = ? AND interval = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, symbol, interval, limit)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite query candles")
	}
	return scanCandles(rows)
}

// Candles returns every candle with from <= ts <= to, oldest first. A zero
// to means no upper bound.
func (s *Store) Candles(ctx context.Context, symbol, interval string, from, to int64) ([]model.Candle, error) {
	if to <= 0 {
		to = 1<<63 - 1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, COALESCE(volume, 0)
		FROM candles
		WHERE symbol = ? AND interval = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`, symbol, interval, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite query candles")
	}
	return scanCandles(rows)
}

func scanCandles(rows *sql.Rows) ([]model.Candle, error) {
	defer rows.Close()
	var out []model.Candle
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.TS, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, errors.Wrap(err, "sqlite scan candles")
		}
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "sqlite iterate candles")
}

// WriteCandles upserts candles in a single transaction.
func (s *Store) WriteCandles(ctx context.Context, symbol, interval string, candles []model.Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite begin")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "sqlite prepare")
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, interval, c.TS, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "sqlite insert candle ts=%d", c.TS)
		}
	}
	return errors.Wrap(tx.Commit(), "sqlite commit")
}

// ReadSettingsJSON returns the stored settings document for strategyID, or
// nil, nil when there is none.
func (s *Store) ReadSettingsJSON(ctx context.Context, strategyID string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM strategy_settings WHERE strategy_id = ?`, strategyID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite read settings %s", strategyID)
	}
	return []byte(data), nil
}

// PutSettingsJSON stores a raw settings document. Used by tooling to seed
// databases; the engine itself only reads.
func (s *Store) PutSettingsJSON(ctx context.Context, strategyID string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategy_settings (strategy_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(strategy_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, strategyID, string(data), time.Now().UnixMilli())
	return errors.Wrapf(err, "sqlite put settings %s", strategyID)
}
