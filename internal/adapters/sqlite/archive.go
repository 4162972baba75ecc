package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cryptoPulse/internal/domain"
	"cryptoPulse/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Archive implements the ports.CandleArchive interface using SQLite. It keeps
// raw finalized OHLCV candles only; indicator values are always recomputed
// from the closes and never persisted.
type Archive struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite archive.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewArchive opens (or creates) the archive database at the configured path.
func NewArchive(cfg Config) (*Archive, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite archive")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/candles.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite archive initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("%w: failed to open database at '%s': %w", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite archive initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %w", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite archive initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally, but the Go driver benefits from
	// limiting connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite archive opened", map[string]interface{}{"path": dbPath})

	a := &Archive{db: db, logger: cfg.Logger}
	if err := a.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize archive schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite archive initialization failed")
		return nil, err
	}
	return a, nil
}

// initializeSchema creates tables if they don't exist.
func (a *Archive) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS klines (
		symbol     TEXT    NOT NULL,
		interval   TEXT    NOT NULL,
		open_time  INTEGER NOT NULL,
		close_time INTEGER NOT NULL,
		open       REAL    NOT NULL,
		high       REAL    NOT NULL,
		low        REAL    NOT NULL,
		close      REAL    NOT NULL,
		volume     REAL    NOT NULL,
		PRIMARY KEY (symbol, interval, open_time)
	);
	`
	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// StoreKline persists one finalized candle. Re-delivery of the same candle
// (after a reconnect replay, for instance) overwrites in place.
func (a *Archive) StoreKline(ctx context.Context, k *domain.Kline) error {
	const query = `
	INSERT OR REPLACE INTO klines (symbol, interval, open_time, close_time, open, high, low, close, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := a.db.ExecContext(ctx, query,
		k.Symbol, k.Interval, k.OpenTime.UnixMilli(), k.CloseTime.UnixMilli(),
		k.Open, k.High, k.Low, k.Close, k.Volume)
	if err != nil {
		return fmt.Errorf("%w: failed to store kline for %s/%s: %w", ports.ErrQueryFailed, k.Symbol, k.Interval, err)
	}
	return nil
}

// RecentCloses returns up to limit archived closing prices for the
// symbol/interval, oldest first.
func (a *Archive) RecentCloses(ctx context.Context, symbol, interval string, limit int) ([]float64, error) {
	const query = `
	SELECT close FROM klines
	WHERE symbol = ? AND interval = ?
	ORDER BY open_time DESC
	LIMIT ?`

	rows, err := a.db.QueryContext(ctx, query, symbol, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query closes for %s/%s: %w", ports.ErrQueryFailed, symbol, interval, err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("%w: failed to scan close for %s/%s: %w", ports.ErrQueryFailed, symbol, interval, err)
		}
		closes = append(closes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration failed for %s/%s: %w", ports.ErrQueryFailed, symbol, interval, err)
	}

	// The query walks newest-first; callers want chronological order.
	for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
		closes[i], closes[j] = closes[j], closes[i]
	}
	return closes, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	if a.db != nil {
		a.logger.Info(context.Background(), "Closing SQLite archive")
		return a.db.Close()
	}
	return nil
}
