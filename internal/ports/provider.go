package ports

import (
	"context"
	"time"

	"cryptoPulse/internal/domain"
)

// MarketDataProvider defines the read-only interface to the upstream market
// data source. It covers symbol discovery and the one-time historical seed
// fetch; the live stream is owned by the batch connection manager, which
// speaks the provider's wire protocol directly.
type MarketDataProvider interface {
	// GetKlines retrieves the most recent historical klines for a symbol,
	// oldest first, up to limit entries.
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error)

	// GetKlinesRange fetches all klines for a symbol/interval between start
	// and end time, paging through the provider's per-request cap.
	GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Kline, error)

	// GetFuturesSymbols lists the tradable USDT-margined perpetual symbols,
	// sorted lexicographically.
	GetFuturesSymbols(ctx context.Context) ([]string, error)
}

// CandleArchive stores finalized candles locally. It is optional wiring: when
// present it records raw OHLCV as candles close and serves as a seed fallback
// for symbols whose provider seed fetch failed. Computed indicator values are
// never archived.
type CandleArchive interface {
	// StoreKline persists one finalized candle (upsert on symbol/interval/openTime).
	StoreKline(ctx context.Context, k *domain.Kline) error

	// RecentCloses returns up to limit archived closing prices for the
	// symbol/interval, oldest first.
	RecentCloses(ctx context.Context, symbol, interval string, limit int) ([]float64, error)

	// Close releases the underlying store.
	Close() error
}
