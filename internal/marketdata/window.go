// Package marketdata owns the live ingestion path: batched upstream
// connections, candle normalization, the bounded per-symbol close-price
// window, and the coordinator that turns finalized candles into enriched
// update events.
package marketdata

import "sync"

// Window is the rolling close-price cache. Each symbol holds at most cap
// entries in strict chronological order; recording beyond the cap evicts the
// oldest entries first. Calls for distinct symbols proceed independently,
// calls for the same symbol are serialized regardless of which batch
// connection they originate from.
type Window struct {
	cap int

	mu     sync.RWMutex
	series map[string]*closeSeries
}

type closeSeries struct {
	mu     sync.Mutex
	closes []float64
}

// NewWindow creates a Window bounded to capacity entries per symbol.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 500
	}
	return &Window{
		cap:    capacity,
		series: make(map[string]*closeSeries),
	}
}

func (w *Window) symbolSeries(symbol string) *closeSeries {
	w.mu.RLock()
	s, ok := w.series[symbol]
	w.mu.RUnlock()
	if ok {
		return s
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok = w.series[symbol]; ok {
		return s
	}
	s = &closeSeries{closes: make([]float64, 0, w.cap)}
	w.series[symbol] = s
	return s
}

// Record appends one closing price for the symbol, evicting from the front
// when the cap is exceeded, and returns the resulting history length.
func (w *Window) Record(symbol string, price float64) int {
	s := w.symbolSeries(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closes = append(s.closes, price)
	if len(s.closes) > w.cap {
		// Re-copy instead of re-slicing so the evicted prefix is released.
		trimmed := make([]float64, w.cap, w.cap+1)
		copy(trimmed, s.closes[len(s.closes)-w.cap:])
		s.closes = trimmed
	}
	return len(s.closes)
}

// Seed replaces the symbol's history with the given closes (already oldest
// first), trimmed to the cap. Used once at startup from the historical fetch.
func (w *Window) Seed(symbol string, closes []float64) {
	s := w.symbolSeries(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(closes) > w.cap {
		closes = closes[len(closes)-w.cap:]
	}
	s.closes = append(s.closes[:0], closes...)
}

// Closes returns a copy of the symbol's history, oldest first. The copy may
// be read without further locking.
func (w *Window) Closes(symbol string) []float64 {
	s := w.symbolSeries(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]float64, len(s.closes))
	copy(out, s.closes)
	return out
}

// Len returns the current history length for the symbol.
func (w *Window) Len(symbol string) int {
	s := w.symbolSeries(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.closes)
}
