package domain

import "time"

// Kline represents a single candlestick data point.
type Kline struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Trading symbol
	Interval  string    // Kline interval (e.g., "1m", "1h")
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Trading volume
	IsFinal   bool      // Whether this kline is the final one for the interval
}

// knownTimeframes lists every kline interval the upstream provider serves.
var knownTimeframes = map[string]struct{}{
	"1m": {}, "5m": {}, "15m": {}, "30m": {},
	"1h": {}, "4h": {}, "1d": {}, "1w": {}, "1M": {},
}

// IsKnownTimeframe reports whether the given interval identifier is one the
// provider recognises. Which of these a deployment actually serves is a
// configuration decision layered on top of this set.
func IsKnownTimeframe(tf string) bool {
	_, ok := knownTimeframes[tf]
	return ok
}
