package indicators

import "cryptoPulse/internal/domain"

// Config holds the indicator periods used to build a snapshot. Field names
// follow the downstream wire shape; the periods themselves are configurable.
type Config struct {
	EMA12  int
	EMA26  int
	EMA50  int
	EMA100 int
	EMA200 int

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	RSI int
}

// DefaultConfig returns the standard period set: EMA 12/26/50/100/200,
// MACD 12/26/9, RSI 14.
func DefaultConfig() Config {
	return Config{
		EMA12:  12,
		EMA26:  26,
		EMA50:  50,
		EMA100: 100,
		EMA200: 200,

		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,

		RSI: 14,
	}
}

// Compute derives the latest indicator snapshot from an ordered close-price
// series. Indicators whose requirement exceeds the history length come back
// unavailable; Compute itself never fails.
func Compute(prices []float64, cfg Config) domain.IndicatorSnapshot {
	macdLine, macdSignal, macdHist := MACD(prices, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)

	return domain.IndicatorSnapshot{
		EMA12:      lastDefined(EMA(prices, cfg.EMA12)),
		EMA26:      lastDefined(EMA(prices, cfg.EMA26)),
		EMA50:      lastDefined(EMA(prices, cfg.EMA50)),
		EMA100:     lastDefined(EMA(prices, cfg.EMA100)),
		EMA200:     lastDefined(EMA(prices, cfg.EMA200)),
		MACD:       lastDefined(macdLine),
		MACDSignal: lastDefined(macdSignal),
		MACDHist:   lastDefined(macdHist),
		RSI14:      lastDefined(RSI(prices, cfg.RSI)),
	}
}
