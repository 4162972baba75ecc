package indicators

import "cryptoPulse/internal/domain"

// MACD computes the MACD line, signal line and histogram for the given
// periods. The line is EMA(fast) − EMA(slow), defined only where both EMAs
// are defined. The signal line is EMA(signal) applied to the defined line
// values with their indices renumbered (not zero-padded), then mapped back to
// the original positions. The histogram is line − signal where both exist.
func MACD(prices []float64, fast, slow, signal int) (line, signalLine, hist []domain.Value) {
	n := len(prices)
	line = make([]domain.Value, n)
	signalLine = make([]domain.Value, n)
	hist = make([]domain.Value, n)

	emaFast := EMA(prices, fast)
	emaSlow := EMA(prices, slow)

	// Collect the defined MACD values as a dense series for the signal EMA.
	defined := make([]float64, 0, n)
	positions := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if emaFast[i].Valid && emaSlow[i].Valid {
			v := emaFast[i].Float64 - emaSlow[i].Float64
			line[i] = domain.Val(v)
			defined = append(defined, v)
			positions = append(positions, i)
		}
	}

	sig := EMA(defined, signal)
	for j, pos := range positions {
		if sig[j].Valid {
			signalLine[pos] = sig[j]
			hist[pos] = domain.Val(line[pos].Float64 - sig[j].Float64)
		}
	}
	return line, signalLine, hist
}
