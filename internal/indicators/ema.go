// Package indicators provides pure technical-indicator computations over
// ordered close-price series. Every function is deterministic, has no shared
// state, and reports "unavailable" (an invalid domain.Value) for any index
// where the input is too short to define the indicator; it never errors and
// never emits NaN.
package indicators

import "cryptoPulse/internal/domain"

// EMA computes the exponential moving average series for the given period.
// The seed is the simple average of the first period values, placed at index
// period-1; earlier indices are unavailable. Inputs shorter than period yield
// an all-unavailable series.
func EMA(prices []float64, period int) []domain.Value {
	out := make([]domain.Value, len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	out[period-1] = domain.Val(ema)

	k := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema = prices[i]*k + ema*(1-k)
		out[i] = domain.Val(ema)
	}
	return out
}

// lastDefined returns the most recent defined value of a series, or an
// unavailable Value when none is defined.
func lastDefined(series []domain.Value) domain.Value {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].Valid {
			return series[i]
		}
	}
	return domain.Value{}
}
