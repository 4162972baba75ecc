package indicators

import "cryptoPulse/internal/domain"

// RSI computes the Relative Strength Index series using Wilder's smoothing
// method. The first defined value sits at index period (it needs period
// differences, i.e. period+1 prices); later values smooth the average gain
// and loss exponentially. A zero average loss yields RSI 100.
func RSI(prices []float64, period int) []domain.Value {
	out := make([]domain.Value, len(prices))
	if period <= 0 || len(prices) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = domain.Val(rsiValue(avgGain, avgLoss))

	p := float64(period)
	for i := period + 1; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		var gain, loss float64
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = domain.Val(rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
