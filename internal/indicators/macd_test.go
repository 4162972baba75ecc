package indicators

import (
	"math"
	"testing"
)

func testSeries(n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 100 + 10*math.Sin(float64(i)/4) + float64(i%5)*0.3
	}
	return prices
}

func TestMACD_DefinedRegions(t *testing.T) {
	fast, slow, signal := 12, 26, 9
	prices := testSeries(80)
	line, sig, hist := MACD(prices, fast, slow, signal)

	// The line needs both EMAs, so it starts where the slow EMA starts.
	for i := 0; i < slow-1; i++ {
		if line[i].Valid {
			t.Errorf("line defined too early at index %d", i)
		}
	}
	if !line[slow-1].Valid {
		t.Errorf("line should be defined at index %d", slow-1)
	}

	// The signal consumes the renumbered defined line values, so its first
	// defined position is slow-1 + signal-1.
	firstSig := slow - 1 + signal - 1
	for i := 0; i < firstSig; i++ {
		if sig[i].Valid {
			t.Errorf("signal defined too early at index %d", i)
		}
	}
	if !sig[firstSig].Valid {
		t.Errorf("signal should be defined at index %d", firstSig)
	}

	for i := range hist {
		if hist[i].Valid != (line[i].Valid && sig[i].Valid) {
			t.Errorf("histogram availability mismatch at index %d", i)
		}
	}
}

func TestMACD_HistogramIdentity(t *testing.T) {
	prices := testSeries(150)
	line, sig, hist := MACD(prices, 12, 26, 9)

	for i := range hist {
		if !hist[i].Valid {
			continue
		}
		want := line[i].Float64 - sig[i].Float64
		if math.Abs(hist[i].Float64-want) > 1e-12 {
			t.Errorf("histogram[%d] = %f, want line-signal = %f", i, hist[i].Float64, want)
		}
	}
}

func TestMACD_ShortInput(t *testing.T) {
	line, sig, hist := MACD(testSeries(10), 12, 26, 9)
	for i := range line {
		if line[i].Valid || sig[i].Valid || hist[i].Valid {
			t.Errorf("index %d should be fully unavailable", i)
		}
	}
}
