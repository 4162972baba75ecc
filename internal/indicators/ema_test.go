package indicators

import (
	"testing"
)

func TestEMA_SeedAndRecursion(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}
	out := EMA(prices, 3)

	if len(out) != len(prices) {
		t.Fatalf("expected series length %d, got %d", len(prices), len(out))
	}
	for i := 0; i < 2; i++ {
		if out[i].Valid {
			t.Errorf("index %d before seed should be unavailable", i)
		}
	}
	// Seed at index period-1 is the SMA of the first period values.
	if !out[2].Valid || out[2].Float64 != 2.0 {
		t.Errorf("expected SMA seed 2.0 at index 2, got %+v", out[2])
	}
	// k = 2/(3+1) = 0.5
	if !out[3].Valid || out[3].Float64 != 3.0 {
		t.Errorf("expected 3.0 at index 3, got %+v", out[3])
	}
	if !out[4].Valid || out[4].Float64 != 4.0 {
		t.Errorf("expected 4.0 at index 4, got %+v", out[4])
	}
}

func TestEMA_ShortInput(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		period int
	}{
		{name: "empty input", prices: nil, period: 12},
		{name: "one short of period", prices: []float64{1, 2, 3}, period: 4},
		{name: "zero period", prices: []float64{1, 2, 3}, period: 0},
		{name: "negative period", prices: []float64{1, 2, 3}, period: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := EMA(tt.prices, tt.period)
			if len(out) != len(tt.prices) {
				t.Fatalf("expected series length %d, got %d", len(tt.prices), len(out))
			}
			for i, v := range out {
				if v.Valid {
					t.Errorf("index %d should be unavailable, got %v", i, v.Float64)
				}
			}
		})
	}
}

func TestEMA_Deterministic(t *testing.T) {
	prices := make([]float64, 120)
	for i := range prices {
		prices[i] = 100 + float64(i%7)*1.25 - float64(i%3)*0.5
	}

	a := EMA(prices, 26)
	b := EMA(prices, 26)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("EMA not deterministic at index %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
