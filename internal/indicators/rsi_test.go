package indicators

import (
	"math"
	"testing"
)

func TestRSI_WilderSmoothing(t *testing.T) {
	prices := []float64{100, 102, 101, 103, 102, 104}
	out := RSI(prices, 3)

	for i := 0; i < 3; i++ {
		if out[i].Valid {
			t.Errorf("index %d should be unavailable", i)
		}
	}

	// Hand-computed Wilder reference values.
	want := map[int]float64{
		3: 80.0,
		4: 61.538461,
		5: 77.272727,
	}
	for i, exp := range want {
		if !out[i].Valid {
			t.Fatalf("index %d should be defined", i)
		}
		if math.Abs(out[i].Float64-exp) > 1e-4 {
			t.Errorf("index %d: expected %f, got %f", i, exp, out[i].Float64)
		}
	}
}

func TestRSI_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		prices   []float64
		period   int
		expected float64 // value at the last index
	}{
		{
			name:     "all gains hit 100",
			prices:   []float64{100, 102, 104, 106},
			period:   3,
			expected: 100.0,
		},
		{
			name:     "all losses hit 0",
			prices:   []float64{106, 104, 102, 100},
			period:   3,
			expected: 0.0,
		},
		{
			name:     "flat series reports 100 on zero loss",
			prices:   []float64{100, 100, 100, 100},
			period:   3,
			expected: 100.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RSI(tt.prices, tt.period)
			last := out[len(out)-1]
			if !last.Valid {
				t.Fatal("expected defined RSI at last index")
			}
			if math.Abs(last.Float64-tt.expected) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.expected, last.Float64)
			}
		})
	}
}

func TestRSI_ShortInput(t *testing.T) {
	// period+1 prices are required, so exactly period is still unavailable.
	out := RSI([]float64{1, 2, 3}, 3)
	for i, v := range out {
		if v.Valid {
			t.Errorf("index %d should be unavailable, got %v", i, v.Float64)
		}
	}
}

func TestRSI_BoundedWhenDefined(t *testing.T) {
	prices := make([]float64, 200)
	for i := range prices {
		prices[i] = 50 + 30*math.Sin(float64(i)/5) + float64(i%11)
	}

	out := RSI(prices, 14)
	for i, v := range out {
		if !v.Valid {
			continue
		}
		if v.Float64 < 0 || v.Float64 > 100 {
			t.Errorf("RSI out of bounds at index %d: %f", i, v.Float64)
		}
	}
}
