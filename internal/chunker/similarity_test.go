package chunker

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 3}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		values []float64
		pct    float64
		want   float64
	}{
		{nil, 40, 0},
		{[]float64{5}, 40, 5},
		{[]float64{1, 0, 1}, 40, 0.8},
		{[]float64{4, 1, 3, 2}, 40, 2.2},
		{[]float64{1, 2, 3}, 0, 1},
		{[]float64{1, 2, 3}, 100, 3},
		{[]float64{1, 2, 3, 4, 5}, 50, 3},
	}
	for _, tt := range tests {
		if got := Percentile(tt.values, tt.pct); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Percentile(%v, %v) = %v, want %v", tt.values, tt.pct, got, tt.want)
		}
	}
}

func TestPercentileDoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Percentile(in, 40)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Errorf("input reordered: %v", in)
	}
}
