package trade

import (
	"errors"
	"math"
	"testing"
)

func TestComputeMargin(t *testing.T) {
	tests := []struct {
		name       string
		original   float64
		recent     float64
		wantAmount float64
		wantRate   float64
	}{
		{"positive margin", 20.0, 24.8, 4.8, 24.0},
		{"negative margin", 10.0, 9.0, -1.0, -10.0},
		{"zero margin", 5.0, 5.0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeMargin(tt.original, tt.recent)
			if err != nil {
				t.Fatalf("ComputeMargin: %v", err)
			}
			if math.Abs(got.Amount-tt.wantAmount) > 1e-9 {
				t.Errorf("Amount = %v, want %v", got.Amount, tt.wantAmount)
			}
			if math.Abs(got.Rate-tt.wantRate) > 1e-9 {
				t.Errorf("Rate = %v, want %v", got.Rate, tt.wantRate)
			}
		})
	}
}

func TestComputeMarginNotComputable(t *testing.T) {
	for _, original := range []float64{0, -3.2} {
		_, err := ComputeMargin(original, 10.0)
		if !errors.Is(err, ErrNotComputable) {
			t.Errorf("original=%v: err = %v, want ErrNotComputable", original, err)
		}
	}
}
