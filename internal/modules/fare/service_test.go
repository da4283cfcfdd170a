package fare

import "testing"

func TestEstimator_Estimate(t *testing.T) {
	e := NewEstimator(DefaultRate)

	tests := []struct {
		name       string
		distanceKm float64
		want       int64
	}{
		{name: "ten km", distanceKm: 10, want: 20000},
		{name: "zero distance is base fare", distanceKm: 0, want: 5000},
		{name: "fractional distance", distanceKm: 2.5, want: 8750},
		{name: "negative distance lowers fare", distanceKm: -1, want: 3500},
		{name: "long trip", distanceKm: 120, want: 185000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Estimate(tt.distanceKm)
			if got.Amount != tt.want {
				t.Errorf("Estimate(%v) = %d, want %d", tt.distanceKm, got.Amount, tt.want)
			}
			if got.Currency != "INR" {
				t.Errorf("currency = %q, want INR", got.Currency)
			}
		})
	}
}

func TestEstimator_CustomRate(t *testing.T) {
	e := NewEstimator(Rate{BaseFare: 30, PerKm: 12.5})
	got := e.Estimate(4)
	if got.Amount != 8000 {
		t.Fatalf("Estimate(4) = %d, want 8000", got.Amount)
	}
	if got.Currency != DefaultRate.Currency {
		t.Fatalf("expected default currency, got %q", got.Currency)
	}
}

func TestEstimator_Deterministic(t *testing.T) {
	e := NewEstimator(DefaultRate)
	a, b := e.Estimate(7.3), e.Estimate(7.3)
	if a != b {
		t.Fatalf("estimate not deterministic: %v vs %v", a, b)
	}
}
