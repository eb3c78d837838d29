package physics

import (
	"math"
	"testing"
)

// almostEqual returns true if a and b are within epsilon of each other.
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestRequiredPower_FlatKnownValue(t *testing.T) {
	// 83 kg at 10 m/s, flat, CdA 0.3, Crr 0.004:
	// rolling = 83*9.8067*10*0.004 = 32.558
	// drag    = 0.5*1.225*0.3*1000 = 183.75
	// power   = (32.558 + 183.75) / 0.97 = 223.00
	got := RequiredPower(0.3, 10, 0, 83, 0.004)
	want := (83*Gravity*10*0.004 + 0.5*AirDensity*0.3*1000) / DrivetrainEff
	if !almostEqual(got, want, 1e-9) {
		t.Errorf("RequiredPower = %.6f, want %.6f", got, want)
	}
	if !almostEqual(got, 223.0, 0.1) {
		t.Errorf("RequiredPower = %.3f, want ≈223.0", got)
	}
}

func TestRequiredPower_DescentCanBeNegative(t *testing.T) {
	got := RequiredPower(0.3, 5, -0.10, 83, 0.004)
	if got >= 0 {
		t.Errorf("steep descent at low speed: RequiredPower = %.2f, want negative (unclamped)", got)
	}
}

func TestRequiredPower_MonotonicInSpeed(t *testing.T) {
	for _, grade := range []float64{0, 0.02, 0.08} {
		for _, cda := range []float64{0.2, 0.35, 0.6} {
			prev := RequiredPower(cda, 0.5, grade, 83, 0.004)
			for v := 1.0; v <= 25; v += 0.5 {
				cur := RequiredPower(cda, v, grade, 83, 0.004)
				if cur <= prev {
					t.Fatalf("not increasing in speed: grade=%.2f cda=%.2f v=%.1f: %.4f <= %.4f",
						grade, cda, v, cur, prev)
				}
				prev = cur
			}
		}
	}
}

func TestRequiredPower_MonotonicInDragArea(t *testing.T) {
	for _, v := range []float64{1, 5, 12} {
		prev := RequiredPower(0.1, v, 0.01, 83, 0.004)
		for cda := 0.15; cda <= 0.8; cda += 0.05 {
			cur := RequiredPower(cda, v, 0.01, 83, 0.004)
			if cur <= prev {
				t.Fatalf("not increasing in drag area: v=%.1f cda=%.2f: %.4f <= %.4f", v, cda, cur, prev)
			}
			prev = cur
		}
	}
}

func TestEstimateDragArea_RoundTrip(t *testing.T) {
	grades := []float64{-0.03, 0, 0.04}
	speeds := []float64{1, 4, 9.5, 15}
	for _, a := range []float64{0.2, 0.27, 0.35, 0.48, 0.6} {
		for _, v := range speeds {
			for _, g := range grades {
				p := RequiredPower(a, v, g, 78, 0.005)
				got := EstimateDragArea(p, 78, v, g, 0.005)
				if !almostEqual(got, a, 1e-6) {
					t.Errorf("round trip A=%.2f v=%.1f g=%.2f: got %.8f", a, v, g, got)
				}
			}
		}
	}
}

func TestEstimateDragArea_Fallbacks(t *testing.T) {
	tests := []struct {
		name                 string
		power, speed, grade float64
	}{
		{"stationary", 200, 0, 0},
		{"just under min speed", 200, 0.09, 0},
		{"zero power", 0, 8, 0},
		{"climb eats all power", 150, 5, 0.12},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := EstimateDragArea(tc.power, 83, tc.speed, tc.grade, 0.004)
			if got != FallbackDragArea {
				t.Errorf("EstimateDragArea = %.4f, want fallback %.2f", got, FallbackDragArea)
			}
		})
	}
}

func TestEstimateDragArea_Clamped(t *testing.T) {
	// Power spike: 1500 W at 10 m/s on the flat is far beyond any real rider.
	if got := EstimateDragArea(1500, 83, 10, 0, 0.004); got != MaxDragArea {
		t.Errorf("spike: got %.4f, want %.2f", got, MaxDragArea)
	}
	// Barely any drag power left over.
	if got := EstimateDragArea(40, 83, 10, 0, 0.004); got != MinDragArea {
		t.Errorf("tiny residual: got %.4f, want %.2f", got, MinDragArea)
	}
}

func TestEstimateDragArea_FlatScenario(t *testing.T) {
	const weight = 75.0 + 8.0
	cda := EstimateDragArea(200, weight, 10, 0, 0.004)
	if cda <= MinDragArea || cda >= MaxDragArea {
		t.Fatalf("CdA = %.4f, want strictly inside (%.2f, %.2f)", cda, MinDragArea, MaxDragArea)
	}
	if hold := RequiredPower(cda, 10, 0, weight, 0.004); hold <= 0 {
		t.Errorf("hold power = %.2f, want > 0", hold)
	}
}
