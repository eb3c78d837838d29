package pacing

import (
	"math"
	"testing"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestPlan_KeepUp(t *testing.T) {
	tests := []struct {
		name         string
		factor, gap  float64
		wantStrategy Strategy
		wantSpeed    float64
	}{
		{"secure when sheltered and level", 0.5, 0, StrategySecure, 10},
		{"secure when rider is ahead", 0.65, -8, StrategySecure, 10},
		{"secure just under close distance", 0.5, 2.99, StrategySecure, 10},
		{"hard close at threshold uses min boost", 0.5, 3, StrategyHardClose, 10.8},
		{"hard close scales with gap", 0.6, 25, StrategyHardClose, 12},
		{"emergency min boost", 0.9, 5, StrategyEmergency, 11.5},
		{"emergency scales with gap", 0.9, 50, StrategyEmergency, 16},
		{"emergency uses absolute gap", 0.75, -25, StrategyEmergency, 13},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := Plan(KeepUp, tc.factor, tc.gap, 10)
			if d.Strategy != tc.wantStrategy {
				t.Errorf("Strategy = %q, want %q", d.Strategy, tc.wantStrategy)
			}
			if !almostEqual(d.CatchSpeed, tc.wantSpeed, 1e-9) {
				t.Errorf("CatchSpeed = %.6f, want %.6f", d.CatchSpeed, tc.wantSpeed)
			}
		})
	}
}

func TestPlan_SecureMatchesTargetExactly(t *testing.T) {
	d := Plan(KeepUp, 0.5, 0, 9.73)
	if d.CatchSpeed != 9.73 {
		t.Errorf("CatchSpeed = %v, want exactly 9.73", d.CatchSpeed)
	}
}

func TestPlan_EmergencyExceedsMinBoost(t *testing.T) {
	d := Plan(KeepUp, 0.9, 50, 10)
	if d.Strategy != StrategyEmergency {
		t.Fatalf("Strategy = %q, want %q", d.Strategy, StrategyEmergency)
	}
	if d.CatchSpeed <= 10+1.5 {
		t.Errorf("CatchSpeed = %.3f, want > 11.5", d.CatchSpeed)
	}
}

func TestPlan_CatchUpSlow(t *testing.T) {
	tests := []struct {
		gap, factor, want float64
	}{
		{600, 0.5, 11},
		{600, 0.95, 11}, // draft state ignored
		{0, 0.9, 10},
		{-300, 0.5, 9.5},
		{60, 0.5, 10.1},
	}
	for _, tc := range tests {
		d := Plan(CatchUpSlow, tc.factor, tc.gap, 10)
		if d.Strategy != StrategySteadyCatch {
			t.Errorf("gap=%.0f: Strategy = %q", tc.gap, d.Strategy)
		}
		if !almostEqual(d.CatchSpeed, tc.want, 1e-12) {
			t.Errorf("gap=%.0f: CatchSpeed = %.6f, want %.6f", tc.gap, d.CatchSpeed, tc.want)
		}
	}
	if d := Plan(CatchUpSlow, 0.5, 600, 10); d.CatchSpeed != 11 {
		t.Errorf("600 m over the horizon should add exactly 1 m/s, got %v", d.CatchSpeed)
	}
}

func TestPlan_UnknownModeHoldsTargetSpeed(t *testing.T) {
	d := Plan(Mode("sprint"), 0.9, 100, 10)
	if d.Strategy != StrategyUnknownMode {
		t.Errorf("Strategy = %q, want %q", d.Strategy, StrategyUnknownMode)
	}
	if d.CatchSpeed != 10 {
		t.Errorf("CatchSpeed = %v, want 10", d.CatchSpeed)
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"keepUp", "catchUpSlow"} {
		m, err := ParseMode(s)
		if err != nil {
			t.Errorf("ParseMode(%q) error: %v", s, err)
		}
		if string(m) != s {
			t.Errorf("ParseMode(%q) = %q", s, m)
		}
	}
	for _, s := range []string{"", "keepup", "sprint"} {
		if _, err := ParseMode(s); err == nil {
			t.Errorf("ParseMode(%q): expected error", s)
		}
	}
}
