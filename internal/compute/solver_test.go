package compute

import (
	"testing"

	"github.com/draftpace/draftpace/internal/physics"
)

func TestSolve(t *testing.T) {
	tests := []struct {
		name              string
		catchSpeed, speed float64
		wantCatchAbove    bool
	}{
		{"faster than target", 12, 10, true},
		{"matching target", 10, 10, false},
		{"slower than target", 8, 10, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Solve(0.3, tc.catchSpeed, tc.speed, 0.01, 83, 0.004)

			wantHold := physics.RequiredPower(0.3, tc.speed, 0.01, 83, 0.004)
			if !almostEqual(p.Hold, wantHold, 1e-9) {
				t.Errorf("Hold = %v, want %v", p.Hold, wantHold)
			}
			if p.Recommended < p.Hold {
				t.Errorf("Recommended %v < Hold %v", p.Recommended, p.Hold)
			}
			if tc.wantCatchAbove && p.Recommended != p.Catch {
				t.Errorf("Recommended = %v, want Catch %v", p.Recommended, p.Catch)
			}
			if !tc.wantCatchAbove && p.Recommended != p.Hold {
				t.Errorf("Recommended = %v, want Hold %v", p.Recommended, p.Hold)
			}
		})
	}
}

func TestCatchUpTime(t *testing.T) {
	tests := []struct {
		gap  float64
		want float64
	}{
		{0, 10},
		{9.99, 10},
		{-9.99, 10},
		{10, 20},
		{49.9, 20},
		{-50, 40},
		{199, 40},
		{200, 60},
		{-1500, 60},
	}
	for _, tc := range tests {
		if got := CatchUpTime(tc.gap); got != tc.want {
			t.Errorf("CatchUpTime(%v) = %v, want %v", tc.gap, got, tc.want)
		}
	}
}

func TestIdealDraftPower_BelowHold(t *testing.T) {
	ideal := IdealDraftPower(0.3, 11, 0, 83, 0.004)
	hold := physics.RequiredPower(0.3, 11, 0, 83, 0.004)
	if ideal >= hold {
		t.Errorf("ideal %v should be below hold %v at positive speed", ideal, hold)
	}
	if got, want := IdealDraftPower(0.3, 0, 0, 83, 0.004), 0.0; got != want {
		t.Errorf("IdealDraftPower at rest = %v, want %v", got, want)
	}
}

func TestWindow_PushEvictsOldest(t *testing.T) {
	var w Window
	if w.Len() != 0 || w.Mean() != 0 {
		t.Fatalf("zero Window: len=%d mean=%v", w.Len(), w.Mean())
	}

	for i := 1; i <= WindowCapacity+5; i++ {
		w.Push(float64(i))
	}
	if w.Len() != WindowCapacity {
		t.Fatalf("Len() = %d, want %d", w.Len(), WindowCapacity)
	}
	vals := w.Values()
	if vals[0] != 6 || vals[len(vals)-1] != WindowCapacity+5 {
		t.Errorf("Values() = [%v ... %v], want [6 ... %d]", vals[0], vals[len(vals)-1], WindowCapacity+5)
	}
	// Mean of 6..125.
	if want := (6.0 + 125.0) / 2; !almostEqual(w.Mean(), want, 1e-9) {
		t.Errorf("Mean() = %v, want %v", w.Mean(), want)
	}
}

func TestWindow_CopyIsIndependent(t *testing.T) {
	var a Window
	a.Push(1)
	b := a
	b.Push(2)
	if a.Len() != 1 || b.Len() != 2 {
		t.Errorf("copy aliased: a=%d b=%d", a.Len(), b.Len())
	}
}

func TestWindow_NegativeSamples(t *testing.T) {
	var w Window
	w.Push(-4)
	w.Push(2)
	if !almostEqual(w.Mean(), -1, 1e-12) {
		t.Errorf("Mean() = %v, want -1", w.Mean())
	}
}
