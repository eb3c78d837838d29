// Package pacing selects the speed a rider should aim for to stay with, or
// reel in, a target rider.
//
// Two operator-selected modes exist. KeepUp guards the draft aggressively and
// only matches the target's speed once the rider is sheltered and close.
// CatchUpSlow ignores draft state and closes the whole gap evenly over a fixed
// ten-minute horizon.
package pacing

import (
	"fmt"
	"math"

	"github.com/draftpace/draftpace/internal/draft"
)

// Mode is the operator-selected pacing policy.
type Mode string

const (
	KeepUp      Mode = "keepUp"
	CatchUpSlow Mode = "catchUpSlow"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == KeepUp || m == CatchUpSlow
}

// ParseMode converts s to a Mode, rejecting unknown values.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("pacing: unknown mode %q (want %q or %q)", s, KeepUp, CatchUpSlow)
	}
	return m, nil
}

// Strategy is the display label of the branch a Plan took.
type Strategy string

const (
	StrategyEmergency   Strategy = "emergency re-entry"
	StrategyHardClose   Strategy = "hard close"
	StrategySecure      Strategy = "secure"
	StrategySteadyCatch Strategy = "steady catch-up"
	StrategyUnknownMode Strategy = "unknown mode"
)

// KeepUp tuning.
const (
	emergencyMinBoost = 1.5  // m/s
	emergencyGain     = 0.12 // (m/s) per metre of gap
	hardCloseGap      = 3.0  // m
	hardCloseMinBoost = 0.8  // m/s
	hardCloseGain     = 0.08 // (m/s) per metre of gap
)

// CatchUpHorizon is the time, in seconds, CatchUpSlow spreads the gap over.
const CatchUpHorizon = 600.0

// Decision is the outcome of one planning step.
type Decision struct {
	Strategy   Strategy
	CatchSpeed float64 // m/s
}

// Plan returns the catch speed for the given mode.
//
// gap is the target's route distance minus the rider's (positive means the
// target is ahead). An unknown mode holds the target's speed rather than failing.
func Plan(mode Mode, draftFactor, gap, targetSpeed float64) Decision {
	switch mode {
	case KeepUp:
		return planKeepUp(draftFactor, gap, targetSpeed)
	case CatchUpSlow:
		return Decision{
			Strategy:   StrategySteadyCatch,
			CatchSpeed: targetSpeed + gap/CatchUpHorizon,
		}
	default:
		return Decision{Strategy: StrategyUnknownMode, CatchSpeed: targetSpeed}
	}
}

func planKeepUp(draftFactor, gap, targetSpeed float64) Decision {
	if !draft.InStrongDraft(draftFactor) {
		return Decision{
			Strategy:   StrategyEmergency,
			CatchSpeed: targetSpeed + math.Max(emergencyMinBoost, math.Abs(gap)*emergencyGain),
		}
	}
	if gap >= hardCloseGap {
		return Decision{
			Strategy:   StrategyHardClose,
			CatchSpeed: targetSpeed + math.Max(hardCloseMinBoost, gap*hardCloseGain),
		}
	}
	return Decision{Strategy: StrategySecure, CatchSpeed: targetSpeed}
}
