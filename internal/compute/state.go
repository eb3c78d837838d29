package compute

import (
	"time"

	"github.com/google/uuid"

	"github.com/draftpace/draftpace/internal/pacing"
	"github.com/draftpace/draftpace/internal/telemetry"
)

// State is the engine state carried from one tick to the next.
type State struct {
	TargetID    string
	Mode        pacing.Mode
	Window      Window    // recent power-saved samples, W
	EnergySaved float64   // cumulative, W·s
	LastTick    time.Time // zero before the first tick
	SessionID   string    // changes whenever the target changes
}

// NewState returns the initial state for the given selection.
func NewState(target string, mode pacing.Mode) State {
	if target == "" {
		target = telemetry.NoTarget
	}
	return State{TargetID: target, Mode: mode, SessionID: uuid.NewString()}
}

// HasTarget reports whether a target rider is selected.
func (s State) HasTarget() bool {
	return s.TargetID != "" && s.TargetID != telemetry.NoTarget
}

// SelectTarget switches to id, clearing the savings window and accumulator
// and starting a new session. Selecting the current target is a no-op.
// The mode is kept.
func (s State) SelectTarget(id string) State {
	if id == "" {
		id = telemetry.NoTarget
	}
	if id == s.TargetID {
		return s
	}
	s.TargetID = id
	s.Window = Window{}
	s.EnergySaved = 0
	s.SessionID = uuid.NewString()
	return s
}

// EnergySavedKJ returns the accumulator in kilojoules.
func (s State) EnergySavedKJ() float64 {
	return s.EnergySaved / 1000
}

// elapsed returns the seconds since the previous tick, 0 on the first tick
// or when the clock went backwards.
func (s State) elapsed(now time.Time) float64 {
	if s.LastTick.IsZero() {
		return 0
	}
	d := now.Sub(s.LastTick).Seconds()
	if d < 0 {
		return 0
	}
	return d
}
