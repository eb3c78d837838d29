// Package compute turns one telemetry Snapshot into a power recommendation.
//
// engine.go provides the pure Tick(State, *Snapshot, now) function. Each call
// estimates the target's drag area, plans a catch speed for the current mode,
// solves for catch and hold power, and integrates the power saved while the
// rider sits in a strong draft. now is passed explicitly so tests control the
// clock without sleeping.
//
// solver.go holds the power solver, the catch-up time advisory and the
// ideal-draft reference power. window.go holds the 120-sample ring buffer
// behind the rolling average. state.go holds the State carried between ticks;
// selecting a different target clears the window and accumulator and starts
// a new session id.
package compute
