// Package physics models the steady-state power balance of a rider on a slope.
//
// aero.go provides the forward relation RequiredPower (gravity + rolling
// resistance + aerodynamic drag, divided by drivetrain efficiency) and its
// inverse EstimateDragArea, which derives a rider's effective CdA from the
// power and speed that rider is actually producing.
//
// Grades are linear fractions (rise/run) and are converted to an angle with
// atan. Nothing in this package clamps the forward result: a negative power
// means the slope alone sustains the speed, and callers decide how to present it.
package physics
