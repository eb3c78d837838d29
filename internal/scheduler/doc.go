// Package scheduler drives the pacing engine at a fixed cadence.
//
// Each tick fetches the roster from a telemetry.Provider, applies any queued
// target or mode change, normalises the self/target pair and runs the pure
// compute.Tick. The resulting Output is handed to every Sink (store, Kafka
// shipper) after the engine state has been committed.
//
// Stop keeps the engine state, so a later Start continues the same session and
// accumulator. SetInterval retimes a running loop without a restart.
package scheduler
