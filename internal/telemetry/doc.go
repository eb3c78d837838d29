// Package telemetry acquires rider telemetry and normalises it into the
// immutable per-tick Snapshot consumed by the pacing engine.
//
// A Provider returns a Roster: the local rider's Record plus every other
// visible rider keyed by id. Records keep absent fields as nil; Normalize is
// the only place fallbacks are substituted (mass 103 kg, rolling resistance
// 0.004, target power 150 W), so the physics never sees a missing value.
//
// Implemented providers: Prometheus text exposition over HTTP (prometheus.go),
// MQTT push (mqtt.go) and a fixed roster from config (static.go). New(cfg)
// returns the provider selected by telemetry.source.
package telemetry
