// Package store keeps recent engine Outputs in memory: the latest one, served
// by the REST API and WebSocket stream, and the last one of every session,
// evicted after the snapshot TTL.
package store
