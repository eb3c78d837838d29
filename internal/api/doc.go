// Package api implements the HTTP REST API for draftpace.
//
// New(store, engine, alerts, control) returns an http.Handler (a gorilla/mux router)
// that serves:
//
//	GET /api/v1/health          scheduler running flag, interval, selection
//	GET /api/v1/output          latest Output with hints; 404 before the first tick, 503 when stale
//	GET /api/v1/riders          selectable rider ids from the last roster
//	GET /api/v1/state           engine state summary (session, window, energy)
//	GET /api/v1/sessions        last Output of every recent session, newest first
//	GET /api/v1/sessions/{id}   last Output of one session; 404 if unknown
//	GET /api/v1/alerts          firing alerts plus those resolved in the last hour
//	PUT /api/v1/target          {"target": "<id>|none"}, applied on the next tick
//	PUT /api/v1/mode            {"mode": "keepUp|catchUpSlow"}, applied on the next tick
//
// All endpoints respond with Content-Type: application/json, including the
// 404 and 405 fallbacks. The PUT routes are wrapped in the control middleware
// (auth.APIKeyMiddleware in production) and answer 202 Accepted.
//
// JSON types are defined in types.go; hints.go derives the presentation hints
// attached to every Output.
package api
