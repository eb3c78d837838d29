// Package ws streams engine Outputs to WebSocket clients.
//
// Hub keeps the set of connected dashboards and renders the store's latest
// Output every stream interval. A client receives the current frame as soon
// as it connects, and afterwards only frames that differ from the last one
// it was offered.
//
// Frames sent to clients:
//
//	{"event": "output",  "data": { /* same schema as GET /api/v1/output */ }}
//	{"event": "waiting", "data": null}
//
// "waiting" is sent until the engine has completed its first tick.
// A dashboard that falls behind skips to the newest frame rather than being
// disconnected; a stuck connection is closed by the write deadline. The
// upgrader accepts all origins. The endpoint is mounted at /ws/stream.
package ws
