package api

import "github.com/draftpace/draftpace/internal/compute"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status       string `json:"status"`
	Running      bool   `json:"running"`
	TickInterval string `json:"tick_interval"`
	Target       string `json:"target"`
	Mode         string `json:"mode"`
	LastTick     string `json:"last_tick,omitempty"` // RFC3339
}

// OutputResponse is the payload for GET /api/v1/output and
// GET /api/v1/sessions/{id}: the engine Output plus storage metadata and
// presentation hints.
type OutputResponse struct {
	compute.Output
	Stale     bool   `json:"stale"`
	UpdatedAt string `json:"updated_at"` // RFC3339
	Hints     []Hint `json:"hints"`
}

// RidersResponse is the payload for GET /api/v1/riders.
type RidersResponse struct {
	Riders   []string `json:"riders"`
	Selected string   `json:"selected"`
}

// StateResponse is the payload for GET /api/v1/state.
type StateResponse struct {
	Target         string  `json:"target"`
	Mode           string  `json:"mode"`
	SessionID      string  `json:"session_id"`
	WindowLen      int     `json:"window_len"`
	WindowCapacity int     `json:"window_capacity"`
	EnergySavedKJ  float64 `json:"energy_saved_kj"`
	AvgPowerSaved  float64 `json:"avg_power_saved_w"`
	LastTick       string  `json:"last_tick,omitempty"` // RFC3339
}

// SessionResponse is one entry of GET /api/v1/sessions.
type SessionResponse struct {
	SessionID     string  `json:"session_id"`
	Target        string  `json:"target"`
	Status        string  `json:"status"`
	EnergySavedKJ float64 `json:"energy_saved_kj"`
	AvgPowerSaved float64 `json:"avg_power_saved_w"`
	LastSeen      string  `json:"last_seen"` // RFC3339
}

// TargetRequest is the body of PUT /api/v1/target.
type TargetRequest struct {
	Target string `json:"target"`
}

// ModeRequest is the body of PUT /api/v1/mode.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// AcceptedResponse confirms a queued control change.
type AcceptedResponse struct {
	Target string `json:"target,omitempty"`
	Mode   string `json:"mode,omitempty"`
	// AppliesAt is always "next_tick": control changes are queued.
	AppliesAt string `json:"applies_at"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
