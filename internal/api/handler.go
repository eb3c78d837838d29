package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/draftpace/draftpace/internal/alerts"
	"github.com/draftpace/draftpace/internal/compute"
	"github.com/draftpace/draftpace/internal/pacing"
	"github.com/draftpace/draftpace/internal/store"
	"github.com/draftpace/draftpace/internal/telemetry"
)

// maxBodyBytes bounds control request bodies.
const maxBodyBytes = 4 << 10

// Engine is the slice of the scheduler the API reads and controls.
type Engine interface {
	SelectTarget(id string)
	SetMode(m pacing.Mode) error
	State() compute.State
	Riders() []string
	Running() bool
	Interval() time.Duration
}

// AlertSource lists recent ride alerts.
type AlertSource interface {
	Active() []*alerts.Alert
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store  *store.Store
	engine Engine
	alerts AlertSource
	router *mux.Router
}

// New creates a Handler wired to the output store, the engine and the alert
// engine, and registers all routes. al may be nil. control wraps the
// state-changing routes; pass nil to leave them open.
func New(st *store.Store, eng Engine, al AlertSource, control mux.MiddlewareFunc) http.Handler {
	if control == nil {
		control = func(next http.Handler) http.Handler { return next }
	}
	h := &Handler{store: st, engine: eng, alerts: al, router: mux.NewRouter()}
	h.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	h.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	v1 := h.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", h.health).Methods(http.MethodGet)
	v1.HandleFunc("/output", h.output).Methods(http.MethodGet)
	v1.HandleFunc("/riders", h.riders).Methods(http.MethodGet)
	v1.HandleFunc("/state", h.state).Methods(http.MethodGet)
	v1.HandleFunc("/sessions", h.listSessions).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}", h.getSession).Methods(http.MethodGet)
	v1.HandleFunc("/alerts", h.listAlerts).Methods(http.MethodGet)
	v1.Handle("/target", control(http.HandlerFunc(h.putTarget))).Methods(http.MethodPut)
	v1.Handle("/mode", control(http.HandlerFunc(h.putMode))).Methods(http.MethodPut)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: scheduler liveness and current selection.
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	st := h.engine.State()
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		Running:      h.engine.Running(),
		TickInterval: h.engine.Interval().String(),
		Target:       st.TargetID,
		Mode:         string(st.Mode),
		LastTick:     formatTime(st.LastTick),
	})
}

// output returns GET /api/v1/output: the latest Output.
// 404 before the first tick, 503 once the latest Output is older than the TTL.
func (h *Handler) output(w http.ResponseWriter, _ *http.Request) {
	resp, ok := BuildOutput(h.store)
	if !ok {
		jsonErr(w, http.StatusNotFound, "no output yet")
		return
	}
	code := http.StatusOK
	if resp.Stale {
		code = http.StatusServiceUnavailable
	}
	jsonResp(w, code, resp)
}

// riders returns GET /api/v1/riders: selectable rider ids from the last roster.
func (h *Handler) riders(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, RidersResponse{
		Riders:   h.engine.Riders(),
		Selected: h.engine.State().TargetID,
	})
}

// state returns GET /api/v1/state: a summary of the engine state.
func (h *Handler) state(w http.ResponseWriter, _ *http.Request) {
	st := h.engine.State()
	jsonResp(w, http.StatusOK, StateResponse{
		Target:         st.TargetID,
		Mode:           string(st.Mode),
		SessionID:      st.SessionID,
		WindowLen:      st.Window.Len(),
		WindowCapacity: compute.WindowCapacity,
		EnergySavedKJ:  st.EnergySavedKJ(),
		AvgPowerSaved:  st.Window.Mean(),
		LastTick:       formatTime(st.LastTick),
	})
}

// listSessions returns GET /api/v1/sessions: recent sessions, newest first.
func (h *Handler) listSessions(w http.ResponseWriter, _ *http.Request) {
	entries := h.store.List()
	out := make([]SessionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, SessionResponse{
			SessionID:     e.Output.SessionID,
			Target:        e.Output.Target,
			Status:        string(e.Output.Status),
			EnergySavedKJ: e.Output.EnergySavedKJ,
			AvgPowerSaved: e.Output.AvgPowerSaved,
			LastSeen:      formatTime(e.UpdatedAt),
		})
	}
	jsonResp(w, http.StatusOK, out)
}

// getSession returns GET /api/v1/sessions/{id}: the last Output of a session.
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	e, ok := h.store.Get(mux.Vars(r)["id"])
	if !ok {
		jsonErr(w, http.StatusNotFound, "session not found")
		return
	}
	jsonResp(w, http.StatusOK, toOutputResponse(e, false))
}

// listAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, _ *http.Request) {
	out := []*alerts.Alert{}
	if h.alerts != nil {
		out = append(out, h.alerts.Active()...)
	}
	jsonResp(w, http.StatusOK, out)
}

// putTarget handles PUT /api/v1/target: queues a target selection.
func (h *Handler) putTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Target == "" {
		jsonErr(w, http.StatusBadRequest, "target is required (use \"none\" to deselect)")
		return
	}
	h.engine.SelectTarget(req.Target)
	jsonResp(w, http.StatusAccepted, AcceptedResponse{Target: req.Target, AppliesAt: "next_tick"})
}

// putMode handles PUT /api/v1/mode: queues a pacing mode change.
func (h *Handler) putMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.engine.SetMode(pacing.Mode(req.Mode)); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResp(w, http.StatusAccepted, AcceptedResponse{Mode: req.Mode, AppliesAt: "next_tick"})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// BuildOutput returns the latest Output from st in its JSON representation,
// or false when nothing has been stored yet. The WebSocket hub reuses it.
func BuildOutput(st *store.Store) (OutputResponse, bool) {
	e, fresh, ok := st.Latest()
	if !ok {
		return OutputResponse{}, false
	}
	return toOutputResponse(e, !fresh), true
}

// toOutputResponse maps a store.Entry to its JSON representation.
func toOutputResponse(e *store.Entry, stale bool) OutputResponse {
	return OutputResponse{
		Output:    e.Output,
		Stale:     stale,
		UpdatedAt: formatTime(e.UpdatedAt),
		Hints:     computeHints(e.Output, stale),
	}
}

// targetLabel renders the selection for hint text.
func targetLabel(id string) string {
	if id == "" || id == telemetry.NoTarget {
		return "no rider"
	}
	return "rider " + id
}
