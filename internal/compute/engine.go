package compute

import (
	"math"
	"time"

	"github.com/draftpace/draftpace/internal/draft"
	"github.com/draftpace/draftpace/internal/pacing"
	"github.com/draftpace/draftpace/internal/physics"
	"github.com/draftpace/draftpace/internal/telemetry"
)

// Status describes why an Output does or does not carry a recommendation.
type Status string

const (
	StatusAwaitingSelection    Status = "awaiting_selection"
	StatusTargetUnavailable    Status = "target_unavailable"
	StatusTelemetryUnavailable Status = "telemetry_unavailable"
	StatusActive               Status = "active"
)

// Output is the per-tick snapshot handed to the presentation layer.
// Power fields are zero unless Status is StatusActive; the energy fields
// always reflect the current session.
type Output struct {
	Status    Status      `json:"status"`
	SessionID string      `json:"session_id"`
	Target    string      `json:"target"`
	Mode      pacing.Mode `json:"mode"`
	Timestamp time.Time   `json:"timestamp"`

	RecommendedPower float64 `json:"recommended_power_w"`
	DisplayPower     float64 `json:"display_power_w"`
	HoldPower        float64 `json:"hold_power_w"`
	CatchPower       float64 `json:"catch_power_w"`
	FTPPct           float64 `json:"ftp_pct,omitempty"`

	CatchSpeed    float64         `json:"catch_speed_mps"`
	CatchUpTime   float64         `json:"catch_up_time_s"`
	DragArea      float64         `json:"drag_area"`
	Draft         draft.Category  `json:"draft"`
	InStrongDraft bool            `json:"in_strong_draft"`
	Gap           float64         `json:"gap_m"`
	Strategy      pacing.Strategy `json:"strategy"`

	EnergySavedKJ float64 `json:"energy_saved_kj"`
	AvgPowerSaved float64 `json:"avg_power_saved_w"`
	PowerSaved    float64 `json:"power_saved_w"`
}

// Tick runs one engine step. It is pure: the returned State replaces st and
// nothing else is touched.
//
// With no target selected, or a nil snap (target absent from the roster),
// the physics is skipped and only the timestamp advances.
func Tick(st State, snap *telemetry.Snapshot, now time.Time) (State, Output) {
	if !st.HasTarget() {
		return Idle(st, StatusAwaitingSelection, now)
	}
	if snap == nil {
		return Idle(st, StatusTargetUnavailable, now)
	}

	self, target := snap.Self, snap.Target
	weight := self.SystemWeight()
	gap := snap.Gap()

	cda := physics.EstimateDragArea(target.Power, target.SystemWeight(), target.Speed, snap.Grade, target.RollingCoeff)
	plan := pacing.Plan(st.Mode, snap.DraftFactor, gap, target.Speed)
	pwr := Solve(cda, plan.CatchSpeed, target.Speed, snap.Grade, weight, self.RollingCoeff)

	inDraft := draft.InStrongDraft(snap.DraftFactor)
	var saved float64
	if inDraft {
		// Measured against holding the wheel, so surging to close a gap
		// earns no extra saving.
		saved = pwr.Hold - IdealDraftPower(cda, target.Speed, snap.Grade, weight, self.RollingCoeff)
		st.EnergySaved += saved * st.elapsed(now)
		st.Window.Push(saved)
	}
	st.LastTick = now

	out := baseOutput(st, StatusActive, now)
	out.RecommendedPower = pwr.Recommended
	out.DisplayPower = math.Max(0, pwr.Recommended)
	out.HoldPower = pwr.Hold
	out.CatchPower = pwr.Catch
	if self.FTP > 0 {
		out.FTPPct = pwr.Recommended / self.FTP * 100
	}
	out.CatchSpeed = plan.CatchSpeed
	out.CatchUpTime = CatchUpTime(gap)
	out.DragArea = cda
	out.Draft = draft.Classify(snap.DraftFactor)
	out.InStrongDraft = inDraft
	out.Gap = gap
	out.Strategy = plan.Strategy
	out.PowerSaved = saved
	return st, out
}

// Idle advances the timestamp without running the physics and returns an
// Output carrying status. The accumulator and window are left unchanged.
func Idle(st State, status Status, now time.Time) (State, Output) {
	st.LastTick = now
	return st, baseOutput(st, status, now)
}

func baseOutput(st State, status Status, now time.Time) Output {
	return Output{
		Status:        status,
		SessionID:     st.SessionID,
		Target:        st.TargetID,
		Mode:          st.Mode,
		Timestamp:     now,
		EnergySavedKJ: st.EnergySavedKJ(),
		AvgPowerSaved: st.Window.Mean(),
	}
}
