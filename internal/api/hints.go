package api

import (
	"fmt"

	"github.com/draftpace/draftpace/internal/compute"
	"github.com/draftpace/draftpace/internal/pacing"
)

// Hint is one human-readable insight about the current recommendation.
// The UI shows these as chips next to the power target; Detail explains the
// chip in plain language.
type Hint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip (≤ 5 words).
	Title string `json:"title"`
	// Detail is the full explanation shown on click/hover.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// Thresholds for the chase and effort hints.
const (
	longChaseGap  = 200.0 // m
	overFTPPct    = 100.0
	redlineFTPPct = 120.0
)

// computeHints derives presentation hints from an Output.
// Status hints come first and end the list when there is no recommendation.
func computeHints(out compute.Output, stale bool) []Hint {
	hints := make([]Hint, 0, 2)

	// ── Stale output ─────────────────────────────────────────────────────────
	if stale {
		hints = append(hints, Hint{
			Key:   "stale",
			Level: "critical",
			Title: "Engine stalled",
			Detail: "No new recommendation has been produced recently. " +
				"The engine may have been stopped, or the process is overloaded. " +
				"The numbers shown are the last ones computed and may no longer match the road.",
		})
	}

	switch out.Status {
	case compute.StatusTelemetryUnavailable:
		return append(hints, Hint{
			Key:   "telemetry_unavailable",
			Level: "critical",
			Title: "No telemetry",
			Detail: "The engine couldn't read rider telemetry on the last tick. " +
				"Check that the game client exporter or broker is reachable and that your own rider " +
				"is present in the feed. Your saved energy is kept and will continue once data returns.",
		})
	case compute.StatusTargetUnavailable:
		return append(hints, Hint{
			Key:   "target_unavailable",
			Level: "warning",
			Title: "Target not visible",
			Detail: fmt.Sprintf(
				"%s is not in the current rider list. They may have finished, left the event or "+
					"dropped out of range. Pick another rider or wait for them to reappear.",
				targetLabel(out.Target)),
		})
	case compute.StatusAwaitingSelection:
		return append(hints, Hint{
			Key:   "awaiting_selection",
			Level: "info",
			Title: "Pick a target",
			Detail: "No target rider is selected. Choose a rider to follow and the engine will " +
				"start recommending power on the next tick.",
		})
	}

	// ── Effort relative to FTP ───────────────────────────────────────────────
	if out.FTPPct >= overFTPPct {
		v := out.FTPPct
		level, title := "warning", fmt.Sprintf("%.0f%% of FTP", v)
		detail := fmt.Sprintf(
			"Holding this target means riding at %.0f%% of your threshold power. "+
				"You can do this for a few minutes at most. If the gap is not closing, "+
				"consider switching to catch-up-slow mode or choosing a slower rider.", v)
		if v >= redlineFTPPct {
			level = "critical"
			title = "Above redline"
		}
		hints = append(hints, Hint{Key: "ftp", Level: level, Title: title, Detail: detail, Value: &v})
	}

	// ── Draft state ──────────────────────────────────────────────────────────
	if out.Strategy == pacing.StrategyEmergency {
		v := out.Gap
		hints = append(hints, Hint{
			Key:   "draft_lost",
			Level: "warning",
			Title: "Out of the draft",
			Detail: fmt.Sprintf(
				"You are outside the strong-draft zone (%s). The engine is asking for a short surge "+
					"to %.1f m/s to get back on the wheel before the gap grows.",
				out.Draft, out.CatchSpeed),
			Value: &v,
		})
	}

	// ── Chase length ─────────────────────────────────────────────────────────
	if out.Mode == pacing.KeepUp && out.Gap >= longChaseGap {
		v := out.Gap
		hints = append(hints, Hint{
			Key:   "long_chase",
			Level: "info",
			Title: fmt.Sprintf("%.0f m to close", v),
			Detail: "The target is a long way ahead. Keep-up mode will surge hard to close the gap; " +
				"catch-up-slow spreads it evenly over ten minutes and is easier to sustain.",
			Value: &v,
		})
	}

	// ── Descent ──────────────────────────────────────────────────────────────
	if out.RecommendedPower < 0 {
		hints = append(hints, Hint{
			Key:   "free_speed",
			Level: "info",
			Title: "Free speed",
			Detail: "Gravity alone is enough to hold the target's pace here. " +
				"Soft-pedal and stay tucked in the wheel.",
		})
	}

	// ── All clear ────────────────────────────────────────────────────────────
	if len(hints) == 0 && out.InStrongDraft {
		kj := out.EnergySavedKJ
		hints = append(hints, Hint{
			Key:   "sitting_in",
			Level: "ok",
			Title: "Sitting in",
			Detail: fmt.Sprintf(
				"You are sheltered in a %s draft close behind the target. "+
					"So far this session the draft has saved you about %.1f kJ.",
				out.Draft, kj),
			Value: &kj,
		})
	}

	return hints
}
