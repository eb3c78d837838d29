package alerts

import (
	"strconv"
	"strings"

	"github.com/draftpace/draftpace/internal/compute"
)

// evalCondition evaluates a rule condition string against an Output.
//
// Supported expressions (field operator value):
//
//	ftp_pct > 110
//	recommended_power_w >= 400
//	gap_m > 50
//	catch_speed_mps > 12
//	energy_saved_kj >= 100
//	status == target_unavailable
//	strategy == emergency re-entry
//	draft != strong
//
// String values may contain spaces.
// Returns (fires, triggering value, ok). ok is false when the rule cannot be
// judged on out: an unparseable expression, an unknown field, or a numeric
// field on an Output without an active recommendation (its fields are zero).
func evalCondition(cond string, out compute.Output) (fires bool, value float64, ok bool) {
	parts := strings.Fields(cond)
	if len(parts) < 3 {
		return false, 0, false
	}
	field, op, rhs := parts[0], parts[1], strings.Join(parts[2:], " ")

	if v, ok := stringField(field, out); ok {
		switch op {
		case "==":
			return v == rhs, 0, true
		case "!=":
			return v != rhs, 0, true
		}
		return false, 0, false
	}

	v, known := numericField(field, out)
	if !known || out.Status != compute.StatusActive {
		return false, 0, false
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0, false
	}
	fires, known = compareFloat(v, op, threshold)
	return fires, v, known
}

func stringField(field string, out compute.Output) (string, bool) {
	switch field {
	case "status":
		return string(out.Status), true
	case "strategy":
		return string(out.Strategy), true
	case "draft":
		return string(out.Draft), true
	case "mode":
		return string(out.Mode), true
	case "target":
		return out.Target, true
	}
	return "", false
}

// numericField maps a field name to its value in the Output.
func numericField(field string, out compute.Output) (float64, bool) {
	switch field {
	case "recommended_power_w":
		return out.RecommendedPower, true
	case "display_power_w":
		return out.DisplayPower, true
	case "ftp_pct":
		return out.FTPPct, true
	case "gap_m":
		return out.Gap, true
	case "catch_speed_mps":
		return out.CatchSpeed, true
	case "catch_up_time_s":
		return out.CatchUpTime, true
	case "drag_area":
		return out.DragArea, true
	case "energy_saved_kj":
		return out.EnergySavedKJ, true
	case "avg_power_saved_w":
		return out.AvgPowerSaved, true
	}
	return 0, false
}

// compareFloat applies a comparison operator to two float64 values.
// ok is false for an unknown operator.
func compareFloat(v float64, op string, threshold float64) (result, ok bool) {
	switch op {
	case ">":
		return v > threshold, true
	case ">=":
		return v >= threshold, true
	case "<":
		return v < threshold, true
	case "<=":
		return v <= threshold, true
	case "==":
		return v == threshold, true
	case "!=":
		return v != threshold, true
	}
	return false, false
}
