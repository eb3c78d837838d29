package compute

import (
	"math"

	"github.com/draftpace/draftpace/internal/draft"
	"github.com/draftpace/draftpace/internal/physics"
)

// Power is the solver's breakdown for one tick, in watts.
type Power struct {
	Recommended float64 // max(Catch, Hold)
	Hold        float64 // power to match the target's speed
	Catch       float64 // power to ride at the planned catch speed
}

// Solve converts the planned catch speed and the target's speed into the power
// the rider must produce. dragArea is the target's estimated CdA; weight and
// rollingCoeff are the rider's own. Recommended is never below Hold.
func Solve(dragArea, catchSpeed, targetSpeed, grade, weight, rollingCoeff float64) Power {
	catch := physics.RequiredPower(dragArea, catchSpeed, grade, weight, rollingCoeff)
	hold := physics.RequiredPower(dragArea, targetSpeed, grade, weight, rollingCoeff)
	return Power{
		Recommended: math.Max(catch, hold),
		Hold:        hold,
		Catch:       catch,
	}
}

// catchUpBands maps an absolute gap upper bound (m) to the advisory time (s).
var catchUpBands = []struct {
	below   float64
	seconds float64
}{
	{10, 10},
	{50, 20},
	{200, 40},
}

// catchUpMax is the advisory for gaps beyond the last band.
const catchUpMax = 60.0

// CatchUpTime returns the informational catch-up time for a distance gap.
// It does not feed the power computation.
func CatchUpTime(gap float64) float64 {
	g := math.Abs(gap)
	for _, b := range catchUpBands {
		if g < b.below {
			return b.seconds
		}
	}
	return catchUpMax
}

// IdealDraftPower is the power needed at the target's speed with the drag area
// scaled down to the strong-draft threshold.
func IdealDraftPower(dragArea, targetSpeed, grade, weight, rollingCoeff float64) float64 {
	return physics.RequiredPower(dragArea*draft.StrongThreshold, targetSpeed, grade, weight, rollingCoeff)
}
