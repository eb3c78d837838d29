package physics

import "math"

// Physical constants shared by the forward and inverse relations.
const (
	Gravity       = 9.8067 // m/s²
	AirDensity    = 1.225  // kg/m³, sea level
	DrivetrainEff = 0.97
)

// Drag area bounds applied by EstimateDragArea.
const (
	MinDragArea      = 0.20
	MaxDragArea      = 0.60
	FallbackDragArea = 0.35 // plausible upright rider

	// minEstimateSpeed is the speed below which the inverse solve is not attempted.
	minEstimateSpeed = 0.1
)

// slopeForces returns the gravity and rolling resistance power terms (W) for
// the given system weight moving at speed on grade.
func slopeForces(speed, grade, systemWeight, rollingCoeff float64) (gravity, rolling float64) {
	theta := math.Atan(grade)
	gravity = systemWeight * Gravity * speed * math.Sin(theta)
	rolling = systemWeight * Gravity * speed * rollingCoeff * math.Cos(theta)
	return gravity, rolling
}

// dragPower returns the aerodynamic term 0.5·ρ·CdA·v³.
func dragPower(dragArea, speed float64) float64 {
	return 0.5 * AirDensity * dragArea * speed * speed * speed
}

// RequiredPower returns the power (W) at the pedals needed to hold speed (m/s)
// on grade for a rider+bike of systemWeight (kg).
//
// The result is not clamped; degenerate inputs may produce zero or negative power.
func RequiredPower(dragArea, speed, grade, systemWeight, rollingCoeff float64) float64 {
	gravity, rolling := slopeForces(speed, grade, systemWeight, rollingCoeff)
	return (gravity + rolling + dragPower(dragArea, speed)) / DrivetrainEff
}

// EstimateDragArea solves RequiredPower for the drag area, given the power a
// rider is producing at a known speed.
//
// Near-zero speed or a non-positive residual after the slope terms returns
// FallbackDragArea. Any other result is clamped to [MinDragArea, MaxDragArea]
// so a momentary power spike cannot produce an implausible rider.
func EstimateDragArea(power, systemWeight, speed, grade, rollingCoeff float64) float64 {
	if speed < minEstimateSpeed {
		return FallbackDragArea
	}
	gravity, rolling := slopeForces(speed, grade, systemWeight, rollingCoeff)
	residual := power*DrivetrainEff - gravity - rolling
	if residual <= 0 {
		return FallbackDragArea
	}
	cda := residual / (0.5 * AirDensity * speed * speed * speed)
	return clamp(cda, MinDragArea, MaxDragArea)
}

// clamp restricts v to the range [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
