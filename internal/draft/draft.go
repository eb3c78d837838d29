// Package draft classifies the drafting-strength signal reported for a rider.
//
// The factor is the fraction of solo aerodynamic drag the rider still faces:
// 0 is a perfect draft, 1 is no shelter at all.
package draft

// Category is a draft quality label, ordered from best to worst.
type Category string

const (
	Excellent Category = "excellent"
	Strong    Category = "strong"
	Weak      Category = "weak"
	None      Category = "none"
)

// Upper bounds (exclusive) for each category.
const (
	ExcellentThreshold = 0.6
	StrongThreshold    = 0.7
	WeakThreshold      = 0.85
)

// Classify maps a drafting factor to its Category.
func Classify(factor float64) Category {
	switch {
	case factor < ExcellentThreshold:
		return Excellent
	case factor < StrongThreshold:
		return Strong
	case factor < WeakThreshold:
		return Weak
	default:
		return None
	}
}

// InStrongDraft reports whether factor is inside the strong draft zone
// (excellent or strong).
func InStrongDraft(factor float64) bool {
	return factor < StrongThreshold
}
