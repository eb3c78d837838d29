package telemetry

import (
	"errors"
	"math"
	"sort"
	"time"
)

// Fallbacks substituted by Normalize for absent or non-finite fields.
const (
	FallbackMass         = 103.0 // kg
	FallbackRollingCoeff = 0.004
	FallbackTargetPower  = 150.0 // W

	// fallbackDraftFactor treats an unknown draft as no shelter at all.
	fallbackDraftFactor = 1.0
)

// NoTarget is the target id meaning "inactive".
const NoTarget = "none"

// ErrSelfMissing is returned by providers whose roster does not (yet) contain
// the local rider.
var ErrSelfMissing = errors.New("telemetry: self rider not present")

// Record is one rider's raw telemetry as reported by a provider.
// A nil field means the provider did not report it.
type Record struct {
	ID           string   `json:"id"`
	Mass         *float64 `json:"mass_kg,omitempty"`
	BikeMass     *float64 `json:"bike_mass_kg,omitempty"`
	RollingCoeff *float64 `json:"rolling_resistance,omitempty"`
	Speed        *float64 `json:"speed_mps,omitempty"`
	Power        *float64 `json:"power_watts,omitempty"`
	Grade        *float64 `json:"grade,omitempty"`
	DraftFactor  *float64 `json:"draft_factor,omitempty"`
	Distance     *float64 `json:"distance_m,omitempty"`
	FTP          *float64 `json:"ftp_watts,omitempty"`
}

// Roster is the set of riders visible at one instant.
type Roster struct {
	Self      Record
	Riders    map[string]Record // excludes Self
	FetchedAt time.Time
}

// IDs returns the ids of all non-self riders in ascending order.
func (r *Roster) IDs() []string {
	ids := make([]string, 0, len(r.Riders))
	for id := range r.Riders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup returns the record for the given target id.
func (r *Roster) Lookup(id string) (Record, bool) {
	if id == "" || id == NoTarget {
		return Record{}, false
	}
	rec, ok := r.Riders[id]
	return rec, ok
}

// Rider is a normalised rider: every field holds a usable value.
type Rider struct {
	Mass         float64 // kg
	BikeMass     float64 // kg
	RollingCoeff float64
	Speed        float64 // m/s, never negative
	Power        float64 // W
	Distance     float64 // m along the route
	FTP          float64 // W, 0 when unknown
}

// SystemWeight is the rider plus bicycle mass.
func (r Rider) SystemWeight() float64 {
	return r.Mass + r.BikeMass
}

// Snapshot is the immutable per-tick engine input.
type Snapshot struct {
	Self        Rider
	Target      Rider
	Grade       float64 // rise/run under the local rider
	DraftFactor float64 // local rider's drafting factor, lower is stronger
}

// Gap returns the target's route distance minus the local rider's.
func (s Snapshot) Gap() float64 {
	return s.Target.Distance - s.Self.Distance
}

// Normalize builds a Snapshot from raw records, substituting fallbacks for
// every absent field. The grade is the local rider's, or the target's when
// the local rider reports none.
func Normalize(self, target Record) Snapshot {
	grade := value(self.Grade, value(target.Grade, 0))
	return Snapshot{
		Self:        normalizeRider(self, 0),
		Target:      normalizeRider(target, FallbackTargetPower),
		Grade:       grade,
		DraftFactor: value(self.DraftFactor, fallbackDraftFactor),
	}
}

func normalizeRider(r Record, powerFallback float64) Rider {
	return Rider{
		Mass:         value(r.Mass, FallbackMass),
		BikeMass:     value(r.BikeMass, 0),
		RollingCoeff: value(r.RollingCoeff, FallbackRollingCoeff),
		Speed:        math.Max(0, value(r.Speed, 0)),
		Power:        value(r.Power, powerFallback),
		Distance:     value(r.Distance, 0),
		FTP:          math.Max(0, value(r.FTP, 0)),
	}
}

// value dereferences p, returning fallback for nil, NaN or ±Inf.
func value(p *float64, fallback float64) float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return fallback
	}
	return *p
}

// Float returns a pointer to v, for building Records in code.
func Float(v float64) *float64 {
	return &v
}
