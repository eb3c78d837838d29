package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/draftpace/draftpace/internal/config"
)

// Static serves a fixed roster. Update replaces a rider's record, which lets
// tests and embedding applications drive the engine without a transport.
type Static struct {
	selfID string

	mu      sync.RWMutex
	records map[string]Record
}

// NewStatic builds a Static provider from config rider entries.
func NewStatic(selfID string, riders []config.RiderConfig) *Static {
	s := &Static{selfID: selfID, records: make(map[string]Record, len(riders))}
	for _, r := range riders {
		s.records[r.ID] = Record{
			ID:           r.ID,
			Mass:         r.Mass,
			BikeMass:     r.BikeMass,
			RollingCoeff: r.RollingCoeff,
			Speed:        r.Speed,
			Power:        r.Power,
			Grade:        r.Grade,
			DraftFactor:  r.DraftFactor,
			Distance:     r.Distance,
			FTP:          r.FTP,
		}
	}
	return s
}

// Update stores rec under rec.ID, replacing any previous record.
func (s *Static) Update(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
}

// Remove deletes the rider with the given id.
func (s *Static) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// Roster implements Provider.
func (s *Static) Roster(_ context.Context) (*Roster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return buildRoster(s.selfID, s.records, time.Now().UTC())
}

// buildRoster splits records into self and others. The map is copied so the
// returned Roster is independent of the provider's state.
func buildRoster(selfID string, records map[string]Record, at time.Time) (*Roster, error) {
	self, ok := records[selfID]
	if !ok {
		return nil, ErrSelfMissing
	}
	r := &Roster{Self: self, Riders: make(map[string]Record, len(records)), FetchedAt: at}
	for id, rec := range records {
		if id == selfID {
			continue
		}
		r.Riders[id] = rec
	}
	return r, nil
}
