package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/draftpace/draftpace/internal/compute"
	"github.com/draftpace/draftpace/internal/config"
	"github.com/draftpace/draftpace/internal/pacing"
	"github.com/draftpace/draftpace/internal/telemetry"
)

// Sink receives every Output the scheduler produces, after the tick completes.
type Sink func(compute.Output)

// Scheduler drives compute.Tick at a fixed interval and owns the engine State.
// Target and mode changes are queued and applied at the start of the next tick.
//
// All exported methods are safe for concurrent use.
type Scheduler struct {
	provider     telemetry.Provider
	sinks        []Sink
	fetchTimeout time.Duration
	now          func() time.Time // injectable for deterministic tests

	// tickMu serialises whole ticks, including the telemetry fetch.
	tickMu sync.Mutex

	mu            sync.Mutex
	state         compute.State
	pendingTarget *string
	pendingMode   *pacing.Mode
	roster        *telemetry.Roster
	last          *compute.Output
	interval      time.Duration
	cancel        context.CancelFunc
	done          chan struct{}
	resetCh       chan time.Duration
}

// New returns a stopped Scheduler seeded from cfg. fetchTimeout bounds each
// provider call; zero means no bound beyond the caller's context.
func New(provider telemetry.Provider, cfg config.EngineConfig, fetchTimeout time.Duration, sinks ...Sink) *Scheduler {
	return &Scheduler{
		provider:     provider,
		sinks:        sinks,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
		state:        compute.NewState(cfg.Target, cfg.Mode),
		interval:     cfg.TickInterval,
		resetCh:      make(chan time.Duration, 1),
	}
}

// Start launches the tick loop. It returns immediately; a second Start while
// running is a no-op. The loop stops when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	// The accumulator survives a restart, but the stopped period must not
	// count as elapsed drafting time.
	s.state.LastTick = time.Time{}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.interval, s.done)

	slog.Info("scheduler: started", "interval", s.interval, "target", s.state.TargetID, "mode", s.state.Mode)
}

// Stop halts the tick loop and waits for an in-flight tick to finish.
// The engine State is kept.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Info("scheduler: stopped")
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.resetCh:
			ticker.Reset(d)
		case <-ticker.C:
			s.TickOnce(ctx)
		}
	}
}

// TickOnce runs a single tick synchronously and returns its Output.
func (s *Scheduler) TickOnce(ctx context.Context) compute.Output {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	roster, fetchErr := s.fetch(ctx)
	now := s.now()

	s.mu.Lock()
	st := s.applyPending(s.state)
	var out compute.Output
	switch {
	case !st.HasTarget():
		st, out = compute.Idle(st, compute.StatusAwaitingSelection, now)
	case fetchErr != nil:
		st, out = compute.Idle(st, compute.StatusTelemetryUnavailable, now)
	default:
		var snap *telemetry.Snapshot
		if rec, ok := roster.Lookup(st.TargetID); ok {
			n := telemetry.Normalize(roster.Self, rec)
			snap = &n
		}
		st, out = compute.Tick(st, snap, now)
	}
	s.state = st
	if roster != nil {
		s.roster = roster
	}
	s.last = &out
	s.mu.Unlock()

	slog.Debug("scheduler: tick",
		"status", out.Status,
		"target", out.Target,
		"power", out.RecommendedPower,
		"strategy", out.Strategy,
	)
	for _, sink := range s.sinks {
		sink(out)
	}
	return out
}

func (s *Scheduler) fetch(ctx context.Context) (*telemetry.Roster, error) {
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}
	roster, err := s.provider.Roster(ctx)
	if err != nil {
		if errors.Is(err, telemetry.ErrSelfMissing) {
			slog.Debug("scheduler: self rider not in roster yet")
		} else {
			slog.Warn("scheduler: telemetry fetch failed", "err", err)
		}
		return nil, err
	}
	return roster, nil
}

// applyPending folds queued selections into st. Caller holds s.mu.
func (s *Scheduler) applyPending(st compute.State) compute.State {
	if s.pendingMode != nil {
		if *s.pendingMode != st.Mode {
			slog.Info("scheduler: mode changed", "from", st.Mode, "to", *s.pendingMode)
		}
		st.Mode = *s.pendingMode
		s.pendingMode = nil
	}
	if s.pendingTarget != nil {
		next := st.SelectTarget(*s.pendingTarget)
		if next.SessionID != st.SessionID {
			slog.Info("scheduler: target selected",
				"from", st.TargetID, "to", next.TargetID, "session", next.SessionID)
		}
		st = next
		s.pendingTarget = nil
	}
	return st
}

// SelectTarget queues a target change for the next tick. "none" or "" deselects.
func (s *Scheduler) SelectTarget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingTarget = &id
}

// SetMode queues a mode change for the next tick.
func (s *Scheduler) SetMode(m pacing.Mode) error {
	if _, err := pacing.ParseMode(string(m)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingMode = &m
	return nil
}

// SetInterval changes the tick period, taking effect immediately when running.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	if s.cancel == nil {
		return
	}
	// Senders hold s.mu, so after the drain the send cannot block.
	select {
	case <-s.resetCh:
	default:
	}
	s.resetCh <- d
}

// Interval returns the configured tick period.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// State returns a copy of the current engine State.
func (s *Scheduler) State() compute.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Last returns the most recent Output, or false before the first tick.
func (s *Scheduler) Last() (compute.Output, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return compute.Output{}, false
	}
	return *s.last, true
}

// Riders returns the ids of the selectable riders from the latest roster.
func (s *Scheduler) Riders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roster == nil {
		return []string{}
	}
	return s.roster.IDs()
}
