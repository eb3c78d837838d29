package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/draftpace/draftpace/internal/compute"
	"github.com/draftpace/draftpace/internal/config"
)

const (
	defaultCooldown = time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID        string  `json:"id"`
	RuleName  string  `json:"rule_name"`
	SessionID string  `json:"session_id"`
	Target    string  `json:"target"`
	Severity  string  `json:"severity"`
	Condition string  `json:"condition"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`

	// Ride context captured when the alert fired.
	Mode             string  `json:"mode"`
	Strategy         string  `json:"strategy,omitempty"`
	RecommendedPower float64 `json:"recommended_power_w"`
	FTPPct           float64 `json:"ftp_pct,omitempty"`
	Gap              float64 `json:"gap_m"`

	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// Engine evaluates alert rules against every engine Output and delivers
// webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []config.AlertRule
	webhooks []config.WebhookConfig

	mu       sync.Mutex
	session  string               // session of the last evaluated Output
	active   map[string]*Alert    // key: "ruleName:sessionID"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time
	wg       sync.WaitGroup
}

// New creates an Engine from the alert configuration.
// An Engine with no rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// Evaluate tests all configured rules against out. It has the scheduler.Sink
// signature. Alerts that fire are stored and webhook delivery is triggered
// asynchronously; alerts whose condition is now false are resolved. A rule
// that cannot be evaluated on out (numeric field, no active recommendation)
// keeps its current state. A new session resolves every alert of the old one.
func (e *Engine) Evaluate(out compute.Output) {
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	var notify []*Alert

	e.mu.Lock()
	if e.session != "" && e.session != out.SessionID {
		notify = append(notify, e.resolveSession(e.session, now)...)
	}
	e.session = out.SessionID

	for _, rule := range e.rules {
		key := rule.Name + ":" + out.SessionID
		fires, value, ok := evalCondition(rule.Condition, out)
		switch {
		case !ok:
			continue
		case fires:
			if a := e.fire(rule, key, out, value, now); a != nil {
				notify = append(notify, a)
			}
		default:
			if a := e.resolve(key, now); a != nil {
				notify = append(notify, a)
			}
		}
	}
	e.mu.Unlock()

	for _, a := range notify {
		if a.State == "firing" {
			slog.Warn("alerts: alert fired",
				"rule", a.RuleName,
				"target", a.Target,
				"value", a.Value,
				"severity", a.Severity,
			)
		} else {
			slog.Info("alerts: alert resolved", "rule", a.RuleName, "target", a.Target, "session", a.SessionID)
		}
	}
	if len(notify) == 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for _, a := range notify {
			e.deliver(a)
		}
	}()
}

// fire records a firing alert unless one is active or the rule is cooling
// down. It returns a copy for delivery, or nil. Caller holds e.mu.
func (e *Engine) fire(rule config.AlertRule, key string, out compute.Output, value float64, now time.Time) *Alert {
	if _, ok := e.active[key]; ok {
		return nil
	}
	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if last, ok := e.lastFire[key]; ok && now.Sub(last) < cooldown {
		return nil
	}
	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	a := &Alert{
		ID:        fmt.Sprintf("%s:%s:%d", rule.Name, out.SessionID, now.UnixNano()),
		RuleName:  rule.Name,
		SessionID: out.SessionID,
		Target:    out.Target,
		Severity:  sev,
		Condition: rule.Condition,
		Value:     value,
		Message: fmt.Sprintf("%s while following rider %s: %s (value %.2f)",
			rule.Name, out.Target, rule.Condition, value),
		FiredAt:          now,
		State:            "firing",
		Mode:             string(out.Mode),
		Strategy:         string(out.Strategy),
		RecommendedPower: out.RecommendedPower,
		FTPPct:           out.FTPPct,
		Gap:              out.Gap,
	}
	e.active[key] = a
	e.lastFire[key] = now
	cp := *a
	return &cp
}

// resolve moves an active alert to history. Caller holds e.mu.
func (e *Engine) resolve(key string, now time.Time) *Alert {
	a, ok := e.active[key]
	if !ok {
		return nil
	}
	resolved := now
	a.State = "resolved"
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	cp := *a
	return &cp
}

// resolveSession resolves every active alert of session. Caller holds e.mu.
func (e *Engine) resolveSession(session string, now time.Time) []*Alert {
	var out []*Alert
	for key, a := range e.active {
		if a.SessionID == session {
			out = append(out, e.resolve(key, now))
		}
	}
	return out
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))
	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Wait blocks until all in-flight webhook deliveries have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}
