package alerts

import (
	"cmp"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gradtrack/gradtrack/pkg/types"
	"github.com/gradtrack/gradtrack/tracker/internal/compute"
	"github.com/gradtrack/gradtrack/tracker/internal/config"
)

const (
	defaultCooldown = 24 * time.Hour
	defaultSeverity = "warning"

	// resolvedKeep caps how many resolved alerts are remembered; resolvedShown
	// is how long they stay visible in Active.
	resolvedKeep  = 200
	resolvedShown = 24 * time.Hour
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert is one firing or resolved rule match on one application.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	BoardID    string     `json:"board_id"`
	University string     `json:"university"`
	Program    string     `json:"program,omitempty"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

// track is what the engine remembers per rule, board and application.
// lastFired outlives the alert so a flapping record still honours the
// cooldown.
type track struct {
	firing    *Alert
	lastFired time.Time
}

// Engine matches alert rules against every record of a pass and notifies
// the configured webhooks when an alert fires or resolves. It is safe for
// concurrent use.
type Engine struct {
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	client   *http.Client

	now      func() time.Time
	deliverF func(*Alert)

	mu       sync.Mutex
	tracks   map[trackKey]*track
	resolved []*Alert
}

// New returns an Engine for cfg. Without rules Evaluate does nothing.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		tracks:   make(map[trackKey]*track),
	}
	e.deliverF = func(a *Alert) { go e.deliver(a) }
	return e
}

// trackKey identifies one application under one rule on one board,
// independently of how its name was typed on a given day.
type trackKey struct {
	rule, board, university, program string
}

func keyOf(rule, board string, r types.Record) trackKey {
	return trackKey{rule, board, types.Normalize(r.University), types.Normalize(r.Program)}
}

// Evaluate applies every rule that covers p's board to each of its records.
// A record that starts matching fires (unless it fired within the rule's
// cooldown); an alert whose record stopped matching or left the board is
// resolved. Failed passes are ignored so a source outage does not resolve
// everything.
func (e *Engine) Evaluate(p *compute.Pass) {
	if len(e.rules) == 0 || p == nil || p.Err != "" {
		return
	}
	now := e.now()

	e.mu.Lock()
	var notify []*Alert
	for _, rule := range e.rules {
		if len(rule.Boards) > 0 && !slices.Contains(rule.Boards, p.BoardID) {
			continue
		}
		matched := make(map[trackKey]bool)
		for _, r := range p.Records {
			ok, value := evalCondition(rule.Condition, r)
			if !ok {
				continue
			}
			key := keyOf(rule.Name, p.BoardID, r)
			matched[key] = true
			if a := e.fire(key, rule, p.BoardID, r, value, now); a != nil {
				notify = append(notify, a)
			}
		}
		notify = append(notify, e.resolveUnmatched(rule.Name, p.BoardID, matched, now)...)
	}
	e.mu.Unlock()

	for _, a := range notify {
		e.deliverF(a)
	}
}

// fire starts a new alert for key unless the cooldown is still running and
// returns a copy for delivery. Callers hold e.mu.
func (e *Engine) fire(key trackKey, rule config.AlertRule, board string, r types.Record, value float64, now time.Time) *Alert {
	t, ok := e.tracks[key]
	if !ok {
		t = &track{}
		e.tracks[key] = t
	}
	if !t.lastFired.IsZero() && now.Sub(t.lastFired) <= cmp.Or(rule.Cooldown, defaultCooldown) {
		return nil
	}

	sev := cmp.Or(rule.Severity, defaultSeverity)
	t.lastFired = now
	t.firing = &Alert{
		ID:         uuid.NewString(),
		RuleName:   rule.Name,
		BoardID:    board,
		University: r.University,
		Program:    r.Program,
		Severity:   sev,
		Value:      value,
		Message:    fmt.Sprintf("[%s] %s fired on %s: %s (%s)", sev, rule.Name, board, describe(r), rule.Condition),
		FiredAt:    now,
		State:      StateFiring,
	}
	slog.Warn("alerts: fired", "rule", rule.Name, "board", board, "university", r.University, "value", value, "severity", sev)

	cp := *t.firing
	return &cp
}

// resolveUnmatched resolves the firing alerts of rule on board whose key is
// not in matched. Callers hold e.mu.
func (e *Engine) resolveUnmatched(rule, board string, matched map[trackKey]bool, now time.Time) []*Alert {
	var out []*Alert
	for key, t := range e.tracks {
		if t.firing == nil || key.rule != rule || key.board != board || matched[key] {
			continue
		}
		a := t.firing
		t.firing = nil
		at := now
		a.State, a.ResolvedAt = StateResolved, &at

		e.resolved = append(e.resolved, a)
		if over := len(e.resolved) - resolvedKeep; over > 0 {
			e.resolved = slices.Delete(e.resolved, 0, over)
		}
		slog.Info("alerts: resolved", "rule", a.RuleName, "board", a.BoardID, "university", a.University)

		cp := *a
		out = append(out, &cp)
	}
	return out
}

// Forget drops all state of boardID without notifying anyone, e.g. when the
// board is removed from the config.
func (e *Engine) Forget(boardID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.tracks {
		if key.board == boardID {
			delete(e.tracks, key)
		}
	}
}

// Active returns copies of the firing alerts and of those resolved within
// the last day, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*Alert
	for _, t := range e.tracks {
		if t.firing != nil {
			cp := *t.firing
			out = append(out, &cp)
		}
	}
	since := e.now().Add(-resolvedShown)
	for _, a := range e.resolved {
		if a.ResolvedAt.After(since) {
			cp := *a
			out = append(out, &cp)
		}
	}

	slices.SortFunc(out, func(a, b *Alert) int {
		if c := b.FiredAt.Compare(a.FiredAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if out == nil {
		out = []*Alert{}
	}
	return out
}

func describe(r types.Record) string {
	if r.Program == "" {
		return r.University
	}
	return r.University + " / " + r.Program
}
