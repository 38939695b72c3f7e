package alerts

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gradtrack/gradtrack/pkg/types"
	"github.com/gradtrack/gradtrack/tracker/internal/compute"
	"github.com/gradtrack/gradtrack/tracker/internal/config"
)

var (
	today = types.NewDate(2026, time.January, 15)
	base  = time.Date(2026, time.January, 15, 9, 0, 0, 0, time.UTC)
)

func day(n int) *types.Date {
	d := today.AddDays(n)
	return &d
}

func record(app types.Application) types.Record {
	return compute.NewEngine(compute.CanonicalChain(), 15, nil).Enrich(app, today)
}

func passOf(board string, apps ...types.Application) *compute.Pass {
	p := &compute.Pass{ID: "p", BoardID: board, Today: today}
	for _, a := range apps {
		p.Records = append(p.Records, record(a))
	}
	return p
}

// newTestEngine returns an engine with a controllable clock and a recorder
// in place of asynchronous webhook delivery.
func newTestEngine(rules ...config.AlertRule) (*Engine, *time.Time, *[]Alert) {
	e := New(config.AlertsConfig{Rules: rules})
	now := base
	e.now = func() time.Time { return now }
	var sent []Alert
	e.deliverF = func(a *Alert) { sent = append(sent, *a) }
	return e, &now, &sent
}

func TestEvalCondition(t *testing.T) {
	urgent := record(types.Application{University: "MIT", Status: "Admit", EnrollmentDeadline: day(5), AppliedOn: day(-40)})
	blank := record(types.Application{University: "Oxford", Status: "Awaiting Decision"})

	tests := []struct {
		cond  string
		rec   types.Record
		fires bool
		value float64
	}{
		{"days_until_enrollment <= 7", urgent, true, 5},
		{"days_until_enrollment < 5", urgent, false, 5},
		{"days_since_applied > 30", urgent, true, 40},
		{"days_since_applied != 40", urgent, false, 40},
		{"health == action_required", urgent, true, 0},
		{"health == Action Required", urgent, false, 0}, // four fields
		{"health == ActionRequired", urgent, true, 0},
		{"health != admit_secured", urgent, true, 0},
		{"health == nonsense", urgent, false, 0},
		{"status == admit", urgent, true, 0},
		{"status == awaiting_decision", blank, true, 0},
		{"status != ADMIT", blank, true, 0},
		{"status > admit", blank, false, 0},
		{"days_until_enrollment <= 7", blank, false, 0}, // absent date never fires
		{"days_until_decision < 0", blank, false, 0},
		{"gpa > 3", urgent, false, 0},
		{"days_since_applied > lots", urgent, false, 0},
		{"broken", urgent, false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.cond, func(t *testing.T) {
			fires, v := evalCondition(tc.cond, tc.rec)
			if fires != tc.fires || (fires && v != tc.value) {
				t.Errorf("evalCondition = (%v, %v), want (%v, %v)", fires, v, tc.fires, tc.value)
			}
		})
	}
}

func TestEvaluate_FireCooldownResolve(t *testing.T) {
	rule := config.AlertRule{Name: "enroll-soon", Condition: "days_until_enrollment <= 7", Severity: "critical", Cooldown: time.Hour}
	e, now, sent := newTestEngine(rule)

	urgent := types.Application{University: "MIT", Program: "EECS", Status: "Admit", EnrollmentDeadline: day(5)}
	calm := types.Application{University: "CMU", Status: "Admit", EnrollmentDeadline: day(50)}

	e.Evaluate(passOf("grad", urgent, calm))
	active := e.Active()
	if len(active) != 1 {
		t.Fatalf("Active = %d, want 1", len(active))
	}
	a := active[0]
	if a.University != "MIT" || a.Program != "EECS" || a.State != "firing" || a.Severity != "critical" || a.Value != 5 {
		t.Errorf("alert = %+v", a)
	}
	if a.ID == "" || !strings.Contains(a.Message, "MIT / EECS") {
		t.Errorf("alert ID/message = %q / %q", a.ID, a.Message)
	}
	if len(*sent) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(*sent))
	}

	// Within cooldown: no second delivery.
	*now = base.Add(30 * time.Minute)
	e.Evaluate(passOf("grad", urgent, calm))
	if len(*sent) != 1 {
		t.Errorf("deliveries within cooldown = %d, want 1", len(*sent))
	}

	// The record drops off the board: resolved.
	*now = base.Add(45 * time.Minute)
	e.Evaluate(passOf("grad", calm))
	if len(*sent) != 2 || (*sent)[1].State != "resolved" {
		t.Fatalf("expected a resolve delivery, got %+v", *sent)
	}
	active = e.Active()
	if len(active) != 1 || active[0].State != "resolved" || active[0].ResolvedAt == nil {
		t.Errorf("Active after resolve = %+v", active)
	}

	// Resolved alerts age out of Active.
	*now = base.Add(48 * time.Hour)
	if got := e.Active(); len(got) != 0 {
		t.Errorf("Active after a day = %d, want 0", len(got))
	}
}

func TestEvaluate_RefiresAfterCooldown(t *testing.T) {
	e, now, sent := newTestEngine(config.AlertRule{Name: "overdue", Condition: "days_until_decision < 0", Cooldown: time.Hour})
	overdue := types.Application{University: "Toronto", Status: "Under Review", DecisionBy: day(-30)}

	e.Evaluate(passOf("grad", overdue))
	*now = base.Add(2 * time.Hour)
	e.Evaluate(passOf("grad", overdue))

	if len(*sent) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(*sent))
	}
	if (*sent)[0].Severity != "warning" {
		t.Errorf("default severity = %q", (*sent)[0].Severity)
	}
	if len(e.Active()) != 1 {
		t.Errorf("Active = %d, want 1 (re-fire replaces)", len(e.Active()))
	}
}

func TestEvaluate_BoardsFilterAndKeys(t *testing.T) {
	e, _, sent := newTestEngine(config.AlertRule{Name: "rej", Condition: "health == rejected", Boards: []string{"grad"}})
	rej := types.Application{University: "CMU", Status: "Rejected"}

	e.Evaluate(passOf("other", rej))
	if len(*sent) != 0 {
		t.Errorf("rule limited to grad fired on other board")
	}

	e.Evaluate(passOf("grad", rej, types.Application{University: "cmu ", Status: "rejected"}))
	// Same university/program after normalization shares one key.
	if len(*sent) != 1 {
		t.Errorf("deliveries = %d, want 1", len(*sent))
	}
}

func TestEvaluate_ResolvesOnlyOwnBoardAndRule(t *testing.T) {
	e, _, sent := newTestEngine(
		config.AlertRule{Name: "rej", Condition: "health == rejected"},
		config.AlertRule{Name: "rej:a", Condition: "health == rejected"},
	)
	rej := types.Application{University: "CMU", Status: "Rejected"}

	e.Evaluate(passOf("a:b", rej))
	e.Evaluate(passOf("b", rej))
	if len(*sent) != 4 {
		t.Fatalf("deliveries = %d, want 4", len(*sent))
	}

	// Board "a" shares a prefix with "a:b" but owns none of its alerts.
	e.Evaluate(passOf("a"))
	if len(*sent) != 4 {
		t.Errorf("empty pass on board a delivered %+v", (*sent)[4:])
	}
	firing := 0
	for _, a := range e.Active() {
		if a.State == StateFiring {
			firing++
		}
	}
	if firing != 4 {
		t.Errorf("firing = %d, want 4", firing)
	}
}

func TestEvaluate_FailedPassIgnored(t *testing.T) {
	e, _, sent := newTestEngine(config.AlertRule{Name: "rej", Condition: "health == rejected"})
	e.Evaluate(passOf("grad", types.Application{University: "CMU", Status: "Rejected"}))

	e.Evaluate(&compute.Pass{BoardID: "grad", Err: "connection refused"})
	if len(*sent) != 1 || len(e.Active()) != 1 || e.Active()[0].State != "firing" {
		t.Errorf("failed pass changed alert state: sent=%+v active=%+v", *sent, e.Active())
	}
}

func TestEvaluate_NoRules(t *testing.T) {
	e, _, sent := newTestEngine()
	e.Evaluate(passOf("grad", types.Application{University: "CMU", Status: "Rejected"}))
	if len(*sent) != 0 || len(e.Active()) != 0 {
		t.Error("engine without rules should be a no-op")
	}
}

func TestForget(t *testing.T) {
	e, _, _ := newTestEngine(config.AlertRule{Name: "rej", Condition: "health == rejected"})
	e.Evaluate(passOf("grad", types.Application{University: "CMU", Status: "Rejected"}))
	e.Forget("grad")
	if len(e.Active()) != 0 {
		t.Errorf("Active after Forget = %d", len(e.Active()))
	}
}

func TestDeliver_Webhooks(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies = map[string]map[string]any{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(b, &m)
		mu.Lock()
		bodies[r.URL.Path] = m
		mu.Unlock()
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	t.Setenv("TEST_SLACK", srv.URL+"/slack")
	t.Setenv("TEST_TEAMS", srv.URL+"/teams")
	t.Setenv("TEST_HTTP", srv.URL+"/http")
	t.Setenv("TEST_BROKEN", srv.URL+"/broken")

	e := New(config.AlertsConfig{Webhooks: []config.WebhookConfig{
		{Type: "slack", URLEnv: "TEST_SLACK"},
		{Type: "teams", URLEnv: "TEST_TEAMS"},
		{Type: "http", URLEnv: "TEST_HTTP"},
		{Type: "http", URLEnv: "TEST_BROKEN"},
		{Type: "http", URLEnv: "TEST_UNSET"},
	}})
	e.deliver(&Alert{RuleName: "enroll-soon", Severity: "critical", Message: "MIT enrolls in 5 days", State: "firing"})

	mu.Lock()
	defer mu.Unlock()
	if text, _ := bodies["/slack"]["text"].(string); !strings.HasPrefix(text, "*[CRITICAL]*") {
		t.Errorf("slack text = %q", text)
	}
	if typ, _ := bodies["/teams"]["@type"].(string); typ != "MessageCard" {
		t.Errorf("teams @type = %q", typ)
	}
	alert, _ := bodies["/http"]["alert"].(map[string]any)
	if alert["rule_name"] != "enroll-soon" {
		t.Errorf("http payload = %+v", bodies["/http"])
	}
	if _, ok := bodies["/broken"]; !ok {
		t.Error("broken target should still be attempted")
	}
}
