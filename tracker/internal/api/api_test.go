package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"

	"github.com/gradtrack/gradtrack/pkg/types"
	"github.com/gradtrack/gradtrack/tracker/internal/alerts"
	"github.com/gradtrack/gradtrack/tracker/internal/api"
	"github.com/gradtrack/gradtrack/tracker/internal/compute"
	"github.com/gradtrack/gradtrack/tracker/internal/config"
	"github.com/gradtrack/gradtrack/tracker/internal/history"
	"github.com/gradtrack/gradtrack/tracker/internal/store"
)

var fixedNow = time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)

// --- helpers ----------------------------------------------------------------

func gradRows() []types.Row {
	return []types.Row{
		{types.ColUniversity: "Toronto", types.ColProgram: "MScAC", types.ColStatus: "Under Review", types.ColDecisionBy: "2025-12-16"},
		{types.ColUniversity: "Stanford", types.ColStatus: "Admit", types.ColAppliedOn: "2025-12-01", types.ColAdmitReceivedOn: "2025-12-20"},
		{types.ColUniversity: "Berkeley", types.ColStatus: "Admit", types.ColEnrollmentDeadline: "2026-01-25"},
		{types.ColUniversity: "CMU", types.ColStatus: "Rejected"},
		{types.ColUniversity: "", types.ColStatus: "Admit"},
	}
}

func pass(boardID string, rows []types.Row) *compute.Pass {
	return compute.NewEngine(compute.CanonicalChain(), compute.DefaultUrgencyThresholdDays, time.UTC).Process(boardID, rows, fixedNow)
}

func newStore(passes ...*compute.Pass) *store.Store {
	st := store.New(5 * time.Minute)
	for _, p := range passes {
		st.Put(p)
	}
	return st
}

func boards(bs ...config.Board) func() []config.Board {
	return func() []config.Board { return bs }
}

func newHandler(st *store.Store, bs ...config.Board) *api.Handler {
	return api.New(api.Deps{
		Store:  st,
		Boards: boards(bs...),
		Now:    func() time.Time { return fixedNow },
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_EmptyStore(t *testing.T) {
	rr := get(t, newHandler(newStore()), "/api/v1/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.RealityCheck != "unknown" {
		t.Errorf("reality_check: got %q, want unknown", resp.RealityCheck)
	}
	if resp.BoardCount != 0 || resp.RecordCount != 0 {
		t.Errorf("counts: got %+v", resp)
	}
	if n, ok := resp.ByHealth[types.HealthRejected]; !ok || n != 0 {
		t.Errorf("by_health should list every label with 0, got %v", resp.ByHealth)
	}
}

func TestHealth_TotalsAcrossBoards(t *testing.T) {
	failed := compute.NewEngine(compute.CanonicalChain(), 15, time.UTC).Failed("broken", errors.New("403"), fixedNow)
	st := newStore(pass("grad", gradRows()), failed)

	rr := get(t, newHandler(st), "/api/v1/health")
	var resp api.HealthResponse
	decode(t, rr, &resp)

	if resp.BoardCount != 2 {
		t.Errorf("board_count: got %d, want 2", resp.BoardCount)
	}
	if resp.FailedBoards != 1 {
		t.Errorf("failed_boards: got %d, want 1", resp.FailedBoards)
	}
	if resp.RecordCount != 4 {
		t.Errorf("record_count: got %d, want 4", resp.RecordCount)
	}
	if resp.Admits != 2 || resp.Rejected != 1 || resp.Awaiting != 1 {
		t.Errorf("counters: got admits=%d rejected=%d awaiting=%d", resp.Admits, resp.Rejected, resp.Awaiting)
	}
	if resp.OverdueCount != 1 || resp.RealityCheck != compute.RealityOverduePresent {
		t.Errorf("overdue: got %d / %q", resp.OverdueCount, resp.RealityCheck)
	}
	if resp.ByHealth[types.HealthActionRequired] != 1 {
		t.Errorf("by_health[action_required]: got %d, want 1", resp.ByHealth[types.HealthActionRequired])
	}
}

func TestHealth_AlertCount(t *testing.T) {
	p := pass("grad", gradRows())
	eng := alerts.New(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "enroll-soon", Condition: "health == action_required", Severity: "critical"},
	}})
	eng.Evaluate(p)

	h := api.New(api.Deps{Store: newStore(p), Alerts: eng})
	var resp api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &resp)
	if resp.AlertCount != 1 {
		t.Errorf("alert_count: got %d, want 1", resp.AlertCount)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHandler(newStore(pass("grad", gradRows())))
	for _, path := range []string{
		"/api/v1/health", "/api/v1/boards", "/api/v1/boards/grad",
		"/api/v1/alerts", "/api/v1/history/grad", "/api/v1/snapshot", "/metrics",
	} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, nil)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != http.StatusMethodNotAllowed {
				t.Errorf("POST %s: got %d, want 405", path, rr.Code)
			}
		})
	}
}

// --- /api/v1/boards ---------------------------------------------------------

func TestListBoards(t *testing.T) {
	st := newStore(pass("zeta", gradRows()[:1]), pass("grad", gradRows()))
	h := newHandler(st, config.Board{ID: "grad", Title: "Graduate Application Tracker"})

	rr := get(t, h, "/api/v1/boards")
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type: got %q", ct)
	}
	var out []api.BoardSummary
	decode(t, rr, &out)

	if len(out) != 2 {
		t.Fatalf("boards: got %d, want 2", len(out))
	}
	if out[0].ID != "grad" || out[1].ID != "zeta" {
		t.Errorf("order: got %s, %s", out[0].ID, out[1].ID)
	}
	if out[0].Title != "Graduate Application Tracker" {
		t.Errorf("title: got %q", out[0].Title)
	}
	if out[1].Title != "zeta" {
		t.Errorf("title without config should fall back to the id, got %q", out[1].Title)
	}
	if out[0].Skipped != 1 {
		t.Errorf("skipped: got %d, want 1", out[0].Skipped)
	}
	if out[0].Today != types.NewDate(2026, time.January, 15) {
		t.Errorf("today: got %v", out[0].Today)
	}
}

func TestGetBoard(t *testing.T) {
	b := config.Board{
		ID:     "grad",
		Title:  "Graduate Application Tracker",
		Banner: "Fall 2026 cycle",
		Milestone: &config.Milestone{
			Title: "Visa appointments",
			Start: "2026-03-10",
			End:   "2026-03-30",
		},
	}
	h := newHandler(newStore(pass("grad", gradRows())), b)

	rr := get(t, h, "/api/v1/boards/grad")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.BoardResponse
	decode(t, rr, &resp)

	if resp.Banner != "Fall 2026 cycle" {
		t.Errorf("banner: got %q", resp.Banner)
	}
	if len(resp.Records) != 4 {
		t.Fatalf("records: got %d, want 4", len(resp.Records))
	}
	if resp.Records[0].University != "Berkeley" || resp.Records[0].Health != types.HealthActionRequired {
		t.Errorf("default order first: got %s/%s", resp.Records[0].University, resp.Records[0].Health)
	}
	if resp.Order != "asc" || resp.Sort != "" {
		t.Errorf("sort/order: got %q/%q", resp.Sort, resp.Order)
	}
	if resp.Milestone == nil || resp.Milestone.Days != 54 {
		t.Errorf("milestone: got %+v", resp.Milestone)
	}
}

func TestGetBoard_Sorted(t *testing.T) {
	h := newHandler(newStore(pass("grad", gradRows())))

	var resp api.BoardResponse
	decode(t, get(t, h, "/api/v1/boards/grad?sort=university&order=desc"), &resp)

	want := []string{"Toronto", "Stanford", "CMU", "Berkeley"}
	for i, w := range want {
		if resp.Records[i].University != w {
			t.Errorf("records[%d]: got %s, want %s", i, resp.Records[i].University, w)
		}
	}
	if resp.Order != "desc" || resp.Sort != "university" {
		t.Errorf("sort/order: got %q/%q", resp.Sort, resp.Order)
	}
}

func TestGetBoard_SortDoesNotReorderStore(t *testing.T) {
	st := newStore(pass("grad", gradRows()))
	h := newHandler(st)
	get(t, h, "/api/v1/boards/grad?sort=university")

	e, _ := st.Get("grad")
	if e.Pass.Records[0].University != "Berkeley" {
		t.Errorf("stored pass was reordered: first is %s", e.Pass.Records[0].University)
	}
}

func TestGetBoard_Errors(t *testing.T) {
	h := newHandler(newStore(pass("grad", gradRows())))
	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/boards/nope", http.StatusNotFound},
		{"/api/v1/boards/grad?sort=gpa", http.StatusBadRequest},
		{"/api/v1/boards/grad?order=sideways", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			rr := get(t, h, tc.path)
			if rr.Code != tc.want {
				t.Errorf("status: got %d, want %d", rr.Code, tc.want)
			}
			var body map[string]string
			decode(t, rr, &body)
			if body["error"] == "" {
				t.Error("error body missing")
			}
		})
	}
}

func TestGetBoard_EmptyIDListsBoards(t *testing.T) {
	h := newHandler(newStore(pass("grad", gradRows())))
	var out []api.BoardSummary
	decode(t, get(t, h, "/api/v1/boards/"), &out)
	if len(out) != 1 {
		t.Errorf("boards: got %d, want 1", len(out))
	}
}

// --- /api/v1/alerts ---------------------------------------------------------

func TestAlerts(t *testing.T) {
	t.Run("no engine", func(t *testing.T) {
		rr := get(t, newHandler(newStore()), "/api/v1/alerts")
		if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
			t.Errorf("body: got %s, want []", body)
		}
	})

	t.Run("firing", func(t *testing.T) {
		p := pass("grad", gradRows())
		eng := alerts.New(config.AlertsConfig{Rules: []config.AlertRule{
			{Name: "overdue", Condition: "days_until_decision < 0", Severity: "warning"},
		}})
		eng.Evaluate(p)

		h := api.New(api.Deps{Store: newStore(p), Alerts: eng})
		var out []alerts.Alert
		decode(t, get(t, h, "/api/v1/alerts"), &out)
		if len(out) != 1 {
			t.Fatalf("alerts: got %d, want 1", len(out))
		}
		if out[0].University != "Toronto" || out[0].State != "firing" {
			t.Errorf("alert: got %+v", out[0])
		}
	})
}

// --- /api/v1/history --------------------------------------------------------

func TestHistory_Disabled(t *testing.T) {
	rr := get(t, newHandler(newStore()), "/api/v1/history/grad")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rr.Code)
	}
}

func TestHistory(t *testing.T) {
	hs, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { hs.Close() })

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		p := compute.NewEngine(compute.CanonicalChain(), 15, time.UTC).
			Process("grad", gradRows(), fixedNow.Add(time.Duration(i)*time.Hour))
		if err := hs.Record(ctx, p); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	h := api.New(api.Deps{Store: newStore(), History: hs})

	var resp api.HistoryResponse
	decode(t, get(t, h, "/api/v1/history/grad?limit=2"), &resp)
	if resp.BoardID != "grad" {
		t.Errorf("board_id: got %q", resp.BoardID)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(resp.Entries))
	}
	if !resp.Entries[0].GeneratedAt.After(resp.Entries[1].GeneratedAt) {
		t.Error("entries should be newest first")
	}
	if resp.Entries[0].Admits != 2 || resp.Entries[0].Overdue != 1 {
		t.Errorf("entry: got %+v", resp.Entries[0])
	}

	for _, bad := range []string{"0", "-3", "many"} {
		if rr := get(t, h, "/api/v1/history/grad?limit="+bad); rr.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: got %d, want 400", bad, rr.Code)
		}
	}

	decode(t, get(t, h, "/api/v1/history/other"), &resp)
	if resp.Entries == nil || len(resp.Entries) != 0 {
		t.Errorf("unknown board should give an empty list, got %v", resp.Entries)
	}
}

// --- /api/v1/snapshot -------------------------------------------------------

func TestSnapshot(t *testing.T) {
	st := newStore(pass("grad", gradRows()), pass("other", gradRows()[3:4]))
	h := newHandler(st)

	var resp api.SnapshotResponse
	decode(t, get(t, h, "/api/v1/snapshot"), &resp)

	if len(resp.Boards) != 2 {
		t.Fatalf("boards: got %d, want 2", len(resp.Boards))
	}
	if resp.GeneratedAt != fixedNow.Format(time.RFC3339) {
		t.Errorf("generated_at: got %q", resp.GeneratedAt)
	}
	if len(resp.Boards[0].Records) != 4 || len(resp.Boards[1].Records) != 1 {
		t.Errorf("records: got %d and %d", len(resp.Boards[0].Records), len(resp.Boards[1].Records))
	}
}

// --- /metrics ---------------------------------------------------------------

func TestMetrics(t *testing.T) {
	failed := compute.NewEngine(compute.CanonicalChain(), 15, time.UTC).Failed("broken", errors.New("timeout"), fixedNow)
	h := newHandler(newStore(pass("grad", gradRows()), failed))

	rr := get(t, h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content-type: got %q", ct)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(rr.Body)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}

	value := func(name string, labels map[string]string) float64 {
		t.Helper()
		mf, ok := families[name]
		if !ok {
			t.Fatalf("family %s missing", name)
		}
	next:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue next
				}
			}
			return m.GetGauge().GetValue()
		}
		t.Fatalf("%s%v not found", name, labels)
		return 0
	}

	if v := value("gradtrack_applications", map[string]string{"board": "grad", "health": "action_required"}); v != 1 {
		t.Errorf("applications{action_required}: got %v, want 1", v)
	}
	if v := value("gradtrack_admits", map[string]string{"board": "grad"}); v != 2 {
		t.Errorf("admits: got %v, want 2", v)
	}
	if v := value("gradtrack_overdue_decisions", map[string]string{"board": "grad"}); v != 1 {
		t.Errorf("overdue: got %v, want 1", v)
	}
	if v := value("gradtrack_source_up", map[string]string{"board": "broken"}); v != 0 {
		t.Errorf("source_up{broken}: got %v, want 0", v)
	}
	if v := value("gradtrack_source_up", map[string]string{"board": "grad"}); v != 1 {
		t.Errorf("source_up{grad}: got %v, want 1", v)
	}
	if v := value("gradtrack_skipped_rows", map[string]string{"board": "grad"}); v != 1 {
		t.Errorf("skipped_rows: got %v, want 1", v)
	}
	if v := value("gradtrack_pass_timestamp_seconds", map[string]string{"board": "grad"}); v != float64(fixedNow.Unix()) {
		t.Errorf("pass_timestamp: got %v", v)
	}
}

func TestMetrics_EmptyStore(t *testing.T) {
	rr := get(t, newHandler(newStore()), "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if body, _ := io.ReadAll(rr.Body); len(body) != 0 {
		t.Errorf("body: got %q, want empty", body)
	}
}

// --- HTML dashboard ---------------------------------------------------------

func TestDashboard_SingleBoardAtRoot(t *testing.T) {
	b := config.Board{ID: "grad", Title: "Graduate Application Tracker", Notes: "Good luck!", Caption: "Built for the 2026 cycle"}
	h := newHandler(newStore(pass("grad", gradRows())), b)

	rr := get(t, h, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content-type: got %q", ct)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"Graduate Application Tracker",
		"Total Admits", "Awaiting Decisions", "Total Rejects", "Actively Unfolding",
		"Berkeley", "Stanford", "Toronto", "CMU",
		"Some decisions are taking longer than expected",
		"Average decision turnaround: 19.0 days",
		"Good luck!", "Built for the 2026 cycle",
		"1 rows without a university were skipped",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestDashboard_Index(t *testing.T) {
	h := newHandler(newStore(pass("grad", gradRows()), pass("phd", gradRows()[:2])),
		config.Board{ID: "phd", Title: "PhD Tracker"})

	body := get(t, h, "/").Body.String()
	for _, want := range []string{`href="/boards/grad"`, `href="/boards/phd"`, "PhD Tracker"} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
}

func TestDashboard_IndexFollowsReloadedLocation(t *testing.T) {
	loc := time.UTC
	h := api.New(api.Deps{
		Store:    newStore(pass("grad", gradRows()), pass("phd", gradRows()[:2])),
		Boards:   boards(),
		Now:      func() time.Time { return fixedNow },
		Location: func() *time.Location { return loc },
	})

	if body := get(t, h, "/").Body.String(); !strings.Contains(body, "Rendered 2026-01-15 12:00.") {
		t.Errorf("UTC index should render 12:00:\n%s", body)
	}

	loc = time.FixedZone("JST", 9*60*60)
	if body := get(t, h, "/").Body.String(); !strings.Contains(body, "Rendered 2026-01-15 21:00.") {
		t.Errorf("index after zone change should render 21:00:\n%s", body)
	}
}

func TestDashboard_BoardPage(t *testing.T) {
	h := newHandler(newStore(pass("grad", gradRows()), pass("phd", gradRows()[:2])))

	rr := get(t, h, "/boards/phd?sort=university")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Everything is on track") && !strings.Contains(body, "Some decisions") {
		t.Error("reality check section missing")
	}
	// The active column links to the opposite order.
	if !strings.Contains(body, "?order=desc&amp;sort=university") {
		t.Error("active column should link to descending order")
	}
	if !strings.Contains(body, `href="/boards/grad"`) {
		t.Error("other boards should be linked")
	}
}

func TestDashboard_Errors(t *testing.T) {
	h := newHandler(newStore(pass("grad", gradRows())))
	tests := []struct {
		path string
		want int
	}{
		{"/boards/nope", http.StatusNotFound},
		{"/boards/grad?sort=gpa", http.StatusBadRequest},
		{"/favicon.ico", http.StatusNotFound},
		{"/boards/", http.StatusFound},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			if rr := get(t, h, tc.path); rr.Code != tc.want {
				t.Errorf("status: got %d, want %d", rr.Code, tc.want)
			}
		})
	}
}
