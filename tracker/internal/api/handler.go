package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gradtrack/gradtrack/pkg/types"
	"github.com/gradtrack/gradtrack/tracker/internal/alerts"
	"github.com/gradtrack/gradtrack/tracker/internal/compute"
	"github.com/gradtrack/gradtrack/tracker/internal/config"
	"github.com/gradtrack/gradtrack/tracker/internal/history"
	"github.com/gradtrack/gradtrack/tracker/internal/milestone"
	"github.com/gradtrack/gradtrack/tracker/internal/store"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// Deps are the collaborators the handler reads from. Only Store is required.
type Deps struct {
	Store *store.Store

	// Alerts, when set, backs /api/v1/alerts.
	Alerts *alerts.Engine

	// History, when set, backs /api/v1/history/{id}.
	History *history.Store

	// Boards returns the current board definitions; it is called per request
	// so hot-reloaded titles and banners show up immediately.
	Boards func() []config.Board

	// Location returns the zone page timestamps are shown in. It is called
	// per request so a reloaded timezone applies at once. Nil, or a nil
	// result, means UTC.
	Location func() *time.Location

	// Now is injectable for deterministic tests.
	Now func() time.Time
}

// Handler serves the REST API, the metrics endpoint and the HTML dashboard.
type Handler struct {
	deps Deps
	mux  *http.ServeMux
}

// New creates a Handler wired to d and registers all routes.
func New(d Deps) *Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Boards == nil {
		d.Boards = func() []config.Board { return nil }
	}
	h := &Handler{deps: d, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/boards", h.listBoards)
	h.mux.HandleFunc("/api/v1/boards/", h.getBoard) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/api/v1/history/", h.history)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/metrics", h.metrics)
	h.mux.HandleFunc("/boards/", h.boardPage)
	h.mux.HandleFunc("/", h.indexPage)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: totals across all live boards.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.deps.Store.List()
	resp := HealthResponse{
		BoardCount: len(entries),
		ByHealth:   make(map[types.Health]int, len(types.Healths)),
	}
	for _, hl := range types.Healths {
		resp.ByHealth[hl] = 0
	}
	if h.deps.Alerts != nil {
		for _, a := range h.deps.Alerts.Active() {
			if a.State == alerts.StateFiring {
				resp.AlertCount++
			}
		}
	}

	if len(entries) == 0 {
		resp.RealityCheck = "unknown"
		jsonResp(w, http.StatusOK, resp)
		return
	}

	for _, e := range entries {
		p := e.Pass
		if p.Err != "" {
			resp.FailedBoards++
		}
		s := p.Summary
		resp.RecordCount += s.Total
		resp.Admits += s.Admits
		resp.Awaiting += s.Awaiting
		resp.Rejected += s.Rejected
		resp.Unfolding += s.Unfolding
		resp.OverdueCount += len(s.Overdue)
		for hl, n := range s.ByHealth {
			resp.ByHealth[hl] += n
		}
	}
	resp.RealityCheck = compute.RealityOnTrack
	if resp.OverdueCount > 0 {
		resp.RealityCheck = compute.RealityOverduePresent
	}
	jsonResp(w, http.StatusOK, resp)
}

// listBoards returns GET /api/v1/boards: summaries of all live boards.
func (h *Handler) listBoards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	boards := h.boardIndex()
	entries := h.deps.Store.List()
	out := make([]BoardSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, toBoardSummary(e.Pass, boards[e.Pass.BoardID]))
	}
	jsonResp(w, http.StatusOK, out)
}

// getBoard returns GET /api/v1/boards/{id}: one live board with its records.
func (h *Handler) getBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/boards/")
	if id == "" {
		h.listBoards(w, r)
		return
	}

	column, desc, err := sortParams(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	e, ok := h.deps.Store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "board not found")
		return
	}
	jsonResp(w, http.StatusOK, h.toBoardResponse(e.Pass, h.boardIndex()[id], column, desc))
}

// alerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.deps.Alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.deps.Alerts.Active())
}

// history returns GET /api/v1/history/{id}: stored pass summaries, newest first.
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.deps.History == nil {
		jsonErr(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/history/")
	if id == "" {
		jsonErr(w, http.StatusNotFound, "board not found")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.deps.History.List(r.Context(), id, limit)
	if err != nil {
		slog.Error("api: history query failed", "board", id, "err", err)
		jsonErr(w, http.StatusInternalServerError, "history query failed")
		return
	}
	jsonResp(w, http.StatusOK, HistoryResponse{BoardID: id, Entries: entries})
}

// snapshot returns GET /api/v1/snapshot: full JSON dump of all live boards.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.Snapshot())
}

// Snapshot builds the payload of GET /api/v1/snapshot. Each board's records
// are in the default order.
func (h *Handler) Snapshot() SnapshotResponse {
	boards := h.boardIndex()
	entries := h.deps.Store.List()
	out := make([]BoardResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, h.toBoardResponse(e.Pass, boards[e.Pass.BoardID], "", false))
	}
	return SnapshotResponse{
		Boards:      out,
		GeneratedAt: h.deps.Now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func (h *Handler) location() *time.Location {
	if h.deps.Location == nil {
		return time.UTC
	}
	if loc := h.deps.Location(); loc != nil {
		return loc
	}
	return time.UTC
}

// boardIndex returns the current board definitions keyed by ID.
func (h *Handler) boardIndex() map[string]config.Board {
	bs := h.deps.Boards()
	m := make(map[string]config.Board, len(bs))
	for _, b := range bs {
		m[b.ID] = b
	}
	return m
}

// sortParams reads ?sort= and ?order= from r.
func sortParams(r *http.Request) (string, bool, error) {
	q := r.URL.Query()
	column := q.Get("sort")
	if column != "" && !compute.ValidSortColumn(column) {
		return "", false, fmt.Errorf("unknown sort column %q", column)
	}
	switch q.Get("order") {
	case "", "asc":
		return column, false, nil
	case "desc":
		return column, true, nil
	default:
		return "", false, errors.New("order must be asc or desc")
	}
}

// toBoardSummary maps a pass to its list representation.
func toBoardSummary(p *compute.Pass, b config.Board) BoardSummary {
	title := b.Title
	if title == "" {
		title = p.BoardID
	}
	return BoardSummary{
		ID:          p.BoardID,
		Title:       title,
		PassID:      p.ID,
		GeneratedAt: p.GeneratedAt.UTC().Format(time.RFC3339),
		Today:       p.Today,
		Summary:     p.Summary,
		Skipped:     p.Skipped,
		Error:       p.Err,
	}
}

// toBoardResponse maps a pass to its detailed representation. The stored
// pass is never reordered; sorting works on a copy.
func (h *Handler) toBoardResponse(p *compute.Pass, b config.Board, column string, desc bool) BoardResponse {
	records := make([]types.Record, len(p.Records))
	copy(records, p.Records)
	compute.SortRecords(records, column, desc)

	order := "asc"
	if desc {
		order = "desc"
	}
	resp := BoardResponse{
		BoardSummary: toBoardSummary(p, b),
		Banner:       b.Banner,
		Notes:        b.Notes,
		Caption:      b.Caption,
		Diagnostics:  computeDiagnostics(p, b),
		Sort:         column,
		Order:        order,
		Records:      records,
	}
	if b.Milestone != nil {
		s, err := milestone.Evaluate(*b.Milestone, p.Today)
		if err != nil {
			slog.Warn("api: milestone", "board", p.BoardID, "err", err)
		} else {
			resp.Milestone = &s
		}
	}
	return resp
}
