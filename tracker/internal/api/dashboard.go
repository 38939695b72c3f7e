package api

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gradtrack/gradtrack/pkg/types"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"date": func(d *types.Date) string {
		if d == nil {
			return ""
		}
		return d.String()
	},
	"days": func(n *int) string {
		if n == nil {
			return ""
		}
		return strconv.Itoa(*n)
	},
	"decimal": func(f *float64) string {
		if f == nil {
			return ""
		}
		return strconv.FormatFloat(*f, 'f', 1, 64)
	},
	"healthTitle": func(h types.Health) string { return h.Title() },
}).ParseFS(templateFS, "templates/*.html"))

// header is one sortable table header.
type header struct {
	Label  string
	Href   string
	Active bool
	Desc   bool
}

var tableColumns = []struct{ key, label string }{
	{"university", "University"},
	{"program", "Program"},
	{"campus", "Campus"},
	{"applied_on", "Applied On"},
	{"status", "Status"},
	{"interview", "Interview"},
	{"decision_by", "Decision By"},
	{"admit_received_on", "Admit Received On"},
	{"enrollment_deadline", "Enrollment Deadline"},
	{"days_since_applied", "Days Since Applied"},
	{"days_until_decision", "Days Until Decision"},
	{"days_until_enrollment", "Days Until Enrollment"},
	{"decision_turnaround_days", "Turnaround (days)"},
	{"health", "Health"},
}

type boardView struct {
	BoardResponse
	Columns []header
	Others  []BoardSummary
}

type indexView struct {
	Boards      []BoardSummary
	GeneratedAt string
}

// indexPage serves GET /. With exactly one live board it renders that board;
// otherwise it lists the boards.
func (h *Handler) indexPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries := h.deps.Store.List()
	if len(entries) == 1 {
		h.renderBoard(w, r, entries[0].Pass.BoardID)
		return
	}

	boards := h.boardIndex()
	view := indexView{GeneratedAt: h.deps.Now().In(h.location()).Format("2006-01-02 15:04")}
	for _, e := range entries {
		view.Boards = append(view.Boards, toBoardSummary(e.Pass, boards[e.Pass.BoardID]))
	}
	render(w, http.StatusOK, "index", view)
}

// boardPage serves GET /boards/{id}.
func (h *Handler) boardPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/boards/")
	if id == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	h.renderBoard(w, r, id)
}

func (h *Handler) renderBoard(w http.ResponseWriter, r *http.Request, id string) {
	column, desc, err := sortParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e, ok := h.deps.Store.Get(id)
	if !ok {
		render(w, http.StatusNotFound, "missing", id)
		return
	}

	boards := h.boardIndex()
	view := boardView{BoardResponse: h.toBoardResponse(e.Pass, boards[id], column, desc)}
	for _, c := range tableColumns {
		// Clicking the active column flips its order; any other starts ascending.
		next := "asc"
		active := c.key == column
		if active && !desc {
			next = "desc"
		}
		q := url.Values{"sort": {c.key}, "order": {next}}
		view.Columns = append(view.Columns, header{
			Label:  c.label,
			Href:   "?" + q.Encode(),
			Active: active,
			Desc:   active && desc,
		})
	}
	for _, o := range h.deps.Store.List() {
		if o.Pass.BoardID != id {
			view.Others = append(view.Others, toBoardSummary(o.Pass, boards[o.Pass.BoardID]))
		}
	}
	render(w, http.StatusOK, "board", view)
}

func render(w http.ResponseWriter, code int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("api: render page", "page", name, "err", err)
	}
}
