package api

import (
	"github.com/gradtrack/gradtrack/pkg/types"
	"github.com/gradtrack/gradtrack/tracker/internal/compute"
	"github.com/gradtrack/gradtrack/tracker/internal/history"
	"github.com/gradtrack/gradtrack/tracker/internal/milestone"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// RealityCheck is "on track", "overdue present", or "unknown" when no
	// board is live.
	RealityCheck string               `json:"reality_check"`
	BoardCount   int                  `json:"board_count"`
	FailedBoards int                  `json:"failed_boards"`
	RecordCount  int                  `json:"record_count"`
	ByHealth     map[types.Health]int `json:"by_health"`
	Admits       int                  `json:"admits"`
	Awaiting     int                  `json:"awaiting"`
	Rejected     int                  `json:"rejected"`
	Unfolding    int                  `json:"unfolding"`
	OverdueCount int                  `json:"overdue_count"`
	AlertCount   int                  `json:"alert_count"`
}

// BoardSummary is one entry in GET /api/v1/boards.
type BoardSummary struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	PassID      string          `json:"pass_id"`
	GeneratedAt string          `json:"generated_at"` // RFC3339
	Today       types.Date      `json:"today"`
	Summary     compute.Summary `json:"summary"`
	Skipped     int             `json:"skipped"`
	Error       string          `json:"error,omitempty"`
}

// BoardResponse is the payload for GET /api/v1/boards/{id}.
type BoardResponse struct {
	BoardSummary
	Banner      string            `json:"banner,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	Caption     string            `json:"caption,omitempty"`
	Milestone   *milestone.Status `json:"milestone,omitempty"`
	Diagnostics []DiagnosticHint  `json:"diagnostics"`
	Sort        string            `json:"sort"`
	Order       string            `json:"order"`
	Records     []types.Record    `json:"records"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket message.
type SnapshotResponse struct {
	Boards      []BoardResponse `json:"boards"`
	GeneratedAt string          `json:"generated_at"` // RFC3339
}

// HistoryResponse is the payload for GET /api/v1/history/{id}.
type HistoryResponse struct {
	BoardID string          `json:"board_id"`
	Entries []history.Entry `json:"entries"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
