// Package api implements the tracker's HTTP surface.
//
// New(Deps) returns an http.Handler that serves:
//
//	GET /api/v1/health          totals across every live board
//	GET /api/v1/boards          summaries of all live boards ([]BoardSummary)
//	GET /api/v1/boards/{id}     one board with records; ?sort=<column>&order=asc|desc
//	GET /api/v1/alerts          firing and recently resolved alerts
//	GET /api/v1/history/{id}    stored pass summaries; ?limit=N (503 when disabled)
//	GET /api/v1/snapshot        every live board plus generated_at
//	GET /metrics                Prometheus text exposition
//	GET /                       HTML dashboard (single board, or an index)
//	GET /boards/{id}            HTML dashboard for one board
//
// All JSON endpoints respond with Content-Type: application/json and return
// 405 for non-GET methods. Stale boards (older than the store TTL) are
// treated as unknown. JSON types are defined in types.go.
package api
