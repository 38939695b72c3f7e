// Package source fetches the raw application table of a board. Each source
// returns []types.Row keyed by canonical column name; parsing dates and
// classifying rows is left to the compute package.
//
// Implemented sources: Google Sheets CSV export and plain CSV (csv.go), the
// first <table> of an HTML page (html.go) and literal rows from the config
// (inline.go). Factory: New(config.Board) returns the correct Source.
//
// Authentication (API key, bearer token, basic) is handled by the shared
// authRoundTripper in base.go, and every HTTP fetch waits on a per-host rate
// limiter so short refresh intervals never hammer the remote.
package source
