// Package refresh runs render passes for every configured board.
//
// A Refresher holds one pipeline per board: the board definition, its row
// source and its compute engine. RefreshAll fetches every board
// concurrently (bounded by a small limit), turns the rows into a pass and
// hands it to the Publisher. A fetch error never stops the loop; it becomes
// a failed pass so the dashboard shows the problem instead of stale data.
//
// Run refreshes once immediately, then on every tick of the refresh
// interval. Reload swaps the pipeline set atomically after a config
// hot-reload and reports which boards disappeared.
package refresh
