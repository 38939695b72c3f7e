// Package history keeps an optional SQLite log of render-pass summaries so
// the dashboard can chart how a board evolved. Only aggregate counters are
// stored; per-record ages are always recomputed from the source.
//
// The database file is guarded by an advisory lock (path + ".lock") so two
// trackers never write the same history.
package history
