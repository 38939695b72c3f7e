package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/gradtrack/gradtrack/pkg/types"
	"github.com/gradtrack/gradtrack/tracker/internal/compute"
)

// ErrLocked is returned by Open when another process holds the database.
var ErrLocked = errors.New("history: database is locked by another process")

// ErrClosed is returned by every operation on a Store after Close.
var ErrClosed = errors.New("history: store is closed")

const schema = `
CREATE TABLE IF NOT EXISTS passes (
	id           TEXT PRIMARY KEY,
	board_id     TEXT NOT NULL,
	generated_at INTEGER NOT NULL,
	today        TEXT NOT NULL,
	total        INTEGER NOT NULL,
	admits       INTEGER NOT NULL,
	awaiting     INTEGER NOT NULL,
	rejected     INTEGER NOT NULL,
	unfolding    INTEGER NOT NULL,
	overdue      INTEGER NOT NULL,
	skipped      INTEGER NOT NULL,
	error        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS passes_board_time ON passes (board_id, generated_at DESC);
`

var columns = []string{
	"id", "board_id", "generated_at", "today",
	"total", "admits", "awaiting", "rejected", "unfolding", "overdue", "skipped", "error",
}

// Entry is one stored pass summary.
type Entry struct {
	ID          string     `json:"id"`
	BoardID     string     `json:"board_id"`
	GeneratedAt time.Time  `json:"generated_at"`
	Today       types.Date `json:"today"`
	Total       int        `json:"total"`
	Admits      int        `json:"admits"`
	Awaiting    int        `json:"awaiting"`
	Rejected    int        `json:"rejected"`
	Unfolding   int        `json:"unfolding"`
	Overdue     int        `json:"overdue"`
	Skipped     int        `json:"skipped"`
	Err         string     `json:"error,omitempty"`
}

// Store is a SQLite-backed pass history.
type Store struct {
	db     *sql.DB
	lock   *flock.Flock
	closed atomic.Bool
}

// Open opens (creating if needed) the database at path and takes its lock.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create dir: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("history: lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	// modernc sqlite DSN: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("history: open: %w", err)
	}
	db.SetMaxOpenConns(1) // one writer

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{db: db, lock: lock}, nil
}

// Close closes the database and releases the lock. Closing twice is a
// no-op.
func (s *Store) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.db.Close()
	if uerr := s.lock.Unlock(); err == nil && uerr != nil {
		err = fmt.Errorf("history: unlock: %w", uerr)
	}
	return err
}

// Record stores the summary of p. Recording the same pass twice is a no-op.
func (s *Store) Record(ctx context.Context, p *compute.Pass) error {
	if s.closed.Load() {
		return ErrClosed
	}
	query, args, err := sq.Insert("passes").
		Options("OR IGNORE").
		Columns(columns...).
		Values(
			p.ID, p.BoardID, p.GeneratedAt.UnixMilli(), p.Today.String(),
			p.Summary.Total, p.Summary.Admits, p.Summary.Awaiting, p.Summary.Rejected,
			p.Summary.Unfolding, len(p.Summary.Overdue), p.Skipped, p.Err,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("history: build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("history: insert pass %s: %w", p.ID, err)
	}
	return nil
}

// List returns up to limit entries for boardID, newest first. A limit of
// zero or less returns every entry.
func (s *Store) List(ctx context.Context, boardID string, limit int) ([]Entry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	b := sq.Select(columns...).
		From("passes").
		Where(sq.Eq{"board_id": boardID}).
		OrderBy("generated_at DESC", "id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("history: build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var (
			e     Entry
			ms    int64
			today string
		)
		if err := rows.Scan(&e.ID, &e.BoardID, &ms, &today,
			&e.Total, &e.Admits, &e.Awaiting, &e.Rejected, &e.Unfolding, &e.Overdue, &e.Skipped, &e.Err); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.GeneratedAt = time.UnixMilli(ms).UTC()
		if d := types.ParseDate(today); d != nil {
			e.Today = *d
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return out, nil
}

// Prune deletes entries generated before the cutoff and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	query, args, err := sq.Delete("passes").
		Where(sq.Lt{"generated_at": before.UnixMilli()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("history: build delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}

// RunPruner deletes entries older than retention once per interval until
// ctx is cancelled.
func (s *Store) RunPruner(ctx context.Context, retention, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := s.Prune(ctx, now.Add(-retention))
			if err != nil {
				slog.Warn("history: prune failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Debug("history: pruned passes", "count", n)
			}
		}
	}
}
