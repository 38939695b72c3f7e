package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gradtrack/gradtrack/tracker/internal/compute"
	"github.com/gradtrack/gradtrack/tracker/internal/config"
	"github.com/gradtrack/gradtrack/tracker/internal/source"
)

// maxConcurrentFetches bounds how many boards are fetched at once.
const maxConcurrentFetches = 4

// ErrUnknownBoard is returned by Refresh for a board that is not configured.
var ErrUnknownBoard = errors.New("refresh: unknown board")

// Publisher receives every finished pass. *receiver.Receiver implements it.
type Publisher interface {
	Accept(p *compute.Pass) error
}

type pipeline struct {
	board  config.Board
	src    source.Source
	engine *compute.Engine
}

// Refresher runs render passes for a set of boards. It is safe for
// concurrent use.
type Refresher struct {
	pub Publisher
	now func() time.Time // injectable for deterministic tests

	mu        sync.RWMutex
	pipelines []pipeline
	loc       *time.Location
}

// New creates a Refresher for boards. Boards whose source or rule chain
// cannot be built are logged and skipped.
func New(pub Publisher, boards []config.Board, loc *time.Location) *Refresher {
	r := &Refresher{pub: pub, now: time.Now}
	r.Reload(boards, loc)
	return r
}

// Reload replaces the pipeline set with one built from boards and returns
// the IDs of boards that are no longer configured.
func (r *Refresher) Reload(boards []config.Board, loc *time.Location) (removed []string) {
	next := build(boards, loc)

	keep := make(map[string]bool, len(next))
	for _, p := range next {
		keep[p.board.ID] = true
	}

	if loc == nil {
		loc = time.UTC
	}

	r.mu.Lock()
	r.loc = loc
	for _, p := range r.pipelines {
		if !keep[p.board.ID] {
			removed = append(removed, p.board.ID)
		}
	}
	r.pipelines = next
	r.mu.Unlock()

	return removed
}

func build(boards []config.Board, loc *time.Location) []pipeline {
	out := make([]pipeline, 0, len(boards))
	for _, b := range boards {
		src, err := source.New(b)
		if err != nil {
			slog.Error("refresh: skipping board, could not build source", "board", b.ID, "err", err)
			continue
		}
		engine, err := compute.FromBoard(b, loc)
		if err != nil {
			slog.Error("refresh: skipping board, could not build rules", "board", b.ID, "err", err)
			continue
		}
		out = append(out, pipeline{board: b, src: src, engine: engine})
		slog.Info("refresh: registered board", "board", b.ID, "source", b.Source.Type, "rules", engine.Chain().Names())
	}
	return out
}

// Boards returns the definitions of the boards currently refreshed.
func (r *Refresher) Boards() []config.Board {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]config.Board, len(r.pipelines))
	for i, p := range r.pipelines {
		out[i] = p.board
	}
	return out
}

// Location returns the time zone passed to the last Reload.
func (r *Refresher) Location() *time.Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loc
}

// Run refreshes every board immediately and then every interval until ctx
// is cancelled.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	r.RefreshAll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshAll(ctx)
		}
	}
}

// RefreshAll runs one pass per board and waits for all of them.
func (r *Refresher) RefreshAll(ctx context.Context) {
	r.mu.RLock()
	pipelines := r.pipelines
	r.mu.RUnlock()

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)
	for _, p := range pipelines {
		g.Go(func() error {
			r.run(ctx, p)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // run never fails
}

// Refresh runs one pass for a single board.
func (r *Refresher) Refresh(ctx context.Context, boardID string) error {
	r.mu.RLock()
	pipelines := r.pipelines
	r.mu.RUnlock()

	for _, p := range pipelines {
		if p.board.ID == boardID {
			r.run(ctx, p)
			return nil
		}
	}
	return ErrUnknownBoard
}

func (r *Refresher) run(ctx context.Context, p pipeline) {
	start := r.now()
	rows, err := p.src.Fetch(ctx)
	if ctx.Err() != nil {
		// Shutting down; a half-fetched board is not worth publishing.
		return
	}

	var pass *compute.Pass
	if err != nil {
		slog.Warn("refresh: fetch failed", "board", p.board.ID, "err", err)
		pass = p.engine.Failed(p.board.ID, err, r.now())
	} else {
		pass = p.engine.Process(p.board.ID, rows, r.now())
	}

	if err := r.pub.Accept(pass); err != nil {
		slog.Error("refresh: publish failed", "board", p.board.ID, "err", err)
		return
	}
	slog.Debug("refresh: pass complete",
		"board", p.board.ID,
		"records", len(pass.Records),
		"skipped", pass.Skipped,
		"took", r.now().Sub(start),
	)
}
