package shipper

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/gradtrack/gradtrack/tracker/internal/compute"
	"github.com/gradtrack/gradtrack/tracker/internal/history"
)

const (
	// DefaultBufferSize is the buffer depth used when New is given size <= 0.
	DefaultBufferSize = 64

	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	writeTimeout      = 10 * time.Second
)

// Recorder persists one pass. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, p *compute.Pass) error
}

// Shipper buffers passes and writes them to a Recorder.
// Ship() is non-blocking; when the buffer is full the oldest pass is evicted.
// Run() must be called in a goroutine to drain the buffer.
type Shipper struct {
	rec Recorder
	buf chan *compute.Pass

	// initial and max bound the retry backoff; tests shrink them.
	initial time.Duration
	max     time.Duration
}

// New creates a Shipper writing to rec with a buffer of size passes.
func New(rec Recorder, size int) *Shipper {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Shipper{
		rec:     rec,
		buf:     make(chan *compute.Pass, size),
		initial: backoffInitial,
		max:     backoffMax,
	}
}

// Ship enqueues p. If the buffer is full the oldest entry is evicted to make
// room.
func (s *Shipper) Ship(p *compute.Pass) {
	for {
		select {
		case s.buf <- p:
			return
		default:
		}
		// Buffer full: drop the oldest pass, keep the newest.
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest pass",
				"board", old.BoardID, "pass", old.ID, "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Pending returns the number of buffered passes.
func (s *Shipper) Pending() int { return len(s.buf) }

// Run drains the buffer, writing each pass to the Recorder. Failed writes are
// retried with backoff. Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-s.buf:
			s.write(ctx, p)
		}
	}
}

// write records p, retrying until it succeeds, the error is permanent, or
// ctx is cancelled.
func (s *Shipper) write(ctx context.Context, p *compute.Pass) {
	bo := &backoff{current: s.initial, max: s.max}
	for {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := s.rec.Record(wctx, p)
		cancel()
		if err == nil {
			slog.Debug("shipper: pass recorded", "board", p.BoardID, "pass", p.ID)
			return
		}
		if isPermanentError(err) {
			slog.Error("shipper: permanent write error, discarding pass",
				"board", p.BoardID, "pass", p.ID, "err", err)
			return
		}

		wait := bo.next()
		slog.Warn("shipper: write failed, will retry",
			"board", p.BoardID, "err", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// isPermanentError returns true for errors that retrying cannot fix.
func isPermanentError(err error) bool {
	return errors.Is(err, history.ErrClosed) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled)
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
	max     time.Duration
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > b.max {
		b.current = b.max
	}
	return d
}
