package receiver

import (
	"errors"
	"log/slog"

	"github.com/gradtrack/gradtrack/tracker/internal/compute"
	"github.com/gradtrack/gradtrack/tracker/internal/store"
)

// ErrNoBoard is returned by Accept for a pass without a board ID.
var ErrNoBoard = errors.New("receiver: board_id is required")

// Evaluator checks alert rules against a pass. *alerts.Engine implements it.
type Evaluator interface {
	Evaluate(p *compute.Pass)
}

// Shipper queues a pass for persistence. *shipper.Shipper implements it.
type Shipper interface {
	Ship(p *compute.Pass)
}

// Notifier is told when a new pass is available. *ws.Hub implements it.
type Notifier interface {
	Notify()
}

// Receiver fans accepted passes out to the store and the optional
// collaborators.
type Receiver struct {
	store  *store.Store
	alerts Evaluator
	ship   Shipper
	notify Notifier
}

// Option configures optional Receiver collaborators.
type Option func(*Receiver)

// WithAlerts evaluates alert rules on every accepted pass.
func WithAlerts(e Evaluator) Option { return func(r *Receiver) { r.alerts = e } }

// WithShipper queues every accepted pass for the history.
func WithShipper(s Shipper) Option { return func(r *Receiver) { r.ship = s } }

// WithNotifier signals n after every accepted pass.
func WithNotifier(n Notifier) Option { return func(r *Receiver) { r.notify = n } }

// New creates a Receiver that writes accepted passes to st.
func New(st *store.Store, opts ...Option) *Receiver {
	r := &Receiver{store: st}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Accept validates p and publishes it. A failed pass (p.Err set) is stored
// and shipped like any other so the dashboard can show the error; alert
// rules ignore it.
func (r *Receiver) Accept(p *compute.Pass) error {
	if p == nil || p.BoardID == "" {
		return ErrNoBoard
	}

	r.store.Put(p)
	if r.alerts != nil {
		r.alerts.Evaluate(p)
	}
	if r.ship != nil {
		r.ship.Ship(p)
	}
	if r.notify != nil {
		r.notify.Notify()
	}

	slog.Debug("receiver: pass stored",
		"board", p.BoardID,
		"pass", p.ID,
		"records", len(p.Records),
		"reality_check", p.Summary.RealityCheck,
		"err", p.Err,
	)
	return nil
}
