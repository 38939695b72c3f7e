package compute

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gradtrack/gradtrack/pkg/types"
	"github.com/gradtrack/gradtrack/tracker/internal/config"
)

// Pass is the result of one render pass over a board.
type Pass struct {
	ID          string         `json:"id"`
	BoardID     string         `json:"board_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Today       types.Date     `json:"today"`
	Records     []types.Record `json:"records"`
	Summary     Summary        `json:"summary"`

	// Skipped counts rows dropped for lacking a university.
	Skipped int `json:"skipped"`

	// Err is non-empty when the source could not be fetched; the pass then
	// carries no records.
	Err string `json:"error,omitempty"`
}

// Engine runs render passes for one board. It holds only immutable settings,
// so a single Engine may be used from several goroutines.
type Engine struct {
	chain     Chain
	threshold int
	loc       *time.Location
}

// NewEngine returns an Engine classifying with chain. A nil loc means UTC.
func NewEngine(chain Chain, urgencyThresholdDays int, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{chain: chain, threshold: urgencyThresholdDays, loc: loc}
}

// FromBoard builds the Engine configured by b.
func FromBoard(b config.Board, loc *time.Location) (*Engine, error) {
	chain, err := NewChain(b.Rules, b.RuleNames)
	if err != nil {
		return nil, fmt.Errorf("board %q: %w", b.ID, err)
	}
	if b.DefaultHealth != "" {
		h, err := types.ParseHealth(b.DefaultHealth)
		if err != nil {
			return nil, fmt.Errorf("board %q: %w", b.ID, err)
		}
		if chain, err = chain.WithDefault(h); err != nil {
			return nil, fmt.Errorf("board %q: %w", b.ID, err)
		}
	}
	threshold := DefaultUrgencyThresholdDays
	if b.UrgencyThresholdDays != nil {
		threshold = *b.UrgencyThresholdDays
	}
	return NewEngine(chain, threshold, loc), nil
}

// Chain returns the rule chain the engine classifies with.
func (e *Engine) Chain() Chain { return e.chain }

// Today returns the civil date of now in the engine's time zone.
func (e *Engine) Today(now time.Time) types.Date {
	return types.DateOf(now, e.loc)
}

// Enrich derives and classifies one application.
func (e *Engine) Enrich(app types.Application, today types.Date) types.Record {
	d := Derive(app, today)
	return types.Record{
		Application: app,
		Derived:     d,
		Health:      e.chain.Classify(NewInput(app, d, e.threshold)),
	}
}

// Process runs one pass over rows. today is read once from now and used for
// every record. Records are built fresh and sorted by health rank, then
// university, then program.
func (e *Engine) Process(boardID string, rows []types.Row, now time.Time) *Pass {
	today := e.Today(now)
	p := &Pass{
		ID:          uuid.NewString(),
		BoardID:     boardID,
		GeneratedAt: now.UTC(),
		Today:       today,
		Records:     make([]types.Record, 0, len(rows)),
	}

	for _, row := range rows {
		app, ok := types.ApplicationFromRow(row)
		if !ok {
			p.Skipped++
			continue
		}
		p.Records = append(p.Records, e.Enrich(app, today))
	}
	if p.Skipped > 0 {
		slog.Warn("compute: skipped rows without a university",
			"board", boardID, "count", p.Skipped)
	}

	SortRecords(p.Records, "", false)
	p.Summary = Summarize(p.Records, today)
	return p
}

// Failed returns an empty pass recording a fetch error.
func (e *Engine) Failed(boardID string, err error, now time.Time) *Pass {
	today := e.Today(now)
	return &Pass{
		ID:          uuid.NewString(),
		BoardID:     boardID,
		GeneratedAt: now.UTC(),
		Today:       today,
		Records:     []types.Record{},
		Summary:     Summarize(nil, today),
		Err:         err.Error(),
	}
}
