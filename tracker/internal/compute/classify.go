package compute

import (
	"fmt"

	"github.com/gradtrack/gradtrack/pkg/types"
)

// DefaultUrgencyThresholdDays is the urgency threshold used when none is configured.
const DefaultUrgencyThresholdDays = 15

// Input is the field snapshot a rule looks at. Status and Interview are
// already normalised with types.Normalize.
type Input struct {
	App       types.Application
	Derived   types.Derived
	Status    string
	Interview string

	// UrgencyThresholdDays is the enrollment-deadline distance at or below
	// which an admit requires action.
	UrgencyThresholdDays int
}

// NewInput builds the Input for one record.
func NewInput(app types.Application, d types.Derived, urgencyThresholdDays int) Input {
	return Input{
		App:                  app,
		Derived:              d,
		Status:               app.NormalizedStatus(),
		Interview:            app.NormalizedInterview(),
		UrgencyThresholdDays: urgencyThresholdDays,
	}
}

// Rule is one predicate → label pair of a chain.
type Rule struct {
	Name  string
	Label types.Health
	Match func(Input) bool

	// Pick, when non-nil, chooses the label of a matched input instead of Label.
	Pick func(Input) types.Health
}

func (r Rule) label(in Input) types.Health {
	if r.Pick != nil {
		return r.Pick(in)
	}
	return r.Label
}

// Chain is an ordered list of rules plus the label used when none matches.
type Chain struct {
	Rules   []Rule
	Default types.Health
}

// Classify returns the label of the first matching rule, or c.Default.
func (c Chain) Classify(in Input) types.Health {
	for _, r := range c.Rules {
		if r.Match(in) {
			return r.label(in)
		}
	}
	if c.Default == "" {
		return types.HealthInReview
	}
	return c.Default
}

// Names returns the rule names in evaluation order.
func (c Chain) Names() []string {
	out := make([]string, len(c.Rules))
	for i, r := range c.Rules {
		out[i] = r.Name
	}
	return out
}

// WithDefault returns a copy of c with a different fallback label.
func (c Chain) WithDefault(h types.Health) (Chain, error) {
	if !h.Valid() {
		return Chain{}, fmt.Errorf("compute: invalid default label %q", h)
	}
	c.Default = h
	return c, nil
}

// Classify labels one record with the canonical chain.
func Classify(app types.Application, d types.Derived, urgencyThresholdDays int) types.Health {
	return CanonicalChain().Classify(NewInput(app, d, urgencyThresholdDays))
}
