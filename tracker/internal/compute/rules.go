package compute

import (
	"fmt"
	"strings"

	"github.com/gradtrack/gradtrack/pkg/types"
)

// Rule-chain presets.
const (
	PresetCanonical = "canonical"
	PresetDeadline  = "deadline"
	PresetLiteral   = "literal"
)

// Built-in rule names.
const (
	RuleAdmit               = "admit"
	RuleAdmitLiteral        = "admit_literal"
	RuleAwaitingDecision    = "awaiting_decision"
	RuleInterviewInProgress = "interview_in_progress"
	RuleInterviewDone       = "interview_done_literal"
	RuleInReview            = "in_review"
	RuleRejected            = "rejected"
	RuleDecisionWindow      = "decision_window"
)

var presets = map[string][]string{
	PresetCanonical: {
		RuleAdmit,
		RuleAwaitingDecision,
		RuleInterviewInProgress,
		RuleInReview,
		RuleRejected,
		RuleDecisionWindow,
	},
	PresetDeadline: {
		RuleAdmit,
		RuleAwaitingDecision,
		RuleRejected,
		RuleDecisionWindow,
	},
	PresetLiteral: {
		RuleAdmitLiteral,
		RuleInterviewDone,
		RuleRejected,
	},
}

// builtin returns the rule registered under name.
func builtin(name string) (Rule, bool) {
	switch name {
	case RuleAdmit:
		return Rule{
			Name:  RuleAdmit,
			Label: types.HealthAdmitSecured,
			Match: func(in Input) bool { return in.Status == types.StatusAdmit },
			Pick: func(in Input) types.Health {
				if d := in.Derived.DaysUntilEnrollment; d != nil && *d <= in.UrgencyThresholdDays {
					return types.HealthActionRequired
				}
				return types.HealthAdmitSecured
			},
		}, true

	case RuleAdmitLiteral:
		return Rule{
			Name:  RuleAdmitLiteral,
			Label: types.HealthAdmitSecured,
			Match: func(in Input) bool { return in.Status == types.StatusAdmit },
		}, true

	case RuleAwaitingDecision:
		return Rule{
			Name:  RuleAwaitingDecision,
			Label: types.HealthDecisionInProgress,
			Match: func(in Input) bool { return in.Status == types.StatusAwaitingDecision },
		}, true

	case RuleInterviewInProgress:
		// An interview has happened or is firmly scheduled.
		return Rule{
			Name:  RuleInterviewInProgress,
			Label: types.HealthDecisionInProgress,
			Match: func(in Input) bool {
				return strings.Contains(in.Interview, "interview") &&
					!strings.Contains(in.Interview, "awaiting") &&
					!strings.Contains(in.Interview, "no interview")
			},
		}, true

	case RuleInterviewDone:
		return Rule{
			Name:  RuleInterviewDone,
			Label: types.HealthDecisionInProgress,
			Match: func(in Input) bool { return in.Interview == "interview done" },
		}, true

	case RuleInReview:
		return Rule{
			Name:  RuleInReview,
			Label: types.HealthInReview,
			Match: func(in Input) bool {
				return strings.Contains(in.Interview, "awaiting interview") ||
					in.Status == types.StatusUnderReview
			},
		}, true

	case RuleRejected:
		return Rule{
			Name:  RuleRejected,
			Label: types.HealthRejected,
			Match: func(in Input) bool {
				return in.Status == types.StatusReject || in.Status == types.StatusRejected
			},
		}, true

	case RuleDecisionWindow:
		// The decision date has passed without a resolution.
		return Rule{
			Name:  RuleDecisionWindow,
			Label: types.HealthDecisionWindowOpen,
			Match: func(in Input) bool {
				d := in.Derived.DaysUntilDecision
				return d != nil && *d <= 0
			},
		}, true
	}
	return Rule{}, false
}

// RuleNames lists every built-in rule name.
func RuleNames() []string {
	return []string{
		RuleAdmit,
		RuleAdmitLiteral,
		RuleAwaitingDecision,
		RuleInterviewInProgress,
		RuleInterviewDone,
		RuleInReview,
		RuleRejected,
		RuleDecisionWindow,
	}
}

// NewChain builds a chain from an explicit list of rule names or, when names
// is empty, from a preset. The default label is in_review.
func NewChain(preset string, names []string) (Chain, error) {
	if len(names) == 0 {
		if preset == "" {
			preset = PresetCanonical
		}
		p, ok := presets[preset]
		if !ok {
			return Chain{}, fmt.Errorf("compute: unknown rules preset %q", preset)
		}
		names = p
	}

	c := Chain{Default: types.HealthInReview, Rules: make([]Rule, 0, len(names))}
	for _, n := range names {
		r, ok := builtin(strings.TrimSpace(n))
		if !ok {
			return Chain{}, fmt.Errorf("compute: unknown rule %q", n)
		}
		c.Rules = append(c.Rules, r)
	}
	return c, nil
}

// CanonicalChain returns the full canonical precedence.
func CanonicalChain() Chain {
	c, _ := NewChain(PresetCanonical, nil)
	return c
}
