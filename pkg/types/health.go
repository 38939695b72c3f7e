package types

import "fmt"

// Health is the categorical status summarising where an application stands.
type Health string

// The fixed label set.
const (
	HealthAdmitSecured       Health = "admit_secured"
	HealthActionRequired     Health = "action_required"
	HealthDecisionInProgress Health = "decision_in_progress"
	HealthDecisionWindowOpen Health = "decision_window_open"
	HealthInReview           Health = "in_review"
	HealthRejected           Health = "rejected"
)

// Healths lists every label in rank order.
var Healths = []Health{
	HealthActionRequired,
	HealthAdmitSecured,
	HealthDecisionInProgress,
	HealthDecisionWindowOpen,
	HealthInReview,
	HealthRejected,
}

// ParseHealth accepts a label name in any case ("in_review", "In Review",
// "InReview"). "safe" is an alias of in_review.
func ParseHealth(s string) (Health, error) {
	n := Normalize(s)
	for _, h := range Healths {
		if n == string(h) || n == Normalize(h.Title()) || n == Normalize(h.camel()) {
			return h, nil
		}
	}
	if n == "safe" {
		return HealthInReview, nil
	}
	return "", fmt.Errorf("types: unknown health label %q", s)
}

// Valid reports whether h is one of the fixed labels.
func (h Health) Valid() bool {
	return h.Rank() < len(Healths)
}

// Rank is the position of h in Healths; unknown labels rank last.
func (h Health) Rank() int {
	for i, x := range Healths {
		if x == h {
			return i
		}
	}
	return len(Healths)
}

// Title returns the display text of h.
func (h Health) Title() string {
	switch h {
	case HealthAdmitSecured:
		return "Admit Secured"
	case HealthActionRequired:
		return "Action Required"
	case HealthDecisionInProgress:
		return "Decision In Progress"
	case HealthDecisionWindowOpen:
		return "Decision Window Open"
	case HealthInReview:
		return "In Review"
	case HealthRejected:
		return "Rejected"
	default:
		return string(h)
	}
}

// IsDecision reports whether h carries the "Decision" marker counted as
// actively unfolding on the dashboard.
func (h Health) IsDecision() bool {
	return h == HealthDecisionInProgress || h == HealthDecisionWindowOpen
}

func (h Health) camel() string {
	switch h {
	case HealthAdmitSecured:
		return "AdmitSecured"
	case HealthActionRequired:
		return "ActionRequired"
	case HealthDecisionInProgress:
		return "DecisionInProgress"
	case HealthDecisionWindowOpen:
		return "DecisionWindowOpen"
	case HealthInReview:
		return "InReview"
	case HealthRejected:
		return "Rejected"
	default:
		return string(h)
	}
}
