package alerts

import (
	"strconv"
	"strings"

	"github.com/gradtrack/gradtrack/pkg/types"
)

// evalCondition evaluates a rule condition string against an enriched record.
//
// Supported expressions (field operator value):
//
//	days_until_enrollment <= 7
//	days_until_decision < 0
//	days_since_applied > 60
//	decision_turnaround_days > 45
//	health == action_required
//	status != under_review
//
// Underscores in a status value stand for spaces. Returns (fires, value);
// an absent date never fires, and an unparseable expression or unknown field
// returns (false, 0).
func evalCondition(cond string, r types.Record) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	switch field {
	case "health":
		want, err := types.ParseHealth(rhs)
		if err != nil {
			return false, 0
		}
		return compareText(string(r.Health), op, string(want)), 0

	case "status":
		want := types.Normalize(strings.ReplaceAll(rhs, "_", " "))
		return compareText(r.NormalizedStatus(), op, want), 0

	default:
		v := numericField(field, r)
		if v == nil {
			return false, 0
		}
		threshold, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return false, 0
		}
		return compareFloat(float64(*v), op, threshold), float64(*v)
	}
}

// numericField maps a field name to its value in the record. Unknown fields
// and absent values are nil.
func numericField(field string, r types.Record) *int {
	switch field {
	case "days_since_applied":
		return r.DaysSinceApplied
	case "days_until_decision":
		return r.DaysUntilDecision
	case "days_until_enrollment":
		return r.DaysUntilEnrollment
	case "decision_turnaround_days":
		return r.DecisionTurnaroundDays
	default:
		return nil
	}
}

func compareText(v, op, want string) bool {
	switch op {
	case "==":
		return v == want
	case "!=":
		return v != want
	default:
		return false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
