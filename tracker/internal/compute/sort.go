package compute

import (
	"sort"
	"strings"

	"github.com/gradtrack/gradtrack/pkg/types"
)

// SortColumns lists the columns accepted by SortRecords.
var SortColumns = []string{
	"health",
	"university",
	"program",
	"campus",
	"applied_on",
	"status",
	"interview",
	"decision_by",
	"admit_received_on",
	"enrollment_deadline",
	"days_since_applied",
	"days_until_decision",
	"days_until_enrollment",
	"decision_turnaround_days",
}

// ValidSortColumn reports whether column is accepted by SortRecords.
func ValidSortColumn(column string) bool {
	for _, c := range SortColumns {
		if c == column {
			return true
		}
	}
	return false
}

// SortRecords sorts records in place by column. An empty or unknown column
// is the default order: health rank, university, program. Ties always fall back to
// that order, and absent values sort last regardless of direction.
func SortRecords(records []types.Record, column string, desc bool) {
	cmp := comparator(column)
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if c, ok := cmp(a, b); ok && c != 0 {
			if desc {
				return c > 0
			}
			return c < 0
		} else if !ok {
			// Exactly one side is absent: it goes last.
			return c < 0
		}
		return defaultLess(a, b)
	})
}

// comparator returns a func reporting the order of a and b on column. When
// exactly one value is absent it returns ok=false and c<0 if a is present.
func comparator(column string) func(a, b types.Record) (int, bool) {
	switch column {
	case "health":
		return func(a, b types.Record) (int, bool) { return a.Health.Rank() - b.Health.Rank(), true }
	case "university":
		return textCmp(func(r types.Record) string { return r.University })
	case "program":
		return textCmp(func(r types.Record) string { return r.Program })
	case "campus":
		return textCmp(func(r types.Record) string { return r.Campus })
	case "status":
		return textCmp(func(r types.Record) string { return r.Status })
	case "interview":
		return textCmp(func(r types.Record) string { return r.Interview })
	case "applied_on":
		return dateCmp(func(r types.Record) *types.Date { return r.AppliedOn })
	case "decision_by":
		return dateCmp(func(r types.Record) *types.Date { return r.DecisionBy })
	case "admit_received_on":
		return dateCmp(func(r types.Record) *types.Date { return r.AdmitReceivedOn })
	case "enrollment_deadline":
		return dateCmp(func(r types.Record) *types.Date { return r.EnrollmentDeadline })
	case "days_since_applied":
		return intCmp(func(r types.Record) *int { return r.DaysSinceApplied })
	case "days_until_decision":
		return intCmp(func(r types.Record) *int { return r.DaysUntilDecision })
	case "days_until_enrollment":
		return intCmp(func(r types.Record) *int { return r.DaysUntilEnrollment })
	case "decision_turnaround_days":
		return intCmp(func(r types.Record) *int { return r.DecisionTurnaroundDays })
	default:
		// Unknown columns keep the default order.
		return func(a, b types.Record) (int, bool) { return 0, true }
	}
}

func defaultLess(a, b types.Record) bool {
	if a.Health.Rank() != b.Health.Rank() {
		return a.Health.Rank() < b.Health.Rank()
	}
	if c := strings.Compare(types.Normalize(a.University), types.Normalize(b.University)); c != 0 {
		return c < 0
	}
	return types.Normalize(a.Program) < types.Normalize(b.Program)
}

func textCmp(get func(types.Record) string) func(a, b types.Record) (int, bool) {
	return func(a, b types.Record) (int, bool) {
		x, y := types.Normalize(get(a)), types.Normalize(get(b))
		switch {
		case x == "" && y == "":
			return 0, true
		case x == "":
			return 1, false
		case y == "":
			return -1, false
		}
		return strings.Compare(x, y), true
	}
}

func dateCmp(get func(types.Record) *types.Date) func(a, b types.Record) (int, bool) {
	return func(a, b types.Record) (int, bool) {
		x, y := get(a), get(b)
		switch {
		case x == nil && y == nil:
			return 0, true
		case x == nil:
			return 1, false
		case y == nil:
			return -1, false
		}
		return x.Compare(*y), true
	}
}

func intCmp(get func(types.Record) *int) func(a, b types.Record) (int, bool) {
	return func(a, b types.Record) (int, bool) {
		x, y := get(a), get(b)
		switch {
		case x == nil && y == nil:
			return 0, true
		case x == nil:
			return 1, false
		case y == nil:
			return -1, false
		}
		return *x - *y, true
	}
}
