package compute

import "github.com/gradtrack/gradtrack/pkg/types"

// Reality check outcomes.
const (
	RealityOnTrack        = "on track"
	RealityOverduePresent = "overdue present"
)

// Overdue is one non-admit record whose decision date has passed.
type Overdue struct {
	University string     `json:"university"`
	Program    string     `json:"program,omitempty"`
	DecisionBy types.Date `json:"decision_by"`
	DaysLate   int        `json:"days_late"`
}

// Summary holds the dashboard counters for one pass.
type Summary struct {
	Total int `json:"total"`

	// Admits counts status == admit.
	Admits int `json:"admits"`

	// Awaiting counts status not in {admit, reject, rejected}.
	Awaiting int `json:"awaiting"`

	// Rejected counts health == rejected.
	Rejected int `json:"rejected"`

	// Unfolding counts labels carrying the Decision marker.
	Unfolding int `json:"unfolding"`

	ByHealth map[types.Health]int `json:"by_health"`

	// AvgTurnaroundDays is the mean decision turnaround over admits that
	// have one; nil when there are none.
	AvgTurnaroundDays *float64 `json:"avg_turnaround_days"`

	RealityCheck string    `json:"reality_check"`
	Overdue      []Overdue `json:"overdue"`
}

// HasOverdue reports whether the reality check flagged anything.
func (s Summary) HasOverdue() bool { return len(s.Overdue) > 0 }

// Summarize computes the counters and the reality check over records.
// records must already be derived and classified.
func Summarize(records []types.Record, today types.Date) Summary {
	s := Summary{
		Total:        len(records),
		ByHealth:     make(map[types.Health]int, len(types.Healths)),
		RealityCheck: RealityOnTrack,
		Overdue:      []Overdue{},
	}
	for _, h := range types.Healths {
		s.ByHealth[h] = 0
	}

	var turnaroundSum, turnaroundN int
	for _, r := range records {
		admit := r.IsAdmit()
		switch {
		case admit:
			s.Admits++
		case !r.IsRejected():
			s.Awaiting++
		}

		s.ByHealth[r.Health]++
		if r.Health == types.HealthRejected {
			s.Rejected++
		}
		if r.Health.IsDecision() {
			s.Unfolding++
		}

		if t := r.DecisionTurnaroundDays; t != nil {
			turnaroundSum += *t
			turnaroundN++
		}

		if !admit && r.DecisionBy != nil && r.DecisionBy.Before(today) {
			s.Overdue = append(s.Overdue, Overdue{
				University: r.University,
				Program:    r.Program,
				DecisionBy: *r.DecisionBy,
				DaysLate:   r.DecisionBy.DaysUntil(today),
			})
		}
	}

	if turnaroundN > 0 {
		avg := float64(turnaroundSum) / float64(turnaroundN)
		s.AvgTurnaroundDays = &avg
	}
	if len(s.Overdue) > 0 {
		s.RealityCheck = RealityOverduePresent
	}
	return s
}
