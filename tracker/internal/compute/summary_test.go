package compute

import (
	"math"
	"testing"

	"github.com/gradtrack/gradtrack/pkg/types"
)

// enrich derives and canonically classifies apps against today.
func enrich(apps ...types.Application) []types.Record {
	e := NewEngine(CanonicalChain(), DefaultUrgencyThresholdDays, nil)
	out := make([]types.Record, 0, len(apps))
	for _, a := range apps {
		out = append(out, e.Enrich(a, today))
	}
	return out
}

func TestSummarize_Counters(t *testing.T) {
	records := enrich(
		types.Application{University: "A", Status: "Admit", AppliedOn: day(-40), AdmitReceivedOn: day(-20)},
		types.Application{University: "B", Status: "admit", AppliedOn: day(-50), AdmitReceivedOn: day(-20), EnrollmentDeadline: day(5)},
		types.Application{University: "C", Status: "Rejected"},
		types.Application{University: "D", Status: "reject"},
		types.Application{University: "E", Status: "Awaiting Decision"},
		types.Application{University: "F", Status: "Under Review", Interview: "Interview Done"},
		types.Application{University: "G", Status: "Submitted", DecisionBy: day(-3)},
		types.Application{University: "H", Status: "Under Review"},
	)
	s := Summarize(records, today)

	if s.Total != 8 {
		t.Errorf("Total = %d, want 8", s.Total)
	}
	if s.Admits != 2 {
		t.Errorf("Admits = %d, want 2", s.Admits)
	}
	if s.Awaiting != 4 {
		t.Errorf("Awaiting = %d, want 4", s.Awaiting)
	}
	if s.Rejected != 2 {
		t.Errorf("Rejected = %d, want 2", s.Rejected)
	}
	// E and F are in progress, G's window is open.
	if s.Unfolding != 3 {
		t.Errorf("Unfolding = %d, want 3", s.Unfolding)
	}

	wantBy := map[types.Health]int{
		types.HealthAdmitSecured:       1,
		types.HealthActionRequired:     1,
		types.HealthRejected:           2,
		types.HealthDecisionInProgress: 2,
		types.HealthDecisionWindowOpen: 1,
		types.HealthInReview:           1,
	}
	for h, n := range wantBy {
		if s.ByHealth[h] != n {
			t.Errorf("ByHealth[%s] = %d, want %d", h, s.ByHealth[h], n)
		}
	}

	// Turnarounds: A = 20, B = 30.
	if s.AvgTurnaroundDays == nil || math.Abs(*s.AvgTurnaroundDays-25) > 1e-9 {
		t.Errorf("AvgTurnaroundDays = %v, want 25", s.AvgTurnaroundDays)
	}
}

func TestSummarize_RealityCheck(t *testing.T) {
	t.Run("nothing overdue", func(t *testing.T) {
		s := Summarize(enrich(
			types.Application{University: "A", Status: "Under Review", DecisionBy: day(10)},
			types.Application{University: "B", Status: "Under Review", DecisionBy: day(0)},
			types.Application{University: "C", Status: "Under Review"},
		), today)
		if s.RealityCheck != RealityOnTrack || s.HasOverdue() {
			t.Errorf("RealityCheck = %q, overdue = %v", s.RealityCheck, s.Overdue)
		}
		if s.Overdue == nil {
			t.Error("Overdue should be an empty slice, not nil")
		}
	})

	t.Run("admit past decision is not overdue", func(t *testing.T) {
		s := Summarize(enrich(
			types.Application{University: "A", Status: "Admit", DecisionBy: day(-10)},
		), today)
		if s.HasOverdue() {
			t.Errorf("admit should not be overdue: %+v", s.Overdue)
		}
	})

	t.Run("overdue scenario", func(t *testing.T) {
		s := Summarize(enrich(
			types.Application{University: "Toronto", Program: "MScAC", Status: "Under Review", DecisionBy: day(-30)},
			types.Application{University: "Rejected U", Status: "Rejected", DecisionBy: day(-1)},
		), today)
		if s.RealityCheck != RealityOverduePresent {
			t.Errorf("RealityCheck = %q, want %q", s.RealityCheck, RealityOverduePresent)
		}
		if len(s.Overdue) != 2 {
			t.Fatalf("Overdue len = %d, want 2", len(s.Overdue))
		}
		if s.Overdue[0].University != "Toronto" || s.Overdue[0].DaysLate != 30 {
			t.Errorf("Overdue[0] = %+v", s.Overdue[0])
		}
	})
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, today)
	if s.Total != 0 || s.AvgTurnaroundDays != nil || s.RealityCheck != RealityOnTrack {
		t.Errorf("empty summary = %+v", s)
	}
	for _, h := range types.Healths {
		if n, ok := s.ByHealth[h]; !ok || n != 0 {
			t.Errorf("ByHealth[%s] = %d, %v; want 0, true", h, n, ok)
		}
	}
}
