package types

import (
	"strings"

	"golang.org/x/text/cases"
)

// Canonical column names of the tabular input.
const (
	ColUniversity         = "University"
	ColProgram            = "Program"
	ColCampus             = "Campus"
	ColAppliedOn          = "Applied On"
	ColStatus             = "Status"
	ColInterview          = "Interview"
	ColDecisionBy         = "Decision By"
	ColAdmitReceivedOn    = "Admit Received On"
	ColEnrollmentDeadline = "Enrollment Deadline"
)

// Columns lists the canonical columns in display order.
var Columns = []string{
	ColUniversity,
	ColProgram,
	ColCampus,
	ColAppliedOn,
	ColStatus,
	ColInterview,
	ColDecisionBy,
	ColAdmitReceivedOn,
	ColEnrollmentDeadline,
}

// Row is one raw row from a data source, keyed by canonical column name.
// Columns the source does not carry are simply missing from the map.
type Row map[string]string

// Application is one program applied to, parsed from a Row.
type Application struct {
	University         string `json:"university"`
	Program            string `json:"program,omitempty"`
	Campus             string `json:"campus,omitempty"`
	AppliedOn          *Date  `json:"applied_on"`
	Status             string `json:"status,omitempty"`
	Interview          string `json:"interview,omitempty"`
	DecisionBy         *Date  `json:"decision_by"`
	AdmitReceivedOn    *Date  `json:"admit_received_on"`
	EnrollmentDeadline *Date  `json:"enrollment_deadline"`
}

// ApplicationFromRow parses r. It returns false when the row has no
// University; such rows cannot be displayed or keyed and are dropped by the
// caller. Unparseable dates become nil.
func ApplicationFromRow(r Row) (Application, bool) {
	app := Application{
		University:         strings.TrimSpace(r[ColUniversity]),
		Program:            strings.TrimSpace(r[ColProgram]),
		Campus:             strings.TrimSpace(r[ColCampus]),
		AppliedOn:          ParseDate(r[ColAppliedOn]),
		Status:             strings.TrimSpace(r[ColStatus]),
		Interview:          strings.TrimSpace(r[ColInterview]),
		DecisionBy:         ParseDate(r[ColDecisionBy]),
		AdmitReceivedOn:    ParseDate(r[ColAdmitReceivedOn]),
		EnrollmentDeadline: ParseDate(r[ColEnrollmentDeadline]),
	}
	if app.University == "" {
		return Application{}, false
	}
	return app, true
}

// Normalized status values recognised by the classifier and the aggregates.
const (
	StatusAdmit            = "admit"
	StatusReject           = "reject"
	StatusRejected         = "rejected"
	StatusAwaitingDecision = "awaiting decision"
	StatusUnderReview      = "under review"
)

// Normalize trims s, collapses runs of whitespace to one space and applies
// Unicode case folding.
func Normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return cases.Fold().String(s)
}

// NormalizedStatus returns Normalize(a.Status).
func (a Application) NormalizedStatus() string { return Normalize(a.Status) }

// NormalizedInterview returns Normalize(a.Interview).
func (a Application) NormalizedInterview() string { return Normalize(a.Interview) }

// IsAdmit reports whether the status is an admit.
func (a Application) IsAdmit() bool { return a.NormalizedStatus() == StatusAdmit }

// IsRejected reports whether the status is reject or rejected.
func (a Application) IsRejected() bool {
	s := a.NormalizedStatus()
	return s == StatusReject || s == StatusRejected
}

// Derived holds the day deltas computed relative to "today". A nil field is
// null: its source date was absent or the precondition did not hold.
type Derived struct {
	DaysSinceApplied       *int `json:"days_since_applied"`
	DaysUntilDecision      *int `json:"days_until_decision"`
	DaysUntilEnrollment    *int `json:"days_until_enrollment"`
	DecisionTurnaroundDays *int `json:"decision_turnaround_days"`
}

// Record is an Application enriched with its Derived fields and Health label.
type Record struct {
	Application
	Derived
	Health Health `json:"health"`
}
