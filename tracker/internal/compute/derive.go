package compute

import "github.com/gradtrack/gradtrack/pkg/types"

// Derive computes the day-delta fields of app relative to today.
//
// Sign conventions:
//
//	days_since_applied       = today - applied_on          (positive in the past)
//	days_until_decision      = decision_by - today         (positive in the future)
//	days_until_enrollment    = enrollment_deadline - today (positive in the future)
//	decision_turnaround_days = admit_received_on - applied_on, admits only
//
// An absent date yields a nil field, never zero.
func Derive(app types.Application, today types.Date) types.Derived {
	d := types.Derived{
		DaysSinceApplied:    types.DaysBetween(app.AppliedOn, &today),
		DaysUntilDecision:   types.DaysBetween(&today, app.DecisionBy),
		DaysUntilEnrollment: types.DaysBetween(&today, app.EnrollmentDeadline),
	}
	if app.IsAdmit() {
		d.DecisionTurnaroundDays = types.DaysBetween(app.AppliedOn, app.AdmitReceivedOn)
	}
	return d
}
