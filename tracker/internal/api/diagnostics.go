package api

import (
	"fmt"

	"github.com/gradtrack/gradtrack/pkg/types"
	"github.com/gradtrack/gradtrack/tracker/internal/compute"
	"github.com/gradtrack/gradtrack/tracker/internal/config"
)

// DiagnosticHint is one human-readable insight about a board's latest pass.
// The dashboard shows these as short notes above the counters.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label (≤ 5 words).
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional number associated with this hint (e.g. days left).
	Value *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints from a pass. Hints are ordered: critical
// first, then warnings, then info.
func computeDiagnostics(p *compute.Pass, b config.Board) []DiagnosticHint {
	var hints []DiagnosticHint

	// ── Fetch failure ────────────────────────────────────────────────────────
	if p.Err != "" {
		hints = append(hints, DiagnosticHint{
			Key:   "source_failed",
			Level: "critical",
			Title: "Can't read source",
			Detail: fmt.Sprintf(
				"The last attempt to read this board's data failed with: %q. "+
					"Until it succeeds the board shows no applications.",
				p.Err,
			),
		})
		return append(hints, sourceTypeHints(b)...)
	}

	// ── Empty board ──────────────────────────────────────────────────────────
	if len(p.Records) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "empty",
			Level:  "info",
			Title:  "No applications yet",
			Detail: "The source was read but no row names a university. Add a row to start tracking.",
		})
		return hints
	}

	// ── Enrollment deadlines ─────────────────────────────────────────────────
	urgent, soonest := 0, 0
	for _, r := range p.Records {
		if r.Health != types.HealthActionRequired {
			continue
		}
		if r.DaysUntilEnrollment != nil && (urgent == 0 || *r.DaysUntilEnrollment < soonest) {
			soonest = *r.DaysUntilEnrollment
		}
		urgent++
	}
	if urgent > 0 {
		v := float64(soonest)
		hints = append(hints, DiagnosticHint{
			Key:   "enrollment_due",
			Level: "warning",
			Title: fmt.Sprintf("%d admit(s) need a reply", urgent),
			Detail: fmt.Sprintf(
				"%d admitted application(s) have an enrollment deadline coming up. "+
					"The nearest is %d day(s) away.",
				urgent, soonest,
			),
			Value: &v,
		})
	}

	// ── Overdue decisions ────────────────────────────────────────────────────
	if n := len(p.Summary.Overdue); n > 0 {
		v := float64(n)
		hints = append(hints, DiagnosticHint{
			Key:   "overdue_decisions",
			Level: "info",
			Title: fmt.Sprintf("%d decision(s) running late", n),
			Detail: "Some programs have passed their expected decision date. " +
				"Late decisions are common and not a concern on their own.",
			Value: &v,
		})
	}

	// ── Skipped rows ─────────────────────────────────────────────────────────
	if p.Skipped > 0 {
		v := float64(p.Skipped)
		hints = append(hints, DiagnosticHint{
			Key:    "skipped_rows",
			Level:  "info",
			Title:  fmt.Sprintf("%d row(s) skipped", p.Skipped),
			Detail: "Rows without a university are left out of the table and the counters.",
			Value:  &v,
		})
	}

	// ── All clear ────────────────────────────────────────────────────────────
	if len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "all_clear",
			Level:  "ok",
			Title:  "All clear",
			Detail: "No enrollment deadline is close and no decision is past its expected date.",
		})
	}

	return hints
}

// sourceTypeHints returns source-type-specific guidance for a failed fetch.
func sourceTypeHints(b config.Board) []DiagnosticHint {
	switch b.Source.Type {
	case "sheet":
		return []DiagnosticHint{{
			Key:   "sheet_sharing_tip",
			Level: "info",
			Title: "Check sheet sharing",
			Detail: "Google Sheets only serves the CSV export when the sheet is shared as " +
				"\"Anyone with the link can view\" or the request carries valid credentials. " +
				"Also check that sheet_id and sheet_name match the document.",
		}}
	case "html":
		return []DiagnosticHint{{
			Key:    "html_table_tip",
			Level:  "info",
			Title:  "Check the page",
			Detail: "The page must be reachable and contain a <table> whose first row holds the column names.",
		}}
	case "csv":
		if b.Source.URL == "" {
			return []DiagnosticHint{{
				Key:    "csv_path_tip",
				Level:  "info",
				Title:  "Check the file path",
				Detail: fmt.Sprintf("The tracker reads %q relative to its working directory.", b.Source.Path),
			}}
		}
	}
	return nil
}
