// Package milestone renders a dated window (for example the weeks in which
// most decisions arrive) as a countdown relative to today.
package milestone

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gradtrack/gradtrack/pkg/types"
	"github.com/gradtrack/gradtrack/tracker/internal/config"
)

// Phases of a milestone relative to today.
const (
	PhaseBefore = "before"
	PhaseDuring = "during"
	PhaseAfter  = "after"
)

const (
	defaultBefore = "%d days until the window opens."
	defaultDuring = "%d days remain in the window."
	defaultAfter  = "The window has closed."
)

// Status is the evaluated milestone for one day.
type Status struct {
	Title   string `json:"title,omitempty"`
	Phase   string `json:"phase"`
	Days    int    `json:"days"`
	Message string `json:"message"`

	// Tone is a presentation hint: info before, warning during, success after.
	Tone string `json:"tone"`
}

// Evaluate places today relative to m. Before the start Days counts down to
// the start; inside the window (both ends inclusive) it counts down to the
// end; afterwards it is zero. A "%d" in the message is replaced by Days.
func Evaluate(m config.Milestone, today types.Date) (Status, error) {
	start := types.ParseDate(m.Start)
	end := types.ParseDate(m.End)
	if start == nil || end == nil {
		return Status{}, fmt.Errorf("milestone: start %q and end %q must be dates", m.Start, m.End)
	}
	if end.Before(*start) {
		return Status{}, fmt.Errorf("milestone: end %s is before start %s", end, start)
	}

	s := Status{Title: m.Title}
	switch {
	case today.Before(*start):
		s.Phase, s.Tone = PhaseBefore, "info"
		s.Days = today.DaysUntil(*start)
		s.Message = render(m.Before, defaultBefore, s.Days)
	case !today.After(*end):
		s.Phase, s.Tone = PhaseDuring, "warning"
		s.Days = today.DaysUntil(*end)
		s.Message = render(m.During, defaultDuring, s.Days)
	default:
		s.Phase, s.Tone = PhaseAfter, "success"
		s.Message = render(m.After, defaultAfter, 0)
	}
	return s, nil
}

func render(text, fallback string, days int) string {
	if text == "" {
		text = fallback
	}
	return strings.ReplaceAll(text, "%d", strconv.Itoa(days))
}
