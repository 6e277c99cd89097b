package listing

import (
	"strings"
	"time"

	"github.com/junho/bunyang-finder/internal/models"
)

const rangeDelimiter = "~"

// dateLayouts are the formats accepted for step dates. Notices use
// hyphens, dots and slashes interchangeably.
var dateLayouts = []string{
	"2006-01-02",
	"2006.01.02",
	"2006/01/02",
	"2006-1-2",
	"2006.1.2",
}

// ParsedStep is a timeline step with its date field resolved into
// comparable start/end dates. Undated steps keep Dated=false and are
// skipped by stage and deadline computation but still render.
type ParsedStep struct {
	Title   string
	Details string
	Raw     string // original date text, preserved for display
	Start   time.Time
	End     time.Time
	Dated   bool
}

// ParseSteps resolves each step's date field. Order is preserved and a
// step that fails to parse degrades to undated rather than failing the
// listing.
func ParseSteps(steps []models.TimelineStep) []ParsedStep {
	parsed := make([]ParsedStep, 0, len(steps))
	for _, s := range steps {
		p := ParsedStep{Title: s.Title, Details: s.Details, Raw: s.Date}

		startRaw, endRaw := splitDateRange(s.Date)
		if start, ok := parseStepDate(startRaw); ok {
			p.Start = start
			p.End = start
			p.Dated = true
			if end, ok := parseStepDate(endRaw); ok {
				p.End = end
			}
		}

		parsed = append(parsed, p)
	}
	return parsed
}

// splitDateRange splits "start~end" into its parts. A missing end
// defaults to the start.
func splitDateRange(raw string) (string, string) {
	parts := strings.SplitN(raw, rangeDelimiter, 2)
	start := strings.TrimSpace(parts[0])
	end := start
	if len(parts) == 2 {
		if e := strings.TrimSpace(parts[1]); e != "" {
			end = e
		}
	}
	return start, end
}

func parseStepDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Today truncates t to a date-only value in UTC, the comparison basis for
// all stage, deadline and visibility decisions.
func Today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
