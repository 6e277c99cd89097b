package listing

import (
	"strings"
	"time"
)

// applicationKeywords mark a step title as the application/receipt window.
// Titles are free text, so keyword matching is the only available signal
// that a step is the actionable deadline rather than a later ceremonial
// milestone (winner announcement, contract signing).
var applicationKeywords = []string{"청약", "접수", "신청"}

// ResolveStage picks the listing's current stage: the first step in
// authored order whose start date is on or after today, else the
// chronologically last dated step (everything already happened, show the
// most recent milestone). Returns nil when no step carries a parseable
// date. Steps are scanned as authored — they are not assumed date-sorted.
func ResolveStage(steps []ParsedStep, today time.Time) *ParsedStep {
	today = Today(today)

	var last *ParsedStep
	for i := range steps {
		s := &steps[i]
		if !s.Dated {
			continue
		}
		if !s.Start.Before(today) {
			return s
		}
		if last == nil || s.Start.After(last.Start) {
			last = s
		}
	}
	return last
}

// EffectiveDeadline derives the single read-path date used for sorting,
// urgency badges and expiry. Priority: current stage's end date, the
// stored deadline, the announcement date, today.
func EffectiveDeadline(steps []ParsedStep, stored, announced *time.Time, today time.Time) time.Time {
	if stage := ResolveStage(steps, today); stage != nil {
		return stage.End
	}
	if stored != nil && !stored.IsZero() {
		return Today(*stored)
	}
	if announced != nil && !announced.IsZero() {
		return Today(*announced)
	}
	return Today(today)
}

// WriteDeadline derives the deadline persisted on admin save. Unlike the
// read path it prefers the first step whose title contains an application
// keyword, because the true actionable deadline is the close of the
// application window. With no keyword match it falls back to the
// chronologically last dated step's end date. Returns false when no step
// has a parseable date, in which case the caller keeps the stored value.
func WriteDeadline(steps []ParsedStep) (time.Time, bool) {
	for _, s := range steps {
		if !s.Dated {
			continue
		}
		for _, kw := range applicationKeywords {
			if strings.Contains(s.Title, kw) {
				return s.End, true
			}
		}
	}

	var latest time.Time
	found := false
	for _, s := range steps {
		if !s.Dated {
			continue
		}
		if !found || s.End.After(latest) {
			latest = s.End
			found = true
		}
	}
	return latest, found
}
