package listing

import (
	"sort"
	"time"

	"github.com/junho/bunyang-finder/internal/models"
)

// graceDays keeps a listing visible through its nominal deadline day.
const graceDays = 1

// Resolved carries the per-read derivations for one listing: parsed steps,
// the current stage and the effective deadline, all computed once per
// listing and passed to every consumer.
type Resolved struct {
	Listing  *models.Listing
	Steps    []ParsedStep
	Stage    *ParsedStep
	Deadline time.Time
}

// Resolve computes the derived view of a listing for the given instant.
func Resolve(l *models.Listing, now time.Time) Resolved {
	steps := ParseSteps(l.Extended.Steps)
	return Resolved{
		Listing:  l,
		Steps:    steps,
		Stage:    ResolveStage(steps, now),
		Deadline: EffectiveDeadline(steps, l.Deadline, l.AnnounceDate, now),
	}
}

// Visible reports whether the listing should still appear in public
// views: hidden only once today strictly exceeds the effective deadline
// plus one grace day. Computed on every read — listings age out with no
// background sweep.
func (r Resolved) Visible(now time.Time) bool {
	return !Today(now).After(r.Deadline.AddDate(0, 0, graceDays))
}

// DaysRemaining is the whole-day distance from today to the effective
// deadline. Zero means the deadline is today; negative means it passed.
func (r Resolved) DaysRemaining(now time.Time) int {
	return int(r.Deadline.Sub(Today(now)).Hours() / 24)
}

// FilterVisible drops listings past their grace window.
func FilterVisible(items []Resolved, now time.Time) []Resolved {
	out := items[:0]
	for _, r := range items {
		if r.Visible(now) {
			out = append(out, r)
		}
	}
	return out
}

// SortByDeadline orders listings by effective deadline, soonest first
// when asc is true. The sort key is always the resolver output, never the
// stored column, so ordering agrees with what is displayed. Ties keep
// their input order.
func SortByDeadline(items []Resolved, asc bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if asc {
			return items[i].Deadline.Before(items[j].Deadline)
		}
		return items[i].Deadline.After(items[j].Deadline)
	})
}
