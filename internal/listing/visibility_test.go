package listing

import (
	"testing"
	"time"

	"github.com/junho/bunyang-finder/internal/models"
)

func listingWithSteps(title string, steps ...models.TimelineStep) *models.Listing {
	return &models.Listing{
		Title:    title,
		Extended: models.ExtendedData{Steps: steps},
	}
}

func TestResolve_ScenarioApplicationWindow(t *testing.T) {
	l := listingWithSteps("행복주택",
		models.TimelineStep{Title: "모집공고", Date: "2025-01-10"},
		models.TimelineStep{Title: "청약신청", Date: "2025-01-20~2025-01-22"},
		models.TimelineStep{Title: "당첨자 발표", Date: "2025-02-01"},
	)
	today := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	r := Resolve(l, today)
	if r.Stage == nil || r.Stage.Title != "청약신청" {
		t.Fatalf("expected 청약신청 stage, got %+v", r.Stage)
	}
	want := time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC)
	if !r.Deadline.Equal(want) {
		t.Fatalf("expected deadline %s, got %s", want, r.Deadline)
	}
}

func TestVisible_GraceWindow(t *testing.T) {
	l := listingWithSteps("국민임대",
		models.TimelineStep{Title: "당첨자 발표", Date: "2025-02-01"},
	)

	// Deadline is 2025-02-01; grace keeps it visible through 02-02.
	days := []struct {
		today   string
		visible bool
	}{
		{"2025-01-31", true},
		{"2025-02-01", true},
		{"2025-02-02", true},
		{"2025-02-03", false},
		{"2025-02-10", false},
	}

	for _, tt := range days {
		now, _ := time.Parse("2006-01-02", tt.today)
		r := Resolve(l, now)
		if got := r.Visible(now); got != tt.visible {
			t.Fatalf("Visible on %s = %v, want %v", tt.today, got, tt.visible)
		}
	}
}

func TestDaysRemaining(t *testing.T) {
	deadline := time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC)
	l := &models.Listing{Deadline: &deadline}

	now := time.Date(2025, 1, 15, 23, 0, 0, 0, time.UTC)
	r := Resolve(l, now)
	if got := r.DaysRemaining(now); got != 7 {
		t.Fatalf("expected 7 days remaining, got %d", got)
	}

	after := time.Date(2025, 1, 23, 1, 0, 0, 0, time.UTC)
	r = Resolve(l, after)
	if got := r.DaysRemaining(after); got != -1 {
		t.Fatalf("expected -1 days remaining, got %d", got)
	}
}

func TestSortByDeadline_Directions(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(title, deadline string) Resolved {
		d, _ := time.Parse("2006-01-02", deadline)
		return Resolved{Listing: &models.Listing{Title: title}, Deadline: d}
	}

	items := []Resolved{
		mk("c", "2025-03-01"),
		mk("a", "2025-01-10"),
		mk("b", "2025-02-01"),
	}

	SortByDeadline(items, true)
	if items[0].Listing.Title != "a" || items[2].Listing.Title != "c" {
		t.Fatalf("ascending order wrong: %s %s %s",
			items[0].Listing.Title, items[1].Listing.Title, items[2].Listing.Title)
	}

	SortByDeadline(items, false)
	if items[0].Listing.Title != "c" || items[2].Listing.Title != "a" {
		t.Fatal("descending must be the reverse of ascending for distinct deadlines")
	}

	_ = now
}

func TestSortByDeadline_UsesResolverNotStoredColumn(t *testing.T) {
	now := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	// Stored column says March, but the application step ends in January;
	// the resolver output must drive the sort.
	stored := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	early := listingWithSteps("early",
		models.TimelineStep{Title: "청약신청", Date: "2025-01-20~2025-01-22"},
	)
	early.Deadline = &stored

	lateDeadline := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	late := &models.Listing{Title: "late", Deadline: &lateDeadline}

	items := []Resolved{Resolve(late, now), Resolve(early, now)}
	SortByDeadline(items, true)

	if items[0].Listing.Title != "early" {
		t.Fatalf("expected resolver-derived deadline to order 'early' first, got %s", items[0].Listing.Title)
	}
}

func TestFilterVisible(t *testing.T) {
	now := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	past := listingWithSteps("past", models.TimelineStep{Title: "발표", Date: "2025-02-01"})
	future := listingWithSteps("future", models.TimelineStep{Title: "청약신청", Date: "2025-02-20"})

	items := []Resolved{Resolve(past, now), Resolve(future, now)}
	visible := FilterVisible(items, now)

	if len(visible) != 1 || visible[0].Listing.Title != "future" {
		t.Fatalf("expected only 'future' visible, got %d items", len(visible))
	}
}
