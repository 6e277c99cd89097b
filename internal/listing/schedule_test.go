package listing

import (
	"testing"
	"time"

	"github.com/junho/bunyang-finder/internal/models"
)

func TestParseSteps_RangeAndSingle(t *testing.T) {
	steps := ParseSteps([]models.TimelineStep{
		{Title: "당첨자 발표", Date: "2025-02-01"},
		{Title: "청약신청", Date: "2025-01-20~2025-01-22"},
	})

	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}

	single := steps[0]
	if !single.Dated {
		t.Fatal("expected single-date step to be dated")
	}
	if !single.Start.Equal(single.End) {
		t.Fatalf("single date should have start == end, got %s / %s", single.Start, single.End)
	}

	ranged := steps[1]
	wantStart := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC)
	if !ranged.Start.Equal(wantStart) || !ranged.End.Equal(wantEnd) {
		t.Fatalf("range parsed as %s~%s", ranged.Start, ranged.End)
	}
}

func TestParseSteps_AlternateSeparators(t *testing.T) {
	steps := ParseSteps([]models.TimelineStep{
		{Title: "서류접수", Date: "2025.03.10~2025.03.12"},
		{Title: "발표", Date: "2025/04/01"},
	})

	if !steps[0].Dated || !steps[1].Dated {
		t.Fatal("dot and slash separated dates must parse")
	}
	if steps[0].End.Day() != 12 {
		t.Fatalf("expected end day 12, got %d", steps[0].End.Day())
	}
}

func TestParseSteps_UnparseableDegradesToUndated(t *testing.T) {
	steps := ParseSteps([]models.TimelineStep{
		{Title: "청약신청", Date: "추후 공지"},
		{Title: "계약", Date: ""},
		{Title: "발표", Date: "2025-05-01"},
	})

	if steps[0].Dated || steps[1].Dated {
		t.Fatal("unparseable dates must degrade to undated, not fail")
	}
	if steps[0].Raw != "추후 공지" {
		t.Fatalf("raw text must be preserved for display, got %q", steps[0].Raw)
	}
	if !steps[2].Dated {
		t.Fatal("valid step after undated ones must still parse")
	}
}

func TestParseSteps_OpenEndedRange(t *testing.T) {
	steps := ParseSteps([]models.TimelineStep{
		{Title: "접수", Date: "2025-01-20~"},
	})

	if !steps[0].Dated {
		t.Fatal("open-ended range should still be dated")
	}
	if !steps[0].End.Equal(steps[0].Start) {
		t.Fatal("missing range end must default to start")
	}
}
