package listing

import (
	"testing"
	"time"

	"github.com/junho/bunyang-finder/internal/models"
)

func sampleSteps() []ParsedStep {
	return ParseSteps([]models.TimelineStep{
		{Title: "모집공고", Date: "2025-01-10"},
		{Title: "청약신청", Date: "2025-01-20~2025-01-22"},
		{Title: "당첨자 발표", Date: "2025-02-01"},
	})
}

func TestResolveStage_PicksFirstFutureStep(t *testing.T) {
	today := time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

	stage := ResolveStage(sampleSteps(), today)
	if stage == nil {
		t.Fatal("expected a stage")
	}
	if stage.Title != "청약신청" {
		t.Fatalf("expected 청약신청, got %s", stage.Title)
	}
}

func TestResolveStage_AllPastReturnsLastDated(t *testing.T) {
	today := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	stage := ResolveStage(sampleSteps(), today)
	if stage == nil {
		t.Fatal("expected a stage")
	}
	if stage.Title != "당첨자 발표" {
		t.Fatalf("expected 당첨자 발표, got %s", stage.Title)
	}
}

func TestResolveStage_NoDatedStepsReturnsNil(t *testing.T) {
	steps := ParseSteps([]models.TimelineStep{
		{Title: "청약신청", Date: "미정"},
	})

	if stage := ResolveStage(steps, time.Now()); stage != nil {
		t.Fatalf("expected nil stage, got %s", stage.Title)
	}
}

func TestResolveStage_DoesNotAssumeSortedSteps(t *testing.T) {
	// Authored order has the later step first; the scan must stop at the
	// first qualifying step in authored order, not the chronologically
	// nearest one.
	steps := ParseSteps([]models.TimelineStep{
		{Title: "당첨자 발표", Date: "2025-02-01"},
		{Title: "청약신청", Date: "2025-01-20~2025-01-22"},
	})
	today := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	stage := ResolveStage(steps, today)
	if stage == nil || stage.Title != "당첨자 발표" {
		t.Fatalf("expected first qualifying step in authored order, got %+v", stage)
	}
}

func TestEffectiveDeadline_StageEndWins(t *testing.T) {
	today := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	stored := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	got := EffectiveDeadline(sampleSteps(), &stored, nil, today)
	want := time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestEffectiveDeadline_FallbackChain(t *testing.T) {
	today := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	stored := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	announced := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	// No dated steps: stored deadline wins.
	if got := EffectiveDeadline(nil, &stored, &announced, today); !got.Equal(stored) {
		t.Fatalf("expected stored deadline, got %s", got)
	}

	// No stored deadline: announcement date.
	if got := EffectiveDeadline(nil, nil, &announced, today); !got.Equal(announced) {
		t.Fatalf("expected announce date, got %s", got)
	}

	// Nothing at all: today, date-only.
	want := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	if got := EffectiveDeadline(nil, nil, nil, today); !got.Equal(want) {
		t.Fatalf("expected today, got %s", got)
	}
}

func TestWriteDeadline_PrefersApplicationKeyword(t *testing.T) {
	got, ok := WriteDeadline(sampleSteps())
	if !ok {
		t.Fatal("expected a write-path deadline")
	}

	// 청약신청 ends 2025-01-22; the later 당첨자 발표 (2025-02-01) is a
	// ceremonial milestone and must not win.
	want := time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestWriteDeadline_FirstKeywordMatchInAuthoredOrder(t *testing.T) {
	steps := ParseSteps([]models.TimelineStep{
		{Title: "청약신청", Date: "2025-01-20~2025-01-22"},
		{Title: "서류접수", Date: "2025-01-25~2025-01-27"},
	})

	got, ok := WriteDeadline(steps)
	if !ok {
		t.Fatal("expected a deadline")
	}
	want := time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("first keyword match must win, got %s", got)
	}
}

func TestWriteDeadline_NoKeywordFallsBackToLatestStep(t *testing.T) {
	steps := ParseSteps([]models.TimelineStep{
		{Title: "당첨자 발표", Date: "2025-02-01"},
		{Title: "계약체결", Date: "2025-02-10~2025-02-12"},
	})

	got, ok := WriteDeadline(steps)
	if !ok {
		t.Fatal("expected a deadline")
	}
	want := time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected chronologically last end date, got %s", got)
	}
}

func TestWriteDeadline_NoDatedSteps(t *testing.T) {
	steps := ParseSteps([]models.TimelineStep{
		{Title: "청약신청", Date: "추후 공지"},
	})

	if _, ok := WriteDeadline(steps); ok {
		t.Fatal("expected no deadline when no step has a parseable date")
	}
}
