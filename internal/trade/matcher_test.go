package trade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/junho/bunyang-finder/internal/models"
)

type stubSource struct {
	records []models.TransactionRecord
	err     error

	gotCode string
	gotFrom time.Time
	gotTo   time.Time
}

func (s *stubSource) RecordsByDistrict(ctx context.Context, sigunguCode string, from, to time.Time) ([]models.TransactionRecord, error) {
	s.gotCode = sigunguCode
	s.gotFrom = from
	s.gotTo = to
	return s.records, s.err
}

func TestScoreTiers(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		candidate string
		want      float64
	}{
		{"exact", "래미안원베일리", "래미안원베일리", 1.0},
		{"candidate contains target", "원베일리", "래미안원베일리", 0.8},
		{"target contains candidate", "래미안원베일리", "원베일리", 0.8},
		{"empty target", "", "래미안", 0},
		{"empty candidate", "래미안", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.target, tt.candidate)
			if got != tt.want {
				t.Errorf("Score(%q, %q) = %v, want %v", tt.target, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestScoreFuzzyStaysBelowSubstring(t *testing.T) {
	// One rune off: similar but neither contains the other.
	got := Score("아크로리버파크", "아크로리버뷰파크")
	if got <= 0 || got >= 0.8 {
		t.Errorf("fuzzy score = %v, want between 0 and 0.8", got)
	}
}

func TestCleanApartmentName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"래미안 원베일리 (1단지)", "래미안원베일리"},
		{"힐스테이트 [2차]", "힐스테이트"},
		{"  DMC SK뷰  ", "dmcsk뷰"},
	}
	for _, tt := range tests {
		if got := CleanApartmentName(tt.in); got != tt.want {
			t.Errorf("CleanApartmentName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatchExactNameWins(t *testing.T) {
	src := &stubSource{records: []models.TransactionRecord{
		{ApartmentName: "아크로힐스논현", DealAmount: 24.8, DealDate: "2025-06-12", Dong: "논현동"},
		{ApartmentName: "아크로힐스논현", DealAmount: 23.5, DealDate: "2025-03-02", Dong: "논현동"},
		{ApartmentName: "아크로리버힐스", DealAmount: 19.0, DealDate: "2025-07-01", Dong: "논현동"},
	}}
	m := NewMatcher(src)

	results, err := m.Match(context.Background(), "아크로힐스논현", "11680")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ApartmentName != "아크로힐스논현" || results[0].Score != 1.0 {
		t.Errorf("top = %q score %v, want exact 아크로힐스논현 at 1.0", results[0].ApartmentName, results[0].Score)
	}
	if results[0].RecentPrice != 24.8 || results[0].RecentDate != "2025-06-12" {
		t.Errorf("recent trade = %v on %s, want 24.8 on 2025-06-12", results[0].RecentPrice, results[0].RecentDate)
	}
	if results[0].TradeCount != 2 {
		t.Errorf("trade count = %d, want 2", results[0].TradeCount)
	}
	if results[1].Score >= results[0].Score {
		t.Errorf("similar name scored %v, should rank below exact", results[1].Score)
	}

	best, ok := BestMatch(results)
	if !ok || best.ApartmentName != "아크로힐스논현" {
		t.Errorf("BestMatch = %+v ok=%v, want the exact match", best, ok)
	}
}

func TestMatchLookbackWindow(t *testing.T) {
	src := &stubSource{}
	m := NewMatcher(src)
	m.now = func() time.Time { return time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC) }

	if _, err := m.Match(context.Background(), "래미안", "11680"); err != nil {
		t.Fatalf("Match: %v", err)
	}
	if src.gotCode != "11680" {
		t.Errorf("district = %q, want 11680", src.gotCode)
	}
	wantFrom := time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC)
	if !src.gotFrom.Equal(wantFrom) {
		t.Errorf("from = %v, want %v", src.gotFrom, wantFrom)
	}
}

func TestMatchSourceError(t *testing.T) {
	src := &stubSource{err: errors.New("API returned 500")}
	m := NewMatcher(src)

	results, err := m.Match(context.Background(), "래미안", "11680")
	if err == nil {
		t.Fatal("expected error from failing source")
	}
	if results != nil {
		t.Errorf("results = %v, want nil on error", results)
	}
}

func TestBestMatchBelowThreshold(t *testing.T) {
	results := []models.MatchResult{{ApartmentName: "어딘가", Score: 0.3}}
	if _, ok := BestMatch(results); ok {
		t.Error("BestMatch accepted a score below the confidence floor")
	}
	if _, ok := BestMatch(nil); ok {
		t.Error("BestMatch accepted empty results")
	}
}
