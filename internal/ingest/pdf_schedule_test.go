package ingest

import (
	"math"
	"testing"
)

const samplePDFText = `
입주자모집공고 위례 A1-5BL
전용면적 : 25㎡~44㎡
임대보증금 : 1,314만원~4,348만원
시공사 : 대방건설
청약일정 안내
특별공급 청약접수 2025.01.15
1순위 청약접수 2025.01.16
무순위 청약접수 2025/01/20
`

func TestParseNoticePDF_Schedule(t *testing.T) {
	extract := ParseNoticePDF(samplePDFText)

	if extract.Schedule.SpecialDate != "2025-01-15" {
		t.Errorf("special date = %q, want 2025-01-15", extract.Schedule.SpecialDate)
	}
	if extract.Schedule.FirstRankDate != "2025-01-16" {
		t.Errorf("first rank date = %q, want 2025-01-16", extract.Schedule.FirstRankDate)
	}
	if extract.Schedule.NoRankDate != "2025-01-20" {
		t.Errorf("no-rank date = %q, want 2025-01-20 (slashes canonicalized)", extract.Schedule.NoRankDate)
	}
}

func TestParseNoticePDF_AreaAndBuilder(t *testing.T) {
	extract := ParseNoticePDF(samplePDFText)

	if extract.AreaRange != "25㎡~44㎡" {
		t.Errorf("area range = %q, want 25㎡~44㎡", extract.AreaRange)
	}
	if extract.Builder == "" {
		t.Error("builder should be extracted")
	}
}

func TestParseNoticePDF_Deposit(t *testing.T) {
	extract := ParseNoticePDF(samplePDFText)

	if extract.DepositText == "" {
		t.Fatal("deposit text should be extracted")
	}
	// 1,314만원 and 4,348만원 in 억 units
	if math.Abs(extract.DepositMin-0.1314) > 1e-9 {
		t.Errorf("deposit min = %v, want 0.1314", extract.DepositMin)
	}
	if math.Abs(extract.DepositMax-0.4348) > 1e-9 {
		t.Errorf("deposit max = %v, want 0.4348", extract.DepositMax)
	}
}

func TestParseNoticePDF_MissingFieldsDegrade(t *testing.T) {
	extract := ParseNoticePDF("아무런 구조화된 정보가 없는 본문")

	if extract.Schedule != (ScheduleInfo{}) {
		t.Errorf("schedule should be empty: %+v", extract.Schedule)
	}
	if extract.AreaRange != "" || extract.DepositText != "" || extract.Builder != "" {
		t.Errorf("fields should degrade to empty: %+v", extract)
	}
	if extract.DepositMin != 0 || extract.DepositMax != 0 {
		t.Errorf("deposit bounds should stay zero: %v/%v", extract.DepositMin, extract.DepositMax)
	}
}

func TestExtractPDFText_RejectsGarbage(t *testing.T) {
	if _, err := extractPDFText([]byte("not a pdf at all")); err == nil {
		t.Fatal("expected error for non-PDF content")
	}
}
