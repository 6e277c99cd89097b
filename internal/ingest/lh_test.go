package ingest

import (
	"strings"
	"testing"

	"github.com/junho/bunyang-finder/internal/models"
)

const sampleNoticeHTML = `
<table>
<tbody>
<tr>
  <td>317</td>
  <td>국민임대</td>
  <td><a href="#"><span>위례 A1-5BL 국민임대주택 예비입주자 모집  1일전</span></a></td>
  <td>경기도 성남시</td>
  <td><a class="btn listFileDown" data-id1="a1" data-id2="b2" data-id3="c3" data-id4="d4" data-id5="e5">PDF</a></td>
  <td>2025-01-02</td>
  <td>2025-01-22</td>
  <td>접수중</td>
  <td>1520</td>
</tr>
<tr>
  <td>316</td>
  <td>공공분양</td>
  <td><a href="#"><span>고덕강일 3단지 공공분양 입주자 모집공고</span></a></td>
  <td>서울특별시 강동구</td>
  <td></td>
  <td>2024-12-20</td>
  <td>2025-02-10</td>
  <td>공고중</td>
  <td>3205</td>
</tr>
<tr>
  <td colspan="9">공고가 없습니다</td>
</tr>
</tbody>
</table>
`

func testSourceConfig() SourceConfig {
	return SourceConfig{
		ID:         "lh_apply",
		PDFBaseURL: "https://apply.lh.or.kr/lhapply/wt/wrtanc/wrtFileDownl.do",
	}
}

func TestParseLHNoticeTable(t *testing.T) {
	notices, err := ParseLHNoticeTable(strings.NewReader(sampleNoticeHTML), testSourceConfig())
	if err != nil {
		t.Fatalf("ParseLHNoticeTable: %v", err)
	}
	if len(notices) != 2 {
		t.Fatalf("got %d notices, want 2 (placeholder row skipped)", len(notices))
	}

	first := notices[0]
	if first.Title != "위례 A1-5BL 국민임대주택 예비입주자 모집" {
		t.Errorf("title = %q, freshness badge should be stripped", first.Title)
	}
	if first.NoticeType != "국민임대" || first.Status != "접수중" {
		t.Errorf("type/status = %q/%q", first.NoticeType, first.Status)
	}
	if first.AnnounceDate != "2025-01-02" || first.Deadline != "2025-01-22" {
		t.Errorf("dates = %q/%q", first.AnnounceDate, first.Deadline)
	}
	if !strings.Contains(first.PDFURL, "pnuclrStle1=a1") || !strings.Contains(first.PDFURL, "pnuclrStle5=e5") {
		t.Errorf("pdf url not reconstructed from data-id attrs: %q", first.PDFURL)
	}
	if first.SourceID == "" || first.SourceID != NoticeSourceID(first.Title) {
		t.Errorf("source id must be derived from the title: %q", first.SourceID)
	}

	second := notices[1]
	if second.PDFURL != "" {
		t.Errorf("notice without attachment should have empty pdf url, got %q", second.PDFURL)
	}
}

func TestParseLHNoticeTable_MaxNotices(t *testing.T) {
	cfg := testSourceConfig()
	cfg.MaxNotices = 1

	notices, err := ParseLHNoticeTable(strings.NewReader(sampleNoticeHTML), cfg)
	if err != nil {
		t.Fatalf("ParseLHNoticeTable: %v", err)
	}
	if len(notices) != 1 {
		t.Fatalf("got %d notices, want 1", len(notices))
	}
}

func TestNormalizeRegion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"서울특별시 강동구", "서울"},
		{"경기도 성남시", "경기"},
		{"충청북도 청주시", "충북"},
		{"전라남도 여수시", "전남"},
		{"해외", "해외"}, // unknown passes through
	}
	for _, tt := range tests {
		if got := NormalizeRegion(tt.in); got != tt.want {
			t.Errorf("NormalizeRegion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNoticeTypeToListingType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"국민임대", models.TypeLease},
		{"행복주택 임대", models.TypeLease},
		{"공공분양", models.TypeSale},
		{"잔여세대", models.TypeUnsold},
	}
	for _, tt := range tests {
		if got := NoticeTypeToListingType(tt.in); got != tt.want {
			t.Errorf("NoticeTypeToListingType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNoticeSourceIDStable(t *testing.T) {
	a := NoticeSourceID("위례 A1-5BL 국민임대주택")
	b := NoticeSourceID("위례 A1-5BL 국민임대주택")
	if a != b {
		t.Fatalf("source id must be stable: %q != %q", a, b)
	}
	if len(a) > 32 {
		t.Fatalf("source id too long: %d", len(a))
	}
}
