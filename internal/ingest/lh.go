package ingest

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/junho/bunyang-finder/internal/models"
)

// Notice table layout on the LH 청약센터 list page:
//   td[0] 번호, td[1] 유형, td[2] 제목, td[3] 지역, td[4] 첨부파일,
//   td[5] 공고일, td[6] 마감일, td[7] 상태, td[8] 조회수
const lhNoticeColumns = 9

var ageSuffixPattern = regexp.MustCompile(`\s*\d+일전\s*$`)

var regionAliases = []struct {
	keyword string
	region  string
}{
	{"서울", "서울"}, {"부산", "부산"}, {"대구", "대구"}, {"인천", "인천"},
	{"광주", "광주"}, {"대전", "대전"}, {"울산", "울산"}, {"세종", "세종"},
	{"경기", "경기"}, {"강원", "강원"},
	{"충청북", "충북"}, {"충북", "충북"},
	{"충청남", "충남"}, {"충남", "충남"},
	{"전라북", "전북"}, {"전북", "전북"},
	{"전라남", "전남"}, {"전남", "전남"},
	{"경상북", "경북"}, {"경북", "경북"},
	{"경상남", "경남"}, {"경남", "경남"},
	{"제주", "제주"},
}

// ParseLHNoticeTable extracts notice rows from the LH list page HTML.
// Rows with a missing title or too few columns are skipped, not errors.
func ParseLHNoticeTable(body io.Reader, cfg SourceConfig) ([]RawNotice, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parsing notice list: %w", err)
	}

	var notices []RawNotice
	doc.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		if cfg.MaxNotices > 0 && len(notices) >= cfg.MaxNotices {
			return
		}

		cells := row.Find("td")
		if cells.Length() < lhNoticeColumns {
			return
		}

		title := noticeTitle(cells.Eq(2))
		if title == "" {
			return
		}

		notices = append(notices, RawNotice{
			SourceID:     NoticeSourceID(title),
			NoticeType:   strings.TrimSpace(cells.Eq(1).Text()),
			Title:        title,
			Region:       strings.TrimSpace(cells.Eq(3).Text()),
			AnnounceDate: strings.TrimSpace(cells.Eq(5).Text()),
			Deadline:     strings.TrimSpace(cells.Eq(6).Text()),
			Status:       strings.TrimSpace(cells.Eq(7).Text()),
			PDFURL:       noticePDFURL(cells.Eq(4), cfg.PDFBaseURL),
		})
	})

	return notices, nil
}

// noticeTitle takes the span text of the title cell and strips the
// freshness badge ("1일전", "2일전") the site appends to recent notices.
func noticeTitle(cell *goquery.Selection) string {
	title := strings.TrimSpace(cell.Find("span").First().Text())
	if title == "" {
		title = strings.TrimSpace(cell.Text())
	}
	return strings.TrimSpace(ageSuffixPattern.ReplaceAllString(title, ""))
}

// noticePDFURL reconstructs the attachment download URL from the five
// data-id attributes on the file-download link.
func noticePDFURL(cell *goquery.Selection, baseURL string) string {
	link := cell.Find(`[class*="listFileDown"]`).First()
	if link.Length() == 0 || baseURL == "" {
		return ""
	}

	q := url.Values{}
	for i := 1; i <= 5; i++ {
		val, ok := link.Attr(fmt.Sprintf("data-id%d", i))
		if !ok {
			return ""
		}
		q.Set(fmt.Sprintf("pnuclrStle%d", i), val)
	}
	return baseURL + "?" + q.Encode()
}

// NoticeSourceID derives a stable identifier from the notice title. LH
// exposes no row id in the list markup, so the title is the only key
// that survives re-crawls.
func NoticeSourceID(title string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(title))
	if len(encoded) > 32 {
		encoded = encoded[:32]
	}
	return encoded
}

// NormalizeRegion maps the free-text 지역 column onto the canonical
// short region names used for filtering. Unknown regions pass through
// trimmed so nothing is silently dropped.
func NormalizeRegion(raw string) string {
	trimmed := strings.TrimSpace(raw)
	for _, alias := range regionAliases {
		if strings.Contains(trimmed, alias.keyword) {
			return alias.region
		}
	}
	return trimmed
}

// NoticeTypeToListingType maps the 유형 column onto a listing type.
// 임대 notices are leases, 분양 notices are sales, everything else is
// treated as an unsold-unit notice.
func NoticeTypeToListingType(noticeType string) string {
	switch {
	case strings.Contains(noticeType, "임대"):
		return models.TypeLease
	case strings.Contains(noticeType, "분양"):
		return models.TypeSale
	default:
		return models.TypeUnsold
	}
}
