package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	rpdf "rsc.io/pdf"
)

// Subscription-schedule patterns. LH notice PDFs mention each round's
// date shortly after its label, in yyyy-mm-dd, yyyy.mm.dd or yyyy/mm/dd.
var (
	noRankDatePattern    = regexp.MustCompile(`(?s)무순위.*?(\d{4}[-./]\d{2}[-./]\d{2})`)
	firstRankDatePattern = regexp.MustCompile(`(?s)1순위.*?(\d{4}[-./]\d{2}[-./]\d{2})`)
	specialDatePattern   = regexp.MustCompile(`(?s)특별[공급청약]*.*?(\d{4}[-./]\d{2}[-./]\d{2})`)
)

var exclusiveAreaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`전용[면적]*\s*[:：]?\s*([\d.,~\s㎡]+)`),
	regexp.MustCompile(`([\d.]+㎡\s*~\s*[\d.]+㎡)`),
	regexp.MustCompile(`([\d.]+㎡(?:\s*,\s*[\d.]+㎡)+)`),
}

var depositPatterns = []*regexp.Regexp{
	regexp.MustCompile(`임대보증금\s*[:：]?\s*([\d,천만억원\s~-]+)`),
	regexp.MustCompile(`보증금\s*[:：]?\s*([\d,천만억원\s~-]+)`),
}

var builderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`시공[사업체]*\s*[:：]?\s*([가-힣\s(주)]+)`),
	regexp.MustCompile(`건설사\s*[:：]?\s*([가-힣\s(주)]+)`),
}

var depositNumberPattern = regexp.MustCompile(`[\d,]+`)

func extractPDFText(content []byte) (text string, err error) {
	// rsc.io/pdf panics on malformed files; a bad attachment must not
	// take down the crawl.
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			builder.WriteString(fragment.S)
			builder.WriteString(" ")
		}
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

// ParseNoticePDF pulls the structured fields out of already-extracted
// PDF text. Every field degrades independently to its zero value.
func ParseNoticePDF(text string) PDFExtract {
	extract := PDFExtract{
		Schedule:  extractSchedule(text),
		AreaRange: extractExclusiveArea(text),
		Builder:   extractBuilder(text),
	}
	extract.DepositText, extract.DepositMin, extract.DepositMax = extractDeposit(text)
	return extract
}

func extractSchedule(text string) ScheduleInfo {
	info := ScheduleInfo{}
	if m := noRankDatePattern.FindStringSubmatch(text); m != nil {
		info.NoRankDate = canonicalDate(m[1])
	}
	if m := firstRankDatePattern.FindStringSubmatch(text); m != nil {
		info.FirstRankDate = canonicalDate(m[1])
	}
	if m := specialDatePattern.FindStringSubmatch(text); m != nil {
		info.SpecialDate = canonicalDate(m[1])
	}
	return info
}

func canonicalDate(raw string) string {
	return strings.NewReplacer(".", "-", "/", "-").Replace(raw)
}

func extractExclusiveArea(text string) string {
	for _, pattern := range exclusiveAreaPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// extractDeposit returns the raw deposit text plus min/max converted
// from 만원 to 억. A single number (or none) leaves the bounds at zero.
func extractDeposit(text string) (string, float64, float64) {
	for _, pattern := range depositPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		rangeText := strings.TrimSpace(m[1])

		numbers := depositNumberPattern.FindAllString(rangeText, -1)
		if len(numbers) >= 2 {
			min, errMin := strconv.ParseFloat(strings.ReplaceAll(numbers[0], ",", ""), 64)
			max, errMax := strconv.ParseFloat(strings.ReplaceAll(numbers[1], ",", ""), 64)
			if errMin == nil && errMax == nil {
				return rangeText, min / 10000, max / 10000
			}
		}
		return rangeText, 0, 0
	}
	return "", 0, 0
}

func extractBuilder(text string) string {
	for _, pattern := range builderPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// FetchAndParsePDF downloads a notice attachment and extracts its
// structured fields. A zero-value extract with an error means the PDF
// itself could not be read; the notice still saves without it.
func FetchAndParsePDF(ctx context.Context, fetcher Fetcher, pdfURL string) (PDFExtract, error) {
	doc, err := fetcher.Fetch(ctx, pdfURL)
	if err != nil {
		return PDFExtract{}, err
	}
	defer doc.Body.Close()

	content, err := io.ReadAll(doc.Body)
	if err != nil {
		return PDFExtract{}, fmt.Errorf("pdf read failed: %w", err)
	}

	text, err := extractPDFText(content)
	if err != nil {
		return PDFExtract{}, fmt.Errorf("pdf text extraction failed: %w", err)
	}

	return ParseNoticePDF(text), nil
}
