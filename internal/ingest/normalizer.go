package ingest

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/junho/bunyang-finder/internal/listing"
	"github.com/junho/bunyang-finder/internal/models"
)

var textPolicy = bluemonday.StrictPolicy()

// sanitizeText strips any markup that leaked into a scraped field and
// collapses the whitespace the table markup leaves behind.
func sanitizeText(s string) string {
	clean := html.UnescapeString(textPolicy.Sanitize(s))
	return strings.Join(strings.Fields(clean), " ")
}

// NormalizeNotice converts a scraped notice row (plus whatever the PDF
// extractor recovered) into a listing ready for upsert. Price bounds and
// the stored deadline are derived here, on the write path, so reads never
// recompute them.
func NormalizeNotice(raw RawNotice, pdf *PDFExtract) models.Listing {
	l := models.Listing{
		Type:     NoticeTypeToListingType(raw.NoticeType),
		Title:    sanitizeText(raw.Title),
		Location: sanitizeText(raw.Region),
		Region:   NormalizeRegion(raw.Region),
		SourceID: raw.SourceID,
		PDFURL:   raw.PDFURL,
	}

	if announced, ok := parseNoticeDate(raw.AnnounceDate); ok {
		l.AnnounceDate = &announced
	}

	l.Extended.Tags = noticeTags(raw)

	if pdf != nil {
		l.AreaRange = pdf.AreaRange
		l.Builder = sanitizeText(pdf.Builder)
		l.Extended.Steps = scheduleSteps(pdf.Schedule)

		l.PriceText = pdf.DepositText
		l.SalePriceMin = pdf.DepositMin
		l.SalePriceMax = pdf.DepositMax
	}

	if l.Type == models.TypeLease {
		l.PriceLabel = "임대보증금"
	} else {
		l.PriceLabel = "분양가"
	}

	// PDF deposit parsing may have produced only raw text.
	if l.PriceText != "" && l.SalePriceMin == 0 && l.SalePriceMax == 0 {
		bounds := listing.ParsePrice(l.PriceText)
		l.SalePriceMin = bounds.Min
		l.SalePriceMax = bounds.Max
	}

	l.Deadline = deriveDeadline(l.Extended.Steps, raw.Deadline)

	return l
}

// deriveDeadline runs the write-path deadline resolver over the timeline
// steps; when no step carries an application date, the notice table's
// own 마감일 column is the fallback.
func deriveDeadline(steps []models.TimelineStep, rawDeadline string) *time.Time {
	if deadline, ok := listing.WriteDeadline(listing.ParseSteps(steps)); ok {
		return &deadline
	}
	if deadline, ok := parseNoticeDate(rawDeadline); ok {
		return &deadline
	}
	return nil
}

// scheduleSteps turns the PDF schedule dates into timeline steps, in
// round order. Rounds the PDF did not mention are omitted.
func scheduleSteps(schedule ScheduleInfo) []models.TimelineStep {
	var steps []models.TimelineStep
	if schedule.SpecialDate != "" {
		steps = append(steps, models.TimelineStep{Title: "특별공급 청약접수", Date: schedule.SpecialDate})
	}
	if schedule.FirstRankDate != "" {
		steps = append(steps, models.TimelineStep{Title: "1순위 청약접수", Date: schedule.FirstRankDate})
	}
	if schedule.NoRankDate != "" {
		steps = append(steps, models.TimelineStep{Title: "무순위 청약접수", Date: schedule.NoRankDate})
	}
	return steps
}

func noticeTags(raw RawNotice) []string {
	var tags []string
	if t := sanitizeText(raw.NoticeType); t != "" {
		tags = append(tags, t)
	}
	if s := sanitizeText(raw.Status); s != "" {
		tags = append(tags, s)
	}
	return tags
}

func parseNoticeDate(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", "2006.01.02", "2006/01/02"} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
