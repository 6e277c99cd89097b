package ingest

import (
	"context"
	"io"
	"time"
)

// RawNotice is one untrusted row scraped from the LH notice table before
// normalization.
type RawNotice struct {
	SourceID     string // derived from the notice title, stable across crawls
	NoticeType   string // raw 유형 column ("국민임대", "공공분양", ...)
	Title        string
	Region       string // raw 지역 column
	AnnounceDate string // raw 공고일 column
	Deadline     string // raw 마감일 column
	Status       string // raw 상태 column ("공고중", "접수중", ...)
	PDFURL       string
	DetailURL    string
}

// ScheduleInfo holds the subscription dates pulled out of a notice PDF.
// Empty string means the pattern did not appear.
type ScheduleInfo struct {
	SpecialDate   string // 특별공급
	FirstRankDate string // 1순위
	NoRankDate    string // 무순위
}

// PDFExtract is everything the PDF parser could recover from a notice
// attachment. All fields degrade to zero values when absent.
type PDFExtract struct {
	Schedule     ScheduleInfo
	AreaRange    string  // 전용면적, e.g. "25㎡~44㎡"
	DepositText  string  // raw 임대보증금 text
	DepositMin   float64 // 억
	DepositMax   float64 // 억
	Builder      string
}

// CrawlStats summarizes one crawl run.
type CrawlStats struct {
	TotalFound int `json:"total_found"`
	TotalSaved int `json:"total_saved"`
	PDFsParsed int `json:"pdfs_parsed"`
	Errors     int `json:"errors"`
}

// FetchedDocument represents the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}
