package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/junho/bunyang-finder/internal/db"
)

type Pipeline struct {
	DB      *pgxpool.Pool
	Store   *db.Store
	Fetcher Fetcher
}

func NewPipeline(pool *pgxpool.Pool, fetcher Fetcher) *Pipeline {
	if fetcher == nil {
		// Default config for production. LH throttles aggressive
		// clients, so stay well under one request per second.
		config := FetchConfig{
			TimeoutSeconds: 30,
			MaxRetries:     3,
			RateLimitRPS:   0.5,
			AcceptLanguage: "ko-KR,ko;q=0.9,en;q=0.8",
		}
		fetcher = NewRateLimitedFetcher(config)
	}
	return &Pipeline{
		DB:      pool,
		Store:   db.NewStore(pool),
		Fetcher: fetcher,
	}
}

// CrawlSource runs one crawl for the given registry source and records
// the run in crawl_runs.
func (p *Pipeline) CrawlSource(ctx context.Context, sourceID string) (CrawlStats, error) {
	var runID string
	err := p.DB.QueryRow(ctx,
		"INSERT INTO crawl_runs (source_id, status) VALUES ($1, 'running') RETURNING run_id",
		sourceID).Scan(&runID)
	if err != nil {
		log.Printf("[warn] failed to create crawl run: %v", err)
	}

	start := time.Now()
	stats := CrawlStats{}

	defer func() {
		if runID == "" {
			return
		}
		status := "completed"
		if stats.TotalSaved == 0 && stats.TotalFound > 0 {
			status = "failed"
		}
		_, execErr := p.DB.Exec(ctx,
			`UPDATE crawl_runs SET
				status = $1,
				items_found = $2,
				items_saved = $3,
				errors = $4,
				completed_at = NOW(),
				details = $5
			WHERE run_id = $6`,
			status, stats.TotalFound, stats.TotalSaved, stats.Errors,
			fmt.Sprintf(`{"duration_ms": %d, "pdfs_parsed": %d}`, time.Since(start).Milliseconds(), stats.PDFsParsed),
			runID,
		)
		if execErr != nil {
			log.Printf("failed to update crawl run %s: %v", runID, execErr)
		}
	}()

	registry, err := LoadRegistry("internal/ingest/config/sources.yaml")
	if err != nil {
		return stats, fmt.Errorf("failed to load registry: %w", err)
	}

	config := registry.FindSource(sourceID)
	if config == nil {
		return stats, fmt.Errorf("source id %q not found in registry", sourceID)
	}

	log.Printf("starting crawl for source: %s (%s)", config.Name, config.ID)
	stats, err = p.crawlNoticeTable(ctx, *config)
	return stats, err
}

// CrawlAll runs every source in the registry, continuing past failures.
func (p *Pipeline) CrawlAll(ctx context.Context) (map[string]CrawlStats, error) {
	registry, err := LoadRegistry("internal/ingest/config/sources.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	results := make(map[string]CrawlStats)
	for _, src := range registry.Sources {
		stats, err := p.CrawlSource(ctx, src.ID)
		if err != nil {
			log.Printf("error crawling source %q: %v", src.ID, err)
			stats.Errors++
		}
		results[src.ID] = stats
	}
	return results, nil
}

func (p *Pipeline) crawlNoticeTable(ctx context.Context, config SourceConfig) (CrawlStats, error) {
	stats := CrawlStats{}

	listFetcher := Fetcher(CollyFetcherWithConfig(config.Fetch))
	doc, err := listFetcher.Fetch(ctx, config.ListURL)
	if err != nil {
		return stats, fmt.Errorf("fetching notice list: %w", err)
	}
	defer doc.Body.Close()

	notices, err := ParseLHNoticeTable(doc.Body, config)
	if err != nil {
		return stats, err
	}
	stats.TotalFound = len(notices)

	for _, raw := range notices {
		var pdf *PDFExtract
		if config.ParsePDFs && raw.PDFURL != "" {
			extract, pdfErr := FetchAndParsePDF(ctx, p.Fetcher, raw.PDFURL)
			if pdfErr != nil {
				log.Printf("pdf parse failed for %q: %v", raw.Title, pdfErr)
			} else {
				pdf = &extract
				stats.PDFsParsed++
			}
		}

		l := NormalizeNotice(raw, pdf)
		if _, err := p.Store.UpsertListing(ctx, &l); err != nil {
			log.Printf("failed to save %q: %v", l.Title, err)
			stats.Errors++
			continue
		}
		stats.TotalSaved++
	}

	log.Printf("crawl complete: %d/%d saved, %d PDFs parsed, %d errors",
		stats.TotalSaved, stats.TotalFound, stats.PDFsParsed, stats.Errors)
	return stats, nil
}
