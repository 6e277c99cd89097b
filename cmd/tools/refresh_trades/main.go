package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/junho/bunyang-finder/internal/db"
	"github.com/junho/bunyang-finder/internal/trade"
)

// Batch trade-price refresh: for every listing that carries a district
// code and an original sale price, look up recent real transactions,
// take the best-matching apartment and persist its latest price plus the
// derived margin. Candidates below the confidence floor are reported but
// never applied.
func main() {
	_ = godotenv.Load()

	limit := flag.Int("limit", 100, "Max listings to refresh")
	dryRun := flag.Bool("dry-run", false, "Report matches without persisting")
	rateLimitMs := flag.Int("rate-limit-ms", 1000, "Delay between MOLIT calls in milliseconds")
	flag.Parse()

	serviceKey := os.Getenv("MOLIT_SERVICE_KEY")
	if serviceKey == "" {
		log.Fatal("MOLIT_SERVICE_KEY is required")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `
		SELECT id, title, apartment_name, sigungu_code, original_price
		FROM listings
		WHERE deleted_at IS NULL
		  AND sigungu_code <> ''
		  AND original_price > 0
		ORDER BY last_price_update NULLS FIRST
		LIMIT $1`, *limit)
	if err != nil {
		log.Fatal(err)
	}

	type target struct {
		id, title, apartmentName, sigunguCode string
		originalPrice                         float64
	}
	var targets []target
	for rows.Next() {
		var tg target
		if err := rows.Scan(&tg.id, &tg.title, &tg.apartmentName, &tg.sigunguCode, &tg.originalPrice); err != nil {
			log.Printf("Scan error: %v", err)
			continue
		}
		targets = append(targets, tg)
	}
	rows.Close()

	store := db.NewStore(pool)
	matcher := trade.NewMatcher(trade.NewMolitClient(serviceKey))

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Listing", "Match", "Score", "Price", "Margin", "Rate%", "Applied"})

	applied, skipped, failed := 0, 0, 0
	for i, tg := range targets {
		name := tg.apartmentName
		if name == "" {
			name = tg.title
		}

		matches, err := matcher.Match(ctx, name, tg.sigunguCode)
		if err != nil {
			log.Printf("match failed for %q: %v", tg.title, err)
			failed++
			continue
		}

		best, ok := trade.BestMatch(matches)
		if !ok {
			t.AppendRow(table.Row{tg.title, "-", "-", "-", "-", "-", "no match"})
			skipped++
			continue
		}

		margin, err := trade.ComputeMargin(tg.originalPrice, best.RecentPrice)
		if err != nil {
			log.Printf("margin not computable for %q: %v", tg.title, err)
			failed++
			continue
		}

		status := "dry-run"
		if !*dryRun {
			if err := store.ApplyTradePrice(ctx, tg.id, best.ApartmentName,
				best.RecentPrice, best.RecentDate, margin.Amount, margin.Rate); err != nil {
				log.Printf("failed to apply trade price for %q: %v", tg.title, err)
				failed++
				continue
			}
			status = "yes"
		}
		applied++

		t.AppendRow(table.Row{
			tg.title, best.ApartmentName,
			fmt.Sprintf("%.2f", best.Score),
			fmt.Sprintf("%.2f억", best.RecentPrice),
			fmt.Sprintf("%+.2f억", margin.Amount),
			fmt.Sprintf("%+.1f", margin.Rate),
			status,
		})

		if i < len(targets)-1 && *rateLimitMs > 0 {
			time.Sleep(time.Duration(*rateLimitMs) * time.Millisecond)
		}
	}
	t.Render()

	fmt.Printf("\nTotals: applied=%d no_match=%d failed=%d\n", applied, skipped, failed)
}
