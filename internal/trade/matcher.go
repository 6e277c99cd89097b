package trade

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/junho/bunyang-finder/internal/models"
)

const (
	// LookbackMonths bounds how far back trade history is searched.
	LookbackMonths = 24

	// MinConfidence is the score floor for BestMatch. Candidates below
	// it are still returned for operator review, never auto-applied.
	MinConfidence = 0.5
)

var parenPattern = regexp.MustCompile(`[\(\[].*?[\)\]]`)

// Matcher scores apartment names from trade records against a listing
// name. Scores: 1.0 exact, 0.8 substring either way, otherwise an
// edit-distance similarity capped below the substring tier.
type Matcher struct {
	source Source
	now    func() time.Time
}

func NewMatcher(source Source) *Matcher {
	return &Matcher{source: source, now: time.Now}
}

// Match fetches trade records for the listing's district and returns
// candidates grouped by apartment name, best score first. An empty slice
// with a nil error means the district had records but none grouped; a
// non-nil error means the lookup itself failed and the caller should
// surface "no match" with the reason.
func (m *Matcher) Match(ctx context.Context, listingName, sigunguCode string) ([]models.MatchResult, error) {
	to := m.now()
	from := to.AddDate(0, -LookbackMonths, 0)

	records, err := m.source.RecordsByDistrict(ctx, sigunguCode, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetching trades for %s: %w", sigunguCode, err)
	}
	return m.rank(listingName, records), nil
}

func (m *Matcher) rank(listingName string, records []models.TransactionRecord) []models.MatchResult {
	target := CleanApartmentName(listingName)
	if target == "" {
		return nil
	}

	type group struct {
		name   string
		latest models.TransactionRecord
		count  int
	}
	groups := map[string]*group{}
	for _, rec := range records {
		g, ok := groups[rec.ApartmentName]
		if !ok {
			g = &group{name: rec.ApartmentName, latest: rec}
			groups[rec.ApartmentName] = g
		}
		g.count++
		if rec.DealDate > g.latest.DealDate {
			g.latest = rec
		}
	}

	results := make([]models.MatchResult, 0, len(groups))
	for _, g := range groups {
		score := Score(target, CleanApartmentName(g.name))
		if score <= 0 {
			continue
		}
		results = append(results, models.MatchResult{
			ApartmentName: g.name,
			Score:         score,
			RecentPrice:   g.latest.DealAmount,
			RecentDate:    g.latest.DealDate,
			TradeCount:    g.count,
			Dong:          g.latest.Dong,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ApartmentName < results[j].ApartmentName
	})
	return results
}

// BestMatch returns the top candidate if it clears the confidence floor.
func BestMatch(results []models.MatchResult) (models.MatchResult, bool) {
	if len(results) == 0 || results[0].Score < MinConfidence {
		return models.MatchResult{}, false
	}
	return results[0], true
}

// Score compares two already-cleaned apartment names.
func Score(target, candidate string) float64 {
	if target == "" || candidate == "" {
		return 0
	}
	if target == candidate {
		return 1.0
	}
	if strings.Contains(candidate, target) || strings.Contains(target, candidate) {
		return 0.8
	}

	dist := levenshtein.ComputeDistance(target, candidate)
	longer := len([]rune(target))
	if n := len([]rune(candidate)); n > longer {
		longer = n
	}
	if longer == 0 {
		return 0
	}
	sim := 1.0 - float64(dist)/float64(longer)
	if sim < 0 {
		sim = 0
	}
	// Cap edit-distance matches below the substring tier so a fuzzy hit
	// never outranks a containment hit.
	return sim * 0.6
}

// CleanApartmentName normalizes a name for comparison: parenthetical and
// bracketed qualifiers removed, whitespace collapsed away, lowercased.
func CleanApartmentName(name string) string {
	s := parenPattern.ReplaceAllString(name, "")
	s = strings.Join(strings.Fields(s), "")
	return strings.ToLower(s)
}
