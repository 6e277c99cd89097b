package listing

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/junho/bunyang-finder/internal/models"
)

// manPerEok converts 만원 amounts into 억 units.
const manPerEok = 10000

// amountPattern matches a single amount in 억/만원 notation: a compound
// "N억 M만원", a bare "N억" / "N.5억원", or a bare "M만원".
var amountPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*억(?:\s*([\d,]+)\s*만)?\s*원?|([\d,]+)\s*만\s*원`)

// ParsePrice extracts numeric bounds from free-text price notation, in 억
// units. The first amount found becomes the minimum and the second the
// maximum; a single amount yields min == max. Unparseable text degrades to
// zero bounds — the raw string stays display-only and parsing never fails.
//
//	"2억 6,127만원 ~ 2억 7,795만원" -> {2.6127, 2.7795}
//	"3.5억원"                      -> {3.5, 3.5}
//	"미정"                          -> {0, 0}
func ParsePrice(text string) models.PriceBounds {
	matches := amountPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return models.PriceBounds{}
	}

	amounts := make([]float64, 0, len(matches))
	for _, m := range matches {
		if v, ok := amountFromMatch(m); ok {
			amounts = append(amounts, v)
		}
	}
	if len(amounts) == 0 {
		return models.PriceBounds{}
	}

	bounds := models.PriceBounds{Min: amounts[0], Max: amounts[0]}
	if len(amounts) > 1 {
		bounds.Max = amounts[1]
	}
	if bounds.Min > bounds.Max {
		bounds.Min, bounds.Max = bounds.Max, bounds.Min
	}
	return bounds
}

func amountFromMatch(m []string) (float64, bool) {
	if m[1] != "" {
		eok, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		if m[2] != "" {
			man, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
			if err != nil {
				return 0, false
			}
			eok += man / manPerEok
		}
		return eok, true
	}

	if m[3] != "" {
		man, err := strconv.ParseFloat(strings.ReplaceAll(m[3], ",", ""), 64)
		if err != nil {
			return 0, false
		}
		return man / manPerEok, true
	}
	return 0, false
}

// FormatPrice renders a value in 억 units back to "N억 M만원" notation,
// rounded to 만원 precision so parse(format(v)) round-trips.
func FormatPrice(v float64) string {
	man := int64(math.Round(v * manPerEok))
	if man <= 0 {
		return ""
	}

	eok := man / manPerEok
	rem := man % manPerEok

	switch {
	case eok == 0:
		return fmt.Sprintf("%s만원", groupDigits(rem))
	case rem == 0:
		return fmt.Sprintf("%d억원", eok)
	default:
		return fmt.Sprintf("%d억 %s만원", eok, groupDigits(rem))
	}
}

// FormatBounds renders parsed bounds as display text: a single amount or
// a "min ~ max" range. Unparsed bounds render empty so callers fall back
// to the preserved raw text.
func FormatBounds(b models.PriceBounds) string {
	if !b.Parsed() {
		return ""
	}
	if b.Min == b.Max {
		return FormatPrice(b.Min)
	}
	return FormatPrice(b.Min) + " ~ " + FormatPrice(b.Max)
}

func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var sb strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}
