package listing

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name string
		text string
		min  float64
		max  float64
	}{
		{"compound range", "2억 6,127만원 ~ 2억 7,795만원", 2.6127, 2.7795},
		{"decimal single", "3.5억원", 3.5, 3.5},
		{"bare eok", "5억", 5, 5},
		{"bare man", "6,127만원", 0.6127, 0.6127},
		{"man range", "1,314만원~4,348만원", 0.1314, 0.4348},
		{"with label prefix", "분양가 2억 1,000만원", 2.1, 2.1},
		{"reversed range still ordered", "3억원 ~ 2억원", 2, 3},
		{"unparseable", "미정", 0, 0},
		{"empty", "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ParsePrice(tt.text)
			if !almostEqual(b.Min, tt.min) || !almostEqual(b.Max, tt.max) {
				t.Fatalf("ParsePrice(%q) = {%v, %v}, want {%v, %v}", tt.text, b.Min, b.Max, tt.min, tt.max)
			}
		})
	}
}

func TestParsePrice_RangeInvariant(t *testing.T) {
	b := ParsePrice("2억 6,127만원 ~ 2억 7,795만원")
	if b.Min > b.Max {
		t.Fatalf("range parse must keep min <= max, got {%v, %v}", b.Min, b.Max)
	}

	single := ParsePrice("3.5억원")
	if single.Min != single.Max {
		t.Fatalf("single amount must have min == max, got {%v, %v}", single.Min, single.Max)
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{2.6127, "2억 6,127만원"},
		{3.5, "3억 5,000만원"},
		{2, "2억원"},
		{0.6127, "6,127만원"},
		{0, ""},
	}

	for _, tt := range tests {
		if got := FormatPrice(tt.value); got != tt.want {
			t.Fatalf("FormatPrice(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestPriceRoundTrip(t *testing.T) {
	values := []float64{2.6127, 3.5, 0.1314, 12.0001, 1}

	for _, v := range values {
		text := FormatPrice(v)
		b := ParsePrice(text)
		if !almostEqual(b.Min, v) {
			t.Fatalf("round-trip %v -> %q -> %v", v, text, b.Min)
		}
	}
}

func TestFormatBounds(t *testing.T) {
	b := ParsePrice("2억 6,127만원 ~ 2억 7,795만원")
	want := "2억 6,127만원 ~ 2억 7,795만원"
	if got := FormatBounds(b); got != want {
		t.Fatalf("FormatBounds = %q, want %q", got, want)
	}

	reparsed := ParsePrice(FormatBounds(b))
	if !almostEqual(reparsed.Min, b.Min) || !almostEqual(reparsed.Max, b.Max) {
		t.Fatalf("bounds round-trip drifted: %+v -> %+v", b, reparsed)
	}

	single := ParsePrice("3.5억원")
	if got := FormatBounds(single); got != "3억 5,000만원" {
		t.Fatalf("single bound format = %q", got)
	}
}
