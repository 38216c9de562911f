package scraper

import (
	"testing"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"dollar with thousands separator", "$1,234.56", "1234.56", true},
		{"plain number", "1234.56", "1234.56", true},
		{"euro symbol", "€99", "99", true},
		{"surrounding whitespace", "  $19.99  ", "19.99", true},
		{"currency suffix", "29.99 USD", "29.99", true},
		{"no digits", "N/A", "", false},
		{"empty string", "", "", false},
		{"zero price", "$0.00", "", false},
		{"only symbols", "$$", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ParsePrice(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if ok && got.String() != tt.want {
				t.Errorf("ParsePrice(%q) = %s, want %s", tt.raw, got.String(), tt.want)
			}
		})
	}
}

func TestExtractRating(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
		ok   bool
	}{
		{"amazon style", "4.5 out of 5 stars", 4.5, true},
		{"integer rating", "Rating: 3", 3, true},
		{"bare number", "4.7", 4.7, true},
		{"no number", "not yet rated", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractRating(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ExtractRating(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ExtractRating(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestExtractReviewCount(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
		ok   bool
	}{
		{"with thousands separator", "1,024 ratings", 1024, true},
		{"parenthesized", "(87)", 87, true},
		{"bare number", "42", 42, true},
		{"no number", "be the first to review", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractReviewCount(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ExtractReviewCount(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ExtractReviewCount(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}
