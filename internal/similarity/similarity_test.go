package similarity

import (
	"testing"
	"time"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "STARBUCKS #123", "STARBUCKS #123", 1, 1},
		{"case and whitespace insensitive", "starbucks  store", "STARBUCKS STORE", 1, 1},
		{"both empty", "", "", 1, 1},
		{"one empty", "STARBUCKS", "", 0, 0},
		{"similar", "STARBUCKS STORE 123", "STARBUCKS STORE 124", 0.9, 0.999},
		{"dissimilar", "STARBUCKS", "SHELL OIL", 0, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ratio(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("Ratio(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func TestRatio_Symmetric(t *testing.T) {
	a, b := "WHOLEFDS MKT 10265", "WHOLE FOODS MARKET"
	if Ratio(a, b) != Ratio(b, a) {
		t.Errorf("Ratio is not symmetric for %q / %q", a, b)
	}
}

func TestNormalizeForComparison(t *testing.T) {
	got := NormalizeForComparison("  starbucks   store\t#99 ")
	want := "STARBUCKS STORE #99"
	if got != want {
		t.Errorf("NormalizeForComparison = %q, want %q", got, want)
	}
}

func TestDaysApart(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		b    time.Time
		want int
	}{
		{"same instant", base, 0},
		{"under a day", base.Add(23 * time.Hour), 0},
		{"two days later", base.AddDate(0, 0, 2), 2},
		{"two days earlier", base.AddDate(0, 0, -2), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysApart(base, tt.b); got != tt.want {
				t.Errorf("DaysApart = %d, want %d", got, tt.want)
			}
		})
	}
}
