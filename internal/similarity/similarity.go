// Package similarity holds the pure string and date comparison helpers shared
// by duplicate detection, merchant normalization, and quality scoring.
package similarity

import (
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
)

// Ratio returns a normalized edit-distance similarity in [0, 1]. Comparison
// is case-insensitive with collapsed whitespace; two empty strings are
// identical (1), an empty vs non-empty pair is fully dissimilar (0).
func Ratio(a, b string) float64 {
	na := NormalizeForComparison(a)
	nb := NormalizeForComparison(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}
	dist := levenshtein.ComputeDistance(na, nb)
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	return 1 - float64(dist)/float64(maxLen)
}

// NormalizeForComparison uppercases and collapses runs of whitespace.
func NormalizeForComparison(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// DaysApart returns the absolute whole-day distance between two instants.
func DaysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
