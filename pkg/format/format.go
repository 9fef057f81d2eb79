// Package format renders raw metric values for display.
package format

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Invalid is rendered in place of non-finite input.
const Invalid = "-"

var suffixes = []string{"", "K", "M", "B", "T"}

// CompactNumber renders n in en-US compact notation with a single suffix
// and at most one fractional digit: 1234 -> "1.2K", 1500000 -> "1.5M".
func CompactNumber(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Invalid
	}

	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	tier := 0
	for tier < len(suffixes)-1 && n >= 1000 {
		n /= 1000
		tier++
	}

	// Rounding can carry into the next tier (999.95K -> 1M).
	rounded := roundHalfUp(n, 1)
	if rounded >= 1000 && tier < len(suffixes)-1 {
		rounded = roundHalfUp(rounded/1000, 1)
		tier++
	}

	s := strconv.FormatFloat(rounded, 'f', 1, 64)
	s = strings.TrimSuffix(s, ".0")
	if s == "0" {
		sign = ""
	}
	return sign + s + suffixes[tier]
}

// Percentage renders n with exactly digits fraction digits and a % suffix.
func Percentage(n float64, digits int) string {
	s := Fixed(n, digits)
	if s == Invalid {
		return s
	}
	return s + "%"
}

// Fixed renders n with exactly digits fraction digits.
func Fixed(n float64, digits int) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Invalid
	}
	digits = max(0, digits)
	return strconv.FormatFloat(roundHalfUp(n, digits), 'f', digits, 64)
}

// Date renders an ISO-8601 timestamp as dd/mm/yyyy.
// Input that does not parse is returned unchanged.
func Date(published string) string {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
		time.DateOnly,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, published); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return published
}

// Tier buckets an overall score for badge coloring.
type Tier string

// Score tiers.
const (
	TierHigh Tier = "high"
	TierMid  Tier = "mid"
	TierLow  Tier = "low"
)

// ScoreTier returns the badge tier for an overall score.
func ScoreTier(score float64) Tier {
	switch {
	case score > 80:
		return TierHigh
	case score > 50:
		return TierMid
	default:
		return TierLow
	}
}

// roundHalfUp rounds away from zero at the given number of decimals.
func roundHalfUp(n float64, digits int) float64 {
	p := math.Pow10(digits)
	r := math.Round(n*p) / p
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return n
	}
	return r
}
