// Package sentiment summarizes the comment sentiment of a profile's posts.
package sentiment

import (
	"math"

	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
)

// Summary is the positive/negative split shown for a profile.
//
// When no post carries a breakdown the split falls back to the precomputed
// score and its complement, and UsingFallback is set.
type Summary struct {
	Positive      int  `json:"positive"`
	Negative      int  `json:"negative"`
	Score         int  `json:"score"`
	UsingFallback bool `json:"using_fallback"`
}

// Aggregate sums the good and bad comment counts across posts.
// A missing count contributes zero.
func Aggregate(posts []creator.Post, score int) Summary {
	var good, bad int
	for _, p := range posts {
		p.Normalize()
		if !p.HasBreakdown() {
			continue
		}
		good += *p.GoodComments
		bad += *p.BadComments
	}

	if good+bad == 0 {
		return Summary{Positive: score, Negative: 100 - score, Score: score, UsingFallback: true}
	}
	return Summary{Positive: good, Negative: bad, Score: score}
}

// Total is the number of classified comments, or 100 for the fallback split.
func (s Summary) Total() int {
	return s.Positive + s.Negative
}

// Percent is the positive share displayed next to the split.
//
// Real totals use the live ratio. The fallback uses the precomputed score as
// is, so the two can disagree for the same profile.
func (s Summary) Percent() int {
	if s.UsingFallback {
		return s.Score
	}
	total := s.Total()
	if total <= 0 {
		return s.Score
	}
	return int(math.Round(float64(s.Positive) / float64(total) * 100))
}
