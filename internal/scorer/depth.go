// Package scorer computes the research depth score of a contact.
package scorer

import "math"

// Weights of each signal. Base is awarded for the contact existing.
const (
	WeightBase      = 0.10
	WeightWebSearch = 0.20
	WeightProfile   = 0.30
	WeightSocial    = 0.10
	WeightNews      = 0.10
	WeightSummary   = 0.20
)

// Signals records which sources produced usable output on a run.
type Signals struct {
	WebSearch bool // web search returned at least one result
	Profile   bool // professional profile lookup succeeded
	Social    bool // social probe returned at least one profile
	News      bool // news lookup returned at least one article
	Summary   bool // synthesis produced a non-empty summary
}

// Depth returns min(1, base + weights of the present signals), rounded to
// two decimals so equal signal sets always compare equal.
func Depth(s Signals) float64 {
	score := WeightBase
	if s.WebSearch {
		score += WeightWebSearch
	}
	if s.Profile {
		score += WeightProfile
	}
	if s.Social {
		score += WeightSocial
	}
	if s.News {
		score += WeightNews
	}
	if s.Summary {
		score += WeightSummary
	}
	return math.Min(1, math.Round(score*100)/100)
}
