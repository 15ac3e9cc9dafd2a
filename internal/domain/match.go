package domain

// MatchScore holds the per-dimension and blended scores produced when two
// markets are compared for equivalence.
type MatchScore struct {
	QuestionSimilarity      float64
	ResolutionCompatibility float64
	ExpiryAlignment         float64
	TimezoneMatch           float64
	Overall                 float64
	Acceptable              bool
	Warnings                []string
}

// MarketMatch is the full verdict on a candidate cross-platform pair.
type MarketMatch struct {
	MarketA     Market
	MarketB     Market
	Score       MatchScore
	Confidence  float64
	Recommended bool
	RiskFactors []string
}
