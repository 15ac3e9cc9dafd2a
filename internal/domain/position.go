package domain

// MarketConditions summarizes the live trading environment of a market,
// derived from its cached book and recent prints.
type MarketConditions struct {
	Volatility     float64 // recent price variance, 0..1
	LiquidityScore float64 // 0..1 composite of depth and spread
	DepthUSD       float64 // resting notional near the top of book
	SpreadPercent  float64
	RecentVolume   float64
}

// SizeAdjustment records one multiplicative factor applied while sizing a
// position, for audit.
type SizeAdjustment struct {
	Name       string
	Multiplier float64
	Score      float64 // the factor's contribution to sizing confidence, 0..1
}

// PositionRecommendation is the sizer's verdict for one candidate entry.
type PositionRecommendation struct {
	Size             float64
	BaseSize         float64
	Adjustments      []SizeAdjustment
	EstimatedSlipPct float64
	Confidence       float64
	RiskScore        float64
}

// OpenPosition is a live exposure tracked by the risk layer.
type OpenPosition struct {
	MarketID       string
	Platform       Platform
	Outcome        Outcome
	Category       string
	Size           float64 // notional at risk, USD
	ExpectedReturn float64
	Volatility     float64
}
