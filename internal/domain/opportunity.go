package domain

import "time"

// ArbitrageOpportunity is the profitability verdict for the best
// complementary strategy across a matched pair of markets.
type ArbitrageOpportunity struct {
	ID             string
	MarketA        Market
	MarketB        Market
	OutcomeA       Outcome // side bought on MarketA
	OutcomeB       Outcome // side bought on MarketB
	PriceA         float64
	PriceB         float64
	Size           float64
	RawCost        float64 // PriceA + PriceB, fee-free
	FeeA           FeeStructure
	FeeB           FeeStructure
	TotalFees      float64
	TotalCost      float64
	ExpectedReturn float64
	NetProfit      float64
	ROIPercent     float64
	Valid          bool // guaranteed profitable after fees
	MeetsMinROI    bool
	Confidence     float64
	DetectedAt     time.Time
}

// GapPercent is the fee-free price gap, the headroom below $1 combined cost.
func (o ArbitrageOpportunity) GapPercent() float64 {
	return (1.0 - o.RawCost) * 100
}
