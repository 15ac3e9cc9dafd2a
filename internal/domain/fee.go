package domain

// FeeSchedule is the static fee table for one platform, loaded from
// configuration at startup.
type FeeSchedule struct {
	Platform      Platform
	PercentFee    float64 // percent of notional charged on a fill
	WithdrawalFee float64 // flat fee per withdrawal; half is attributed per trade
	GasFeeAvg     float64 // average on-chain cost per settlement, USD
	GasFeeMax     float64 // ceiling on the gas component; 0 means 4x the average
	FeeCap        float64 // Kalshi-style absolute ceiling on the trading fee; 0 means no cap
}

// FeeStructure is the fee breakdown for one leg at a given size and price.
type FeeStructure struct {
	Platform    Platform
	TradingFee  float64
	FixedFee    float64
	GasFee      float64
	Total       float64
	PercentCost float64 // Total as a percent of notional
}
