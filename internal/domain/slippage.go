package domain

import "time"

// SplitStrategy selects how an oversized order is divided into slices.
type SplitStrategy string

const (
	SplitExponential SplitStrategy = "exponential"
	SplitLiquidity   SplitStrategy = "liquidity"
)

// OrderSlice is one child order of a split execution plan.
type OrderSlice struct {
	Size        float64
	Type        OrderType
	Delay       time.Duration // wait before placing, relative to the previous slice
	PriceOffset float64       // absolute price concession vs the top of book
}

// SlippageEstimate is the projected execution quality of a taker order
// walked against a book snapshot.
type SlippageEstimate struct {
	Side            OrderSide
	RequestedSize   float64
	AvgPrice        float64
	BestPrice       float64
	Slippage        float64 // absolute adverse move of the average fill price
	SlippagePercent float64
	RecommendedSize float64 // depth resting within the slippage tolerance band
	Shortfall       bool    // book could not absorb the requested size
	Slices          []OrderSlice
}
