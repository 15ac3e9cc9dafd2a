package domain

import "time"

// DecisionStatus tracks a trade decision through its execution lifecycle.
type DecisionStatus string

const (
	DecisionPending   DecisionStatus = "pending"
	DecisionExecuting DecisionStatus = "executing"
	DecisionFilled    DecisionStatus = "filled"
	DecisionPartial   DecisionStatus = "partial"
	DecisionFailed    DecisionStatus = "failed"
	DecisionCancelled DecisionStatus = "cancelled"
)

// DecisionLeg is one side of a two-legged arbitrage entry, with its split
// execution schedule.
type DecisionLeg struct {
	Platform Platform
	MarketID string
	Outcome  Outcome
	Price    float64
	Size     float64
	Slices   []OrderSlice
}

// TradeDecision is the pipeline's final output for one opportunity: what to
// buy, where, at what size, and how to slice it.
type TradeDecision struct {
	ID             string
	Opportunity    ArbitrageOpportunity
	MatchScore     float64
	Legs           [2]DecisionLeg
	Size           float64
	ExpectedProfit float64
	RiskLevel      RiskLevel
	RiskScore      float64
	Status         DecisionStatus
	FilledSize     float64
	RealizedPnL    float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FillResult reports what an execution adapter actually got done for one
// child order.
type FillResult struct {
	FilledSize float64
	AvgPrice   float64
}

// ExecutionReport summarizes how a decision's split schedule played out.
type ExecutionReport struct {
	DecisionID    string
	Status        DecisionStatus
	RequestedSize float64
	FilledSize    float64
	SlicesPlaced  int
	SlicesTotal   int
	AbandonReason string
}
