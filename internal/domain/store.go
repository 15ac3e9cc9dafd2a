package domain

import (
	"context"
	"time"
)

// OpportunityStore persists detected opportunities for later analysis.
type OpportunityStore interface {
	Create(ctx context.Context, opp ArbitrageOpportunity) error
	ListRecent(ctx context.Context, limit int) ([]ArbitrageOpportunity, error)
}

// DecisionStore persists emitted trade decisions and their execution
// outcomes.
type DecisionStore interface {
	Create(ctx context.Context, dec TradeDecision) error
	Get(ctx context.Context, id string) (TradeDecision, error)
	UpdateStatus(ctx context.Context, id string, status DecisionStatus, filledSize, realizedPnL float64) error
	ListRecent(ctx context.Context, limit int) ([]TradeDecision, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]TradeDecision, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	SumRealizedPnLSince(ctx context.Context, since time.Time) (float64, error)
}
