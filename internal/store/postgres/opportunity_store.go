package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
// Only the decision-relevant projection of an opportunity is persisted; the
// full market snapshots live in the cache.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Create inserts a detected opportunity.
func (s *OpportunityStore) Create(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO opportunities (id, platform_a, market_a, platform_b, market_b,
			outcome_a, outcome_b, price_a, price_b, size, raw_cost, total_fees,
			total_cost, net_profit, roi_percent, confidence, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		opp.ID, string(opp.MarketA.Platform), opp.MarketA.ID,
		string(opp.MarketB.Platform), opp.MarketB.ID,
		string(opp.OutcomeA), string(opp.OutcomeB),
		opp.PriceA, opp.PriceB, opp.Size, opp.RawCost, opp.TotalFees,
		opp.TotalCost, opp.NetProfit, opp.ROIPercent, opp.Confidence, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the most recently detected opportunities.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, platform_a, market_a, platform_b, market_b, outcome_a, outcome_b,
			price_a, price_b, size, raw_cost, total_fees, total_cost, net_profit,
			roi_percent, confidence, detected_at
		FROM opportunities ORDER BY detected_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.ArbitrageOpportunity
	for rows.Next() {
		var opp domain.ArbitrageOpportunity
		var platA, platB, outA, outB string
		if err := rows.Scan(&opp.ID, &platA, &opp.MarketA.ID, &platB, &opp.MarketB.ID,
			&outA, &outB, &opp.PriceA, &opp.PriceB, &opp.Size, &opp.RawCost,
			&opp.TotalFees, &opp.TotalCost, &opp.NetProfit, &opp.ROIPercent,
			&opp.Confidence, &opp.DetectedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opp.MarketA.Platform = domain.Platform(platA)
		opp.MarketB.Platform = domain.Platform(platB)
		opp.OutcomeA = domain.Outcome(outA)
		opp.OutcomeB = domain.Outcome(outB)
		opp.Valid = true
		out = append(out, opp)
	}
	return out, rows.Err()
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
