package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// DecisionStore implements domain.DecisionStore using PostgreSQL. Legs with
// their split schedules are stored as JSONB; the scalar columns carry what
// queries filter and aggregate on.
type DecisionStore struct {
	pool *pgxpool.Pool
}

// NewDecisionStore creates a new DecisionStore.
func NewDecisionStore(pool *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

// Create inserts a trade decision.
func (s *DecisionStore) Create(ctx context.Context, dec domain.TradeDecision) error {
	legs, err := json.Marshal(dec.Legs)
	if err != nil {
		return fmt.Errorf("postgres: marshal decision legs: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO decisions (id, opportunity_id, match_score, size, expected_profit,
			risk_level, risk_score, status, filled_size, realized_pnl, legs,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		dec.ID, dec.Opportunity.ID, dec.MatchScore, dec.Size, dec.ExpectedProfit,
		string(dec.RiskLevel), dec.RiskScore, string(dec.Status),
		dec.FilledSize, dec.RealizedPnL, legs, dec.CreatedAt, dec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert decision %s: %w", dec.ID, err)
	}
	return nil
}

// Get returns one decision by ID.
func (s *DecisionStore) Get(ctx context.Context, id string) (domain.TradeDecision, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, opportunity_id, match_score, size, expected_profit, risk_level,
			risk_score, status, filled_size, realized_pnl, legs, created_at, updated_at
		FROM decisions WHERE id = $1`, id)
	dec, err := scanDecision(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradeDecision{}, domain.ErrNotFound
		}
		return domain.TradeDecision{}, fmt.Errorf("postgres: get decision %s: %w", id, err)
	}
	return dec, nil
}

// UpdateStatus records the execution outcome of a decision.
func (s *DecisionStore) UpdateStatus(ctx context.Context, id string, status domain.DecisionStatus, filledSize, realizedPnL float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE decisions
		SET status = $2, filled_size = $3, realized_pnl = $4, updated_at = NOW()
		WHERE id = $1`,
		id, string(status), filledSize, realizedPnL,
	)
	if err != nil {
		return fmt.Errorf("postgres: update decision %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListRecent returns the most recently created decisions.
func (s *DecisionStore) ListRecent(ctx context.Context, limit int) ([]domain.TradeDecision, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.list(ctx, `
		SELECT id, opportunity_id, match_score, size, expected_profit, risk_level,
			risk_score, status, filled_size, realized_pnl, legs, created_at, updated_at
		FROM decisions ORDER BY created_at DESC LIMIT $1`, limit)
}

// ListBefore returns decisions created before cutoff, oldest first, for
// archival.
func (s *DecisionStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TradeDecision, error) {
	if limit <= 0 {
		limit = 1000
	}
	return s.list(ctx, `
		SELECT id, opportunity_id, match_score, size, expected_profit, risk_level,
			risk_score, status, filled_size, realized_pnl, legs, created_at, updated_at
		FROM decisions WHERE created_at < $1 ORDER BY created_at ASC LIMIT $2`, cutoff, limit)
}

// DeleteBefore removes decisions created before cutoff and reports how many
// rows went away.
func (s *DecisionStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM decisions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete decisions before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

// SumRealizedPnLSince totals realized PnL across decisions updated since the
// given instant. This feeds the daily loss ceiling.
func (s *DecisionStore) SumRealizedPnLSince(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(realized_pnl), 0) FROM decisions WHERE updated_at >= $1`,
		since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum realized pnl: %w", err)
	}
	return total, nil
}

func (s *DecisionStore) list(ctx context.Context, query string, args ...any) ([]domain.TradeDecision, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list decisions: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeDecision
	for rows.Next() {
		dec, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan decision: %w", err)
		}
		out = append(out, dec)
	}
	return out, rows.Err()
}

func scanDecision(row pgx.Row) (domain.TradeDecision, error) {
	var dec domain.TradeDecision
	var riskLevel, status string
	var legs []byte
	err := row.Scan(&dec.ID, &dec.Opportunity.ID, &dec.MatchScore, &dec.Size,
		&dec.ExpectedProfit, &riskLevel, &dec.RiskScore, &status,
		&dec.FilledSize, &dec.RealizedPnL, &legs, &dec.CreatedAt, &dec.UpdatedAt)
	if err != nil {
		return domain.TradeDecision{}, err
	}
	dec.RiskLevel = domain.RiskLevel(riskLevel)
	dec.Status = domain.DecisionStatus(status)
	if err := json.Unmarshal(legs, &dec.Legs); err != nil {
		return domain.TradeDecision{}, fmt.Errorf("unmarshal legs: %w", err)
	}
	return dec, nil
}

// Compile-time interface check.
var _ domain.DecisionStore = (*DecisionStore)(nil)
