// Package pipeline chains the decision stages for one candidate pair: market
// matching, fee-aware profitability, position sizing with split planning, and
// pre-trade risk controls. A pair that clears every gate becomes a persisted,
// published trade decision.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/junheony/prediction-arbitrage/internal/domain"
	"github.com/junheony/prediction-arbitrage/internal/matching"
	"github.com/junheony/prediction-arbitrage/internal/notify"
	"github.com/junheony/prediction-arbitrage/internal/profit"
	"github.com/junheony/prediction-arbitrage/internal/risk"
	"github.com/junheony/prediction-arbitrage/internal/sizing"
	"github.com/junheony/prediction-arbitrage/internal/slippage"
)

// Stream and channel names used on the signal bus.
const (
	DecisionChannel = "decisions"
	DecisionStream  = "stream:decisions"
)

// Drop reasons reported by EvaluatePair when a gate rejects the pair.
const (
	DropMatch    = "match"
	DropProfit   = "profit"
	DropSize     = "size"
	DropRisk     = "risk"
	DropExposure = "exposure"
)

// Config holds the pipeline's runtime parameters.
type Config struct {
	ScanInterval time.Duration
	Workers      int
	MinTradeSize float64
	ProbeSize    float64 // notional used for the first profitability pass
	LockTTL      time.Duration
}

// Pipeline owns the four decision gates and the side effects of an emitted
// decision: exposure reservation, persistence, notification, and publication.
type Pipeline struct {
	cfg       Config
	validator *matching.Validator
	calc      *profit.Calculator
	sizer     *sizing.Sizer
	estimator *slippage.Estimator
	risk      *risk.Controller
	markets   domain.MarketCache
	books     domain.OrderbookCache
	opps      domain.OpportunityStore
	decisions domain.DecisionStore
	bus       domain.SignalBus
	locks     domain.LockManager
	notifier  *notify.Notifier
	logger    *slog.Logger

	mu   sync.Mutex
	open map[string][]domain.OpenPosition // decision ID -> leg positions
}

// New creates a Pipeline. Stores, bus, locks, and notifier may be nil in
// reduced modes; the corresponding side effects are skipped.
func New(
	cfg Config,
	validator *matching.Validator,
	calc *profit.Calculator,
	sizer *sizing.Sizer,
	estimator *slippage.Estimator,
	riskCtrl *risk.Controller,
	markets domain.MarketCache,
	books domain.OrderbookCache,
	opps domain.OpportunityStore,
	decisions domain.DecisionStore,
	bus domain.SignalBus,
	locks domain.LockManager,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &Pipeline{
		cfg:       cfg,
		validator: validator,
		calc:      calc,
		sizer:     sizer,
		estimator: estimator,
		risk:      riskCtrl,
		markets:   markets,
		books:     books,
		opps:      opps,
		decisions: decisions,
		bus:       bus,
		locks:     locks,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "pipeline")),
		open:      make(map[string][]domain.OpenPosition),
	}
}

// EvaluatePair runs a cross-platform pair through every gate. It returns the
// emitted decision, or a drop reason naming the gate that rejected the pair.
func (p *Pipeline) EvaluatePair(ctx context.Context, a, b domain.Market) (domain.TradeDecision, string, error) {
	// Gate 1: are these the same real-world event?
	match, err := p.validator.Validate(a, b)
	if err != nil {
		return domain.TradeDecision{}, "", err
	}
	if !match.Recommended {
		return domain.TradeDecision{}, DropMatch, nil
	}

	// Gate 2: probe profitability at a fixed notional. The real size comes
	// later; this pass rejects pairs whose gap cannot survive fees at all.
	opp, ok, err := p.calc.Evaluate(a, b, p.cfg.ProbeSize)
	if err != nil {
		return domain.TradeDecision{}, "", err
	}
	if !ok || !opp.MeetsMinROI {
		return domain.TradeDecision{}, DropProfit, nil
	}

	bookA := p.bookFor(ctx, opp.MarketA, opp.OutcomeA)
	bookB := p.bookFor(ctx, opp.MarketB, opp.OutcomeB)

	// Gate 3: size the entry against the thinner leg.
	thin, thinBook := thinnerLeg(opp, bookA, bookB)
	cond := conditionsFor(thin, thinBook)
	rec := p.sizer.Recommend(opp.GapPercent(), cond, p.risk.Ledger().Total(), thinBook, domain.SideBuy)
	if rec.Size < p.cfg.MinTradeSize {
		return domain.TradeDecision{}, DropSize, nil
	}

	// Re-price at the recommended size: fees with absolute caps and fixed
	// components do not scale linearly.
	opp, ok, err = p.calc.Evaluate(a, b, rec.Size)
	if err != nil {
		return domain.TradeDecision{}, "", err
	}
	if !ok || !opp.MeetsMinROI {
		return domain.TradeDecision{}, DropProfit, nil
	}

	// Gate 4: risk controls against the current portfolio.
	candidate := domain.OpenPosition{
		MarketID:       opp.MarketA.ID,
		Platform:       opp.MarketA.Platform,
		Outcome:        opp.OutcomeA,
		Category:       opp.MarketA.Category,
		Size:           rec.Size,
		ExpectedReturn: opp.NetProfit / rec.Size,
		Volatility:     cond.Volatility,
	}
	eval := p.risk.EvaluateEntry(candidate, p.openPositions(), cond)
	if !eval.Allowed {
		if p.notifier != nil {
			if err := p.notifier.RiskDenied(ctx, eval); err != nil {
				p.logger.Debug("risk denial notification failed", slog.String("error", err.Error()))
			}
		}
		return domain.TradeDecision{}, DropRisk, nil
	}

	dec, err := p.emit(ctx, opp, match, rec, eval, bookA, bookB)
	if err != nil {
		return domain.TradeDecision{}, "", err
	}
	if dec.ID == "" {
		return domain.TradeDecision{}, DropExposure, nil
	}
	return dec, "", nil
}

// emit reserves exposure for both legs, builds the decision with its split
// schedules, persists it, and publishes it. A zero-ID decision with nil error
// means the exposure ledger rejected the reservation.
func (p *Pipeline) emit(
	ctx context.Context,
	opp domain.ArbitrageOpportunity,
	match domain.MarketMatch,
	rec domain.PositionRecommendation,
	eval domain.RiskEvaluation,
	bookA, bookB domain.OrderbookSnapshot,
) (domain.TradeDecision, error) {
	ledger := p.risk.Ledger()
	if err := ledger.Reserve(opp.MarketA.ID, rec.Size); err != nil {
		return domain.TradeDecision{}, nil
	}
	if err := ledger.Reserve(opp.MarketB.ID, rec.Size); err != nil {
		ledger.Release(opp.MarketA.ID, rec.Size)
		return domain.TradeDecision{}, nil
	}

	now := time.Now().UTC()
	dec := domain.TradeDecision{
		ID:          uuid.NewString(),
		Opportunity: opp,
		MatchScore:  match.Score.Overall,
		Legs: [2]domain.DecisionLeg{
			p.leg(opp.MarketA, opp.OutcomeA, opp.PriceA, rec.Size, bookA),
			p.leg(opp.MarketB, opp.OutcomeB, opp.PriceB, rec.Size, bookB),
		},
		Size:           rec.Size,
		ExpectedProfit: opp.NetProfit,
		RiskLevel:      eval.Level,
		RiskScore:      eval.Score,
		Status:         domain.DecisionPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if p.opps != nil {
		if err := p.opps.Create(ctx, opp); err != nil {
			p.releaseDecision(dec)
			return domain.TradeDecision{}, fmt.Errorf("pipeline: persist opportunity: %w", err)
		}
	}
	if p.decisions != nil {
		if err := p.decisions.Create(ctx, dec); err != nil {
			p.releaseDecision(dec)
			return domain.TradeDecision{}, fmt.Errorf("pipeline: persist decision: %w", err)
		}
	}

	p.trackOpen(dec)

	if p.bus != nil {
		if payload, err := json.Marshal(dec); err == nil {
			if err := p.bus.Publish(ctx, DecisionChannel, payload); err != nil {
				p.logger.Warn("decision publish failed", slog.String("error", err.Error()))
			}
			if err := p.bus.StreamAppend(ctx, DecisionStream, payload); err != nil {
				p.logger.Warn("decision stream append failed", slog.String("error", err.Error()))
			}
		}
	}
	if p.notifier != nil {
		if err := p.notifier.DecisionEmitted(ctx, dec); err != nil {
			p.logger.Debug("decision notification failed", slog.String("error", err.Error()))
		}
	}

	p.logger.Info("decision emitted",
		slog.String("decision_id", dec.ID),
		slog.String("market_a", opp.MarketA.ID),
		slog.String("market_b", opp.MarketB.ID),
		slog.Float64("size", dec.Size),
		slog.Float64("expected_profit", dec.ExpectedProfit),
		slog.Float64("roi_percent", opp.ROIPercent),
		slog.String("risk_level", string(dec.RiskLevel)),
	)
	return dec, nil
}

// leg builds one decision leg with its split schedule from the current book.
func (p *Pipeline) leg(m domain.Market, outcome domain.Outcome, price, size float64, book domain.OrderbookSnapshot) domain.DecisionLeg {
	est := p.estimator.Estimate(size, book, domain.SideBuy)
	return domain.DecisionLeg{
		Platform: m.Platform,
		MarketID: m.ID,
		Outcome:  outcome,
		Price:    price,
		Size:     size,
		Slices:   est.Slices,
	}
}

// bookFor returns the cached depth for one leg, or a synthetic top-of-book
// built from the quoted price when no snapshot has arrived yet.
func (p *Pipeline) bookFor(ctx context.Context, m domain.Market, outcome domain.Outcome) domain.OrderbookSnapshot {
	if p.books != nil {
		snap, err := p.books.GetSnapshot(ctx, m.Platform, m.ID, outcome)
		if err == nil && len(snap.Asks) > 0 {
			return snap
		}
	}
	return syntheticBook(m, outcome)
}

// syntheticBook approximates depth from the market's quoted price and
// reported liquidity, resting a quarter of it at the touch.
func syntheticBook(m domain.Market, outcome domain.Outcome) domain.OrderbookSnapshot {
	price := m.PriceFor(outcome)
	if price <= 0 {
		price = 0.5
	}
	depth := m.Liquidity * 0.25
	return domain.OrderbookSnapshot{
		Platform:  m.Platform,
		MarketID:  m.ID,
		Outcome:   outcome,
		Bids:      []domain.PriceLevel{{Price: math.Max(0.01, price-0.01), Size: depth / price}},
		Asks:      []domain.PriceLevel{{Price: price, Size: depth / price}},
		Timestamp: m.UpdatedAt,
	}
}

// thinnerLeg picks the leg with less reported liquidity; sizing against it
// keeps both legs fillable.
func thinnerLeg(opp domain.ArbitrageOpportunity, bookA, bookB domain.OrderbookSnapshot) (domain.Market, domain.OrderbookSnapshot) {
	if opp.MarketB.Liquidity < opp.MarketA.Liquidity {
		return opp.MarketB, bookB
	}
	return opp.MarketA, bookA
}

// conditionsFor derives sizing inputs from the market and its book. With no
// realized-variance feed, volatility is proxied by the relative spread.
func conditionsFor(m domain.Market, book domain.OrderbookSnapshot) domain.MarketConditions {
	cond := domain.MarketConditions{
		DepthUSD:     book.DepthUSD(domain.SideBuy, 2.0),
		RecentVolume: m.Volume24h,
	}
	if mid := book.Mid(); mid > 0 {
		cond.SpreadPercent = (book.BestAsk() - book.BestBid()) / mid * 100
	}
	cond.Volatility = math.Min(1, cond.SpreadPercent/10)
	cond.LiquidityScore = math.Min(1, m.Liquidity/100_000)*0.6 + math.Min(1, cond.DepthUSD/50_000)*0.4
	return cond
}

// pairKey is the distributed-lock key for a pair, stable under argument order.
func pairKey(a, b domain.Market) string {
	ka := string(a.Platform) + ":" + a.ID
	kb := string(b.Platform) + ":" + b.ID
	keys := []string{ka, kb}
	sort.Strings(keys)
	return "pair:" + keys[0] + "|" + keys[1]
}

func (p *Pipeline) trackOpen(dec domain.TradeDecision) {
	positions := make([]domain.OpenPosition, 0, len(dec.Legs))
	for _, leg := range dec.Legs {
		positions = append(positions, domain.OpenPosition{
			MarketID:       leg.MarketID,
			Platform:       leg.Platform,
			Outcome:        leg.Outcome,
			Category:       dec.Opportunity.MarketA.Category,
			Size:           leg.Size,
			ExpectedReturn: dec.ExpectedProfit / math.Max(dec.Size, 1),
			Volatility:     0.2,
		})
	}
	p.mu.Lock()
	p.open[dec.ID] = positions
	p.mu.Unlock()
}

func (p *Pipeline) openPositions() []domain.OpenPosition {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.OpenPosition
	for _, legs := range p.open {
		out = append(out, legs...)
	}
	return out
}

func (p *Pipeline) dropOpen(decisionID string) {
	p.mu.Lock()
	delete(p.open, decisionID)
	p.mu.Unlock()
}

func (p *Pipeline) shrinkOpen(decisionID string, filledSize float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	legs := p.open[decisionID]
	for i := range legs {
		legs[i].Size = filledSize
	}
}

// releaseDecision returns the ledger exposure held for both legs.
func (p *Pipeline) releaseDecision(dec domain.TradeDecision) {
	ledger := p.risk.Ledger()
	for _, leg := range dec.Legs {
		ledger.Release(leg.MarketID, leg.Size)
	}
}

// OnExecutionResult settles a decision after its split schedule ran: the
// store is updated, unfilled exposure is released, realized PnL feeds the
// daily loss ceiling, and partial fills are reported.
func (p *Pipeline) OnExecutionResult(ctx context.Context, dec domain.TradeDecision, rep domain.ExecutionReport, realizedPnL float64) {
	ledger := p.risk.Ledger()
	unfilled := math.Max(0, rep.RequestedSize-rep.FilledSize)
	for _, leg := range dec.Legs {
		switch rep.Status {
		case domain.DecisionFilled:
			// Exposure stays reserved until resolution; nothing to release.
		case domain.DecisionPartial:
			ledger.Release(leg.MarketID, unfilled)
		default:
			ledger.Release(leg.MarketID, leg.Size)
		}
	}

	switch rep.Status {
	case domain.DecisionFilled:
		// Filled legs remain live exposure for the correlation and VaR checks.
	case domain.DecisionPartial:
		p.shrinkOpen(dec.ID, rep.FilledSize)
	default:
		p.dropOpen(dec.ID)
	}

	p.risk.RecordPnL(realizedPnL)

	if p.decisions != nil {
		if err := p.decisions.UpdateStatus(ctx, dec.ID, rep.Status, rep.FilledSize, realizedPnL); err != nil {
			p.logger.Error("decision status update failed",
				slog.String("decision_id", dec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if p.notifier != nil && rep.Status == domain.DecisionPartial {
		if err := p.notifier.ExecutionPartial(ctx, rep); err != nil {
			p.logger.Debug("partial fill notification failed", slog.String("error", err.Error()))
		}
	}
}
