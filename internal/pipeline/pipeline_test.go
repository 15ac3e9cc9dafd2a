package pipeline

import (
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/junheony/prediction-arbitrage/internal/config"
	"github.com/junheony/prediction-arbitrage/internal/domain"
	"github.com/junheony/prediction-arbitrage/internal/fees"
	"github.com/junheony/prediction-arbitrage/internal/matching"
	"github.com/junheony/prediction-arbitrage/internal/profit"
	"github.com/junheony/prediction-arbitrage/internal/risk"
	"github.com/junheony/prediction-arbitrage/internal/sizing"
	"github.com/junheony/prediction-arbitrage/internal/slippage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// In-memory fakes for the persistence and bus boundaries.

type memOppStore struct {
	mu   sync.Mutex
	opps []domain.ArbitrageOpportunity
}

func (s *memOppStore) Create(_ context.Context, opp domain.ArbitrageOpportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opps = append(s.opps, opp)
	return nil
}

func (s *memOppStore) ListRecent(_ context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ArbitrageOpportunity(nil), s.opps...), nil
}

type memDecisionStore struct {
	mu   sync.Mutex
	decs map[string]domain.TradeDecision
}

func newMemDecisionStore() *memDecisionStore {
	return &memDecisionStore{decs: make(map[string]domain.TradeDecision)}
}

func (s *memDecisionStore) Create(_ context.Context, dec domain.TradeDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decs[dec.ID] = dec
	return nil
}

func (s *memDecisionStore) Get(_ context.Context, id string) (domain.TradeDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dec, ok := s.decs[id]
	if !ok {
		return domain.TradeDecision{}, domain.ErrNotFound
	}
	return dec, nil
}

func (s *memDecisionStore) UpdateStatus(_ context.Context, id string, status domain.DecisionStatus, filledSize, realizedPnL float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dec, ok := s.decs[id]
	if !ok {
		return domain.ErrNotFound
	}
	dec.Status = status
	dec.FilledSize = filledSize
	dec.RealizedPnL = realizedPnL
	s.decs[id] = dec
	return nil
}

func (s *memDecisionStore) ListRecent(_ context.Context, limit int) ([]domain.TradeDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TradeDecision
	for _, dec := range s.decs {
		out = append(out, dec)
	}
	return out, nil
}

func (s *memDecisionStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.TradeDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TradeDecision
	for _, dec := range s.decs {
		if dec.CreatedAt.Before(cutoff) {
			out = append(out, dec)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.Before(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memDecisionStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, dec := range s.decs {
		if dec.CreatedAt.Before(cutoff) {
			delete(s.decs, id)
			n++
		}
	}
	return n, nil
}

func (s *memDecisionStore) SumRealizedPnLSince(_ context.Context, since time.Time) (float64, error) {
	return 0, nil
}

func (s *memDecisionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.decs)
}

type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{
		published: make(map[string][][]byte),
		streamed:  make(map[string][][]byte),
	}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *memBus) StreamRead(_ context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type memBooks struct {
	mu    sync.Mutex
	snaps map[string]domain.OrderbookSnapshot
}

func newMemBooks() *memBooks {
	return &memBooks{snaps: make(map[string]domain.OrderbookSnapshot)}
}

func bookKey(platform domain.Platform, marketID string, outcome domain.Outcome) string {
	return string(platform) + "/" + marketID + "/" + string(outcome)
}

func (c *memBooks) SetSnapshot(_ context.Context, snap domain.OrderbookSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[bookKey(snap.Platform, snap.MarketID, snap.Outcome)] = snap
	return nil
}

func (c *memBooks) GetSnapshot(_ context.Context, platform domain.Platform, marketID string, outcome domain.Outcome) (domain.OrderbookSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snaps[bookKey(platform, marketID, outcome)]
	if !ok {
		return domain.OrderbookSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (c *memBooks) GetBBO(ctx context.Context, platform domain.Platform, marketID string, outcome domain.Outcome) (float64, float64, error) {
	snap, err := c.GetSnapshot(ctx, platform, marketID, outcome)
	if err != nil {
		return 0, 0, err
	}
	return snap.BestBid(), snap.BestAsk(), nil
}

// testEnv bundles a fully wired pipeline with its fakes.
type testEnv struct {
	pipeline  *Pipeline
	risk      *risk.Controller
	opps      *memOppStore
	decisions *memDecisionStore
	bus       *memBus
	books     *memBooks
}

func newTestEnv(t *testing.T, ledgerMax float64) *testEnv {
	t.Helper()
	logger := testLogger()

	model, err := fees.NewModel(map[string]config.FeeScheduleConfig{
		"polymarket": {GasFeeAvg: 0.05, GasFeeMax: 0.20},
		"kalshi":     {PercentFee: 0.7, WithdrawalFee: 2.0},
	}, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	validator := matching.NewValidator(matching.Config{
		MinOverallScore: 0.70,
		MinConfidence:   0.70,
		MaxRiskFactors:  2,
	}, nil, logger)
	calc := profit.NewCalculator(model, 1.0, logger)
	estimator := slippage.NewEstimator(slippage.Config{
		TolerancePercent:   1.0,
		ShortfallPercent:   5.0,
		MaxSplits:          10,
		Strategy:           domain.SplitExponential,
		SliceDelay:         time.Millisecond,
		SliceDepthFraction: 0.3,
		SlicePriceOffset:   0.001,
		ExponentialDecay:   0.7,
	}, logger)
	sizer := sizing.NewSizer(sizing.Config{
		BaseSize:          100,
		MinSize:           10,
		MaxSize:           400,
		MinGapPercent:     1.0,
		OptimalGapPercent: 5.0,
		SlippageShrink:    0.8,
		MaxExposure:       10_000,
	}, estimator, logger)
	ctrl := risk.NewController(risk.Config{
		TotalCapital:             100_000,
		MaxDailyLoss:             1_000,
		MaxCorrelation:           0.7,
		VaRConfidence:            0.95,
		VaRTrials:                2_000,
		MaxVaRFraction:           0.05,
		MaxPlatformConcentration: 0.8,
		MaxVolatility:            0.8,
		MinLiquidityScore:        0.2,
	}, risk.NewLedger(ledgerMax), rand.New(rand.NewSource(42)), logger)

	env := &testEnv{
		risk:      ctrl,
		opps:      &memOppStore{},
		decisions: newMemDecisionStore(),
		bus:       newMemBus(),
		books:     newMemBooks(),
	}
	env.pipeline = New(Config{
		ScanInterval: time.Minute,
		Workers:      2,
		MinTradeSize: 10,
		ProbeSize:    100,
	}, validator, calc, sizer, estimator, ctrl,
		nil, env.books, env.opps, env.decisions, env.bus, nil, nil, logger)
	return env
}

// arbPair returns a matched cross-platform pair with a 7% fee-free gap on
// the YES@A / NO@B strategy.
func arbPair() (domain.Market, domain.Market) {
	expiry := time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)
	a := domain.Market{
		Platform:         domain.PlatformPolymarket,
		ID:               "pm-btc-100k",
		Question:         "Will Bitcoin reach $100k by end of 2026?",
		ResolutionSource: "Coinbase",
		ExpiresAt:        expiry,
		Timezone:         "UTC",
		YesPrice:         0.45,
		NoPrice:          0.58,
		Liquidity:        100_000,
	}
	b := domain.Market{
		Platform:         domain.PlatformKalshi,
		ID:               "kx-btc-100k",
		Question:         "Will Bitcoin reach $100k by end of 2026?",
		ResolutionSource: "Coinbase",
		ExpiresAt:        expiry,
		Timezone:         "UTC",
		YesPrice:         0.55,
		NoPrice:          0.48,
		Liquidity:        100_000,
	}
	return a, b
}

func seedBooks(t *testing.T, env *testEnv, a, b domain.Market) {
	t.Helper()
	ctx := context.Background()
	for _, snap := range []domain.OrderbookSnapshot{
		{
			Platform: a.Platform, MarketID: a.ID, Outcome: domain.OutcomeYes,
			Bids: []domain.PriceLevel{{Price: 0.44, Size: 5000}},
			Asks: []domain.PriceLevel{{Price: 0.45, Size: 5000}, {Price: 0.46, Size: 5000}},
		},
		{
			Platform: b.Platform, MarketID: b.ID, Outcome: domain.OutcomeNo,
			Bids: []domain.PriceLevel{{Price: 0.47, Size: 5000}},
			Asks: []domain.PriceLevel{{Price: 0.48, Size: 5000}, {Price: 0.49, Size: 5000}},
		},
	} {
		if err := env.books.SetSnapshot(ctx, snap); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEvaluatePairEmitsDecision(t *testing.T) {
	env := newTestEnv(t, 10_000)
	a, b := arbPair()
	seedBooks(t, env, a, b)

	dec, reason, err := env.pipeline.EvaluatePair(context.Background(), a, b)
	if err != nil {
		t.Fatalf("EvaluatePair: %v", err)
	}
	if reason != "" {
		t.Fatalf("dropped at %q, want emitted", reason)
	}
	if dec.Status != domain.DecisionPending {
		t.Errorf("status = %s, want pending", dec.Status)
	}

	// 100 base * 1.4 gap * 0.3 liquidity * 1.0 volatility * 1.2 exposure.
	if math.Abs(dec.Size-50.4) > 1e-6 {
		t.Errorf("size = %g, want 50.4", dec.Size)
	}
	if dec.ExpectedProfit <= 0 {
		t.Errorf("expected profit = %g, want > 0", dec.ExpectedProfit)
	}
	if dec.Legs[0].MarketID != a.ID || dec.Legs[1].MarketID != b.ID {
		t.Errorf("legs reference %s/%s, want %s/%s",
			dec.Legs[0].MarketID, dec.Legs[1].MarketID, a.ID, b.ID)
	}
	for i, leg := range dec.Legs {
		if len(leg.Slices) == 0 {
			t.Errorf("leg %d has no split schedule", i)
		}
	}

	// Both legs reserved in the exposure ledger.
	if got := env.risk.Ledger().Total(); math.Abs(got-2*dec.Size) > 1e-6 {
		t.Errorf("ledger total = %g, want %g", got, 2*dec.Size)
	}

	if len(env.opps.opps) != 1 {
		t.Errorf("persisted %d opportunities, want 1", len(env.opps.opps))
	}
	if env.decisions.len() != 1 {
		t.Errorf("persisted %d decisions, want 1", env.decisions.len())
	}
	if got := len(env.bus.published[DecisionChannel]); got != 1 {
		t.Errorf("published %d decisions, want 1", got)
	}
	if got := len(env.bus.streamed[DecisionStream]); got != 1 {
		t.Errorf("streamed %d decisions, want 1", got)
	}
}

func TestEvaluatePairDropsUnmatched(t *testing.T) {
	env := newTestEnv(t, 10_000)
	a, b := arbPair()
	b.Question = "Will it snow in Miami this winter?"

	_, reason, err := env.pipeline.EvaluatePair(context.Background(), a, b)
	if err != nil {
		t.Fatalf("EvaluatePair: %v", err)
	}
	if reason != DropMatch {
		t.Errorf("reason = %q, want %q", reason, DropMatch)
	}
}

func TestEvaluatePairDropsWithoutGap(t *testing.T) {
	env := newTestEnv(t, 10_000)
	a, b := arbPair()
	a.YesPrice, a.NoPrice = 0.52, 0.50
	b.YesPrice, b.NoPrice = 0.52, 0.50

	_, reason, err := env.pipeline.EvaluatePair(context.Background(), a, b)
	if err != nil {
		t.Fatalf("EvaluatePair: %v", err)
	}
	if reason != DropProfit {
		t.Errorf("reason = %q, want %q", reason, DropProfit)
	}
}

func TestEvaluatePairDeniedByRisk(t *testing.T) {
	env := newTestEnv(t, 10_000)
	a, b := arbPair()
	seedBooks(t, env, a, b)

	// Blow through the daily loss ceiling.
	env.risk.SeedDailyPnL(-2_000)

	_, reason, err := env.pipeline.EvaluatePair(context.Background(), a, b)
	if err != nil {
		t.Fatalf("EvaluatePair: %v", err)
	}
	if reason != DropRisk {
		t.Errorf("reason = %q, want %q", reason, DropRisk)
	}
	if got := env.risk.Ledger().Total(); got != 0 {
		t.Errorf("ledger total = %g after denial, want 0", got)
	}
}

func TestEvaluatePairExposureLimit(t *testing.T) {
	// Room for one leg but not both: the first reservation must roll back.
	env := newTestEnv(t, 60)
	a, b := arbPair()
	seedBooks(t, env, a, b)

	_, reason, err := env.pipeline.EvaluatePair(context.Background(), a, b)
	if err != nil {
		t.Fatalf("EvaluatePair: %v", err)
	}
	if reason != DropExposure {
		t.Errorf("reason = %q, want %q", reason, DropExposure)
	}
	if got := env.risk.Ledger().Total(); got != 0 {
		t.Errorf("ledger total = %g after rollback, want 0", got)
	}
}

func TestOnExecutionResultFailedReleasesExposure(t *testing.T) {
	env := newTestEnv(t, 10_000)
	a, b := arbPair()
	seedBooks(t, env, a, b)

	dec, reason, err := env.pipeline.EvaluatePair(context.Background(), a, b)
	if err != nil || reason != "" {
		t.Fatalf("EvaluatePair: reason=%q err=%v", reason, err)
	}

	rep := domain.ExecutionReport{
		DecisionID:    dec.ID,
		Status:        domain.DecisionFailed,
		RequestedSize: dec.Size,
		FilledSize:    0,
	}
	env.pipeline.OnExecutionResult(context.Background(), dec, rep, -1.5)

	if got := env.risk.Ledger().Total(); got != 0 {
		t.Errorf("ledger total = %g after failure, want 0", got)
	}
	stored, err := env.decisions.Get(context.Background(), dec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != domain.DecisionFailed {
		t.Errorf("stored status = %s, want failed", stored.Status)
	}
	if stored.RealizedPnL != -1.5 {
		t.Errorf("stored pnl = %g, want -1.5", stored.RealizedPnL)
	}
}

func TestOnExecutionResultPartialReleasesRemainder(t *testing.T) {
	env := newTestEnv(t, 10_000)
	a, b := arbPair()
	seedBooks(t, env, a, b)

	dec, reason, err := env.pipeline.EvaluatePair(context.Background(), a, b)
	if err != nil || reason != "" {
		t.Fatalf("EvaluatePair: reason=%q err=%v", reason, err)
	}

	half := dec.Size / 2
	rep := domain.ExecutionReport{
		DecisionID:    dec.ID,
		Status:        domain.DecisionPartial,
		RequestedSize: dec.Size,
		FilledSize:    half,
	}
	env.pipeline.OnExecutionResult(context.Background(), dec, rep, 0.5)

	if got := env.risk.Ledger().Total(); math.Abs(got-2*half) > 1e-6 {
		t.Errorf("ledger total = %g, want %g", got, 2*half)
	}
}
