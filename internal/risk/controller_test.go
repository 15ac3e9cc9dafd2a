package risk

import (
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

func testConfig() Config {
	return Config{
		TotalCapital:             10_000,
		MaxDailyLoss:             500,
		MaxCorrelation:           0.7,
		VaRConfidence:            0.95,
		VaRTrials:                1000,
		MaxVaRFraction:           0.05,
		MaxPlatformConcentration: 0.40,
		MaxVolatility:            0.8,
		MinLiquidityScore:        0.2,
	}
}

func testController(cfg Config) *Controller {
	return NewController(cfg, NewLedger(10_000), rand.New(rand.NewSource(1)),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func candidate() domain.OpenPosition {
	return domain.OpenPosition{
		MarketID: "m1", Platform: domain.PlatformPolymarket,
		Outcome: domain.OutcomeYes, Category: "crypto",
		Size: 100, ExpectedReturn: 5, Volatility: 0.1,
	}
}

func calmConditions() domain.MarketConditions {
	return domain.MarketConditions{Volatility: 0.1, LiquidityScore: 0.8}
}

func TestEvaluateEntryAllowsCleanEntry(t *testing.T) {
	c := testController(testConfig())
	eval := c.EvaluateEntry(candidate(), nil, calmConditions())
	if !eval.Allowed {
		t.Fatalf("clean entry denied: %+v", eval.Checks)
	}
	if eval.Level != domain.RiskLow {
		t.Errorf("level = %s, want low", eval.Level)
	}
	if len(eval.Recommendations) != 0 {
		t.Errorf("unexpected recommendations: %v", eval.Recommendations)
	}
}

func TestEvaluateEntryDailyLossCeiling(t *testing.T) {
	c := testController(testConfig())
	c.SeedDailyPnL(-600)

	eval := c.EvaluateEntry(candidate(), nil, calmConditions())
	if eval.Allowed {
		t.Fatal("entry allowed past daily loss ceiling")
	}
	if got := eval.FailedChecks(); len(got) != 1 || got[0] != "daily_loss" {
		t.Errorf("failed checks = %v, want [daily_loss]", got)
	}
	if len(eval.Recommendations) == 0 {
		t.Error("expected a remediation")
	}
}

func TestEvaluateEntryProfitDoesNotTripLossCeiling(t *testing.T) {
	c := testController(testConfig())
	c.SeedDailyPnL(600) // profit, not loss
	if eval := c.EvaluateEntry(candidate(), nil, calmConditions()); !eval.Allowed {
		t.Errorf("profitable day denied entry: %v", eval.FailedChecks())
	}
}

func TestEvaluateEntryCorrelation(t *testing.T) {
	c := testController(testConfig())
	existing := []domain.OpenPosition{{
		MarketID: "m2", Platform: domain.PlatformPolymarket,
		Outcome: domain.OutcomeYes, Category: "crypto", Size: 100,
	}}

	// Same platform (0.6) + same category (0.2) = 0.8 > 0.7.
	eval := c.EvaluateEntry(candidate(), existing, calmConditions())
	if eval.Allowed {
		t.Fatal("correlated entry allowed")
	}
	var found bool
	for _, ch := range eval.Checks {
		if ch.Name == "correlation" && !ch.Passed {
			found = true
		}
	}
	if !found {
		t.Errorf("correlation check did not fail: %+v", eval.Checks)
	}
}

func TestPairCorrelationOppositeSides(t *testing.T) {
	a := candidate()
	b := a
	b.Outcome = domain.OutcomeNo
	// Hedged legs of the same market are negatively correlated.
	if corr := pairCorrelation(a, b); corr >= 0 {
		t.Errorf("opposite-side correlation = %g, want negative", corr)
	}
}

func TestPairCorrelationOppositeSidesAcrossPlatforms(t *testing.T) {
	a := candidate()
	b := domain.OpenPosition{
		MarketID: "kx-9", Platform: domain.PlatformKalshi,
		Outcome: domain.OutcomeNo, Category: "politics", Size: 100,
	}
	// Different venue, different category: base 0.2, halved and flipped.
	if corr := pairCorrelation(a, b); math.Abs(corr-(-0.1)) > 1e-12 {
		t.Errorf("cross-platform opposite-side correlation = %g, want -0.1", corr)
	}
}

func TestEvaluateEntryHedgePassesCorrelationGate(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCorrelation = 0.3
	c := testController(cfg)

	// Opposite side of a sibling market on the same venue: correlation is
	// -0.4, well inside even a tight gate.
	hedge := []domain.OpenPosition{{
		MarketID: "m2", Platform: domain.PlatformPolymarket,
		Outcome: domain.OutcomeNo, Category: "crypto", Size: 100,
	}}
	eval := c.EvaluateEntry(candidate(), hedge, calmConditions())
	if !eval.Allowed {
		t.Fatalf("hedged entry denied: %v", eval.FailedChecks())
	}
	for _, ch := range eval.Checks {
		if ch.Name == "correlation" && ch.Value > 0 {
			t.Errorf("correlation value = %g, want <= 0 for a hedge", ch.Value)
		}
	}
}

func TestCorrelationFailureScoresMedium(t *testing.T) {
	c := testController(testConfig())
	existing := []domain.OpenPosition{{
		MarketID: "m2", Platform: domain.PlatformPolymarket,
		Outcome: domain.OutcomeYes, Category: "crypto", Size: 100,
	}}

	eval := c.EvaluateEntry(candidate(), existing, calmConditions())
	if got := eval.FailedChecks(); len(got) != 1 || got[0] != "correlation" {
		t.Fatalf("failed checks = %v, want [correlation]", got)
	}
	if math.Abs(eval.Score-0.20) > 1e-12 {
		t.Errorf("score = %g, want 0.20", eval.Score)
	}
	if eval.Level != domain.RiskMedium {
		t.Errorf("level = %s, want medium", eval.Level)
	}
}

func TestEvaluateEntryVaRScalesWithSize(t *testing.T) {
	cfg := testConfig()
	c := testController(cfg)

	small := candidate()
	small.Size = 50
	small.Volatility = 0.2
	if eval := c.EvaluateEntry(small, nil, calmConditions()); !eval.Allowed {
		t.Fatalf("small position denied: %v", eval.FailedChecks())
	}

	huge := candidate()
	huge.Size = 5000
	huge.Volatility = 0.5
	huge.ExpectedReturn = 0
	eval := c.EvaluateEntry(huge, nil, calmConditions())
	var varFailed bool
	for _, ch := range eval.Checks {
		if ch.Name == "var" && !ch.Passed {
			varFailed = true
		}
	}
	if !varFailed {
		t.Errorf("VaR check passed for a 5000 @ 0.5 vol position (limit %g)", cfg.TotalCapital*cfg.MaxVaRFraction)
	}
}

func TestVaRDeterministicUnderSeed(t *testing.T) {
	sims := []simPosition{{size: 1000, volatility: 0.3, expectedReturn: 10}}
	a := portfolioVaR(sims, 0.95, 1000, rand.New(rand.NewSource(7)))
	b := portfolioVaR(sims, 0.95, 1000, rand.New(rand.NewSource(7)))
	if a != b {
		t.Errorf("same seed gave %g and %g", a, b)
	}
	if a <= 0 {
		t.Errorf("VaR = %g, want positive for a volatile position", a)
	}
}

func TestEvaluateEntryConcentration(t *testing.T) {
	c := testController(testConfig())
	existing := []domain.OpenPosition{
		{MarketID: "k1", Platform: domain.PlatformKalshi, Category: "politics", Size: 100},
	}
	heavy := candidate()
	heavy.Size = 400 // 400/500 = 80% on polymarket

	eval := c.EvaluateEntry(heavy, existing, calmConditions())
	var found bool
	for _, ch := range eval.Checks {
		if ch.Name == "concentration" && !ch.Passed {
			found = true
		}
	}
	if !found {
		t.Errorf("concentration check did not fail: %+v", eval.Checks)
	}
}

func TestEvaluateEntryMarketConditions(t *testing.T) {
	c := testController(testConfig())

	stormy := domain.MarketConditions{Volatility: 0.9, LiquidityScore: 0.8}
	if eval := c.EvaluateEntry(candidate(), nil, stormy); eval.Allowed {
		t.Error("entry allowed at 0.9 volatility")
	}

	dry := domain.MarketConditions{Volatility: 0.1, LiquidityScore: 0.1}
	if eval := c.EvaluateEntry(candidate(), nil, dry); eval.Allowed {
		t.Error("entry allowed at 0.1 liquidity score")
	}
}

func TestRiskScoreAggregation(t *testing.T) {
	c := testController(testConfig())
	c.SeedDailyPnL(-600)
	stormy := domain.MarketConditions{Volatility: 0.9, LiquidityScore: 0.8}

	eval := c.EvaluateEntry(candidate(), nil, stormy)
	// daily_loss (0.30) + market_conditions (0.10) = 0.40 -> medium.
	if math.Abs(eval.Score-0.40) > 1e-12 {
		t.Errorf("score = %g, want 0.40", eval.Score)
	}
	if eval.Level != domain.RiskMedium {
		t.Errorf("level = %s, want medium", eval.Level)
	}
}

func TestRiskLevelFromScore(t *testing.T) {
	cases := map[float64]domain.RiskLevel{
		0.0:  domain.RiskLow,
		0.19: domain.RiskLow,
		0.2:  domain.RiskMedium,
		0.49: domain.RiskMedium,
		0.5:  domain.RiskHigh,
		0.85: domain.RiskCritical,
	}
	for score, want := range cases {
		if got := domain.RiskLevelFromScore(score); got != want {
			t.Errorf("level(%g) = %s, want %s", score, got, want)
		}
	}
}
