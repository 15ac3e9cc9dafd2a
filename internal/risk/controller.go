package risk

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// Config holds the pre-trade control limits.
type Config struct {
	TotalCapital             float64
	MaxDailyLoss             float64
	MaxCorrelation           float64
	VaRConfidence            float64
	VaRTrials                int
	MaxVaRFraction           float64
	MaxPlatformConcentration float64
	MaxVolatility            float64
	MinLiquidityScore        float64
}

// Weights of each failed check in the aggregate risk score.
var checkWeights = map[string]float64{
	"daily_loss":        0.30,
	"var":               0.25,
	"correlation":       0.20,
	"concentration":     0.15,
	"market_conditions": 0.10,
}

// Controller runs every pre-trade control over a candidate entry against
// the current portfolio.
type Controller struct {
	cfg    Config
	ledger *Ledger
	logger *slog.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	dailyPnL float64
	pnlDay   time.Time
}

// NewController builds a Controller. rng may be nil, in which case a
// time-seeded source is used; tests inject a fixed seed.
func NewController(cfg Config, ledger *Ledger, rng *rand.Rand, logger *slog.Logger) *Controller {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Controller{
		cfg:    cfg,
		ledger: ledger,
		rng:    rng,
		logger: logger.With(slog.String("component", "risk")),
		pnlDay: today(),
	}
}

// Ledger exposes the controller's exposure ledger.
func (c *Controller) Ledger() *Ledger { return c.ledger }

// RecordPnL folds a realized profit or loss into the running daily total.
// The total resets at the first record of a new UTC day.
func (c *Controller) RecordPnL(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d := today(); !d.Equal(c.pnlDay) {
		c.pnlDay = d
		c.dailyPnL = 0
	}
	c.dailyPnL += delta
}

// SeedDailyPnL overwrites the running daily total, typically from the
// decision store at startup.
func (c *Controller) SeedDailyPnL(total float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pnlDay = today()
	c.dailyPnL = total
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// EvaluateEntry runs all controls for admitting candidate alongside the
// existing open positions. The entry is allowed only when every check
// passes.
func (c *Controller) EvaluateEntry(
	candidate domain.OpenPosition,
	existing []domain.OpenPosition,
	cond domain.MarketConditions,
) domain.RiskEvaluation {
	checks := []domain.RiskCheck{
		c.checkDailyLoss(),
		c.checkCorrelation(candidate, existing),
		c.checkVaR(candidate, existing),
		c.checkConcentration(candidate, existing),
		c.checkMarketConditions(cond),
	}

	allowed := true
	var score float64
	for _, ch := range checks {
		if !ch.Passed {
			allowed = false
			score += checkWeights[ch.Name]
		}
	}
	score = math.Min(1, score)

	eval := domain.RiskEvaluation{
		Allowed:         allowed,
		Checks:          checks,
		Score:           score,
		Level:           domain.RiskLevelFromScore(score),
		Recommendations: remediations(checks),
		EvaluatedAt:     time.Now().UTC(),
	}

	if !allowed {
		c.logger.Warn("entry denied",
			slog.String("market_id", candidate.MarketID),
			slog.Any("failed", eval.FailedChecks()),
			slog.Float64("score", score),
			slog.String("level", string(eval.Level)),
		)
	}
	return eval
}

func (c *Controller) checkDailyLoss() domain.RiskCheck {
	c.mu.Lock()
	pnl := c.dailyPnL
	if d := today(); !d.Equal(c.pnlDay) {
		pnl = 0
	}
	c.mu.Unlock()

	loss := -pnl
	ch := domain.RiskCheck{Name: "daily_loss", Value: loss, Limit: c.cfg.MaxDailyLoss}
	if loss >= c.cfg.MaxDailyLoss {
		ch.Reason = fmt.Sprintf("daily loss %.2f at or above ceiling %.2f", loss, c.cfg.MaxDailyLoss)
		return ch
	}
	ch.Passed = true
	return ch
}

func (c *Controller) checkCorrelation(candidate domain.OpenPosition, existing []domain.OpenPosition) domain.RiskCheck {
	// Signed: a hedging (negative) correlation reduces portfolio risk and
	// must never trip the gate.
	var worst float64
	for _, p := range existing {
		if corr := pairCorrelation(candidate, p); corr > worst {
			worst = corr
		}
	}
	ch := domain.RiskCheck{Name: "correlation", Value: worst, Limit: c.cfg.MaxCorrelation}
	if worst > c.cfg.MaxCorrelation {
		ch.Reason = fmt.Sprintf("correlation %.2f with an open position exceeds %.2f", worst, c.cfg.MaxCorrelation)
		return ch
	}
	ch.Passed = true
	return ch
}

// pairCorrelation is a deterministic structural estimate: same platform and
// same category push correlation up, holding opposite sides halves it and
// flips its sign.
func pairCorrelation(a, b domain.OpenPosition) float64 {
	corr := 0.2
	if a.Platform == b.Platform {
		corr = 0.6
	}
	if a.Category != "" && a.Category == b.Category {
		corr += 0.2
	}
	if a.Outcome != b.Outcome {
		corr *= -0.5
	}
	return math.Max(-1, math.Min(1, corr))
}

func (c *Controller) checkVaR(candidate domain.OpenPosition, existing []domain.OpenPosition) domain.RiskCheck {
	sims := make([]simPosition, 0, len(existing)+1)
	for _, p := range append(existing, candidate) {
		sims = append(sims, simPosition{
			size:           p.Size,
			volatility:     p.Volatility,
			expectedReturn: p.ExpectedReturn,
		})
	}

	c.mu.Lock()
	v := portfolioVaR(sims, c.cfg.VaRConfidence, c.cfg.VaRTrials, c.rng)
	c.mu.Unlock()

	limit := c.cfg.TotalCapital * c.cfg.MaxVaRFraction
	ch := domain.RiskCheck{Name: "var", Value: v, Limit: limit}
	if v > limit {
		ch.Reason = fmt.Sprintf("portfolio VaR %.2f exceeds %.2f (%.0f%% of capital)",
			v, limit, c.cfg.MaxVaRFraction*100)
		return ch
	}
	ch.Passed = true
	return ch
}

func (c *Controller) checkConcentration(candidate domain.OpenPosition, existing []domain.OpenPosition) domain.RiskCheck {
	perPlatform := map[domain.Platform]float64{candidate.Platform: candidate.Size}
	total := candidate.Size
	for _, p := range existing {
		perPlatform[p.Platform] += p.Size
		total += p.Size
	}

	var worst float64
	var worstPlatform domain.Platform
	for platform, size := range perPlatform {
		if frac := size / total; frac > worst {
			worst, worstPlatform = frac, platform
		}
	}

	ch := domain.RiskCheck{Name: "concentration", Value: worst, Limit: c.cfg.MaxPlatformConcentration}
	// A portfolio this small cannot be diversified; concentration only
	// binds once more than one venue is in play.
	if len(perPlatform) > 1 && worst > c.cfg.MaxPlatformConcentration {
		ch.Reason = fmt.Sprintf("%.0f%% of exposure on %s exceeds %.0f%% cap",
			worst*100, worstPlatform, c.cfg.MaxPlatformConcentration*100)
		return ch
	}
	ch.Passed = true
	return ch
}

func (c *Controller) checkMarketConditions(cond domain.MarketConditions) domain.RiskCheck {
	ch := domain.RiskCheck{Name: "market_conditions", Value: cond.Volatility, Limit: c.cfg.MaxVolatility}
	if cond.Volatility > c.cfg.MaxVolatility {
		ch.Reason = fmt.Sprintf("volatility %.2f above %.2f", cond.Volatility, c.cfg.MaxVolatility)
		return ch
	}
	if cond.LiquidityScore < c.cfg.MinLiquidityScore {
		ch.Value = cond.LiquidityScore
		ch.Limit = c.cfg.MinLiquidityScore
		ch.Reason = fmt.Sprintf("liquidity score %.2f below %.2f", cond.LiquidityScore, c.cfg.MinLiquidityScore)
		return ch
	}
	ch.Passed = true
	return ch
}

// remediations maps failed checks to operator guidance.
func remediations(checks []domain.RiskCheck) []string {
	var out []string
	for _, ch := range checks {
		if ch.Passed {
			continue
		}
		switch ch.Name {
		case "daily_loss":
			out = append(out, "halt new entries until the next trading day")
		case "correlation":
			out = append(out, "reduce or close correlated positions before adding this one")
		case "var":
			out = append(out, "shrink position sizes to bring portfolio VaR inside the limit")
		case "concentration":
			out = append(out, "route new exposure to under-weighted platforms")
		case "market_conditions":
			out = append(out, "wait for volatility to settle or liquidity to return")
		}
	}
	return out
}
