// Package sizing scales a base position size by the quality of the
// opportunity and the state of the market, and folds in slippage feedback.
package sizing

import (
	"log/slog"
	"math"

	"github.com/junheony/prediction-arbitrage/internal/domain"
	"github.com/junheony/prediction-arbitrage/internal/slippage"
)

// Config holds the sizing parameters.
type Config struct {
	BaseSize          float64
	MinSize           float64
	MaxSize           float64
	MinGapPercent     float64 // below this the trade is not worth entering
	OptimalGapPercent float64 // at or above this the gap multiplier grows past 1
	SlippageShrink    float64 // damping applied when shrinking for slippage
	MaxExposure       float64
}

// Sizer derives a recommended position size for one candidate entry.
type Sizer struct {
	cfg       Config
	estimator *slippage.Estimator
	logger    *slog.Logger
}

func NewSizer(cfg Config, estimator *slippage.Estimator, logger *slog.Logger) *Sizer {
	return &Sizer{
		cfg:       cfg,
		estimator: estimator,
		logger:    logger.With(slog.String("component", "sizing")),
	}
}

// Recommend multiplies the base size by gap, liquidity, volatility, and
// exposure factors, then shrinks it if the book cannot absorb the result
// within slippage tolerance. currentExposure is the ledger's running total.
func (s *Sizer) Recommend(
	gapPercent float64,
	cond domain.MarketConditions,
	currentExposure float64,
	book domain.OrderbookSnapshot,
	side domain.OrderSide,
) domain.PositionRecommendation {
	gapMult, gapScore := s.gapFactor(gapPercent)
	liqMult, liqScore := liquidityFactor(cond)
	volMult, volScore := volatilityFactor(cond.Volatility)
	expRatio := currentExposure / s.cfg.MaxExposure
	expMult, expScore := exposureFactor(expRatio)

	size := s.cfg.BaseSize * gapMult * liqMult * volMult * expMult

	rec := domain.PositionRecommendation{
		BaseSize: s.cfg.BaseSize,
		Adjustments: []domain.SizeAdjustment{
			{Name: "gap", Multiplier: gapMult, Score: gapScore},
			{Name: "liquidity", Multiplier: liqMult, Score: liqScore},
			{Name: "volatility", Multiplier: volMult, Score: volScore},
			{Name: "exposure", Multiplier: expMult, Score: expScore},
		},
	}

	if gapMult == 0 {
		rec.Size = 0
		rec.Confidence = 0
		rec.RiskScore = riskScore(0, s.cfg.MaxSize, cond, expRatio)
		return rec
	}

	// Slippage feedback: if the book cannot fill the proposed size within
	// tolerance, shrink toward the size it can.
	est := s.estimator.Estimate(size, book, side)
	rec.EstimatedSlipPct = est.SlippagePercent
	slipScore := math.Max(0, 1-est.SlippagePercent/5.0)
	if est.SlippagePercent > s.tolerance() {
		shrink := s.tolerance() / est.SlippagePercent * s.cfg.SlippageShrink
		size *= shrink
		rec.Adjustments = append(rec.Adjustments, domain.SizeAdjustment{
			Name: "slippage", Multiplier: shrink, Score: slipScore,
		})
	}

	size = math.Max(s.cfg.MinSize, math.Min(s.cfg.MaxSize, size))
	rec.Size = size
	rec.Confidence = confidence(gapScore, liqScore, volScore, expScore, slipScore)
	rec.RiskScore = riskScore(size, s.cfg.MaxSize, cond, expRatio)

	s.logger.Debug("position sized",
		slog.Float64("gap_percent", gapPercent),
		slog.Float64("size", size),
		slog.Float64("confidence", rec.Confidence),
		slog.Float64("risk_score", rec.RiskScore),
	)
	return rec
}

func (s *Sizer) tolerance() float64 {
	// The estimator carries the authoritative tolerance; keep the shrink
	// trigger aligned with the split trigger.
	return s.estimator.Tolerance()
}

// gapFactor grows the position with the fee-free price gap. Below the
// minimum the trade is skipped outright.
func (s *Sizer) gapFactor(gapPercent float64) (mult, score float64) {
	switch {
	case gapPercent < s.cfg.MinGapPercent:
		return 0, 0
	case gapPercent < s.cfg.OptimalGapPercent:
		ratio := (gapPercent - s.cfg.MinGapPercent) / (s.cfg.OptimalGapPercent - s.cfg.MinGapPercent)
		return 0.5 + ratio*0.5, 0.5 + ratio*0.5
	default:
		return math.Min(2.0, 1.0+(gapPercent-s.cfg.OptimalGapPercent)*0.2), 1.0
	}
}

func liquidityFactor(cond domain.MarketConditions) (mult, score float64) {
	switch {
	case cond.LiquidityScore > 0.8 && cond.DepthUSD > 100_000:
		return 1.5, 1.0
	case cond.LiquidityScore > 0.5 && cond.DepthUSD > 50_000:
		return 1.0, 0.7
	case cond.LiquidityScore > 0.3 && cond.DepthUSD > 10_000:
		return 0.7, 0.5
	default:
		return 0.3, 0.2
	}
}

func volatilityFactor(vol float64) (mult, score float64) {
	switch {
	case vol < 0.1:
		return 1.2, 0.9
	case vol < 0.3:
		return 1.0, 0.7
	case vol < 0.5:
		return 0.7, 0.5
	default:
		return 0.4, 0.2
	}
}

func exposureFactor(ratio float64) (mult, score float64) {
	switch {
	case ratio < 0.3:
		return 1.2, 1.0
	case ratio < 0.6:
		return 1.0, 0.8
	case ratio < 0.8:
		return 0.6, 0.5
	default:
		return 0.2, 0.2
	}
}

func confidence(gap, liq, vol, exp, slip float64) float64 {
	c := gap*0.30 + liq*0.25 + vol*0.20 + exp*0.15 + slip*0.10
	return math.Max(0, math.Min(1, c))
}

// riskScore grades how aggressive the final size is relative to limits and
// conditions, in [0,1].
func riskScore(size, maxSize float64, cond domain.MarketConditions, expRatio float64) float64 {
	sizeRatio := 0.0
	if maxSize > 0 {
		sizeRatio = size / maxSize
	}
	score := sizeRatio*0.3 + cond.Volatility*0.3 + expRatio*0.2 + (1-cond.LiquidityScore)*0.2
	return math.Min(1, math.Max(0, score))
}
