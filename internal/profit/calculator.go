// Package profit evaluates whether a matched pair of markets offers a
// guaranteed-profit arbitrage after all fees.
package profit

import (
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/junheony/prediction-arbitrage/internal/domain"
	"github.com/junheony/prediction-arbitrage/internal/fees"
)

// Calculator prices both complementary strategies across a pair and keeps
// the better one.
type Calculator struct {
	fees          *fees.Model
	minROIPercent float64
	logger        *slog.Logger
}

func NewCalculator(model *fees.Model, minROIPercent float64, logger *slog.Logger) *Calculator {
	return &Calculator{
		fees:          model,
		minROIPercent: minROIPercent,
		logger:        logger.With(slog.String("component", "profit")),
	}
}

// strategy is one of the two complementary ways to lock a binary pair.
type strategy struct {
	outcomeA, outcomeB domain.Outcome
}

var strategies = [2]strategy{
	{domain.OutcomeYes, domain.OutcomeNo},
	{domain.OutcomeNo, domain.OutcomeYes},
}

// Evaluate prices both (YES on A, NO on B) and (NO on A, YES on B) at the
// given size and returns the better opportunity. ok is false when neither
// strategy is profitable after fees.
func (c *Calculator) Evaluate(a, b domain.Market, size float64) (domain.ArbitrageOpportunity, bool, error) {
	var best domain.ArbitrageOpportunity
	found := false

	for _, s := range strategies {
		opp, err := c.evaluateStrategy(a, b, s, size)
		if err != nil {
			return domain.ArbitrageOpportunity{}, false, err
		}
		if !opp.Valid {
			continue
		}
		if !found || opp.ROIPercent > best.ROIPercent {
			best = opp
			found = true
		}
	}

	if !found {
		return domain.ArbitrageOpportunity{}, false, nil
	}

	c.logger.Debug("opportunity priced",
		slog.String("market_a", a.ID),
		slog.String("market_b", b.ID),
		slog.Float64("roi_percent", best.ROIPercent),
		slog.Float64("net_profit", best.NetProfit),
	)
	return best, true, nil
}

func (c *Calculator) evaluateStrategy(a, b domain.Market, s strategy, size float64) (domain.ArbitrageOpportunity, error) {
	priceA := a.PriceFor(s.outcomeA)
	priceB := b.PriceFor(s.outcomeB)

	feeA, err := c.fees.Compute(a.Platform, size, priceA)
	if err != nil {
		return domain.ArbitrageOpportunity{}, err
	}
	feeB, err := c.fees.Compute(b.Platform, size, priceB)
	if err != nil {
		return domain.ArbitrageOpportunity{}, err
	}

	rawCost := priceA + priceB
	totalFees := feeA.Total + feeB.Total
	totalCost := rawCost*size + totalFees

	// Exactly one leg pays out $1 per token at resolution.
	expectedReturn := size * 1.0
	netProfit := expectedReturn - totalCost

	var roi float64
	if totalCost > 0 {
		roi = netProfit / totalCost * 100
	}

	// The locked profit exists only when combined per-token cost including
	// fees stays under $1.
	valid := rawCost+totalFees/size < 1.0

	opp := domain.ArbitrageOpportunity{
		ID:             uuid.NewString(),
		MarketA:        a,
		MarketB:        b,
		OutcomeA:       s.outcomeA,
		OutcomeB:       s.outcomeB,
		PriceA:         priceA,
		PriceB:         priceB,
		Size:           size,
		RawCost:        rawCost,
		FeeA:           feeA,
		FeeB:           feeB,
		TotalFees:      totalFees,
		TotalCost:      totalCost,
		ExpectedReturn: expectedReturn,
		NetProfit:      netProfit,
		Valid:          valid,
		MeetsMinROI:    valid && roi >= c.minROIPercent,
		ROIPercent:     roi,
		DetectedAt:     time.Now().UTC(),
	}
	opp.Confidence = c.confidence(opp, a, b)
	return opp, nil
}

// confidence grades how robust the opportunity is: thin edges, heavy fees,
// and shallow markets all erode it.
func (c *Calculator) confidence(opp domain.ArbitrageOpportunity, a, b domain.Market) float64 {
	conf := 1.0

	// ROI component: 5% ROI or better earns full marks.
	conf *= 0.5 + math.Min(opp.ROIPercent/5.0, 1.0)*0.5

	// Fee drag component.
	avgFeePct := (opp.FeeA.PercentCost + opp.FeeB.PercentCost) / 2
	conf *= 1 - math.Min(avgFeePct/2.0, 1.0)*0.3

	// Liquidity component.
	minLiq := math.Min(a.Liquidity, b.Liquidity)
	switch {
	case minLiq < 10_000:
		conf *= 0.7
	case minLiq < 50_000:
		conf *= 0.85
	}

	return math.Max(0, math.Min(1, conf))
}
