// Package slippage projects execution quality against cached orderbook
// depth and plans split execution when a single order would walk the book.
package slippage

import (
	"log/slog"
	"math"
	"time"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// Config holds estimation and splitting parameters.
type Config struct {
	TolerancePercent   float64 // max acceptable slippage for a single order
	ShortfallPercent   float64 // assumed slippage when depth runs out
	MaxSplits          int
	Strategy           domain.SplitStrategy
	SliceDelay         time.Duration // delay step between successive slices
	SliceDepthFraction float64       // max fraction of a level consumed per liquidity slice
	SlicePriceOffset   float64       // price concession step per slice
	ExponentialDecay   float64
}

// Estimator walks book snapshots to price market impact.
type Estimator struct {
	cfg    Config
	logger *slog.Logger
}

func NewEstimator(cfg Config, logger *slog.Logger) *Estimator {
	return &Estimator{cfg: cfg, logger: logger.With(slog.String("component", "slippage"))}
}

// Tolerance reports the configured single-order slippage tolerance in
// percent.
func (e *Estimator) Tolerance() float64 {
	return e.cfg.TolerancePercent
}

// Estimate walks the book on the taker side and reports the average fill
// price, the slippage versus top of book, and a split schedule when the
// slippage exceeds tolerance. An empty book or insufficient depth yields the
// configured pessimistic shortfall estimate.
func (e *Estimator) Estimate(size float64, book domain.OrderbookSnapshot, side domain.OrderSide) domain.SlippageEstimate {
	levels, best := takerLevels(book, side)

	est := domain.SlippageEstimate{
		Side:          side,
		RequestedSize: size,
		BestPrice:     best,
	}

	if len(levels) == 0 || best <= 0 {
		est.Shortfall = true
		est.SlippagePercent = e.cfg.ShortfallPercent
		return est
	}

	remaining := size
	var cost, filled float64
	for _, lv := range levels {
		if remaining <= 0 {
			break
		}
		take := math.Min(remaining, lv.Size)
		cost += take * lv.Price
		filled += take
		remaining -= take
	}

	if remaining > 0 || filled == 0 {
		est.Shortfall = true
		est.SlippagePercent = e.cfg.ShortfallPercent
		est.RecommendedSize = e.recommendedSize(levels, best)
		return est
	}

	avg := cost / filled
	slip := avg - best
	if side == domain.SideSell {
		slip = best - avg
	}

	est.AvgPrice = avg
	est.Slippage = slip
	est.SlippagePercent = slip / best * 100
	est.RecommendedSize = e.recommendedSize(levels, best)
	est.Slices = e.PlanSplits(size, levels, est.SlippagePercent)
	return est
}

// recommendedSize is the cumulative depth resting within the tolerance band
// of the best price.
func (e *Estimator) recommendedSize(levels []domain.PriceLevel, best float64) float64 {
	band := best * e.cfg.TolerancePercent / 100
	var total float64
	for _, lv := range levels {
		if math.Abs(lv.Price-best) > band {
			break
		}
		total += lv.Size
	}
	return total
}

// takerLevels returns the side of the book a taker order consumes, with its
// best price.
func takerLevels(book domain.OrderbookSnapshot, side domain.OrderSide) ([]domain.PriceLevel, float64) {
	if side == domain.SideSell {
		return book.Bids, book.BestBid()
	}
	return book.Asks, book.BestAsk()
}
