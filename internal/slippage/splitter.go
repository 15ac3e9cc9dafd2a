package slippage

import (
	"math"
	"time"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// PlanSplits divides total into child orders. Within tolerance the order
// goes out whole as a single market slice; otherwise the slice count grows
// with the tolerance overshoot, capped at MaxSplits, and sizes follow the
// configured strategy. Slice sizes always sum back to total: the last slice
// is the remainder of the preceding ones.
func (e *Estimator) PlanSplits(total float64, levels []domain.PriceLevel, slipPct float64) []domain.OrderSlice {
	if total <= 0 {
		return nil
	}
	if slipPct <= e.cfg.TolerancePercent {
		return []domain.OrderSlice{{Size: total, Type: domain.OrderTypeMarket}}
	}

	n := int(math.Ceil(slipPct / e.cfg.TolerancePercent))
	if n > e.cfg.MaxSplits {
		n = e.cfg.MaxSplits
	}
	if n < 2 {
		n = 2
	}

	switch e.cfg.Strategy {
	case domain.SplitLiquidity:
		return e.liquiditySlices(total, levels, n)
	default:
		return e.exponentialSlices(total, n)
	}
}

// exponentialSlices front-loads the schedule: each slice is decay times the
// previous one, so the first slice takes the liquidity that exists now and
// later slices wait for the book to refill.
func (e *Estimator) exponentialSlices(total float64, n int) []domain.OrderSlice {
	decay := e.cfg.ExponentialDecay
	first := total * (1 - decay) / (1 - math.Pow(decay, float64(n)))

	slices := make([]domain.OrderSlice, 0, n)
	var placed float64
	size := first
	for i := 0; i < n; i++ {
		s := size
		if i == n-1 {
			s = total - placed // absorb rounding drift
		}
		slices = append(slices, e.slice(s, i))
		placed += s
		size *= decay
	}
	return slices
}

// liquiditySlices sizes each child order to at most a fraction of the depth
// resting at the corresponding level, putting whatever the visible book
// cannot absorb into a final catch-up slice.
func (e *Estimator) liquiditySlices(total float64, levels []domain.PriceLevel, n int) []domain.OrderSlice {
	slices := make([]domain.OrderSlice, 0, n)
	remaining := total

	for i := 0; i < n-1 && i < len(levels) && remaining > 0; i++ {
		s := math.Min(remaining, levels[i].Size*e.cfg.SliceDepthFraction)
		if s <= 0 {
			break
		}
		slices = append(slices, e.slice(s, len(slices)))
		remaining -= s
	}

	if remaining > 0 || len(slices) == 0 {
		// Tail slice pays an extra price concession for whatever depth the
		// book did not show.
		tail := e.slice(remaining, len(slices))
		tail.PriceOffset = e.cfg.SlicePriceOffset * 2
		slices = append(slices, tail)
	}
	return slices
}

// slice builds child order i of a schedule: only the first goes out as a
// market order, the rest rest as limits with growing delay and concession.
func (e *Estimator) slice(size float64, i int) domain.OrderSlice {
	typ := domain.OrderTypeLimit
	if i == 0 {
		typ = domain.OrderTypeMarket
	}
	return domain.OrderSlice{
		Size:        size,
		Type:        typ,
		Delay:       time.Duration(i) * e.cfg.SliceDelay,
		PriceOffset: float64(i) * e.cfg.SlicePriceOffset,
	}
}
