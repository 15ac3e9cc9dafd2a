package risk

import (
	"math/rand"
	"sort"
)

// portfolioVaR estimates Value-at-Risk by Monte Carlo: each trial draws a
// normal PnL per position centered on its expected return with a standard
// deviation proportional to its volatility and size, and the loss at the
// (1-confidence) percentile of total PnL is returned as a positive number.
// The rand source is injected so results are reproducible under test.
func portfolioVaR(positions []simPosition, confidence float64, trials int, rng *rand.Rand) float64 {
	if len(positions) == 0 || trials <= 0 {
		return 0
	}

	outcomes := make([]float64, trials)
	for t := 0; t < trials; t++ {
		var pnl float64
		for _, p := range positions {
			pnl += p.expectedReturn + rng.NormFloat64()*p.volatility*p.size
		}
		outcomes[t] = pnl
	}
	sort.Float64s(outcomes)

	loss := -percentile(outcomes, 1-confidence)
	if loss < 0 {
		return 0
	}
	return loss
}

// simPosition is the minimal position view the simulation needs.
type simPosition struct {
	size           float64
	volatility     float64
	expectedReturn float64
}

// percentile returns the p-quantile (p in [0,1]) of sorted values with
// linear interpolation between adjacent ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(rank)
	frac := rank - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}
