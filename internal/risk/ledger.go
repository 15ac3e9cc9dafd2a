// Package risk enforces pre-trade controls: exposure accounting, loss
// ceilings, correlation, Value-at-Risk, and concentration limits.
package risk

import (
	"fmt"
	"sync"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// Ledger tracks reserved exposure per market under a global ceiling. Reserve
// is an atomic check-and-commit: concurrent callers can never push the total
// past the ceiling.
type Ledger struct {
	mu       sync.Mutex
	maxTotal float64
	total    float64
	byMarket map[string]float64
}

func NewLedger(maxTotal float64) *Ledger {
	return &Ledger{
		maxTotal: maxTotal,
		byMarket: make(map[string]float64),
	}
}

// Reserve commits amount against marketID, or returns
// domain.ErrExposureExceeded leaving the ledger untouched.
func (l *Ledger) Reserve(marketID string, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: reserve amount must be > 0, got %g", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total+amount > l.maxTotal {
		return fmt.Errorf("ledger: reserving %.2f would exceed ceiling %.2f (current %.2f): %w",
			amount, l.maxTotal, l.total, domain.ErrExposureExceeded)
	}
	l.total += amount
	l.byMarket[marketID] += amount
	return nil
}

// Release returns amount of exposure for marketID to the pool. Releasing
// more than is held for a market drains to zero rather than going negative.
func (l *Ledger) Release(marketID string, amount float64) {
	if amount <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	held := l.byMarket[marketID]
	if amount > held {
		amount = held
	}
	l.byMarket[marketID] = held - amount
	if l.byMarket[marketID] == 0 {
		delete(l.byMarket, marketID)
	}
	l.total -= amount
	if l.total < 0 {
		l.total = 0
	}
}

// Total returns the currently reserved exposure.
func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Exposure returns the reserved exposure for one market.
func (l *Ledger) Exposure(marketID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byMarket[marketID]
}

// Utilization returns total/ceiling in [0,1].
func (l *Ledger) Utilization() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.maxTotal == 0 {
		return 0
	}
	return l.total / l.maxTotal
}

// Snapshot returns a copy of the per-market exposure map.
func (l *Ledger) Snapshot() map[string]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]float64, len(l.byMarket))
	for k, v := range l.byMarket {
		out[k] = v
	}
	return out
}
