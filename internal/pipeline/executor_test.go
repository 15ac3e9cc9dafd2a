package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// stubPlacer fills every slice at the limit price unless a fill override is
// installed.
type stubPlacer struct {
	mu    sync.Mutex
	calls int
	fill  func(leg domain.DecisionLeg, slice domain.OrderSlice, limit float64) (domain.FillResult, error)
}

func (p *stubPlacer) PlaceOrder(_ context.Context, leg domain.DecisionLeg, slice domain.OrderSlice, limit float64) (domain.FillResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.fill != nil {
		return p.fill(leg, slice, limit)
	}
	return domain.FillResult{FilledSize: slice.Size, AvgPrice: limit}, nil
}

func testDecision() domain.TradeDecision {
	return domain.TradeDecision{
		ID:             "dec-1",
		Size:           50,
		ExpectedProfit: 2.5,
		Status:         domain.DecisionPending,
		Legs: [2]domain.DecisionLeg{
			{
				Platform: domain.PlatformPolymarket, MarketID: "pm-1",
				Outcome: domain.OutcomeYes, Price: 0.45, Size: 50,
				Slices: []domain.OrderSlice{
					{Size: 30, Type: domain.OrderTypeMarket},
					{Size: 20, Type: domain.OrderTypeLimit, Delay: time.Millisecond, PriceOffset: 0.001},
				},
			},
			{
				Platform: domain.PlatformKalshi, MarketID: "kx-1",
				Outcome: domain.OutcomeNo, Price: 0.48, Size: 50,
				Slices: []domain.OrderSlice{
					{Size: 50, Type: domain.OrderTypeMarket},
				},
			},
		},
	}
}

func TestExecuteFullFill(t *testing.T) {
	placer := &stubPlacer{}
	exec := NewExecutor(placer, nil, testLogger())

	rep, realized := exec.Execute(context.Background(), testDecision())

	if rep.Status != domain.DecisionFilled {
		t.Errorf("status = %s, want filled", rep.Status)
	}
	if rep.FilledSize != 50 {
		t.Errorf("filled = %g, want 50", rep.FilledSize)
	}
	if rep.SlicesPlaced != 3 || rep.SlicesTotal != 3 {
		t.Errorf("slices = %d/%d, want 3/3", rep.SlicesPlaced, rep.SlicesTotal)
	}
	// Expected profit minus the 0.001 concession paid on the 20-contract
	// limit slice.
	if math.Abs(realized-2.48) > 1e-9 {
		t.Errorf("realized = %g, want 2.48", realized)
	}
}

func TestExecutePartialFill(t *testing.T) {
	placer := &stubPlacer{}
	placer.fill = func(leg domain.DecisionLeg, slice domain.OrderSlice, limit float64) (domain.FillResult, error) {
		if leg.Platform == domain.PlatformKalshi {
			return domain.FillResult{FilledSize: slice.Size / 2, AvgPrice: limit}, nil
		}
		return domain.FillResult{FilledSize: slice.Size, AvgPrice: limit}, nil
	}
	exec := NewExecutor(placer, nil, testLogger())

	rep, realized := exec.Execute(context.Background(), testDecision())

	if rep.Status != domain.DecisionPartial {
		t.Errorf("status = %s, want partial", rep.Status)
	}
	// The arb is only as filled as its thinner leg.
	if rep.FilledSize != 25 {
		t.Errorf("filled = %g, want 25", rep.FilledSize)
	}
	// Half the expected profit, minus the same limit-slice concession.
	if math.Abs(realized-1.23) > 1e-9 {
		t.Errorf("realized = %g, want 1.23", realized)
	}
}

func TestExecuteLegFailure(t *testing.T) {
	placer := &stubPlacer{}
	placer.fill = func(leg domain.DecisionLeg, slice domain.OrderSlice, limit float64) (domain.FillResult, error) {
		if leg.Platform == domain.PlatformKalshi {
			return domain.FillResult{}, errors.New("venue rejected order")
		}
		return domain.FillResult{FilledSize: slice.Size, AvgPrice: limit}, nil
	}
	exec := NewExecutor(placer, nil, testLogger())

	rep, _ := exec.Execute(context.Background(), testDecision())

	if rep.Status != domain.DecisionFailed {
		t.Errorf("status = %s, want failed", rep.Status)
	}
	if rep.FilledSize != 0 {
		t.Errorf("filled = %g, want 0", rep.FilledSize)
	}
	if rep.AbandonReason == "" {
		t.Error("abandon reason not recorded")
	}
}

func TestExecuteCancellation(t *testing.T) {
	placer := &stubPlacer{}
	exec := NewExecutor(placer, nil, testLogger())

	dec := testDecision()
	for i := range dec.Legs {
		dec.Legs[i].Slices = []domain.OrderSlice{
			{Size: 50, Type: domain.OrderTypeMarket, Delay: 100 * time.Millisecond},
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	rep, _ := exec.Execute(ctx, dec)

	if rep.Status != domain.DecisionCancelled {
		t.Errorf("status = %s, want cancelled", rep.Status)
	}
	if placer.calls != 0 {
		t.Errorf("placed %d slices after cancellation, want 0", placer.calls)
	}
}

func TestExecuteRefreshesPriceFromBook(t *testing.T) {
	books := newMemBooks()
	if err := books.SetSnapshot(context.Background(), domain.OrderbookSnapshot{
		Platform: domain.PlatformPolymarket, MarketID: "pm-1", Outcome: domain.OutcomeYes,
		Bids: []domain.PriceLevel{{Price: 0.46, Size: 1000}},
		Asks: []domain.PriceLevel{{Price: 0.47, Size: 1000}},
	}); err != nil {
		t.Fatal(err)
	}

	var limits []float64
	placer := &stubPlacer{}
	placer.fill = func(leg domain.DecisionLeg, slice domain.OrderSlice, limit float64) (domain.FillResult, error) {
		if leg.Platform == domain.PlatformPolymarket {
			limits = append(limits, limit)
		}
		return domain.FillResult{FilledSize: slice.Size, AvgPrice: limit}, nil
	}
	exec := NewExecutor(placer, books, testLogger())

	exec.Execute(context.Background(), testDecision())

	// The polymarket leg reprices off the live ask, not the stale decision
	// price; the kalshi leg has no book and keeps its quoted price.
	if len(limits) != 2 {
		t.Fatalf("recorded %d polymarket limits, want 2", len(limits))
	}
	if limits[0] != 0.47 {
		t.Errorf("first slice limit = %g, want 0.47", limits[0])
	}
	if math.Abs(limits[1]-0.471) > 1e-9 {
		t.Errorf("second slice limit = %g, want 0.471", limits[1])
	}
}
