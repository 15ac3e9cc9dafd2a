package slippage

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

func testEstimator(strategy domain.SplitStrategy) *Estimator {
	return NewEstimator(Config{
		TolerancePercent:   1.0,
		ShortfallPercent:   5.0,
		MaxSplits:          10,
		Strategy:           strategy,
		SliceDelay:         500 * time.Millisecond,
		SliceDepthFraction: 0.30,
		SlicePriceOffset:   0.001,
		ExponentialDecay:   0.7,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func deepBook() domain.OrderbookSnapshot {
	return domain.OrderbookSnapshot{
		Platform: domain.PlatformPolymarket,
		MarketID: "m1",
		Outcome:  domain.OutcomeYes,
		Asks: []domain.PriceLevel{
			{Price: 0.50, Size: 100},
			{Price: 0.51, Size: 200},
			{Price: 0.53, Size: 300},
			{Price: 0.56, Size: 400},
		},
		Bids: []domain.PriceLevel{
			{Price: 0.49, Size: 100},
			{Price: 0.48, Size: 200},
		},
	}
}

func TestEstimateWithinTopLevel(t *testing.T) {
	e := testEstimator(domain.SplitExponential)
	est := e.Estimate(50, deepBook(), domain.SideBuy)

	if est.Shortfall {
		t.Fatal("unexpected shortfall")
	}
	if est.AvgPrice != 0.50 {
		t.Errorf("avg price = %g, want 0.50", est.AvgPrice)
	}
	if est.Slippage != 0 {
		t.Errorf("slippage = %g, want 0", est.Slippage)
	}
	if len(est.Slices) != 1 || est.Slices[0].Size != 50 || est.Slices[0].Type != domain.OrderTypeMarket {
		t.Errorf("want one market slice of 50, got %+v", est.Slices)
	}
}

func TestEstimateWalksLevels(t *testing.T) {
	e := testEstimator(domain.SplitExponential)
	est := e.Estimate(300, deepBook(), domain.SideBuy)

	// 100@0.50 + 200@0.51 = 152 for 300 -> avg 0.506667.
	wantAvg := (100*0.50 + 200*0.51) / 300
	if math.Abs(est.AvgPrice-wantAvg) > 1e-12 {
		t.Errorf("avg price = %g, want %g", est.AvgPrice, wantAvg)
	}
	wantSlipPct := (wantAvg - 0.50) / 0.50 * 100
	if math.Abs(est.SlippagePercent-wantSlipPct) > 1e-9 {
		t.Errorf("slippage pct = %g, want %g", est.SlippagePercent, wantSlipPct)
	}
	// 1.33% > 1% tolerance: must be split.
	if len(est.Slices) < 2 {
		t.Errorf("expected split schedule, got %d slices", len(est.Slices))
	}
}

func TestEstimateSellSide(t *testing.T) {
	e := testEstimator(domain.SplitExponential)
	est := e.Estimate(150, deepBook(), domain.SideSell)

	// 100@0.49 + 50@0.48 -> avg 0.486667; sell slippage is best - avg.
	wantAvg := (100*0.49 + 50*0.48) / 150
	if math.Abs(est.AvgPrice-wantAvg) > 1e-12 {
		t.Errorf("avg price = %g, want %g", est.AvgPrice, wantAvg)
	}
	if est.Slippage <= 0 {
		t.Errorf("sell slippage = %g, want positive", est.Slippage)
	}
}

func TestEstimateShortfall(t *testing.T) {
	e := testEstimator(domain.SplitExponential)
	est := e.Estimate(5000, deepBook(), domain.SideBuy)

	if !est.Shortfall {
		t.Fatal("expected shortfall")
	}
	if est.SlippagePercent != 5.0 {
		t.Errorf("shortfall slippage = %g, want default 5.0", est.SlippagePercent)
	}
	if est.RecommendedSize != 100 {
		t.Errorf("recommended size = %g, want 100 (depth within 1%% band)", est.RecommendedSize)
	}
}

func TestEstimateEmptyBook(t *testing.T) {
	e := testEstimator(domain.SplitExponential)
	est := e.Estimate(100, domain.OrderbookSnapshot{}, domain.SideBuy)
	if !est.Shortfall || est.SlippagePercent != 5.0 {
		t.Errorf("empty book: shortfall=%v slip=%g, want true/5.0", est.Shortfall, est.SlippagePercent)
	}
}

func TestExponentialSplitSumsExactly(t *testing.T) {
	e := testEstimator(domain.SplitExponential)
	for slipPct := 1.5; slipPct <= 12; slipPct += 0.5 {
		slices := e.PlanSplits(500, deepBook().Asks, slipPct)
		if len(slices) < 2 {
			t.Fatalf("slip %g: expected split, got %d slices", slipPct, len(slices))
		}
		var sum float64
		for _, s := range slices {
			sum += s.Size
		}
		if sum != 500 {
			t.Errorf("slip %g: slice sum = %v, want exactly 500", slipPct, sum)
		}
	}
}

func TestExponentialSplitShape(t *testing.T) {
	e := testEstimator(domain.SplitExponential)
	slices := e.PlanSplits(1000, nil, 3.0) // ceil(3/1) = 3 slices

	if len(slices) != 3 {
		t.Fatalf("got %d slices, want 3", len(slices))
	}
	// Sizes decay, first is a market order, delays step up.
	if !(slices[0].Size > slices[1].Size && slices[1].Size > slices[2].Size) {
		t.Errorf("sizes not decaying: %v %v %v", slices[0].Size, slices[1].Size, slices[2].Size)
	}
	if slices[0].Type != domain.OrderTypeMarket || slices[1].Type != domain.OrderTypeLimit {
		t.Errorf("types = %v/%v, want market/limit", slices[0].Type, slices[1].Type)
	}
	for i, s := range slices {
		wantDelay := time.Duration(i) * 500 * time.Millisecond
		if s.Delay != wantDelay {
			t.Errorf("slice %d delay = %v, want %v", i, s.Delay, wantDelay)
		}
		if math.Abs(s.PriceOffset-float64(i)*0.001) > 1e-15 {
			t.Errorf("slice %d offset = %v", i, s.PriceOffset)
		}
	}
}

func TestSplitCountCapped(t *testing.T) {
	e := testEstimator(domain.SplitExponential)
	slices := e.PlanSplits(1000, nil, 50.0) // would be 50 slices uncapped
	if len(slices) != 10 {
		t.Errorf("got %d slices, want MaxSplits cap of 10", len(slices))
	}
}

func TestLiquiditySplitRespectsDepth(t *testing.T) {
	e := testEstimator(domain.SplitLiquidity)
	levels := deepBook().Asks
	slices := e.PlanSplits(500, levels, 4.0)

	var sum float64
	for i, s := range slices {
		sum += s.Size
		if i < len(slices)-1 {
			maxAllowed := levels[i].Size * 0.30
			if s.Size > maxAllowed+1e-12 {
				t.Errorf("slice %d size %g exceeds 30%% of level depth %g", i, s.Size, maxAllowed)
			}
		}
	}
	if math.Abs(sum-500) > 1e-9 {
		t.Errorf("slice sum = %g, want 500", sum)
	}
	// The unabsorbed remainder rides the tail slice with a doubled concession.
	last := slices[len(slices)-1]
	if last.PriceOffset != 0.002 {
		t.Errorf("tail offset = %g, want 0.002", last.PriceOffset)
	}
}
