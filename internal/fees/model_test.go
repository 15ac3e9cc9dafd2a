package fees

import (
	"errors"
	"math"
	"testing"

	"github.com/junheony/prediction-arbitrage/internal/config"
	"github.com/junheony/prediction-arbitrage/internal/domain"
)

func testModel(t *testing.T, gasMult float64) *Model {
	t.Helper()
	m, err := NewModel(map[string]config.FeeScheduleConfig{
		"polymarket": {PercentFee: 0, WithdrawalFee: 0, GasFeeAvg: 0.05, GasFeeMax: 0.20},
		"kalshi":     {PercentFee: 0.7, WithdrawalFee: 2.0, FeeCap: 1.00},
		"manifold":   {PercentFee: 0.5, WithdrawalFee: 1.0},
	}, gasMult)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	return m
}

func TestComputeBreakdown(t *testing.T) {
	m := testModel(t, 1.0)

	fee, err := m.Compute(domain.PlatformManifold, 100, 0.50)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// notional 50: trading 0.25, fixed 0.50, gas 0.
	if math.Abs(fee.TradingFee-0.25) > 1e-12 {
		t.Errorf("trading fee = %g, want 0.25", fee.TradingFee)
	}
	if fee.FixedFee != 0.50 {
		t.Errorf("fixed fee = %g, want 0.50", fee.FixedFee)
	}
	if fee.GasFee != 0 {
		t.Errorf("gas fee = %g, want 0", fee.GasFee)
	}
	if math.Abs(fee.Total-0.75) > 1e-12 {
		t.Errorf("total = %g, want 0.75", fee.Total)
	}
	if math.Abs(fee.PercentCost-1.5) > 1e-12 {
		t.Errorf("percent cost = %g, want 1.5", fee.PercentCost)
	}
}

func TestComputeFeeCap(t *testing.T) {
	m := testModel(t, 1.0)

	// Below the cap the percentage applies untouched: 100*0.9*0.7% = 0.63.
	fee, err := m.Compute(domain.PlatformKalshi, 100, 0.90)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if math.Abs(fee.TradingFee-0.63) > 1e-9 {
		t.Errorf("trading fee = %g, want 0.63", fee.TradingFee)
	}

	// At size the cap clamps the trading fee absolutely:
	// 1000*0.30*0.7% = 2.10, capped at 1.00.
	fee, err = m.Compute(domain.PlatformKalshi, 1000, 0.30)
	if err != nil {
		t.Fatal(err)
	}
	if fee.TradingFee != 1.00 {
		t.Errorf("capped trading fee = %g, want 1.00", fee.TradingFee)
	}
}

func TestComputeNeverExceedsFeeCap(t *testing.T) {
	m, err := NewModel(map[string]config.FeeScheduleConfig{
		"kalshi": {PercentFee: 5.0, FeeCap: 0.75},
	}, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	for _, size := range []float64{1, 10, 100, 1000, 50_000} {
		fee, err := m.Compute(domain.PlatformKalshi, size, 0.90)
		if err != nil {
			t.Fatalf("Compute(size=%g): %v", size, err)
		}
		if fee.TradingFee > 0.75 {
			t.Errorf("size %g: trading fee %g exceeds cap 0.75", size, fee.TradingFee)
		}
	}
}

func TestComputeGasCeiling(t *testing.T) {
	m := testModel(t, 10.0)
	fee, err := m.Compute(domain.PlatformPolymarket, 100, 0.50)
	if err != nil {
		t.Fatal(err)
	}
	// 0.05*10 = 0.50 would exceed the 0.20 ceiling.
	if fee.GasFee != 0.20 {
		t.Errorf("gas fee = %g, want ceiling 0.20", fee.GasFee)
	}
}

func TestComputeGasDefaultCeiling(t *testing.T) {
	m, err := NewModel(map[string]config.FeeScheduleConfig{
		"polymarket": {GasFeeAvg: 0.05},
	}, 100.0)
	if err != nil {
		t.Fatal(err)
	}
	fee, err := m.Compute(domain.PlatformPolymarket, 10, 0.50)
	if err != nil {
		t.Fatal(err)
	}
	// No explicit ceiling: defaults to 4x the average.
	if fee.GasFee != 0.20 {
		t.Errorf("gas fee = %g, want 4x avg = 0.20", fee.GasFee)
	}
}

func TestComputeNonNegative(t *testing.T) {
	m := testModel(t, 1.0)
	for _, p := range m.Platforms() {
		fee, err := m.Compute(p, 50, 0.01)
		if err != nil {
			t.Fatalf("Compute(%s): %v", p, err)
		}
		for name, v := range map[string]float64{
			"trading": fee.TradingFee, "fixed": fee.FixedFee,
			"gas": fee.GasFee, "total": fee.Total, "percent": fee.PercentCost,
		} {
			if v < 0 {
				t.Errorf("%s/%s fee negative: %g", p, name, v)
			}
		}
	}
}

func TestComputeUnknownPlatform(t *testing.T) {
	m := testModel(t, 1.0)
	if _, err := m.Compute(domain.Platform("predictit"), 10, 0.5); !errors.Is(err, domain.ErrUnknownPlatform) {
		t.Fatalf("err = %v, want ErrUnknownPlatform", err)
	}
}

func TestNewModelRejectsBadInput(t *testing.T) {
	if _, err := NewModel(nil, 1.0); err == nil {
		t.Error("empty tables accepted")
	}
	if _, err := NewModel(map[string]config.FeeScheduleConfig{"kalshi": {}}, 0); err == nil {
		t.Error("zero gas multiplier accepted")
	}
	if _, err := NewModel(map[string]config.FeeScheduleConfig{"kalshi": {PercentFee: -1}}, 1.0); err == nil {
		t.Error("negative percent fee accepted")
	}
}
