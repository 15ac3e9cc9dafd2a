// Package fees computes per-leg trading costs from static platform fee
// schedules.
package fees

import (
	"fmt"
	"math"
	"strings"

	"github.com/junheony/prediction-arbitrage/internal/config"
	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// Model computes the full fee breakdown for a fill on any configured
// platform. Schedules are fixed at construction; a malformed table is a
// startup error, not a per-trade one.
type Model struct {
	schedules     map[domain.Platform]domain.FeeSchedule
	gasMultiplier float64
}

// NewModel builds a Model from the configured fee tables. gasMultiplier
// scales the average gas cost to reflect current network congestion.
func NewModel(tables map[string]config.FeeScheduleConfig, gasMultiplier float64) (*Model, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("fees: no platform schedules configured")
	}
	if gasMultiplier <= 0 {
		return nil, fmt.Errorf("fees: gas multiplier must be > 0, got %g", gasMultiplier)
	}

	schedules := make(map[domain.Platform]domain.FeeSchedule, len(tables))
	for name, t := range tables {
		p := domain.Platform(strings.ToLower(name))
		if t.PercentFee < 0 || t.WithdrawalFee < 0 || t.GasFeeAvg < 0 || t.GasFeeMax < 0 || t.FeeCap < 0 {
			return nil, fmt.Errorf("fees: negative value in schedule for %s", p)
		}
		schedules[p] = domain.FeeSchedule{
			Platform:      p,
			PercentFee:    t.PercentFee,
			WithdrawalFee: t.WithdrawalFee,
			GasFeeAvg:     t.GasFeeAvg,
			GasFeeMax:     t.GasFeeMax,
			FeeCap:        t.FeeCap,
		}
	}
	return &Model{schedules: schedules, gasMultiplier: gasMultiplier}, nil
}

// Compute returns the fee breakdown for buying size tokens at price on the
// given platform.
func (m *Model) Compute(platform domain.Platform, size, price float64) (domain.FeeStructure, error) {
	sched, ok := m.schedules[platform]
	if !ok {
		return domain.FeeStructure{}, fmt.Errorf("fees: %w: %s", domain.ErrUnknownPlatform, platform)
	}
	if size <= 0 || price <= 0 {
		return domain.FeeStructure{}, fmt.Errorf("fees: size and price must be > 0 (size=%g price=%g)", size, price)
	}

	notional := size * price

	trading := notional * sched.PercentFee / 100
	// Kalshi-style cap: the trading fee is clamped to an absolute ceiling,
	// applied after the percentage so it binds the final trading fee.
	if sched.FeeCap > 0 && trading > sched.FeeCap {
		trading = sched.FeeCap
	}

	// Half the withdrawal fee is attributed to each round trip through the
	// platform.
	fixed := sched.WithdrawalFee / 2

	gas := sched.GasFeeAvg * m.gasMultiplier
	maxGas := sched.GasFeeMax
	if maxGas == 0 {
		maxGas = sched.GasFeeAvg * 4
	}
	gas = math.Min(gas, maxGas)

	total := trading + fixed + gas
	return domain.FeeStructure{
		Platform:    platform,
		TradingFee:  trading,
		FixedFee:    fixed,
		GasFee:      gas,
		Total:       total,
		PercentCost: total / notional * 100,
	}, nil
}

// Platforms lists the venues this model can price.
func (m *Model) Platforms() []domain.Platform {
	out := make([]domain.Platform, 0, len(m.schedules))
	for p := range m.schedules {
		out = append(out, p)
	}
	return out
}
