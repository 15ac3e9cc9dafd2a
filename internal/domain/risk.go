package domain

import "time"

// RiskLevel buckets an aggregated risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevelFromScore maps a weighted risk score in [0,1] to a level.
func RiskLevelFromScore(score float64) RiskLevel {
	switch {
	case score < 0.2:
		return RiskLow
	case score < 0.5:
		return RiskMedium
	case score < 0.8:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// RiskCheck is the outcome of a single pre-trade control.
type RiskCheck struct {
	Name   string
	Passed bool
	Value  float64
	Limit  float64
	Reason string
}

// RiskEvaluation is the combined verdict of all pre-trade controls for one
// candidate entry.
type RiskEvaluation struct {
	Allowed         bool
	Checks          []RiskCheck
	Score           float64
	Level           RiskLevel
	Recommendations []string
	EvaluatedAt     time.Time
}

// FailedChecks returns the names of checks that did not pass.
func (e RiskEvaluation) FailedChecks() []string {
	var names []string
	for _, c := range e.Checks {
		if !c.Passed {
			names = append(names, c.Name)
		}
	}
	return names
}

// RiskAlert is an operator-facing notification about a denied or degraded
// risk state.
type RiskAlert struct {
	Severity  RiskLevel
	MarketID  string
	Platform  Platform
	Reason    string
	Metrics   map[string]float64
	CreatedAt time.Time
}
