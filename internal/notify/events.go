package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// Event types emitted by the decision pipeline. The config's notify.events
// list selects which of these reach operators.
const (
	EventDecisionEmitted  = "decision_emitted"
	EventRiskDenied       = "risk_denied"
	EventRiskCritical     = "risk_critical"
	EventExecutionPartial = "execution_partial"
	EventError            = "error"
)

// DecisionEmitted notifies operators that a trade decision passed all gates.
func (n *Notifier) DecisionEmitted(ctx context.Context, dec domain.TradeDecision) error {
	opp := dec.Opportunity
	title := fmt.Sprintf("Arbitrage decision %s", shortID(dec.ID))
	msg := fmt.Sprintf(
		"%s %s @ %.3f / %s %s @ %.3f\nGap %.2f%%  ROI %.2f%%\nSize %.1f contracts  Expected profit $%.2f\nRisk %s (%.2f)",
		opp.MarketA.Platform, opp.OutcomeA, opp.PriceA,
		opp.MarketB.Platform, opp.OutcomeB, opp.PriceB,
		opp.GapPercent(), opp.ROIPercent,
		dec.Size, dec.ExpectedProfit,
		dec.RiskLevel, dec.RiskScore,
	)
	return n.Notify(ctx, EventDecisionEmitted, title, msg)
}

// RiskDenied reports a candidate that was rejected by the risk controller,
// with the checks that failed. Critical denials go out under their own event
// type so operators can subscribe to just those.
func (n *Notifier) RiskDenied(ctx context.Context, eval domain.RiskEvaluation) error {
	event := EventRiskDenied
	if eval.Level == domain.RiskCritical {
		event = EventRiskCritical
	}

	var lines []string
	for _, c := range eval.Checks {
		if c.Passed {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (%.2f > %.2f)", c.Name, c.Reason, c.Value, c.Limit))
	}
	for _, r := range eval.Recommendations {
		lines = append(lines, "> "+r)
	}

	title := fmt.Sprintf("Entry denied: %s risk (%.2f)", eval.Level, eval.Score)
	return n.Notify(ctx, event, title, strings.Join(lines, "\n"))
}

// ExecutionPartial reports a decision that did not fill completely.
func (n *Notifier) ExecutionPartial(ctx context.Context, rep domain.ExecutionReport) error {
	title := fmt.Sprintf("Partial fill on %s", shortID(rep.DecisionID))
	msg := fmt.Sprintf("Filled %.1f of %.1f contracts across %d/%d slices",
		rep.FilledSize, rep.RequestedSize, rep.SlicesPlaced, rep.SlicesTotal)
	if rep.AbandonReason != "" {
		msg += "\nAbandoned: " + rep.AbandonReason
	}
	return n.Notify(ctx, EventExecutionPartial, title, msg)
}

// Error reports a pipeline failure.
func (n *Notifier) Error(ctx context.Context, stage string, err error) error {
	return n.Notify(ctx, EventError, "Pipeline error: "+stage, err.Error())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
