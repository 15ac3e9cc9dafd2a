package matching

import (
	"log/slog"
	"math"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// Blend weights for the overall match score.
const (
	weightQuestion   = 0.35
	weightResolution = 0.30
	weightExpiry     = 0.25
	weightTimezone   = 0.10
)

// Sub-scores below this mark the corresponding dimension as a risk factor.
const riskFactorThreshold = 0.60

// Config holds the acceptance thresholds for the validator.
type Config struct {
	MinOverallScore float64
	MinConfidence   float64
	MaxRiskFactors  int
}

// Validator scores candidate cross-platform market pairs.
type Validator struct {
	cfg     Config
	sources map[string]SourceInfo
	logger  *slog.Logger
}

// NewValidator builds a Validator. extraSources entries are merged over the
// built-in resolution source registry.
func NewValidator(cfg Config, extraSources map[string]SourceInfo, logger *slog.Logger) *Validator {
	sources := DefaultSources()
	for name, info := range extraSources {
		sources[name] = info
	}
	return &Validator{
		cfg:     cfg,
		sources: sources,
		logger:  logger.With(slog.String("component", "matching")),
	}
}

// Validate scores a candidate pair. Pairs on the same platform are never
// valid arbitrage counterparts and return domain.ErrSamePlatform.
func (v *Validator) Validate(a, b domain.Market) (domain.MarketMatch, error) {
	if a.Platform == b.Platform {
		return domain.MarketMatch{}, domain.ErrSamePlatform
	}

	var warnings []string

	qScore := QuestionSimilarity(a.Question, b.Question)

	rScore, rWarn := resolutionCompatibility(v.sources, a, b)
	warnings = append(warnings, rWarn...)

	eScore, eWarn := expiryAlignment(a, b)
	warnings = append(warnings, eWarn...)

	tScore, tWarn := timezoneMatch(a, b)
	warnings = append(warnings, tWarn...)

	overall := qScore*weightQuestion + rScore*weightResolution + eScore*weightExpiry + tScore*weightTimezone

	var risks []string
	if qScore < riskFactorThreshold {
		risks = append(risks, "low question similarity")
	}
	if rScore < riskFactorThreshold {
		risks = append(risks, "weak resolution compatibility")
	}
	if eScore < riskFactorThreshold {
		risks = append(risks, "poor expiry alignment")
	}

	confidence := overall * (1 - 0.10*float64(len(risks))) * (1 - 0.05*float64(len(warnings)))
	confidence = math.Max(0, confidence)

	acceptable := overall >= v.cfg.MinOverallScore

	match := domain.MarketMatch{
		MarketA: a,
		MarketB: b,
		Score: domain.MatchScore{
			QuestionSimilarity:      qScore,
			ResolutionCompatibility: rScore,
			ExpiryAlignment:         eScore,
			TimezoneMatch:           tScore,
			Overall:                 overall,
			Acceptable:              acceptable,
			Warnings:                warnings,
		},
		Confidence:  confidence,
		Recommended: acceptable && confidence > v.cfg.MinConfidence && len(risks) <= v.cfg.MaxRiskFactors,
		RiskFactors: risks,
	}

	v.logger.Debug("pair scored",
		slog.String("market_a", a.ID),
		slog.String("market_b", b.ID),
		slog.Float64("overall", overall),
		slog.Float64("confidence", confidence),
		slog.Bool("recommended", match.Recommended),
	)

	return match, nil
}
