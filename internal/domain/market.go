package domain

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies a prediction-market venue.
type Platform string

const (
	PlatformPolymarket Platform = "polymarket"
	PlatformKalshi     Platform = "kalshi"
	PlatformManifold   Platform = "manifold"
)

// ParsePlatform converts a wire string into a known Platform.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(s)); p {
	case PlatformPolymarket, PlatformKalshi, PlatformManifold:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
	}
}

// Outcome is the side of a binary market a position is taken on.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// ParseOutcome converts a wire string into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(s)); o {
	case OutcomeYes, OutcomeNo:
		return o, nil
	default:
		return "", fmt.Errorf("unknown outcome %q", s)
	}
}

// Opposite returns the other side of a binary market.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// Market is a normalized snapshot of a binary market as delivered by a
// platform connector. Prices are probabilities in [0,1]; Liquidity and
// Volume24h are denominated in USD.
type Market struct {
	Platform         Platform
	ID               string
	Question         string
	Category         string
	ResolutionSource string
	ExpiresAt        time.Time
	Timezone         string // IANA zone name; empty when the venue did not report one
	YesPrice         float64
	NoPrice          float64
	Liquidity        float64
	Volume24h        float64
	UpdatedAt        time.Time
}

// PriceFor returns the quoted price of the given outcome.
func (m Market) PriceFor(o Outcome) float64 {
	if o == OutcomeYes {
		return m.YesPrice
	}
	return m.NoPrice
}
