package matching

import (
	"fmt"
	"math"
	"time"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// expiryAlignment scores how close the two expiries are. A pair can be
// textually identical yet resolve hours apart, leaving one leg alive while
// the other settles.
func expiryAlignment(a, b domain.Market) (float64, []string) {
	var warnings []string

	diff := a.ExpiresAt.Sub(b.ExpiresAt)
	if diff < 0 {
		diff = -diff
	}

	var score float64
	switch {
	case diff == 0:
		score = 1.0
	case diff < time.Hour:
		score = 0.95
	case diff < 24*time.Hour:
		score = 0.85
		warnings = append(warnings, fmt.Sprintf("expiries differ by %s", diff.Round(time.Minute)))
	case diff < 7*24*time.Hour:
		score = 0.60
		warnings = append(warnings, fmt.Sprintf("expiries differ by %s", diff.Round(time.Hour)))
	default:
		score = 0.30
		warnings = append(warnings, fmt.Sprintf("HIGH RISK: expiries differ by %s", diff.Round(time.Hour)))
	}

	// Same calendar date in UTC usually means the same underlying event even
	// when the venue-reported hour differs.
	ya, ma, da := a.ExpiresAt.UTC().Date()
	yb, mb, db := b.ExpiresAt.UTC().Date()
	if ya == yb && ma == mb && da == db {
		score = math.Min(1.0, score+0.10)
	} else if diff > 0 {
		warnings = append(warnings, "expiries fall on different calendar dates")
	}

	return score, warnings
}

// timezoneMatch scores the agreement of the venue-reported timezones,
// evaluating UTC offsets at each market's own expiry so daylight saving
// transitions are accounted for.
func timezoneMatch(a, b domain.Market) (float64, []string) {
	if a.Timezone == "" || b.Timezone == "" {
		return 0.70, []string{"timezone missing on at least one venue"}
	}
	if a.Timezone == b.Timezone {
		return 1.0, nil
	}

	locA, errA := time.LoadLocation(a.Timezone)
	locB, errB := time.LoadLocation(b.Timezone)
	if errA != nil || errB != nil {
		return 0.5, []string{"unrecognized timezone name"}
	}

	_, offA := a.ExpiresAt.In(locA).Zone()
	_, offB := b.ExpiresAt.In(locB).Zone()
	diffHours := math.Abs(float64(offA-offB)) / 3600

	switch {
	case diffHours == 0:
		return 1.0, nil
	case diffHours <= 1:
		return 0.9, nil
	case diffHours <= 3:
		return 0.8, []string{fmt.Sprintf("timezones differ by %.1fh at expiry", diffHours)}
	default:
		return 0.6, []string{fmt.Sprintf("timezones differ by %.1fh at expiry", diffHours)}
	}
}
