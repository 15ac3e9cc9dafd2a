package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// SourceInfo describes one known resolution oracle: how trustworthy it is,
// how long it typically takes to settle, and which platforms are known to
// resolve against it.
type SourceInfo struct {
	Reliability float64
	DelayHours  float64
	Platforms   []domain.Platform
}

// DefaultSources is the built-in resolution source registry. Operators can
// extend or override it from configuration.
func DefaultSources() map[string]SourceInfo {
	return map[string]SourceInfo{
		"associated press": {Reliability: 0.95, DelayHours: 1, Platforms: []domain.Platform{domain.PlatformPolymarket, domain.PlatformKalshi}},
		"reuters":          {Reliability: 0.95, DelayHours: 1, Platforms: []domain.Platform{domain.PlatformPolymarket, domain.PlatformKalshi}},
		"uma":              {Reliability: 0.85, DelayHours: 4, Platforms: []domain.Platform{domain.PlatformPolymarket}},
		"kalshi":           {Reliability: 0.90, DelayHours: 2, Platforms: []domain.Platform{domain.PlatformKalshi}},
		"coinbase":         {Reliability: 0.90, DelayHours: 1, Platforms: []domain.Platform{domain.PlatformPolymarket, domain.PlatformKalshi}},
		"official results": {Reliability: 0.90, DelayHours: 6, Platforms: []domain.Platform{domain.PlatformPolymarket, domain.PlatformKalshi, domain.PlatformManifold}},
		"community":        {Reliability: 0.60, DelayHours: 12, Platforms: []domain.Platform{domain.PlatformManifold}},
	}
}

// unknownSource is assumed for any resolution source not in the registry:
// middling trust and a pessimistic settlement delay.
var unknownSource = SourceInfo{Reliability: 0.5, DelayHours: 24}

func sourceKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// lookupSource resolves a free-text resolution source against the registry.
// It tries an exact (lowercased) match first, then a substring match in
// either direction.
func lookupSource(registry map[string]SourceInfo, raw string) (SourceInfo, bool) {
	key := sourceKey(raw)
	if key == "" {
		return unknownSource, false
	}
	if info, ok := registry[key]; ok {
		return info, true
	}
	for name, info := range registry {
		if strings.Contains(key, name) || strings.Contains(name, key) {
			return info, true
		}
	}
	return unknownSource, false
}

// resolutionCompatibility scores how safely two markets can be treated as
// resolving identically. The same source on both sides is a perfect match;
// otherwise it blends how closely the sources agree in trust (40%), how far
// apart their settlement delays are (30%), and whether each source is known
// to serve the other platform (30%).
func resolutionCompatibility(registry map[string]SourceInfo, a, b domain.Market) (float64, []string) {
	var warnings []string

	infoA, knownA := lookupSource(registry, a.ResolutionSource)
	if !knownA {
		warnings = append(warnings, fmt.Sprintf("unknown resolution source %q on %s", a.ResolutionSource, a.Platform))
	}
	infoB, knownB := lookupSource(registry, b.ResolutionSource)
	if !knownB {
		warnings = append(warnings, fmt.Sprintf("unknown resolution source %q on %s", b.ResolutionSource, b.Platform))
	}

	// Identical sources settle identically no matter what we know about them.
	if sourceKey(a.ResolutionSource) == sourceKey(b.ResolutionSource) {
		return 1.0, warnings
	}

	reliability := 1 - math.Abs(infoA.Reliability-infoB.Reliability)

	delayDiff := math.Abs(infoA.DelayHours - infoB.DelayHours)
	var delayScore float64
	if delayDiff > 6 {
		delayScore = 0.5
		warnings = append(warnings, fmt.Sprintf("resolution delays differ by %.1f hours", delayDiff))
	} else {
		delayScore = 1 - delayDiff/12
	}

	crossA := platformListed(infoA.Platforms, b.Platform)
	crossB := platformListed(infoB.Platforms, a.Platform)
	var crossScore float64
	switch {
	case crossA && crossB:
		crossScore = 0.9
	case crossA || crossB:
		crossScore = 0.7
		warnings = append(warnings, "only one resolution source is known to serve both platforms")
	default:
		crossScore = 0.5
	}

	return reliability*0.4 + delayScore*0.3 + crossScore*0.3, warnings
}

func platformListed(list []domain.Platform, p domain.Platform) bool {
	for _, x := range list {
		if x == p {
			return true
		}
	}
	return false
}
