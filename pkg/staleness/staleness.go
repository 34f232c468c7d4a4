// Package staleness keeps evidence honest over time. Sources at the top
// of the hierarchy (laws) move slowly and tolerate longer verification
// gaps than forum posts; confidence decays with evidence age and rules
// past their effective window are deprecated automatically.
package staleness

import (
	"time"

	"github.com/lexhr/curator/pkg/rules"
)

// MaxConsecutiveFailures is the number of failed availability checks
// before evidence is considered gone, not just unreachable.
const MaxConsecutiveFailures = 3

// Threshold returns the staleness threshold in days for a source
// hierarchy level (1 = law ... 5 = community practice).
func Threshold(hierarchy int) float64 {
	switch hierarchy {
	case 1:
		return 30
	case 2:
		return 21
	case 3:
		return 14
	default:
		return 7
	}
}

// ComputeStatus bands the age of the last successful verification
// against the hierarchy threshold t: ≤0.5t FRESH, ≤t AGING, ≤2t STALE,
// beyond EXPIRED. A detected content change forces at least STALE even
// for young evidence, since the captured bytes no longer match the
// source.
func ComputeStatus(daysSinceVerified float64, hierarchy int, contentChanged bool) rules.StalenessStatus {
	return ComputeStatusAgainst(daysSinceVerified, Threshold(hierarchy), contentChanged)
}

// ComputeStatusAgainst bands against an explicit threshold, for domains
// whose curation profile overrides the hierarchy default.
func ComputeStatusAgainst(daysSinceVerified, t float64, contentChanged bool) rules.StalenessStatus {
	var s rules.StalenessStatus
	switch {
	case daysSinceVerified <= 0.5*t:
		s = rules.StalenessFresh
	case daysSinceVerified <= t:
		s = rules.StalenessAging
	case daysSinceVerified <= 2*t:
		s = rules.StalenessStale
	default:
		s = rules.StalenessExpired
	}
	if contentChanged && (s == rules.StalenessFresh || s == rules.StalenessAging) {
		s = rules.StalenessStale
	}
	return s
}

// ConfidenceDecay returns the confidence penalty for evidence age in
// days: nothing under 90 days, then stepped penalties capped at 0.30.
func ConfidenceDecay(ageDays float64) float64 {
	switch {
	case ageDays < 90:
		return 0
	case ageDays < 180:
		return 0.05
	case ageDays < 365:
		return 0.10
	case ageDays < 730:
		return 0.20
	default:
		return 0.30
	}
}

// EffectiveConfidence is the rule's stored confidence minus the decay
// for how long the rule has been in effect, floored at zero.
func EffectiveConfidence(r *rules.RegulatoryRule, now time.Time) float64 {
	age := now.Sub(r.EffectiveFrom).Hours() / 24
	c := r.Confidence - ConfidenceDecay(age)
	if c < 0 {
		return 0
	}
	return c
}
