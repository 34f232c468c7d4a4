// Package release computes the deterministic integrity hash of a rule
// set and packages it into versioned, exportable snapshots. The same
// set of rules always hashes identically, regardless of input order or
// map key ordering, so two parties can verify a published release
// byte-for-byte.
package release

import (
	"fmt"
	"sort"
	"time"

	"github.com/lexhr/curator/pkg/applieswhen"
	"github.com/lexhr/curator/pkg/canonical"
	"github.com/lexhr/curator/pkg/rules"
)

// projection is the hashed view of one rule: semantic fields only.
// Volatile fields (timestamps, confidence, pointer ids) stay out so
// re-publishing an unchanged rule set yields the same hash.
func projection(r *rules.RegulatoryRule) map[string]any {
	p := map[string]any{
		"concept_slug":    r.ConceptSlug,
		"value":           r.Value,
		"value_type":      r.ValueType,
		"applies_when":    applieswhen.Canonical(r.AppliesWhen),
		"effective_from":  r.EffectiveFrom.UTC().Format(time.RFC3339),
		"effective_until": nil,
		"authority_level": string(r.Authority),
		"status":          string(r.Status),
	}
	if r.EffectiveUntil != nil {
		p["effective_until"] = r.EffectiveUntil.UTC().Format(time.RFC3339)
	}
	return p
}

// ComputeReleaseHash hashes the canonical projection of the rule set.
// Rules are ordered by concept slug, then id, before hashing; the empty
// set hashes the canonical empty array.
func ComputeReleaseHash(rs []*rules.RegulatoryRule) (string, error) {
	ordered := make([]*rules.RegulatoryRule, len(rs))
	copy(ordered, rs)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ConceptSlug != ordered[j].ConceptSlug {
			return ordered[i].ConceptSlug < ordered[j].ConceptSlug
		}
		return ordered[i].ID < ordered[j].ID
	})

	projections := make([]map[string]any, 0, len(ordered))
	for _, r := range ordered {
		projections = append(projections, projection(r))
	}
	hash, err := canonical.CanonicalHash(projections)
	if err != nil {
		return "", fmt.Errorf("release: hash rule set: %w", err)
	}
	return hash, nil
}
