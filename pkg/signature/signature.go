// Package signature derives the meaning signature of a regulatory rule:
// a deterministic hash over its semantic identity (concept, value, value
// type, effective window). Two rules stating the same fact always share
// a signature, which is the store-level uniqueness key preventing
// duplicate rules.
package signature

import (
	"time"

	"github.com/lexhr/curator/pkg/canonical"
)

// Compute hashes the semantic identity tuple. Dates are stringified as
// RFC 3339 UTC; a nil until bound canonicalizes to JSON null; structured
// values are recursively key-sorted by the canonical encoder, so input
// field ordering never affects the result.
func Compute(conceptSlug string, value any, valueType string, effectiveFrom time.Time, effectiveUntil *time.Time) (string, error) {
	tuple := map[string]any{
		"concept_slug":    conceptSlug,
		"value":           value,
		"value_type":      valueType,
		"effective_from":  effectiveFrom.UTC().Format(time.RFC3339),
		"effective_until": nil,
	}
	if effectiveUntil != nil {
		tuple["effective_until"] = effectiveUntil.UTC().Format(time.RFC3339)
	}
	return canonical.CanonicalHash(tuple)
}
