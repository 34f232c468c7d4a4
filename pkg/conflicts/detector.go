// Package conflicts finds overlapping or contradictory rules for the
// same concept. Nothing here auto-resolves: every detected conflict is
// recorded OPEN for an external arbiter.
package conflicts

import (
	"context"
	"fmt"
	"time"

	"github.com/lexhr/curator/pkg/applieswhen"
	"github.com/lexhr/curator/pkg/canonical"
	"github.com/lexhr/curator/pkg/rules"
	"github.com/lexhr/curator/pkg/store"
)

// Detector compares a candidate rule against the stored rules of its
// concept.
type Detector struct {
	rulesRepo store.RuleRepo
	conflicts store.ConflictRepo
	eval      *applieswhen.Evaluator
}

// NewDetector builds a detector over the rule and conflict
// repositories.
func NewDetector(rulesRepo store.RuleRepo, conflicts store.ConflictRepo) *Detector {
	// A failed evaluator setup disables condition probing; structural
	// checks still run.
	eval, err := applieswhen.NewEvaluator()
	if err != nil {
		eval = nil
	}
	return &Detector{rulesRepo: rulesRepo, conflicts: conflicts, eval: eval}
}

// Detect returns the new conflicts the candidate introduces. Pairs that
// already have an OPEN conflict are skipped, so repeated composition of
// the same concept does not multiply conflict records.
//
// Tie-break: a strictly higher authority never conflicts with a lower
// one; the lower rule is informational. Equal-authority disagreement
// always produces a conflict.
func (d *Detector) Detect(ctx context.Context, candidate *rules.RegulatoryRule) ([]*rules.RegulatoryConflict, error) {
	existing, err := d.rulesRepo.ByConcept(ctx, candidate.ConceptSlug)
	if err != nil {
		return nil, fmt.Errorf("conflicts: list concept rules: %w", err)
	}

	var found []*rules.RegulatoryConflict
	for _, other := range existing {
		if other.ID == candidate.ID || other.Status == rules.StatusDeprecated {
			continue
		}
		conflict := d.compare(ctx, candidate, other)
		if conflict == nil {
			continue
		}
		open, err := d.conflicts.OpenForPair(ctx, candidate.ID, other.ID)
		if err != nil {
			return nil, fmt.Errorf("conflicts: dedupe lookup: %w", err)
		}
		if open {
			continue
		}
		found = append(found, conflict)
	}
	return found, nil
}

func (d *Detector) compare(ctx context.Context, candidate, other *rules.RegulatoryRule) *rules.RegulatoryConflict {
	if rankDiffers(candidate, other) {
		return nil
	}

	if bothBoolean(candidate, other) && !sameValue(candidate, other) {
		if sameCondition(candidate, other) || d.conditionsCoincide(ctx, candidate, other) {
			return rules.NewConflict(rules.ConflictContradiction,
				fmt.Sprintf("rules %s and %s state contradictory outcomes for subjects matching both applicability conditions of concept %s",
					candidate.ID, other.ID, candidate.ConceptSlug),
				[]string{candidate.ID, other.ID}, nil)
		}
	}

	if candidate.EffectiveWindowOverlaps(other) && !sameValue(candidate, other) {
		return rules.NewConflict(rules.ConflictOverlap,
			fmt.Sprintf("rules %s and %s hold different values for concept %s over an overlapping effective window",
				candidate.ID, other.ID, candidate.ConceptSlug),
			[]string{candidate.ID, other.ID}, nil)
	}
	return nil
}

// conditionsCoincide probes whether two structurally different
// conditions can hold for the same subject. Sample facts are derived
// from each tree's own leaves and both trees are evaluated against
// every sample; one sample satisfying both proves the conditions share
// subjects. The probe is best effort and only ever widens detection.
func (d *Detector) conditionsCoincide(ctx context.Context, a, b *rules.RegulatoryRule) bool {
	if d.eval == nil {
		return false
	}
	fa := sampleFacts(a.AppliesWhen)
	fb := sampleFacts(b.AppliesWhen)
	for _, facts := range []map[string]any{fa, fb, mergeFacts(fa, fb), mergeFacts(fb, fa)} {
		okA, errA := d.eval.Evaluate(ctx, a.AppliesWhen, facts)
		okB, errB := d.eval.Evaluate(ctx, b.AppliesWhen, facts)
		if errA == nil && errB == nil && okA && okB {
			return true
		}
	}
	return false
}

// sampleFacts derives one satisfying fact assignment from a condition
// tree's comparison leaves. First assignment per field wins; negations
// are skipped, which can only make the probe miss, never misfire.
func sampleFacts(n *applieswhen.Node) map[string]any {
	facts := make(map[string]any)
	collectFacts(n, facts)
	return facts
}

func collectFacts(n *applieswhen.Node, facts map[string]any) {
	if n == nil {
		return
	}
	switch n.Op {
	case applieswhen.OpAnd, applieswhen.OpOr:
		for _, c := range n.Children {
			collectFacts(c, facts)
		}
	case applieswhen.OpEq, applieswhen.OpGte, applieswhen.OpLte:
		setFact(facts, n.Field, n.Value)
	case applieswhen.OpGt:
		if v, ok := asFloat(n.Value); ok {
			setFact(facts, n.Field, v+1)
		}
	case applieswhen.OpLt:
		if v, ok := asFloat(n.Value); ok {
			setFact(facts, n.Field, v-1)
		}
	case applieswhen.OpIn:
		if vs, ok := n.Value.([]any); ok && len(vs) > 0 {
			setFact(facts, n.Field, vs[0])
		}
	case applieswhen.OpDateRange:
		s := n.From
		if s == "" {
			s = n.Until
		}
		if t, err := applieswhen.ParseDate(s); err == nil {
			setFact(facts, n.Field, t.Format(time.RFC3339))
		}
	}
}

func setFact(facts map[string]any, field string, value any) {
	if _, ok := facts[field]; !ok {
		facts[field] = value
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}

// mergeFacts overlays b's assignments onto a copy of a.
func mergeFacts(a, b map[string]any) map[string]any {
	merged := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}

// rankDiffers reports a strict authority difference between the two
// rules, which suppresses conflict recording entirely.
func rankDiffers(a, b *rules.RegulatoryRule) bool {
	return a.Authority.Rank() != b.Authority.Rank()
}

func sameCondition(a, b *rules.RegulatoryRule) bool {
	return applieswhen.Equal(a.AppliesWhen, b.AppliesWhen)
}

func bothBoolean(a, b *rules.RegulatoryRule) bool {
	_, aOK := a.Value.(bool)
	_, bOK := b.Value.(bool)
	return aOK && bOK
}

func sameValue(a, b *rules.RegulatoryRule) bool {
	ja, errA := canonical.JCS(a.Value)
	jb, errB := canonical.JCS(b.Value)
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}
