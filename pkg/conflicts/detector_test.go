package conflicts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexhr/curator/pkg/applieswhen"
	"github.com/lexhr/curator/pkg/rules"
	"github.com/lexhr/curator/pkg/store"
)

func seedRule(t *testing.T, s *store.Store, slug string, value any, auth rules.AuthorityLevel, from, until string, when *applieswhen.Node) *rules.RegulatoryRule {
	t.Helper()
	var untilPtr *time.Time
	if until != "" {
		u, err := time.Parse("2006-01-02", until)
		require.NoError(t, err)
		untilPtr = &u
	}
	f, err := time.Parse("2006-01-02", from)
	require.NoError(t, err)

	r, err := rules.NewDraftRule(rules.DraftRuleParams{
		ConceptSlug:      slug,
		Authority:        auth,
		AppliesWhen:      when,
		Value:            value,
		ValueType:        "number",
		EffectiveFrom:    f,
		EffectiveUntil:   untilPtr,
		Confidence:       0.9,
		MeaningSignature: "sig-" + uuid.New().String(),
		SourcePointerIDs: []string{"ptr-1"},
	})
	require.NoError(t, err)
	require.NoError(t, s.Rules.Insert(context.Background(), r))
	return r
}

func TestDetect_OverlappingWindowsDifferentValues(t *testing.T) {
	s := store.NewMemory().Bundle()
	d := NewDetector(s.Rules, s.Conflicts)

	existing := seedRule(t, s, "pdv-opca-stopa", 25, rules.AuthorityLaw, "2025-01-01", "", nil)
	candidate := seedRule(t, s, "pdv-opca-stopa", 23, rules.AuthorityLaw, "2025-06-01", "", nil)

	found, err := d.Detect(context.Background(), candidate)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, rules.ConflictOverlap, found[0].Type)
	assert.Equal(t, rules.ConflictOpen, found[0].Status)
	assert.ElementsMatch(t, []string{existing.ID, candidate.ID}, found[0].RuleIDs)
}

func TestDetect_DisjointWindowsNoConflict(t *testing.T) {
	s := store.NewMemory().Bundle()
	d := NewDetector(s.Rules, s.Conflicts)

	seedRule(t, s, "pdv-opca-stopa", 22, rules.AuthorityLaw, "2024-01-01", "2025-01-01", nil)
	candidate := seedRule(t, s, "pdv-opca-stopa", 25, rules.AuthorityLaw, "2025-01-01", "", nil)

	found, err := d.Detect(context.Background(), candidate)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDetect_SameValueNoConflict(t *testing.T) {
	s := store.NewMemory().Bundle()
	d := NewDetector(s.Rules, s.Conflicts)

	seedRule(t, s, "pdv-opca-stopa", 25, rules.AuthorityLaw, "2025-01-01", "", nil)
	candidate := seedRule(t, s, "pdv-opca-stopa", 25, rules.AuthorityLaw, "2025-06-01", "", nil)

	found, err := d.Detect(context.Background(), candidate)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDetect_HigherAuthoritySuppressesConflict(t *testing.T) {
	s := store.NewMemory().Bundle()
	d := NewDetector(s.Rules, s.Conflicts)

	// A law and a guidance note disagreeing is not a conflict: the law
	// wins and the guidance rule is informational.
	seedRule(t, s, "pdv-opca-stopa", 25, rules.AuthorityLaw, "2025-01-01", "", nil)
	candidate := seedRule(t, s, "pdv-opca-stopa", 23, rules.AuthorityGuidance, "2025-01-01", "", nil)

	found, err := d.Detect(context.Background(), candidate)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDetect_ContradictoryOutcome(t *testing.T) {
	s := store.NewMemory().Bundle()
	d := NewDetector(s.Rules, s.Conflicts)

	when, err := applieswhen.Parse([]byte(`{"op":"eq","field":"entity_type","value":"obrt"}`))
	require.NoError(t, err)
	whenReordered, err := applieswhen.Parse([]byte(`{"op":"eq","field":"entity_type","value":"obrt"}`))
	require.NoError(t, err)

	seedRule(t, s, "fiskalizacija-obveza", true, rules.AuthorityLaw, "2025-01-01", "", when)
	candidate := seedRule(t, s, "fiskalizacija-obveza", false, rules.AuthorityLaw, "2025-01-01", "", whenReordered)

	found, err := d.Detect(context.Background(), candidate)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, rules.ConflictContradiction, found[0].Type)
}

func TestDetect_ContradictionAcrossDifferentConditions(t *testing.T) {
	s := store.NewMemory().Bundle()
	d := NewDetector(s.Rules, s.Conflicts)

	// The narrower condition selects a subset of the broader one's
	// subjects: a sole trader with 50000 revenue matches both, so the
	// opposite boolean outcomes contradict even though the trees are
	// not structurally equal.
	broad, err := applieswhen.Parse([]byte(`{"op":"eq","field":"entity_type","value":"obrt"}`))
	require.NoError(t, err)
	narrow, err := applieswhen.Parse([]byte(`{"op":"and","children":[
		{"op":"eq","field":"entity_type","value":"obrt"},
		{"op":"gte","field":"revenue","value":40000}]}`))
	require.NoError(t, err)

	seedRule(t, s, "fiskalizacija-obveza", true, rules.AuthorityLaw, "2025-01-01", "", broad)
	candidate := seedRule(t, s, "fiskalizacija-obveza", false, rules.AuthorityLaw, "2025-01-01", "", narrow)

	found, err := d.Detect(context.Background(), candidate)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, rules.ConflictContradiction, found[0].Type)
}

func TestDetect_DisjointConditionsNotAContradiction(t *testing.T) {
	s := store.NewMemory().Bundle()
	d := NewDetector(s.Rules, s.Conflicts)

	hr, err := applieswhen.Parse([]byte(`{"op":"eq","field":"entity_type","value":"obrt"}`))
	require.NoError(t, err)
	doo, err := applieswhen.Parse([]byte(`{"op":"eq","field":"entity_type","value":"doo"}`))
	require.NoError(t, err)

	seedRule(t, s, "fiskalizacija-obveza", true, rules.AuthorityLaw, "2025-01-01", "", hr)
	candidate := seedRule(t, s, "fiskalizacija-obveza", false, rules.AuthorityLaw, "2025-01-01", "", doo)

	found, err := d.Detect(context.Background(), candidate)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, rules.ConflictOverlap, found[0].Type,
		"no subject satisfies both conditions, so only the window overlap remains")
}

func TestDetect_OpenPairNotDuplicated(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory().Bundle()
	d := NewDetector(s.Rules, s.Conflicts)

	seedRule(t, s, "pdv-opca-stopa", 25, rules.AuthorityLaw, "2025-01-01", "", nil)
	candidate := seedRule(t, s, "pdv-opca-stopa", 23, rules.AuthorityLaw, "2025-06-01", "", nil)

	found, err := d.Detect(ctx, candidate)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.NoError(t, s.Conflicts.Insert(ctx, found[0]))

	again, err := d.Detect(ctx, candidate)
	require.NoError(t, err)
	assert.Empty(t, again, "pair with an OPEN conflict must not be re-reported")
}

func TestDetect_DeprecatedRulesIgnored(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory().Bundle()
	d := NewDetector(s.Rules, s.Conflicts)

	old := seedRule(t, s, "pdv-opca-stopa", 23, rules.AuthorityLaw, "2025-01-01", "", nil)
	old.Status = rules.StatusDeprecated
	require.NoError(t, s.Rules.Update(ctx, old))
	candidate := seedRule(t, s, "pdv-opca-stopa", 25, rules.AuthorityLaw, "2025-06-01", "", nil)

	found, err := d.Detect(ctx, candidate)
	require.NoError(t, err)
	assert.Empty(t, found)
}
