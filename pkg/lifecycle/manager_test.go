package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexhr/curator/pkg/audit"
	"github.com/lexhr/curator/pkg/rules"
	"github.com/lexhr/curator/pkg/store"
)

func newDraft(t *testing.T, s *store.Store) *rules.RegulatoryRule {
	t.Helper()
	r, err := rules.NewDraftRule(rules.DraftRuleParams{
		ConceptSlug:      "pdv-opca-stopa",
		Authority:        rules.AuthorityLaw,
		Value:            25,
		ValueType:        "number",
		EffectiveFrom:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Confidence:       0.95,
		MeaningSignature: "sig-" + uuid.New().String(),
		SourcePointerIDs: []string{"ptr-1"},
	})
	require.NoError(t, err)
	require.NoError(t, s.Rules.Insert(context.Background(), r))
	return r
}

func TestTransition_FullPath(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory().Bundle()
	rec := audit.NewRecorder()
	m := NewManager(s.Rules, rec, nil)
	r := newDraft(t, s)

	r, err := m.Transition(ctx, r.ID, rules.StatusApproved, "ana@lexhr.eu")
	require.NoError(t, err)
	assert.Equal(t, rules.StatusApproved, r.Status)
	assert.Equal(t, "ana@lexhr.eu", r.ApprovedBy)
	require.NotNil(t, r.ApprovedAt)

	r, err = m.Transition(ctx, r.ID, rules.StatusPublished, "ana@lexhr.eu")
	require.NoError(t, err)
	assert.Equal(t, rules.StatusPublished, r.Status)

	r, err = m.Transition(ctx, r.ID, rules.StatusDeprecated, "system")
	require.NoError(t, err)
	assert.Equal(t, rules.StatusDeprecated, r.Status)

	assert.Len(t, rec.ByAction("rule.approved"), 1)
	assert.Len(t, rec.ByAction("rule.published"), 1)
	assert.Len(t, rec.ByAction("rule.deprecated"), 1)
}

func TestTransition_NoSkips(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory().Bundle()
	m := NewManager(s.Rules, nil, nil)
	r := newDraft(t, s)

	_, err := m.Transition(ctx, r.ID, rules.StatusPublished, "ana@lexhr.eu")
	require.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := s.Rules.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, rules.StatusDraft, stored.Status, "failed transition must not touch the rule")
}

func TestTransition_DeprecatedIsTerminal(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory().Bundle()
	m := NewManager(s.Rules, nil, nil)
	r := newDraft(t, s)

	for _, to := range []rules.Status{rules.StatusApproved, rules.StatusPublished, rules.StatusDeprecated} {
		var err error
		r, err = m.Transition(ctx, r.ID, to, "ana@lexhr.eu")
		require.NoError(t, err)
	}
	for _, to := range []rules.Status{rules.StatusDraft, rules.StatusApproved, rules.StatusPublished} {
		_, err := m.Transition(ctx, r.ID, to, "ana@lexhr.eu")
		require.ErrorIs(t, err, ErrInvalidTransition)
	}
}

func TestTransition_UnknownRule(t *testing.T) {
	m := NewManager(store.NewMemory().Bundle().Rules, nil, nil)
	_, err := m.Transition(context.Background(), "missing", rules.StatusApproved, "ana@lexhr.eu")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransitionWithToken(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory().Bundle()
	m := NewManager(s.Rules, nil, nil)
	r := newDraft(t, s)
	secret := []byte("test-secret")

	token, err := IssueApprovalToken(secret, "marko@lexhr.eu", []rules.Status{rules.StatusApproved}, time.Hour)
	require.NoError(t, err)

	got, err := m.TransitionWithToken(ctx, secret, token, r.ID, rules.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, "marko@lexhr.eu", got.ApprovedBy)

	// Token is scoped to APPROVED; publishing with it must fail.
	_, err = m.TransitionWithToken(ctx, secret, token, r.ID, rules.StatusPublished)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionWithToken_ExpiredRejected(t *testing.T) {
	s := store.NewMemory().Bundle()
	m := NewManager(s.Rules, nil, nil)
	r := newDraft(t, s)
	secret := []byte("test-secret")

	token, err := IssueApprovalToken(secret, "marko@lexhr.eu", nil, -time.Minute)
	require.NoError(t, err)

	_, err = m.TransitionWithToken(context.Background(), secret, token, r.ID, rules.StatusApproved)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTransitionWithToken_WrongSecretRejected(t *testing.T) {
	s := store.NewMemory().Bundle()
	m := NewManager(s.Rules, nil, nil)
	r := newDraft(t, s)

	token, err := IssueApprovalToken([]byte("secret-a"), "marko@lexhr.eu", nil, time.Hour)
	require.NoError(t, err)

	_, err = m.TransitionWithToken(context.Background(), []byte("secret-b"), token, r.ID, rules.StatusApproved)
	require.Error(t, err)

	stored, err := s.Rules.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, rules.StatusDraft, stored.Status)
}
