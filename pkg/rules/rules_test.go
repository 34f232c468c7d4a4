package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fetchTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testEvidence(t *testing.T, body string) *Evidence {
	t.Helper()
	ev, err := NewEvidence("nn-narodne-novine", "https://narodne-novine.example.hr/vat", []byte(body), "text/html", 1, fetchTime)
	require.NoError(t, err)
	return ev
}

func TestNewEvidence_HashDerived(t *testing.T) {
	ev := testEvidence(t, "<p>Opća stopa PDV-a iznosi 25%.</p>")
	assert.NoError(t, ev.VerifyHash())
	assert.Equal(t, StalenessFresh, ev.Staleness)

	// Tampering with the body is detected.
	ev.RawContent = []byte("<p>changed</p>")
	assert.True(t, errors.Is(ev.VerifyHash(), ErrHashMismatch))
}

func TestNewEvidence_Rejections(t *testing.T) {
	_, err := NewEvidence("", "https://x", []byte("x"), "", 1, fetchTime)
	assert.Error(t, err)
	_, err = NewEvidence("s", "https://x", nil, "", 1, fetchTime)
	assert.Error(t, err)
	_, err = NewEvidence("s", "https://x", []byte("x"), "", 9, fetchTime)
	assert.Error(t, err)
}

func TestNewSourcePointer_QuoteMustBeVerbatim(t *testing.T) {
	ev := testEvidence(t, "<p>Opća stopa PDV-a iznosi 25%.</p>")

	sp, err := NewSourcePointer(ev, "vat", "percentage", 25, "stopa PDV-a iznosi 25%", 7, 29, 0.95)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, sp.EvidenceID)

	_, err = NewSourcePointer(ev, "vat", "percentage", 25, "stopa PDV-a iznosi 13%", 7, 29, 0.95)
	assert.True(t, errors.Is(err, ErrQuoteNotInEvidence))
}

func TestNewSourcePointer_QuoteMatchesAcrossQuoteEncodings(t *testing.T) {
	// Evidence uses Croatian low-9 quotes, extraction reports ASCII.
	ev := testEvidence(t, "Zakon kaže: „stopa iznosi 25%“.")
	_, err := NewSourcePointer(ev, "vat", "percentage", 25, `"stopa iznosi 25%"`, 12, 32, 0.9)
	assert.NoError(t, err)
}

func TestNewSourcePointer_OffsetChecks(t *testing.T) {
	ev := testEvidence(t, "abcdef")
	_, err := NewSourcePointer(ev, "vat", "string", "a", "abc", 3, 2, 0.5)
	assert.True(t, errors.Is(err, ErrBadOffsets))
	_, err = NewSourcePointer(ev, "vat", "string", "a", "abc", 0, 100, 0.5)
	assert.True(t, errors.Is(err, ErrBadOffsets))
}

func draftParams() DraftRuleParams {
	return DraftRuleParams{
		ConceptSlug:      "vat-standard-rate",
		Authority:        AuthorityLaw,
		Value:            25,
		ValueType:        "percentage",
		EffectiveFrom:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Confidence:       0.9,
		MeaningSignature: "sig-1",
		SourcePointerIDs: []string{"sp-1"},
	}
}

func TestNewDraftRule(t *testing.T) {
	r, err := NewDraftRule(draftParams())
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, r.Status)
	assert.NotEmpty(t, r.ID)
}

func TestNewDraftRule_RequiresPointers(t *testing.T) {
	p := draftParams()
	p.SourcePointerIDs = nil
	_, err := NewDraftRule(p)
	assert.True(t, errors.Is(err, ErrNoSourcePointers))
}

func TestNewDraftRule_WindowOrdering(t *testing.T) {
	p := draftParams()
	until := p.EffectiveFrom.Add(-time.Hour)
	p.EffectiveUntil = &until
	_, err := NewDraftRule(p)
	assert.Error(t, err)
}

func TestEffectiveWindowOverlaps(t *testing.T) {
	mk := func(from string, until string) *RegulatoryRule {
		r := &RegulatoryRule{EffectiveFrom: mustDate(from)}
		if until != "" {
			u := mustDate(until)
			r.EffectiveUntil = &u
		}
		return r
	}

	assert.True(t, mk("2025-01-01", "").EffectiveWindowOverlaps(mk("2025-06-01", "")))
	assert.True(t, mk("2025-01-01", "2025-12-31").EffectiveWindowOverlaps(mk("2025-06-01", "2026-06-01")))
	assert.False(t, mk("2025-01-01", "2025-06-01").EffectiveWindowOverlaps(mk("2025-06-01", "")))
	assert.False(t, mk("2026-01-01", "").EffectiveWindowOverlaps(mk("2025-01-01", "2025-12-31")))
}

func TestAuthorityRanking(t *testing.T) {
	assert.Greater(t, AuthorityLaw.Rank(), AuthorityGuidance.Rank())
	assert.Greater(t, AuthorityGuidance.Rank(), AuthorityProcedure.Rank())
	assert.Greater(t, AuthorityProcedure.Rank(), AuthorityPractice.Rank())

	assert.Equal(t, AuthorityLaw, AuthorityFromHierarchy(1))
	assert.Equal(t, AuthorityGuidance, AuthorityFromHierarchy(2))
	assert.Equal(t, AuthorityProcedure, AuthorityFromHierarchy(3))
	assert.Equal(t, AuthorityPractice, AuthorityFromHierarchy(4))
	assert.Equal(t, AuthorityPractice, AuthorityFromHierarchy(5))
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}
