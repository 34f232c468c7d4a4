package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lexhr/curator/pkg/applieswhen"
)

// ErrNoSourcePointers is returned when a rule would be created without
// evidence. Every rule must be traceable to at least one source pointer.
var ErrNoSourcePointers = errors.New("rule requires at least one source pointer")

// RegulatoryRule is one versioned, evidence-backed regulatory fact.
type RegulatoryRule struct {
	ID               string            `json:"id"`
	ConceptSlug      string            `json:"concept_slug"`
	TitleHr          string            `json:"title_hr,omitempty"`
	TitleEn          string            `json:"title_en,omitempty"`
	RiskTier         string            `json:"risk_tier,omitempty"`
	Authority        AuthorityLevel    `json:"authority_level"`
	AppliesWhen      *applieswhen.Node `json:"applies_when,omitempty"`
	Value            any               `json:"value"`
	ValueType        string            `json:"value_type"`
	ExplanationHr    string            `json:"explanation_hr,omitempty"`
	ExplanationEn    string            `json:"explanation_en,omitempty"`
	EffectiveFrom    time.Time         `json:"effective_from"`
	EffectiveUntil   *time.Time        `json:"effective_until,omitempty"`
	SupersedesID     string            `json:"supersedes_id,omitempty"`
	Status           Status            `json:"status"`
	Confidence       float64           `json:"confidence"`
	MeaningSignature string            `json:"meaning_signature"`
	SourcePointerIDs []string          `json:"source_pointer_ids"`
	ApprovedBy       string            `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time        `json:"approved_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// DraftRuleParams carries the validated inputs for a new DRAFT rule.
type DraftRuleParams struct {
	ConceptSlug      string
	TitleHr          string
	TitleEn          string
	RiskTier         string
	Authority        AuthorityLevel
	AppliesWhen      *applieswhen.Node
	Value            any
	ValueType        string
	ExplanationHr    string
	ExplanationEn    string
	EffectiveFrom    time.Time
	EffectiveUntil   *time.Time
	Confidence       float64
	MeaningSignature string
	SourcePointerIDs []string
}

// NewDraftRule builds a rule in DRAFT, the only status writable outside
// the lifecycle manager.
func NewDraftRule(p DraftRuleParams) (*RegulatoryRule, error) {
	if p.ConceptSlug == "" {
		return nil, fmt.Errorf("rule requires a concept slug")
	}
	if len(p.SourcePointerIDs) == 0 {
		return nil, ErrNoSourcePointers
	}
	if p.MeaningSignature == "" {
		return nil, fmt.Errorf("rule requires a meaning signature")
	}
	if p.EffectiveFrom.IsZero() {
		return nil, fmt.Errorf("rule requires an effective_from date")
	}
	if p.EffectiveUntil != nil && !p.EffectiveUntil.After(p.EffectiveFrom) {
		return nil, fmt.Errorf("effective_until %s not after effective_from %s",
			p.EffectiveUntil.Format(time.RFC3339), p.EffectiveFrom.Format(time.RFC3339))
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v outside [0,1]", p.Confidence)
	}
	if err := applieswhen.Validate(p.AppliesWhen); err != nil {
		return nil, err
	}
	if p.Authority == "" {
		p.Authority = AuthorityPractice
	}

	now := time.Now().UTC()
	return &RegulatoryRule{
		ID:               uuid.New().String(),
		ConceptSlug:      p.ConceptSlug,
		TitleHr:          p.TitleHr,
		TitleEn:          p.TitleEn,
		RiskTier:         p.RiskTier,
		Authority:        p.Authority,
		AppliesWhen:      p.AppliesWhen,
		Value:            p.Value,
		ValueType:        p.ValueType,
		ExplanationHr:    p.ExplanationHr,
		ExplanationEn:    p.ExplanationEn,
		EffectiveFrom:    p.EffectiveFrom.UTC(),
		EffectiveUntil:   p.EffectiveUntil,
		Status:           StatusDraft,
		Confidence:       p.Confidence,
		MeaningSignature: p.MeaningSignature,
		SourcePointerIDs: append([]string(nil), p.SourcePointerIDs...),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// EffectiveWindowOverlaps reports whether the effective windows of two
// rules intersect. A nil until bound is open-ended.
func (r *RegulatoryRule) EffectiveWindowOverlaps(o *RegulatoryRule) bool {
	aFrom, aUntil := r.EffectiveFrom, r.EffectiveUntil
	bFrom, bUntil := o.EffectiveFrom, o.EffectiveUntil

	if aUntil != nil && !aUntil.After(bFrom) {
		return false
	}
	if bUntil != nil && !bUntil.After(aFrom) {
		return false
	}
	return true
}

// NewConflict records a disagreement for arbiter triage.
func NewConflict(kind ConflictType, description string, ruleIDs, pointerIDs []string) *RegulatoryConflict {
	return &RegulatoryConflict{
		ID:          uuid.New().String(),
		Type:        kind,
		Status:      ConflictOpen,
		Description: description,
		RuleIDs:     append([]string(nil), ruleIDs...),
		PointerIDs:  append([]string(nil), pointerIDs...),
		CreatedAt:   time.Now().UTC(),
	}
}

// RegulatoryConflict records disagreement between candidate facts or
// between a new and an existing rule.
type RegulatoryConflict struct {
	ID          string         `json:"id"`
	Type        ConflictType   `json:"conflict_type"`
	Status      ConflictStatus `json:"status"`
	Description string         `json:"description"`
	RuleIDs     []string       `json:"rule_ids,omitempty"`
	PointerIDs  []string       `json:"pointer_ids,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// AmendmentEdge is a directed AMENDS relation between two rules. The
// edge set must stay acyclic; edges are never mutated after creation.
type AmendmentEdge struct {
	ID         string    `json:"id"`
	FromRuleID string    `json:"from_rule_id"`
	ToRuleID   string    `json:"to_rule_id"`
	Relation   string    `json:"relation"`
	ValidFrom  time.Time `json:"valid_from"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAmendmentEdge builds an AMENDS edge; acyclicity is the graph's
// responsibility, not the constructor's.
func NewAmendmentEdge(fromRuleID, toRuleID string, validFrom time.Time) (*AmendmentEdge, error) {
	if fromRuleID == "" || toRuleID == "" {
		return nil, fmt.Errorf("amendment edge requires both rule ids")
	}
	return &AmendmentEdge{
		ID:         uuid.New().String(),
		FromRuleID: fromRuleID,
		ToRuleID:   toRuleID,
		Relation:   RelationAmends,
		ValidFrom:  validFrom.UTC(),
		CreatedAt:  time.Now().UTC(),
	}, nil
}
