// Package agent defines the untrusted input contract between an
// extraction agent (typically LLM-backed) and the rule composer. The
// agent runs outside the trust boundary: everything here is parsed
// strictly and revalidated downstream before any write happens.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidProposal is the base error for malformed agent output.
var ErrInvalidProposal = errors.New("invalid agent proposal")

// Proposal is one agent turn: exactly one of DraftRule or
// ConflictReport is set. An agent that found contradictory sources
// reports the conflict instead of guessing a rule.
type Proposal struct {
	DraftRule      *DraftRule      `json:"draft_rule,omitempty"`
	ConflictReport *ConflictReport `json:"conflicts_detected,omitempty"`
}

// DraftRule is the agent's extracted regulatory fact, pre-validation.
// AppliesWhen stays raw JSON here; the composer parses it fail-closed.
type DraftRule struct {
	ConceptSlug    string          `json:"concept_slug"`
	TitleHr        string          `json:"title_hr,omitempty"`
	TitleEn        string          `json:"title_en,omitempty"`
	RiskTier       string          `json:"risk_tier,omitempty"`
	AppliesWhen    json.RawMessage `json:"applies_when,omitempty"`
	Value          any             `json:"value"`
	ValueType      string          `json:"value_type"`
	ExplanationHr  string          `json:"explanation_hr,omitempty"`
	ExplanationEn  string          `json:"explanation_en,omitempty"`
	EffectiveFrom  string          `json:"effective_from"`
	EffectiveUntil string          `json:"effective_until,omitempty"`
	SupersedesID   string          `json:"supersedes_rule_id,omitempty"`
	Confidence     float64         `json:"confidence"`
	SourceQuotes   []string        `json:"source_quotes,omitempty"`
}

// ConflictReport is the agent's self-reported source disagreement.
type ConflictReport struct {
	Description string   `json:"description"`
	PointerIDs  []string `json:"pointer_ids,omitempty"`
}

// ParseProposal decodes agent output strictly: unknown fields are
// errors, and exactly one of draft_rule / conflicts_detected must be
// present. Anything else is rejected before it reaches the composer.
func ParseProposal(raw []byte) (*Proposal, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidProposal)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var p Proposal
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProposal, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after proposal object", ErrInvalidProposal)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Proposal) validate() error {
	switch {
	case p.DraftRule == nil && p.ConflictReport == nil:
		return fmt.Errorf("%w: neither draft_rule nor conflicts_detected present", ErrInvalidProposal)
	case p.DraftRule != nil && p.ConflictReport != nil:
		return fmt.Errorf("%w: draft_rule and conflicts_detected are mutually exclusive", ErrInvalidProposal)
	}
	if c := p.ConflictReport; c != nil {
		if c.Description == "" {
			return fmt.Errorf("%w: conflict report requires a description", ErrInvalidProposal)
		}
		return nil
	}

	d := p.DraftRule
	if d.ConceptSlug == "" {
		return fmt.Errorf("%w: draft rule requires concept_slug", ErrInvalidProposal)
	}
	if d.ValueType == "" {
		return fmt.Errorf("%w: draft rule requires value_type", ErrInvalidProposal)
	}
	if d.EffectiveFrom == "" {
		return fmt.Errorf("%w: draft rule requires effective_from", ErrInvalidProposal)
	}
	if _, err := parseDate(d.EffectiveFrom); err != nil {
		return fmt.Errorf("%w: effective_from: %v", ErrInvalidProposal, err)
	}
	if d.EffectiveUntil != "" {
		if _, err := parseDate(d.EffectiveUntil); err != nil {
			return fmt.Errorf("%w: effective_until: %v", ErrInvalidProposal, err)
		}
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidProposal, d.Confidence)
	}
	return nil
}

// EffectiveWindow returns the parsed effective dates of the draft rule.
// Call only after ParseProposal succeeded.
func (d *DraftRule) EffectiveWindow() (time.Time, *time.Time, error) {
	from, err := parseDate(d.EffectiveFrom)
	if err != nil {
		return time.Time{}, nil, err
	}
	if d.EffectiveUntil == "" {
		return from, nil, nil
	}
	until, err := parseDate(d.EffectiveUntil)
	if err != nil {
		return time.Time{}, nil, err
	}
	return from, &until, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is neither RFC 3339 nor YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}

// Runner abstracts the extraction agent. Implementations call an LLM or
// replay recorded fixtures; the pipeline only sees raw proposal bytes.
type Runner interface {
	// Propose produces one proposal for the evidence behind the given
	// source pointers.
	Propose(ctx context.Context, pointerIDs []string) ([]byte, error)
}
