// Package lifecycle owns the rule status machine. It is the only code
// path allowed to change a rule's status or approval fields, so every
// publication and deprecation leaves exactly one audit trail entry.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexhr/curator/pkg/audit"
	"github.com/lexhr/curator/pkg/rules"
	"github.com/lexhr/curator/pkg/store"
)

// ErrInvalidTransition is returned for any status change outside
// DRAFT → APPROVED → PUBLISHED → DEPRECATED. DEPRECATED is terminal.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// validNext holds the single permitted successor of each status.
var validNext = map[rules.Status]rules.Status{
	rules.StatusDraft:     rules.StatusApproved,
	rules.StatusApproved:  rules.StatusPublished,
	rules.StatusPublished: rules.StatusDeprecated,
}

// Manager applies lifecycle transitions over a rule repository.
type Manager struct {
	rulesRepo store.RuleRepo
	sink      audit.Sink
	log       *slog.Logger
	now       func() time.Time
}

// NewManager builds a manager. The audit sink may be nil in tests.
func NewManager(rulesRepo store.RuleRepo, sink audit.Sink, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{rulesRepo: rulesRepo, sink: sink, log: log, now: time.Now}
}

// Transition moves a rule to the target status. No skips: publishing a
// DRAFT or re-activating a DEPRECATED rule fails with
// ErrInvalidTransition. On APPROVED the actor and timestamp are
// recorded on the rule.
func (m *Manager) Transition(ctx context.Context, ruleID string, to rules.Status, actor string) (*rules.RegulatoryRule, error) {
	r, err := m.rulesRepo.Get(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: load rule %s: %w", ruleID, err)
	}

	if next, ok := validNext[r.Status]; !ok || next != to {
		return nil, fmt.Errorf("%w: %s → %s for rule %s", ErrInvalidTransition, r.Status, to, ruleID)
	}

	now := m.now().UTC()
	from := r.Status
	r.Status = to
	r.UpdatedAt = now
	if to == rules.StatusApproved {
		r.ApprovedBy = actor
		r.ApprovedAt = &now
	}

	if err := m.rulesRepo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("lifecycle: persist %s → %s: %w", from, to, err)
	}

	m.log.InfoContext(ctx, "rule transitioned",
		"rule_id", r.ID, "concept", r.ConceptSlug, "from", from, "to", to, "actor", actor)
	audit.Try(ctx, m.sink, m.log, "rule."+transitionAction(to), "regulatory_rule", r.ID, map[string]any{
		"from":  string(from),
		"to":    string(to),
		"actor": actor,
	})
	return r, nil
}

func transitionAction(to rules.Status) string {
	switch to {
	case rules.StatusApproved:
		return "approved"
	case rules.StatusPublished:
		return "published"
	case rules.StatusDeprecated:
		return "deprecated"
	default:
		return "transitioned"
	}
}
