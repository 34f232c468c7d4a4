// Package composer turns validated agent proposals into persisted DRAFT
// rules. It is the single write path for new rules: provenance gates,
// concept dedup, explanation validation, authority derivation and
// conflict detection all happen here, fail-closed, before anything is
// stored.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexhr/curator/pkg/agent"
	"github.com/lexhr/curator/pkg/amendgraph"
	"github.com/lexhr/curator/pkg/applieswhen"
	"github.com/lexhr/curator/pkg/audit"
	"github.com/lexhr/curator/pkg/concepts"
	"github.com/lexhr/curator/pkg/conflicts"
	"github.com/lexhr/curator/pkg/explain"
	"github.com/lexhr/curator/pkg/observability"
	"github.com/lexhr/curator/pkg/rules"
	"github.com/lexhr/curator/pkg/signature"
	"github.com/lexhr/curator/pkg/store"
)

var (
	// ErrNoSourcePointers rejects a proposal with no provenance. No
	// pointer, no rule.
	ErrNoSourcePointers = errors.New("proposal has no source pointers")

	// ErrBlockedDomain rejects a proposal whose evidence comes from a
	// synthetic or blocklisted domain.
	ErrBlockedDomain = errors.New("source domain is blocked")

	// ErrExplanationRejected is returned in strict mode when the
	// explanation fails traceability and no fallback is allowed.
	ErrExplanationRejected = errors.New("explanation failed traceability validation")
)

// Outcome is the result of composing one proposal. Exactly one of the
// id fields is set.
type Outcome struct {
	// RuleID is the new DRAFT rule, when one was created.
	RuleID string
	// MergedIntoRuleID is the existing rule the pointers were attached
	// to, when the proposal restated a known fact.
	MergedIntoRuleID string
	// ConflictID is the recorded SOURCE_CONFLICT, when the agent
	// reported contradictory sources instead of a rule.
	ConflictID string

	// StructuralConflictIDs are conflicts opened against existing rules
	// by a newly created rule.
	StructuralConflictIDs []string
	// ExplanationDowngraded is set when the proposed explanation failed
	// validation and was replaced by the quote-only fallback.
	ExplanationDowngraded bool
}

// Options tunes composer behavior from the curation profile.
type Options struct {
	// StrictExplanations rejects proposals whose explanation fails
	// traceability instead of substituting the quote-only fallback.
	StrictExplanations bool
}

// Composer validates and persists agent proposals.
type Composer struct {
	store    *store.Store
	resolver *concepts.Resolver
	detector *conflicts.Detector
	graph    *amendgraph.Graph
	sink     audit.Sink
	log      *slog.Logger
	metrics  *observability.Provider
	opts     Options
}

// New builds a composer. The metrics provider may be nil.
func New(s *store.Store, resolver *concepts.Resolver, detector *conflicts.Detector,
	graph *amendgraph.Graph, sink audit.Sink, log *slog.Logger, metrics *observability.Provider, opts Options) *Composer {
	if log == nil {
		log = slog.Default()
	}
	return &Composer{
		store:    s,
		resolver: resolver,
		detector: detector,
		graph:    graph,
		sink:     sink,
		log:      log,
		metrics:  metrics,
		opts:     opts,
	}
}

// Compose runs one proposal through the full pipeline. Hard rejects
// (no pointers, blocked domain, invalid applicability tree) return a
// typed error and write nothing.
func (c *Composer) Compose(ctx context.Context, pointerIDs []string, proposal *agent.Proposal) (*Outcome, error) {
	started := time.Now()
	out, err := c.compose(ctx, pointerIDs, proposal)
	if c.metrics != nil {
		c.metrics.ComposeObserved(ctx, time.Since(started), outcomeLabel(out, err))
	}
	return out, err
}

func (c *Composer) compose(ctx context.Context, pointerIDs []string, proposal *agent.Proposal) (*Outcome, error) {
	if len(pointerIDs) == 0 {
		return nil, ErrNoSourcePointers
	}
	pointers, err := c.store.Pointers.GetMany(ctx, pointerIDs)
	if err != nil {
		return nil, fmt.Errorf("composer: load pointers: %w", err)
	}
	if len(pointers) == 0 {
		return nil, ErrNoSourcePointers
	}
	for _, sp := range pointers {
		if c.resolver.IsBlockedDomain(sp.Domain) {
			return nil, fmt.Errorf("%w: %s", ErrBlockedDomain, sp.Domain)
		}
	}

	if proposal.ConflictReport != nil {
		return c.recordSourceConflict(ctx, pointerIDs, proposal.ConflictReport)
	}
	return c.composeRule(ctx, pointers, proposal.DraftRule)
}

// recordSourceConflict persists the agent's self-reported disagreement
// and stops: contradictory sources never silently become a rule.
func (c *Composer) recordSourceConflict(ctx context.Context, pointerIDs []string, report *agent.ConflictReport) (*Outcome, error) {
	ids := report.PointerIDs
	if len(ids) == 0 {
		ids = pointerIDs
	}
	conflict := rules.NewConflict(rules.ConflictSource, report.Description, nil, ids)
	if err := c.store.Conflicts.Insert(ctx, conflict); err != nil {
		return nil, fmt.Errorf("composer: record source conflict: %w", err)
	}
	c.log.InfoContext(ctx, "source conflict recorded", "conflict_id", conflict.ID)
	if c.metrics != nil {
		c.metrics.ConflictOpened(ctx, string(rules.ConflictSource))
	}
	audit.Try(ctx, c.sink, c.log, "conflict.opened", "regulatory_conflict", conflict.ID, map[string]any{
		"conflict_type": string(rules.ConflictSource),
		"pointer_ids":   ids,
	})
	return &Outcome{ConflictID: conflict.ID}, nil
}

func (c *Composer) composeRule(ctx context.Context, pointers []*rules.SourcePointer, draft *agent.DraftRule) (*Outcome, error) {
	// Applicability tree parses fail-closed before any other work. An
	// absent tree means unconditional; a present-but-invalid one is a
	// hard reject.
	var tree *applieswhen.Node
	if len(draft.AppliesWhen) > 0 && string(draft.AppliesWhen) != "null" {
		var err error
		tree, err = applieswhen.Parse(draft.AppliesWhen)
		if err != nil {
			return nil, err
		}
	}

	from, until, err := draft.EffectiveWindow()
	if err != nil {
		return nil, fmt.Errorf("composer: effective window: %w", err)
	}

	res, err := c.resolver.Resolve(ctx, draft.ConceptSlug, draft.Value, draft.ValueType, from, until)
	if err != nil {
		return nil, fmt.Errorf("composer: resolve concept: %w", err)
	}

	pointerIDs := make([]string, 0, len(pointers))
	for _, sp := range pointers {
		pointerIDs = append(pointerIDs, sp.ID)
	}

	if res.ShouldMerge {
		return c.merge(ctx, res, pointerIDs)
	}

	explanationHr, explanationEn := draft.ExplanationHr, draft.ExplanationEn
	downgraded := false
	verdict := explain.Validate(explanationHr, explanationEn, draft.SourceQuotes, draft.Value)
	if !verdict.Valid {
		if c.opts.StrictExplanations {
			return nil, fmt.Errorf("%w: %v", ErrExplanationRejected, verdict.Errors)
		}
		explanationHr, explanationEn = explain.QuoteOnly(draft.SourceQuotes, draft.Value)
		downgraded = true
		c.log.WarnContext(ctx, "explanation downgraded to quote-only",
			"concept", res.CanonicalSlug, "errors", verdict.Errors)
	}

	authority, err := c.deriveAuthority(ctx, pointers)
	if err != nil {
		return nil, err
	}

	rule, err := rules.NewDraftRule(rules.DraftRuleParams{
		ConceptSlug:      res.CanonicalSlug,
		TitleHr:          draft.TitleHr,
		TitleEn:          draft.TitleEn,
		RiskTier:         draft.RiskTier,
		Authority:        authority,
		AppliesWhen:      tree,
		Value:            draft.Value,
		ValueType:        draft.ValueType,
		ExplanationHr:    explanationHr,
		ExplanationEn:    explanationEn,
		EffectiveFrom:    from,
		EffectiveUntil:   until,
		Confidence:       draft.Confidence,
		MeaningSignature: mustSignature(res.CanonicalSlug, draft.Value, draft.ValueType, from, until),
		SourcePointerIDs: pointerIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("composer: build rule: %w", err)
	}

	if err := c.resolver.EnsureConcept(ctx, res.CanonicalSlug, draft.TitleHr, draft.TitleEn); err != nil {
		return nil, fmt.Errorf("composer: ensure concept: %w", err)
	}
	if err := c.store.Rules.Insert(ctx, rule); err != nil {
		// A racing duplicate means someone else already persisted this
		// exact fact.
		if errors.Is(err, store.ErrDuplicateSignature) {
			if existing, lookupErr := c.store.Rules.BySignature(ctx, rule.ConceptSlug, rule.MeaningSignature); lookupErr == nil {
				return c.merge(ctx, &concepts.Resolution{
					CanonicalSlug:  rule.ConceptSlug,
					ExistingRuleID: existing.ID,
					MergeReason:    "lost insert race on meaning signature",
				}, pointerIDs)
			}
		}
		return nil, fmt.Errorf("composer: persist rule: %w", err)
	}

	out := &Outcome{RuleID: rule.ID, ExplanationDowngraded: downgraded}

	if downgraded {
		audit.Try(ctx, c.sink, c.log, "explanation.downgraded", "regulatory_rule", rule.ID, map[string]any{
			"errors": verdict.Errors,
		})
	}

	c.linkSupersedes(ctx, rule, draft.SupersedesID, from)
	c.scanStructural(ctx, rule, out)

	if c.metrics != nil {
		c.metrics.RuleCreated(ctx, rule.ConceptSlug)
	}
	c.log.InfoContext(ctx, "draft rule created",
		"rule_id", rule.ID, "concept", rule.ConceptSlug, "authority", string(rule.Authority))
	audit.Try(ctx, c.sink, c.log, "rule.created", "regulatory_rule", rule.ID, map[string]any{
		"concept":     rule.ConceptSlug,
		"value_type":  rule.ValueType,
		"pointer_ids": pointerIDs,
		"downgraded":  downgraded,
	})
	return out, nil
}

// merge attaches the new pointers to an existing rule instead of
// duplicating it.
func (c *Composer) merge(ctx context.Context, res *concepts.Resolution, pointerIDs []string) (*Outcome, error) {
	if err := c.store.Rules.AttachPointers(ctx, res.ExistingRuleID, pointerIDs); err != nil {
		return nil, fmt.Errorf("composer: attach pointers: %w", err)
	}
	if c.metrics != nil {
		c.metrics.RuleMerged(ctx, res.CanonicalSlug)
	}
	c.log.InfoContext(ctx, "proposal merged into existing rule",
		"rule_id", res.ExistingRuleID, "concept", res.CanonicalSlug, "reason", res.MergeReason)
	audit.Try(ctx, c.sink, c.log, "rule.merged", "regulatory_rule", res.ExistingRuleID, map[string]any{
		"pointer_ids": pointerIDs,
		"reason":      res.MergeReason,
	})
	return &Outcome{MergedIntoRuleID: res.ExistingRuleID}, nil
}

// deriveAuthority maps the best (lowest) source hierarchy among the
// contributing evidence to an authority level. A rule quoting both a
// law and a blog is a law-level rule.
func (c *Composer) deriveAuthority(ctx context.Context, pointers []*rules.SourcePointer) (rules.AuthorityLevel, error) {
	best := 0
	for _, sp := range pointers {
		ev, err := c.store.Evidence.Get(ctx, sp.EvidenceID)
		if err != nil {
			return "", fmt.Errorf("composer: load evidence %s: %w", sp.EvidenceID, err)
		}
		if best == 0 || ev.SourceHierarchy < best {
			best = ev.SourceHierarchy
		}
	}
	return rules.AuthorityFromHierarchy(best), nil
}

// linkSupersedes records the AMENDS edge best-effort: a cycle or a
// missing target must not lose the already-persisted rule.
func (c *Composer) linkSupersedes(ctx context.Context, rule *rules.RegulatoryRule, supersedesID string, validFrom time.Time) {
	if supersedesID == "" {
		return
	}
	if _, err := c.store.Rules.Get(ctx, supersedesID); err != nil {
		c.log.WarnContext(ctx, "supersedes target missing, edge skipped",
			"rule_id", rule.ID, "supersedes_id", supersedesID, "error", err)
		return
	}
	if _, err := c.graph.CreateEdge(ctx, rule.ID, supersedesID, validFrom); err != nil {
		c.log.WarnContext(ctx, "supersedes edge skipped",
			"rule_id", rule.ID, "supersedes_id", supersedesID, "error", err)
		return
	}
	rule.SupersedesID = supersedesID
	if err := c.store.Rules.Update(ctx, rule); err != nil {
		c.log.ErrorContext(ctx, "persisting supersedes link failed",
			"rule_id", rule.ID, "error", err)
	}
}

// scanStructural records overlap/contradiction conflicts against
// existing rules of the concept. Detection failure is logged, not
// fatal: the rule stands, the arbiter queue just misses an entry until
// the next pass.
func (c *Composer) scanStructural(ctx context.Context, rule *rules.RegulatoryRule, out *Outcome) {
	found, err := c.detector.Detect(ctx, rule)
	if err != nil {
		c.log.ErrorContext(ctx, "structural conflict scan failed", "rule_id", rule.ID, "error", err)
		return
	}
	for _, conflict := range found {
		if err := c.store.Conflicts.Insert(ctx, conflict); err != nil {
			c.log.ErrorContext(ctx, "conflict insert failed", "conflict_id", conflict.ID, "error", err)
			continue
		}
		out.StructuralConflictIDs = append(out.StructuralConflictIDs, conflict.ID)
		if c.metrics != nil {
			c.metrics.ConflictOpened(ctx, string(conflict.Type))
		}
		audit.Try(ctx, c.sink, c.log, "conflict.opened", "regulatory_conflict", conflict.ID, map[string]any{
			"conflict_type": string(conflict.Type),
			"rule_ids":      conflict.RuleIDs,
		})
	}
}

// mustSignature re-derives the signature the resolver already computed;
// inputs were validated there, so failure here is a programming error.
func mustSignature(slug string, value any, valueType string, from time.Time, until *time.Time) string {
	sig, err := signature.Compute(slug, value, valueType, from, until)
	if err != nil {
		panic(fmt.Sprintf("composer: signature on validated inputs: %v", err))
	}
	return sig
}

func outcomeLabel(out *Outcome, err error) string {
	switch {
	case err != nil:
		return "rejected"
	case out == nil:
		return "unknown"
	case out.ConflictID != "":
		return "source_conflict"
	case out.MergedIntoRuleID != "":
		return "merged"
	default:
		return "created"
	}
}
