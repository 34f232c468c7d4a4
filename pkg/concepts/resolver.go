// Package concepts canonicalizes proposed concept identifiers and
// decides merge-vs-create against the existing rule set. It also owns
// the blocked-domain gate: synthetic and test domains must never
// produce a persisted rule.
package concepts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lexhr/curator/pkg/rules"
	"github.com/lexhr/curator/pkg/signature"
	"github.com/lexhr/curator/pkg/store"
)

// Resolution is the outcome of canonicalizing one proposed rule
// identity. When ShouldMerge is set the composer attaches the new
// source pointers to ExistingRuleID instead of creating a duplicate.
type Resolution struct {
	CanonicalSlug  string
	ShouldMerge    bool
	ExistingRuleID string
	MergeReason    string
}

// Options configures a resolver from the curation profile.
type Options struct {
	// Aliases maps known alternative slugs to their canonical slug.
	Aliases map[string]string
	// BlockedDomains are domains that must never yield a persisted
	// rule, in addition to the built-in synthetic TLD set.
	BlockedDomains []string
}

// Resolver canonicalizes slugs and deduplicates against stored rules.
type Resolver struct {
	rulesRepo store.RuleRepo
	concepts  store.ConceptRepo
	aliases   map[string]string
	blocked   map[string]struct{}
}

// builtinBlocked are synthetic domains that never carry real law.
var builtinBlocked = []string{
	"example.com", "example.org", "example.net",
	"test.invalid", "localhost", "test.local",
}

// NewResolver builds a resolver over the given repositories.
func NewResolver(rulesRepo store.RuleRepo, concepts store.ConceptRepo, opts Options) *Resolver {
	blocked := make(map[string]struct{}, len(builtinBlocked)+len(opts.BlockedDomains))
	for _, d := range builtinBlocked {
		blocked[d] = struct{}{}
	}
	for _, d := range opts.BlockedDomains {
		blocked[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	aliases := make(map[string]string, len(opts.Aliases))
	for from, to := range opts.Aliases {
		aliases[Canonicalize(from)] = Canonicalize(to)
	}
	return &Resolver{rulesRepo: rulesRepo, concepts: concepts, aliases: aliases, blocked: blocked}
}

var slugSeparators = regexp.MustCompile(`[\s_./]+`)

// Canonicalize lower-cases a slug and collapses separators to hyphens.
func Canonicalize(slug string) string {
	s := strings.ToLower(strings.TrimSpace(slug))
	s = slugSeparators.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// IsBlockedDomain reports whether a pointer domain may never produce a
// persisted rule. Hard gate, matched on the full domain and its suffix.
func (r *Resolver) IsBlockedDomain(domain string) bool {
	d := strings.ToLower(strings.TrimSpace(domain))
	if _, ok := r.blocked[d]; ok {
		return true
	}
	for blocked := range r.blocked {
		if strings.HasSuffix(d, "."+blocked) {
			return true
		}
	}
	return false
}

// Resolve canonicalizes the proposed slug (substituting a known alias
// even when not merging) and looks up an existing live rule with the
// same meaning signature.
func (r *Resolver) Resolve(ctx context.Context, proposedSlug string, value any, valueType string, effectiveFrom time.Time, effectiveUntil *time.Time) (*Resolution, error) {
	slug := Canonicalize(proposedSlug)
	if slug == "" {
		return nil, fmt.Errorf("concepts: empty slug after canonicalization of %q", proposedSlug)
	}
	if canonical, ok := r.aliases[slug]; ok {
		slug = canonical
	}

	sig, err := signature.Compute(slug, value, valueType, effectiveFrom, effectiveUntil)
	if err != nil {
		return nil, fmt.Errorf("concepts: signature: %w", err)
	}

	existing, err := r.rulesRepo.BySignature(ctx, slug, sig)
	switch {
	case err == nil:
		return &Resolution{
			CanonicalSlug:  slug,
			ShouldMerge:    true,
			ExistingRuleID: existing.ID,
			MergeReason:    "identical meaning signature",
		}, nil
	case errors.Is(err, store.ErrNotFound):
		return &Resolution{CanonicalSlug: slug}, nil
	default:
		return nil, fmt.Errorf("concepts: signature lookup: %w", err)
	}
}

// EnsureConcept upserts the canonical concept record so every rule
// always references a stored concept.
func (r *Resolver) EnsureConcept(ctx context.Context, slug, nameHr, nameEn string) error {
	existing, err := r.concepts.Get(ctx, slug)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	c := &rules.Concept{Slug: slug, NameHr: nameHr, NameEn: nameEn}
	if existing != nil {
		if nameHr == "" {
			c.NameHr = existing.NameHr
		}
		if nameEn == "" {
			c.NameEn = existing.NameEn
		}
		c.Tags = existing.Tags
	}
	return r.concepts.Upsert(ctx, c)
}
