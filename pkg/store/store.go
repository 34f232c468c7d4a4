// Package store defines the repositories the curation core runs
// against, plus reference implementations: an in-memory store for tests
// and tooling, a sqlite store for single-node deployments, and a
// postgres-backed audit sink.
//
// Idempotency and safe retry rely on store-level uniqueness, not
// in-process locking: the content hash is unique per evidence record
// and the meaning signature is unique among live rules of a concept.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lexhr/curator/pkg/rules"
)

var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateSignature is returned when inserting a rule whose
	// meaning signature is already held by a live rule of the concept.
	// A racing composer retry lands here and falls back to merge.
	ErrDuplicateSignature = errors.New("meaning signature already exists for concept")

	// ErrDuplicateContent is returned when inserting evidence whose
	// content hash was already captured for the same source.
	ErrDuplicateContent = errors.New("content hash already captured")
)

// EvidenceRepo stores captured evidence. Fetchers insert; the staleness
// service updates verification fields; nothing deletes.
type EvidenceRepo interface {
	Insert(ctx context.Context, ev *rules.Evidence) error
	Get(ctx context.Context, id string) (*rules.Evidence, error)
	Update(ctx context.Context, ev *rules.Evidence) error
	// ListDue returns evidence whose next verification is due at now:
	// UNAVAILABLE records after 4h since the last attempt, everything
	// else after 24h since the last successful verification.
	ListDue(ctx context.Context, now time.Time) ([]*rules.Evidence, error)
}

// PointerRepo stores extracted source pointers.
type PointerRepo interface {
	Insert(ctx context.Context, sp *rules.SourcePointer) error
	Get(ctx context.Context, id string) (*rules.SourcePointer, error)
	GetMany(ctx context.Context, ids []string) ([]*rules.SourcePointer, error)
}

// ConceptRepo stores canonical concepts.
type ConceptRepo interface {
	Upsert(ctx context.Context, c *rules.Concept) error
	Get(ctx context.Context, slug string) (*rules.Concept, error)
}

// RuleRepo stores regulatory rules. Insert enforces meaning-signature
// uniqueness; Update is reserved for the lifecycle manager, the
// staleness service and pointer attachment.
type RuleRepo interface {
	Insert(ctx context.Context, r *rules.RegulatoryRule) error
	Get(ctx context.Context, id string) (*rules.RegulatoryRule, error)
	Update(ctx context.Context, r *rules.RegulatoryRule) error
	BySignature(ctx context.Context, conceptSlug, signature string) (*rules.RegulatoryRule, error)
	ByConcept(ctx context.Context, conceptSlug string) ([]*rules.RegulatoryRule, error)
	ByStatus(ctx context.Context, status rules.Status) ([]*rules.RegulatoryRule, error)
	AttachPointers(ctx context.Context, ruleID string, pointerIDs []string) error
	// PublishedExpired returns PUBLISHED rules whose effective_until is
	// at or before now.
	PublishedExpired(ctx context.Context, now time.Time) ([]*rules.RegulatoryRule, error)
}

// ConflictRepo stores conflicts for arbiter triage.
type ConflictRepo interface {
	Insert(ctx context.Context, c *rules.RegulatoryConflict) error
	Get(ctx context.Context, id string) (*rules.RegulatoryConflict, error)
	// OpenForPair reports whether an OPEN conflict already references
	// both rule ids, regardless of order.
	OpenForPair(ctx context.Context, ruleA, ruleB string) (bool, error)
	ListOpen(ctx context.Context) ([]*rules.RegulatoryConflict, error)
}

// EdgeRepo stores amendment edges. Edges are append-only.
type EdgeRepo interface {
	Insert(ctx context.Context, e *rules.AmendmentEdge) error
	// From returns the outgoing AMENDS edges of a rule.
	From(ctx context.Context, ruleID string) ([]*rules.AmendmentEdge, error)
}

// Store aggregates the repositories a pipeline instance operates on.
type Store struct {
	Evidence  EvidenceRepo
	Pointers  PointerRepo
	Concepts  ConceptRepo
	Rules     RuleRepo
	Conflicts ConflictRepo
	Edges     EdgeRepo
}
