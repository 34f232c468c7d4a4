// Package rules defines the domain model of the curation pipeline:
// captured evidence, extracted source pointers, concepts, versioned
// regulatory rules, conflicts, amendment edges and audit events.
//
// Constructors enforce the structural invariants (content hash matches
// raw bytes, quotes are verbatim substrings, rules carry evidence);
// anything that bypasses them is a bug, not a supported path.
package rules

import (
	"time"
)

// Status is the lifecycle state of a regulatory rule. Transitions go
// through the lifecycle manager only; DRAFT is the one state the
// composer writes directly.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusApproved   Status = "APPROVED"
	StatusPublished  Status = "PUBLISHED"
	StatusDeprecated Status = "DEPRECATED"
)

// AuthorityLevel ranks the issuing source. LAW outranks everything;
// an equal-or-lower authority disagreeing with a rule is a conflict,
// a strictly lower one is merely informational.
type AuthorityLevel string

const (
	AuthorityLaw       AuthorityLevel = "LAW"
	AuthorityGuidance  AuthorityLevel = "GUIDANCE"
	AuthorityProcedure AuthorityLevel = "PROCEDURE"
	AuthorityPractice  AuthorityLevel = "PRACTICE"
)

// Rank orders authority levels; higher means stronger.
func (a AuthorityLevel) Rank() int {
	switch a {
	case AuthorityLaw:
		return 4
	case AuthorityGuidance:
		return 3
	case AuthorityProcedure:
		return 2
	case AuthorityPractice:
		return 1
	}
	return 0
}

// AuthorityFromHierarchy maps a source hierarchy number (1 = primary
// legislation ... 5 = practice notes) to an authority level.
func AuthorityFromHierarchy(h int) AuthorityLevel {
	switch h {
	case 1:
		return AuthorityLaw
	case 2:
		return AuthorityGuidance
	case 3:
		return AuthorityProcedure
	default:
		return AuthorityPractice
	}
}

// StalenessStatus is the verification freshness band of an evidence
// record. UNAVAILABLE is a transient grace state, not an expiry.
type StalenessStatus string

const (
	StalenessFresh       StalenessStatus = "FRESH"
	StalenessAging       StalenessStatus = "AGING"
	StalenessStale       StalenessStatus = "STALE"
	StalenessExpired     StalenessStatus = "EXPIRED"
	StalenessUnavailable StalenessStatus = "UNAVAILABLE"
)

// ConflictType classifies a recorded disagreement.
type ConflictType string

const (
	ConflictSource        ConflictType = "SOURCE_CONFLICT"
	ConflictOverlap       ConflictType = "STRUCTURAL_OVERLAP"
	ConflictContradiction ConflictType = "CONTRADICTORY_OUTCOME"
)

// ConflictStatus tracks arbiter triage.
type ConflictStatus string

const (
	ConflictOpen     ConflictStatus = "OPEN"
	ConflictResolved ConflictStatus = "RESOLVED"
)

// RelationAmends is the only supported amendment edge relation.
const RelationAmends = "AMENDS"

// Concept is the canonical semantic identity shared by the versions of
// one regulatory fact family.
type Concept struct {
	Slug   string   `json:"slug"`
	NameHr string   `json:"name_hr,omitempty"`
	NameEn string   `json:"name_en,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// AuditEvent is one append-only record of a state-changing action.
type AuditEvent struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
