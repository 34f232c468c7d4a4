package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lexhr/curator/pkg/rules"
)

// Memory is the reference in-process store. It enforces the same
// uniqueness constraints as the SQL implementations so tests exercise
// realistic failure paths. Repository views over the shared state are
// obtained from Bundle.
type Memory struct {
	mu sync.RWMutex

	evidence  map[string]*rules.Evidence
	byContent map[string]string // sourceID+contentHash -> evidence id
	pointers  map[string]*rules.SourcePointer
	concepts  map[string]*rules.Concept
	rules     map[string]*rules.RegulatoryRule
	conflicts map[string]*rules.RegulatoryConflict
	edges     []*rules.AmendmentEdge
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		evidence:  make(map[string]*rules.Evidence),
		byContent: make(map[string]string),
		pointers:  make(map[string]*rules.SourcePointer),
		concepts:  make(map[string]*rules.Concept),
		rules:     make(map[string]*rules.RegulatoryRule),
		conflicts: make(map[string]*rules.RegulatoryConflict),
	}
}

// Bundle exposes the memory store through the repository aggregate.
func (m *Memory) Bundle() *Store {
	return &Store{
		Evidence:  memEvidence{m},
		Pointers:  memPointers{m},
		Concepts:  memConcepts{m},
		Rules:     memRules{m},
		Conflicts: memConflicts{m},
		Edges:     memEdges{m},
	}
}

// --- EvidenceRepo ---

type memEvidence struct{ m *Memory }

func (v memEvidence) Insert(ctx context.Context, ev *rules.Evidence) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	key := ev.SourceID + "\x00" + ev.ContentHash
	if _, dup := v.m.byContent[key]; dup {
		return fmt.Errorf("%w: source %s", ErrDuplicateContent, ev.SourceID)
	}
	cp := *ev
	v.m.evidence[ev.ID] = &cp
	v.m.byContent[key] = ev.ID
	return nil
}

func (v memEvidence) Get(ctx context.Context, id string) (*rules.Evidence, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	ev, ok := v.m.evidence[id]
	if !ok {
		return nil, fmt.Errorf("%w: evidence %s", ErrNotFound, id)
	}
	cp := *ev
	return &cp, nil
}

func (v memEvidence) Update(ctx context.Context, ev *rules.Evidence) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if _, ok := v.m.evidence[ev.ID]; !ok {
		return fmt.Errorf("%w: evidence %s", ErrNotFound, ev.ID)
	}
	cp := *ev
	v.m.evidence[ev.ID] = &cp
	return nil
}

func (v memEvidence) ListDue(ctx context.Context, now time.Time) ([]*rules.Evidence, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	var due []*rules.Evidence
	for _, ev := range v.m.evidence {
		if ev.DeletedAt != nil || ev.Staleness == rules.StalenessExpired {
			continue
		}
		if evidenceDue(ev, now) {
			cp := *ev
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func evidenceDue(ev *rules.Evidence, now time.Time) bool {
	if ev.Staleness == rules.StalenessUnavailable {
		return !now.Before(ev.LastCheckedAt.Add(4 * time.Hour))
	}
	return !now.Before(ev.LastVerifiedAt.Add(24 * time.Hour))
}

// --- PointerRepo ---

type memPointers struct{ m *Memory }

func (v memPointers) Insert(ctx context.Context, sp *rules.SourcePointer) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	cp := *sp
	v.m.pointers[sp.ID] = &cp
	return nil
}

func (v memPointers) Get(ctx context.Context, id string) (*rules.SourcePointer, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	sp, ok := v.m.pointers[id]
	if !ok {
		return nil, fmt.Errorf("%w: source pointer %s", ErrNotFound, id)
	}
	cp := *sp
	return &cp, nil
}

func (v memPointers) GetMany(ctx context.Context, ids []string) ([]*rules.SourcePointer, error) {
	out := make([]*rules.SourcePointer, 0, len(ids))
	for _, id := range ids {
		sp, err := v.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

// --- ConceptRepo ---

type memConcepts struct{ m *Memory }

func (v memConcepts) Upsert(ctx context.Context, c *rules.Concept) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	cp := *c
	v.m.concepts[c.Slug] = &cp
	return nil
}

func (v memConcepts) Get(ctx context.Context, slug string) (*rules.Concept, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	c, ok := v.m.concepts[slug]
	if !ok {
		return nil, fmt.Errorf("%w: concept %s", ErrNotFound, slug)
	}
	cp := *c
	return &cp, nil
}

// --- RuleRepo ---

type memRules struct{ m *Memory }

func (v memRules) Insert(ctx context.Context, r *rules.RegulatoryRule) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	for _, existing := range v.m.rules {
		if existing.ConceptSlug == r.ConceptSlug &&
			existing.MeaningSignature == r.MeaningSignature &&
			existing.Status != rules.StatusDeprecated {
			return fmt.Errorf("%w: concept %s", ErrDuplicateSignature, r.ConceptSlug)
		}
	}
	cp := *r
	v.m.rules[r.ID] = &cp
	return nil
}

func (v memRules) Get(ctx context.Context, id string) (*rules.RegulatoryRule, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	r, ok := v.m.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: rule %s", ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

func (v memRules) Update(ctx context.Context, r *rules.RegulatoryRule) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if _, ok := v.m.rules[r.ID]; !ok {
		return fmt.Errorf("%w: rule %s", ErrNotFound, r.ID)
	}
	cp := *r
	v.m.rules[r.ID] = &cp
	return nil
}

func (v memRules) BySignature(ctx context.Context, conceptSlug, sig string) (*rules.RegulatoryRule, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	for _, r := range v.m.rules {
		if r.ConceptSlug == conceptSlug && r.MeaningSignature == sig && r.Status != rules.StatusDeprecated {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: signature for concept %s", ErrNotFound, conceptSlug)
}

func (v memRules) ByConcept(ctx context.Context, conceptSlug string) ([]*rules.RegulatoryRule, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	var out []*rules.RegulatoryRule
	for _, r := range v.m.rules {
		if r.ConceptSlug == conceptSlug {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v memRules) ByStatus(ctx context.Context, status rules.Status) ([]*rules.RegulatoryRule, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	var out []*rules.RegulatoryRule
	for _, r := range v.m.rules {
		if r.Status == status {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v memRules) AttachPointers(ctx context.Context, ruleID string, pointerIDs []string) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	r, ok := v.m.rules[ruleID]
	if !ok {
		return fmt.Errorf("%w: rule %s", ErrNotFound, ruleID)
	}
	have := make(map[string]bool, len(r.SourcePointerIDs))
	for _, id := range r.SourcePointerIDs {
		have[id] = true
	}
	for _, id := range pointerIDs {
		if !have[id] {
			r.SourcePointerIDs = append(r.SourcePointerIDs, id)
			have[id] = true
		}
	}
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (v memRules) PublishedExpired(ctx context.Context, now time.Time) ([]*rules.RegulatoryRule, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	var out []*rules.RegulatoryRule
	for _, r := range v.m.rules {
		if r.Status == rules.StatusPublished && r.EffectiveUntil != nil && !r.EffectiveUntil.After(now) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- ConflictRepo ---

type memConflicts struct{ m *Memory }

func (v memConflicts) Insert(ctx context.Context, c *rules.RegulatoryConflict) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	cp := *c
	v.m.conflicts[c.ID] = &cp
	return nil
}

func (v memConflicts) Get(ctx context.Context, id string) (*rules.RegulatoryConflict, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	c, ok := v.m.conflicts[id]
	if !ok {
		return nil, fmt.Errorf("%w: conflict %s", ErrNotFound, id)
	}
	cp := *c
	return &cp, nil
}

func (v memConflicts) OpenForPair(ctx context.Context, ruleA, ruleB string) (bool, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	for _, c := range v.m.conflicts {
		if c.Status != rules.ConflictOpen {
			continue
		}
		var hasA, hasB bool
		for _, id := range c.RuleIDs {
			hasA = hasA || id == ruleA
			hasB = hasB || id == ruleB
		}
		if hasA && hasB {
			return true, nil
		}
	}
	return false, nil
}

func (v memConflicts) ListOpen(ctx context.Context) ([]*rules.RegulatoryConflict, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	var out []*rules.RegulatoryConflict
	for _, c := range v.m.conflicts {
		if c.Status == rules.ConflictOpen {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- EdgeRepo ---

type memEdges struct{ m *Memory }

func (v memEdges) Insert(ctx context.Context, e *rules.AmendmentEdge) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	cp := *e
	v.m.edges = append(v.m.edges, &cp)
	return nil
}

func (v memEdges) From(ctx context.Context, ruleID string) ([]*rules.AmendmentEdge, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	var out []*rules.AmendmentEdge
	for _, e := range v.m.edges {
		if e.FromRuleID == ruleID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// EdgeCount reports the number of stored amendment edges. Test hook.
func (m *Memory) EdgeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.edges)
}

// RuleCount reports the number of stored rules. Test hook.
func (m *Memory) RuleCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// ConflictCount reports the number of stored conflicts. Test hook.
func (m *Memory) ConflictCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conflicts)
}
