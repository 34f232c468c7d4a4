// Package amendgraph maintains the directed AMENDS graph between rules
// and guarantees it stays acyclic.
package amendgraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lexhr/curator/pkg/rules"
	"github.com/lexhr/curator/pkg/store"
)

// ErrCycleDetected is returned when a new edge would close a cycle in
// the amendment graph. The edge is not written; both rules are left
// untouched.
var ErrCycleDetected = errors.New("amendment edge would create a cycle")

// Graph creates AMENDS edges over an edge repository.
type Graph struct {
	edges store.EdgeRepo
}

// New builds a graph over the given repository.
func New(edges store.EdgeRepo) *Graph {
	return &Graph{edges: edges}
}

// CreateEdge records fromRuleID AMENDS toRuleID, valid from validFrom.
// Before writing it walks the existing edges from toRuleID: if
// fromRuleID is reachable the new edge would close a cycle and
// ErrCycleDetected is returned.
func (g *Graph) CreateEdge(ctx context.Context, fromRuleID, toRuleID string, validFrom time.Time) (*rules.AmendmentEdge, error) {
	if fromRuleID == toRuleID {
		return nil, fmt.Errorf("%w: rule %s cannot amend itself", ErrCycleDetected, fromRuleID)
	}
	reachable, err := g.reachable(ctx, toRuleID, fromRuleID)
	if err != nil {
		return nil, fmt.Errorf("amendgraph: reachability walk: %w", err)
	}
	if reachable {
		return nil, fmt.Errorf("%w: %s is already downstream of %s", ErrCycleDetected, fromRuleID, toRuleID)
	}

	edge, err := rules.NewAmendmentEdge(fromRuleID, toRuleID, validFrom)
	if err != nil {
		return nil, err
	}
	if err := g.edges.Insert(ctx, edge); err != nil {
		return nil, fmt.Errorf("amendgraph: insert edge: %w", err)
	}
	return edge, nil
}

// AmendmentChain returns the rule IDs reachable from ruleID following
// AMENDS edges, oldest target last, excluding ruleID itself.
func (g *Graph) AmendmentChain(ctx context.Context, ruleID string) ([]string, error) {
	var chain []string
	seen := map[string]bool{ruleID: true}
	frontier := []string{ruleID}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		out, err := g.edges.From(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, e := range out {
			if seen[e.ToRuleID] {
				continue
			}
			seen[e.ToRuleID] = true
			chain = append(chain, e.ToRuleID)
			frontier = append(frontier, e.ToRuleID)
		}
	}
	return chain, nil
}

// reachable reports whether target can be reached from start via
// outgoing edges. BFS; the seen set bounds the walk even if the store
// already holds a cycle.
func (g *Graph) reachable(ctx context.Context, start, target string) (bool, error) {
	seen := map[string]bool{start: true}
	frontier := []string{start}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		if id == target {
			return true, nil
		}
		out, err := g.edges.From(ctx, id)
		if err != nil {
			return false, err
		}
		for _, e := range out {
			if seen[e.ToRuleID] {
				continue
			}
			seen[e.ToRuleID] = true
			frontier = append(frontier, e.ToRuleID)
		}
	}
	return false, nil
}
