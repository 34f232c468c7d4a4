package applieswhen

import (
	"sort"

	"github.com/lexhr/curator/pkg/canonical"
)

// Canonical returns a plain-data projection of the tree suitable for
// canonical hashing. Children of the commutative combinators (and/or)
// are sorted by their canonical bytes so semantically identical trees
// project identically regardless of authoring order.
func Canonical(n *Node) any {
	if n == nil {
		return nil
	}
	m := map[string]any{"op": string(n.Op)}
	if n.Field != "" {
		m["field"] = n.Field
	}
	if n.Value != nil {
		m["value"] = n.Value
	}
	if n.From != "" {
		m["from"] = n.From
	}
	if n.Until != "" {
		m["until"] = n.Until
	}
	if len(n.Children) > 0 {
		kids := make([]any, 0, len(n.Children))
		for _, c := range n.Children {
			kids = append(kids, Canonical(c))
		}
		if n.Op == OpAnd || n.Op == OpOr {
			sortByCanonicalBytes(kids)
		}
		m["children"] = kids
	}
	return m
}

// Fingerprint returns the canonical hash of a tree. The nil tree has a
// stable fingerprint of its own.
func Fingerprint(n *Node) (string, error) {
	return canonical.CanonicalHash(Canonical(n))
}

// Equal reports whether two trees are semantically identical under the
// canonical projection.
func Equal(a, b *Node) bool {
	ha, errA := Fingerprint(a)
	hb, errB := Fingerprint(b)
	if errA != nil || errB != nil {
		return false
	}
	return ha == hb
}

func sortByCanonicalBytes(items []any) {
	keys := make([]string, len(items))
	for i, it := range items {
		b, err := canonical.JCS(it)
		if err != nil {
			// Unhashable child: leave authoring order in place.
			return
		}
		keys[i] = string(b)
	}
	sort.SliceStable(items, func(i, j int) bool { return keys[i] < keys[j] })
}
