// Package applieswhen models the applicability condition attached to a
// regulatory rule: a boolean expression tree over subject facts, with
// date-range predicates for effective windows.
//
// Validation is fail-closed. A malformed tree is a hard error for the
// caller; it is never replaced by an always-true condition, because that
// would make an unverified rule apply universally.
package applieswhen

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTree marks every parse or validation failure in this package.
var ErrInvalidTree = errors.New("invalid applies_when tree")

// Op enumerates node operators.
type Op string

const (
	OpAnd       Op = "and"
	OpOr        Op = "or"
	OpNot       Op = "not"
	OpEq        Op = "eq"
	OpNe        Op = "ne"
	OpGt        Op = "gt"
	OpGte       Op = "gte"
	OpLt        Op = "lt"
	OpLte       Op = "lte"
	OpIn        Op = "in"
	OpDateRange Op = "date_range"
)

// Node is one vertex of the condition tree. Combinators carry Children;
// comparisons carry Field and Value; date_range carries Field plus
// From/Until date strings (RFC 3339 or YYYY-MM-DD).
type Node struct {
	Op       Op      `json:"op"`
	Children []*Node `json:"children,omitempty"`
	Field    string  `json:"field,omitempty"`
	Value    any     `json:"value,omitempty"`
	From     string  `json:"from,omitempty"`
	Until    string  `json:"until,omitempty"`
}

// Parse decodes and fully validates a condition tree from raw JSON.
// Unknown fields, unknown operators and structurally invalid nodes are
// all rejected. Empty input is an error; callers expressing "applies
// unconditionally" pass a nil *Node, not empty bytes.
func Parse(raw []byte) (*Node, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidTree)
	}
	if err := validateSchema(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var n Node
	if err := dec.Decode(&n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}
	if err := Validate(&n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Validate checks the semantic constraints of an already-decoded tree.
// A nil tree is valid (unconditional rule).
func Validate(n *Node) error {
	if n == nil {
		return nil
	}
	return validateNode(n, 0)
}

const maxDepth = 32

func validateNode(n *Node, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: tree deeper than %d levels", ErrInvalidTree, maxDepth)
	}

	switch n.Op {
	case OpAnd, OpOr:
		if len(n.Children) == 0 {
			return fmt.Errorf("%w: %q requires at least one child", ErrInvalidTree, n.Op)
		}
		if n.Field != "" || n.Value != nil || n.From != "" || n.Until != "" {
			return fmt.Errorf("%w: combinator %q carries leaf attributes", ErrInvalidTree, n.Op)
		}
		for _, c := range n.Children {
			if c == nil {
				return fmt.Errorf("%w: nil child under %q", ErrInvalidTree, n.Op)
			}
			if err := validateNode(c, depth+1); err != nil {
				return err
			}
		}
		return nil

	case OpNot:
		if len(n.Children) != 1 || n.Children[0] == nil {
			return fmt.Errorf("%w: %q requires exactly one child", ErrInvalidTree, n.Op)
		}
		return validateNode(n.Children[0], depth+1)

	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		if n.Field == "" {
			return fmt.Errorf("%w: comparison %q requires a field", ErrInvalidTree, n.Op)
		}
		if n.Value == nil {
			return fmt.Errorf("%w: comparison %q requires a value", ErrInvalidTree, n.Op)
		}
		if len(n.Children) != 0 {
			return fmt.Errorf("%w: comparison %q must not have children", ErrInvalidTree, n.Op)
		}
		return nil

	case OpIn:
		if n.Field == "" {
			return fmt.Errorf("%w: %q requires a field", ErrInvalidTree, n.Op)
		}
		list, ok := n.Value.([]any)
		if !ok || len(list) == 0 {
			return fmt.Errorf("%w: %q requires a non-empty list value", ErrInvalidTree, n.Op)
		}
		return nil

	case OpDateRange:
		if n.Field == "" {
			return fmt.Errorf("%w: date_range requires a field", ErrInvalidTree)
		}
		if n.From == "" && n.Until == "" {
			return fmt.Errorf("%w: date_range requires from and/or until", ErrInvalidTree)
		}
		for _, d := range []string{n.From, n.Until} {
			if d == "" {
				continue
			}
			if _, err := ParseDate(d); err != nil {
				return fmt.Errorf("%w: date_range bound %q: %v", ErrInvalidTree, d, err)
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidTree, n.Op)
	}
}

// ParseDate accepts RFC 3339 timestamps and bare YYYY-MM-DD dates, both
// interpreted in UTC.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("not an RFC 3339 or YYYY-MM-DD date: %q", s)
	}
	return t.UTC(), nil
}
