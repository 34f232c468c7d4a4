package applieswhen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// Evaluator compiles condition trees to CEL programs and evaluates them
// against subject facts. Programs are cached by expression, mirroring
// how rule conditions repeat across versions of the same concept.
//
// Evaluation is fail-closed: a missing fact or type mismatch yields
// (false, error), never a silent true.
type Evaluator struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewEvaluator builds the CEL environment shared by all evaluations.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("facts", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("applieswhen: cel env: %w", err)
	}
	return &Evaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// Evaluate reports whether the tree holds for the given facts. A nil
// tree applies unconditionally.
func (e *Evaluator) Evaluate(ctx context.Context, n *Node, facts map[string]any) (bool, error) {
	if n == nil {
		return true, nil
	}
	if err := Validate(n); err != nil {
		return false, err
	}

	expr, err := toCEL(n)
	if err != nil {
		return false, err
	}
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	if facts == nil {
		facts = map[string]any{}
	}
	out, _, err := prg.ContextEval(ctx, map[string]any{"facts": facts})
	if err != nil {
		return false, fmt.Errorf("applieswhen: evaluate: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("applieswhen: expression yielded %T, want bool", out.Value())
	}
	return b, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := e.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("applieswhen: cel compile: %w", iss.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("applieswhen: cel program: %w", err)
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

var celCmp = map[Op]string{
	OpEq:  "==",
	OpNe:  "!=",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

func toCEL(n *Node) (string, error) {
	switch n.Op {
	case OpAnd, OpOr:
		sep := " && "
		if n.Op == OpOr {
			sep = " || "
		}
		parts := make([]string, 0, len(n.Children))
		for _, c := range n.Children {
			sub, err := toCEL(c)
			if err != nil {
				return "", err
			}
			parts = append(parts, sub)
		}
		return "(" + strings.Join(parts, sep) + ")", nil

	case OpNot:
		sub, err := toCEL(n.Children[0])
		if err != nil {
			return "", err
		}
		return "!(" + sub + ")", nil

	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		lit, err := celLiteral(n.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("facts[%q] %s %s", n.Field, celCmp[n.Op], lit), nil

	case OpIn:
		lit, err := celLiteral(n.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("facts[%q] in %s", n.Field, lit), nil

	case OpDateRange:
		subject := fmt.Sprintf("timestamp(string(facts[%q]))", n.Field)
		var parts []string
		if n.From != "" {
			t, err := ParseDate(n.From)
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("%s >= timestamp(%q)", subject, t.Format("2006-01-02T15:04:05Z")))
		}
		if n.Until != "" {
			t, err := ParseDate(n.Until)
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("%s <= timestamp(%q)", subject, t.Format("2006-01-02T15:04:05Z")))
		}
		return "(" + strings.Join(parts, " && ") + ")", nil

	default:
		return "", fmt.Errorf("%w: unknown operator %q", ErrInvalidTree, n.Op)
	}
}

// celLiteral renders a JSON-decoded value as a CEL literal. JSON string
// escaping is a subset of CEL's, so the marshaled form is reused as-is.
func celLiteral(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("applieswhen: unencodable literal: %w", err)
	}
	return string(b), nil
}
