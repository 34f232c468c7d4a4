package applieswhen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *Node {
	t.Helper()
	n, err := Parse([]byte(raw))
	require.NoError(t, err)
	return n
}

func TestEvaluator_Combinators(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)
	ctx := context.Background()

	tree := mustParse(t, `{"op":"and","children":[
		{"op":"eq","field":"entity_type","value":"obrt"},
		{"op":"or","children":[
			{"op":"gt","field":"annual_revenue","value":40000},
			{"op":"eq","field":"vat_registered","value":true}]}]}`)

	ok, err := ev.Evaluate(ctx, tree, map[string]any{
		"entity_type":    "obrt",
		"annual_revenue": 50000.0,
		"vat_registered": false,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ev.Evaluate(ctx, tree, map[string]any{
		"entity_type":    "obrt",
		"annual_revenue": 10000.0,
		"vat_registered": false,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluator_InAndNot(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)
	ctx := context.Background()

	tree := mustParse(t, `{"op":"not","children":[
		{"op":"in","field":"county","value":["zagreb","split"]}]}`)

	ok, err := ev.Evaluate(ctx, tree, map[string]any{"county": "rijeka"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ev.Evaluate(ctx, tree, map[string]any{"county": "zagreb"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluator_DateRange(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)
	ctx := context.Background()

	tree := mustParse(t, `{"op":"date_range","field":"as_of","from":"2025-01-01","until":"2025-12-31"}`)

	ok, err := ev.Evaluate(ctx, tree, map[string]any{"as_of": "2025-06-15T00:00:00Z"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ev.Evaluate(ctx, tree, map[string]any{"as_of": "2026-01-02T00:00:00Z"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluator_MissingFactFailsClosed(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)

	tree := mustParse(t, `{"op":"eq","field":"entity_type","value":"obrt"}`)
	ok, err := ev.Evaluate(context.Background(), tree, map[string]any{})
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestEvaluator_NilTreeAppliesUnconditionally(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)

	ok, err := ev.Evaluate(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}
