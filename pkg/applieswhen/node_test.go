package applieswhen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidTree(t *testing.T) {
	raw := []byte(`{
		"op": "and",
		"children": [
			{"op": "eq", "field": "entity_type", "value": "obrt"},
			{"op": "gt", "field": "annual_revenue", "value": 40000},
			{"op": "date_range", "field": "as_of", "from": "2025-01-01"}
		]
	}`)
	n, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, OpAnd, n.Op)
	assert.Len(t, n.Children, 3)
}

func TestParse_FailClosed(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"op": "and",`,
		"empty":            ``,
		"unknown op":       `{"op": "matches", "field": "x", "value": "y"}`,
		"unknown field":    `{"op": "eq", "field": "x", "value": 1, "widen": true}`,
		"missing op":       `{"field": "x", "value": 1}`,
		"and no children":  `{"op": "and"}`,
		"cmp no field":     `{"op": "eq", "value": 1}`,
		"cmp no value":     `{"op": "lt", "field": "x"}`,
		"in scalar value":  `{"op": "in", "field": "x", "value": "scalar"}`,
		"bad date":         `{"op": "date_range", "field": "d", "from": "01.01.2025"}`,
		"date no bounds":   `{"op": "date_range", "field": "d"}`,
		"not two children": `{"op": "not", "children": [{"op":"eq","field":"a","value":1},{"op":"eq","field":"b","value":2}]}`,
		"op wrong type":    `{"op": 42}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			n, err := Parse([]byte(raw))
			require.Error(t, err)
			assert.Nil(t, n)
			assert.True(t, errors.Is(err, ErrInvalidTree), "must wrap ErrInvalidTree: %v", err)
		})
	}
}

func TestValidate_NilTreeIsUnconditional(t *testing.T) {
	assert.NoError(t, Validate(nil))
}

func TestEqual_ChildOrderIrrelevantForCombinators(t *testing.T) {
	a, err := Parse([]byte(`{"op":"and","children":[
		{"op":"eq","field":"x","value":1},
		{"op":"eq","field":"y","value":2}]}`))
	require.NoError(t, err)
	b, err := Parse([]byte(`{"op":"and","children":[
		{"op":"eq","field":"y","value":2},
		{"op":"eq","field":"x","value":1}]}`))
	require.NoError(t, err)

	assert.True(t, Equal(a, b))
}

func TestEqual_DifferentValuesDiffer(t *testing.T) {
	a, err := Parse([]byte(`{"op":"eq","field":"x","value":1}`))
	require.NoError(t, err)
	b, err := Parse([]byte(`{"op":"eq","field":"x","value":2}`))
	require.NoError(t, err)

	assert.False(t, Equal(a, b))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(a, nil))
}

func TestFingerprint_Deterministic(t *testing.T) {
	n, err := Parse([]byte(`{"op":"in","field":"county","value":["zagreb","split"]}`))
	require.NoError(t, err)

	h1, err := Fingerprint(n)
	require.NoError(t, err)
	h2, err := Fingerprint(n)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	hNil, err := Fingerprint(nil)
	require.NoError(t, err)
	assert.NotEqual(t, h1, hNil)
}
