package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProposal_DraftRule(t *testing.T) {
	raw := []byte(`{
		"draft_rule": {
			"concept_slug": "pdv-opca-stopa",
			"title_hr": "Opća stopa PDV-a",
			"value": 25,
			"value_type": "number",
			"effective_from": "2025-01-01",
			"confidence": 0.95,
			"source_quotes": ["PDV se obračunava po stopi od 25%."]
		}
	}`)
	p, err := ParseProposal(raw)
	require.NoError(t, err)
	require.NotNil(t, p.DraftRule)
	assert.Nil(t, p.ConflictReport)
	assert.Equal(t, "pdv-opca-stopa", p.DraftRule.ConceptSlug)

	from, until, err := p.DraftRule.EffectiveWindow()
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", from.Format("2006-01-02"))
	assert.Nil(t, until)
}

func TestParseProposal_ConflictReport(t *testing.T) {
	raw := []byte(`{
		"conflicts_detected": {
			"description": "NN 35/2025 states 25% while the ministry guidance PDF states 23% for the same period",
			"pointer_ids": ["ptr-1", "ptr-2"]
		}
	}`)
	p, err := ParseProposal(raw)
	require.NoError(t, err)
	assert.Nil(t, p.DraftRule)
	require.NotNil(t, p.ConflictReport)
	assert.Len(t, p.ConflictReport.PointerIDs, 2)
}

func TestParseProposal_Rejections(t *testing.T) {
	cases := map[string]string{
		"empty input":           ``,
		"empty object":          `{}`,
		"both branches":         `{"draft_rule":{"concept_slug":"a","value":1,"value_type":"number","effective_from":"2025-01-01"},"conflicts_detected":{"description":"x"}}`,
		"unknown field":         `{"draft_rule":{"concept_slug":"a","value":1,"value_type":"number","effective_from":"2025-01-01"},"extra":true}`,
		"missing slug":          `{"draft_rule":{"value":1,"value_type":"number","effective_from":"2025-01-01"}}`,
		"missing value_type":    `{"draft_rule":{"concept_slug":"a","value":1,"effective_from":"2025-01-01"}}`,
		"bad date":              `{"draft_rule":{"concept_slug":"a","value":1,"value_type":"number","effective_from":"01.01.2025."}}`,
		"confidence over one":   `{"draft_rule":{"concept_slug":"a","value":1,"value_type":"number","effective_from":"2025-01-01","confidence":1.5}}`,
		"empty conflict report": `{"conflicts_detected":{"description":""}}`,
		"trailing data":         `{"conflicts_detected":{"description":"x"}} {"more":true}`,
		"not json":              `rate is 25%`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProposal([]byte(raw))
			require.ErrorIs(t, err, ErrInvalidProposal)
		})
	}
}

func TestEffectiveWindow_WithUntil(t *testing.T) {
	raw := []byte(`{"draft_rule":{"concept_slug":"pdv-snizena-stopa","value":13,"value_type":"number","effective_from":"2025-01-01","effective_until":"2025-12-31T23:59:59Z","confidence":0.8}}`)
	p, err := ParseProposal(raw)
	require.NoError(t, err)
	_, until, err := p.DraftRule.EffectiveWindow()
	require.NoError(t, err)
	require.NotNil(t, until)
	assert.Equal(t, 2025, until.Year())
}
