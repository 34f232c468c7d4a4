package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexhr/curator/pkg/rules"
)

func TestWriterSink_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	err := sink.Record(context.Background(), "rule.created", "RegulatoryRule", "r-1",
		map[string]any{"concept_slug": "vat-standard-rate"})
	require.NoError(t, err)
	err = sink.Record(context.Background(), "rule.merged", "RegulatoryRule", "r-2", nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var ev rules.AuditEvent
	require.True(t, strings.HasPrefix(lines[0], "AUDIT: "))
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[0], "AUDIT: ")), &ev))
	assert.Equal(t, "rule.created", ev.Action)
	assert.Equal(t, "r-1", ev.EntityID)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	require.NoError(t, rec.Record(context.Background(), "rule.created", "RegulatoryRule", "r-1", nil))
	require.NoError(t, rec.Record(context.Background(), "rule.deprecated", "RegulatoryRule", "r-2", nil))

	assert.Len(t, rec.Events(), 2)
	assert.Len(t, rec.ByAction("rule.deprecated"), 1)
}
