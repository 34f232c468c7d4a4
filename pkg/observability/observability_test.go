package observability

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledIsNoop(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	// Instruments must be safe to use without a configured exporter.
	ctx := context.Background()
	p.RuleCreated(ctx, "pdv-opca-stopa")
	p.RuleMerged(ctx, "pdv-opca-stopa")
	p.ConflictOpened(ctx, "STRUCTURAL_OVERLAP")
	p.RuleDeprecated(ctx, "pdv-snizena-stopa")
	p.EvidenceCheck(ctx, false)
	p.ComposeObserved(ctx, 120*time.Millisecond, "created")
	assert.NoError(t, p.Shutdown(ctx))
}

func TestNewLogger_Levels(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for name, level := range cases {
		log := NewLogger(name)
		assert.Truef(t, log.Enabled(context.Background(), level), "level %q must enable %v", name, level)
		if level > slog.LevelDebug {
			assert.Falsef(t, log.Enabled(context.Background(), level-4), "level %q must not enable %v", name, level-4)
		}
	}
}
