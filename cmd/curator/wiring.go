package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/lexhr/curator/pkg/audit"
	"github.com/lexhr/curator/pkg/config"
	"github.com/lexhr/curator/pkg/observability"
	"github.com/lexhr/curator/pkg/store"
)

// newAuditSink returns the configured audit sink: postgres when
// DATABASE_URL is set, JSON lines on the given writer otherwise. The
// returned closer is always safe to call.
func newAuditSink(ctx context.Context, cfg *config.Config, w io.Writer) (audit.Sink, func() error, error) {
	if cfg.DatabaseURL == "" {
		return audit.NewWriterSink(w), func() error { return nil }, nil
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit database: %w", err)
	}
	sink := store.NewPostgresAuditSink(db)
	if err := sink.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return sink, db.Close, nil
}

// newMetrics returns a telemetry provider when METRICS_ENABLED is set,
// nil otherwise. The returned shutdown is always safe to call.
func newMetrics(ctx context.Context, cfg *config.Config) (*observability.Provider, func(), error) {
	if !cfg.MetricsEnabled {
		return nil, func() {}, nil
	}
	oc := observability.DefaultConfig()
	oc.OTLPEndpoint = cfg.OTLPEndpoint
	oc.Enabled = true
	oc.Insecure = true
	p, err := observability.New(ctx, oc)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: %w", err)
	}
	return p, func() { _ = p.Shutdown(ctx) }, nil
}
