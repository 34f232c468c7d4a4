// Package observability provides structured logging and OpenTelemetry
// metrics for the curation pipeline. Metrics are no-ops unless an OTLP
// endpoint is configured, so library code can record unconditionally.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config configures the telemetry provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // gRPC, e.g. "localhost:4317"
	Enabled        bool
	Insecure       bool
}

// DefaultConfig returns development defaults with telemetry off.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "curator",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
	}
}

// NewLogger builds a JSON slog logger at the given level name
// (debug/info/warn/error, case-insensitive; unknown means info).
func NewLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// Provider owns the meter provider and the pipeline's instruments.
type Provider struct {
	config        *Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	rulesCreated    metric.Int64Counter
	rulesMerged     metric.Int64Counter
	conflictsOpened metric.Int64Counter
	rulesDeprecated metric.Int64Counter
	evidenceChecks  metric.Int64Counter
	composeDuration metric.Float64Histogram
}

// New builds a provider. With Enabled false every instrument is a
// no-op and no connection is opened.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Provider{config: config}

	if config.Enabled {
		res, err := resource.Merge(
			resource.Default(),
			resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
				semconv.DeploymentEnvironment(config.Environment),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("observability: resource: %w", err)
		}
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(config.OTLPEndpoint)}
		if config.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("observability: otlp exporter: %w", err)
		}
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
		)
		otel.SetMeterProvider(p.meterProvider)
		p.meter = p.meterProvider.Meter("curator")
	} else {
		p.meter = otel.Meter("curator/noop")
	}

	if err := p.initInstruments(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) initInstruments() error {
	var err error
	if p.rulesCreated, err = p.meter.Int64Counter("curator.rules_created",
		metric.WithDescription("Draft rules persisted")); err != nil {
		return err
	}
	if p.rulesMerged, err = p.meter.Int64Counter("curator.rules_merged",
		metric.WithDescription("Proposals merged into existing rules")); err != nil {
		return err
	}
	if p.conflictsOpened, err = p.meter.Int64Counter("curator.conflicts_opened",
		metric.WithDescription("Conflicts recorded for arbiter triage")); err != nil {
		return err
	}
	if p.rulesDeprecated, err = p.meter.Int64Counter("curator.rules_deprecated",
		metric.WithDescription("Rules deprecated by lifecycle or expiry sweep")); err != nil {
		return err
	}
	if p.evidenceChecks, err = p.meter.Int64Counter("curator.evidence_checks",
		metric.WithDescription("Evidence availability checks, by result")); err != nil {
		return err
	}
	if p.composeDuration, err = p.meter.Float64Histogram("curator.compose_duration",
		metric.WithDescription("Rule composition duration"), metric.WithUnit("s")); err != nil {
		return err
	}
	return nil
}

func (p *Provider) RuleCreated(ctx context.Context, conceptSlug string) {
	p.rulesCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("concept", conceptSlug)))
}

func (p *Provider) RuleMerged(ctx context.Context, conceptSlug string) {
	p.rulesMerged.Add(ctx, 1, metric.WithAttributes(attribute.String("concept", conceptSlug)))
}

func (p *Provider) ConflictOpened(ctx context.Context, conflictType string) {
	p.conflictsOpened.Add(ctx, 1, metric.WithAttributes(attribute.String("type", conflictType)))
}

func (p *Provider) RuleDeprecated(ctx context.Context, conceptSlug string) {
	p.rulesDeprecated.Add(ctx, 1, metric.WithAttributes(attribute.String("concept", conceptSlug)))
}

func (p *Provider) EvidenceCheck(ctx context.Context, ok bool) {
	p.evidenceChecks.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", ok)))
}

func (p *Provider) ComposeObserved(ctx context.Context, d time.Duration, outcome string) {
	p.composeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Shutdown flushes pending metrics.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
