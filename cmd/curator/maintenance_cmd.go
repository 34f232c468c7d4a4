package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/lexhr/curator/pkg/config"
	"github.com/lexhr/curator/pkg/lifecycle"
	"github.com/lexhr/curator/pkg/observability"
	"github.com/lexhr/curator/pkg/staleness"
	"github.com/lexhr/curator/pkg/store"
)

// runDeprecateExpired implements `curator deprecate-expired`: sweeps
// PUBLISHED rules whose effective window has closed.
func runDeprecateExpired(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("deprecate-expired", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dbPath string
		asOf   string
	)
	cmd.StringVar(&dbPath, "db", "curator.db", "Path to the sqlite database")
	cmd.StringVar(&asOf, "as-of", "", "Sweep cutoff date YYYY-MM-DD (default: now)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	now := time.Now().UTC()
	if asOf != "" {
		parsed, err := time.Parse("2006-01-02", asOf)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: -as-of: %v\n", err)
			return 2
		}
		now = parsed
	}

	db, err := store.OpenSQLite(dbPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: open database: %v\n", err)
		return 2
	}
	defer db.Close()

	ctx := context.Background()
	cfg := config.Load()
	s := db.Bundle()
	log := observability.NewLogger(cfg.LogLevel)
	sink, closeSink, err := newAuditSink(ctx, cfg, stdout)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = closeSink() }()
	metrics, stopMetrics, err := newMetrics(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer stopMetrics()

	lm := lifecycle.NewManager(s.Rules, sink, log)
	svc := staleness.NewService(s.Evidence, s.Rules, lm, nil, 1, sink, log, metrics)

	n, err := svc.DeprecateExpiredRules(ctx, now)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "deprecated %d rule(s)\n", n)
	return 0
}

// runVerifyEvidence implements `curator verify-evidence`: sweeps every
// evidence record whose availability check is due.
func runVerifyEvidence(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify-evidence", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	cfg := config.Load()

	var (
		dbPath      string
		profilePath string
	)
	cmd.StringVar(&dbPath, "db", cfg.SQLitePath, "Path to the sqlite database")
	cmd.StringVar(&profilePath, "profile", "", "Curation profile YAML with staleness overrides (default: none)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	db, err := store.OpenSQLite(dbPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: open database: %v\n", err)
		return 2
	}
	defer db.Close()

	ctx := context.Background()
	s := db.Bundle()
	log := observability.NewLogger(cfg.LogLevel)
	sink, closeSink, err := newAuditSink(ctx, cfg, stdout)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = closeSink() }()
	metrics, stopMetrics, err := newMetrics(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer stopMetrics()

	lm := lifecycle.NewManager(s.Rules, sink, log)
	svc := staleness.NewService(s.Evidence, s.Rules, lm, &staleness.HTTPChecker{},
		cfg.ChecksPerSecond, sink, log, metrics)

	if profilePath != "" {
		profile, err := config.LoadProfile(profilePath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: load profile: %v\n", err)
			return 2
		}
		svc.SetThresholdOverrides(profile.StalenessOverrides)
	}

	checked, failed, err := svc.RunOnce(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "checked %d evidence record(s), %d failed\n", checked, failed)
	if failed > 0 {
		return 1
	}
	return 0
}

// runStaleness implements `curator staleness`, the band calculator for
// operators triaging evidence.
func runStaleness(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("staleness", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		days      float64
		hierarchy int
		changed   bool
	)
	cmd.Float64Var(&days, "days", 0, "Days since last successful verification (REQUIRED)")
	cmd.IntVar(&hierarchy, "hierarchy", 1, "Source hierarchy 1..5")
	cmd.BoolVar(&changed, "changed", false, "Source content changed since capture")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if days < 0 || hierarchy < 1 || hierarchy > 5 {
		_, _ = fmt.Fprintln(stderr, "Error: -days must be >= 0 and -hierarchy within 1..5")
		return 2
	}

	status := staleness.ComputeStatus(days, hierarchy, changed)
	_, _ = fmt.Fprintf(stdout, "status:    %s\n", status)
	_, _ = fmt.Fprintf(stdout, "threshold: %.0f days\n", staleness.Threshold(hierarchy))
	_, _ = fmt.Fprintf(stdout, "decay:     %.2f\n", staleness.ConfidenceDecay(days))
	return 0
}
