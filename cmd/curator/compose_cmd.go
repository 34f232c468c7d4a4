package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/lexhr/curator/pkg/amendgraph"
	"github.com/lexhr/curator/pkg/composer"
	"github.com/lexhr/curator/pkg/concepts"
	"github.com/lexhr/curator/pkg/config"
	"github.com/lexhr/curator/pkg/conflicts"
	"github.com/lexhr/curator/pkg/cooldown"
	"github.com/lexhr/curator/pkg/observability"
	"github.com/lexhr/curator/pkg/store"
)

// composeInput is one line of work for the composer: the proposal the
// agent produced and the source pointers backing it.
type composeInput struct {
	Domain     string          `json:"domain"`
	PointerIDs []string        `json:"pointer_ids"`
	Proposal   json.RawMessage `json:"proposal"`
}

// runCompose implements `curator compose`: feeds a file of agent
// proposals through the full composition pipeline, grouped by source
// domain so cooldowns and failure isolation apply per regulator site.
func runCompose(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("compose", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	cfg := config.Load()

	var (
		inPath      string
		dbPath      string
		profilePath string
		strict      bool
	)
	cmd.StringVar(&inPath, "in", "", "Path to a JSON array of proposals (REQUIRED)")
	cmd.StringVar(&dbPath, "db", cfg.SQLitePath, "Path to the sqlite database")
	cmd.StringVar(&profilePath, "profile", "", "Curation profile YAML (default: none)")
	cmd.BoolVar(&strict, "strict", false, "Reject proposals whose explanation fails traceability")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if inPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -in is required")
		cmd.Usage()
		return 2
	}

	raw, err := os.ReadFile(inPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read input: %v\n", err)
		return 2
	}
	var inputs []composeInput
	if err := json.Unmarshal(raw, &inputs); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: parse input: %v\n", err)
		return 2
	}

	db, err := store.OpenSQLite(dbPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: open database: %v\n", err)
		return 2
	}
	defer db.Close()
	s := db.Bundle()

	ctx := context.Background()
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

	resolverOpts := concepts.Options{}
	opts := composer.Options{StrictExplanations: strict}
	if profilePath != "" {
		profile, err := config.LoadProfile(profilePath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: load profile: %v\n", err)
			return 2
		}
		resolverOpts.Aliases = profile.Aliases
		resolverOpts.BlockedDomains = profile.BlockedDomains
		if profile.StrictExplanations {
			opts.StrictExplanations = true
		}
	}

	comp := composer.New(
		s,
		concepts.NewResolver(s.Rules, s.Concepts, resolverOpts),
		conflicts.NewDetector(s.Rules, s.Conflicts),
		amendgraph.New(s.Edges),
		sink,
		log,
		metrics,
		opts,
	)

	var limiter cooldown.Limiter
	if cfg.RedisAddr != "" {
		r := cooldown.NewRedis(cfg.RedisAddr, cfg.RedisPassword, 0, cfg.CooldownSeconds)
		defer r.Close()
		limiter = r
	} else if cfg.CooldownSeconds > 0 {
		limiter = cooldown.NewLocal(cfg.CooldownSeconds)
	}
	runner := composer.NewBatchRunner(comp, limiter, log)

	results, err := runner.Run(ctx, groupByDomain(inputs))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	failed := false
	for _, res := range results {
		created, merged := 0, 0
		for _, out := range res.Outcomes {
			switch {
			case out.MergedIntoRuleID != "":
				merged++
			case out.RuleID != "":
				created++
			}
		}
		_, _ = fmt.Fprintf(stdout, "%s: %d created, %d merged, %d failed\n",
			res.Domain, created, merged, len(res.Errors))
		if res.Failed() {
			failed = true
			for _, e := range res.Errors {
				_, _ = fmt.Fprintf(stderr, "  %s: %v\n", res.Domain, e)
			}
		}
	}
	if failed {
		return 1
	}
	return 0
}

// groupByDomain preserves first-seen domain order so runs are
// reproducible for a given input file.
func groupByDomain(inputs []composeInput) []composer.DomainBatch {
	index := make(map[string]int, len(inputs))
	var batches []composer.DomainBatch
	for _, in := range inputs {
		i, ok := index[in.Domain]
		if !ok {
			i = len(batches)
			index[in.Domain] = i
			batches = append(batches, composer.DomainBatch{Domain: in.Domain})
		}
		batches[i].Items = append(batches[i].Items, composer.BatchItem{
			PointerIDs: in.PointerIDs,
			Raw:        in.Proposal,
		})
	}
	return batches
}
