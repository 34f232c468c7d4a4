package composer

import (
	"context"
	"log/slog"

	"github.com/lexhr/curator/pkg/agent"
	"github.com/lexhr/curator/pkg/cooldown"
)

// BatchItem is one proposal awaiting composition.
type BatchItem struct {
	PointerIDs []string
	// Raw is the agent's proposal output, parsed strictly here.
	Raw []byte
}

// DomainBatch groups proposals by their source domain so cooldowns and
// failure isolation apply per regulator site.
type DomainBatch struct {
	Domain string
	Items  []BatchItem
}

// BatchResult summarizes one domain's run.
type BatchResult struct {
	Domain   string
	Outcomes []*Outcome
	Errors   []error
}

// Failed reports whether any item in the domain failed.
func (r *BatchResult) Failed() bool { return len(r.Errors) > 0 }

// BatchRunner drives the composer over domain batches sequentially. A
// broken domain never stops the others, and the limiter spaces the work
// per domain.
type BatchRunner struct {
	composer *Composer
	limiter  cooldown.Limiter
	log      *slog.Logger
}

// NewBatchRunner builds a runner. The limiter may be nil, which means
// no cooldown.
func NewBatchRunner(c *Composer, limiter cooldown.Limiter, log *slog.Logger) *BatchRunner {
	if log == nil {
		log = slog.Default()
	}
	return &BatchRunner{composer: c, limiter: limiter, log: log}
}

// Run processes every batch. Per-item errors are collected in the
// domain's result; only context cancellation aborts the run.
func (r *BatchRunner) Run(ctx context.Context, batches []DomainBatch) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(batches))
	for _, batch := range batches {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx, batch.Domain); err != nil {
				return results, err
			}
		}
		results = append(results, r.runDomain(ctx, batch))
	}
	return results, nil
}

func (r *BatchRunner) runDomain(ctx context.Context, batch DomainBatch) BatchResult {
	res := BatchResult{Domain: batch.Domain}
	for _, item := range batch.Items {
		proposal, err := agent.ParseProposal(item.Raw)
		if err != nil {
			res.Errors = append(res.Errors, err)
			r.log.WarnContext(ctx, "proposal rejected", "domain", batch.Domain, "error", err)
			continue
		}
		out, err := r.composer.Compose(ctx, item.PointerIDs, proposal)
		if err != nil {
			res.Errors = append(res.Errors, err)
			r.log.WarnContext(ctx, "composition failed", "domain", batch.Domain, "error", err)
			continue
		}
		res.Outcomes = append(res.Outcomes, out)
	}
	return res
}
