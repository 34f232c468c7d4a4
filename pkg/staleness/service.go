package staleness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/lexhr/curator/pkg/audit"
	"github.com/lexhr/curator/pkg/lifecycle"
	"github.com/lexhr/curator/pkg/observability"
	"github.com/lexhr/curator/pkg/rules"
	"github.com/lexhr/curator/pkg/store"
)

// ErrCheckFailed marks a transient availability failure. Callers retry;
// the evidence is only expired after MaxConsecutiveFailures of these.
var ErrCheckFailed = errors.New("availability check failed")

// CheckResult is what the availability checker learned about a URL.
type CheckResult struct {
	ETag         string
	LastModified string
}

// AvailabilityChecker probes whether a source URL still serves content.
type AvailabilityChecker interface {
	Check(ctx context.Context, url string) (*CheckResult, error)
}

// HTTPChecker verifies availability with a HEAD request.
type HTTPChecker struct {
	Client *http.Client
}

func (h *HTTPChecker) Check(ctx context.Context, url string) (*CheckResult, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckFailed, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCheckFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HEAD %s returned %d", ErrCheckFailed, url, resp.StatusCode)
	}
	return &CheckResult{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// Service runs evidence verification sweeps and expiry-driven
// deprecation.
type Service struct {
	evidence   store.EvidenceRepo
	rulesRepo  store.RuleRepo
	lifecycle  *lifecycle.Manager
	checker    AvailabilityChecker
	limiter    *rate.Limiter
	sink       audit.Sink
	log        *slog.Logger
	metrics    *observability.Provider
	thresholds map[string]float64
	now        func() time.Time
}

// NewService builds the staleness service. checksPerSecond bounds the
// outbound HEAD traffic. The metrics provider may be nil.
func NewService(evidence store.EvidenceRepo, rulesRepo store.RuleRepo, lm *lifecycle.Manager,
	checker AvailabilityChecker, checksPerSecond float64, sink audit.Sink, log *slog.Logger,
	metrics *observability.Provider) *Service {
	if checksPerSecond <= 0 {
		checksPerSecond = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		evidence:  evidence,
		rulesRepo: rulesRepo,
		lifecycle: lm,
		checker:   checker,
		limiter:   rate.NewLimiter(rate.Limit(checksPerSecond), 1),
		sink:      sink,
		log:       log,
		metrics:   metrics,
		now:       time.Now,
	}
}

// SetThresholdOverrides replaces the per-hierarchy staleness threshold
// for specific source domains, as configured in the curation profile.
func (s *Service) SetThresholdOverrides(overrides map[string]float64) {
	s.thresholds = overrides
}

// thresholdFor resolves the staleness threshold for one evidence
// record: the domain override when configured, the hierarchy default
// otherwise.
func (s *Service) thresholdFor(ev *rules.Evidence) float64 {
	if u, err := url.Parse(ev.URL); err == nil {
		if t, ok := s.thresholds[u.Hostname()]; ok {
			return t
		}
	}
	return Threshold(ev.SourceHierarchy)
}

// Band returns the current staleness band of an evidence record: days
// since the last successful verification against the record's
// threshold.
func (s *Service) Band(ev *rules.Evidence, now time.Time) rules.StalenessStatus {
	verified := ev.LastVerifiedAt
	if verified.IsZero() {
		verified = ev.FetchedAt
	}
	days := now.Sub(verified).Hours() / 24
	return ComputeStatusAgainst(days, s.thresholdFor(ev), ev.HasChanged)
}

// VerifyEvidence probes one evidence URL and updates its verification
// state. On success the failure counter resets, lastVerifiedAt advances
// and the status is recomputed from age; a changed validator (ETag or
// Last-Modified) marks the content as changed. On failure only the
// attempt timestamp and the failure counter move: the evidence turns
// UNAVAILABLE, then EXPIRED at MaxConsecutiveFailures.
func (s *Service) VerifyEvidence(ctx context.Context, ev *rules.Evidence) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	now := s.now().UTC()
	res, err := s.checker.Check(ctx, ev.URL)
	ev.LastCheckedAt = now

	if err != nil {
		ev.ConsecutiveFailures++
		if ev.ConsecutiveFailures >= MaxConsecutiveFailures {
			ev.Staleness = rules.StalenessExpired
		} else {
			ev.Staleness = rules.StalenessUnavailable
		}
		if uerr := s.evidence.Update(ctx, ev); uerr != nil {
			return fmt.Errorf("staleness: persist failed check: %w", uerr)
		}
		s.log.WarnContext(ctx, "evidence check failed",
			"evidence_id", ev.ID, "url", ev.URL, "failures", ev.ConsecutiveFailures, "error", err)
		audit.Try(ctx, s.sink, s.log, "evidence.check_failed", "evidence", ev.ID, map[string]any{
			"failures": ev.ConsecutiveFailures,
			"status":   string(ev.Staleness),
		})
		if s.metrics != nil {
			s.metrics.EvidenceCheck(ctx, false)
		}
		return fmt.Errorf("staleness: %s: %w", ev.ID, err)
	}

	changed := validatorChanged(ev, res)
	ev.ConsecutiveFailures = 0
	ev.LastVerifiedAt = now
	if res.ETag != "" {
		ev.SourceEtag = res.ETag
	}
	if res.LastModified != "" {
		ev.SourceLastMod = res.LastModified
	}
	if changed {
		ev.HasChanged = true
	}
	ev.Staleness = s.Band(ev, now)

	if err := s.evidence.Update(ctx, ev); err != nil {
		return fmt.Errorf("staleness: persist check: %w", err)
	}
	audit.Try(ctx, s.sink, s.log, "evidence.verified", "evidence", ev.ID, map[string]any{
		"status":  string(ev.Staleness),
		"changed": changed,
	})
	if s.metrics != nil {
		s.metrics.EvidenceCheck(ctx, true)
	}
	return nil
}

// validatorChanged reports whether the source's cache validators moved
// since the last successful check. Absent validators prove nothing.
func validatorChanged(ev *rules.Evidence, res *CheckResult) bool {
	if res.ETag != "" && ev.SourceEtag != "" && res.ETag != ev.SourceEtag {
		return true
	}
	if res.LastModified != "" && ev.SourceLastMod != "" && res.LastModified != ev.SourceLastMod {
		return true
	}
	return false
}

// RunOnce verifies every evidence record whose check is due. Individual
// failures are counted, not fatal: one dead source must not stall the
// sweep.
func (s *Service) RunOnce(ctx context.Context) (checked, failed int, err error) {
	due, err := s.evidence.ListDue(ctx, s.now().UTC())
	if err != nil {
		return 0, 0, fmt.Errorf("staleness: list due evidence: %w", err)
	}
	for _, ev := range due {
		if ctx.Err() != nil {
			return checked, failed, ctx.Err()
		}
		checked++
		if err := s.VerifyEvidence(ctx, ev); err != nil {
			failed++
		}
	}
	s.log.InfoContext(ctx, "staleness sweep complete", "checked", checked, "failed", failed)
	return checked, failed, nil
}

// DeprecateExpiredRules moves PUBLISHED rules whose effective window has
// closed to DEPRECATED through the lifecycle manager, which emits the
// single audit event per rule. Per-rule failures are logged and the
// sweep continues.
func (s *Service) DeprecateExpiredRules(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.rulesRepo.PublishedExpired(ctx, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("staleness: list expired rules: %w", err)
	}
	deprecated := 0
	for _, r := range expired {
		if _, err := s.lifecycle.Transition(ctx, r.ID, rules.StatusDeprecated, "system/staleness"); err != nil {
			s.log.ErrorContext(ctx, "deprecation failed", "rule_id", r.ID, "error", err)
			continue
		}
		if s.metrics != nil {
			s.metrics.RuleDeprecated(ctx, r.ConceptSlug)
		}
		deprecated++
	}
	return deprecated, nil
}
