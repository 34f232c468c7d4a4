// Package audit records every state-changing action of the curation
// pipeline as an append-only event stream. The core only writes to the
// sink; it never reads its own audit trail back.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexhr/curator/pkg/rules"
)

// Sink receives audit events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Record(ctx context.Context, action, entityType, entityID string, metadata map[string]any) error
}

// writerSink writes structured JSON lines to a configurable writer.
type writerSink struct {
	mu     sync.Mutex
	writer io.Writer
	clock  func() time.Time
}

// NewWriterSink creates a sink writing one JSON event per line. A nil
// writer defaults to stdout.
func NewWriterSink(w io.Writer) Sink {
	if w == nil {
		w = os.Stdout
	}
	return &writerSink{writer: w, clock: time.Now}
}

func (s *writerSink) Record(ctx context.Context, action, entityType, entityID string, metadata map[string]any) error {
	event := rules.AuditEvent{
		ID:         uuid.New().String(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   metadata,
		Timestamp:  s.clock().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Prefix with AUDIT: for easy filtering in combined log streams.
	_, err = s.writer.Write(append([]byte("AUDIT: "), append(b, '\n')...))
	return err
}

// Try records an event and downgrades failures to a log line. Audit is
// fire-and-forget for the pipeline; a broken sink must not fail a
// curation operation.
func Try(ctx context.Context, sink Sink, log *slog.Logger, action, entityType, entityID string, metadata map[string]any) {
	if sink == nil {
		return
	}
	if err := sink.Record(ctx, action, entityType, entityID, metadata); err != nil && log != nil {
		log.WarnContext(ctx, "audit sink failed",
			"action", action, "entity_type", entityType, "entity_id", entityID, "error", err)
	}
}

// Recorder is an in-memory sink for tests.
type Recorder struct {
	mu     sync.Mutex
	events []rules.AuditEvent
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(ctx context.Context, action, entityType, entityID string, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, rules.AuditEvent{
		ID:         uuid.New().String(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   metadata,
		Timestamp:  time.Now().UTC(),
	})
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []rules.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]rules.AuditEvent(nil), r.events...)
}

// ByAction returns recorded events matching action.
func (r *Recorder) ByAction(action string) []rules.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []rules.AuditEvent
	for _, e := range r.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
