// Package audit bridges internal/events to the api_usage table: it
// subscribes to the pipeline events that matter for usage accounting and
// persists one row per call, off the request path. Grounded on the
// Subscribe/Emit shape of internal/events and on the teacher's
// consensus.PoA.Run ticker-loop convention for a bounded background worker.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/medashooter/gateway/internal/events"
	"github.com/medashooter/gateway/internal/storage/postgres"
)

// queueDepth bounds how many pending records can back up before the
// Subscriber starts dropping rather than blocking the emitting call site.
const queueDepth = 1024

type record struct {
	component string
	operation string
	succeeded bool
	duration  time.Duration
}

// Subscriber drains TypeChainCall, TypeIndexerCall, and TypeScoreProcessed
// events into postgres.UsageRepository. Construct with New, call Subscribe
// once against the shared Emitter, then Run in its own goroutine until ctx
// is cancelled.
type Subscriber struct {
	usage postgres.UsageRepository
	log   *zap.SugaredLogger
	queue chan record
}

// New constructs a Subscriber. usage is the repository rows are written
// to; a nil usage makes Subscribe a no-op, for deployments that don't
// carry an audit trail.
func New(usage postgres.UsageRepository, log *zap.SugaredLogger) *Subscriber {
	return &Subscriber{usage: usage, log: log, queue: make(chan record, queueDepth)}
}

// Subscribe registers the Subscriber's handlers on emitter. Call once
// during wiring, before any of the emitting components start making calls.
func (s *Subscriber) Subscribe(emitter *events.Emitter) {
	if s.usage == nil || emitter == nil {
		return
	}
	emitter.Subscribe(events.TypeChainCall, s.handleChainCall)
	emitter.Subscribe(events.TypeIndexerCall, s.handleIndexerCall)
	emitter.Subscribe(events.TypeScoreProcessed, s.handleScoreProcessed)
}

func (s *Subscriber) handleChainCall(ev events.Event) {
	method, _ := ev.Data["method"].(string)
	s.enqueue("chain_gateway", method, ev)
}

func (s *Subscriber) handleIndexerCall(ev events.Event) {
	endpoint, _ := ev.Data["endpoint"].(string)
	s.enqueue("portfolio_gateway", endpoint, ev)
}

func (s *Subscriber) handleScoreProcessed(ev events.Event) {
	s.enqueue("score_intake", "submit", ev)
}

// enqueue builds a record from ev and hands it to the background writer.
// A full queue drops the record rather than blocking the caller — the
// audit trail is best-effort, never a backpressure source for the
// pipelines it observes.
func (s *Subscriber) enqueue(component, operation string, ev events.Event) {
	succeeded, _ := ev.Data["success"].(bool)
	var duration time.Duration
	if ms, ok := ev.Data["duration_ms"].(int64); ok {
		duration = time.Duration(ms) * time.Millisecond
	}
	if operation == "submit" {
		succeeded, _ = ev.Data["validated"].(bool)
	}

	select {
	case s.queue <- record{component: component, operation: operation, succeeded: succeeded, duration: duration}:
	default:
		s.log.Warnw("api_usage audit queue full, dropping record", "component", component, "operation", operation)
	}
}

// Run drains the queue into the repository until ctx is cancelled. Call
// it in its own goroutine from cmd/server/main.go.
func (s *Subscriber) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-s.queue:
			if err := s.usage.Record(ctx, r.component, r.operation, r.succeeded, r.duration); err != nil {
				s.log.Warnw("failed to persist api_usage record", "component", r.component, "operation", r.operation, "error", err)
			}
		}
	}
}
