// Package events is a small in-process pub/sub broker used to decouple the
// core pipelines (Contract Gateway, Portfolio Gateway, Enrichment Engine,
// Score Intake) from the things that react to their outcomes (the api_usage
// audit log) without wiring every reactor into every pipeline's
// constructor.
package events

import (
	"sync"

	"go.uber.org/zap"
)

// Type labels what happened.
type Type string

const (
	// TypeChainCall fires after every outbound RPC Pool / Contract Gateway
	// call, successful or not, for the api_usage audit log.
	TypeChainCall Type = "chain_call"
	// TypeIndexerCall fires after every outbound Portfolio Gateway call.
	TypeIndexerCall Type = "indexer_call"
	// TypeTokenCacheMiss fires once per missing id resolved by the
	// Enrichment Engine, before the persistent-cache upsert.
	TypeTokenCacheMiss Type = "token_cache_miss"
	// TypeScoreProcessed fires once a submission has been persisted,
	// validated or not.
	TypeScoreProcessed Type = "score_processed"
)

// Event carries a typed payload emitted after some pipeline step completes.
type Event struct {
	Type Type
	Data map[string]any
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	log      *zap.SugaredLogger
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter(log *zap.SugaredLogger) *Emitter {
	return &Emitter{log: log, handlers: make(map[Type][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ Type, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously. Each
// handler is guarded by panic recovery so a panicking subscriber cannot
// take down the request path that emitted it; a slow handler still delays
// the emitting caller.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		e.safeCall(h, ev)
	}
}

func (e *Emitter) safeCall(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil && e.log != nil {
			e.log.Errorw("event handler panicked", "type", ev.Type, "recover", r)
		}
	}()
	h(ev)
}
