package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medashooter/gateway/internal/events"
)

type fakeUsageRepo struct {
	mu      sync.Mutex
	records []record
}

func (f *fakeUsageRepo) Record(ctx context.Context, component, operation string, succeeded bool, duration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record{component: component, operation: operation, succeeded: succeeded, duration: duration})
	return nil
}

func (f *fakeUsageRepo) snapshot() []record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]record, len(f.records))
	copy(out, f.records)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "condition never became true")
}

func TestSubscriberPersistsChainAndIndexerAndScoreEvents(t *testing.T) {
	repo := &fakeUsageRepo{}
	sub := New(repo, zap.NewNop().Sugar())
	emitter := events.NewEmitter(zap.NewNop().Sugar())
	sub.Subscribe(emitter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx)

	emitter.Emit(events.Event{Type: events.TypeChainCall, Data: map[string]any{
		"method": "ownedTokenIds", "duration_ms": int64(12), "success": true,
	}})
	emitter.Emit(events.Event{Type: events.TypeIndexerCall, Data: map[string]any{
		"endpoint": "/api/v1/wallets/0xabc/erc20", "duration_ms": int64(34), "success": false, "error": "timeout",
	}})
	emitter.Emit(events.Event{Type: events.TypeScoreProcessed, Data: map[string]any{
		"player_address": "0xplayer", "calculated_score": uint32(7), "validated": true,
	}})

	waitFor(t, func() bool { return len(repo.snapshot()) == 3 })

	got := repo.snapshot()
	assert.Equal(t, "chain_gateway", got[0].component)
	assert.Equal(t, "ownedTokenIds", got[0].operation)
	assert.True(t, got[0].succeeded)
	assert.Equal(t, 12*time.Millisecond, got[0].duration)

	assert.Equal(t, "portfolio_gateway", got[1].component)
	assert.False(t, got[1].succeeded)

	assert.Equal(t, "score_intake", got[2].component)
	assert.True(t, got[2].succeeded, "validated=true maps to succeeded=true")
}

func TestSubscriberDropsRecordsWhenQueueIsFull(t *testing.T) {
	repo := &fakeUsageRepo{}
	sub := New(repo, zap.NewNop().Sugar())
	emitter := events.NewEmitter(zap.NewNop().Sugar())
	sub.Subscribe(emitter)
	// Deliberately never call Run: the queue fills and subsequent emits
	// must not block the caller.
	for i := 0; i < queueDepth+10; i++ {
		emitter.Emit(events.Event{Type: events.TypeChainCall, Data: map[string]any{
			"method": "ownedTokenIds", "duration_ms": int64(1), "success": true,
		}})
	}
	assert.LessOrEqual(t, len(sub.queue), queueDepth)
}

func TestSubscribeIsNoOpWithoutUsageRepository(t *testing.T) {
	sub := New(nil, zap.NewNop().Sugar())
	emitter := events.NewEmitter(zap.NewNop().Sugar())
	sub.Subscribe(emitter)
	// Should not panic even though no repository is wired.
	emitter.Emit(events.Event{Type: events.TypeChainCall, Data: map[string]any{"success": true}})
}
