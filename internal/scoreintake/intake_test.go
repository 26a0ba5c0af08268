package scoreintake

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medashooter/gateway/internal/events"
	"github.com/medashooter/gateway/internal/storage/postgres"
)

type fakeScoreRepo struct {
	mu          sync.Mutex
	blacklisted map[string]bool
	persisted   []postgres.ScoreSubmissionProcessed
}

func newFakeScoreRepo() *fakeScoreRepo {
	return &fakeScoreRepo{blacklisted: map[string]bool{}}
}

func (f *fakeScoreRepo) PersistSubmission(ctx context.Context, raw postgres.ScoreSubmissionRaw, processed postgres.ScoreSubmissionProcessed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persisted = append(f.persisted, processed)
	return nil
}

func (f *fakeScoreRepo) IsBlacklisted(ctx context.Context, playerAddress string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blacklisted[playerAddress], nil
}

func (f *fakeScoreRepo) PlayerStats(ctx context.Context, playerAddress string) (*postgres.PlayerStats, error) {
	return nil, nil
}

var _ postgres.ScoreRepository = (*fakeScoreRepo)(nil)

func buildEnvelope(t *testing.T, keys *Keys, score int64, address string, duration, spawned, killed int64) Envelope {
	t.Helper()
	return Envelope{
		Hash:        encryptInt(t, keys.Score, score),
		Address:     encryptString(t, keys.Score, address),
		Delta:       encryptInt(t, keys.Info, duration),
		Parameter1:  encryptInt(t, keys.Info, spawned),
		Parameter2:  encryptInt(t, keys.Info, killed),
		Parameter3:  encryptInt(t, keys.Info, 1),
		Parameter4:  encryptInt(t, keys.Info, 100),
		Parameter5:  encryptInt(t, keys.Info, 1),
		Parameter6:  encryptInt(t, keys.Info, 1),
		Parameter7:  encryptInt(t, keys.Info, 0),
		Parameter8:  encryptInt(t, keys.Info, 1),
		Parameter9:  encryptInt(t, keys.Info, 0),
		Parameter10: encryptInt(t, keys.Info, 1),
		Parameter11: encryptInt(t, keys.Info, 100),
		Parameter12: encryptInt(t, keys.Info, 10),
		Parameter13: encryptInt(t, keys.Info, 10),
		Parameter14: encryptInt(t, keys.Info, 0),
		Parameter15: encryptInt(t, keys.Info, 0),
	}
}

func TestSubmitPersistsValidatedSubmissionWithRecomputedScore(t *testing.T) {
	keys := &Keys{Score: generateTestKey(t), Info: generateTestKey(t)}
	repo := newFakeScoreRepo()
	p := NewProcessor(keys, repo, nil, events.NewEmitter(zap.NewNop().Sugar()), zap.NewNop().Sugar())

	env := buildEnvelope(t, keys, 1, "0xPLAYER", 120, 40, 35)
	result, err := p.Submit(context.Background(), env, []byte(`{}`))
	require.NoError(t, err)

	assert.True(t, result.Validated)
	assert.Equal(t, hash32(1), result.CalculatedScore)
	require.Len(t, repo.persisted, 1)
	assert.Equal(t, "0xplayer", repo.persisted[0].PlayerAddress)
	assert.True(t, repo.persisted[0].Validated)
}

func TestSubmitPersistsBlacklistedPlayerAsUnvalidated(t *testing.T) {
	keys := &Keys{Score: generateTestKey(t), Info: generateTestKey(t)}
	repo := newFakeScoreRepo()
	repo.blacklisted["0xbanned"] = true
	p := NewProcessor(keys, repo, nil, events.NewEmitter(zap.NewNop().Sugar()), zap.NewNop().Sugar())

	env := buildEnvelope(t, keys, 1, "0xBANNED", 120, 40, 35)
	result, err := p.Submit(context.Background(), env, []byte(`{}`))
	require.NoError(t, err, "a blacklisted submission is accepted and marked invalid, not rejected")

	assert.False(t, result.Validated)
	require.Len(t, repo.persisted, 1, "a blacklisted submission must still be persisted for offline review")
	assert.False(t, repo.persisted[0].Validated)
}

type fakeBoostLookup struct {
	snapshot []byte
	err      error
}

func (f *fakeBoostLookup) BoostSnapshotJSON(ctx context.Context, wallet string) ([]byte, error) {
	return f.snapshot, f.err
}

func TestSubmitPersistsNFTBoostSnapshotWhenLookupSucceeds(t *testing.T) {
	keys := &Keys{Score: generateTestKey(t), Info: generateTestKey(t)}
	repo := newFakeScoreRepo()
	boosts := &fakeBoostLookup{snapshot: []byte(`{"hero_nfts":3}`)}
	p := NewProcessor(keys, repo, boosts, events.NewEmitter(zap.NewNop().Sugar()), zap.NewNop().Sugar())

	env := buildEnvelope(t, keys, 1, "0xPLAYER", 120, 40, 35)
	_, err := p.Submit(context.Background(), env, []byte(`{}`))
	require.NoError(t, err)

	require.Len(t, repo.persisted, 1)
	assert.JSONEq(t, `{"hero_nfts":3}`, string(repo.persisted[0].NFTBoostSnapshot))
}

func TestSubmitPersistsWithoutSnapshotWhenBoostLookupFails(t *testing.T) {
	keys := &Keys{Score: generateTestKey(t), Info: generateTestKey(t)}
	repo := newFakeScoreRepo()
	boosts := &fakeBoostLookup{err: assert.AnError}
	p := NewProcessor(keys, repo, boosts, events.NewEmitter(zap.NewNop().Sugar()), zap.NewNop().Sugar())

	env := buildEnvelope(t, keys, 1, "0xPLAYER", 120, 40, 35)
	_, err := p.Submit(context.Background(), env, []byte(`{}`))
	require.NoError(t, err, "a boost snapshot failure must not block the submission")

	require.Len(t, repo.persisted, 1)
	assert.Nil(t, repo.persisted[0].NFTBoostSnapshot)
}

func TestSubmitPersistsRuleFailureAsUnvalidatedForOfflineReview(t *testing.T) {
	keys := &Keys{Score: generateTestKey(t), Info: generateTestKey(t)}
	repo := newFakeScoreRepo()
	p := NewProcessor(keys, repo, nil, events.NewEmitter(zap.NewNop().Sugar()), zap.NewNop().Sugar())

	// enemies_killed (35) > enemies_spawned (10) violates the rule check.
	env := buildEnvelope(t, keys, 1, "0xPLAYER", 120, 10, 35)
	result, err := p.Submit(context.Background(), env, []byte(`{}`))
	require.NoError(t, err, "rule-level failures persist rather than reject")

	assert.False(t, result.Validated)
	require.Len(t, repo.persisted, 1)
	assert.False(t, repo.persisted[0].Validated)
}
