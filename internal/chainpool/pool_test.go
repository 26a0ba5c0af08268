package chainpool_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medashooter/gateway/internal/apperr"
	"github.com/medashooter/gateway/internal/chainpool"
)

// fakeClient is a minimal in-memory stand-in for *ethclient.Client, in the
// same spirit as the teacher's testutil.MemDB: no network, just enough
// behavior to drive the unit under test.
type fakeClient struct {
	name    string
	healthy bool
	closed  bool
}

func (f *fakeClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}
func (f *fakeClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}
func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	if !f.healthy {
		return 0, errors.New("node down")
	}
	return 100, nil
}
func (f *fakeClient) Close() { f.closed = true }

func dialerFor(clients map[string]*fakeClient) chainpool.Dialer {
	return func(ctx context.Context, url string) (chainpool.ChainClient, error) {
		c, ok := clients[url]
		if !ok {
			return nil, errors.New("no such endpoint")
		}
		return c, nil
	}
}

func TestAcquirePrefersFirstHealthyEndpoint(t *testing.T) {
	clients := map[string]*fakeClient{
		"a": {name: "a", healthy: true},
		"b": {name: "b", healthy: true},
	}
	p, err := chainpool.New(context.Background(), []string{"a", "b"}, dialerFor(clients), zap.NewNop().Sugar())
	require.NoError(t, err)

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, clients["a"], c)
}

func TestAcquireFailsOverOnUnhealthyEndpoint(t *testing.T) {
	clients := map[string]*fakeClient{
		"a": {name: "a", healthy: false},
		"b": {name: "b", healthy: true},
	}
	p, err := chainpool.New(context.Background(), []string{"a", "b"}, dialerFor(clients), zap.NewNop().Sugar(),
		chainpool.WithCooldown(time.Minute))
	require.NoError(t, err)

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, clients["b"], c)
}

func TestAcquireReturnsNoHealthyEndpointWhenAllDown(t *testing.T) {
	clients := map[string]*fakeClient{
		"a": {name: "a", healthy: false},
		"b": {name: "b", healthy: false},
	}
	p, err := chainpool.New(context.Background(), []string{"a", "b"}, dialerFor(clients), zap.NewNop().Sugar())
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.NoHealthyEndpoint))
}

func TestUnhealthyEndpointStaysQuarantinedDuringCooldown(t *testing.T) {
	a := &fakeClient{name: "a", healthy: false}
	b := &fakeClient{name: "b", healthy: true}
	clients := map[string]*fakeClient{"a": a, "b": b}
	p, err := chainpool.New(context.Background(), []string{"a", "b"}, dialerFor(clients), zap.NewNop().Sugar(),
		chainpool.WithCooldown(time.Hour))
	require.NoError(t, err)

	// First acquire quarantines "a".
	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, b, c)

	// Even if "a" becomes healthy, it should stay quarantined for the
	// cool-down duration.
	a.healthy = true
	c, err = p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, b, c)
}

