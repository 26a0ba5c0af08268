package chaingateway

import (
	"context"
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
	"github.com/medashooter/gateway/internal/events"
)

func testCacheTTLs() CacheTTLs {
	return CacheTTLs{
		Ownership:      5 * time.Minute,
		ERC1155Balance: 5 * time.Minute,
		ERC20Balance:   5 * time.Minute,
	}
}

func newTestGateway(t *testing.T, dial chainpool.Dialer) *Gateway {
	t.Helper()
	pool, err := chainpool.New(context.Background(), []string{"a"}, dial, zap.NewNop().Sugar())
	require.NoError(t, err)
	gw, err := New(pool, Addresses{
		Heroes:  "0x0000000000000000000000000000000000000001",
		Weapons: "0x0000000000000000000000000000000000000002",
	}, 3, testCacheTTLs(), 256, events.NewEmitter(zap.NewNop().Sugar()), zap.NewNop().Sugar())
	require.NoError(t, err)
	return gw
}

func TestNewRejectsMalformedAddress(t *testing.T) {
	pool, err := chainpool.New(context.Background(), []string{"a"}, noopDialer, zap.NewNop().Sugar())
	require.NoError(t, err)
	_, err = New(pool, Addresses{Heroes: "not-an-address", Weapons: "0x0000000000000000000000000000000000000002"},
		3, testCacheTTLs(), 256, events.NewEmitter(zap.NewNop().Sugar()), zap.NewNop().Sugar())
	require.Error(t, err)
}

func noopDialer(ctx context.Context, url string) (chainpool.ChainClient, error) {
	return &stubChainClient{}, nil
}

// stubChainClient implements chainpool.ChainClient by returning a
// fixed, ABI-encoded CallContract response, letting us exercise the
// Contract Gateway without a live node.
type stubChainClient struct {
	callContractOut []byte
	callContractErr error
}

func (s *stubChainClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return s.callContractOut, s.callContractErr
}
func (s *stubChainClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{1}, nil
}
func (s *stubChainClient) BlockNumber(ctx context.Context) (uint64, error) { return 1, nil }
func (s *stubChainClient) Close()                                         {}

func TestGetAttribsSubstitutesNeutralDefaultsOnMalformedResponse(t *testing.T) {
	// Truncated return data: too short for the three uint256 outputs
	// getAttribs declares, so ABI decoding itself fails.
	dial := func(ctx context.Context, url string) (chainpool.ChainClient, error) {
		return &encodedStubClient{out: []byte{0x01, 0x02, 0x03}}, nil
	}
	gw := newTestGateway(t, dial)

	a, b, c, err := gw.GetAttribs(context.Background(), KindHeroes, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), a)
	assert.Equal(t, uint64(50), b)
	assert.Equal(t, uint64(50), c)
}

func TestGetAttribsReturnsDecodedTripleOnWellFormedResponse(t *testing.T) {
	encoded, err := heroABI.Methods["getAttribs"].Outputs.Pack(big.NewInt(11), big.NewInt(22), big.NewInt(33))
	require.NoError(t, err)

	dial := func(ctx context.Context, url string) (chainpool.ChainClient, error) {
		return &encodedStubClient{out: encoded}, nil
	}
	gw := newTestGateway(t, dial)

	a, b, c, err := gw.GetAttribs(context.Background(), KindHeroes, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), a)
	assert.Equal(t, uint64(22), b)
	assert.Equal(t, uint64(33), c)
}

func TestCallRawDoesNotRetryRevert(t *testing.T) {
	// Count contract calls, not dials: the pool dials once at construction
	// and reuses that client for every retry attempt.
	attempts := 0
	dial := func(ctx context.Context, url string) (chainpool.ChainClient, error) {
		return &countingStubClient{encodedStubClient{err: assertRevertError{}}, &attempts}, nil
	}
	gw := newTestGateway(t, dial)

	_, err := gw.ERC20BalanceOf(context.Background(), "0x0000000000000000000000000000000000000003",
		"0x0000000000000000000000000000000000000004")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ContractCallFailed))
	assert.Equal(t, 1, attempts)
}

func TestOwnedTokenIdsServesFromHotCacheWithinTTL(t *testing.T) {
	encoded, err := heroABI.Methods["tokensOfOwner"].Outputs.Pack([]*big.Int{big.NewInt(101)})
	require.NoError(t, err)

	calls := 0
	dial := func(ctx context.Context, url string) (chainpool.ChainClient, error) {
		return &countingStubClient{encodedStubClient{out: encoded}, &calls}, nil
	}
	gw := newTestGateway(t, dial)
	owner := "0x0000000000000000000000000000000000000009"

	first, err := gw.OwnedTokenIds(context.Background(), KindHeroes, owner)
	require.NoError(t, err)
	assert.Equal(t, []uint64{101}, first)
	assert.Equal(t, 1, calls)

	second, err := gw.OwnedTokenIds(context.Background(), KindHeroes, owner)
	require.NoError(t, err)
	assert.Equal(t, []uint64{101}, second, "second call within the TTL must be served from the Hot Cache")
	assert.Equal(t, 1, calls, "a cache hit must not reach the chain")

	gw.Purge(owner)
	_, err = gw.OwnedTokenIds(context.Background(), KindHeroes, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "Purge must force the next call back to the chain")
}

// countingStubClient wraps encodedStubClient and counts CallContract
// invocations, so cache-hit behavior can be asserted directly.
type countingStubClient struct {
	encodedStubClient
	calls *int
}

func (s *countingStubClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	*s.calls++
	return s.encodedStubClient.CallContract(ctx, call, blockNumber)
}

type assertRevertError struct{}

func (assertRevertError) Error() string { return "execution reverted: insufficient balance" }

// encodedStubClient returns a fixed ABI-encoded payload from CallContract,
// simulating a real eth_call response without a live node.
type encodedStubClient struct {
	out []byte
	err error
}

func (s *encodedStubClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}
func (s *encodedStubClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{1}, nil
}
func (s *encodedStubClient) BlockNumber(ctx context.Context) (uint64, error) { return 1, nil }
func (s *encodedStubClient) Close()                                         {}
