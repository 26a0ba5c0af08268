// Package chaingateway is the typed Contract Gateway of spec.md §4.2: a
// thin wrapper over the RPC Pool that validates addresses once at the
// boundary, retries transport/node errors with endpoint rotation, and
// surfaces contract reverts immediately without retrying them. Grounded on
// accounts/abi/bind/backends/simulated.go's bind.ContractCaller convention
// (in the retrieved pack) for how a Go service calls into an ABI-bound
// contract, and on rpc/handler.go (teacher) for the validate-params-then-
// dispatch shape of each public operation.
package chaingateway

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/medashooter/gateway/internal/apperr"
	"github.com/medashooter/gateway/internal/cachekey"
	"github.com/medashooter/gateway/internal/chainpool"
	"github.com/medashooter/gateway/internal/events"
	"github.com/medashooter/gateway/internal/hotcache"
)

// Kind identifies which NFT contract family a call targets.
type Kind string

const (
	KindHeroes  Kind = "heroes"
	KindWeapons Kind = "weapons"
)

// neutral default attribute triples for malformed contract responses,
// per spec.md §4.2 and the Design Notes sign-off flag in §9: this is kept
// as intentional graceful degradation, not silently swallowed — callers
// always also get a soft-warning log line.
var neutralDefaults = map[Kind][3]uint64{
	KindHeroes:  {50, 50, 50},
	KindWeapons: {60, 60, 60},
}

// TokenInfo is the decoded getTokenInfo() record. Only the fields relevant
// to kind are populated; the others are zero.
type TokenInfo struct {
	SeasonCardID  uint64 // heroes
	WeaponTier    uint64 // weapons
	WeaponType    uint64 // weapons
	WeaponSubtype uint64 // weapons
	Category      uint64 // weapons
	SerialNumber  uint64 // both
}

// Gateway is the Contract Gateway. Construct with New.
type Gateway struct {
	pool      *chainpool.Pool
	addresses map[Kind]common.Address
	retries   int
	emitter   *events.Emitter
	log       *zap.SugaredLogger

	// Hot Cache read-through for the three volatile query classes of
	// spec.md §4.3 that live at this layer (ownership, ERC-1155 balance,
	// ERC-20 balance). Attribute/info queries are not cached here — they
	// are immutable and already held indefinitely by the Persistent
	// Token Cache, so a second TTL layer over the same data would just
	// add staleness without saving a call (see DESIGN.md).
	ownershipCache *hotcache.Cache[[]uint64]
	erc1155Cache   *hotcache.Cache[[]uint64]
	erc20Cache     *hotcache.Cache[*big.Int]
}

// Addresses holds the deployed hero and weapon contract addresses on the
// configured chain. ERC-1155 and ERC-20 contract addresses are not held
// here; those calls take the contract address as an argument.
type Addresses struct {
	Heroes  string
	Weapons string
}

// CacheTTLs carries the three Hot Cache TTLs the Contract Gateway owns,
// sourced from config.CacheTTLs so the gateway itself stays free of a
// dependency on the config package.
type CacheTTLs struct {
	Ownership      time.Duration
	ERC1155Balance time.Duration
	ERC20Balance   time.Duration
}

// New creates a Gateway. retries is R from spec.md §4.2 (>= 2). emitter
// receives a TypeChainCall event after every outbound call, for the
// api_usage audit log; pass nil to disable auditing. cacheSize bounds
// each of the three Hot Cache instances independently.
func New(pool *chainpool.Pool, addrs Addresses, retries int, ttls CacheTTLs, cacheSize int,
	emitter *events.Emitter, log *zap.SugaredLogger) (*Gateway, error) {
	heroes, err := parseAddress(addrs.Heroes)
	if err != nil {
		return nil, fmt.Errorf("heroes contract address: %w", err)
	}
	weapons, err := parseAddress(addrs.Weapons)
	if err != nil {
		return nil, fmt.Errorf("weapons contract address: %w", err)
	}
	return &Gateway{
		pool: pool,
		addresses: map[Kind]common.Address{
			KindHeroes:  heroes,
			KindWeapons: weapons,
		},
		retries:        retries,
		emitter:        emitter,
		log:            log,
		ownershipCache: hotcache.New[[]uint64](cacheSize, ttls.Ownership),
		erc1155Cache:   hotcache.New[[]uint64](cacheSize, ttls.ERC1155Balance),
		erc20Cache:     hotcache.New[*big.Int](cacheSize, ttls.ERC20Balance),
	}, nil
}

// parseAddress validates a wallet/contract address exactly once at the
// entry point, per spec.md §4.2; downstream code works only with
// common.Address values.
func parseAddress(addr string) (common.Address, error) {
	if !common.IsHexAddress(addr) {
		return common.Address{}, apperr.New(apperr.InvalidAddress, fmt.Sprintf("not a well-formed address: %q", addr))
	}
	return common.HexToAddress(addr), nil
}

// OwnedTokenIds returns the ordered set of token ids owner currently holds
// for kind. Never stored in the Persistent Token Cache, since ownership
// changes — instead fronted by the Hot Cache's ~5 minute ownership TTL
// (spec.md §4.3); an explicit Purge makes the next call authoritative
// again immediately.
func (g *Gateway) OwnedTokenIds(ctx context.Context, kind Kind, owner string) ([]uint64, error) {
	ownerAddr, err := parseAddress(owner)
	if err != nil {
		return nil, err
	}

	key := cachekey.Of(ownerAddr.Hex(), "OwnedTokenIds", kind)
	if cached, ok := g.ownershipCache.Get(key); ok {
		return cached, nil
	}

	var out []*big.Int
	if err := g.call(ctx, kind, "tokensOfOwner", &out, ownerAddr); err != nil {
		return nil, err
	}
	ids := make([]uint64, len(out))
	for i, b := range out {
		ids[i] = b.Uint64()
	}
	g.ownershipCache.Set(key, ids)
	return ids, nil
}

// GetAttribs returns the (a,b,c) attribute triple for id. heroes →
// (sec,ano,inn); weapons → (security,anonymity,innovation). A short or
// malformed tuple degrades to the kind's neutral default and a soft
// warning rather than failing the call.
func (g *Gateway) GetAttribs(ctx context.Context, kind Kind, id uint64) (a, b, c uint64, err error) {
	// Pre-sized: the abi package copies a multi-output tuple element by
	// element into an existing slice and rejects one that is too short.
	out := make([]*big.Int, 3)
	callErr := g.call(ctx, kind, "getAttribs", &out, new(big.Int).SetUint64(id))
	if callErr != nil {
		if isMalformedResponse(callErr) {
			d := neutralDefaults[kind]
			g.log.Warnw("malformed getAttribs response, substituting neutral defaults",
				"kind", kind, "id", id, "error", callErr)
			return d[0], d[1], d[2], nil
		}
		return 0, 0, 0, callErr
	}
	if len(out) != 3 {
		d := neutralDefaults[kind]
		g.log.Warnw("short getAttribs response, substituting neutral defaults",
			"kind", kind, "id", id, "got_len", len(out))
		return d[0], d[1], d[2], nil
	}
	return out[0].Uint64(), out[1].Uint64(), out[2].Uint64(), nil
}

// isMalformedResponse reports whether err came from decoding a
// structurally invalid ABI response (wrong tuple shape, truncated
// return data) rather than from a revert or a transport/node failure.
// Retrying a malformed response is pointless — the contract's ABI
// doesn't change between attempts — so GetAttribs treats it as a soft
// failure with neutral defaults instead of propagating it.
func isMalformedResponse(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "abi:") || strings.Contains(msg, "unpack")
}

// GetTokenInfo returns the decoded info record for id.
func (g *Gateway) GetTokenInfo(ctx context.Context, kind Kind, id uint64) (TokenInfo, error) {
	n := 2
	if kind == KindWeapons {
		n = 5
	}
	out := make([]*big.Int, n)
	if err := g.call(ctx, kind, "getTokenInfo", &out, new(big.Int).SetUint64(id)); err != nil {
		return TokenInfo{}, err
	}
	switch kind {
	case KindHeroes:
		if len(out) != 2 {
			return TokenInfo{}, apperr.New(apperr.ContractCallFailed,
				fmt.Sprintf("getTokenInfo(heroes, %d): expected 2 outputs, got %d", id, len(out)))
		}
		return TokenInfo{SeasonCardID: out[0].Uint64(), SerialNumber: out[1].Uint64()}, nil
	case KindWeapons:
		if len(out) != 5 {
			return TokenInfo{}, apperr.New(apperr.ContractCallFailed,
				fmt.Sprintf("getTokenInfo(weapons, %d): expected 5 outputs, got %d", id, len(out)))
		}
		return TokenInfo{
			WeaponTier:    out[0].Uint64(),
			WeaponType:    out[1].Uint64(),
			WeaponSubtype: out[2].Uint64(),
			Category:      out[3].Uint64(),
			SerialNumber:  out[4].Uint64(),
		}, nil
	default:
		return TokenInfo{}, apperr.New(apperr.InvalidParameter, fmt.Sprintf("unknown kind %q", kind))
	}
}

// ERC1155BalanceOfBatch returns the parallel balance array for owner over
// ids on the ERC-1155 contract at contractAddr (the land-ticket contract).
// Fronted by the Hot Cache's ~5 minute ERC-1155 balance TTL (spec.md §4.3).
func (g *Gateway) ERC1155BalanceOfBatch(ctx context.Context, contractAddr, owner string, ids []uint64) ([]uint64, error) {
	contract, err := parseAddress(contractAddr)
	if err != nil {
		return nil, err
	}
	ownerAddr, err := parseAddress(owner)
	if err != nil {
		return nil, err
	}

	key := cachekey.Of(ownerAddr.Hex(), "ERC1155BalanceOfBatch", contract.Hex(), ids)
	if cached, ok := g.erc1155Cache.Get(key); ok {
		return cached, nil
	}

	owners := make([]common.Address, len(ids))
	bigIds := make([]*big.Int, len(ids))
	for i, id := range ids {
		owners[i] = ownerAddr
		bigIds[i] = new(big.Int).SetUint64(id)
	}

	var out []*big.Int
	if err := g.callRaw(ctx, contract, erc1155ABI, "balanceOfBatch", &out, owners, bigIds); err != nil {
		return nil, err
	}
	balances := make([]uint64, len(out))
	for i, b := range out {
		balances[i] = b.Uint64()
	}
	g.erc1155Cache.Set(key, balances)
	return balances, nil
}

// ERC20BalanceOf returns owner's balance of the ERC-20 token at tokenAddr.
// Fronted by the Hot Cache's ~5 minute ERC-20 balance TTL (spec.md §4.3).
func (g *Gateway) ERC20BalanceOf(ctx context.Context, tokenAddr, owner string) (*big.Int, error) {
	token, err := parseAddress(tokenAddr)
	if err != nil {
		return nil, err
	}
	ownerAddr, err := parseAddress(owner)
	if err != nil {
		return nil, err
	}

	key := cachekey.Of(ownerAddr.Hex(), "ERC20BalanceOf", token.Hex())
	if cached, ok := g.erc20Cache.Get(key); ok {
		return cached, nil
	}

	var out *big.Int
	if err := g.callRaw(ctx, token, erc20ABI, "balanceOf", &out, ownerAddr); err != nil {
		return nil, err
	}
	g.erc20Cache.Set(key, out)
	return out, nil
}

// Purge evicts every Hot Cache entry keyed to wallet across the ownership,
// ERC-1155 balance, and ERC-20 balance caches. Intended to be wired into
// portfolio.Provider's purgeRelated hook so a forced Refresh also forces
// this layer to go back to the chain on the next call.
func (g *Gateway) Purge(wallet string) {
	addr, err := parseAddress(wallet)
	if err != nil {
		return
	}
	prefix := addr.Hex()
	g.ownershipCache.Purge(prefix)
	g.erc1155Cache.Purge(prefix)
	g.erc20Cache.Purge(prefix)
}

func (g *Gateway) call(ctx context.Context, kind Kind, method string, out any, args ...any) error {
	parsedABI := heroABI
	if kind == KindWeapons {
		parsedABI = weaponABI
	}
	return g.callRaw(ctx, g.addresses[kind], parsedABI, method, out, args...)
}

// callRaw performs one bound-contract read call, retrying transport/node
// errors up to g.retries times across Pool-rotated endpoints. Contract
// reverts are detected and returned immediately, never retried, per
// spec.md §4.2.
func (g *Gateway) callRaw(ctx context.Context, contract common.Address, parsedABI abi.ABI, method string, out any, args ...any) error {
	started := time.Now()
	err := g.callRawOnce(ctx, contract, parsedABI, method, out, args...)
	g.emitChainCall(method, contract, time.Since(started), err)
	return err
}

func (g *Gateway) callRawOnce(ctx context.Context, contract common.Address, parsedABI abi.ABI, method string, out any, args ...any) error {
	var lastErr error
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(50*time.Millisecond),
		backoff.WithMaxInterval(500*time.Millisecond),
	), uint64(maxInt(g.retries-1, 0)))

	op := func() error {
		client, err := g.pool.Acquire(ctx)
		if err != nil {
			lastErr = err
			return err // NoHealthyEndpoint is itself terminal-ish but let backoff exhaust retries
		}
		bound := bind.NewBoundContract(contract, parsedABI, client, nil, nil)
		results := []any{out}
		callErr := bound.Call(&bind.CallOpts{Context: ctx}, &results, method, args...)
		if callErr == nil {
			return nil
		}
		if isRevert(callErr) {
			lastErr = apperr.Wrap(apperr.ContractCallFailed, fmt.Sprintf("%s reverted", method), callErr)
			return backoff.Permanent(lastErr)
		}
		lastErr = callErr
		return callErr
	}

	if err := backoff.Retry(op, b); err != nil {
		if apperr.Is(err, apperr.ContractCallFailed) {
			return err
		}
		return apperr.Wrap(apperr.ContractCallFailed, fmt.Sprintf("%s failed after retries", method), lastErr)
	}
	return nil
}

// emitChainCall publishes the outcome of one outbound call for the
// api_usage audit log. Nil-safe: a Gateway built without an emitter (e.g.
// in tests) simply doesn't audit.
func (g *Gateway) emitChainCall(method string, contract common.Address, dur time.Duration, err error) {
	if g.emitter == nil {
		return
	}
	data := map[string]any{
		"method":      method,
		"contract":    contract.Hex(),
		"duration_ms": dur.Milliseconds(),
		"success":     err == nil,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	g.emitter.Emit(events.Event{Type: events.TypeChainCall, Data: data})
}

// isRevert reports whether err represents an on-chain contract revert
// rather than a transport/node failure. Reverts are deterministic given
// the current chain state — retrying them would never change the
// outcome, so the gateway surfaces them immediately (spec.md §4.2).
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
