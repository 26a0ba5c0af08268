// Package chainpool implements the RPC Pool of spec.md §4.1: given an
// ordered list of chain endpoints, Acquire returns a currently-responsive
// client. Endpoints are tried in order with no sticky affinity; a failure
// marks the endpoint unhealthy for a cool-down. Generalizes the teacher's
// network.Node peer map (per-peer health, TCP dial, cool-down-free retry)
// from TCP gossip peers to JSON-RPC chain endpoints, using atomic
// loads and stores on each endpoint's health state instead of the node-wide
// mutex the teacher uses for its peer map, since endpoints never change
// after startup.
package chainpool

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/medashooter/gateway/internal/apperr"
)

// ChainClient is the subset of *ethclient.Client the gateway needs: enough
// to satisfy bind.ContractCaller for read-only contract calls, plus a
// cheap liveness probe.
type ChainClient interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// Dialer opens a ChainClient for a given endpoint URL. Production code uses
// ethclient.DialContext; tests supply a fake.
type Dialer func(ctx context.Context, url string) (ChainClient, error)

type endpointState struct {
	url    string
	client ChainClient

	// healthy, lastProbeUnixNano and cooldownUntilUnixNano are read and
	// written with atomic loads and stores; no lock is held across the
	// network probe.
	healthy               atomic.Bool
	lastProbeUnixNano     atomic.Int64
	cooldownUntilUnixNano atomic.Int64
}

// Pool holds N chain endpoints and hands out a currently-responsive client.
type Pool struct {
	endpoints  []*endpointState
	dial       Dialer
	freshness  time.Duration // how long a successful probe is trusted without re-probing
	cooldown   time.Duration // how long a failed endpoint is skipped
	probeLimit time.Duration // timeout for the liveness probe itself
	log        *zap.SugaredLogger
}

// Option configures a Pool.
type Option func(*Pool)

// WithFreshness overrides the default probe-freshness window.
func WithFreshness(d time.Duration) Option { return func(p *Pool) { p.freshness = d } }

// WithCooldown overrides the default unhealthy cool-down.
func WithCooldown(d time.Duration) Option { return func(p *Pool) { p.cooldown = d } }

// New creates a Pool over urls, dialing each endpoint eagerly but not
// probing it; the first Acquire call probes whichever endpoints are stale.
func New(ctx context.Context, urls []string, dial Dialer, log *zap.SugaredLogger, opts ...Option) (*Pool, error) {
	if len(urls) == 0 {
		return nil, apperr.New(apperr.NoHealthyEndpoint, "no chain endpoints configured")
	}
	p := &Pool{
		dial:       dial,
		freshness:  30 * time.Second,
		cooldown:   60 * time.Second,
		probeLimit: 3 * time.Second,
		log:        log,
	}
	for _, o := range opts {
		o(p)
	}
	for _, u := range urls {
		client, err := dial(ctx, u)
		if err != nil {
			// A dead endpoint at startup still counts as a pool member;
			// it just starts in cool-down and is skipped until it heals.
			p.log.Warnw("chain endpoint unreachable at startup", "url", u, "error", err)
			es := &endpointState{url: u}
			es.cooldownUntilUnixNano.Store(time.Now().Add(p.cooldown).UnixNano())
			p.endpoints = append(p.endpoints, es)
			continue
		}
		es := &endpointState{url: u, client: client}
		p.endpoints = append(p.endpoints, es)
	}
	return p, nil
}

// Acquire returns the first endpoint whose most recent probe succeeded
// within the freshness window, probing lazily as needed. Endpoints are
// tried in declaration order with no sticky affinity between calls.
func (p *Pool) Acquire(ctx context.Context) (ChainClient, error) {
	now := time.Now()
	var lastErr error
	for _, es := range p.endpoints {
		if es.client == nil {
			if now.UnixNano() < es.cooldownUntilUnixNano.Load() {
				continue
			}
			client, err := p.dial(ctx, es.url)
			if err != nil {
				lastErr = err
				es.cooldownUntilUnixNano.Store(now.Add(p.cooldown).UnixNano())
				continue
			}
			es.client = client
		}

		if now.UnixNano() < es.cooldownUntilUnixNano.Load() {
			continue
		}

		if es.healthy.Load() && now.Sub(time.Unix(0, es.lastProbeUnixNano.Load())) < p.freshness {
			return es.client, nil
		}

		if err := p.probe(ctx, es); err != nil {
			lastErr = err
			p.log.Warnw("chain endpoint probe failed, entering cool-down", "url", es.url, "error", err)
			es.healthy.Store(false)
			es.cooldownUntilUnixNano.Store(now.Add(p.cooldown).UnixNano())
			continue
		}
		return es.client, nil
	}
	if lastErr != nil {
		return nil, apperr.Wrap(apperr.NoHealthyEndpoint, "no chain endpoint is healthy", lastErr)
	}
	return nil, apperr.New(apperr.NoHealthyEndpoint, "no chain endpoint is healthy")
}

func (p *Pool) probe(ctx context.Context, es *endpointState) error {
	ctx, cancel := context.WithTimeout(ctx, p.probeLimit)
	defer cancel()
	if _, err := es.client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("probe %s: %w", es.url, err)
	}
	es.healthy.Store(true)
	es.lastProbeUnixNano.Store(time.Now().UnixNano())
	return nil
}

// Close releases every endpoint's underlying connection.
func (p *Pool) Close() {
	for _, es := range p.endpoints {
		if es.client != nil {
			es.client.Close()
		}
	}
}

// Len returns the number of configured endpoints (healthy or not).
func (p *Pool) Len() int { return len(p.endpoints) }
