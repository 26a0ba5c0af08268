// Package enrichment implements the Enrichment Engine of spec.md §4.5:
// the shared six-step algorithm (owned ids → cache lookup → bounded
// fan-out for misses → best-effort upsert → catalog join → render) that
// backs the heroes, weapons, lands, and enhanced-player-data views.
// Fan-out is grounded on the teacher's network.Node goroutine-per-peer
// pattern, generalized from an unbounded per-peer broadcast into a
// semaphore-bounded errgroup.
package enrichment

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/medashooter/gateway/internal/apperr"
	"github.com/medashooter/gateway/internal/catalog"
	"github.com/medashooter/gateway/internal/chaingateway"
	"github.com/medashooter/gateway/internal/events"
	"github.com/medashooter/gateway/internal/storage/postgres"
)

// landTicketContractLogicalName is the Catalog Store entry backing the
// ERC-1155 land-ticket contract.
const landTicketContractLogicalName = "lands"

// landTicketIDs is the fixed id set the engine always queries.
var landTicketIDs = []uint64{1, 2, 3}

// ContractGateway is the subset of *chaingateway.Gateway the engine
// needs. Declared here, at the consumer, so tests can supply a fake
// without encoding real ABI payloads.
type ContractGateway interface {
	OwnedTokenIds(ctx context.Context, kind chaingateway.Kind, owner string) ([]uint64, error)
	GetAttribs(ctx context.Context, kind chaingateway.Kind, id uint64) (a, b, c uint64, err error)
	GetTokenInfo(ctx context.Context, kind chaingateway.Kind, id uint64) (chaingateway.TokenInfo, error)
	ERC1155BalanceOfBatch(ctx context.Context, contractAddr, owner string, ids []uint64) ([]uint64, error)
}

// Engine renders all enrichment views. Construct with New; all
// dependencies are explicit constructor arguments, not singletons.
type Engine struct {
	gateway     ContractGateway
	tokens      postgres.TokenRepository
	catalog     *catalog.Store
	emitter     *events.Emitter
	fanOutLimit int
	log         *zap.SugaredLogger
}

// New constructs an Engine. fanOutLimit is M from spec.md §5 (8-16).
func New(gateway ContractGateway, tokens postgres.TokenRepository, cat *catalog.Store,
	emitter *events.Emitter, fanOutLimit int, log *zap.SugaredLogger) *Engine {
	return &Engine{
		gateway:     gateway,
		tokens:      tokens,
		catalog:     cat,
		emitter:     emitter,
		fanOutLimit: fanOutLimit,
		log:         log,
	}
}

// collectHeroRows runs the shared algorithm for heroes and returns rows
// in ownership order, dropping any id whose fan-out fetch failed.
func (e *Engine) collectHeroRows(ctx context.Context, wallet string) ([]postgres.HeroTokenRow, error) {
	ids, err := e.gateway.OwnedTokenIds(ctx, chaingateway.KindHeroes, wallet)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	hits, missing, err := e.tokens.LookupHeroes(ctx, ids)
	if err != nil {
		e.log.Warnw("persistent token cache read failed, treating all ids as missing", "kind", "heroes", "error", err)
		hits = nil
		missing = ids
	}

	var fresh []postgres.HeroTokenRow
	if len(missing) > 0 {
		for _, id := range missing {
			e.emitTokenCacheMiss("heroes", id, wallet)
		}
		fresh = e.fanOutHeroes(ctx, wallet, missing)
		if len(fresh) > 0 {
			if err := e.tokens.UpsertHeroes(ctx, fresh); err != nil {
				e.log.Warnw("persistent token cache write failed, continuing without caching", "kind", "heroes", "error", err)
			}
		}
	}

	byID := make(map[uint64]postgres.HeroTokenRow, len(hits)+len(fresh))
	for _, h := range hits {
		byID[h.BcID] = h
	}
	for _, h := range fresh {
		byID[h.BcID] = h
	}

	out := make([]postgres.HeroTokenRow, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// fanOutHeroes fetches getAttribs+getTokenInfo for each missing id,
// bounded at e.fanOutLimit concurrent ids. A per-id failure drops that
// id and logs a cache_errors row; it never fails the whole request.
func (e *Engine) fanOutHeroes(ctx context.Context, wallet string, ids []uint64) []postgres.HeroTokenRow {
	rows := make([]*postgres.HeroTokenRow, len(ids))
	sem := make(chan struct{}, e.fanOutLimit)
	g, gctx := errgroup.WithContext(ctx)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			sec, ano, inn, err := e.gateway.GetAttribs(gctx, chaingateway.KindHeroes, id)
			if err != nil {
				e.logFetchFailure(ctx, postgres.TokenKindHeroes, id, wallet, err)
				return nil
			}
			info, err := e.gateway.GetTokenInfo(gctx, chaingateway.KindHeroes, id)
			if err != nil {
				e.logFetchFailure(ctx, postgres.TokenKindHeroes, id, wallet, err)
				return nil
			}
			rows[i] = &postgres.HeroTokenRow{
				BcID: id, Sec: sec, Ano: ano, Inn: inn,
				SeasonCardID: info.SeasonCardID, SerialNumber: info.SerialNumber, IsValid: true,
			}
			return nil
		})
	}
	_ = g.Wait() // per-id errors are swallowed into logFetchFailure by design; the group itself never fails

	out := make([]postgres.HeroTokenRow, 0, len(ids))
	for _, r := range rows {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// collectWeaponRows mirrors collectHeroRows for the weapon kind.
func (e *Engine) collectWeaponRows(ctx context.Context, wallet string) ([]postgres.WeaponTokenRow, error) {
	ids, err := e.gateway.OwnedTokenIds(ctx, chaingateway.KindWeapons, wallet)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	hits, missing, err := e.tokens.LookupWeapons(ctx, ids)
	if err != nil {
		e.log.Warnw("persistent token cache read failed, treating all ids as missing", "kind", "weapons", "error", err)
		hits = nil
		missing = ids
	}

	var fresh []postgres.WeaponTokenRow
	if len(missing) > 0 {
		for _, id := range missing {
			e.emitTokenCacheMiss("weapons", id, wallet)
		}
		fresh = e.fanOutWeapons(ctx, wallet, missing)
		if len(fresh) > 0 {
			if err := e.tokens.UpsertWeapons(ctx, fresh); err != nil {
				e.log.Warnw("persistent token cache write failed, continuing without caching", "kind", "weapons", "error", err)
			}
		}
	}

	byID := make(map[uint64]postgres.WeaponTokenRow, len(hits)+len(fresh))
	for _, w := range hits {
		byID[w.BcID] = w
	}
	for _, w := range fresh {
		byID[w.BcID] = w
	}

	out := make([]postgres.WeaponTokenRow, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (e *Engine) fanOutWeapons(ctx context.Context, wallet string, ids []uint64) []postgres.WeaponTokenRow {
	rows := make([]*postgres.WeaponTokenRow, len(ids))
	sem := make(chan struct{}, e.fanOutLimit)
	g, gctx := errgroup.WithContext(ctx)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			security, anonymity, innovation, err := e.gateway.GetAttribs(gctx, chaingateway.KindWeapons, id)
			if err != nil {
				e.logFetchFailure(ctx, postgres.TokenKindWeapons, id, wallet, err)
				return nil
			}
			info, err := e.gateway.GetTokenInfo(gctx, chaingateway.KindWeapons, id)
			if err != nil {
				e.logFetchFailure(ctx, postgres.TokenKindWeapons, id, wallet, err)
				return nil
			}
			rows[i] = &postgres.WeaponTokenRow{
				BcID: id, Security: security, Anonymity: anonymity, Innovation: innovation,
				WeaponTier: info.WeaponTier, WeaponType: info.WeaponType, WeaponSubtype: info.WeaponSubtype,
				Category: info.Category, SerialNumber: info.SerialNumber, IsValid: true,
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]postgres.WeaponTokenRow, 0, len(ids))
	for _, r := range rows {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// emitTokenCacheMiss publishes one TypeTokenCacheMiss event for the
// api_usage audit log. Nil-safe: an Engine built without an emitter
// simply doesn't audit.
func (e *Engine) emitTokenCacheMiss(kind string, id uint64, wallet string) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(events.Event{Type: events.TypeTokenCacheMiss, Data: map[string]any{"kind": kind, "bc_id": id, "wallet": wallet}})
}

func (e *Engine) logFetchFailure(ctx context.Context, kind postgres.TokenKind, id uint64, wallet string, err error) {
	e.log.Warnw("per-token fetch failed, dropping entry", "kind", kind, "bc_id", id, "wallet", wallet, "error", err)
	idCopy := id
	walletCopy := wallet
	if logErr := e.tokens.LogError(ctx, kind, &idCopy, string(apperr.KindOf(err)), err.Error(), &walletCopy); logErr != nil {
		e.log.Warnw("failed to write cache_errors row", "error", logErr)
	}
}

// Lands returns the three land-ticket tiers joined with the wallet's
// ERC-1155 balances. On a gateway failure every entry's balance is -1,
// the out-of-band error signal of spec.md §4.5; the result is never
// cached.
func (e *Engine) Lands(ctx context.Context, wallet string) ([]LandEntry, error) {
	contractAddr, ok := e.catalog.ContractAddress(landTicketContractLogicalName)
	if !ok {
		return nil, fmt.Errorf("no active land-ticket contract configured")
	}

	balances, err := e.gateway.ERC1155BalanceOfBatch(ctx, contractAddr, wallet, landTicketIDs)
	entries := make([]LandEntry, len(landCatalog))
	copy(entries, landCatalog)
	for i := range entries {
		entries[i].ContractAddress = contractAddr
	}
	if err != nil {
		e.log.Warnw("land ticket balance lookup failed, returning balance=-1 sentinel", "wallet", wallet, "error", err)
		for i := range entries {
			entries[i].Balance = -1
		}
		return entries, nil
	}
	for i := range entries {
		if i < len(balances) {
			entries[i].Balance = int64(balances[i])
		}
	}
	return entries, nil
}

var _ ContractGateway = (*chaingateway.Gateway)(nil)
