// Package app assembles every component into one process: config in,
// a ready-to-serve http.Handler and a background audit consumer out.
// Grounded on the teacher's cmd-level wiring convention (construct
// everything explicitly, no package-level singletons, pass *zap.SugaredLogger
// down through every constructor).
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medashooter/gateway/internal/audit"
	"github.com/medashooter/gateway/internal/catalog"
	"github.com/medashooter/gateway/internal/chaingateway"
	"github.com/medashooter/gateway/internal/chainpool"
	"github.com/medashooter/gateway/internal/config"
	"github.com/medashooter/gateway/internal/enrichment"
	"github.com/medashooter/gateway/internal/events"
	"github.com/medashooter/gateway/internal/httpapi"
	"github.com/medashooter/gateway/internal/portfolio"
	"github.com/medashooter/gateway/internal/scoreintake"
	"github.com/medashooter/gateway/internal/storage/postgres"
)

// App holds every long-lived dependency. Built once by New, torn down
// once by Close.
type App struct {
	Config *config.Config
	Log    *zap.SugaredLogger

	db        *pgxpool.Pool
	chainPool *chainpool.Pool
	tokenRepo postgres.TokenRepository
	audit     *audit.Subscriber

	Router http.Handler
}

// New wires every component. Returns an error if the database cannot be
// reached, the catalog cannot be loaded, no RPC endpoint is configured, or
// a contract address is malformed (unreachable RPC endpoints do not fail
// startup; they begin in cool-down); a score-submission pipeline that can't
// load its RSA keys is logged and left disabled rather than failing
// startup outright, so a key-rotation mistake degrades one subsystem
// instead of taking the gateway down.
func New(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	db, err := postgres.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	catalogRepo := postgres.NewCatalogRepository(db)
	catalogStore, err := catalog.New(ctx, catalogRepo)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	tokenRepo := postgres.NewTokenRepository(db)
	scoreRepo := postgres.NewScoreRepository(db)
	usageRepo := postgres.NewUsageRepository(db)

	emitter := events.NewEmitter(log)
	auditSub := audit.New(usageRepo, log)
	auditSub.Subscribe(emitter)

	urls := make([]string, len(cfg.ChainEndpoints))
	for i, e := range cfg.ChainEndpoints {
		urls[i] = e.URL
	}
	chainPool, err := chainpool.New(ctx, urls, chainpool.DialEthClient, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init rpc pool: %w", err)
	}

	gateway, err := chaingateway.New(chainPool, chaingateway.Addresses{
		Heroes:  cfg.Contracts.Heroes,
		Weapons: cfg.Contracts.Weapons,
	}, cfg.ContractCallRetry, chaingateway.CacheTTLs{
		Ownership:      cfg.HotCacheTTLs.Ownership,
		ERC1155Balance: cfg.HotCacheTTLs.ERC1155Balance,
		ERC20Balance:   cfg.HotCacheTTLs.ERC20Balance,
	}, cfg.HotCacheSize, emitter, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init chain gateway: %w", err)
	}

	engine := enrichment.New(gateway, tokenRepo, catalogStore, emitter, cfg.FanOutLimit, log)

	portfolioProvider := portfolio.NewProvider(cfg.IndexerBaseURL, cfg.IndexerAPIKey, http.DefaultClient, emitter, log)
	portfolioProvider.SetPurgeRelated(gateway.Purge)

	var scores *scoreintake.Processor
	hasScoreKeys := cfg.HasScoreKeys()
	if hasScoreKeys {
		keys, err := scoreintake.LoadKeys(keySource(cfg.ScoreKey), keySource(cfg.InfoKey))
		if err != nil {
			log.Errorw("score intake disabled: failed to load RSA keys", "error", err)
			hasScoreKeys = false
		} else {
			scores = scoreintake.NewProcessor(keys, scoreRepo, engine, emitter, log)
		}
	} else {
		log.Warnw("score intake disabled: no RSA key material configured")
	}

	api := &httpapi.API{
		Engine:       engine,
		Portfolio:    portfolioProvider,
		Scores:       scores,
		ScoreRepo:    scoreRepo,
		Pool:         chainPool,
		DB:           db,
		HasScoreKeys: hasScoreKeys,
		Log:          log,
	}

	return &App{
		Config:    cfg,
		Log:       log,
		db:        db,
		chainPool: chainPool,
		tokenRepo: tokenRepo,
		audit:     auditSub,
		Router:    httpapi.NewRouter(api),
	}, nil
}

// RunAudit drains the audit queue until ctx is cancelled. Intended to run
// in its own goroutine for the process lifetime.
func (a *App) RunAudit(ctx context.Context) {
	a.audit.Run(ctx)
}

// RunCacheErrorSweep periodically deletes resolved cache_errors rows older
// than the configured retention window, per SPEC_FULL.md's "supplemented
// features". Grounded on the teacher's consensus.PoA.Run(interval, done)
// ticker-loop convention.
func (a *App) RunCacheErrorSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-a.Config.CacheErrorRetention)
			n, err := a.tokenRepo.SweepResolved(ctx, cutoff)
			if err != nil {
				a.Log.Errorw("cache error sweep failed", "error", err)
				continue
			}
			if n > 0 {
				a.Log.Infow("swept resolved cache errors", "rows", n, "cutoff", cutoff)
			}
		}
	}
}

// Close releases the database pool and the RPC Pool's connections.
func (a *App) Close() {
	a.chainPool.Close()
	a.db.Close()
}

func keySource(k config.RSAKeyConfig) string {
	if k.Path != "" {
		return k.Path
	}
	return k.Base64
}
