// Package httpapi is the thin HTTP boundary of spec.md §6: it decodes
// query parameters, calls into the Enrichment Engine / Portfolio Gateway /
// Score Intake orchestrators, and renders JSON. Grounded on
// Bidon15-popsigner/control-plane/internal/handler's one-handler-per-
// resource shape and on rpc/server.go (teacher) for the graceful shutdown
// convention carried into cmd/server/main.go.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/medashooter/gateway/internal/apperr"
	"github.com/medashooter/gateway/internal/chainpool"
	"github.com/medashooter/gateway/internal/enrichment"
	"github.com/medashooter/gateway/internal/portfolio"
	"github.com/medashooter/gateway/internal/scoreintake"
	"github.com/medashooter/gateway/internal/storage/postgres"
)

// defaultChain is used when a request omits the chain query parameter.
const defaultChain = "polygon"

// API holds every dependency the HTTP boundary calls into. Built once in
// app.New and injected into the router — no package-level
// singletons, per spec.md §9.
type API struct {
	Engine       *enrichment.Engine
	Portfolio    *portfolio.Provider
	Scores       *scoreintake.Processor
	ScoreRepo    postgres.ScoreRepository
	Pool         *chainpool.Pool
	DB           Pinger
	HasScoreKeys bool
	Log          *zap.SugaredLogger
}

// Pinger is the subset of *pgxpool.Pool the health check needs. Declared
// at the consumer so tests can supply a fake without a live database.
type Pinger interface {
	Ping(ctx context.Context) error
}

func requireAddress(r *http.Request) (string, error) {
	addr := r.URL.Query().Get("address")
	if addr == "" {
		return "", apperr.New(apperr.InvalidParameter, "address query parameter is required")
	}
	return addr, nil
}

func chainParam(r *http.Request) string {
	if c := r.URL.Query().Get("chain"); c != "" {
		return c
	}
	return defaultChain
}

// Heroes handles GET /heroes?address=.
func (a *API) Heroes(w http.ResponseWriter, r *http.Request) {
	addr, err := requireAddress(r)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	resp, err := a.Engine.HeroesUnity(r.Context(), addr)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, a.Log, http.StatusOK, resp)
}

// Weapons handles GET /weapons?address=.
func (a *API) Weapons(w http.ResponseWriter, r *http.Request) {
	addr, err := requireAddress(r)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	resp, err := a.Engine.WeaponsUnity(r.Context(), addr)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, a.Log, http.StatusOK, resp)
}

// Lands handles GET /lands?address=.
func (a *API) Lands(w http.ResponseWriter, r *http.Request) {
	addr, err := requireAddress(r)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	resp, err := a.Engine.Lands(r.Context(), addr)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, a.Log, http.StatusOK, resp)
}

// EnhancedPlayerData handles GET /enhanced-player-data?address=&chain=.
// chain is accepted for wire-compatibility with the indexer-backed
// endpoints but is not yet consulted by the Enrichment Engine, which is
// chain-agnostic at the contract-call layer.
func (a *API) EnhancedPlayerData(w http.ResponseWriter, r *http.Request) {
	addr, err := requireAddress(r)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	resp, err := a.Engine.EnhancedPlayerData(r.Context(), addr)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, a.Log, http.StatusOK, resp)
}

// Portfolio handles GET /portfolio?address=&chain=polygon.
func (a *API) Portfolio(w http.ResponseWriter, r *http.Request) {
	addr, err := requireAddress(r)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	resp, err := a.Portfolio.ERC20Portfolio(r.Context(), addr, chainParam(r))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, a.Log, http.StatusOK, resp)
}

// NFTs handles GET /nfts/{address}?chain=.
func (a *API) NFTs(w http.ResponseWriter, r *http.Request, address string) {
	if address == "" {
		writeError(w, a.Log, apperr.New(apperr.InvalidParameter, "address path parameter is required"))
		return
	}
	resp, err := a.Portfolio.NFTCollections(r.Context(), address, chainParam(r))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, a.Log, http.StatusOK, resp)
}

// Score handles POST /score.
func (a *API) Score(w http.ResponseWriter, r *http.Request) {
	if !a.HasScoreKeys {
		writeError(w, a.Log, apperr.New(apperr.Internal, "score intake is not configured on this deployment"))
		return
	}

	body, err := decodeBody(r)
	if err != nil {
		writeError(w, a.Log, apperr.Wrap(apperr.MalformedSubmission, "invalid JSON body", err))
		return
	}

	var env scoreintake.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		writeError(w, a.Log, apperr.Wrap(apperr.MalformedSubmission, "invalid score envelope", err))
		return
	}

	result, err := a.Scores.Submit(r.Context(), env, body)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, a.Log, http.StatusOK, result)
}

func decodeBody(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	var buf []byte
	dec := json.NewDecoder(r.Body)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	buf = []byte(raw)
	return buf, nil
}

// Timestamp handles GET /timestamp, a trivial clock endpoint carried from
// the original's routes (see SPEC_FULL.md, "supplemented features").
func (a *API) Timestamp(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Log, http.StatusOK, map[string]int64{"timestamp": time.Now().Unix()})
}

// Blacklist handles GET /blacklist?address=.
func (a *API) Blacklist(w http.ResponseWriter, r *http.Request) {
	addr, err := requireAddress(r)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	blacklisted, err := a.ScoreRepo.IsBlacklisted(r.Context(), addr)
	if err != nil {
		writeError(w, a.Log, apperr.Wrap(apperr.Internal, "blacklist lookup failed", err))
		return
	}
	writeJSON(w, a.Log, http.StatusOK, map[string]any{"address": addr, "blacklisted": blacklisted})
}

// healthStatus is one subsystem's reported state in the /health response.
type healthStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Health handles GET /health, aggregating independent subsystem checks
// per spec.md §7.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]healthStatus{
		"rpc_pool":  probeRPCPool(ctx, a.Pool),
		"indexer":   probeIndexer(ctx, a.Portfolio),
		"database":  probeDB(ctx, a.DB),
		"score_rsa": {OK: a.HasScoreKeys},
	}

	overall := http.StatusOK
	for _, c := range checks {
		if !c.OK {
			overall = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, a.Log, overall, map[string]any{"checks": checks})
}

func probeRPCPool(ctx context.Context, pool *chainpool.Pool) healthStatus {
	if pool == nil {
		return healthStatus{OK: false, Error: "not configured"}
	}
	client, err := pool.Acquire(ctx)
	if err != nil {
		return healthStatus{OK: false, Error: err.Error()}
	}
	_, err = client.BlockNumber(ctx)
	if err != nil {
		return healthStatus{OK: false, Error: err.Error()}
	}
	return healthStatus{OK: true}
}

func probeIndexer(ctx context.Context, p *portfolio.Provider) healthStatus {
	if p == nil {
		return healthStatus{OK: false, Error: "not configured"}
	}
	if err := p.Ping(ctx); err != nil {
		return healthStatus{OK: false, Error: err.Error()}
	}
	return healthStatus{OK: true}
}

func probeDB(ctx context.Context, db Pinger) healthStatus {
	if db == nil {
		return healthStatus{OK: false, Error: "not configured"}
	}
	if err := db.Ping(ctx); err != nil {
		return healthStatus{OK: false, Error: err.Error()}
	}
	return healthStatus{OK: true}
}
