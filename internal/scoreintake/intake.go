package scoreintake

import (
	"context"

	"go.uber.org/zap"

	"github.com/medashooter/gateway/internal/apperr"
	"github.com/medashooter/gateway/internal/events"
	"github.com/medashooter/gateway/internal/storage/postgres"
)

// Result is what Submit reports back to the HTTP boundary.
type Result struct {
	PlayerAddress   string
	CalculatedScore uint32
	Validated       bool
}

// BoostLookup computes a read-only, point-in-time snapshot of a wallet's
// current NFT-derived gameplay boosts for Submit to persist alongside a
// score (spec.md §3). It plays no role in validation — a lookup failure
// is logged and the submission proceeds with no snapshot. Declared here,
// at the consumer, and satisfied by *enrichment.Engine.
type BoostLookup interface {
	BoostSnapshotJSON(ctx context.Context, wallet string) ([]byte, error)
}

// Processor runs the full Score Intake pipeline for one submission.
// Construct with NewProcessor; holds the two RSA keys and the score
// repository, both immutable for the process lifetime.
type Processor struct {
	keys    *Keys
	scores  postgres.ScoreRepository
	boosts  BoostLookup
	emitter *events.Emitter
	log     *zap.SugaredLogger
}

// NewProcessor constructs a Processor. boosts is consulted once per
// submission to populate the NFT boost snapshot; pass nil to persist
// submissions without one. emitter receives a TypeScoreProcessed event
// after every submission that reaches persistence, for the api_usage
// audit log; pass nil to disable auditing.
func NewProcessor(keys *Keys, scores postgres.ScoreRepository, boosts BoostLookup, emitter *events.Emitter, log *zap.SugaredLogger) *Processor {
	return &Processor{keys: keys, scores: scores, boosts: boosts, emitter: emitter, log: log}
}

// Submit runs decrypt → recompute → anti-cheat gate → persist for one
// envelope. rawPayload is the original request body, stored verbatim for
// offline review. Per spec.md §4.7 step 4 and §7, a blacklisted player is
// accept-and-mark-invalidated, not a transport error: the submission is
// still persisted with validated=false, same as any other rule-level
// failure, so it remains available for offline review.
func (p *Processor) Submit(ctx context.Context, env Envelope, rawPayload []byte) (Result, error) {
	decoded, err := Decrypt(env, p.keys)
	if err != nil {
		return Result{}, err
	}

	blacklisted, err := p.scores.IsBlacklisted(ctx, decoded.PlayerAddress)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.Internal, "blacklist check failed", err)
	}

	validated := !blacklisted && passesRuleChecks(decoded)
	if blacklisted {
		p.log.Warnw("score submission from blacklisted player, persisting as unvalidated",
			"player_address", decoded.PlayerAddress)
	} else if !validated {
		p.log.Warnw("score submission failed rule-level validation, persisting for offline review",
			"player_address", decoded.PlayerAddress)
	}

	calculated := calculatedScore(decoded.Score)

	var boostSnapshot []byte
	if p.boosts != nil {
		snap, err := p.boosts.BoostSnapshotJSON(ctx, decoded.PlayerAddress)
		if err != nil {
			p.log.Warnw("nft boost snapshot lookup failed, persisting submission without one",
				"player_address", decoded.PlayerAddress, "error", err)
		} else {
			boostSnapshot = snap
		}
	}

	raw := postgres.ScoreSubmissionRaw{
		HashCT:      env.Hash,
		AddressCT:   env.Address,
		DeltaCT:     env.Delta,
		ParameterCT: env.parameterCT(),
		RawPayload:  rawPayload,
	}
	processed := postgres.ScoreSubmissionProcessed{
		PlayerAddress:                  decoded.PlayerAddress,
		Score:                          decoded.Score,
		CalculatedScore:                calculated,
		DurationSeconds:                decoded.DurationSeconds,
		EnemiesSpawned:                 decoded.EnemiesSpawned,
		EnemiesKilled:                  decoded.EnemiesKilled,
		WavesCompleted:                 decoded.WavesCompleted,
		TravelDistance:                 decoded.TravelDistance,
		PerksCollected:                 decoded.PerksCollected,
		CoinsCollected:                 decoded.CoinsCollected,
		ShieldsCollected:               decoded.ShieldsCollected,
		KillingSpreeMult:               decoded.KillingSpreeMult,
		KillingSpreeDuration:           decoded.KillingSpreeDuration,
		MaxKillingSpree:                decoded.MaxKillingSpree,
		AttackSpeedRaw:                 decoded.AttackSpeedRaw,
		AttackSpeed:                    decoded.AttackSpeed,
		MaxScorePerEnemy:               decoded.MaxScorePerEnemy,
		MaxScorePerEnemyScaled:         decoded.MaxScorePerEnemyScaled,
		AbilityUseCount:                decoded.AbilityUseCount,
		EnemiesKilledWhileKillingSpree: decoded.EnemiesKilledWhileKillingSpree,
		NFTBoostSnapshot:               boostSnapshot,
		Validated:                      validated,
	}

	if err := p.scores.PersistSubmission(ctx, raw, processed); err != nil {
		return Result{}, apperr.Wrap(apperr.Internal, "persisting score submission failed", err)
	}

	p.emitScoreProcessed(decoded.PlayerAddress, calculated, validated)

	return Result{PlayerAddress: decoded.PlayerAddress, CalculatedScore: calculated, Validated: validated}, nil
}

func (p *Processor) emitScoreProcessed(playerAddress string, calculated uint32, validated bool) {
	if p.emitter == nil {
		return
	}
	p.emitter.Emit(events.Event{
		Type: events.TypeScoreProcessed,
		Data: map[string]any{
			"player_address":   playerAddress,
			"calculated_score": calculated,
			"validated":        validated,
		},
	})
}

// passesRuleChecks implements the additional rule-level checks of
// spec.md §4.7 step 4: duration positive, kills bounded by spawns, and
// the killing-spree kill count bounded by total kills.
func passesRuleChecks(d Decoded) bool {
	if d.DurationSeconds <= 0 {
		return false
	}
	if d.EnemiesKilled > d.EnemiesSpawned {
		return false
	}
	if d.EnemiesKilledWhileKillingSpree > d.EnemiesKilled {
		return false
	}
	return true
}
