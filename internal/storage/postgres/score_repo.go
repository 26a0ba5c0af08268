package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScoreRepository persists one processed submission atomically: the raw
// ciphertext record, the decrypted/validated record, and the player-stats
// upsert either all apply or none, per spec.md §5.
type ScoreRepository interface {
	PersistSubmission(ctx context.Context, raw ScoreSubmissionRaw, processed ScoreSubmissionProcessed) error
	IsBlacklisted(ctx context.Context, playerAddress string) (bool, error)
	PlayerStats(ctx context.Context, playerAddress string) (*PlayerStats, error)
}

type scoreRepo struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a ScoreRepository instance.
func NewScoreRepository(pool *pgxpool.Pool) ScoreRepository {
	return &scoreRepo{pool: pool}
}

// PersistSubmission inserts raw + processed and upserts player_stats in
// one transaction. The player-stats update is a plain upsert statement,
// not a trigger: GREATEST(best_score, $new) computed inline, replacing
// the fragile trigger-body defect called out in the Design Notes.
func (r *scoreRepo) PersistSubmission(ctx context.Context, raw ScoreSubmissionRaw, processed ScoreSubmissionProcessed) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin score submission: %w", err)
	}
	defer tx.Rollback(ctx)

	if raw.ID == "" {
		raw.ID = uuid.NewString()
	}
	if processed.ID == "" {
		processed.ID = uuid.NewString()
	}
	processed.RawID = raw.ID

	rawQuery := `
		INSERT INTO score_submissions_raw (id, hash_ct, address_ct, delta_ct, parameter_ct, raw_payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`
	if _, err := tx.Exec(ctx, rawQuery, raw.ID, raw.HashCT, raw.AddressCT, raw.DeltaCT, raw.ParameterCT[:], raw.RawPayload); err != nil {
		return fmt.Errorf("insert raw submission: %w", err)
	}

	processedQuery := `
		INSERT INTO score_submissions (
			id, raw_id, player_address, score, calculated_score, duration_seconds,
			enemies_spawned, enemies_killed, waves_completed, travel_distance,
			perks_collected, coins_collected, shields_collected, killing_spree_mult,
			killing_spree_duration, max_killing_spree, attack_speed_raw, attack_speed,
			max_score_per_enemy, max_score_per_enemy_scaled, ability_use_count,
			enemies_killed_while_killing_spree, nft_boost_snapshot, validated, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,now())`
	if _, err := tx.Exec(ctx, processedQuery,
		processed.ID, processed.RawID, processed.PlayerAddress, processed.Score, processed.CalculatedScore,
		processed.DurationSeconds, processed.EnemiesSpawned, processed.EnemiesKilled, processed.WavesCompleted,
		processed.TravelDistance, processed.PerksCollected, processed.CoinsCollected, processed.ShieldsCollected,
		processed.KillingSpreeMult, processed.KillingSpreeDuration, processed.MaxKillingSpree,
		processed.AttackSpeedRaw, processed.AttackSpeed, processed.MaxScorePerEnemy, processed.MaxScorePerEnemyScaled,
		processed.AbilityUseCount, processed.EnemiesKilledWhileKillingSpree, processed.NFTBoostSnapshot,
		processed.Validated,
	); err != nil {
		return fmt.Errorf("insert processed submission: %w", err)
	}

	// An unvalidated submission (blacklisted player, or a rule-level
	// failure) is persisted for offline review but must not move
	// player_stats, per spec.md §8 property #9.
	if processed.Validated {
		statsQuery := `
			INSERT INTO player_stats (player_address, total_games, best_score, first_game_at, last_game_at)
			VALUES ($1, 1, $2, now(), now())
			ON CONFLICT (player_address) DO UPDATE SET
				total_games = player_stats.total_games + 1,
				best_score = GREATEST(player_stats.best_score, EXCLUDED.best_score),
				last_game_at = now()`
		if _, err := tx.Exec(ctx, statsQuery, processed.PlayerAddress, int64(processed.CalculatedScore)); err != nil {
			return fmt.Errorf("upsert player stats: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *scoreRepo) IsBlacklisted(ctx context.Context, playerAddress string) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `SELECT active FROM blacklist WHERE player_address = $1`, playerAddress).Scan(&active)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return active, nil
}

func (r *scoreRepo) PlayerStats(ctx context.Context, playerAddress string) (*PlayerStats, error) {
	var s PlayerStats
	s.PlayerAddress = playerAddress
	err := r.pool.QueryRow(ctx,
		`SELECT total_games, best_score, first_game_at, last_game_at FROM player_stats WHERE player_address = $1`,
		playerAddress).Scan(&s.TotalGames, &s.BestScore, &s.FirstGameAt, &s.LastGameAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("player stats: %w", err)
	}
	return &s, nil
}

var _ ScoreRepository = (*scoreRepo)(nil)
