package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TokenKind selects which token table a TokenRepository call targets.
type TokenKind string

const (
	TokenKindHeroes  TokenKind = "heroes"
	TokenKindWeapons TokenKind = "weapons"
)

// TokenRepository is the Persistent Token Cache: durable, shared across
// replicas, storing per-token immutable facts keyed by bc_id. A hit
// implies the row is usable; is_valid=false must be treated as absent.
type TokenRepository interface {
	LookupHeroes(ctx context.Context, ids []uint64) (hits []HeroTokenRow, missing []uint64, err error)
	LookupWeapons(ctx context.Context, ids []uint64) (hits []WeaponTokenRow, missing []uint64, err error)
	UpsertHeroes(ctx context.Context, rows []HeroTokenRow) error
	UpsertWeapons(ctx context.Context, rows []WeaponTokenRow) error
	Invalidate(ctx context.Context, kind TokenKind, ids []uint64) error
	InvalidateAll(ctx context.Context, kind TokenKind) error
	LogError(ctx context.Context, kind TokenKind, tokenID *uint64, errType, message string, wallet *string) error
	// SweepResolved deletes cache_errors rows that were marked resolved
	// before cutoff, mirroring the original's periodic retention sweep
	// (see SPEC_FULL.md, "supplemented features"). Returns the row count
	// removed.
	SweepResolved(ctx context.Context, cutoff time.Time) (int64, error)
}

type tokenRepo struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a TokenRepository instance.
func NewTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &tokenRepo{pool: pool}
}

func (r *tokenRepo) LookupHeroes(ctx context.Context, ids []uint64) ([]HeroTokenRow, []uint64, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	query := `
		SELECT bc_id, sec, ano, inn, season_card_id, serial_number, last_updated
		FROM hero_tokens
		WHERE bc_id = ANY($1) AND is_valid`

	rows, err := r.pool.Query(ctx, query, bigIDs(ids))
	if err != nil {
		return nil, nil, fmt.Errorf("lookup heroes: %w", err)
	}
	defer rows.Close()

	seen := make(map[uint64]struct{}, len(ids))
	var hits []HeroTokenRow
	for rows.Next() {
		var h HeroTokenRow
		if err := rows.Scan(&h.BcID, &h.Sec, &h.Ano, &h.Inn, &h.SeasonCardID, &h.SerialNumber, &h.LastUpdated); err != nil {
			return nil, nil, fmt.Errorf("scan hero row: %w", err)
		}
		h.IsValid = true
		hits = append(hits, h)
		seen[h.BcID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("lookup heroes: %w", err)
	}
	return hits, missingOf(ids, seen), nil
}

func (r *tokenRepo) LookupWeapons(ctx context.Context, ids []uint64) ([]WeaponTokenRow, []uint64, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	query := `
		SELECT bc_id, security, anonymity, innovation, weapon_tier, weapon_type,
		       weapon_subtype, category, serial_number, last_updated
		FROM weapon_tokens
		WHERE bc_id = ANY($1) AND is_valid`

	rows, err := r.pool.Query(ctx, query, bigIDs(ids))
	if err != nil {
		return nil, nil, fmt.Errorf("lookup weapons: %w", err)
	}
	defer rows.Close()

	seen := make(map[uint64]struct{}, len(ids))
	var hits []WeaponTokenRow
	for rows.Next() {
		var w WeaponTokenRow
		if err := rows.Scan(&w.BcID, &w.Security, &w.Anonymity, &w.Innovation, &w.WeaponTier,
			&w.WeaponType, &w.WeaponSubtype, &w.Category, &w.SerialNumber, &w.LastUpdated); err != nil {
			return nil, nil, fmt.Errorf("scan weapon row: %w", err)
		}
		w.IsValid = true
		hits = append(hits, w)
		seen[w.BcID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("lookup weapons: %w", err)
	}
	return hits, missingOf(ids, seen), nil
}

func (r *tokenRepo) UpsertHeroes(ctx context.Context, rows []HeroTokenRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert heroes: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO hero_tokens (bc_id, sec, ano, inn, season_card_id, serial_number, last_updated, is_valid)
		VALUES ($1, $2, $3, $4, $5, $6, now(), true)
		ON CONFLICT (bc_id) DO UPDATE SET
			sec = EXCLUDED.sec, ano = EXCLUDED.ano, inn = EXCLUDED.inn,
			season_card_id = EXCLUDED.season_card_id, serial_number = EXCLUDED.serial_number,
			last_updated = now(), is_valid = true`

	for _, row := range rows {
		if _, err := tx.Exec(ctx, query, row.BcID, row.Sec, row.Ano, row.Inn, row.SeasonCardID, row.SerialNumber); err != nil {
			return fmt.Errorf("upsert hero %d: %w", row.BcID, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *tokenRepo) UpsertWeapons(ctx context.Context, rows []WeaponTokenRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert weapons: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO weapon_tokens (bc_id, security, anonymity, innovation, weapon_tier, weapon_type,
			weapon_subtype, category, serial_number, last_updated, is_valid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), true)
		ON CONFLICT (bc_id) DO UPDATE SET
			security = EXCLUDED.security, anonymity = EXCLUDED.anonymity, innovation = EXCLUDED.innovation,
			weapon_tier = EXCLUDED.weapon_tier, weapon_type = EXCLUDED.weapon_type,
			weapon_subtype = EXCLUDED.weapon_subtype, category = EXCLUDED.category,
			serial_number = EXCLUDED.serial_number, last_updated = now(), is_valid = true`

	for _, row := range rows {
		if _, err := tx.Exec(ctx, query, row.BcID, row.Security, row.Anonymity, row.Innovation,
			row.WeaponTier, row.WeaponType, row.WeaponSubtype, row.Category, row.SerialNumber); err != nil {
			return fmt.Errorf("upsert weapon %d: %w", row.BcID, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *tokenRepo) Invalidate(ctx context.Context, kind TokenKind, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET is_valid = false WHERE bc_id = ANY($1)`, table), bigIDs(ids))
	return err
}

func (r *tokenRepo) InvalidateAll(ctx context.Context, kind TokenKind) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET is_valid = false`, table))
	return err
}

// LogError appends a cache_errors row. A repeated failure for the same
// (kind, token id) that is still unresolved increments retry_count on the
// existing row instead of inserting a new one, matching the original's
// per-token retry counter.
func (r *tokenRepo) LogError(ctx context.Context, kind TokenKind, tokenID *uint64, errType, message string, wallet *string) error {
	if len(message) > 1000 {
		message = message[:1000]
	}
	if tokenID != nil {
		tag, err := r.pool.Exec(ctx, `
			UPDATE cache_errors SET retry_count = retry_count + 1, error_type = $1, message = $2
			WHERE contract_kind = $3 AND token_id = $4 AND NOT resolved`,
			errType, message, string(kind), *tokenID)
		if err != nil {
			return fmt.Errorf("increment cache error retry count: %w", err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
	}
	query := `
		INSERT INTO cache_errors (id, contract_kind, token_id, error_type, message, wallet, retry_count, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, false, now())`
	_, err := r.pool.Exec(ctx, query, uuid.New(), string(kind), tokenID, errType, message, wallet)
	return err
}

// SweepResolved deletes resolved cache_errors rows older than cutoff.
func (r *tokenRepo) SweepResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cache_errors WHERE resolved AND resolved_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep resolved cache errors: %w", err)
	}
	return tag.RowsAffected(), nil
}

func tableFor(kind TokenKind) (string, error) {
	switch kind {
	case TokenKindHeroes:
		return "hero_tokens", nil
	case TokenKindWeapons:
		return "weapon_tokens", nil
	default:
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
}

func bigIDs(ids []uint64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func missingOf(ids []uint64, seen map[uint64]struct{}) []uint64 {
	var missing []uint64
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

var _ TokenRepository = (*tokenRepo)(nil)
