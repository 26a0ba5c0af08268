package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogRepository reads the read-only catalog tables the Catalog Store
// loads once at startup: characters, weapon name mappings, and the
// logical-name → contract-address table.
type CatalogRepository interface {
	AllCharacters(ctx context.Context) ([]Character, error)
	AllWeaponMappings(ctx context.Context) (map[WeaponMappingKey]string, error)
	AllContracts(ctx context.Context) ([]ContractRecord, error)
}

type catalogRepo struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository creates a CatalogRepository instance.
func NewCatalogRepository(pool *pgxpool.Pool) CatalogRepository {
	return &catalogRepo{pool: pool}
}

func (r *catalogRepo) AllCharacters(ctx context.Context) ([]Character, error) {
	rows, err := r.pool.Query(ctx, `SELECT season_card_id, title, fraction, class FROM characters`)
	if err != nil {
		return nil, fmt.Errorf("load characters: %w", err)
	}
	defer rows.Close()

	var out []Character
	for rows.Next() {
		var c Character
		if err := rows.Scan(&c.SeasonCardID, &c.Title, &c.Fraction, &c.Class); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *catalogRepo) AllWeaponMappings(ctx context.Context) (map[WeaponMappingKey]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT weapon_tier, weapon_type, weapon_subtype, category, weapon_name FROM weapon_mappings`)
	if err != nil {
		return nil, fmt.Errorf("load weapon mappings: %w", err)
	}
	defer rows.Close()

	out := make(map[WeaponMappingKey]string)
	for rows.Next() {
		var key WeaponMappingKey
		var name string
		if err := rows.Scan(&key.Tier, &key.Type, &key.Subtype, &key.Category, &name); err != nil {
			return nil, fmt.Errorf("scan weapon mapping: %w", err)
		}
		out[key] = name
	}
	return out, rows.Err()
}

func (r *catalogRepo) AllContracts(ctx context.Context) ([]ContractRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT logical_name, address, kind, active FROM contracts`)
	if err != nil {
		return nil, fmt.Errorf("load contracts: %w", err)
	}
	defer rows.Close()

	var out []ContractRecord
	for rows.Next() {
		var c ContractRecord
		if err := rows.Scan(&c.LogicalName, &c.Address, &c.Kind, &c.Active); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ CatalogRepository = (*catalogRepo)(nil)
