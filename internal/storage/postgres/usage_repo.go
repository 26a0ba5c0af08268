package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository records one row per outbound chain/indexer call and per
// processed score submission — the supplemented api_usage audit trail
// (see SPEC_FULL.md, "supplemented features").
type UsageRepository interface {
	Record(ctx context.Context, component, operation string, succeeded bool, duration time.Duration) error
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepository creates a UsageRepository instance.
func NewUsageRepository(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) Record(ctx context.Context, component, operation string, succeeded bool, duration time.Duration) error {
	query := `
		INSERT INTO api_usage (id, component, operation, succeeded, duration_ms, occurred_at)
		VALUES ($1, $2, $3, $4, $5, now())`
	_, err := r.pool.Exec(ctx, query, uuid.New(), component, operation, succeeded, duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record api usage: %w", err)
	}
	return nil
}

var _ UsageRepository = (*usageRepo)(nil)
