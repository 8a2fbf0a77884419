package scope

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-works/meridian/internal/shared"
)

// PGRepository provides PostgreSQL backed hierarchy lookups.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ProjectChain joins projects to programs so the chain is derived in a single
// round trip. A project whose program row is gone resolves to no rows.
func (r *PGRepository) ProjectChain(ctx context.Context, projectID int64) (Chain, error) {
	const query = `
		SELECT pg.tenant_id, pj.program_id, pj.id
		FROM projects pj
		JOIN programs pg ON pg.id = pj.program_id
		WHERE pj.id = $1`
	var chain Chain
	err := r.pool.QueryRow(ctx, query, projectID).Scan(&chain.TenantID, &chain.ProgramID, &chain.ProjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Chain{}, shared.ErrNotFound
		}
		return Chain{}, err
	}
	return chain, nil
}

// ProgramTenant returns the tenant owning the program.
func (r *PGRepository) ProgramTenant(ctx context.Context, programID int64) (int64, error) {
	var tenantID int64
	err := r.pool.QueryRow(ctx, `SELECT tenant_id FROM programs WHERE id = $1`, programID).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return tenantID, nil
}

// TenantExists reports whether the tenant row exists.
func (r *PGRepository) TenantExists(ctx context.Context, tenantID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, tenantID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
