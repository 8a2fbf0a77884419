package authz

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-works/meridian/internal/scope"
	"github.com/meridian-works/meridian/internal/shared"
)

const assignmentColumns = `id, actor_id, role, scope_level, scope_id, starts_at, ends_at, is_active, revoked_at, created_at, updated_at`

// PGStore provides PostgreSQL backed assignment persistence.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a store over the given pool.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// ListActive returns assignments effective at the given instant.
func (s *PGStore) ListActive(ctx context.Context, actorID int64, now time.Time) ([]RoleAssignment, error) {
	const query = `
		SELECT ` + assignmentColumns + `
		FROM role_assignments
		WHERE actor_id = $1
		  AND is_active
		  AND revoked_at IS NULL
		  AND starts_at <= $2
		  AND (ends_at IS NULL OR ends_at > $2)
		ORDER BY id`
	rows, err := s.pool.Query(ctx, query, actorID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// ListByActor returns all assignments for an actor, newest first.
func (s *PGStore) ListByActor(ctx context.Context, actorID int64) ([]RoleAssignment, error) {
	const query = `
		SELECT ` + assignmentColumns + `
		FROM role_assignments
		WHERE actor_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := s.pool.Query(ctx, query, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// Get fetches one assignment by ID.
func (s *PGStore) Get(ctx context.Context, id int64) (RoleAssignment, error) {
	const query = `SELECT ` + assignmentColumns + ` FROM role_assignments WHERE id = $1`
	row := s.pool.QueryRow(ctx, query, id)
	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RoleAssignment{}, shared.ErrNotFound
		}
		return RoleAssignment{}, err
	}
	return a, nil
}

// Create inserts a new assignment.
func (s *PGStore) Create(ctx context.Context, a RoleAssignment) (RoleAssignment, error) {
	const query = `
		INSERT INTO role_assignments (actor_id, role, scope_level, scope_id, starts_at, ends_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING ` + assignmentColumns
	row := s.pool.QueryRow(ctx, query, a.ActorID, string(a.Role), string(a.Level), a.ScopeID, a.StartsAt, a.EndsAt)
	created, err := scanAssignment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_role_assignments_grant" {
			return RoleAssignment{}, shared.ErrAlreadyExists
		}
		return RoleAssignment{}, err
	}
	return created, nil
}

// Revoke deactivates an assignment. The WHERE clause makes the update
// idempotent: the second revoke matches no rows and reports no change.
func (s *PGStore) Revoke(ctx context.Context, id int64, now time.Time) (RoleAssignment, bool, error) {
	const query = `
		UPDATE role_assignments
		SET is_active = FALSE, revoked_at = $2, updated_at = $2
		WHERE id = $1 AND revoked_at IS NULL
		RETURNING ` + assignmentColumns
	row := s.pool.QueryRow(ctx, query, id, now)
	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the row does not exist or it is already revoked.
			existing, getErr := s.Get(ctx, id)
			if getErr != nil {
				return RoleAssignment{}, false, getErr
			}
			return existing, false, nil
		}
		return RoleAssignment{}, false, err
	}
	return a, true, nil
}

// ExpireDue flips is_active off for past-ends_at rows in one statement, so a
// concurrent sweep or evaluation read never observes a half-updated row. Only
// rows changed by this call are returned, which keeps the sweep idempotent.
func (s *PGStore) ExpireDue(ctx context.Context, now time.Time) ([]RoleAssignment, error) {
	const query = `
		UPDATE role_assignments
		SET is_active = FALSE, updated_at = $1
		WHERE is_active AND revoked_at IS NULL AND ends_at IS NOT NULL AND ends_at <= $1
		RETURNING ` + assignmentColumns
	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func scanAssignments(rows pgx.Rows) ([]RoleAssignment, error) {
	var assignments []RoleAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

func scanAssignment(row pgx.Row) (RoleAssignment, error) {
	var (
		a     RoleAssignment
		role  string
		level string
	)
	err := row.Scan(&a.ID, &a.ActorID, &role, &level, &a.ScopeID, &a.StartsAt, &a.EndsAt, &a.IsActive, &a.RevokedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return RoleAssignment{}, err
	}
	a.Role = Role(role)
	a.Level = scope.Level(level)
	return a, nil
}
