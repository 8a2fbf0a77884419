package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads the audit_log table.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the read-side repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// TimelineWindow returns entries within the query window, newest first.
// Empty filter values are passed as NULL so the predicate collapses.
func (r *PGRepository) TimelineWindow(ctx context.Context, q TimelineQuery) ([]Entry, error) {
	const query = `
		SELECT id, actor, action, tenant_id, program_id, project_id, user_id, role, effective_from, effective_to, at, digest
		FROM audit_log
		WHERE ($1::timestamptz IS NULL OR at >= $1)
		  AND ($2::timestamptz IS NULL OR at <= $2)
		  AND ($3::text IS NULL OR actor = $3)
		  AND ($4::text IS NULL OR action = $4)
		  AND ($5::bigint IS NULL OR tenant_id = $5)
		ORDER BY at DESC, id DESC
		OFFSET $6 LIMIT $7`
	rows, err := r.pool.Query(ctx, query,
		nullTime(q.From), nullTime(q.To), nullText(q.Actor), nullText(q.Action), nullInt(q.TenantID),
		q.Offset, q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.TenantID, &e.ProgramID, &e.ProjectID,
			&e.UserID, &e.Role, &e.EffectiveFrom, &e.EffectiveTo, &e.At, &e.Digest); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
