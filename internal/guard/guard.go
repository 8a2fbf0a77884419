// Package guard is the only sanctioned path for fetching workflow entities by
// identifier. Every query it issues filters by the caller's resolved scope in
// the same statement that fetches by ID — there is deliberately no way to
// fetch first and check ownership afterward.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-works/meridian/internal/scope"
	"github.com/meridian-works/meridian/internal/shared"
)

const entityColumns = "id, tenant_id, program_id, project_id, title, status, created_at, updated_at"

// Entity is the uniform row shape shared by all guarded tables.
type Entity struct {
	Kind      Kind
	ID        int64
	TenantID  int64
	ProgramID int64
	ProjectID int64 // zero for program-scoped kinds
	Title     string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filters narrows a scoped list. Scope itself is carried by the chain and is
// mandatory; these are optional refinements.
type Filters struct {
	Status   string
	Query    string
	Page     int
	PageSize int
}

// ListResult wraps a page of entities.
type ListResult struct {
	Entities []Entity
	Page     int
	PageSize int
	HasNext  bool
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Guard executes scope-anchored entity lookups. It holds no per-call state
// and is safe under arbitrary concurrent invocation.
type Guard struct {
	db     querier
	logger *slog.Logger
}

// New constructs a Guard over a pgx pool or transaction.
func New(db querier, logger *slog.Logger) *Guard {
	return &Guard{db: db, logger: logger}
}

// Get fetches a single entity by primary key, constrained to the caller's
// resolved chain. An ID that exists under a foreign scope returns
// shared.ErrNotFound, indistinguishable from a row that does not exist, so
// existence never leaks across tenants.
func (g *Guard) Get(ctx context.Context, kind Kind, id int64, chain scope.Chain) (Entity, error) {
	spec, err := specFor(kind)
	if err != nil {
		return Entity{}, err
	}
	if chain.TenantID == 0 {
		return Entity{}, fmt.Errorf("%w: lookup not anchored to a resolved scope", shared.ErrScopeMismatch)
	}

	query, args := buildGetQuery(spec, id, chain)
	row := g.db.QueryRow(ctx, query, args...)
	entity, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entity{}, shared.ErrNotFound
		}
		// Fail closed: an unavailable store must never become an allow.
		g.logError(ctx, "scoped get", kind, err)
		return Entity{}, shared.ErrNotFound
	}
	entity.Kind = kind
	return entity, nil
}

// List fetches a page of entities under the caller's chain. The scope filter
// is mandatory at the kind's registered depth: a requirement listing without
// a project, or a workshop listing without a program, is rejected outright
// rather than silently widened.
func (g *Guard) List(ctx context.Context, kind Kind, chain scope.Chain, filters Filters) (ListResult, error) {
	spec, err := specFor(kind)
	if err != nil {
		return ListResult{}, err
	}
	if err := requireListScope(spec, chain); err != nil {
		return ListResult{}, err
	}

	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}

	query, args := buildListQuery(spec, chain, filters, (page-1)*pageSize, pageSize+1)
	rows, err := g.db.Query(ctx, query, args...)
	if err != nil {
		g.logError(ctx, "scoped list", kind, err)
		return ListResult{}, shared.ErrNotFound
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			g.logError(ctx, "scoped list scan", kind, err)
			return ListResult{}, shared.ErrNotFound
		}
		entity.Kind = kind
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		g.logError(ctx, "scoped list rows", kind, err)
		return ListResult{}, shared.ErrNotFound
	}

	hasNext := len(entities) > pageSize
	if hasNext {
		entities = entities[:pageSize]
	}
	return ListResult{Entities: entities, Page: page, PageSize: pageSize, HasNext: hasNext}, nil
}

func requireListScope(spec kindSpec, chain scope.Chain) error {
	switch spec.listLevel {
	case scope.LevelProject:
		if chain.ProjectID == 0 {
			return fmt.Errorf("%w: project scope filter is mandatory", shared.ErrScopeMismatch)
		}
	case scope.LevelProgram:
		if chain.ProgramID == 0 {
			return fmt.Errorf("%w: program scope filter is mandatory", shared.ErrScopeMismatch)
		}
	}
	if chain.TenantID == 0 {
		return fmt.Errorf("%w: tenant scope filter is mandatory", shared.ErrScopeMismatch)
	}
	return nil
}

// buildGetQuery filters by every chain component the table carries in the
// same statement as the by-ID predicate.
func buildGetQuery(spec kindSpec, id int64, chain scope.Chain) (string, []any) {
	var sb strings.Builder
	args := []any{id, chain.TenantID}
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE id = $1 AND tenant_id = $2", entityColumns, spec.table)
	if chain.ProgramID != 0 {
		args = append(args, chain.ProgramID)
		fmt.Fprintf(&sb, " AND program_id = $%d", len(args))
	}
	if chain.ProjectID != 0 && spec.ownLevel == scope.LevelProject {
		args = append(args, chain.ProjectID)
		fmt.Fprintf(&sb, " AND project_id = $%d", len(args))
	}
	return sb.String(), args
}

func buildListQuery(spec kindSpec, chain scope.Chain, filters Filters, offset, limit int) (string, []any) {
	var sb strings.Builder
	args := []any{chain.TenantID}
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE tenant_id = $1", entityColumns, spec.table)
	if chain.ProgramID != 0 {
		args = append(args, chain.ProgramID)
		fmt.Fprintf(&sb, " AND program_id = $%d", len(args))
	}
	if chain.ProjectID != 0 && spec.ownLevel == scope.LevelProject {
		args = append(args, chain.ProjectID)
		fmt.Fprintf(&sb, " AND project_id = $%d", len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	if filters.Query != "" {
		args = append(args, "%"+filters.Query+"%")
		fmt.Fprintf(&sb, " AND title ILIKE $%d", len(args))
	}
	args = append(args, offset)
	fmt.Fprintf(&sb, " ORDER BY id OFFSET $%d", len(args))
	args = append(args, limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	return sb.String(), args
}

func scanEntity(row pgx.Row) (Entity, error) {
	var (
		e         Entity
		projectID *int64
	)
	if err := row.Scan(&e.ID, &e.TenantID, &e.ProgramID, &projectID, &e.Title, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Entity{}, err
	}
	if projectID != nil {
		e.ProjectID = *projectID
	}
	return e, nil
}

func (g *Guard) logError(ctx context.Context, op string, kind Kind, err error) {
	if g.logger == nil {
		return
	}
	g.logger.ErrorContext(ctx, "guard failed closed",
		slog.String("op", op), slog.String("kind", string(kind)), slog.Any("error", err))
}
