package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/meridian-works/meridian/internal/scope"
	"github.com/meridian-works/meridian/internal/shared"
)

type fakeRow struct {
	entity *Entity
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	e := r.entity
	*dest[0].(*int64) = e.ID
	*dest[1].(*int64) = e.TenantID
	*dest[2].(*int64) = e.ProgramID
	if e.ProjectID != 0 {
		projectID := e.ProjectID
		*dest[3].(**int64) = &projectID
	}
	*dest[4].(*string) = e.Title
	*dest[5].(*string) = e.Status
	*dest[6].(*time.Time) = e.CreatedAt
	*dest[7].(*time.Time) = e.UpdatedAt
	return nil
}

type fakeRows struct {
	rows []Entity
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := fakeRow{entity: &r.rows[r.idx]}
	r.idx++
	return row.Scan(dest...)
}

// fakeQuerier records the statements issued and serves canned results.
type fakeQuerier struct {
	lastSQL  string
	lastArgs []any
	rows     []Entity
	rowErr   error
	queryErr error
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.lastSQL = sql
	q.lastArgs = args
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	return &fakeRows{rows: q.rows}, nil
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.lastSQL = sql
	q.lastArgs = args
	if q.rowErr != nil {
		return fakeRow{err: q.rowErr}
	}
	if len(q.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{entity: &q.rows[0]}
}

var fullChain = scope.Chain{TenantID: 7, ProgramID: 11, ProjectID: 22}

func TestGetAnchorsScopeInStatement(t *testing.T) {
	db := &fakeQuerier{rows: []Entity{{ID: 5, TenantID: 7, ProgramID: 11, ProjectID: 22, Title: "login flow", Status: "open"}}}
	g := New(db, nil)

	entity, err := g.Get(context.Background(), KindRequirement, 5, fullChain)
	require.NoError(t, err)
	require.Equal(t, KindRequirement, entity.Kind)
	require.EqualValues(t, 5, entity.ID)

	// Scope predicates ride in the same statement as the by-ID lookup.
	require.Contains(t, db.lastSQL, "FROM backlog_items")
	require.Contains(t, db.lastSQL, "id = $1")
	require.Contains(t, db.lastSQL, "tenant_id = $2")
	require.Contains(t, db.lastSQL, "program_id = $3")
	require.Contains(t, db.lastSQL, "project_id = $4")
	require.Equal(t, []any{int64(5), int64(7), int64(11), int64(22)}, db.lastArgs)
}

func TestGetForeignScopeIsNotFound(t *testing.T) {
	// The row exists under tenant 7 but the filter excludes it for tenant 8,
	// so the database returns no rows. The caller sees plain not-found, never
	// a permission error that would confirm the ID exists elsewhere.
	db := &fakeQuerier{}
	g := New(db, nil)

	_, err := g.Get(context.Background(), KindRequirement, 5, scope.Chain{TenantID: 8, ProgramID: 12, ProjectID: 30})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.NotErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestGetRequiresResolvedScope(t *testing.T) {
	g := New(&fakeQuerier{}, nil)

	_, err := g.Get(context.Background(), KindRequirement, 5, scope.Chain{})
	require.ErrorIs(t, err, shared.ErrScopeMismatch)
}

func TestGetUnknownKind(t *testing.T) {
	g := New(&fakeQuerier{}, nil)

	_, err := g.Get(context.Background(), Kind("invoice"), 5, fullChain)
	require.Error(t, err)
}

func TestGetStoreFailureFailsClosed(t *testing.T) {
	db := &fakeQuerier{rowErr: errors.New("connection reset")}
	g := New(db, nil)

	_, err := g.Get(context.Background(), KindRequirement, 5, fullChain)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetProgramScopedKindSkipsProjectPredicate(t *testing.T) {
	db := &fakeQuerier{rows: []Entity{{ID: 9, TenantID: 7, ProgramID: 11, Title: "inception", Status: "scheduled"}}}
	g := New(db, nil)

	entity, err := g.Get(context.Background(), KindWorkshop, 9, fullChain)
	require.NoError(t, err)
	require.Zero(t, entity.ProjectID)
	require.Contains(t, db.lastSQL, "FROM workshops")
	require.NotContains(t, db.lastSQL, "AND project_id")
}

func TestListMandatoryScopeDepth(t *testing.T) {
	g := New(&fakeQuerier{}, nil)
	ctx := context.Background()

	// Requirements list at project depth: a program-depth chain is rejected,
	// never widened to the whole program.
	_, err := g.List(ctx, KindRequirement, scope.Chain{TenantID: 7, ProgramID: 11}, Filters{})
	require.ErrorIs(t, err, shared.ErrScopeMismatch)

	// Workshops list at program depth: tenant-only is not enough.
	_, err = g.List(ctx, KindWorkshop, scope.Chain{TenantID: 7}, Filters{})
	require.ErrorIs(t, err, shared.ErrScopeMismatch)

	_, err = g.List(ctx, KindWorkshop, scope.Chain{ProgramID: 11}, Filters{})
	require.ErrorIs(t, err, shared.ErrScopeMismatch)
}

func TestListPaging(t *testing.T) {
	rows := make([]Entity, 21)
	for i := range rows {
		rows[i] = Entity{ID: int64(i + 1), TenantID: 7, ProgramID: 11, ProjectID: 22, Title: "item", Status: "open"}
	}
	db := &fakeQuerier{rows: rows}
	g := New(db, nil)

	result, err := g.List(context.Background(), KindRequirement, fullChain, Filters{})
	require.NoError(t, err)
	require.Len(t, result.Entities, 20)
	require.True(t, result.HasNext)
	require.Equal(t, 1, result.Page)
	require.Equal(t, 20, result.PageSize)
	for _, e := range result.Entities {
		require.Equal(t, KindRequirement, e.Kind)
	}
}

func TestListPageSizeCap(t *testing.T) {
	db := &fakeQuerier{}
	g := New(db, nil)

	result, err := g.List(context.Background(), KindRequirement, fullChain, Filters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 100, result.PageSize)
	// limit is pageSize+1 for next-page detection.
	require.EqualValues(t, 101, db.lastArgs[len(db.lastArgs)-1])
}

func TestListFilterPredicates(t *testing.T) {
	db := &fakeQuerier{}
	g := New(db, nil)

	_, err := g.List(context.Background(), KindDefect, fullChain, Filters{Status: "open", Query: "timeout"})
	require.NoError(t, err)
	require.Contains(t, db.lastSQL, "FROM defects")
	require.Contains(t, db.lastSQL, "status = $")
	require.Contains(t, db.lastSQL, "title ILIKE $")
	require.Contains(t, db.lastArgs, "%timeout%")
}

func TestListStoreFailureFailsClosed(t *testing.T) {
	db := &fakeQuerier{queryErr: errors.New("connection reset")}
	g := New(db, nil)

	_, err := g.List(context.Background(), KindRequirement, fullChain, Filters{})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestKindRegistryClosed(t *testing.T) {
	require.Len(t, Kinds(), 5)
	for _, k := range Kinds() {
		spec, err := specFor(k)
		require.NoError(t, err)
		require.NotEmpty(t, spec.table)
		require.True(t, spec.listLevel == scope.LevelProject || spec.listLevel == scope.LevelProgram)
	}
	_, err := specFor(Kind("purchase_order"))
	require.Error(t, err)
}
