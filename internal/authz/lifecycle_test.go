package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-works/meridian/internal/audit"
	"github.com/meridian-works/meridian/internal/scope"
	"github.com/meridian-works/meridian/internal/shared"
)

type memoryRecorder struct {
	entries []audit.Entry
}

func (r *memoryRecorder) Record(ctx context.Context, entry audit.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func newTestManager(store Store, recorder *memoryRecorder) *Manager {
	return NewManager(store, staticResolver{}, recorder, nil, nil)
}

func TestAssignResolvesAnchor(t *testing.T) {
	store := &memoryStore{}
	recorder := &memoryRecorder{}
	m := newTestManager(store, recorder)

	created, err := m.Assign(context.Background(), AssignInput{
		UserID:    101,
		Role:      RoleProjectMember,
		Scope:     scope.Scope{TenantID: 7, ProgramID: 11, ProjectID: 22},
		GrantedBy: "user:1",
	})
	require.NoError(t, err)
	require.Equal(t, scope.LevelProject, created.Level)
	require.EqualValues(t, 22, created.ScopeID)
	require.True(t, created.IsActive)
	require.False(t, created.StartsAt.IsZero())

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	require.Equal(t, audit.ActionRoleAssigned, entry.Action)
	require.Equal(t, "user:1", entry.Actor)
	require.EqualValues(t, 7, entry.TenantID)
	require.EqualValues(t, 11, entry.ProgramID)
	require.EqualValues(t, 22, entry.ProjectID)
	require.EqualValues(t, 101, entry.UserID)
	require.Equal(t, string(RoleProjectMember), entry.Role)
}

func TestAssignTenantAnchor(t *testing.T) {
	store := &memoryStore{}
	m := newTestManager(store, &memoryRecorder{})

	created, err := m.Assign(context.Background(), AssignInput{
		UserID: 101,
		Role:   RoleTenantAdmin,
		Scope:  scope.Scope{TenantID: 7},
	})
	require.NoError(t, err)
	require.Equal(t, scope.LevelTenant, created.Level)
	require.EqualValues(t, 7, created.ScopeID)
}

func TestAssignGlobalGrant(t *testing.T) {
	store := &memoryStore{}
	m := newTestManager(store, &memoryRecorder{})
	ctx := context.Background()

	created, err := m.Assign(ctx, AssignInput{
		UserID: 101,
		Role:   RolePlatformAdmin,
		Global: true,
	})
	require.NoError(t, err)
	require.Equal(t, scope.LevelGlobal, created.Level)
	require.Zero(t, created.ScopeID)

	// A global grant carrying a scope is contradictory, not silently widened.
	_, err = m.Assign(ctx, AssignInput{
		UserID: 101,
		Role:   RolePlatformAdmin,
		Global: true,
		Scope:  scope.Scope{TenantID: 7},
	})
	require.ErrorIs(t, err, shared.ErrScopeMismatch)
}

func TestAssignRejectsGlobalTenantAdmin(t *testing.T) {
	store := &memoryStore{}
	recorder := &memoryRecorder{}
	m := newTestManager(store, recorder)

	// A tenant_admin anchored globally would bypass checks in every tenant,
	// not just its own. The combination is rejected at grant time.
	_, err := m.Assign(context.Background(), AssignInput{
		UserID: 101,
		Role:   RoleTenantAdmin,
		Global: true,
	})
	require.ErrorIs(t, err, shared.ErrScopeMismatch)
	require.Empty(t, store.assignments)
	require.Empty(t, recorder.entries)
}

func TestAssignRejectsInvalidInput(t *testing.T) {
	store := &memoryStore{}
	m := newTestManager(store, &memoryRecorder{})
	ctx := context.Background()

	_, err := m.Assign(ctx, AssignInput{Role: RoleViewer, Scope: scope.Scope{TenantID: 7}})
	require.ErrorIs(t, err, shared.ErrInvalidInput, "missing user id")

	_, err = m.Assign(ctx, AssignInput{UserID: 101, Role: Role("superhero"), Scope: scope.Scope{TenantID: 7}})
	require.ErrorIs(t, err, shared.ErrInvalidInput, "unknown role")

	// Unresolvable anchor scope fails at creation, never at evaluation.
	_, err = m.Assign(ctx, AssignInput{UserID: 101, Role: RoleViewer, Scope: scope.Scope{TenantID: 7, ProgramID: 12}})
	require.ErrorIs(t, err, shared.ErrScopeMismatch)

	_, err = m.Assign(ctx, AssignInput{UserID: 101, Role: RoleViewer})
	require.ErrorIs(t, err, shared.ErrScopeMismatch)
	require.Empty(t, store.assignments)
}

func TestAssignRejectsInvertedWindow(t *testing.T) {
	m := newTestManager(&memoryStore{}, &memoryRecorder{})
	starts := time.Now().UTC()
	ends := starts.Add(-time.Hour)

	_, err := m.Assign(context.Background(), AssignInput{
		UserID:   101,
		Role:     RoleViewer,
		Scope:    scope.Scope{TenantID: 7},
		StartsAt: starts,
		EndsAt:   &ends,
	})
	require.Error(t, err)
}

func TestAssignRejectsClosedWindow(t *testing.T) {
	m := newTestManager(&memoryStore{}, &memoryRecorder{})
	starts := time.Now().UTC().Add(-2 * time.Hour)
	ends := starts.Add(time.Hour)

	// The window is internally consistent but already over.
	_, err := m.Assign(context.Background(), AssignInput{
		UserID:   101,
		Role:     RoleViewer,
		Scope:    scope.Scope{TenantID: 7},
		StartsAt: starts,
		EndsAt:   &ends,
	})
	require.ErrorIs(t, err, shared.ErrExpiredAssignment)
}

func TestRevokeIsIdempotent(t *testing.T) {
	store := &memoryStore{}
	recorder := &memoryRecorder{}
	m := newTestManager(store, recorder)
	ctx := context.Background()

	created, err := m.Assign(ctx, AssignInput{
		UserID: 101,
		Role:   RoleProjectMember,
		Scope:  scope.Scope{TenantID: 7, ProgramID: 11, ProjectID: 22},
	})
	require.NoError(t, err)
	require.Len(t, recorder.entries, 1)

	revoked, err := m.Revoke(ctx, created.ID, "user:2")
	require.NoError(t, err)
	require.NotNil(t, revoked.RevokedAt)
	require.False(t, revoked.IsActive)
	require.Len(t, recorder.entries, 2)
	require.Equal(t, audit.ActionRoleRemoved, recorder.entries[1].Action)

	// Second revoke observes no state change and records nothing.
	again, err := m.Revoke(ctx, created.ID, "user:2")
	require.NoError(t, err)
	require.NotNil(t, again.RevokedAt)
	require.Len(t, recorder.entries, 2)
}

func TestRevokeUnknownAssignment(t *testing.T) {
	m := newTestManager(&memoryStore{}, &memoryRecorder{})

	_, err := m.Revoke(context.Background(), 999, "user:2")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSweepExpired(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	expired := activeAssignment(1, 101, RoleProjectMember, scope.LevelProject, 22)
	expired.EndsAt = &past
	open := activeAssignment(2, 102, RoleViewer, scope.LevelTenant, 7)
	bounded := activeAssignment(3, 103, RoleViewer, scope.LevelTenant, 7)
	bounded.EndsAt = &future

	store := &memoryStore{assignments: []RoleAssignment{expired, open, bounded}, nextID: 3}
	recorder := &memoryRecorder{}
	m := newTestManager(store, recorder)
	ctx := context.Background()

	count, err := m.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Len(t, recorder.entries, 1)
	require.Equal(t, audit.ActionRoleExpired, recorder.entries[0].Action)
	require.Equal(t, "system:expiry_sweep", recorder.entries[0].Actor)

	// The sweep is idempotent: a re-run changes nothing and audits nothing.
	count, err = m.SweepExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Len(t, recorder.entries, 1)

	// The expired row is deactivated but not revoked.
	swept, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.False(t, swept.IsActive)
	require.Nil(t, swept.RevokedAt)
	require.Equal(t, StatusExpired, swept.Status(now))
}
