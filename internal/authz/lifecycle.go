package authz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-works/meridian/internal/audit"
	"github.com/meridian-works/meridian/internal/scope"
	"github.com/meridian-works/meridian/internal/shared"
)

// LifecycleResolver is the resolver surface the lifecycle manager needs.
type LifecycleResolver interface {
	ResolveScope(ctx context.Context, s scope.Scope) (scope.Chain, error)
	ChainForAnchor(ctx context.Context, level scope.Level, scopeID int64) (scope.Chain, error)
}

// AssignInput describes a grant request. GrantedBy names the administrative
// actor for the audit trail (onboarding, bulk import, manual grant).
type AssignInput struct {
	UserID    int64
	Role      Role
	Scope     scope.Scope
	Global    bool
	StartsAt  time.Time
	EndsAt    *time.Time
	GrantedBy string
}

// Manager drives the assignment lifecycle: grant, revoke, expiry sweep.
// Assignments are never physically deleted; every transition writes one audit
// entry synchronously before the call returns.
type Manager struct {
	store    Store
	resolver LifecycleResolver
	recorder audit.Recorder
	cache    *DecisionCache
	logger   *slog.Logger
	clock    func() time.Time
}

// NewManager constructs a lifecycle manager.
func NewManager(store Store, resolver LifecycleResolver, recorder audit.Recorder, cache *DecisionCache, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		resolver: resolver,
		recorder: recorder,
		cache:    cache,
		logger:   logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Assign validates and creates a role assignment. A grant naming an unknown
// role, an unresolvable scope chain or an inverted time window is rejected
// here, at creation time, never tolerated at evaluation time.
func (m *Manager) Assign(ctx context.Context, in AssignInput) (RoleAssignment, error) {
	if in.UserID == 0 {
		return RoleAssignment{}, fmt.Errorf("%w: user id required", shared.ErrInvalidInput)
	}
	if !in.Role.Valid() {
		return RoleAssignment{}, fmt.Errorf("%w: unknown role %q", shared.ErrInvalidInput, in.Role)
	}
	if in.Global && in.Role == RoleTenantAdmin {
		// tenant_admin's bypass is bounded by its anchoring tenant. A global
		// anchor would cover every chain, so the combination is rejected at
		// grant time.
		return RoleAssignment{}, fmt.Errorf("%w: tenant_admin must be anchored at tenant scope or below", shared.ErrScopeMismatch)
	}

	now := m.clock()
	startsAt := in.StartsAt
	if startsAt.IsZero() {
		startsAt = now
	}
	if in.EndsAt != nil && !in.EndsAt.After(startsAt) {
		return RoleAssignment{}, fmt.Errorf("%w: ends_at must be after starts_at", shared.ErrInvalidInput)
	}
	if in.EndsAt != nil && !in.EndsAt.After(now) {
		return RoleAssignment{}, fmt.Errorf("%w: grant window closed before creation", shared.ErrExpiredAssignment)
	}

	level := scope.LevelGlobal
	var scopeID int64
	var chain scope.Chain
	if in.Global {
		if in.Scope != (scope.Scope{}) {
			return RoleAssignment{}, fmt.Errorf("%w: global grant must not carry a scope", shared.ErrScopeMismatch)
		}
	} else {
		resolved, err := m.resolver.ResolveScope(ctx, in.Scope)
		if err != nil {
			return RoleAssignment{}, err
		}
		chain = resolved
		level = chain.Level()
		switch level {
		case scope.LevelTenant:
			scopeID = chain.TenantID
		case scope.LevelProgram:
			scopeID = chain.ProgramID
		case scope.LevelProject:
			scopeID = chain.ProjectID
		}
	}

	created, err := m.store.Create(ctx, RoleAssignment{
		ActorID:  in.UserID,
		Role:     in.Role,
		Level:    level,
		ScopeID:  scopeID,
		StartsAt: startsAt,
		EndsAt:   in.EndsAt,
		IsActive: true,
	})
	if err != nil {
		return RoleAssignment{}, err
	}

	if err := m.record(ctx, in.GrantedBy, audit.ActionRoleAssigned, created, chain); err != nil {
		return RoleAssignment{}, err
	}
	m.cache.Invalidate(ctx, created.ActorID)
	return created, nil
}

// Revoke deactivates an assignment. Revoking twice is safe and writes exactly
// one audit entry: the second call observes no state change and records
// nothing.
func (m *Manager) Revoke(ctx context.Context, id int64, revokedBy string) (RoleAssignment, error) {
	a, changed, err := m.store.Revoke(ctx, id, m.clock())
	if err != nil {
		return RoleAssignment{}, err
	}
	if !changed {
		return a, nil
	}
	chain := m.anchorChain(ctx, a)
	if err := m.record(ctx, revokedBy, audit.ActionRoleRemoved, a, chain); err != nil {
		return RoleAssignment{}, err
	}
	m.cache.Invalidate(ctx, a.ActorID)
	return a, nil
}

// SweepExpired deactivates every assignment whose ends_at has passed. The
// store only reports rows this call changed, so re-running the sweep writes
// no duplicate audit entries.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	expired, err := m.store.ExpireDue(ctx, m.clock())
	if err != nil {
		return 0, err
	}
	for _, a := range expired {
		chain := m.anchorChain(ctx, a)
		if err := m.record(ctx, "system:expiry_sweep", audit.ActionRoleExpired, a, chain); err != nil {
			return 0, err
		}
		m.cache.Invalidate(ctx, a.ActorID)
	}
	return len(expired), nil
}

func (m *Manager) record(ctx context.Context, actor, action string, a RoleAssignment, chain scope.Chain) error {
	if m.recorder == nil {
		return nil
	}
	return m.recorder.Record(ctx, audit.Entry{
		Actor:         actor,
		Action:        action,
		TenantID:      chain.TenantID,
		ProgramID:     chain.ProgramID,
		ProjectID:     chain.ProjectID,
		UserID:        a.ActorID,
		Role:          string(a.Role),
		EffectiveFrom: a.StartsAt,
		EffectiveTo:   a.EndsAt,
		At:            m.clock(),
	})
}

// anchorChain re-derives the scope snapshot for audit. Resolution failures
// degrade to an anchor-only snapshot rather than blocking the transition.
func (m *Manager) anchorChain(ctx context.Context, a RoleAssignment) scope.Chain {
	chain, err := m.resolver.ChainForAnchor(ctx, a.Level, a.ScopeID)
	if err != nil {
		if m.logger != nil {
			m.logger.WarnContext(ctx, "resolve anchor for audit",
				slog.Int64("assignment_id", a.ID), slog.Any("error", err))
		}
		switch a.Level {
		case scope.LevelTenant:
			return scope.Chain{TenantID: a.ScopeID}
		case scope.LevelProgram:
			return scope.Chain{ProgramID: a.ScopeID}
		case scope.LevelProject:
			return scope.Chain{ProjectID: a.ScopeID}
		}
		return scope.Chain{}
	}
	return chain
}
