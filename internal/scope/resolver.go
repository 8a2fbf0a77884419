package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-works/meridian/internal/shared"
)

// Resolver turns caller-supplied scopes into verified ownership chains.
// An inconsistent or unresolvable combination always fails with
// shared.ErrScopeMismatch; it never silently defaults to a broader scope.
type Resolver struct {
	repo Repository
}

// NewResolver constructs a resolver over the hierarchy repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// ResolveProject derives the full chain owning a project.
func (r *Resolver) ResolveProject(ctx context.Context, projectID int64) (Chain, error) {
	if projectID == 0 {
		return Chain{}, fmt.Errorf("%w: project id required", shared.ErrScopeMismatch)
	}
	chain, err := r.repo.ProjectChain(ctx, projectID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Chain{}, fmt.Errorf("%w: project %d has no resolvable chain", shared.ErrScopeMismatch, projectID)
		}
		return Chain{}, err
	}
	return chain, nil
}

// ResolveScope validates a caller-supplied scope against the stored hierarchy
// and returns the verified chain. Every supplied component must agree with the
// derived parentage: a project under a different program, or a program under a
// different tenant, is a mismatch the caller has to fix.
func (r *Resolver) ResolveScope(ctx context.Context, s Scope) (Chain, error) {
	if s.TenantID == 0 {
		return Chain{}, fmt.Errorf("%w: tenant id required", shared.ErrScopeMismatch)
	}

	if s.ProjectID != 0 {
		if s.ProgramID == 0 {
			return Chain{}, fmt.Errorf("%w: project %d supplied without a program", shared.ErrScopeMismatch, s.ProjectID)
		}
		chain, err := r.ResolveProject(ctx, s.ProjectID)
		if err != nil {
			return Chain{}, err
		}
		if chain.ProgramID != s.ProgramID || chain.TenantID != s.TenantID {
			return Chain{}, fmt.Errorf("%w: project %d is not owned by tenant %d / program %d",
				shared.ErrScopeMismatch, s.ProjectID, s.TenantID, s.ProgramID)
		}
		return chain, nil
	}

	if s.ProgramID != 0 {
		tenantID, err := r.repo.ProgramTenant(ctx, s.ProgramID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Chain{}, fmt.Errorf("%w: program %d does not exist", shared.ErrScopeMismatch, s.ProgramID)
			}
			return Chain{}, err
		}
		if tenantID != s.TenantID {
			return Chain{}, fmt.Errorf("%w: program %d is not owned by tenant %d", shared.ErrScopeMismatch, s.ProgramID, s.TenantID)
		}
		return Chain{TenantID: s.TenantID, ProgramID: s.ProgramID}, nil
	}

	exists, err := r.repo.TenantExists(ctx, s.TenantID)
	if err != nil {
		return Chain{}, err
	}
	if !exists {
		return Chain{}, fmt.Errorf("%w: tenant %d does not exist", shared.ErrScopeMismatch, s.TenantID)
	}
	return Chain{TenantID: s.TenantID}, nil
}

// ChainForAnchor derives the ownership chain of an assignment anchor. Global
// anchors resolve to the empty chain.
func (r *Resolver) ChainForAnchor(ctx context.Context, level Level, scopeID int64) (Chain, error) {
	switch level {
	case LevelGlobal:
		return Chain{}, nil
	case LevelTenant:
		return r.ResolveScope(ctx, Scope{TenantID: scopeID})
	case LevelProgram:
		tenantID, err := r.repo.ProgramTenant(ctx, scopeID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Chain{}, fmt.Errorf("%w: program %d does not exist", shared.ErrScopeMismatch, scopeID)
			}
			return Chain{}, err
		}
		return Chain{TenantID: tenantID, ProgramID: scopeID}, nil
	case LevelProject:
		return r.ResolveProject(ctx, scopeID)
	default:
		return Chain{}, fmt.Errorf("%w: unknown level %q", shared.ErrScopeMismatch, level)
	}
}
