package scope

import "context"

// Repository provides the lookups the resolver needs. Implementations return
// shared.ErrNotFound when the row does not exist.
type Repository interface {
	// ProjectChain resolves a project's full ownership chain in one query.
	ProjectChain(ctx context.Context, projectID int64) (Chain, error)
	// ProgramTenant returns the owning tenant of a program.
	ProgramTenant(ctx context.Context, programID int64) (int64, error)
	// TenantExists reports whether the tenant exists.
	TenantExists(ctx context.Context, tenantID int64) (bool, error)
}
