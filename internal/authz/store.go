package authz

import (
	"context"
	"time"
)

// Store holds role assignments. Implementations must support many concurrent
// readers; writes to a single assignment are serialized by the database row.
type Store interface {
	// ListActive returns only assignments currently within their validity
	// window. Expired, revoked and pending rows are excluded, not flagged.
	ListActive(ctx context.Context, actorID int64, now time.Time) ([]RoleAssignment, error)
	// ListByActor returns every assignment for an actor regardless of state,
	// for the admin listing surface.
	ListByActor(ctx context.Context, actorID int64) ([]RoleAssignment, error)
	// Get fetches a single assignment. Returns shared.ErrNotFound on miss.
	Get(ctx context.Context, id int64) (RoleAssignment, error)
	// Create inserts a new assignment and returns it with its ID set.
	Create(ctx context.Context, a RoleAssignment) (RoleAssignment, error)
	// Revoke deactivates an assignment. The bool reports whether this call
	// changed the row; revoking an already-revoked assignment is a no-op.
	Revoke(ctx context.Context, id int64, now time.Time) (RoleAssignment, bool, error)
	// ExpireDue flips is_active off for every active assignment whose ends_at
	// has passed, returning only the rows changed by this call.
	ExpireDue(ctx context.Context, now time.Time) ([]RoleAssignment, error)
}
