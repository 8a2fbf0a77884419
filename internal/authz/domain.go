package authz

import (
	"time"

	"github.com/meridian-works/meridian/internal/scope"
)

// Role is a named bundle of permissions.
type Role string

const (
	// RolePlatformAdmin bypasses permission checks everywhere.
	RolePlatformAdmin Role = "platform_admin"
	// RoleTenantAdmin bypasses permission checks within its own tenant only.
	RoleTenantAdmin Role = "tenant_admin"

	RoleProgramManager Role = "program_manager"
	RoleProjectMember  Role = "project_member"
	RoleViewer         Role = "viewer"
)

// rolePermissions is the role catalog. Superuser roles are intentionally
// absent: they allow everything within their matching scope without
// enumerating capabilities.
var rolePermissions = map[Role]map[Permission]struct{}{
	RoleProgramManager: permissionSet(
		PermProgramsView, PermProgramsManage,
		PermProjectsView, PermProjectsManage,
		PermRequirementsRead, PermRequirementsEdit,
		PermWorkshopsView, PermWorkshopsManage,
		PermTestsView, PermTestsExecute,
		PermDefectsView, PermDefectsManage,
		PermRaidView, PermRaidManage,
		PermAssignmentsView,
	),
	RoleProjectMember: permissionSet(
		PermProjectsView,
		PermRequirementsRead, PermRequirementsEdit,
		PermWorkshopsView,
		PermTestsView, PermTestsExecute,
		PermDefectsView, PermDefectsManage,
		PermRaidView,
	),
	RoleViewer: permissionSet(
		PermProgramsView, PermProjectsView,
		PermRequirementsRead, PermWorkshopsView,
		PermTestsView, PermDefectsView, PermRaidView,
	),
}

func permissionSet(perms ...Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Valid reports whether the role is part of the catalog.
func (r Role) Valid() bool {
	if r.Superuser() {
		return true
	}
	_, ok := rolePermissions[r]
	return ok
}

// Superuser reports whether the role bypasses permission checks within its
// matching scope.
func (r Role) Superuser() bool {
	return r == RolePlatformAdmin || r == RoleTenantAdmin
}

// Grants reports whether the role's bundle includes the permission. Superuser
// roles grant everything; the scope constraint is applied by the evaluator.
func (r Role) Grants(p Permission) bool {
	if r.Superuser() {
		return true
	}
	_, ok := rolePermissions[r][p]
	return ok
}

// Status names the lifecycle state of an assignment.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// RoleAssignment grants an actor a role at a concrete scope for a time window.
// Assignments are never physically deleted, only deactivated.
type RoleAssignment struct {
	ID       int64
	ActorID  int64
	Role     Role
	Level    scope.Level
	ScopeID  int64 // zero for global level
	StartsAt time.Time
	EndsAt   *time.Time
	IsActive bool
	// RevokedAt is set by an explicit admin revoke; expiry leaves it nil.
	RevokedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Status derives the lifecycle state at the given instant.
func (a RoleAssignment) Status(now time.Time) Status {
	if a.RevokedAt != nil {
		return StatusRevoked
	}
	if a.EndsAt != nil && !now.Before(*a.EndsAt) {
		return StatusExpired
	}
	if now.Before(a.StartsAt) {
		return StatusPending
	}
	if !a.IsActive {
		return StatusExpired
	}
	return StatusActive
}

// Effective reports whether the assignment grants anything at the given
// instant: active flag set and starts_at <= now < ends_at.
func (a RoleAssignment) Effective(now time.Time) bool {
	return a.Status(now) == StatusActive
}

// Decision is the outcome of a permission evaluation.
type Decision struct {
	Allow bool
	// MatchedAssignments lists the IDs of assignments whose scope covered the
	// target, whether or not their role granted the permission.
	MatchedAssignments []int64
}
