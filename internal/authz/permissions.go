package authz

// Permission is an atomic capability identifier. The set below is closed:
// grants naming anything else are rejected at creation time instead of
// silently never matching during evaluation.
type Permission string

// Platform permissions grouped by workflow area.
const (
	PermProgramsView   Permission = "programs.view"
	PermProgramsManage Permission = "programs.manage"

	PermProjectsView   Permission = "projects.view"
	PermProjectsManage Permission = "projects.manage"

	PermRequirementsRead Permission = "requirements.read"
	PermRequirementsEdit Permission = "requirements.edit"

	PermWorkshopsView   Permission = "workshops.view"
	PermWorkshopsManage Permission = "workshops.manage"

	PermTestsView    Permission = "tests.view"
	PermTestsExecute Permission = "tests.execute"

	PermDefectsView   Permission = "defects.view"
	PermDefectsManage Permission = "defects.manage"

	PermRaidView   Permission = "raid.view"
	PermRaidManage Permission = "raid.manage"

	PermAssignmentsView   Permission = "assignments.view"
	PermAssignmentsManage Permission = "assignments.manage"

	PermAuditView Permission = "audit.view"
)

var permissionRegistry = map[Permission]struct{}{
	PermProgramsView:      {},
	PermProgramsManage:    {},
	PermProjectsView:      {},
	PermProjectsManage:    {},
	PermRequirementsRead:  {},
	PermRequirementsEdit:  {},
	PermWorkshopsView:     {},
	PermWorkshopsManage:   {},
	PermTestsView:         {},
	PermTestsExecute:      {},
	PermDefectsView:       {},
	PermDefectsManage:     {},
	PermRaidView:          {},
	PermRaidManage:        {},
	PermAssignmentsView:   {},
	PermAssignmentsManage: {},
	PermAuditView:         {},
}

// Valid reports whether the permission is part of the closed registry.
func (p Permission) Valid() bool {
	_, ok := permissionRegistry[p]
	return ok
}

// AllPermissions returns every registered permission. Used by seeding and the
// permissions listing endpoint; evaluation never iterates this.
func AllPermissions() []Permission {
	perms := make([]Permission, 0, len(permissionRegistry))
	for p := range permissionRegistry {
		perms = append(perms, p)
	}
	return perms
}
