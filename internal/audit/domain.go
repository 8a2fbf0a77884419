package audit

import "time"

// Actions recorded for assignment lifecycle transitions.
const (
	ActionRoleAssigned = "user_role.assigned"
	ActionRoleRemoved  = "user_role.removed"
	ActionRoleExpired  = "user_role.expired"
)

// Entry is an immutable record of an assignment or permission mutation.
// Entries are append-only: never updated, never deleted.
type Entry struct {
	ID     int64
	Actor  string // who performed the mutation (admin, importer, sweep)
	Action string
	// Scope snapshot at mutation time.
	TenantID  int64
	ProgramID int64
	ProjectID int64
	// UserID is the actor the assignment grants to; Role the granted role.
	UserID int64
	Role   string
	// Effective window of the assignment at mutation time.
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	At            time.Time
	// Digest chains this entry to its predecessor for tamper evidence.
	Digest []byte
}
