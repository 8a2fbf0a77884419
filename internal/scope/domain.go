package scope

import "time"

// Level identifies a rung of the ownership hierarchy, broadest first.
type Level string

const (
	LevelGlobal  Level = "global"
	LevelTenant  Level = "tenant"
	LevelProgram Level = "program"
	LevelProject Level = "project"
)

var levelRank = map[Level]int{
	LevelGlobal:  0,
	LevelTenant:  1,
	LevelProgram: 2,
	LevelProject: 3,
}

// Valid reports whether the level is one of the four known rungs.
func (l Level) Valid() bool {
	_, ok := levelRank[l]
	return ok
}

// Covers reports whether l is an ancestor-or-equal of other in the hierarchy.
func (l Level) Covers(other Level) bool {
	lr, ok := levelRank[l]
	if !ok {
		return false
	}
	or, ok := levelRank[other]
	if !ok {
		return false
	}
	return lr <= or
}

// Tenant is the top-level isolation unit. Identity is immutable once created.
type Tenant struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Program belongs to exactly one tenant; tenant_id is immutable after creation.
type Program struct {
	ID        int64
	TenantID  int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Project belongs to exactly one program. At most one project per program
// carries the default flag.
type Project struct {
	ID        int64
	ProgramID int64
	Name      string
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Scope is a caller-supplied (tenant, program?, project?) combination. Zero
// means "not supplied" for the optional components.
type Scope struct {
	TenantID  int64
	ProgramID int64
	ProjectID int64
}

// Level returns the narrowest rung the scope addresses.
func (s Scope) Level() Level {
	switch {
	case s.ProjectID != 0:
		return LevelProject
	case s.ProgramID != 0:
		return LevelProgram
	case s.TenantID != 0:
		return LevelTenant
	default:
		return LevelGlobal
	}
}

// Chain is a fully resolved ownership chain for a request target. Components
// above the requested depth are populated; ones below it stay zero (a chain
// resolved for a program-level target has no project component).
type Chain struct {
	TenantID  int64
	ProgramID int64
	ProjectID int64
}

// Level returns the depth the chain was resolved to.
func (c Chain) Level() Level {
	switch {
	case c.ProjectID != 0:
		return LevelProject
	case c.ProgramID != 0:
		return LevelProgram
	case c.TenantID != 0:
		return LevelTenant
	default:
		return LevelGlobal
	}
}

// CoveredBy reports whether an assignment anchored at (level, scopeID) is an
// ancestor-or-equal of this chain. A tenant-scoped anchor covers every program
// and project under that tenant; a project-scoped anchor covers only that
// exact project.
func (c Chain) CoveredBy(level Level, scopeID int64) bool {
	switch level {
	case LevelGlobal:
		return true
	case LevelTenant:
		return c.TenantID != 0 && scopeID == c.TenantID
	case LevelProgram:
		return c.ProgramID != 0 && scopeID == c.ProgramID
	case LevelProject:
		return c.ProjectID != 0 && scopeID == c.ProjectID
	default:
		return false
	}
}
