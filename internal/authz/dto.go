package authz

import (
	"time"

	"github.com/meridian-works/meridian/internal/scope"
)

type scopeRequest struct {
	TenantID  int64 `json:"tenant_id" validate:"required_without=Global"`
	ProgramID int64 `json:"program_id"`
	ProjectID int64 `json:"project_id"`
	Global    bool  `json:"global"`
}

func (s scopeRequest) toScope() scope.Scope {
	return scope.Scope{TenantID: s.TenantID, ProgramID: s.ProgramID, ProjectID: s.ProjectID}
}

type evaluateRequest struct {
	ActorID    int64        `json:"actor_id" validate:"required"`
	Permission string       `json:"permission" validate:"required"`
	Scope      scopeRequest `json:"scope" validate:"required"`
}

type evaluateResponse struct {
	Allow              bool    `json:"allow"`
	MatchedAssignments []int64 `json:"matched_assignments,omitempty"`
}

type assignRequest struct {
	UserID   int64        `json:"user_id" validate:"required"`
	Role     string       `json:"role" validate:"required"`
	Scope    scopeRequest `json:"scope"`
	StartsAt *time.Time   `json:"starts_at"`
	EndsAt   *time.Time   `json:"ends_at"`
}

type assignmentResponse struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Role      string     `json:"role"`
	Level     string     `json:"scope_level"`
	ScopeID   int64      `json:"scope_id,omitempty"`
	StartsAt  time.Time  `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

func toAssignmentResponse(a RoleAssignment, now time.Time) assignmentResponse {
	return assignmentResponse{
		ID:        a.ID,
		UserID:    a.ActorID,
		Role:      string(a.Role),
		Level:     string(a.Level),
		ScopeID:   a.ScopeID,
		StartsAt:  a.StartsAt,
		EndsAt:    a.EndsAt,
		Status:    string(a.Status(now)),
		CreatedAt: a.CreatedAt,
	}
}
