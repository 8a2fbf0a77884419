package shared

import "errors"

var (
	// ErrNotFound indicates resource not found. Scoped lookups return it for
	// cross-tenant hits too, so callers cannot distinguish "missing" from
	// "not yours".
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates the actor's roles lack the capability.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrScopeMismatch indicates a malformed or unresolvable scope chain.
	ErrScopeMismatch = errors.New("scope mismatch")
	// ErrInvalidInput marks a malformed request value the caller must fix,
	// such as an unknown permission or role name.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists indicates a uniqueness conflict on creation.
	ErrAlreadyExists = errors.New("already exists")
	// ErrExpiredAssignment marks an assignment outside its validity window.
	// Internal only; evaluation converts it to a deny before callers see it.
	ErrExpiredAssignment = errors.New("assignment expired")
)
