package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/meridian-works/meridian/internal/platform/httpx"
	"github.com/meridian-works/meridian/internal/scope"
	"github.com/meridian-works/meridian/internal/shared"
)

// Middleware wires authorization checks into HTTP handlers. The target scope
// is read from request headers set by the routing edge; handlers behind the
// middleware can assume the permission holds for that scope.
type Middleware struct {
	Evaluator *Evaluator
	Logger    *slog.Logger
}

// Header names carrying the request's target scope.
const (
	HeaderTenantID  = "X-Meridian-Tenant"
	HeaderProgramID = "X-Meridian-Program"
	HeaderProjectID = "X-Meridian-Project"
)

// Require ensures the current actor holds the permission at the request's
// target scope. A missing actor or scope is a 403/400, never a pass-through.
func (m Middleware) Require(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrPermissionDenied)
				return
			}
			target, err := scopeFromRequest(r)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			decision, err := m.Evaluator.Evaluate(r.Context(), actorID, perm, target)
			if err != nil {
				if !errors.Is(err, shared.ErrScopeMismatch) && m.Logger != nil {
					m.Logger.Error("authz middleware", slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			if !decision.Allow {
				httpx.RespondError(w, shared.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func scopeFromRequest(r *http.Request) (scope.Scope, error) {
	var s scope.Scope
	var err error
	if s.TenantID, err = headerInt(r, HeaderTenantID); err != nil {
		return scope.Scope{}, err
	}
	if s.ProgramID, err = headerInt(r, HeaderProgramID); err != nil {
		return scope.Scope{}, err
	}
	if s.ProjectID, err = headerInt(r, HeaderProjectID); err != nil {
		return scope.Scope{}, err
	}
	return s, nil
}

func headerInt(r *http.Request, name string) (int64, error) {
	raw := r.Header.Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, shared.ErrScopeMismatch
	}
	return v, nil
}
