package authz

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-works/meridian/internal/platform/httpx"
	"github.com/meridian-works/meridian/internal/shared"
)

// Handler exposes the decision API and the assignment admin API.
type Handler struct {
	logger    *slog.Logger
	evaluator *Evaluator
	manager   *Manager
	store     Store
	mw        Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, evaluator *Evaluator, manager *Manager, store Store, mw Middleware) *Handler {
	return &Handler{
		logger:    logger,
		evaluator: evaluator,
		manager:   manager,
		store:     store,
		mw:        mw,
		validator: validator.New(),
	}
}

// MountRoutes registers authz routes on the provided router. The decision
// endpoint is open to any authenticated service; the admin surface requires
// the assignment management permissions at the mutated scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/evaluate", h.evaluate)
	r.Get("/permissions", h.permissions)
	r.Route("/assignments", func(r chi.Router) {
		r.With(h.mw.Require(PermAssignmentsView)).Get("/", h.listAssignments)
		r.With(h.mw.Require(PermAssignmentsManage)).Post("/", h.assign)
		r.With(h.mw.Require(PermAssignmentsManage)).Delete("/{id}", h.revoke)
	})
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	decision, err := h.evaluator.Evaluate(r.Context(), req.ActorID, Permission(req.Permission), req.Scope.toScope())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, evaluateResponse{
		Allow:              decision.Allow,
		MatchedAssignments: decision.MatchedAssignments,
	})
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	perms := AllPermissions()
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, string(p))
	}
	httpx.JSON(w, http.StatusOK, map[string][]string{"permissions": names})
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	in := AssignInput{
		UserID:    req.UserID,
		Role:      Role(req.Role),
		Scope:     req.Scope.toScope(),
		Global:    req.Scope.Global,
		EndsAt:    req.EndsAt,
		GrantedBy: h.adminActor(r),
	}
	if req.StartsAt != nil {
		in.StartsAt = *req.StartsAt
	}

	created, err := h.manager.Assign(r.Context(), in)
	if err != nil {
		h.logger.Warn("assign rejected", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAssignmentResponse(created, time.Now().UTC()))
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid assignment id", httpx.ErrValidation))
		return
	}
	revoked, err := h.manager.Revoke(r.Context(), id, h.adminActor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAssignmentResponse(revoked, time.Now().UTC()))
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	actorID, err := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	if err != nil || actorID <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: actor_id query parameter required", httpx.ErrValidation))
		return
	}
	assignments, err := h.store.ListByActor(r.Context(), actorID)
	if err != nil {
		h.logger.Error("list assignments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	now := time.Now().UTC()
	out := make([]assignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, toAssignmentResponse(a, now))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": out})
}

func (h *Handler) adminActor(r *http.Request) string {
	if actorID, ok := shared.ActorFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(actorID, 10)
	}
	return "user:unknown"
}
