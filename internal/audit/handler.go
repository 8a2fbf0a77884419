package audit

import (
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-works/meridian/internal/platform/httpx"
)

// Handler exposes the audit timeline over HTTP. Authorization is applied by
// the router; the handler itself contains no permission logic.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
}

type entryResponse struct {
	Actor         string     `json:"actor"`
	Action        string     `json:"action"`
	TenantID      int64      `json:"tenant_id"`
	ProgramID     int64      `json:"program_id,omitempty"`
	ProjectID     int64      `json:"project_id,omitempty"`
	UserID        int64      `json:"user_id"`
	Role          string     `json:"role"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
	Digest        string     `json:"digest"`
}

type timelineResponse struct {
	Entries []entryResponse `json:"entries"`
	Page    int             `json:"page"`
	HasNext bool            `json:"has_next"`
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := TimelineFilters{
		Actor:  q.Get("actor"),
		Action: q.Get("action"),
	}
	if v := q.Get("tenant_id"); v != "" {
		filters.TenantID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.To = t
		}
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	entries := make([]entryResponse, 0, len(result.Rows))
	for _, e := range result.Rows {
		entries = append(entries, entryResponse{
			Actor:         e.Actor,
			Action:        e.Action,
			TenantID:      e.TenantID,
			ProgramID:     e.ProgramID,
			ProjectID:     e.ProjectID,
			UserID:        e.UserID,
			Role:          e.Role,
			EffectiveFrom: e.EffectiveFrom,
			EffectiveTo:   e.EffectiveTo,
			Timestamp:     e.At,
			Digest:        hex.EncodeToString(e.Digest),
		})
	}
	httpx.JSON(w, http.StatusOK, timelineResponse{
		Entries: entries,
		Page:    result.Paging.Page,
		HasNext: result.Paging.HasNext,
	})
}
