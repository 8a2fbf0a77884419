// Package security raises structured events when access is denied across
// scope boundaries. The events feed external alerting; thresholds and routing
// live in the Prometheus rules under deploy/prometheus/alerts.
package security

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Event kinds with their stable security codes.
const (
	EventCrossScopeAttempt = "cross_scope_access_attempt"
	EventScopeMismatch     = "scope_mismatch_error"

	CodeCrossScopeAttempt = "SEC-001"
	CodeScopeMismatch     = "SEC-002"
)

// Event carries the correlation identifiers of a denied or mismatched access
// attempt. RequestID is filled from the request context when empty.
type Event struct {
	RequestID string
	TenantID  int64
	ProgramID int64
	ProjectID int64
}

// Emitter writes security events as structured JSON log records and counts
// them in Prometheus for alerting.
type Emitter struct {
	logger        *slog.Logger
	crossScope    *prometheus.CounterVec
	scopeMismatch *prometheus.CounterVec
}

// NewEmitter registers the security counters against the provided registerer.
// When the registerer is nil the default Prometheus registerer is used.
func NewEmitter(logger *slog.Logger, registerer prometheus.Registerer) *Emitter {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	crossScope := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_cross_scope_attempts_total",
		Help: "Permission checks denied because no assignment covered the target scope.",
	}, []string{"tenant"})
	scopeMismatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_scope_mismatch_total",
		Help: "Requests rejected for an unresolvable or inconsistent scope chain.",
	}, []string{"tenant"})
	registerer.MustRegister(crossScope, scopeMismatch)
	return &Emitter{logger: logger, crossScope: crossScope, scopeMismatch: scopeMismatch}
}

// CrossScopeAttempt records a permission check that failed due to a scope
// mismatch rather than a missing role.
func (e *Emitter) CrossScopeAttempt(ctx context.Context, ev Event) {
	if e == nil {
		return
	}
	e.crossScope.WithLabelValues(tenantLabel(ev.TenantID)).Inc()
	e.emit(ctx, EventCrossScopeAttempt, CodeCrossScopeAttempt, ev)
}

// ScopeMismatch records a request that supplied an unresolvable scope chain.
func (e *Emitter) ScopeMismatch(ctx context.Context, ev Event) {
	if e == nil {
		return
	}
	e.scopeMismatch.WithLabelValues(tenantLabel(ev.TenantID)).Inc()
	e.emit(ctx, EventScopeMismatch, CodeScopeMismatch, ev)
}

func (e *Emitter) emit(ctx context.Context, eventType, code string, ev Event) {
	if e.logger == nil {
		return
	}
	requestID := ev.RequestID
	if requestID == "" {
		requestID = middleware.GetReqID(ctx)
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	e.logger.WarnContext(ctx, "security event",
		slog.String("level", "warn"),
		slog.String("event_type", eventType),
		slog.String("security_code", code),
		slog.String("request_id", requestID),
		slog.Int64("tenant_id", ev.TenantID),
		slog.Int64("program_id", ev.ProgramID),
		slog.Int64("project_id", ev.ProjectID),
	)
}

func tenantLabel(tenantID int64) string {
	return strconv.FormatInt(tenantID, 10)
}
