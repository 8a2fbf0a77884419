package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-works/meridian/internal/scope"
	"github.com/meridian-works/meridian/internal/security"
	"github.com/meridian-works/meridian/internal/shared"
)

// ScopeResolver validates caller-supplied scopes against the hierarchy.
type ScopeResolver interface {
	ResolveScope(ctx context.Context, s scope.Scope) (scope.Chain, error)
}

// Evaluator is the pure decision function over the assignment store. It holds
// no per-call mutable state and is safe under arbitrary concurrent invocation.
//
// Semantics are union-of-allow: if any matching assignment's role grants the
// permission the decision is allow. There is no deny-type assignment in the
// model and therefore no deny-override precedence.
type Evaluator struct {
	store    Store
	resolver ScopeResolver
	cache    *DecisionCache
	emitter  *security.Emitter
	logger   *slog.Logger
	group    singleflight.Group
	clock    func() time.Time
}

// NewEvaluator constructs an evaluator. Cache and emitter may be nil.
func NewEvaluator(store Store, resolver ScopeResolver, cache *DecisionCache, emitter *security.Emitter, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		store:    store,
		resolver: resolver,
		cache:    cache,
		emitter:  emitter,
		logger:   logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Evaluate decides whether the actor may exercise the permission at the target
// scope.
//
// An unresolvable scope returns shared.ErrScopeMismatch: the caller must fix
// the request, the engine never guesses. Store failures deny (fail closed) and
// are logged, never surfaced as infrastructure errors to the caller.
func (e *Evaluator) Evaluate(ctx context.Context, actorID int64, perm Permission, target scope.Scope) (Decision, error) {
	if !perm.Valid() {
		return Decision{}, fmt.Errorf("%w: unknown permission %q", shared.ErrInvalidInput, perm)
	}

	chain, err := e.resolver.ResolveScope(ctx, target)
	if err != nil {
		if errors.Is(err, shared.ErrScopeMismatch) {
			e.emitScopeMismatch(ctx, target)
			return Decision{}, err
		}
		e.logError(ctx, "resolve scope", err)
		return Decision{}, nil
	}

	if cached, ok := e.cache.Get(ctx, actorID, chain, perm); ok {
		return cached, nil
	}

	result, _, _ := e.group.Do(decisionKey(actorID, chain, perm), func() (interface{}, error) {
		return e.decide(ctx, actorID, perm, chain), nil
	})
	decision := result.(Decision)

	if decision.Allow || len(decision.MatchedAssignments) > 0 {
		e.cache.Set(ctx, actorID, chain, perm, decision)
		return decision, nil
	}

	// Deny with zero matched assignments means no assignment covered the
	// target scope. If the actor does hold the permission elsewhere this is a
	// cross-scope probe, not a plain missing role. Such denials are never
	// cached: every repeated attempt must land in the security counters, and
	// the alert thresholds count per attempt.
	if e.holdsElsewhere(ctx, actorID, perm) {
		e.emitCrossScope(ctx, chain)
	}
	return decision, nil
}

func (e *Evaluator) decide(ctx context.Context, actorID int64, perm Permission, chain scope.Chain) Decision {
	assignments, err := e.store.ListActive(ctx, actorID, e.clock())
	if err != nil {
		e.logError(ctx, "list assignments", err)
		return Decision{}
	}

	var decision Decision
	for _, a := range assignments {
		if !chain.CoveredBy(a.Level, a.ScopeID) {
			continue
		}
		decision.MatchedAssignments = append(decision.MatchedAssignments, a.ID)
		// Superuser bypass folds into Grants: platform_admin and tenant_admin
		// grant every permission, constrained to the scope their assignment
		// anchor covers. A tenant_admin anchored at tenant T never reaches
		// past T because CoveredBy already rejected foreign chains.
		if a.Role.Grants(perm) {
			decision.Allow = true
		}
	}
	return decision
}

// holdsElsewhere reports whether any active assignment of the actor grants the
// permission at some other scope. Used only to classify a deny as a
// cross-scope attempt for observability.
func (e *Evaluator) holdsElsewhere(ctx context.Context, actorID int64, perm Permission) bool {
	assignments, err := e.store.ListActive(ctx, actorID, e.clock())
	if err != nil {
		return false
	}
	for _, a := range assignments {
		if a.Role.Grants(perm) {
			return true
		}
	}
	return false
}

func (e *Evaluator) emitScopeMismatch(ctx context.Context, target scope.Scope) {
	if e.emitter == nil {
		return
	}
	e.emitter.ScopeMismatch(ctx, security.Event{
		TenantID:  target.TenantID,
		ProgramID: target.ProgramID,
		ProjectID: target.ProjectID,
	})
}

func (e *Evaluator) emitCrossScope(ctx context.Context, chain scope.Chain) {
	if e.emitter == nil {
		return
	}
	e.emitter.CrossScopeAttempt(ctx, security.Event{
		TenantID:  chain.TenantID,
		ProgramID: chain.ProgramID,
		ProjectID: chain.ProjectID,
	})
}

func (e *Evaluator) logError(ctx context.Context, op string, err error) {
	if e.logger == nil {
		return
	}
	e.logger.ErrorContext(ctx, "authz evaluation failed closed", slog.String("op", op), slog.Any("error", err))
}

func decisionKey(actorID int64, chain scope.Chain, perm Permission) string {
	return fmt.Sprintf("%d:%d:%d:%d:%s", actorID, chain.TenantID, chain.ProgramID, chain.ProjectID, perm)
}
