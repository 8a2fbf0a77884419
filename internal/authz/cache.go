package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-works/meridian/internal/scope"
)

// DecisionCache caches evaluation outcomes in redis, keyed by
// (actor, tenant, program, project, permission). Invalidation is explicit:
// every assignment mutation bumps a per-actor generation counter that is part
// of the key, so stale decisions become unreachable immediately instead of
// waiting out their TTL.
//
// The cache is strictly best-effort. Redis being down degrades every call to
// a miss; it never turns into an allow or an error.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewDecisionCache constructs a cache. A nil client disables caching.
func NewDecisionCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *DecisionCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DecisionCache{client: client, ttl: ttl, logger: logger}
}

type cachedDecision struct {
	Allow   bool    `json:"allow"`
	Matched []int64 `json:"matched,omitempty"`
}

// Get returns a cached decision, if present.
func (c *DecisionCache) Get(ctx context.Context, actorID int64, chain scope.Chain, perm Permission) (Decision, bool) {
	if c == nil || c.client == nil {
		return Decision{}, false
	}
	key, ok := c.key(ctx, actorID, chain, perm)
	if !ok {
		return Decision{}, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.warn(ctx, "cache get", err)
		}
		return Decision{}, false
	}
	var cached cachedDecision
	if err := json.Unmarshal(raw, &cached); err != nil {
		c.warn(ctx, "cache decode", err)
		return Decision{}, false
	}
	return Decision{Allow: cached.Allow, MatchedAssignments: cached.Matched}, true
}

// Set stores a decision under the actor's current generation.
func (c *DecisionCache) Set(ctx context.Context, actorID int64, chain scope.Chain, perm Permission, d Decision) {
	if c == nil || c.client == nil {
		return
	}
	key, ok := c.key(ctx, actorID, chain, perm)
	if !ok {
		return
	}
	raw, err := json.Marshal(cachedDecision{Allow: d.Allow, Matched: d.MatchedAssignments})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.warn(ctx, "cache set", err)
	}
}

// Invalidate makes every cached decision for the actor unreachable.
func (c *DecisionCache) Invalidate(ctx context.Context, actorID int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Incr(ctx, generationKey(actorID)).Err(); err != nil {
		c.warn(ctx, "cache invalidate", err)
	}
}

func (c *DecisionCache) key(ctx context.Context, actorID int64, chain scope.Chain, perm Permission) (string, bool) {
	gen, err := c.client.Get(ctx, generationKey(actorID)).Int64()
	if err != nil && err != redis.Nil {
		c.warn(ctx, "cache generation", err)
		return "", false
	}
	return fmt.Sprintf("authz:decision:%d:%d:%d:%d:%d:%s", gen, actorID, chain.TenantID, chain.ProgramID, chain.ProjectID, perm), true
}

func (c *DecisionCache) warn(ctx context.Context, op string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.WarnContext(ctx, "decision cache degraded", slog.String("op", op), slog.Any("error", err))
}

func generationKey(actorID int64) string {
	return fmt.Sprintf("authz:gen:%d", actorID)
}
