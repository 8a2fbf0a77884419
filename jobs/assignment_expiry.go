package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-works/meridian/internal/jobs"
)

// Sweeper is the lifecycle surface the expiry job drives.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// AssignmentExpiryJob deactivates assignments whose ends_at has passed.
// Overlapping runs are skipped, never parallelised: when the scheduler fires
// while a previous sweep still holds the flag, the new run returns without
// touching the store.
type AssignmentExpiryJob struct {
	Sweeper Sweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	running atomic.Bool
}

// NewAssignmentExpiryJob initialises the sweep handler.
func NewAssignmentExpiryJob(sweeper Sweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *AssignmentExpiryJob {
	return &AssignmentExpiryJob{Sweeper: sweeper, Logger: logger, Metrics: metrics}
}

// Handle executes one sweep.
func (j *AssignmentExpiryJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("assignment expiry: handler not configured")
	}
	var payload AssignmentExpiryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	if !j.running.CompareAndSwap(false, true) {
		j.logger().Info("expiry sweep already running, skipping")
		j.Metrics.AddSkipped(TaskAssignmentExpiry)
		return nil
	}
	defer j.running.Store(false)

	start := time.Now()
	tracker := j.Metrics.Track(TaskAssignmentExpiry)
	count, err := j.Sweeper.SweepExpired(ctx)
	err = tracker.End(err)
	if err != nil {
		j.logger().Error("expiry sweep failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddExpired(count)
	j.logger().Info("expiry sweep completed",
		slog.String("reason", payload.Reason),
		slog.Int("expired", count),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *AssignmentExpiryJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
