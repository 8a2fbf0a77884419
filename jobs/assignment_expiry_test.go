package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/meridian-works/meridian/internal/jobs"
)

type stubSweeper struct {
	mu      sync.Mutex
	calls   int
	count   int
	err     error
	block   chan struct{}
	started chan struct{}
}

func (s *stubSweeper) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.started != nil {
		close(s.started)
		s.started = nil
	}
	if s.block != nil {
		<-s.block
	}
	return s.count, s.err
}

func (s *stubSweeper) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newExpiryJob(sweeper Sweeper) *AssignmentExpiryJob {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	return NewAssignmentExpiryJob(sweeper, nil, metrics)
}

func TestAssignmentExpiryHandle(t *testing.T) {
	sweeper := &stubSweeper{count: 3}
	job := newExpiryJob(sweeper)

	task, err := NewAssignmentExpiryTask("scheduled")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, sweeper.callCount())
}

func TestAssignmentExpirySweeperError(t *testing.T) {
	sweeper := &stubSweeper{err: errors.New("database unavailable")}
	job := newExpiryJob(sweeper)

	task, err := NewAssignmentExpiryTask("scheduled")
	require.NoError(t, err)

	require.Error(t, job.Handle(context.Background(), task))
}

func TestAssignmentExpiryBadPayloadSkipsRetry(t *testing.T) {
	sweeper := &stubSweeper{}
	job := newExpiryJob(sweeper)

	task := asynq.NewTask(TaskAssignmentExpiry, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, sweeper.callCount())
}

func TestAssignmentExpiryOverlapSkipped(t *testing.T) {
	sweeper := &stubSweeper{
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	job := newExpiryJob(sweeper)
	started := sweeper.started

	task, err := NewAssignmentExpiryTask("scheduled")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- job.Handle(context.Background(), task)
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first sweep never started")
	}

	// A second fire while the first run is in flight returns immediately
	// without touching the store.
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, sweeper.callCount())

	close(sweeper.block)
	require.NoError(t, <-done)

	// Once the first run finishes the flag is released.
	sweeper.block = nil
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 2, sweeper.callCount())
}

func TestAssignmentExpiryTaskPayload(t *testing.T) {
	task, err := NewAssignmentExpiryTask("post-import")
	require.NoError(t, err)
	require.Equal(t, TaskAssignmentExpiry, task.Type())
	require.Contains(t, string(task.Payload()), "post-import")
}
