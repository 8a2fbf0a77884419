package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Queue names.
const (
	QueueDefault = "default"
)

// Task type identifiers.
const (
	TaskAssignmentExpiry = "authz:assignment_expiry"
)

// AssignmentExpiryPayload configures a single expiry sweep run.
type AssignmentExpiryPayload struct {
	// Reason tags the audit trail origin: "cron" for scheduled sweeps,
	// "manual" for operator-triggered runs.
	Reason string `json:"reason"`
}

// NewAssignmentExpiryTask builds the sweep task.
func NewAssignmentExpiryTask(reason string) (*asynq.Task, error) {
	if reason == "" {
		reason = "cron"
	}
	payload, err := json.Marshal(AssignmentExpiryPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAssignmentExpiry, payload), nil
}
