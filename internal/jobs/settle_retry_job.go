package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adrewards/backend/internal/queue"
	"github.com/adrewards/backend/internal/services/reward"
	"github.com/adrewards/backend/internal/services/task"
)

// SettleRetryPayload identifies the owed task to settle again
type SettleRetryPayload struct {
	UserID int64  `json:"user_id"`
	AdID   string `json:"ad_id"`
}

// SettleRetryJob re-runs settlement for tasks whose credit step failed. The
// active_tasks row is still registered for these users, so a successful
// retry settles exactly as the original attempt would have; a task settled
// in the meantime makes the retry a no-op.
type SettleRetryJob struct {
	q          *queue.Queue
	dispatcher *reward.Dispatcher
}

// NewSettleRetryJob creates a new settle retry job handler
func NewSettleRetryJob(q *queue.Queue, dispatcher *reward.Dispatcher) *SettleRetryJob {
	return &SettleRetryJob{q: q, dispatcher: dispatcher}
}

// ScheduleSettleRetry enqueues a settlement retry for an owed task
func (j *SettleRetryJob) ScheduleSettleRetry(userID int64, adID string) error {
	_, err := j.q.Enqueue(queue.JobTypeSettleRetry, SettleRetryPayload{
		UserID: userID,
		AdID:   adID,
	})
	return err
}

// Handle processes one retry attempt
func (j *SettleRetryJob) Handle(ctx context.Context, job queue.Job) error {
	var payload SettleRetryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal settle retry payload: %w", err)
	}

	_, err := j.dispatcher.Settle(ctx, payload.UserID, payload.AdID)
	if errors.Is(err, task.ErrTaskNotActive) {
		// settled or cancelled elsewhere; nothing left to do
		return nil
	}
	return err
}

// OwedUsers returns the users with an outstanding settlement retry. The
// stale-task reaper leaves their registrations alone.
func (j *SettleRetryJob) OwedUsers() (map[int64]bool, error) {
	outstanding, err := j.q.Outstanding(queue.JobTypeSettleRetry)
	if err != nil {
		return nil, err
	}

	owed := make(map[int64]bool, len(outstanding))
	for _, job := range outstanding {
		var payload SettleRetryPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			continue
		}
		owed[payload.UserID] = true
	}
	return owed, nil
}
