package jobs

import (
	"context"

	"github.com/adrewards/backend/internal/queue"
)

// NotificationJob delivers queued transport notifications when they travel
// through the durable job queue instead of redis. The queue's backoff covers
// transient transport outages.
type NotificationJob struct {
	deliver queue.DeliveryHandler
}

// NewNotificationJob creates a new notification delivery job handler
func NewNotificationJob(deliver queue.DeliveryHandler) *NotificationJob {
	return &NotificationJob{deliver: deliver}
}

// Handle delivers one queued notification payload
func (j *NotificationJob) Handle(ctx context.Context, job queue.Job) error {
	return j.deliver(ctx, job.Payload)
}
