package jobs

import (
	"time"

	"github.com/go-co-op/gocron"

	"github.com/adrewards/backend/internal/queue"
	"github.com/adrewards/backend/internal/services/reward"
)

// RegisterJobHandlers registers all durable job handlers with the queue and
// returns the settle retry job for wiring into the verification manager.
// deliver handles queued transport notifications; pass nil when they never
// travel through the durable queue.
func RegisterJobHandlers(q *queue.Queue, dispatcher *reward.Dispatcher, deliver queue.DeliveryHandler) *SettleRetryJob {
	settleRetry := NewSettleRetryJob(q, dispatcher)
	q.RegisterHandler(queue.JobTypeSettleRetry, settleRetry.Handle)
	if deliver != nil {
		q.RegisterHandler(queue.JobTypeDeliverNotification, NewNotificationJob(deliver).Handle)
	}
	return settleRetry
}

// ScheduleRecurringJobs schedules the recurring maintenance jobs on the
// given scheduler. The caller owns starting and stopping it.
func ScheduleRecurringJobs(scheduler *gocron.Scheduler, reaper *StaleTaskReaper) error {
	if _, err := scheduler.Every(1).Minute().Do(reaper.Sweep); err != nil {
		return err
	}
	return nil
}

// NewScheduler creates the job scheduler
func NewScheduler() *gocron.Scheduler {
	return gocron.NewScheduler(time.UTC)
}
