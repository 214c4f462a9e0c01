package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adrewards/backend/internal/notify"
	"github.com/adrewards/backend/internal/services/task"
)

// StaleTaskReaper clears task registrations orphaned by a crash or restart:
// their countdown goroutine is gone, so they would otherwise block the user
// forever. A registration is stale once it is older than the dwell window
// plus a grace period; live timers never reach that age. Users with an
// outstanding settlement retry are skipped, their row is the owed marker.
type StaleTaskReaper struct {
	registry *task.Registry
	retries  *SettleRetryJob
	notifier notify.Notifier
	maxAge   time.Duration
	log      *logrus.Logger
}

// NewStaleTaskReaper creates a new reaper
func NewStaleTaskReaper(registry *task.Registry, retries *SettleRetryJob, notifier notify.Notifier, dwell, grace time.Duration, log *logrus.Logger) *StaleTaskReaper {
	return &StaleTaskReaper{
		registry: registry,
		retries:  retries,
		notifier: notifier,
		maxAge:   dwell + grace,
		log:      log,
	}
}

// Sweep clears all stale registrations without crediting
func (r *StaleTaskReaper) Sweep() {
	ctx := context.Background()

	stale, err := r.registry.ListStale(ctx, time.Now().UTC().Add(-r.maxAge))
	if err != nil {
		r.log.WithError(err).Error("failed to list stale tasks")
		return
	}
	if len(stale) == 0 {
		return
	}

	owed, err := r.retries.OwedUsers()
	if err != nil {
		r.log.WithError(err).Error("failed to list owed settlements; skipping sweep")
		return
	}

	for _, t := range stale {
		if owed[t.UserID] {
			continue
		}

		if err := r.registry.End(ctx, t.UserID); err != nil {
			r.log.WithError(err).WithField("user_id", t.UserID).Error("failed to reap stale task")
			continue
		}

		r.log.WithFields(logrus.Fields{
			"user_id":    t.UserID,
			"ad_id":      t.AdID,
			"started_at": t.StartedAt,
		}).Info("cleared stale task registration")

		if err := r.notifier.NotifyAborted(t.UserID, "expired"); err != nil {
			r.log.WithError(err).WithField("user_id", t.UserID).Debug("abort notification failed")
		}
	}
}
