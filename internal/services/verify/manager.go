package verify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adrewards/backend/internal/ads"
	"github.com/adrewards/backend/internal/models"
	"github.com/adrewards/backend/internal/notify"
	"github.com/adrewards/backend/internal/services/task"
)

// Abort reasons surfaced to the transport
const (
	ReasonCancelled      = "cancelled"
	ReasonShutdown       = "shutdown"
	ReasonDeliveryFailed = "delivery_failed"
)

// Settler settles a completed verification. Satisfied by reward.Dispatcher.
type Settler interface {
	Settle(ctx context.Context, userID int64, adID string) (*models.Earning, error)
}

// RetryScheduler schedules another settlement attempt after a settlement
// failure. Satisfied by the settle-retry job.
type RetryScheduler interface {
	ScheduleSettleRetry(userID int64, adID string) error
}

// Config holds the countdown parameters. Tick defaults to one second; tests
// shrink it to keep countdowns fast.
type Config struct {
	Dwell       time.Duration
	Tick        time.Duration
	Checkpoints []int // ticks remaining at which progress is reported
}

// Manager runs one countdown goroutine per active verification. Timers for
// different users are fully independent; the only shared state is the cancel
// map guarding per-user cancellation and the task registry itself.
type Manager struct {
	registry *task.Registry
	settler  Settler
	notifier notify.Notifier
	retries  RetryScheduler
	log      *logrus.Logger

	dwell       time.Duration
	tick        time.Duration
	checkpoints map[int]bool

	mu     sync.Mutex
	active map[int64]*countdown
	wg     sync.WaitGroup
}

// countdown identifies one live timer goroutine. Teardown removes the map
// entry only when it still belongs to this countdown, so a finished timer
// can never unregister a successor that began in the meantime.
type countdown struct {
	cancel context.CancelCauseFunc
}

// cancellation causes recorded on the run context
var (
	errCancelled = errors.New("task cancelled")
	errShutdown  = errors.New("process shutting down")
)

// NewManager creates a verification manager
func NewManager(registry *task.Registry, settler Settler, notifier notify.Notifier, retries RetryScheduler, cfg Config, log *logrus.Logger) *Manager {
	tick := cfg.Tick
	if tick <= 0 {
		tick = time.Second
	}
	checkpoints := make(map[int]bool, len(cfg.Checkpoints))
	for _, c := range cfg.Checkpoints {
		checkpoints[c] = true
	}

	return &Manager{
		registry:    registry,
		settler:     settler,
		notifier:    notifier,
		retries:     retries,
		log:         log,
		dwell:       cfg.Dwell,
		tick:        tick,
		checkpoints: checkpoints,
		active:      make(map[int64]*countdown),
	}
}

// Begin registers a task for the user and starts its countdown. The
// registry insert is the atomic gate: a concurrent Begin for the same user
// gets ErrAlreadyActive and starts nothing.
func (m *Manager) Begin(ctx context.Context, userID int64, ad ads.Ad) (*models.ActiveTask, error) {
	t, err := m.registry.TryBegin(ctx, userID, ad.ID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancelCause(context.Background())
	cd := &countdown{cancel: cancel}
	m.mu.Lock()
	m.active[userID] = cd
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(runCtx, cd, userID, ad)

	return t, nil
}

// Cancel aborts the user's live countdown if one is running in this
// process. When no timer is live (a crash-orphaned registration), the
// registry entry is cleared directly. Returns whether a countdown was
// actually interrupted.
func (m *Manager) Cancel(userID int64) bool {
	m.mu.Lock()
	cd, ok := m.active[userID]
	m.mu.Unlock()

	if ok {
		cd.cancel(errCancelled)
		return true
	}

	if err := m.registry.End(context.Background(), userID); err != nil {
		m.log.WithError(err).WithField("user_id", userID).Warn("failed to clear orphaned task")
	}
	return false
}

// Shutdown cancels every live countdown and waits for their goroutines to
// finish clearing their registrations, or until ctx expires.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, cd := range m.active {
		cd.cancel(errShutdown)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run drives one countdown to its single terminal transition: settlement on
// expiry, or an abort that clears the task without credit.
func (m *Manager) run(ctx context.Context, cd *countdown, userID int64, ad ads.Ad) {
	defer m.wg.Done()
	defer m.forget(userID, cd)

	log := m.log.WithFields(logrus.Fields{"user_id": userID, "ad_id": ad.ID})

	// the task is useless if the user never receives the link
	if err := m.notifier.DeliverLink(userID, ad); err != nil {
		log.WithError(err).Warn("link delivery failed; aborting task")
		m.abort(userID, ReasonDeliveryFailed)
		return
	}

	remaining := int(m.dwell / m.tick)
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for remaining > 0 {
		select {
		case <-ctx.Done():
			m.abort(userID, abortReason(ctx))
			return
		case <-ticker.C:
			remaining--
			if remaining > 0 && m.checkpoints[remaining] {
				// progress failures are non-fatal; only the terminal
				// transition matters
				if err := m.notifier.SendProgress(userID, remaining); err != nil {
					log.WithError(err).Debug("progress update failed")
				}
			}
		}
	}

	// the dwell window elapsed even if shutdown raced the last tick, so the
	// credit is owed; settle on an independent context
	settleCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := m.settler.Settle(settleCtx, userID, ad.ID); err != nil {
		if errors.Is(err, task.ErrTaskNotActive) {
			return
		}
		if m.retries != nil {
			if qerr := m.retries.ScheduleSettleRetry(userID, ad.ID); qerr != nil {
				log.WithError(qerr).Error("failed to schedule settlement retry")
			}
		}
	}
}

// abort clears the registration before the cancellation propagates any
// further; a cancelled task must never remain registered
func (m *Manager) abort(userID int64, reason string) {
	if err := m.registry.End(context.Background(), userID); err != nil {
		m.log.WithError(err).WithField("user_id", userID).Error("failed to clear task on abort")
	}
	if err := m.notifier.NotifyAborted(userID, reason); err != nil {
		m.log.WithError(err).WithField("user_id", userID).Debug("abort notification failed")
	}
}

func (m *Manager) forget(userID int64, cd *countdown) {
	m.mu.Lock()
	if m.active[userID] == cd {
		delete(m.active, userID)
	}
	m.mu.Unlock()
}

func abortReason(ctx context.Context) string {
	if errors.Is(context.Cause(ctx), errShutdown) {
		return ReasonShutdown
	}
	return ReasonCancelled
}
