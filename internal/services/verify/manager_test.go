package verify

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/adrewards/backend/internal/ads"
	"github.com/adrewards/backend/internal/models"
	"github.com/adrewards/backend/internal/services/task"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.ActiveTask{}))
	return db
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeSettler records settle calls and can be told to fail
type fakeSettler struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *fakeSettler) Settle(ctx context.Context, userID int64, adID string) (*models.Earning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, adID)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Earning{UserID: userID, AdID: adID}, nil
}

func (s *fakeSettler) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// fakeNotifier records aborts and progress; delivery can be made to fail
type fakeNotifier struct {
	mu         sync.Mutex
	deliverErr error
	progress   []int
	aborts     []string
}

func (n *fakeNotifier) DeliverLink(userID int64, ad ads.Ad) error { return n.deliverErr }
func (n *fakeNotifier) SendProgress(userID int64, remaining int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.progress = append(n.progress, remaining)
	return nil
}
func (n *fakeNotifier) NotifyCredit(userID int64, amountKobo int64) error { return nil }
func (n *fakeNotifier) NotifyReferralBonus(referrerID int64, amountKobo int64) error {
	return nil
}
func (n *fakeNotifier) NotifyAborted(userID int64, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.aborts = append(n.aborts, reason)
	return nil
}

func (n *fakeNotifier) abortReasons() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.aborts...)
}

type fakeRetries struct {
	mu    sync.Mutex
	calls []string
}

func (r *fakeRetries) ScheduleSettleRetry(userID int64, adID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, adID)
	return nil
}

func (r *fakeRetries) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestManager(t *testing.T, settler *fakeSettler, notifier *fakeNotifier, retries *fakeRetries) (*Manager, *task.Registry) {
	t.Helper()
	registry := task.NewRegistry(setupTestDB(t))
	mgr := NewManager(registry, settler, notifier, retries, Config{
		Dwell:       50 * time.Millisecond,
		Tick:        5 * time.Millisecond,
		Checkpoints: []int{5, 3, 1},
	}, testLogger())
	return mgr, registry
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

var testAd = ads.Ad{ID: "ad1", Title: "Ad", URL: "https://example.com/ad1"}

func TestCompletionSettles(t *testing.T) {
	settler := &fakeSettler{}
	notifier := &fakeNotifier{}
	mgr, registry := newTestManager(t, settler, notifier, &fakeRetries{})

	_, err := mgr.Begin(context.Background(), 100, testAd)
	require.NoError(t, err)

	waitFor(t, func() bool { return settler.callCount() == 1 })

	require.NoError(t, mgr.Shutdown(context.Background()))
	assert.Equal(t, []string{"ad1"}, settler.calls)
	assert.Empty(t, notifier.abortReasons())

	// once settled the user can begin again
	_, err = registry.TryBegin(context.Background(), 100, "ad2")
	require.NoError(t, err)
}

func TestProgressCheckpoints(t *testing.T) {
	settler := &fakeSettler{}
	notifier := &fakeNotifier{}
	mgr, _ := newTestManager(t, settler, notifier, &fakeRetries{})

	_, err := mgr.Begin(context.Background(), 100, testAd)
	require.NoError(t, err)

	waitFor(t, func() bool { return settler.callCount() == 1 })
	require.NoError(t, mgr.Shutdown(context.Background()))

	assert.Equal(t, []int{5, 3, 1}, notifier.progress)
}

func TestSecondBeginRejected(t *testing.T) {
	settler := &fakeSettler{}
	mgr, _ := newTestManager(t, settler, &fakeNotifier{}, &fakeRetries{})

	_, err := mgr.Begin(context.Background(), 100, testAd)
	require.NoError(t, err)

	_, err = mgr.Begin(context.Background(), 100, ads.Ad{ID: "ad2"})
	assert.ErrorIs(t, err, task.ErrAlreadyActive)

	require.NoError(t, mgr.Shutdown(context.Background()))
}

func TestCancelMidDwell(t *testing.T) {
	// a long dwell keeps the countdown running until we cancel it
	settler := &fakeSettler{}
	notifier := &fakeNotifier{}
	registry := task.NewRegistry(setupTestDB(t))
	mgr := NewManager(registry, settler, notifier, &fakeRetries{}, Config{
		Dwell: time.Minute,
		Tick:  5 * time.Millisecond,
	}, testLogger())

	_, err := mgr.Begin(context.Background(), 100, testAd)
	require.NoError(t, err)

	assert.True(t, mgr.Cancel(100))

	waitFor(t, func() bool {
		active, err := registry.Active(context.Background(), 100)
		return err == nil && active == nil
	})

	require.NoError(t, mgr.Shutdown(context.Background()))
	assert.Equal(t, 0, settler.callCount())
	assert.Equal(t, []string{ReasonCancelled}, notifier.abortReasons())
}

func TestCancelClearsOrphanedRegistration(t *testing.T) {
	settler := &fakeSettler{}
	registry := task.NewRegistry(setupTestDB(t))
	mgr := NewManager(registry, settler, &fakeNotifier{}, &fakeRetries{}, Config{
		Dwell: time.Minute,
		Tick:  5 * time.Millisecond,
	}, testLogger())

	// a registration with no live goroutine, as left by a crash
	_, err := registry.TryBegin(context.Background(), 100, "ad1")
	require.NoError(t, err)

	assert.False(t, mgr.Cancel(100))

	active, err := registry.Active(context.Background(), 100)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestDeliveryFailureAborts(t *testing.T) {
	settler := &fakeSettler{}
	notifier := &fakeNotifier{deliverErr: errors.New("transport down")}
	mgr, registry := newTestManager(t, settler, notifier, &fakeRetries{})

	_, err := mgr.Begin(context.Background(), 100, testAd)
	require.NoError(t, err)

	waitFor(t, func() bool {
		active, err := registry.Active(context.Background(), 100)
		return err == nil && active == nil
	})

	require.NoError(t, mgr.Shutdown(context.Background()))
	assert.Equal(t, 0, settler.callCount())
	assert.Equal(t, []string{ReasonDeliveryFailed}, notifier.abortReasons())
}

func TestShutdownAbortsLiveCountdowns(t *testing.T) {
	settler := &fakeSettler{}
	notifier := &fakeNotifier{}
	registry := task.NewRegistry(setupTestDB(t))
	mgr := NewManager(registry, settler, notifier, &fakeRetries{}, Config{
		Dwell: time.Minute,
		Tick:  5 * time.Millisecond,
	}, testLogger())

	_, err := mgr.Begin(context.Background(), 100, testAd)
	require.NoError(t, err)
	_, err = mgr.Begin(context.Background(), 200, testAd)
	require.NoError(t, err)

	require.NoError(t, mgr.Shutdown(context.Background()))

	tasks, err := registry.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Equal(t, 0, settler.callCount())
	assert.ElementsMatch(t, []string{ReasonShutdown, ReasonShutdown}, notifier.abortReasons())
}

func TestStaleTeardownKeepsNewerCountdown(t *testing.T) {
	settler := &fakeSettler{}
	notifier := &fakeNotifier{}
	registry := task.NewRegistry(setupTestDB(t))
	mgr := NewManager(registry, settler, notifier, &fakeRetries{}, Config{
		Dwell: time.Minute,
		Tick:  5 * time.Millisecond,
	}, testLogger())

	// an earlier countdown for the same user finished and its registration
	// was replaced; its deferred teardown runs after the new Begin
	stale := &countdown{cancel: func(error) {}}

	_, err := mgr.Begin(context.Background(), 100, testAd)
	require.NoError(t, err)

	mgr.forget(100, stale)

	// the live countdown must still be reachable through Cancel
	assert.True(t, mgr.Cancel(100))

	waitFor(t, func() bool {
		active, err := registry.Active(context.Background(), 100)
		return err == nil && active == nil
	})
	require.NoError(t, mgr.Shutdown(context.Background()))
	assert.Equal(t, []string{ReasonCancelled}, notifier.abortReasons())
}

func TestSettlementFailureSchedulesRetry(t *testing.T) {
	settler := &fakeSettler{err: errors.New("db down")}
	retries := &fakeRetries{}
	mgr, registry := newTestManager(t, settler, &fakeNotifier{}, retries)

	_, err := mgr.Begin(context.Background(), 100, testAd)
	require.NoError(t, err)

	waitFor(t, func() bool { return retries.callCount() == 1 })
	require.NoError(t, mgr.Shutdown(context.Background()))

	// the registration is the durable marker of the owed credit
	active, err := registry.Active(context.Background(), 100)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "ad1", active.AdID)
}
