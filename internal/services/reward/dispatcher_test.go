package reward

import (
	"context"
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
	"github.com/adrewards/backend/internal/config"
	"github.com/adrewards/backend/internal/models"
	"github.com/adrewards/backend/internal/services/referral"
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

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.ActiveTask{},
		&models.Earning{},
		&models.BalanceAdjustment{},
	))
	return db
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// recordingNotifier captures outbound notifications for assertions
type recordingNotifier struct {
	mu      sync.Mutex
	credits []int64
	bonuses []int64
}

func (n *recordingNotifier) DeliverLink(userID int64, ad ads.Ad) error { return nil }
func (n *recordingNotifier) SendProgress(userID int64, remaining int) error {
	return nil
}
func (n *recordingNotifier) NotifyCredit(userID int64, amountKobo int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.credits = append(n.credits, amountKobo)
	return nil
}
func (n *recordingNotifier) NotifyReferralBonus(referrerID int64, amountKobo int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bonuses = append(n.bonuses, amountKobo)
	return nil
}
func (n *recordingNotifier) NotifyAborted(userID int64, reason string) error { return nil }

func rewardConfig() config.RewardConfig {
	return config.RewardConfig{
		AdAmountKobo:    500,
		ReferralPercent: 25,
	}
}

func newTestDispatcher(t *testing.T, db *gorm.DB) (*Dispatcher, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	dispatcher := NewDispatcher(db, rewardConfig(), referral.NewReferralService(db), notifier, testLogger())
	return dispatcher, notifier
}

func createUser(t *testing.T, db *gorm.DB, id int64, code string, referrerID *int64) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{
		ID:           id,
		Username:     "user",
		ReferralCode: code,
		ReferrerID:   referrerID,
	}).Error)
}

func startTask(t *testing.T, db *gorm.DB, userID int64, adID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.ActiveTask{
		UserID:    userID,
		AdID:      adID,
		StartedAt: time.Now().UTC(),
	}).Error)
}

func balanceOf(t *testing.T, db *gorm.DB, userID int64) int64 {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, "user_id = ?", userID).Error)
	return user.BalanceKobo
}

func TestSettleWithoutReferrer(t *testing.T) {
	db := setupTestDB(t)
	dispatcher, notifier := newTestDispatcher(t, db)

	createUser(t, db, 100, "RAAAA", nil)
	startTask(t, db, 100, "ad1")

	earning, err := dispatcher.Settle(context.Background(), 100, "ad1")
	require.NoError(t, err)

	assert.Equal(t, int64(500), earning.AmountKobo)
	assert.Equal(t, int64(0), earning.ReferrerBonusKobo)
	assert.Equal(t, int64(500), balanceOf(t, db, 100))

	var earnings []models.Earning
	require.NoError(t, db.Find(&earnings).Error)
	require.Len(t, earnings, 1)
	assert.Equal(t, int64(100), earnings[0].UserID)
	assert.Equal(t, "ad1", earnings[0].AdID)

	// task is cleared in the same transaction
	var tasks int64
	require.NoError(t, db.Model(&models.ActiveTask{}).Count(&tasks).Error)
	assert.Equal(t, int64(0), tasks)

	assert.Equal(t, []int64{500}, notifier.credits)
	assert.Empty(t, notifier.bonuses)
}

func TestSettleWithReferrer(t *testing.T) {
	db := setupTestDB(t)
	dispatcher, notifier := newTestDispatcher(t, db)

	createUser(t, db, 1, "RALICE", nil)
	referrer := int64(1)
	createUser(t, db, 2, "RBOB", &referrer)
	startTask(t, db, 2, "ad1")

	earning, err := dispatcher.Settle(context.Background(), 2, "ad1")
	require.NoError(t, err)

	assert.Equal(t, int64(500), earning.AmountKobo)
	assert.Equal(t, int64(125), earning.ReferrerBonusKobo)
	assert.Equal(t, int64(500), balanceOf(t, db, 2))
	assert.Equal(t, int64(125), balanceOf(t, db, 1))

	var count int64
	require.NoError(t, db.Model(&models.Earning{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	assert.Equal(t, []int64{500}, notifier.credits)
	assert.Equal(t, []int64{125}, notifier.bonuses)
}

func TestSettleIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	dispatcher, _ := newTestDispatcher(t, db)

	createUser(t, db, 100, "RAAAA", nil)
	startTask(t, db, 100, "ad1")

	_, err := dispatcher.Settle(context.Background(), 100, "ad1")
	require.NoError(t, err)

	// the second call finds no live task and must not credit again
	_, err = dispatcher.Settle(context.Background(), 100, "ad1")
	assert.ErrorIs(t, err, task.ErrTaskNotActive)

	assert.Equal(t, int64(500), balanceOf(t, db, 100))

	var count int64
	require.NoError(t, db.Model(&models.Earning{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSettleWithoutActiveTask(t *testing.T) {
	db := setupTestDB(t)
	dispatcher, _ := newTestDispatcher(t, db)

	createUser(t, db, 100, "RAAAA", nil)

	_, err := dispatcher.Settle(context.Background(), 100, "ad1")
	assert.ErrorIs(t, err, task.ErrTaskNotActive)
	assert.Equal(t, int64(0), balanceOf(t, db, 100))
}

func TestSettleWrongAdLeavesTask(t *testing.T) {
	db := setupTestDB(t)
	dispatcher, _ := newTestDispatcher(t, db)

	createUser(t, db, 100, "RAAAA", nil)
	startTask(t, db, 100, "ad1")

	_, err := dispatcher.Settle(context.Background(), 100, "other-ad")
	assert.ErrorIs(t, err, task.ErrTaskNotActive)

	var tasks int64
	require.NoError(t, db.Model(&models.ActiveTask{}).Count(&tasks).Error)
	assert.Equal(t, int64(1), tasks)
}

func TestSettleUnknownUserLeavesTaskRegistered(t *testing.T) {
	db := setupTestDB(t)
	dispatcher, _ := newTestDispatcher(t, db)

	// task exists but the user row is missing, so the credit step fails and
	// the transaction must roll the task delete back
	startTask(t, db, 100, "ad1")

	_, err := dispatcher.Settle(context.Background(), 100, "ad1")
	require.Error(t, err)

	var serr *SettlementError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, int64(100), serr.UserID)
	assert.Equal(t, "ad1", serr.AdID)
	assert.Equal(t, int64(500), serr.Principal)

	var tasks int64
	require.NoError(t, db.Model(&models.ActiveTask{}).Count(&tasks).Error)
	assert.Equal(t, int64(1), tasks, "failed settlement must leave the task registered")

	var earnings int64
	require.NoError(t, db.Model(&models.Earning{}).Count(&earnings).Error)
	assert.Equal(t, int64(0), earnings)
}

func TestBonusAmountRounding(t *testing.T) {
	tests := []struct {
		principal int64
		percent   int
		want      int64
	}{
		{500, 25, 125},
		{500, 0, 0},
		{1, 25, 0},   // 0.25 rounds down
		{2, 25, 1},   // 0.5 rounds half up
		{3, 25, 1},   // 0.75 rounds up
		{999, 10, 100}, // 99.9 rounds up
		{100, 100, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BonusAmount(tt.principal, tt.percent),
			"principal=%d percent=%d", tt.principal, tt.percent)
	}
}
