package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&Job{}))
	return db
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type testPayload struct {
	UserID int64  `json:"user_id"`
	AdID   string `json:"ad_id"`
}

func TestEnqueueCreatesPendingJob(t *testing.T) {
	db := setupTestDB(t)
	q := NewQueue(db, testLogger())

	job, err := q.Enqueue(JobTypeSettleRetry, testPayload{UserID: 100, AdID: "ad1"})
	require.NoError(t, err)

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 5, job.MaxRetries)
	assert.Equal(t, 0, job.RetryCount)

	var decoded testPayload
	require.NoError(t, json.Unmarshal(job.Payload, &decoded))
	assert.Equal(t, int64(100), decoded.UserID)
	assert.Equal(t, "ad1", decoded.AdID)
}

func TestProcessNextRunsHandler(t *testing.T) {
	db := setupTestDB(t)
	q := NewQueue(db, testLogger())

	var got testPayload
	q.RegisterHandler(JobTypeSettleRetry, func(ctx context.Context, job Job) error {
		return json.Unmarshal(job.Payload, &got)
	})

	job, err := q.Enqueue(JobTypeSettleRetry, testPayload{UserID: 100, AdID: "ad1"})
	require.NoError(t, err)

	q.processNext()

	assert.Equal(t, int64(100), got.UserID)

	var stored Job
	require.NoError(t, db.First(&stored, "id = ?", job.ID).Error)
	assert.Equal(t, JobStatusCompleted, stored.Status)
}

func TestFailedJobIsRescheduledWithBackoff(t *testing.T) {
	db := setupTestDB(t)
	q := NewQueue(db, testLogger())

	q.RegisterHandler(JobTypeSettleRetry, func(ctx context.Context, job Job) error {
		return errors.New("db down")
	})

	job, err := q.Enqueue(JobTypeSettleRetry, testPayload{UserID: 100})
	require.NoError(t, err)

	q.processNext()

	var stored Job
	require.NoError(t, db.First(&stored, "id = ?", job.ID).Error)
	assert.Equal(t, JobStatusPending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "db down", stored.Error)
	require.NotNil(t, stored.NextRetry)
	assert.True(t, stored.NextRetry.After(time.Now().UTC().Add(20*time.Second)),
		"first retry must be deferred by the initial interval")

	// not yet due, so another pass must not run it
	q.processNext()
	require.NoError(t, db.First(&stored, "id = ?", job.ID).Error)
	assert.Equal(t, 1, stored.RetryCount)
}

func TestJobFailsAfterMaxRetries(t *testing.T) {
	db := setupTestDB(t)
	q := NewQueue(db, testLogger())

	calls := 0
	q.RegisterHandler(JobTypeSettleRetry, func(ctx context.Context, job Job) error {
		calls++
		return errors.New("db down")
	})

	job, err := q.Enqueue(JobTypeSettleRetry, testPayload{UserID: 100})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		// force each retry due immediately
		require.NoError(t, db.Model(&Job{}).Where("id = ?", job.ID).
			Update("next_retry", nil).Error)
		q.processNext()
	}

	var stored Job
	require.NoError(t, db.First(&stored, "id = ?", job.ID).Error)
	assert.Equal(t, JobStatusFailed, stored.Status)
	assert.Equal(t, 5, stored.RetryCount)
	assert.Equal(t, 5, calls)
}

func TestUnhandledJobTypeFails(t *testing.T) {
	db := setupTestDB(t)
	q := NewQueue(db, testLogger())

	job, err := q.Enqueue(JobType("unknown"), testPayload{})
	require.NoError(t, err)

	q.processNext()

	var stored Job
	require.NoError(t, db.First(&stored, "id = ?", job.ID).Error)
	assert.Equal(t, JobStatusFailed, stored.Status)
	assert.Equal(t, "no handler registered", stored.Error)
}

func TestOutstanding(t *testing.T) {
	db := setupTestDB(t)
	q := NewQueue(db, testLogger())

	first, err := q.Enqueue(JobTypeSettleRetry, testPayload{UserID: 1})
	require.NoError(t, err)
	_, err = q.Enqueue(JobTypeDeliverNotification, testPayload{UserID: 2})
	require.NoError(t, err)
	done, err := q.Enqueue(JobTypeSettleRetry, testPayload{UserID: 3})
	require.NoError(t, err)
	require.NoError(t, db.Model(&Job{}).Where("id = ?", done.ID).
		Update("status", JobStatusCompleted).Error)

	jobs, err := q.Outstanding(JobTypeSettleRetry)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, first.ID, jobs[0].ID)
}

func TestBackoff(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.Equal(t, 30*time.Second, cfg.Backoff(1))
	assert.Equal(t, time.Minute, cfg.Backoff(2))
	assert.Equal(t, 2*time.Minute, cfg.Backoff(3))
	assert.Equal(t, 4*time.Minute, cfg.Backoff(4))
	// the ceiling wins once the doubling passes it
	assert.Equal(t, time.Hour, cfg.Backoff(10))
}
