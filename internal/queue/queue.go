package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// JobType defines the type of job
type JobType string

const (
	// JobTypeSettleRetry re-attempts a failed reward settlement
	JobTypeSettleRetry JobType = "settle_retry"
	// JobTypeDeliverNotification delivers an outbound transport notification
	JobTypeDeliverNotification JobType = "deliver_notification"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job represents a durable background job
type Job struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Type       JobType         `json:"type" gorm:"type:varchar(50);index"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status" gorm:"type:varchar(20);index"`
	RetryCount int             `json:"retry_count" gorm:"default:0"`
	MaxRetries int             `json:"max_retries" gorm:"default:5"`
	NextRetry  *time.Time      `json:"next_retry,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job Job) error

// pollInterval is how often the processor looks for due jobs
const pollInterval = time.Second

// Queue is a database-backed job queue. Jobs survive process restarts, which
// is what makes it the right home for settlement retries: an owed credit is
// never lost to a crash.
type Queue struct {
	db       *gorm.DB
	handlers map[JobType]JobHandler
	mu       sync.RWMutex
	retry    RetryConfig
	log      *logrus.Logger
	quit     chan struct{}
	done     chan struct{}
}

// NewQueue creates a new queue
func NewQueue(db *gorm.DB, log *logrus.Logger) *Queue {
	return &Queue{
		db:       db,
		handlers: make(map[JobType]JobHandler),
		retry:    DefaultRetryConfig(),
		log:      log,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// RegisterHandler registers a handler for a job type
func (q *Queue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Enqueue adds a job to the queue
func (q *Queue) Enqueue(jobType JobType, payload interface{}) (*Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := Job{
		ID:         uuid.New(),
		Type:       jobType,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: q.retry.MaxRetries,
	}

	if err := q.db.Create(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return &job, nil
}

// ProcessJobs runs the processing loop until Stop is called. Run it in its
// own goroutine.
func (q *Queue) ProcessJobs() {
	defer close(q.done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.quit:
			return
		case <-ticker.C:
			q.processNext()
		}
	}
}

// Stop stops the processing loop and waits for the in-flight job to finish
func (q *Queue) Stop() {
	close(q.quit)
	<-q.done
}

// processNext claims and runs the oldest due job, if any
func (q *Queue) processNext() {
	var job Job
	err := q.db.
		Where("status = ? AND (next_retry IS NULL OR next_retry <= ?)", JobStatusPending, time.Now().UTC()).
		Order("created_at ASC").
		First(&job).Error
	if err != nil {
		return
	}

	// the status guard makes the claim atomic; a second processor loses the
	// race and moves on
	claim := q.db.Model(&Job{}).
		Where("id = ? AND status = ?", job.ID, JobStatusPending).
		Update("status", JobStatusProcessing)
	if claim.Error != nil || claim.RowsAffected == 0 {
		return
	}

	q.runJob(job)
}

// runJob executes the handler and records the outcome
func (q *Queue) runJob(job Job) {
	q.mu.RLock()
	handler, ok := q.handlers[job.Type]
	q.mu.RUnlock()

	if !ok {
		q.log.WithField("job_type", job.Type).Error("no handler registered for job type")
		q.update(job.ID, map[string]interface{}{
			"status": JobStatusFailed,
			"error":  "no handler registered",
		})
		return
	}

	err := handler(context.Background(), job)
	if err == nil {
		q.update(job.ID, map[string]interface{}{
			"status": JobStatusCompleted,
			"error":  "",
		})
		return
	}

	job.RetryCount++
	if job.RetryCount >= job.MaxRetries {
		q.log.WithFields(logrus.Fields{
			"job_id":   job.ID,
			"job_type": job.Type,
		}).WithError(err).Error("job exhausted retries")
		q.update(job.ID, map[string]interface{}{
			"status":      JobStatusFailed,
			"retry_count": job.RetryCount,
			"error":       err.Error(),
		})
		return
	}

	next := time.Now().UTC().Add(q.retry.Backoff(job.RetryCount))
	q.log.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"job_type":   job.Type,
		"retry":      job.RetryCount,
		"next_retry": next,
	}).WithError(err).Warn("job failed; scheduling retry")
	q.update(job.ID, map[string]interface{}{
		"status":      JobStatusPending,
		"retry_count": job.RetryCount,
		"next_retry":  next,
		"error":       err.Error(),
	})
}

func (q *Queue) update(jobID uuid.UUID, fields map[string]interface{}) {
	if err := q.db.Model(&Job{}).Where("id = ?", jobID).Updates(fields).Error; err != nil {
		q.log.WithError(err).WithField("job_id", jobID).Error("failed to update job")
	}
}

// JobPusher adapts the durable queue to the push interface the queued
// notifier expects. It backs notification delivery when redis is not
// configured.
type JobPusher struct {
	q *Queue
}

// NewJobPusher creates a pusher enqueueing notifications as durable jobs
func NewJobPusher(q *Queue) *JobPusher {
	return &JobPusher{q: q}
}

// Push enqueues one notification payload
func (p *JobPusher) Push(ctx context.Context, payload interface{}) error {
	_, err := p.q.Enqueue(JobTypeDeliverNotification, payload)
	return err
}

// Outstanding returns pending and processing jobs of a type, oldest first
func (q *Queue) Outstanding(jobType JobType) ([]Job, error) {
	var jobs []Job
	err := q.db.
		Where("type = ? AND status IN ?", jobType, []JobStatus{JobStatusPending, JobStatusProcessing}).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list outstanding jobs: %w", err)
	}
	return jobs, nil
}
