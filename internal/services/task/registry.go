package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adrewards/backend/internal/models"
)

var (
	// ErrAlreadyActive is returned when a user tries to start a second
	// verification while one is live
	ErrAlreadyActive = errors.New("user already has an active task")

	// ErrTaskNotActive is returned when settlement finds no live task to
	// clear, which means the task was already settled or cancelled
	ErrTaskNotActive = errors.New("no active task for user")
)

// Registry enforces the one-active-task-per-user invariant. The check and
// the insert are a single conflict-guarded statement, so concurrent begin
// attempts for the same user resolve in the database, not in application
// code.
type Registry struct {
	db *gorm.DB
}

// NewRegistry creates a new task registry
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// TryBegin registers a new task for the user. It fails with ErrAlreadyActive
// when a task is already live, performing no mutation in that case.
func (r *Registry) TryBegin(ctx context.Context, userID int64, adID string) (*models.ActiveTask, error) {
	task := models.ActiveTask{
		UserID:    userID,
		AdID:      adID,
		StartedAt: time.Now().UTC(),
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&task)

	if result.Error != nil {
		return nil, fmt.Errorf("error registering task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyActive
	}

	return &task, nil
}

// End removes any task registered for the user. Removing a task that does
// not exist is not an error.
func (r *Registry) End(ctx context.Context, userID int64) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.ActiveTask{}).Error
	if err != nil {
		return fmt.Errorf("error clearing task: %w", err)
	}
	return nil
}

// Active returns the user's live task, or nil when there is none
func (r *Registry) Active(ctx context.Context, userID int64) (*models.ActiveTask, error) {
	var task models.ActiveTask
	err := r.db.WithContext(ctx).First(&task, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding task: %w", err)
	}
	return &task, nil
}

// List returns every live task, oldest first
func (r *Registry) List(ctx context.Context) ([]models.ActiveTask, error) {
	var tasks []models.ActiveTask
	err := r.db.WithContext(ctx).Order("started_at ASC").Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("error listing tasks: %w", err)
	}
	return tasks, nil
}

// ListStale returns live tasks started before the cutoff
func (r *Registry) ListStale(ctx context.Context, cutoff time.Time) ([]models.ActiveTask, error) {
	var tasks []models.ActiveTask
	err := r.db.WithContext(ctx).
		Where("started_at < ?", cutoff).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("error listing stale tasks: %w", err)
	}
	return tasks, nil
}
