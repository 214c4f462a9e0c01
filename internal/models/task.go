package models

import (
	"time"
)

// ActiveTask represents one in-flight ad verification. The user id is the
// primary key, so the database itself enforces at most one live task per
// user. Rows are immutable once created and removed exactly once, either by
// settlement, cancellation or the stale-task reaper.
type ActiveTask struct {
	UserID    int64     `gorm:"column:user_id;primaryKey" json:"user_id"`
	AdID      string    `gorm:"type:varchar(100);not null" json:"ad_id"`
	StartedAt time.Time `gorm:"not null" json:"started_at"`
}

// TableName overrides the table name
func (ActiveTask) TableName() string {
	return "active_tasks"
}
