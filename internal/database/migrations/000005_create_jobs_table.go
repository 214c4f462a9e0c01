package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/adrewards/backend/internal/queue"
)

// CreateJobsTable creates the background job queue table
func CreateJobsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_jobs_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.Migrator().AutoMigrate(&queue.Job{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("jobs")
		},
	}
}
