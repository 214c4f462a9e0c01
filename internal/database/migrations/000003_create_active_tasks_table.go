package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/adrewards/backend/internal/models"
)

// CreateActiveTasksTable creates the active task registry table
func CreateActiveTasksTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_active_tasks_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.Migrator().AutoMigrate(&models.ActiveTask{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("active_tasks")
		},
	}
}
