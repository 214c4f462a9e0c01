package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/adrewards/backend/internal/models"
)

// CreateUsersTable creates the users table. The schema is kept portable
// across postgres and sqlite by building it from the model.
func CreateUsersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_users_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.Migrator().AutoMigrate(&models.User{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("users")
		},
	}
}
