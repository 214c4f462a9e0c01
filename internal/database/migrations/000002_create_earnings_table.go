package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/adrewards/backend/internal/models"
)

// CreateEarningsTable creates the append-only earnings log
func CreateEarningsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_earnings_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.Migrator().AutoMigrate(&models.Earning{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("earnings")
		},
	}
}
