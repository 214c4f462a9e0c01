package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/adrewards/backend/internal/models"
)

// CreateBalanceAdjustmentsTable creates the admin adjustment log
func CreateBalanceAdjustmentsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_balance_adjustments_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.Migrator().AutoMigrate(&models.BalanceAdjustment{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("balance_adjustments")
		},
	}
}
