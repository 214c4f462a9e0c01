package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// migrationsList holds all migrations in order
func migrationsList() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		CreateUsersTable(),
		CreateEarningsTable(),
		CreateActiveTasksTable(),
		CreateBalanceAdjustmentsTable(),
		CreateJobsTable(),
	}
}

// RunMigrations runs all database migrations
func RunMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrationsList())
	return m.Migrate()
}
