package models

import (
	"time"

	"github.com/google/uuid"
)

// BalanceAdjustment is an append-only record of a manual balance change made
// through the admin surface. Adjustments live in their own log so that the
// earnings table stays a pure record of settled verifications and a user's
// balance remains reconstructible as sum(earnings) + sum(adjustments).
type BalanceAdjustment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     int64     `gorm:"index;not null" json:"user_id"`
	AmountKobo int64     `gorm:"not null" json:"amount_kobo"` // signed; negative for debits
	Reason     string    `gorm:"type:varchar(255)" json:"reason"`
	Reference  string    `gorm:"type:varchar(100)" json:"reference"`
	CreatedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName overrides the table name
func (BalanceAdjustment) TableName() string {
	return "balance_adjustments"
}
