package models

import (
	"time"
)

// User represents a viewer account. The ID is assigned by the chat platform
// and never generated locally. Balances are kept in kobo (minor currency
// units) so that ledger arithmetic stays integral.
type User struct {
	ID           int64     `gorm:"column:user_id;primaryKey" json:"user_id"`
	Username     string    `gorm:"type:varchar(100)" json:"username"`
	ReferralCode string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"referral_code"`
	ReferrerID   *int64    `gorm:"index" json:"referrer_id,omitempty"`
	BalanceKobo  int64     `gorm:"not null;default:0" json:"balance_kobo"`
	CreatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}
