package models

import (
	"time"
)

// Earning is an append-only audit record of one settled verification.
// AmountKobo went to the viewer, ReferrerBonusKobo (0 when the viewer has no
// referrer) went to their referrer. Rows are never updated or deleted.
type Earning struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            int64     `gorm:"index;not null" json:"user_id"`
	AdID              string    `gorm:"type:varchar(100);not null" json:"ad_id"`
	AmountKobo        int64     `gorm:"not null" json:"amount_kobo"`
	ReferrerBonusKobo int64     `gorm:"not null;default:0" json:"referrer_bonus_kobo"`
	CreatedAt         time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName overrides the table name
func (Earning) TableName() string {
	return "earnings"
}
