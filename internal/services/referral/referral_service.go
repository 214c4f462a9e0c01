package referral

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/adrewards/backend/internal/models"
)

// ReferralService resolves the referral graph. The graph is written once at
// registration and never mutated, so reads here are plain lookups with no
// caching layer.
type ReferralService struct {
	db *gorm.DB
}

// Stats summarizes a referrer's standing
type Stats struct {
	ReferralCount   int64 `json:"referral_count"`
	BonusEarnedKobo int64 `json:"bonus_earned_kobo"`
}

// NewReferralService creates a new referral service
func NewReferralService(db *gorm.DB) *ReferralService {
	return &ReferralService{db: db}
}

// Resolve returns the id of the user's referrer, or nil when the user was
// registered without one. The value reflects what was captured at the
// referred user's creation time, permanently.
func (s *ReferralService) Resolve(ctx context.Context, userID int64) (*int64, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Select("referrer_id").
		First(&user, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error resolving referrer: %w", err)
	}
	return user.ReferrerID, nil
}

// ResolveCode returns the user owning a referral code, or nil when the code
// is unknown
func (s *ReferralService) ResolveCode(ctx context.Context, code string) (*models.User, error) {
	if code == "" {
		return nil, nil
	}

	var referrer models.User
	err := s.db.WithContext(ctx).First(&referrer, "referral_code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error resolving referral code: %w", err)
	}
	return &referrer, nil
}

// StatsFor returns how many users this user referred and the total bonus
// their activity has earned them
func (s *ReferralService) StatsFor(ctx context.Context, userID int64) (*Stats, error) {
	db := s.db.WithContext(ctx)
	stats := &Stats{}

	err := db.Model(&models.User{}).
		Where("referrer_id = ?", userID).
		Count(&stats.ReferralCount).Error
	if err != nil {
		return nil, fmt.Errorf("error counting referrals: %w", err)
	}

	err = db.Model(&models.Earning{}).
		Joins("JOIN users ON users.user_id = earnings.user_id").
		Where("users.referrer_id = ? AND earnings.referrer_bonus_kobo > 0", userID).
		Select("COALESCE(SUM(earnings.referrer_bonus_kobo), 0)").
		Scan(&stats.BonusEarnedKobo).Error
	if err != nil {
		return nil, fmt.Errorf("error summing referral bonuses: %w", err)
	}

	return stats, nil
}
