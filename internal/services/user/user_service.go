package user

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adrewards/backend/internal/models"
	"github.com/adrewards/backend/internal/services/referral"
	"github.com/adrewards/backend/internal/utils"
)

// ErrUserNotFound is returned when a lookup references an unknown user
var ErrUserNotFound = errors.New("user not found")

// codeRetries bounds the referral-code collision retry loop
const codeRetries = 5

// UserService handles registration and user lookups
type UserService struct {
	db        *gorm.DB
	referrals *referral.ReferralService
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, referrals *referral.ReferralService) *UserService {
	return &UserService{db: db, referrals: referrals}
}

// Register creates a user on first contact. The referrer, if any, is
// resolved from the supplied code and captured permanently; registering
// again is a no-op that returns the existing record, so a replayed code can
// never rewrite the referral graph.
func (s *UserService) Register(ctx context.Context, userID int64, username, refCode string) (*models.User, error) {
	var referrerID *int64
	if refCode != "" {
		referrer, err := s.referrals.ResolveCode(ctx, refCode)
		if err != nil {
			return nil, err
		}
		// unknown codes are ignored rather than rejected, matching the
		// share-link contract: a stale link still registers the user
		if referrer != nil && referrer.ID != userID {
			referrerID = &referrer.ID
		}
	}

	for attempt := 0; attempt < codeRetries; attempt++ {
		user := models.User{
			ID:           userID,
			Username:     username,
			ReferralCode: utils.GenerateReferralCode(),
			ReferrerID:   referrerID,
		}

		result := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoNothing: true,
			}).
			Create(&user)

		if result.Error != nil {
			// a collision on the referral_code unique index; draw a fresh
			// code and try again
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				continue
			}
			return nil, fmt.Errorf("error creating user: %w", result.Error)
		}

		if result.RowsAffected == 0 {
			return s.Get(ctx, userID)
		}
		return &user, nil
	}

	return nil, fmt.Errorf("could not assign a unique referral code for user %d", userID)
}

// Get returns a user by id
func (s *UserService) Get(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	return &user, nil
}
