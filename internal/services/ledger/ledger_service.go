package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adrewards/backend/internal/models"
	"github.com/adrewards/backend/internal/utils"
)

// ErrUserNotFound is returned when a ledger operation references an unknown account
var ErrUserNotFound = errors.New("user not found")

// ErrInsufficientBalance is returned when a debit would drive a balance
// below zero
var ErrInsufficientBalance = errors.New("insufficient balance")

// LedgerService owns all balance mutation. Every credit or debit is a single
// atomic increment executed by the storage engine, never a read-modify-write
// pair in application code.
type LedgerService struct {
	db *gorm.DB
}

// NewLedgerService creates a new ledger service
func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// Credit atomically adds amount to a user's balance inside the given
// transaction handle. Callers that need multiple credits and a log append to
// commit or fail together pass the same tx. Balances never go below zero:
// for debits the floor check is part of the update statement, so concurrent
// debits cannot overdraw between a read and a write.
func Credit(tx *gorm.DB, userID int64, amountKobo int64) error {
	query := tx.Model(&models.User{}).Where("user_id = ?", userID)
	if amountKobo < 0 {
		query = query.Where("balance_kobo + ? >= 0", amountKobo)
	}

	result := query.Update("balance_kobo", gorm.Expr("balance_kobo + ?", amountKobo))
	if result.Error != nil {
		return fmt.Errorf("error crediting user %d: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		if amountKobo < 0 {
			var count int64
			if err := tx.Model(&models.User{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
				return fmt.Errorf("error crediting user %d: %w", userID, err)
			}
			if count > 0 {
				return ErrInsufficientBalance
			}
		}
		return ErrUserNotFound
	}
	return nil
}

// Balance returns the current balance for a user
func (s *LedgerService) Balance(ctx context.Context, userID int64) (int64, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("error finding user: %w", err)
	}
	return user.BalanceKobo, nil
}

// Adjust applies a manual balance change and appends it to the adjustment
// log in one transaction. The amount is signed; debits are negative.
func (s *LedgerService) Adjust(ctx context.Context, userID int64, amountKobo int64, reason string) (*models.BalanceAdjustment, error) {
	adjustment := models.BalanceAdjustment{
		ID:         uuid.New(),
		UserID:     userID,
		AmountKobo: amountKobo,
		Reason:     reason,
		Reference:  utils.GenerateReference("ADJ"),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := Credit(tx, userID, amountKobo); err != nil {
			return err
		}
		return tx.Create(&adjustment).Error
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInsufficientBalance) {
			return nil, err
		}
		return nil, fmt.Errorf("error applying adjustment: %w", err)
	}

	return &adjustment, nil
}

// Reset zeroes a user's balance, recording the compensating debit in the
// adjustment log so the ledger stays reconstructible. The identity and its
// history are retained.
func (s *LedgerService) Reset(ctx context.Context, userID int64, reason string) (*models.BalanceAdjustment, error) {
	var adjustment *models.BalanceAdjustment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "user_id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if user.BalanceKobo == 0 {
			adjustment = nil
			return nil
		}

		adjustment = &models.BalanceAdjustment{
			ID:         uuid.New(),
			UserID:     userID,
			AmountKobo: -user.BalanceKobo,
			Reason:     reason,
			Reference:  utils.GenerateReference("RST"),
		}

		if err := Credit(tx, userID, adjustment.AmountKobo); err != nil {
			return err
		}
		return tx.Create(adjustment).Error
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error resetting balance: %w", err)
	}

	return adjustment, nil
}

// Earnings returns the earnings log entries crediting a user as the viewer
func (s *LedgerService) Earnings(ctx context.Context, userID int64) ([]models.Earning, error) {
	var earnings []models.Earning
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&earnings).Error
	if err != nil {
		return nil, fmt.Errorf("error finding earnings: %w", err)
	}
	return earnings, nil
}

// Reconcile recomputes a user's balance from the earnings and adjustment
// logs. The result must always equal the stored balance; a mismatch means
// the ledger invariant was violated somewhere.
func (s *LedgerService) Reconcile(ctx context.Context, userID int64) (int64, error) {
	db := s.db.WithContext(ctx)

	var principal int64
	err := db.Model(&models.Earning{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount_kobo), 0)").
		Scan(&principal).Error
	if err != nil {
		return 0, fmt.Errorf("error summing earnings: %w", err)
	}

	// Bonuses credited to this user come from earnings of users they referred
	var bonus int64
	err = db.Model(&models.Earning{}).
		Joins("JOIN users ON users.user_id = earnings.user_id").
		Where("users.referrer_id = ?", userID).
		Select("COALESCE(SUM(earnings.referrer_bonus_kobo), 0)").
		Scan(&bonus).Error
	if err != nil {
		return 0, fmt.Errorf("error summing referral bonuses: %w", err)
	}

	var adjustments int64
	err = db.Model(&models.BalanceAdjustment{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount_kobo), 0)").
		Scan(&adjustments).Error
	if err != nil {
		return 0, fmt.Errorf("error summing adjustments: %w", err)
	}

	return principal + bonus + adjustments, nil
}
