package reward

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/adrewards/backend/internal/config"
	"github.com/adrewards/backend/internal/models"
	"github.com/adrewards/backend/internal/notify"
	"github.com/adrewards/backend/internal/services/ledger"
	"github.com/adrewards/backend/internal/services/referral"
	"github.com/adrewards/backend/internal/services/task"
)

// SettlementError reports a failed atomic credit step with enough context
// for manual reconciliation. The task stays registered when this is
// returned; the active_tasks row is the durable marker of "owed but not yet
// settled".
type SettlementError struct {
	UserID    int64
	AdID      string
	Principal int64
	Bonus     int64
	Err       error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement failed for user %d ad %s (principal %d, bonus %d): %v",
		e.UserID, e.AdID, e.Principal, e.Bonus, e.Err)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

// Dispatcher settles completed verifications: it computes the principal and
// referral bonus and applies them, together with the earnings log append and
// the task clear, as one all-or-nothing transaction.
type Dispatcher struct {
	db        *gorm.DB
	cfg       config.RewardConfig
	referrals *referral.ReferralService
	notifier  notify.Notifier
	log       *logrus.Logger
}

// NewDispatcher creates a new reward dispatcher
func NewDispatcher(db *gorm.DB, cfg config.RewardConfig, referrals *referral.ReferralService, notifier notify.Notifier, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		db:        db,
		cfg:       cfg,
		referrals: referrals,
		notifier:  notifier,
		log:       log,
	}
}

// BonusAmount computes the referral bonus for a principal, rounding half up
// so no fractional kobo is ever minted
func BonusAmount(principalKobo int64, percent int) int64 {
	return int64(math.Round(float64(principalKobo) * float64(percent) / 100.0))
}

// Settle credits the viewer and, when one exists, their referrer, and
// appends the earning record. The task row is deleted inside the same
// transaction and gates the whole step: if the row is already gone the task
// was settled (or cancelled) before, and Settle returns ErrTaskNotActive
// without touching any balance. On storage failure the transaction rolls
// back, so the task remains registered for retry.
func (d *Dispatcher) Settle(ctx context.Context, userID int64, adID string) (*models.Earning, error) {
	referrerID, err := d.referrals.Resolve(ctx, userID)
	if err != nil {
		return nil, d.fail(userID, adID, 0, 0, err)
	}

	principal := d.cfg.AdAmountKobo
	var bonus int64
	if referrerID != nil {
		bonus = BonusAmount(principal, d.cfg.ReferralPercent)
	}

	earning := models.Earning{
		UserID:            userID,
		AdID:              adID,
		AmountKobo:        principal,
		ReferrerBonusKobo: bonus,
	}

	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ? AND ad_id = ?", userID, adID).
			Delete(&models.ActiveTask{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return task.ErrTaskNotActive
		}

		if err := ledger.Credit(tx, userID, principal); err != nil {
			return err
		}
		if bonus > 0 {
			if err := ledger.Credit(tx, *referrerID, bonus); err != nil {
				return err
			}
		}

		return tx.Create(&earning).Error
	})
	if err != nil {
		if errors.Is(err, task.ErrTaskNotActive) {
			return nil, task.ErrTaskNotActive
		}
		return nil, d.fail(userID, adID, principal, bonus, err)
	}

	// delivery failures after commit are non-fatal: the ledger is settled
	if err := d.notifier.NotifyCredit(userID, principal); err != nil {
		d.log.WithError(err).WithField("user_id", userID).Warn("credit notification failed")
	}
	if bonus > 0 {
		if err := d.notifier.NotifyReferralBonus(*referrerID, bonus); err != nil {
			d.log.WithError(err).WithField("user_id", *referrerID).Warn("bonus notification failed")
		}
	}

	return &earning, nil
}

// fail logs the settlement failure with full reconciliation context and
// wraps it in a SettlementError
func (d *Dispatcher) fail(userID int64, adID string, principal, bonus int64, err error) error {
	serr := &SettlementError{
		UserID:    userID,
		AdID:      adID,
		Principal: principal,
		Bonus:     bonus,
		Err:       err,
	}
	d.log.WithFields(logrus.Fields{
		"user_id":   userID,
		"ad_id":     adID,
		"principal": principal,
		"bonus":     bonus,
	}).WithError(err).Error("settlement failed; task left registered for retry")
	return serr
}
