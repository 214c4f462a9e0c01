package notify

import (
	"github.com/sirupsen/logrus"

	"github.com/adrewards/backend/internal/ads"
	"github.com/adrewards/backend/internal/utils"
)

// Notifier is the outbound half of the chat-transport boundary. The engine
// only ever calls these five methods; how messages reach the user is the
// transport's problem. Implementations must be safe for concurrent use.
type Notifier interface {
	// DeliverLink hands the user the ad link at the start of a task
	DeliverLink(userID int64, ad ads.Ad) error
	// SendProgress reports seconds remaining at a countdown checkpoint
	SendProgress(userID int64, remaining int) error
	// NotifyCredit tells the user their principal was credited
	NotifyCredit(userID int64, amountKobo int64) error
	// NotifyReferralBonus tells a referrer their bonus was credited
	NotifyReferralBonus(referrerID int64, amountKobo int64) error
	// NotifyAborted tells the user a task ended without credit
	NotifyAborted(userID int64, reason string) error
}

// LogNotifier writes notifications to the log. It backs development setups
// and is the terminal fallback when no transport webhook is configured.
type LogNotifier struct {
	log *logrus.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) DeliverLink(userID int64, ad ads.Ad) error {
	n.log.WithFields(logrus.Fields{"user_id": userID, "ad_id": ad.ID, "url": ad.URL}).
		Info("deliver ad link")
	return nil
}

func (n *LogNotifier) SendProgress(userID int64, remaining int) error {
	n.log.WithFields(logrus.Fields{"user_id": userID, "remaining": remaining}).
		Debug("countdown progress")
	return nil
}

func (n *LogNotifier) NotifyCredit(userID int64, amountKobo int64) error {
	n.log.WithFields(logrus.Fields{"user_id": userID, "amount": utils.FormatKobo(amountKobo)}).
		Info("balance credited")
	return nil
}

func (n *LogNotifier) NotifyReferralBonus(referrerID int64, amountKobo int64) error {
	n.log.WithFields(logrus.Fields{"user_id": referrerID, "amount": utils.FormatKobo(amountKobo)}).
		Info("referral bonus credited")
	return nil
}

func (n *LogNotifier) NotifyAborted(userID int64, reason string) error {
	n.log.WithFields(logrus.Fields{"user_id": userID, "reason": reason}).
		Info("task aborted")
	return nil
}
