package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adrewards/backend/internal/ads"
)

// Pusher enqueues a payload for asynchronous delivery. Satisfied by
// queue.RedisQueue.
type Pusher interface {
	Push(ctx context.Context, payload interface{}) error
}

// QueuedNotifier hands notifications to the redis queue so countdown
// goroutines never block on transport latency. A worker pool drains the
// queue and delivers through the real notifier.
type QueuedNotifier struct {
	pusher Pusher
}

// NewQueuedNotifier creates a notifier that enqueues instead of delivering
func NewQueuedNotifier(pusher Pusher) *QueuedNotifier {
	return &QueuedNotifier{pusher: pusher}
}

func (n *QueuedNotifier) DeliverLink(userID int64, ad ads.Ad) error {
	return n.pusher.Push(context.Background(), Payload{
		Kind:   KindLink,
		UserID: userID,
		AdID:   ad.ID,
		URL:    ad.URL,
	})
}

func (n *QueuedNotifier) SendProgress(userID int64, remaining int) error {
	return n.pusher.Push(context.Background(), Payload{
		Kind:      KindProgress,
		UserID:    userID,
		Remaining: remaining,
	})
}

func (n *QueuedNotifier) NotifyCredit(userID int64, amountKobo int64) error {
	return n.pusher.Push(context.Background(), Payload{
		Kind:       KindCredit,
		UserID:     userID,
		AmountKobo: amountKobo,
	})
}

func (n *QueuedNotifier) NotifyReferralBonus(referrerID int64, amountKobo int64) error {
	return n.pusher.Push(context.Background(), Payload{
		Kind:       KindReferralBonus,
		UserID:     referrerID,
		AmountKobo: amountKobo,
	})
}

func (n *QueuedNotifier) NotifyAborted(userID int64, reason string) error {
	return n.pusher.Push(context.Background(), Payload{
		Kind:   KindAborted,
		UserID: userID,
		Reason: reason,
	})
}

// DeliveryHandler returns a queue worker handler that decodes queued
// payloads and delivers them through the given notifier
func DeliveryHandler(delegate Notifier) func(ctx context.Context, body []byte) error {
	return func(ctx context.Context, body []byte) error {
		var p Payload
		if err := json.Unmarshal(body, &p); err != nil {
			return fmt.Errorf("failed to decode queued notification: %w", err)
		}

		switch p.Kind {
		case KindLink:
			return delegate.DeliverLink(p.UserID, ads.Ad{ID: p.AdID, URL: p.URL})
		case KindProgress:
			return delegate.SendProgress(p.UserID, p.Remaining)
		case KindCredit:
			return delegate.NotifyCredit(p.UserID, p.AmountKobo)
		case KindReferralBonus:
			return delegate.NotifyReferralBonus(p.UserID, p.AmountKobo)
		case KindAborted:
			return delegate.NotifyAborted(p.UserID, p.Reason)
		default:
			return fmt.Errorf("unknown notification kind: %s", p.Kind)
		}
	}
}
