package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/adrewards/backend/internal/ads"
	"github.com/adrewards/backend/internal/utils"
)

// Message kinds posted to the transport webhook
const (
	KindLink          = "deliver_link"
	KindProgress      = "progress"
	KindCredit        = "credit"
	KindReferralBonus = "referral_bonus"
	KindAborted       = "aborted"
)

// Payload is the JSON body posted to the transport for every notification
type Payload struct {
	Kind       string `json:"kind"`
	UserID     int64  `json:"user_id"`
	AdID       string `json:"ad_id,omitempty"`
	URL        string `json:"url,omitempty"`
	Remaining  int    `json:"remaining,omitempty"`
	AmountKobo int64  `json:"amount_kobo,omitempty"`
	Text       string `json:"text,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// WebhookNotifier delivers notifications to the chat transport over HTTP.
// The transport owns message rendering and delivery to the chat platform;
// this side only reports events.
type WebhookNotifier struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// NewWebhookNotifier creates a notifier posting to the transport webhook
func NewWebhookNotifier(baseURL, authToken string) *WebhookNotifier {
	return &WebhookNotifier{
		baseURL:   baseURL,
		authToken: authToken,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// post sends one payload to the transport
func (n *WebhookNotifier) post(payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, n.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+n.authToken)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("transport rejected notification: status %d", resp.StatusCode)
	}
	return nil
}

func (n *WebhookNotifier) DeliverLink(userID int64, ad ads.Ad) error {
	return n.post(Payload{
		Kind:   KindLink,
		UserID: userID,
		AdID:   ad.ID,
		URL:    ad.URL,
		Text:   fmt.Sprintf("🔗 Open this link and stay for the countdown:\n%s", ad.URL),
	})
}

func (n *WebhookNotifier) SendProgress(userID int64, remaining int) error {
	return n.post(Payload{
		Kind:      KindProgress,
		UserID:    userID,
		Remaining: remaining,
		Text:      fmt.Sprintf("⏳ Viewing ad... %ds remaining", remaining),
	})
}

func (n *WebhookNotifier) NotifyCredit(userID int64, amountKobo int64) error {
	return n.post(Payload{
		Kind:       KindCredit,
		UserID:     userID,
		AmountKobo: amountKobo,
		Text:       fmt.Sprintf("🎉 %s has been added to your balance!", utils.FormatKobo(amountKobo)),
	})
}

func (n *WebhookNotifier) NotifyReferralBonus(referrerID int64, amountKobo int64) error {
	return n.post(Payload{
		Kind:       KindReferralBonus,
		UserID:     referrerID,
		AmountKobo: amountKobo,
		Text:       fmt.Sprintf("💸 You earned %s as a referral bonus!", utils.FormatKobo(amountKobo)),
	})
}

func (n *WebhookNotifier) NotifyAborted(userID int64, reason string) error {
	return n.post(Payload{
		Kind:   KindAborted,
		UserID: userID,
		Reason: reason,
		Text:   "⚠️ The ad task ended without credit. Please try again.",
	})
}
