/**
 * @description
 * This file models the incoming webhook payloads from the payment processor. The
 * structures capture the event type and the session the event pertains to, which is
 * all the reconciliation path needs.
 */

package domain

import "time"

// Webhook event types the service acts on. Anything else is acknowledged and
// ignored.
const (
	WebhookPaymentSucceeded = "payment_intent.succeeded"
	WebhookPaymentFailed    = "payment_intent.payment_failed"
	WebhookPaymentCanceled  = "payment_intent.canceled"
)

// PaymentWebhookEvent is the top-level structure of a processor webhook payload.
type PaymentWebhookEvent struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Data      PaymentWebhookData `json:"data"`
	CreatedAt time.Time          `json:"created_at"`
}

// PaymentWebhookData wraps the payment-intent object the event describes.
type PaymentWebhookData struct {
	Object PaymentIntentObject `json:"object"`
}

// PaymentIntentObject carries the session identity and outcome details.
type PaymentIntentObject struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	LatestCharge       string `json:"latest_charge,omitempty"`
}

// TerminalOutcome is the normalized result of a terminal webhook event.
type TerminalOutcome string

const (
	OutcomeSucceeded TerminalOutcome = "succeeded"
	OutcomeFailed    TerminalOutcome = "failed"
	OutcomeCanceled  TerminalOutcome = "canceled"
)

// OutcomeForEventType maps a webhook event type to a terminal outcome. The
// second return is false for event types the service does not act on.
func OutcomeForEventType(eventType string) (TerminalOutcome, bool) {
	switch eventType {
	case WebhookPaymentSucceeded:
		return OutcomeSucceeded, true
	case WebhookPaymentFailed:
		return OutcomeFailed, true
	case WebhookPaymentCanceled:
		return OutcomeCanceled, true
	}
	return "", false
}
