/**
 * @description
 * This file defines the Transaction model: the record of one payment attempt tied
 * to exactly one participant join, reconciled asynchronously by payment-processor
 * webhooks.
 *
 * @notes
 * - Status only moves pending -> {completed, failed}; completed -> refunded is the
 *   only further legal transition. The store enforces this with status-conditional
 *   updates so replayed webhooks cannot double-apply.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus is the lifecycle state of a payment attempt.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionRefunded  TransactionStatus = "refunded"
)

// Terminal reports whether the status ends a transaction's active lifecycle.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionCompleted || s == TransactionFailed || s == TransactionRefunded
}

// Transaction maps directly to the `transactions` table. SessionID is the
// opaque handle issued by the payment processor; webhook reconciliation looks
// transactions up by it, so it must be unique.
type Transaction struct {
	ID               uuid.UUID         `json:"id"`
	UserID           string            `json:"user_id"`
	PodID            uuid.UUID         `json:"pod_id"`
	Amount           float64           `json:"amount"`
	Status           TransactionStatus `json:"status"`
	SessionID        *string           `json:"session_id,omitempty"`
	PaymentReference *string           `json:"payment_reference,omitempty"`
	FailureReason    *string           `json:"failure_reason,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// CreateSessionRequest is the DTO for the create-session endpoint. The amount
// is advisory only: the server recomputes the owed share and rejects mismatches.
type CreateSessionRequest struct {
	PodID  string  `json:"podId"`
	Amount float64 `json:"amount"`
}

// PendingPaymentSession is the value returned from session creation. It is
// handed explicitly to whatever presents the payment UI; no pending client
// secret is ever held as process-wide state.
type PendingPaymentSession struct {
	TransactionID uuid.UUID `json:"transactionId"`
	SessionID     string    `json:"sessionId"`
	ClientSecret  string    `json:"clientSecret"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
}
