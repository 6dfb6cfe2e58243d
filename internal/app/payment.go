/**
 * @description
 * This file implements the payment-session lifecycle: creating a processor
 * payment intent for an eligible participant, and reconciling the terminal
 * webhook events the processor later delivers for it.
 *
 * Key features:
 * - Session creation re-checks eligibility and the owed amount server-side.
 * - Nothing is persisted when the processor call fails, so the participant can
 *   simply retry.
 * - Reconciliation is idempotent: replayed deliveries collapse into no-ops via
 *   status-conditional updates in the store.
 *
 * @dependencies
 * - context, errors, fmt, log, math, strconv: Standard Go libraries.
 * - internal/domain, internal/store, internal/metrics: Core logic.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/oyosokoto/sharepod-backend/internal/domain"
	"github.com/oyosokoto/sharepod-backend/internal/metrics"
	"github.com/oyosokoto/sharepod-backend/internal/split"
	"github.com/oyosokoto/sharepod-backend/internal/store"
)

var (
	// ErrSessionCreationFailed wraps a processor failure during session
	// creation. No transaction exists for the attempt when this is returned.
	ErrSessionCreationFailed = errors.New("payment session creation failed")
	// ErrAmountMismatch means the client-supplied amount disagrees with the
	// server-computed share.
	ErrAmountMismatch = errors.New("amount does not match the owed share")
)

// EligibilityDeniedError is returned when session creation is refused by the
// eligibility evaluation. It carries the specific reason for the caller.
type EligibilityDeniedError struct {
	Reason IneligibilityReason
}

func (e *EligibilityDeniedError) Error() string {
	return fmt.Sprintf("not eligible to pay: %s", e.Reason)
}

// CreatePaymentSession opens a payment session for the caller's share of a
// pod. Eligibility and the owed amount are evaluated server-side from a fresh
// snapshot; the request amount is only ever validated, never trusted.
func (s *Service) CreatePaymentSession(ctx context.Context, userID string, req domain.CreateSessionRequest) (*domain.PendingPaymentSession, error) {
	podID, err := uuid.Parse(req.PodID)
	if err != nil {
		return nil, ErrInvalidPodID
	}

	if err := s.consumeLimit(ctx, scopePaymentSession, userID, s.sessionLimitPerMinute); err != nil {
		return nil, err
	}

	snap, err := s.repo.GetPodSnapshot(ctx, podID)
	if err != nil {
		return nil, err
	}

	elig := EvaluateEligibility(snap, userID)
	if !elig.Allowed {
		return nil, &EligibilityDeniedError{Reason: elig.Reason}
	}
	if req.Amount != 0 && !amountsEqual(split.Round2(req.Amount), elig.Amount) {
		return nil, ErrAmountMismatch
	}

	minorUnits := int64(math.Round(elig.Amount * 100))
	metadata := map[string]string{
		"pod_id":  podID.String(),
		"user_id": userID,
	}

	intentCtx, cancel := context.WithTimeout(ctx, s.processorTimeout)
	defer cancel()
	intent, err := s.intents.CreatePaymentIntent(intentCtx, minorUnits, s.currency, metadata)
	if err != nil {
		log.Printf("level=error component=payment msg=\"processor rejected intent\" pod_id=%s user_id=%s amount_minor=%d error=%v", podID, userID, minorUnits, err)
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	sessionID := intent.ID
	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		PodID:     podID,
		Amount:    elig.Amount,
		Status:    domain.TransactionPending,
		SessionID: &sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		// The intent exists at the processor but has no local record. It will
		// expire unconfirmed; the webhook for it resolves to no transaction.
		log.Printf("level=error component=payment msg=\"failed to persist transaction for session\" session_id=%s error=%v", sessionID, err)
		return nil, fmt.Errorf("failed to record payment session: %w", err)
	}

	metrics.PaymentSessions.Inc()
	log.Printf("level=info component=payment msg=\"payment session created\" pod_id=%s user_id=%s session_id=%s amount=%s", podID, userID, sessionID, strconv.FormatFloat(elig.Amount, 'f', 2, 64))

	return &domain.PendingPaymentSession{
		TransactionID: txn.ID,
		SessionID:     sessionID,
		ClientSecret:  intent.ClientSecret,
		Amount:        elig.Amount,
		Currency:      s.currency,
	}, nil
}

// ReconcileTerminalEvent applies one terminal webhook outcome to the
// transaction identified by sessionID. Safe to call any number of times with
// the same delivery: only the first application of each transition has effect.
func (s *Service) ReconcileTerminalEvent(ctx context.Context, sessionID string, outcome domain.TerminalOutcome, paymentReference string) error {
	txn, err := s.repo.FindTransactionBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}

	switch outcome {
	case domain.OutcomeSucceeded:
		if txn.Status == domain.TransactionFailed || txn.Status == domain.TransactionRefunded {
			log.Printf("level=warn component=payment msg=\"success event for transaction already terminal\" session_id=%s status=%s", sessionID, txn.Status)
			return nil
		}
		applied, err := s.repo.CompleteTransaction(ctx, txn.ID, paymentReference)
		if err != nil {
			return fmt.Errorf("failed to complete transaction: %w", err)
		}
		// Marking the participant paid runs even on a replay so a crash
		// between the two writes heals on redelivery.
		flipped, err := s.repo.MarkParticipantPaid(ctx, txn.PodID, txn.UserID)
		if err != nil {
			return fmt.Errorf("failed to mark participant paid: %w", err)
		}
		if applied {
			metrics.PaymentsReconciled.WithLabelValues(string(domain.OutcomeSucceeded)).Inc()
			log.Printf("level=info component=payment msg=\"payment completed\" session_id=%s pod_id=%s user_id=%s", sessionID, txn.PodID, txn.UserID)
		}
		if flipped {
			s.publishPodUpdateByID(ctx, txn.PodID)
		}
		return nil

	case domain.OutcomeFailed, domain.OutcomeCanceled:
		reason := "payment failed"
		if outcome == domain.OutcomeCanceled {
			reason = "canceled by payer"
		}
		applied, err := s.repo.FailTransaction(ctx, txn.ID, reason)
		if err != nil {
			return fmt.Errorf("failed to fail transaction: %w", err)
		}
		if applied {
			metrics.PaymentsReconciled.WithLabelValues(string(outcome)).Inc()
			log.Printf("level=info component=payment msg=\"payment did not complete\" session_id=%s outcome=%s", sessionID, outcome)
		}
		return nil
	}

	log.Printf("level=warn component=payment msg=\"ignoring unknown terminal outcome\" session_id=%s outcome=%s", sessionID, outcome)
	return nil
}

// ListTransactions returns the caller's payment attempts, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactionsForUser(ctx, userID, limit, offset)
}

func (s *Service) publishPodUpdateByID(ctx context.Context, podID uuid.UUID) {
	snap, err := s.repo.GetPodSnapshot(ctx, podID)
	if err != nil {
		if !errors.Is(err, store.ErrPodNotFound) {
			log.Printf("level=warn component=payment msg=\"failed to load pod for update event\" pod_id=%s error=%v", podID, err)
		}
		return
	}
	s.publishPodUpdate(ctx, snap)
}
