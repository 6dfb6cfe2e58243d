package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oyosokoto/sharepod-backend/internal/app"
	"github.com/oyosokoto/sharepod-backend/internal/domain"
	"github.com/oyosokoto/sharepod-backend/internal/store"
)

const testSigningSecret = "whsec_test_secret"

type webhookRepoStub struct {
	store.Repository

	txn           *domain.Transaction
	completeCalls int
	markPaidCalls int
}

func (s *webhookRepoStub) FindTransactionBySessionID(ctx context.Context, sessionID string) (*domain.Transaction, error) {
	if s.txn == nil || s.txn.SessionID == nil || *s.txn.SessionID != sessionID {
		return nil, store.ErrTransactionNotFound
	}
	return s.txn, nil
}

func (s *webhookRepoStub) CompleteTransaction(ctx context.Context, transactionID uuid.UUID, paymentReference string) (bool, error) {
	s.completeCalls++
	if s.txn.Status != domain.TransactionPending {
		return false, nil
	}
	s.txn.Status = domain.TransactionCompleted
	return true, nil
}

func (s *webhookRepoStub) FailTransaction(ctx context.Context, transactionID uuid.UUID, failureReason string) (bool, error) {
	if s.txn.Status != domain.TransactionPending {
		return false, nil
	}
	s.txn.Status = domain.TransactionFailed
	s.txn.FailureReason = &failureReason
	return true, nil
}

func (s *webhookRepoStub) MarkParticipantPaid(ctx context.Context, podID uuid.UUID, userID string) (bool, error) {
	s.markPaidCalls++
	return s.markPaidCalls == 1, nil
}

func (s *webhookRepoStub) GetPodSnapshot(ctx context.Context, podID uuid.UUID) (*domain.PodSnapshot, error) {
	return &domain.PodSnapshot{Pod: domain.Pod{ID: podID, Active: true}}, nil
}

func newWebhookFixture(t *testing.T) (*webhookRepoStub, *WebhookHandlers) {
	t.Helper()
	sessionID := "pi_hook_1"
	repo := &webhookRepoStub{
		txn: &domain.Transaction{
			ID:        uuid.New(),
			UserID:    "user_a",
			PodID:     uuid.New(),
			Amount:    5.00,
			Status:    domain.TransactionPending,
			SessionID: &sessionID,
		},
	}
	svc := app.NewService(repo, nil, nil, "", app.ServiceOptions{})
	return repo, NewWebhookHandlers(svc, testSigningSecret, 5*time.Minute)
}

func signWebhookBody(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func webhookBody(eventType string, sessionID string) []byte {
	body, _ := json.Marshal(domain.PaymentWebhookEvent{
		ID:   "evt_1",
		Type: eventType,
		Data: domain.PaymentWebhookData{
			Object: domain.PaymentIntentObject{ID: sessionID, Status: "succeeded", LatestCharge: "ch_1"},
		},
	})
	return body
}

func postWebhook(h *WebhookHandlers, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook", strings.NewReader(string(body)))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.PaymentWebhookHandler(rec, req)
	return rec
}

func TestPaymentWebhook_ValidSignatureReconciles(t *testing.T) {
	repo, h := newWebhookFixture(t)
	body := webhookBody(domain.WebhookPaymentSucceeded, "pi_hook_1")

	rec := postWebhook(h, body, signWebhookBody(testSigningSecret, time.Now().Unix(), body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.txn.Status != domain.TransactionCompleted {
		t.Fatalf("expected completed transaction, got %s", repo.txn.Status)
	}
	if repo.markPaidCalls == 0 {
		t.Fatal("expected the participant to be marked paid")
	}
}

func TestPaymentWebhook_RejectsBadSignature(t *testing.T) {
	repo, h := newWebhookFixture(t)
	body := webhookBody(domain.WebhookPaymentSucceeded, "pi_hook_1")

	tests := []struct {
		name      string
		signature string
	}{
		{name: "missing header", signature: ""},
		{name: "malformed header", signature: "v1=deadbeef"},
		{name: "wrong secret", signature: signWebhookBody("whsec_other", time.Now().Unix(), body)},
		{name: "tampered body", signature: signWebhookBody(testSigningSecret, time.Now().Unix(), []byte(`{"type":"x"}`))},
		{name: "stale timestamp", signature: signWebhookBody(testSigningSecret, time.Now().Add(-time.Hour).Unix(), body)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postWebhook(h, body, tt.signature)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			var env envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("invalid response body: %v", err)
			}
			if env.ResponseCode != CodeInvalidWebhook {
				t.Fatalf("expected INVALID_WEBHOOK, got %s", env.ResponseCode)
			}
		})
	}

	if repo.completeCalls != 0 {
		t.Fatal("rejected deliveries must not touch the transaction")
	}
}

func TestPaymentWebhook_AcknowledgesUnknownEventTypes(t *testing.T) {
	repo, h := newWebhookFixture(t)
	body := webhookBody("payment_intent.created", "pi_hook_1")

	rec := postWebhook(h, body, signWebhookBody(testSigningSecret, time.Now().Unix(), body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for an ignored event type, got %d", rec.Code)
	}
	if repo.completeCalls != 0 {
		t.Fatal("ignored events must not touch the transaction")
	}
}

func TestPaymentWebhook_UnknownSessionReturns404(t *testing.T) {
	_, h := newWebhookFixture(t)
	body := webhookBody(domain.WebhookPaymentSucceeded, "pi_never_seen")

	rec := postWebhook(h, body, signWebhookBody(testSigningSecret, time.Now().Unix(), body))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if env.ResponseCode != CodeTransactionNotFound {
		t.Fatalf("expected TRANSACTION_NOT_FOUND, got %s", env.ResponseCode)
	}
}

func TestPaymentWebhook_ReplayAfterToleranceStillSignatureChecked(t *testing.T) {
	repo, h := newWebhookFixture(t)
	body := webhookBody(domain.WebhookPaymentSucceeded, "pi_hook_1")
	signature := signWebhookBody(testSigningSecret, time.Now().Unix(), body)

	// Two immediate deliveries of the same event apply the transition once.
	for i := 0; i < 2; i++ {
		rec := postWebhook(h, body, signature)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	if repo.completeCalls != 2 {
		t.Fatalf("expected both deliveries to reach the store, got %d", repo.completeCalls)
	}
	if repo.txn.Status != domain.TransactionCompleted {
		t.Fatalf("expected completed, got %s", repo.txn.Status)
	}
}
