/**
 * @description
 * This file handles incoming payment-processor webhooks. Deliveries are
 * authenticated with an HMAC-SHA256 signature over the raw body before any
 * parsing happens, and terminal events are handed to the reconciliation path.
 *
 * Key features:
 * - Signature header format `t=<unix>,v1=<hex>`, signed over `<t>.<body>`.
 * - Stale timestamps outside the tolerance window are rejected to blunt
 *   replay of captured deliveries.
 * - Unrecognized event types are acknowledged with 200 so the processor does
 *   not retry them forever.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha256, encoding/hex, encoding/json, io, net/http,
 *   strconv, strings, time: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: Reconciliation logic.
 */

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oyosokoto/sharepod-backend/internal/app"
	"github.com/oyosokoto/sharepod-backend/internal/domain"
	"github.com/oyosokoto/sharepod-backend/internal/store"
)

// SignatureHeader carries the webhook signature on processor deliveries.
const SignatureHeader = "X-Sharepod-Signature"

const maxWebhookBodyBytes = 1 << 20

// WebhookHandlers holds the dependencies of the webhook endpoint.
type WebhookHandlers struct {
	service       *app.Service
	signingSecret string
	tolerance     time.Duration
	now           func() time.Time
}

// NewWebhookHandlers creates webhook handlers verifying signatures with the
// given shared secret. Timestamps older or newer than tolerance are rejected.
func NewWebhookHandlers(service *app.Service, signingSecret string, tolerance time.Duration) *WebhookHandlers {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &WebhookHandlers{
		service:       service,
		signingSecret: signingSecret,
		tolerance:     tolerance,
		now:           time.Now,
	}
}

// PaymentWebhookHandler ingests one processor delivery.
func (h *WebhookHandlers) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidWebhook, "Could not read request body")
		return
	}

	if err := h.verifySignature(r.Header.Get(SignatureHeader), body); err != nil {
		log.Printf("level=warn component=webhook outcome=reject reason=bad_signature err=%v", err)
		writeError(w, http.StatusBadRequest, CodeInvalidWebhook, "Invalid webhook signature")
		return
	}

	var event domain.PaymentWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidWebhook, "Invalid webhook payload")
		return
	}

	outcome, actionable := domain.OutcomeForEventType(event.Type)
	if !actionable {
		log.Printf("level=info component=webhook msg=\"ignoring event type\" event_id=%s type=%s", event.ID, event.Type)
		writeJSON(w, http.StatusOK, "Event acknowledged", map[string]bool{"received": true})
		return
	}

	sessionID := event.Data.Object.ID
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidWebhook, "Event carries no session id")
		return
	}

	err = h.service.ReconcileTerminalEvent(r.Context(), sessionID, outcome, event.Data.Object.LatestCharge)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			// The processor can deliver events for sessions this service never
			// recorded. Log and reject so the mismatch is visible, nothing to
			// roll back.
			log.Printf("level=warn component=webhook outcome=skip reason=unknown_session session_id=%s type=%s", sessionID, event.Type)
			writeError(w, http.StatusNotFound, CodeTransactionNotFound, "No transaction for this session")
			return
		}
		log.Printf("level=error component=webhook outcome=failed session_id=%s type=%s err=%v", sessionID, event.Type, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Could not process event")
		return
	}

	writeJSON(w, http.StatusOK, "Event processed", map[string]bool{"received": true})
}

// verifySignature checks the `t=<unix>,v1=<hex>` header against an
// HMAC-SHA256 of `<t>.<body>` under the shared secret.
func (h *WebhookHandlers) verifySignature(header string, body []byte) error {
	if h.signingSecret == "" {
		return errors.New("webhook signing secret is not configured")
	}
	if header == "" {
		return errors.New("missing signature header")
	}

	var timestampPart, signaturePart string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "t="):
			timestampPart = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v1="):
			signaturePart = strings.TrimPrefix(part, "v1=")
		}
	}
	if timestampPart == "" || signaturePart == "" {
		return errors.New("malformed signature header")
	}

	timestamp, err := strconv.ParseInt(timestampPart, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid signature timestamp: %w", err)
	}
	age := h.now().Sub(time.Unix(timestamp, 0))
	if age > h.tolerance || age < -h.tolerance {
		return errors.New("signature timestamp outside tolerance")
	}

	provided, err := hex.DecodeString(signaturePart)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(h.signingSecret))
	mac.Write([]byte(timestampPart))
	mac.Write([]byte("."))
	mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return errors.New("signature mismatch")
	}
	return nil
}
