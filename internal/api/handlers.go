/**
 * @description
 * This file contains the HTTP handlers for the sharepod API endpoints. Handlers
 * parse incoming requests, call the application service, and translate service
 * errors into envelope responses with machine-readable codes.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http, strconv: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameters.
 * - internal/app, internal/domain, internal/store: Service logic, models, errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oyosokoto/sharepod-backend/internal/app"
	"github.com/oyosokoto/sharepod-backend/internal/domain"
	"github.com/oyosokoto/sharepod-backend/internal/store"
)

// PodHandlers holds the application service that handlers will use.
type PodHandlers struct {
	service *app.Service
}

// NewPodHandlers creates a new instance of PodHandlers.
func NewPodHandlers(service *app.Service) *PodHandlers {
	return &PodHandlers{service: service}
}

// CreatePodHandler handles pod creation requests.
func (h *PodHandlers) CreatePodHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Could not identify caller")
		return
	}

	var req domain.CreatePodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}

	pod, err := h.service.CreatePod(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, "create_pod", userID, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Pod created", pod)
}

// GetPodHandler returns the caller's projection of one pod.
func (h *PodHandlers) GetPodHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Could not identify caller")
		return
	}

	summary, err := h.service.GetPodSummary(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "get_pod", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, "Pod retrieved", summary)
}

// ListPodsHandler returns projections of every pod the caller belongs to.
func (h *PodHandlers) ListPodsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Could not identify caller")
		return
	}

	summaries, err := h.service.ListPods(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "list_pods", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, "Pods retrieved", summaries)
}

// JoinPodHandler adds the caller to the pod matching the submitted join code.
func (h *PodHandlers) JoinPodHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Could not identify caller")
		return
	}

	var req domain.JoinPodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}

	summary, err := h.service.JoinPod(r.Context(), userID, req.JoinCode)
	if err != nil {
		h.writeServiceError(w, "join_pod", userID, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Joined pod", summary)
}

// SetCustomAmountHandler records the caller's own share on a Custom pod.
func (h *PodHandlers) SetCustomAmountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Could not identify caller")
		return
	}

	var req domain.SetCustomAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}

	summary, err := h.service.SetCustomAmount(r.Context(), userID, chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		h.writeServiceError(w, "set_custom_amount", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, "Custom amount recorded", summary)
}

// ClosePodHandler deactivates a pod. Creator only.
func (h *PodHandlers) ClosePodHandler(w http.ResponseWriter, r *http.Request) {
	h.setPodActiveHandler(w, r, false)
}

// ReopenPodHandler reactivates a closed pod. Creator only.
func (h *PodHandlers) ReopenPodHandler(w http.ResponseWriter, r *http.Request) {
	h.setPodActiveHandler(w, r, true)
}

func (h *PodHandlers) setPodActiveHandler(w http.ResponseWriter, r *http.Request, active bool) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Could not identify caller")
		return
	}

	var err error
	if active {
		err = h.service.ReopenPod(r.Context(), userID, chi.URLParam(r, "id"))
	} else {
		err = h.service.ClosePod(r.Context(), userID, chi.URLParam(r, "id"))
	}
	if err != nil {
		h.writeServiceError(w, "set_pod_active", userID, err)
		return
	}
	message := "Pod closed"
	if active {
		message = "Pod reopened"
	}
	writeJSON(w, http.StatusOK, message, nil)
}

// EligibilityHandler returns a fresh payment-eligibility verdict for the
// caller on the given pod.
func (h *PodHandlers) EligibilityHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Could not identify caller")
		return
	}

	elig, err := h.service.CheckEligibility(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "eligibility", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, "Eligibility evaluated", elig)
}

// CreateSessionHandler opens a payment session for the caller's share.
func (h *PodHandlers) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Could not identify caller")
		return
	}

	var req domain.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}
	if req.PodID == "" {
		writeError(w, http.StatusBadRequest, CodeValidationError, "podId is required")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, CodeValidationError, "amount is required")
		return
	}

	session, err := h.service.CreatePaymentSession(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, "create_session", userID, err)
		return
	}
	writeJSON(w, http.StatusCreated, "Payment session created", session)
}

// ListTransactionsHandler returns the caller's payment attempts, newest first.
func (h *PodHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Could not identify caller")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	transactions, err := h.service.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeServiceError(w, "list_transactions", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, "Transactions retrieved", transactions)
}

// writeServiceError maps service and store errors onto envelope responses.
func (h *PodHandlers) writeServiceError(w http.ResponseWriter, endpoint string, userID string, err error) {
	var denied *app.EligibilityDeniedError
	if errors.As(err, &denied) {
		writeError(w, http.StatusConflict, string(denied.Reason), "Not eligible to pay for this pod")
		return
	}
	var limited *app.RateLimitExceededError
	if errors.As(err, &limited) {
		w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfterSeconds))
		writeError(w, http.StatusTooManyRequests, CodeRateLimited, "Too many requests, slow down")
		return
	}

	switch {
	case errors.Is(err, store.ErrPodNotFound):
		writeError(w, http.StatusNotFound, CodePodNotFound, "Pod not found")
	case errors.Is(err, store.ErrPodClosed):
		writeError(w, http.StatusConflict, CodePodClosed, "Pod is closed")
	case errors.Is(err, store.ErrPodFull):
		writeError(w, http.StatusConflict, CodePodFull, "Pod is already full")
	case errors.Is(err, store.ErrJoinCodeTaken):
		writeError(w, http.StatusConflict, CodeJoinCodeTaken, "Join code is no longer available")
	case errors.Is(err, store.ErrAlreadyJoined):
		writeError(w, http.StatusConflict, CodeAlreadyJoined, "You have already joined this pod")
	case errors.Is(err, store.ErrNotAParticipant):
		writeError(w, http.StatusConflict, string(app.ReasonNotAParticipant), "You have not joined this pod")
	case errors.Is(err, store.ErrAlreadyPaid):
		writeError(w, http.StatusConflict, string(app.ReasonAlreadyPaid), "You have already paid your share")
	case errors.Is(err, store.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, CodeTransactionNotFound, "Transaction not found")
	case errors.Is(err, app.ErrNotPodCreator):
		writeError(w, http.StatusForbidden, CodeNotPodCreator, "Only the pod creator may do this")
	case errors.Is(err, app.ErrAmountMismatch):
		writeError(w, http.StatusConflict, CodeAmountMismatch, "Amount does not match your owed share")
	case errors.Is(err, app.ErrSessionCreationFailed):
		writeError(w, http.StatusInternalServerError, CodePaymentFailed, "Could not create payment session")
	case errors.Is(err, app.ErrInvalidPodID),
		errors.Is(err, app.ErrInvalidBusinessName),
		errors.Is(err, app.ErrInvalidParticipantTarget),
		errors.Is(err, app.ErrInvalidSplitType),
		errors.Is(err, app.ErrInvalidLineItem),
		errors.Is(err, app.ErrInvalidTotalAmount),
		errors.Is(err, app.ErrTotalMismatch),
		errors.Is(err, app.ErrInvalidJoinCode),
		errors.Is(err, app.ErrNotCustomSplit),
		errors.Is(err, app.ErrInvalidCustomAmount):
		writeError(w, http.StatusBadRequest, CodeValidationError, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s outcome=failed user_id=%s err=%v", endpoint, userID, err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
	}
}
