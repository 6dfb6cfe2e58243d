/**
 * @description
 * This file defines the response envelope every endpoint writes. Success and
 * error bodies share the same shape so clients parse one structure:
 * `{responseCode, responseMessage, data?}`.
 */

package api

import (
	"encoding/json"
	"net/http"
)

// Response codes carried in the envelope's responseCode field.
const (
	CodeSuccess             = "SUCCESS"
	CodeValidationError     = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodePodNotFound         = "POD_NOT_FOUND"
	CodePodClosed           = "POD_CLOSED"
	CodePodFull             = "POD_FULL"
	CodeAlreadyJoined       = "ALREADY_JOINED"
	CodeNotPodCreator       = "NOT_POD_CREATOR"
	CodeJoinCodeTaken       = "JOIN_CODE_TAKEN"
	CodeAmountMismatch      = "AMOUNT_MISMATCH"
	CodePaymentFailed       = "PAYMENT_FAILED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInvalidWebhook      = "INVALID_WEBHOOK"
	CodeTransactionNotFound = "TRANSACTION_NOT_FOUND"
	CodeInternalError       = "INTERNAL_ERROR"
)

type envelope struct {
	ResponseCode    string      `json:"responseCode"`
	ResponseMessage string      `json:"responseMessage"`
	Data            interface{} `json:"data,omitempty"`
}

// writeJSON writes a success envelope with the given payload.
func writeJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{
		ResponseCode:    CodeSuccess,
		ResponseMessage: message,
		Data:            data,
	})
}

// writeError writes an error envelope with a machine-readable code.
func writeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{
		ResponseCode:    code,
		ResponseMessage: message,
	})
}
