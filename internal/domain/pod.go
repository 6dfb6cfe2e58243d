/**
 * @description
 * This file defines the core domain models for the sharepod service: the Pod (one
 * shared bill), its line items, and the per-participant join records that track who
 * owes a share and whether they have paid it.
 *
 * @notes
 * - Using distinct types for API requests, database models, and projection views
 *   keeps the web layer, the store, and the read side cleanly separated.
 * - Amounts are decimal pound values rounded to two places. They are converted to
 *   pence only at the payment-processor boundary.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// SplitType is the policy governing how a pod's total is partitioned.
type SplitType string

const (
	SplitEqual  SplitType = "equal"
	SplitRandom SplitType = "random"
	SplitCustom SplitType = "custom"
)

// Valid reports whether the split type is one of the supported policies.
func (s SplitType) Valid() bool {
	switch s {
	case SplitEqual, SplitRandom, SplitCustom:
		return true
	}
	return false
}

// Pod represents one bill to be collected from multiple participants.
// This struct maps directly to the `pods` table.
type Pod struct {
	ID                uuid.UUID  `json:"id"`
	BusinessName      string     `json:"business_name"`
	Items             []LineItem `json:"items"`
	TotalAmount       float64    `json:"total_amount"`
	ParticipantTarget int        `json:"participant_target"`
	SplitType         SplitType  `json:"split_type"`
	SplitAmounts      []float64  `json:"split_amounts"`
	JoinCode          string     `json:"join_code"`
	CreatedBy         string     `json:"created_by"`
	Active            bool       `json:"active"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// LineItem is one priced item inside a pod. Immutable once the pod is created.
type LineItem struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	UnitPrice float64   `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	Subtotal  float64   `json:"subtotal"`
}

// ParticipantJoin records one participant's membership in a pod. At most one
// exists per (pod, user) pair; hasPaid flips false to true exactly once, driven
// by payment reconciliation.
type ParticipantJoin struct {
	PodID        uuid.UUID `json:"pod_id"`
	UserID       string    `json:"user_id"`
	JoinedAt     time.Time `json:"joined_at"`
	HasPaid      bool      `json:"has_paid"`
	CustomAmount *float64  `json:"custom_amount,omitempty"`
}

// PodSnapshot is a single consistent read of a pod together with all of its
// participant joins, ordered by join time. Eligibility and projection always
// work from one snapshot so count and amount checks are never torn.
type PodSnapshot struct {
	Pod          Pod
	Participants []ParticipantJoin
}

// JoinFor returns the snapshot's join record for the given user, if present.
func (s PodSnapshot) JoinFor(userID string) (ParticipantJoin, bool) {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return ParticipantJoin{}, false
}

// JoinIndex returns the zero-based join-order position of the given user, or -1.
// Equal and Random shares are addressed by this index into SplitAmounts.
func (s PodSnapshot) JoinIndex(userID string) int {
	for i, p := range s.Participants {
		if p.UserID == userID {
			return i
		}
	}
	return -1
}

// CreatePodRequest is the DTO for incoming pod-creation API requests.
// TotalAmount is required when Items is empty; when items are present the
// total is derived from them and TotalAmount, if set, must agree.
type CreatePodRequest struct {
	BusinessName      string           `json:"business_name"`
	Items             []CreateLineItem `json:"items"`
	TotalAmount       float64          `json:"total_amount,omitempty"`
	ParticipantTarget int              `json:"participant_target"`
	SplitType         SplitType        `json:"split_type"`
}

// CreateLineItem is one item within a pod-creation request.
type CreateLineItem struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// JoinPodRequest is the DTO for joining a pod by code.
type JoinPodRequest struct {
	JoinCode string `json:"join_code"`
}

// SetCustomAmountRequest is the DTO for a Custom-split participant submitting
// their own share.
type SetCustomAmountRequest struct {
	Amount float64 `json:"amount"`
}

// PodSummary is the user-facing projection of a pod from one participant's
// perspective. It is recomputed in full on every read and every live update;
// consumers replace their view with it wholesale rather than patching fields.
type PodSummary struct {
	PodID          uuid.UUID  `json:"pod_id"`
	BusinessName   string     `json:"business_name"`
	JoinCode       string     `json:"join_code"`
	SplitType      SplitType  `json:"split_type"`
	Items          []LineItem `json:"items"`
	TotalAmount    float64    `json:"total_amount"`
	YourShare      float64    `json:"your_share"`
	JoinedCount    int        `json:"joined_count"`
	RemainingCount int        `json:"remaining_count"`
	Progress       float64    `json:"progress"`
	IsActiveForYou bool       `json:"is_active_for_you"`
}

// PodUpdatedEvent is published to the message broker whenever a pod's
// participant state changes. It carries the full current snapshot.
type PodUpdatedEvent struct {
	PodID        uuid.UUID         `json:"pod_id"`
	Pod          Pod               `json:"pod"`
	Participants []ParticipantJoin `json:"participants"`
	OccurredAt   time.Time         `json:"occurred_at"`
}
