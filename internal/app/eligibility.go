/**
 * @description
 * This file implements the payment-eligibility evaluation for pods. A single
 * pure function answers "may this participant open a payment session right
 * now, and for how much", working from one consistent pod snapshot.
 *
 * @notes
 * - The checks run in a fixed order and short-circuit on the first failure so
 *   the caller always gets the most actionable reason.
 * - For Custom pods the resolved amount of a participant who has not submitted
 *   their own share is the placeholder at their join position.
 */

package app

import (
	"github.com/oyosokoto/sharepod-backend/internal/domain"
	"github.com/oyosokoto/sharepod-backend/internal/split"
)

// IneligibilityReason identifies why a participant may not open a payment
// session. The zero value means no objection.
type IneligibilityReason string

const (
	ReasonNone                      IneligibilityReason = ""
	ReasonPodClosed                 IneligibilityReason = "POD_CLOSED"
	ReasonNotAParticipant           IneligibilityReason = "NOT_A_PARTICIPANT"
	ReasonAlreadyPaid               IneligibilityReason = "ALREADY_PAID"
	ReasonWaitingForAllParticipants IneligibilityReason = "WAITING_FOR_ALL_PARTICIPANTS"
	ReasonCustomAmountsUnbalanced   IneligibilityReason = "CUSTOM_AMOUNTS_UNBALANCED"
)

// Eligibility is the outcome of an eligibility evaluation. Amount is only
// meaningful when Allowed is true and is always the server's own figure, never
// a client-supplied one.
type Eligibility struct {
	Allowed bool                `json:"allowed"`
	Reason  IneligibilityReason `json:"reason,omitempty"`
	Amount  float64             `json:"amount,omitempty"`
}

// EvaluateEligibility decides whether userID may pay their share of the pod in
// the given snapshot. Checks run in order: pod open, membership, not already
// paid, and for Custom pods full occupancy plus balanced amounts.
func EvaluateEligibility(snap *domain.PodSnapshot, userID string) Eligibility {
	if snap == nil {
		return Eligibility{Reason: ReasonNotAParticipant}
	}
	if !snap.Pod.Active {
		return Eligibility{Reason: ReasonPodClosed}
	}

	join, ok := snap.JoinFor(userID)
	if !ok {
		return Eligibility{Reason: ReasonNotAParticipant}
	}
	if join.HasPaid {
		return Eligibility{Reason: ReasonAlreadyPaid}
	}

	if snap.Pod.SplitType == domain.SplitCustom {
		if len(snap.Participants) < snap.Pod.ParticipantTarget {
			return Eligibility{Reason: ReasonWaitingForAllParticipants}
		}
		sum := 0.0
		for i, p := range snap.Participants {
			sum += resolvedShare(snap, p, i)
		}
		if !amountsEqual(split.Round2(sum), snap.Pod.TotalAmount) {
			return Eligibility{Reason: ReasonCustomAmountsUnbalanced}
		}
	}

	return Eligibility{
		Allowed: true,
		Amount:  resolvedShare(snap, join, snap.JoinIndex(userID)),
	}
}

// resolvedShare returns the amount a participant currently owes: their own
// submitted amount for a Custom pod, otherwise the precomputed share at their
// join position.
func resolvedShare(snap *domain.PodSnapshot, join domain.ParticipantJoin, index int) float64 {
	if snap.Pod.SplitType == domain.SplitCustom && join.CustomAmount != nil {
		return split.Round2(*join.CustomAmount)
	}
	return shareAt(snap.Pod, index)
}

// shareAt returns the precomputed share at the given join position, falling
// back to an even division when the index is out of range.
func shareAt(pod domain.Pod, index int) float64 {
	if index >= 0 && index < len(pod.SplitAmounts) {
		return pod.SplitAmounts[index]
	}
	if pod.ParticipantTarget > 0 {
		return split.Round2(pod.TotalAmount / float64(pod.ParticipantTarget))
	}
	return split.Round2(pod.TotalAmount)
}
