/**
 * @description
 * This file builds the user-facing pod projection. Every read and every live
 * update recomputes the full summary from a fresh snapshot; clients replace
 * their view wholesale rather than patching individual fields.
 */

package app

import (
	"github.com/oyosokoto/sharepod-backend/internal/domain"
)

// BuildPodSummary projects one pod snapshot into the view for a single user.
// Progress is clamped to [0, 1] and the remaining count never goes negative,
// even if a pod somehow holds more joins than its target.
func BuildPodSummary(snap *domain.PodSnapshot, userID string) domain.PodSummary {
	if snap == nil {
		return domain.PodSummary{}
	}
	pod := snap.Pod
	joined := len(snap.Participants)

	remaining := pod.ParticipantTarget - joined
	if remaining < 0 {
		remaining = 0
	}

	progress := 0.0
	if pod.ParticipantTarget > 0 {
		progress = float64(joined) / float64(pod.ParticipantTarget)
	}
	if progress > 1 {
		progress = 1
	}

	yourShare := 0.0
	hasPaid := false
	if join, ok := snap.JoinFor(userID); ok {
		yourShare = resolvedShare(snap, join, snap.JoinIndex(userID))
		hasPaid = join.HasPaid
	} else if joined < pod.ParticipantTarget {
		// Not yet a participant: show the share the next joiner would take.
		yourShare = shareAt(pod, joined)
	}

	return domain.PodSummary{
		PodID:          pod.ID,
		BusinessName:   pod.BusinessName,
		JoinCode:       pod.JoinCode,
		SplitType:      pod.SplitType,
		Items:          pod.Items,
		TotalAmount:    pod.TotalAmount,
		YourShare:      yourShare,
		JoinedCount:    joined,
		RemainingCount: remaining,
		Progress:       progress,
		IsActiveForYou: pod.Active && !hasPaid,
	}
}
