package app

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oyosokoto/sharepod-backend/internal/domain"
)

func podSnapshot(splitType domain.SplitType, total float64, target int, shares []float64, participants []domain.ParticipantJoin) *domain.PodSnapshot {
	return &domain.PodSnapshot{
		Pod: domain.Pod{
			ID:                uuid.New(),
			BusinessName:      "The Copper Kettle",
			TotalAmount:       total,
			ParticipantTarget: target,
			SplitType:         splitType,
			SplitAmounts:      shares,
			JoinCode:          "A1B2C3",
			CreatedBy:         "user_creator",
			Active:            true,
		},
		Participants: participants,
	}
}

func joinRecord(userID string, hasPaid bool, customAmount *float64) domain.ParticipantJoin {
	return domain.ParticipantJoin{
		UserID:       userID,
		JoinedAt:     time.Now(),
		HasPaid:      hasPaid,
		CustomAmount: customAmount,
	}
}

func ptrFloat(value float64) *float64 {
	return &value
}

func TestEvaluateEligibility_EqualSplit(t *testing.T) {
	snap := podSnapshot(domain.SplitEqual, 21.49, 3, []float64{7.16, 7.16, 7.16}, []domain.ParticipantJoin{
		joinRecord("user_a", false, nil),
	})

	got := EvaluateEligibility(snap, "user_a")
	if !got.Allowed {
		t.Fatalf("expected allowed, got reason %s", got.Reason)
	}
	if got.Amount != 7.16 {
		t.Fatalf("expected amount 7.16, got %.2f", got.Amount)
	}
}

func TestEvaluateEligibility_EqualSplitBeforeFullOccupancy(t *testing.T) {
	// Non-custom participants may pay as soon as they have joined, even while
	// slots remain open.
	snap := podSnapshot(domain.SplitRandom, 30.00, 4, []float64{5.21, 9.80, 7.45, 7.54}, []domain.ParticipantJoin{
		joinRecord("user_a", false, nil),
		joinRecord("user_b", false, nil),
	})

	got := EvaluateEligibility(snap, "user_b")
	if !got.Allowed {
		t.Fatalf("expected allowed, got reason %s", got.Reason)
	}
	if got.Amount != 9.80 {
		t.Fatalf("expected join-order share 9.80, got %.2f", got.Amount)
	}
}

func TestEvaluateEligibility_ShortCircuitOrder(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(snap *domain.PodSnapshot)
		userID     string
		wantReason IneligibilityReason
	}{
		{
			name:       "closed pod rejects even non-participants",
			mutate:     func(snap *domain.PodSnapshot) { snap.Pod.Active = false },
			userID:     "user_stranger",
			wantReason: ReasonPodClosed,
		},
		{
			name:       "non-participant",
			mutate:     func(snap *domain.PodSnapshot) {},
			userID:     "user_stranger",
			wantReason: ReasonNotAParticipant,
		},
		{
			name: "already paid",
			mutate: func(snap *domain.PodSnapshot) {
				snap.Participants[0].HasPaid = true
			},
			userID:     "user_a",
			wantReason: ReasonAlreadyPaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := podSnapshot(domain.SplitEqual, 10.00, 2, []float64{5.00, 5.00}, []domain.ParticipantJoin{
				joinRecord("user_a", false, nil),
			})
			tt.mutate(snap)

			got := EvaluateEligibility(snap, tt.userID)
			if got.Allowed {
				t.Fatalf("expected denial, got allowed with amount %.2f", got.Amount)
			}
			if got.Reason != tt.wantReason {
				t.Fatalf("expected reason %s, got %s", tt.wantReason, got.Reason)
			}
		})
	}
}

func TestEvaluateEligibility_CustomWaitsForAllParticipants(t *testing.T) {
	snap := podSnapshot(domain.SplitCustom, 21.49, 3, []float64{7.16, 7.16, 7.16}, []domain.ParticipantJoin{
		joinRecord("user_a", false, ptrFloat(10.00)),
		joinRecord("user_b", false, ptrFloat(11.49)),
	})

	got := EvaluateEligibility(snap, "user_a")
	if got.Allowed {
		t.Fatal("expected denial while a slot remains open")
	}
	if got.Reason != ReasonWaitingForAllParticipants {
		t.Fatalf("expected WAITING_FOR_ALL_PARTICIPANTS, got %s", got.Reason)
	}
}

func TestEvaluateEligibility_CustomUnbalancedAmounts(t *testing.T) {
	snap := podSnapshot(domain.SplitCustom, 21.49, 3, []float64{7.16, 7.16, 7.16}, []domain.ParticipantJoin{
		joinRecord("user_a", false, ptrFloat(5.00)),
		joinRecord("user_b", false, ptrFloat(5.00)),
		joinRecord("user_c", false, ptrFloat(5.00)),
	})

	got := EvaluateEligibility(snap, "user_b")
	if got.Allowed {
		t.Fatal("expected denial while amounts do not cover the total")
	}
	if got.Reason != ReasonCustomAmountsUnbalanced {
		t.Fatalf("expected CUSTOM_AMOUNTS_UNBALANCED, got %s", got.Reason)
	}
}

func TestEvaluateEligibility_CustomBalancedWithinTolerance(t *testing.T) {
	snap := podSnapshot(domain.SplitCustom, 21.49, 3, []float64{7.16, 7.16, 7.16}, []domain.ParticipantJoin{
		joinRecord("user_a", false, ptrFloat(10.00)),
		joinRecord("user_b", false, ptrFloat(6.49)),
		joinRecord("user_c", false, ptrFloat(5.00)),
	})

	got := EvaluateEligibility(snap, "user_c")
	if !got.Allowed {
		t.Fatalf("expected allowed, got reason %s", got.Reason)
	}
	if got.Amount != 5.00 {
		t.Fatalf("expected submitted amount 5.00, got %.2f", got.Amount)
	}
}

func TestEvaluateEligibility_CustomUsesPlaceholderForUnsubmitted(t *testing.T) {
	// A full custom pod where nobody adjusted their share balances on the
	// placeholders alone.
	snap := podSnapshot(domain.SplitCustom, 21.00, 3, []float64{7.00, 7.00, 7.00}, []domain.ParticipantJoin{
		joinRecord("user_a", false, nil),
		joinRecord("user_b", false, nil),
		joinRecord("user_c", false, nil),
	})

	got := EvaluateEligibility(snap, "user_b")
	if !got.Allowed {
		t.Fatalf("expected allowed, got reason %s", got.Reason)
	}
	if got.Amount != 7.00 {
		t.Fatalf("expected placeholder amount 7.00, got %.2f", got.Amount)
	}
}
