package split

import (
	"errors"
	"math"
	"testing"
)

func TestEqualSharesAreIdenticalWithBoundedDrift(t *testing.T) {
	tests := []struct {
		name             string
		totalAmount      float64
		participantCount int
		wantShare        float64
	}{
		{name: "divides exactly", totalAmount: 30.00, participantCount: 3, wantShare: 10.00},
		{name: "remainder penny is not redistributed", totalAmount: 21.49, participantCount: 3, wantShare: 7.16},
		{name: "single participant", totalAmount: 9.99, participantCount: 1, wantShare: 9.99},
		{name: "rounds half up", totalAmount: 0.05, participantCount: 2, wantShare: 0.03},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := Equal(tt.totalAmount, tt.participantCount)
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if len(shares) != tt.participantCount {
				t.Fatalf("expected %d shares, got %d", tt.participantCount, len(shares))
			}
			for i, share := range shares {
				if share != tt.wantShare {
					t.Fatalf("share[%d] = %v, want %v", i, share, tt.wantShare)
				}
			}
			// Drift between count*share and the total stays within a penny per participant.
			drift := math.Abs(tt.wantShare*float64(tt.participantCount) - tt.totalAmount)
			if drift > 0.01*float64(tt.participantCount) {
				t.Fatalf("drift %v exceeds bound", drift)
			}
		})
	}
}

func TestRandomSharesSumExactly(t *testing.T) {
	totals := []float64{21.49, 100.00, 0.03, 7.77, 1234.56}
	counts := []int{1, 2, 3, 7, 25}

	for _, total := range totals {
		for _, count := range counts {
			shares, err := Random(total, count)
			if err != nil {
				t.Fatalf("Random(%v, %d): unexpected error %v", total, count, err)
			}
			if len(shares) != count {
				t.Fatalf("Random(%v, %d): expected %d shares, got %d", total, count, count, len(shares))
			}
			var sum float64
			for _, share := range shares {
				if share < 0 {
					t.Fatalf("Random(%v, %d): negative share %v", total, count, share)
				}
				sum = Round2(sum + share)
			}
			if sum != Round2(total) {
				t.Fatalf("Random(%v, %d): shares sum to %v", total, count, sum)
			}
		}
	}
}

func TestCustomInitializesToEqualPlaceholders(t *testing.T) {
	shares, err := Custom(21.49, 3)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	equal, _ := Equal(21.49, 3)
	if len(shares) != len(equal) {
		t.Fatalf("expected %d shares, got %d", len(equal), len(shares))
	}
	for i := range shares {
		if shares[i] != equal[i] {
			t.Fatalf("share[%d] = %v, want equal placeholder %v", i, shares[i], equal[i])
		}
	}
}

func TestInvalidInputsAreRejected(t *testing.T) {
	tests := []struct {
		name             string
		totalAmount      float64
		participantCount int
	}{
		{name: "zero total", totalAmount: 0, participantCount: 3},
		{name: "negative total", totalAmount: -5, participantCount: 3},
		{name: "zero participants", totalAmount: 10, participantCount: 0},
		{name: "negative participants", totalAmount: 10, participantCount: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, fn := range []func(float64, int) ([]float64, error){Equal, Random, Custom} {
				if _, err := fn(tt.totalAmount, tt.participantCount); !errors.Is(err, ErrInvalidSplitInput) {
					t.Fatalf("expected ErrInvalidSplitInput, got %v", err)
				}
			}
		})
	}
}

func TestForTypeDispatch(t *testing.T) {
	shares, err := ForType("random", 50, 4)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(shares) != 4 {
		t.Fatalf("expected 4 shares, got %d", len(shares))
	}

	shares, err = ForType("equal", 50, 4)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	for _, share := range shares {
		if share != 12.50 {
			t.Fatalf("expected 12.50 shares, got %v", share)
		}
	}
}
