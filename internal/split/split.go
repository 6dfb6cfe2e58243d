/**
 * @description
 * This package computes per-participant shares for a pod's total amount under the
 * three supported split policies: Equal, Random, and Custom. The functions here are
 * pure (Random draws fresh entropy on every call but has no other side effects) and
 * operate on decimal pound amounts rounded to two places.
 *
 * @notes
 * - Equal does NOT redistribute remainder pennies: 21.49 split three ways yields
 *   7.16 for everyone and the 0.01 drift is accepted. Random, by contrast, folds
 *   the cumulative rounding residual into the last share so the sum is exact.
 * - Custom initializes every slot to the Equal value as a placeholder; the real
 *   per-user amount is resolved later from each participant's submitted amount.
 */

package split

import (
	"errors"
	"math"
	"math/rand"
)

// ErrInvalidSplitInput is returned when the total amount or participant count
// cannot produce a meaningful split.
var ErrInvalidSplitInput = errors.New("split: total amount must be > 0 and participant count must be >= 1")

// Round2 rounds a pound amount to two decimal places.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// Equal returns participantCount identical shares of round2(total/count).
// The shares may sum to slightly less than totalAmount; that drift is bounded
// by one penny per participant and is not corrected.
func Equal(totalAmount float64, participantCount int) ([]float64, error) {
	if err := validate(totalAmount, participantCount); err != nil {
		return nil, err
	}
	share := Round2(totalAmount / float64(participantCount))
	shares := make([]float64, participantCount)
	for i := range shares {
		shares[i] = share
	}
	return shares, nil
}

// Random returns participantCount shares drawn from a fresh uniform distribution,
// normalized so they sum to exactly totalAmount at two-decimal precision. The
// residual left over after rounding each share is added to the last element.
// Shares are not guaranteed distinct for small participant counts.
func Random(totalAmount float64, participantCount int) ([]float64, error) {
	if err := validate(totalAmount, participantCount); err != nil {
		return nil, err
	}

	draws := make([]float64, participantCount)
	var drawSum float64
	for i := range draws {
		// Uniform in [1, 100) so no draw can normalize to a zero share.
		draws[i] = 1 + rand.Float64()*99
		drawSum += draws[i]
	}

	shares := make([]float64, participantCount)
	var roundedSum float64
	for i, d := range draws {
		shares[i] = Round2(d / drawSum * totalAmount)
		roundedSum += shares[i]
	}

	shares[participantCount-1] = Round2(shares[participantCount-1] + totalAmount - roundedSum)
	return shares, nil
}

// Custom returns the initial placeholder slots for a Custom-split pod: every
// slot starts at the Equal value until its participant overrides it.
func Custom(totalAmount float64, participantCount int) ([]float64, error) {
	return Equal(totalAmount, participantCount)
}

// ForType dispatches on the split type name used in pod documents.
func ForType(splitType string, totalAmount float64, participantCount int) ([]float64, error) {
	switch splitType {
	case "random":
		return Random(totalAmount, participantCount)
	case "custom":
		return Custom(totalAmount, participantCount)
	default:
		return Equal(totalAmount, participantCount)
	}
}

func validate(totalAmount float64, participantCount int) error {
	if totalAmount <= 0 || participantCount <= 0 {
		return ErrInvalidSplitInput
	}
	return nil
}
