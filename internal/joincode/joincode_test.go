package joincode

import (
	"strings"
	"testing"
)

func TestGenerateLengthAndAlphabet(t *testing.T) {
	for _, length := range []int{1, 6, 10} {
		code := Generate(length)
		if len(code) != length {
			t.Fatalf("Generate(%d) returned %q with length %d", length, code, len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(alphabet, r) {
				t.Fatalf("Generate(%d) returned %q containing %q outside the alphabet", length, code, r)
			}
		}
	}
}

func TestGenerateDefaultsOnBadLength(t *testing.T) {
	for _, length := range []int{0, -3} {
		if code := Generate(length); len(code) != DefaultLength {
			t.Fatalf("Generate(%d) = %q, want default length %d", length, code, DefaultLength)
		}
	}
}

func TestGenerateVaries(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		seen[Generate(DefaultLength)] = struct{}{}
	}
	// 200 draws over a 36^6 space should essentially never collide into a handful of values.
	if len(seen) < 190 {
		t.Fatalf("expected near-unique codes, got %d distinct out of 200", len(seen))
	}
}
