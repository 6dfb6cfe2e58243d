/**
 * @description
 * This package generates the short, human-shareable codes participants type in to
 * find and join a pod. Codes are drawn uniformly from the 36-character A-Z0-9
 * alphabet; collision probability is the concern here, not secrecy, so the
 * statistically uniform math/rand source is sufficient.
 *
 * @notes
 * - The generator makes no uniqueness guarantee. The pod-creation flow checks each
 *   candidate against currently-active pods and regenerates on collision.
 */

package joincode

import "math/rand"

// DefaultLength is the code length used when no override is configured.
const DefaultLength = 6

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generate returns a fresh join code of the given length. Lengths below one
// fall back to DefaultLength.
func Generate(length int) string {
	if length < 1 {
		length = DefaultLength
	}
	code := make([]byte, length)
	for i := range code {
		code[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(code)
}
