// Package match suggests the closest known property code for a mistyped one.
package match

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// MaxDistance is the largest edit distance still considered a plausible typo.
const MaxDistance = 2

// ClosestCode returns the known code nearest to input by edit distance,
// case-insensitively. ok is false when nothing is within MaxDistance.
func ClosestCode(input string, known []string) (string, bool) {
	needle := strings.ToUpper(strings.TrimSpace(input))
	if needle == "" {
		return "", false
	}

	best := ""
	bestDistance := MaxDistance + 1
	for _, code := range known {
		d := levenshtein.ComputeDistance(needle, strings.ToUpper(code))
		if d < bestDistance {
			best = code
			bestDistance = d
		}
	}
	if bestDistance > MaxDistance {
		return "", false
	}
	return best, true
}
