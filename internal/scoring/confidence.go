// Package scoring implements the dataset quality scoring and verification rules.
package scoring

import (
	"regexp"
	"strconv"
)

// Weighting of AI and human input in the final verification score.
const (
	AIWeight    = 0.4
	HumanWeight = 0.6

	// VerificationThreshold is the final score at or above which a
	// dataset becomes verified and public.
	VerificationThreshold = 70.0
)

var confidencePattern = regexp.MustCompile(`\d{1,3}`)

// ExtractConfidence pulls the first 1-3 digit run out of free-text model
// output and clamps it to [0,100]. When the text contains no digits the
// fallback is returned unchanged; callers choose their own fallback.
func ExtractConfidence(text string, fallback int) int {
	match := confidencePattern.FindString(text)
	if match == "" {
		return fallback
	}
	score, err := strconv.Atoi(match)
	if err != nil {
		return fallback
	}
	return ClampScore(score)
}

// ClampScore bounds a score to [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
