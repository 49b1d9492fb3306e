package scoring

import (
	"fmt"
)

// Ratings holds the four 1-5 reviewer ratings for a dataset.
type Ratings struct {
	Accuracy     int
	Completeness int
	Relevance    int
	Methodology  int
}

// Validate checks that every rating lies in [1,5].
func (r Ratings) Validate() error {
	for _, rating := range []struct {
		name  string
		value int
	}{
		{"accuracy", r.Accuracy},
		{"completeness", r.Completeness},
		{"relevance", r.Relevance},
		{"methodology", r.Methodology},
	} {
		if rating.value < 1 || rating.value > 5 {
			return fmt.Errorf("rating %s must be between 1 and 5, got %d", rating.name, rating.value)
		}
	}
	return nil
}

// HumanScore converts the four ratings into a 0-100 score.
func (r Ratings) HumanScore() (float64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	mean := float64(r.Accuracy+r.Completeness+r.Relevance+r.Methodology) / 4.0
	return mean / 5.0 * 100.0, nil
}

// FinalScore combines the AI confidence score with the mean of all human
// review scores. An empty human score set yields the AI component only,
// which cannot reach the verification threshold on its own at full weight.
func FinalScore(aiScore float64, humanScores []float64) float64 {
	if len(humanScores) == 0 {
		return aiScore * AIWeight
	}
	var sum float64
	for _, s := range humanScores {
		sum += s
	}
	mean := sum / float64(len(humanScores))
	return aiScore*AIWeight + mean*HumanWeight
}

// Verified reports whether a final score crosses the verification threshold.
func Verified(finalScore float64) bool {
	return finalScore >= VerificationThreshold
}
