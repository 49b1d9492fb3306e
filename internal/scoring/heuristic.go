package scoring

// HeuristicScore computes a deterministic quality estimate from dataset
// metadata alone. It is the fallback used when the AI analysis call
// fails, so uploads still receive a confidence score. The result is
// always in [50,100] and monotonic non-decreasing in every input.
func HeuristicScore(title, description string, rowCount, columnCount int) int {
	score := 50

	if len(title) > 10 {
		score += 5
	}
	if len(title) > 30 {
		score += 5
	}

	if len(description) > 50 {
		score += 5
	}
	if len(description) > 150 {
		score += 5
	}
	if len(description) > 300 {
		score += 5
	}

	if rowCount > 10 {
		score += 5
	}
	if rowCount > 100 {
		score += 5
	}
	if rowCount > 1000 {
		score += 5
	}

	if columnCount >= 3 {
		score += 5
	}
	if columnCount >= 5 {
		score += 5
	}

	return ClampScore(score)
}
