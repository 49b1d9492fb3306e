package scoring

// Base reward for any accepted upload; a single quality band bonus is
// added on top.
const basePoints = 50

// PointsForScore maps a confidence score to an upload reward. Bands are
// mutually exclusive: only the highest applicable bonus applies.
func PointsForScore(score int) int {
	switch {
	case score >= 90:
		return basePoints + 50
	case score >= 80:
		return basePoints + 40
	case score >= 70:
		return basePoints + 30
	case score >= 60:
		return basePoints + 20
	case score >= 50:
		return basePoints + 10
	default:
		return basePoints
	}
}
