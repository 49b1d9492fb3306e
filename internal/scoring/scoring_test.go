package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractConfidence(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		fallback int
		expected int
	}{
		{
			name:     "plain number",
			text:     "The dataset quality score is 85 out of 100.",
			fallback: 65,
			expected: 85,
		},
		{
			name:     "leading prose",
			text:     "Confidence: 72",
			fallback: 65,
			expected: 72,
		},
		{
			name:     "no digits falls back",
			text:     "I cannot determine a score for this dataset.",
			fallback: 65,
			expected: 65,
		},
		{
			name:     "alternate fallback value",
			text:     "no score here",
			fallback: 75,
			expected: 75,
		},
		{
			name:     "first run wins",
			text:     "Score 60, previously 90",
			fallback: 65,
			expected: 60,
		},
		{
			name:     "three digit run clamped",
			text:     "999 percent certain",
			fallback: 65,
			expected: 100,
		},
		{
			name:     "empty input",
			text:     "",
			fallback: 65,
			expected: 65,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtractConfidence(tc.text, tc.fallback))
		})
	}
}

func TestHeuristicScoreBounds(t *testing.T) {
	// Score stays within [50,100] across a sweep of inputs
	titles := []string{"", "short", strings.Repeat("t", 11), strings.Repeat("t", 31)}
	descriptions := []string{"", strings.Repeat("d", 51), strings.Repeat("d", 151), strings.Repeat("d", 301)}
	rowCounts := []int{0, 11, 101, 1001}
	columnCounts := []int{0, 3, 5, 50}

	for _, title := range titles {
		for _, desc := range descriptions {
			for _, rows := range rowCounts {
				for _, cols := range columnCounts {
					score := HeuristicScore(title, desc, rows, cols)
					assert.GreaterOrEqual(t, score, 50)
					assert.LessOrEqual(t, score, 100)
				}
			}
		}
	}
}

func TestHeuristicScoreMonotonic(t *testing.T) {
	base := HeuristicScore("short title here", "a description of moderate length for testing", 50, 4)

	// Growing any single input never lowers the score
	assert.GreaterOrEqual(t, HeuristicScore(strings.Repeat("t", 40), "a description of moderate length for testing", 50, 4), base)
	assert.GreaterOrEqual(t, HeuristicScore("short title here", strings.Repeat("d", 400), 50, 4), base)
	assert.GreaterOrEqual(t, HeuristicScore("short title here", "a description of moderate length for testing", 5000, 4), base)
	assert.GreaterOrEqual(t, HeuristicScore("short title here", "a description of moderate length for testing", 50, 12), base)
}

func TestHeuristicScoreMaximum(t *testing.T) {
	score := HeuristicScore(strings.Repeat("t", 31), strings.Repeat("d", 301), 1001, 5)
	assert.Equal(t, 100, score)
}

func TestPointsForScore(t *testing.T) {
	testCases := []struct {
		score    int
		expected int
	}{
		{0, 50},
		{49, 50},
		{50, 60},
		{59, 60},
		{60, 70},
		{69, 70},
		{70, 80},
		{79, 80},
		{80, 90},
		{89, 90},
		{90, 100},
		{100, 100},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, PointsForScore(tc.score), "score %d", tc.score)
	}
}

func TestPointsForScoreMonotonic(t *testing.T) {
	prev := PointsForScore(0)
	for s := 1; s <= 100; s++ {
		points := PointsForScore(s)
		assert.GreaterOrEqual(t, points, prev, "points dropped at score %d", s)
		prev = points
	}
}

func TestRatingsValidate(t *testing.T) {
	testCases := []struct {
		name    string
		ratings Ratings
		wantErr bool
	}{
		{"all valid", Ratings{5, 5, 5, 5}, false},
		{"all minimum", Ratings{1, 1, 1, 1}, false},
		{"accuracy too low", Ratings{0, 3, 3, 3}, true},
		{"completeness too high", Ratings{3, 6, 3, 3}, true},
		{"relevance negative", Ratings{3, 3, -1, 3}, true},
		{"methodology zero", Ratings{3, 3, 3, 0}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.ratings.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHumanScore(t *testing.T) {
	score, err := Ratings{5, 5, 5, 5}.HumanScore()
	require.NoError(t, err)
	assert.InDelta(t, 100.0, score, 0.001)

	score, err = Ratings{1, 1, 1, 1}.HumanScore()
	require.NoError(t, err)
	assert.InDelta(t, 20.0, score, 0.001)

	score, err = Ratings{4, 3, 5, 4}.HumanScore()
	require.NoError(t, err)
	assert.InDelta(t, 80.0, score, 0.001)

	_, err = Ratings{0, 3, 3, 3}.HumanScore()
	assert.Error(t, err)
}

func TestFinalScore(t *testing.T) {
	// ai=80, single all-5 review: human=100, final=0.4*80+0.6*100=92
	final := FinalScore(80, []float64{100})
	assert.InDelta(t, 92.0, final, 0.001)
	assert.True(t, Verified(final))

	// ai=50, all-1 review: human=20, final=0.4*50+0.6*20=32
	final = FinalScore(50, []float64{20})
	assert.InDelta(t, 32.0, final, 0.001)
	assert.False(t, Verified(final))

	// multiple reviews use the mean
	final = FinalScore(60, []float64{80, 100})
	assert.InDelta(t, 0.4*60+0.6*90, final, 0.001)

	// threshold boundary is inclusive
	assert.True(t, Verified(70.0))
	assert.False(t, Verified(69.999))
}

func TestFinalScoreNoReviews(t *testing.T) {
	// Without human reviews only the weighted AI component counts,
	// so even a perfect AI score cannot verify a dataset.
	final := FinalScore(100, nil)
	assert.InDelta(t, 40.0, final, 0.001)
	assert.False(t, Verified(final))
}
