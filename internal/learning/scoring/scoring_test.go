package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func questions(points ...int) []Question {
	qs := make([]Question, len(points))
	for i, p := range points {
		qs[i] = Question{ID: string(rune('a' + i)), MaxPoints: p}
	}
	return qs
}

func TestScore(t *testing.T) {
	tests := []struct {
		name        string
		attempts    []Attempt
		denominator []Question
		want        Result
	}{
		{
			name:        "all first try",
			attempts:    []Attempt{{"a", true, false}, {"b", true, false}},
			denominator: questions(10, 10),
			want:        Result{TotalQuestions: 2, FirstTryCorrect: 2, Efficiency: 100, Mastery: 100, RawPoints: 20, GainedPoints: 20, Passed: true},
		},
		{
			name: "retry earns half with floor",
			attempts: []Attempt{
				{"a", true, false}, {"b", true, false}, {"c", true, false},
				{"d", false, false}, {"d", true, true},
			},
			denominator: questions(10, 10, 10, 5),
			want:        Result{TotalQuestions: 4, FirstTryCorrect: 3, RetryCorrect: 1, Efficiency: 75, Mastery: 100, RawPoints: 32, GainedPoints: 32, Passed: true},
		},
		{
			name: "retry halves are summed before rounding",
			attempts: []Attempt{
				{"a", true, false}, {"b", true, false}, {"c", true, false}, {"d", true, false},
				{"e", false, false}, {"f", false, false}, {"e", true, true}, {"f", true, true},
			},
			denominator: questions(10, 10, 10, 10, 5, 5),
			want:        Result{TotalQuestions: 6, FirstTryCorrect: 4, RetryCorrect: 2, Efficiency: 100 * 4.0 / 6, Mastery: 100, RawPoints: 45, GainedPoints: 45, Passed: true},
		},
		{
			name:        "theory items count in the denominator without points",
			attempts:    []Attempt{{"a", true, false}, {"b", true, false}, {"c", true, false}},
			denominator: questions(10, 10, 10, 0),
			want:        Result{TotalQuestions: 4, FirstTryCorrect: 3, Efficiency: 75, Mastery: 75, RawPoints: 30, GainedPoints: 30, Passed: true},
		},
		{
			name:        "low efficiency gains nothing",
			attempts:    []Attempt{{"a", true, false}, {"b", false, false}, {"b", true, true}},
			denominator: questions(10, 10),
			want:        Result{TotalQuestions: 2, FirstTryCorrect: 1, RetryCorrect: 1, Efficiency: 50, Mastery: 100, RawPoints: 15},
		},
		{
			name:        "low mastery gains nothing",
			attempts:    []Attempt{{"a", true, false}, {"b", true, false}, {"c", true, false}, {"d", false, false}, {"e", false, false}},
			denominator: questions(10, 10, 10, 10, 10),
			want:        Result{TotalQuestions: 5, FirstTryCorrect: 3, Efficiency: 60, Mastery: 60, RawPoints: 30},
		},
		{
			name:     "empty denominator",
			attempts: []Attempt{{"a", true, false}},
			want:     Result{RawPoints: 0, FirstTryCorrect: 1},
		},
		{
			name:        "attempt outside the denominator earns no points",
			attempts:    []Attempt{{"a", true, false}, {"zz", true, false}},
			denominator: questions(10),
			want:        Result{TotalQuestions: 1, FirstTryCorrect: 2, Efficiency: 100, Mastery: 100, RawPoints: 10, GainedPoints: 10, Passed: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.attempts, tt.denominator, DefaultPolicy())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScoreRatiosStayInRange(t *testing.T) {
	denominator := questions(10, 10, 10)
	for first := 0; first <= 5; first++ {
		for retry := 0; retry <= 5; retry++ {
			var attempts []Attempt
			for i := 0; i < first; i++ {
				attempts = append(attempts, Attempt{QuestionID: "a", IsCorrect: true})
			}
			for i := 0; i < retry; i++ {
				attempts = append(attempts, Attempt{QuestionID: "b", IsCorrect: true, IsRetry: true})
			}

			r := Score(attempts, denominator, DefaultPolicy())
			assert.GreaterOrEqual(t, r.Efficiency, 0.0)
			assert.LessOrEqual(t, r.Efficiency, 100.0)
			assert.GreaterOrEqual(t, r.Mastery, r.Efficiency)
			assert.LessOrEqual(t, r.Mastery, 100.0)
			if first <= 3 && first+retry <= 3 {
				assert.InDelta(t, 100*float64(first)/3, r.Efficiency, 1e-9)
				assert.InDelta(t, 100*float64(first+retry)/3, r.Mastery, 1e-9)
			}
			if !r.Passed {
				assert.Zero(t, r.GainedPoints)
			}
		}
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	attempts := []Attempt{{"a", true, false}, {"b", false, false}, {"b", true, true}, {"c", true, false}}
	denominator := questions(10, 6, 4)

	first := Score(attempts, denominator, DefaultPolicy())
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, Score(attempts, denominator, DefaultPolicy()))
	}
}

func TestScoreCustomPolicy(t *testing.T) {
	attempts := []Attempt{{"a", true, false}, {"b", false, false}, {"b", true, true}}
	r := Score(attempts, questions(10, 9), Policy{MinEfficiency: 50, MinMastery: 100, RetryDivisor: 3})
	assert.True(t, r.Passed)
	assert.Equal(t, 13, r.GainedPoints)
}

func TestBestNeverDecreases(t *testing.T) {
	runs := []int{30, 0, 20, 45, 10, 45, 0}
	best := 0
	total := 0
	for _, gained := range runs {
		next, delta := Best(best, gained)
		assert.GreaterOrEqual(t, next, best)
		assert.GreaterOrEqual(t, delta, 0)
		total += delta
		best = next
	}
	assert.Equal(t, 45, best)
	assert.Equal(t, 45, total)
}
