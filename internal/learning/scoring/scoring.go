// Package scoring turns the attempts of one questioning session into
// efficiency, mastery and points.
package scoring

// Attempt is the part of a recorded answer the score depends on.
type Attempt struct {
	QuestionID string
	IsCorrect  bool
	IsRetry    bool
}

// Question is one entry of the denominator set fixed when the session started.
// Theory items and other point-less content carry MaxPoints 0.
type Question struct {
	ID        string
	MaxPoints int
}

// Policy holds the pass thresholds and the retry point divisor.
type Policy struct {
	MinEfficiency float64
	MinMastery    float64
	RetryDivisor  int
}

func DefaultPolicy() Policy {
	return Policy{MinEfficiency: 60, MinMastery: 75, RetryDivisor: 2}
}

type Result struct {
	TotalQuestions  int     `json:"total_questions"`
	FirstTryCorrect int     `json:"first_try_correct"`
	RetryCorrect    int     `json:"retry_correct"`
	Efficiency      float64 `json:"efficiency"`
	Mastery         float64 `json:"mastery"`
	RawPoints       int     `json:"raw_points"`
	GainedPoints    int     `json:"gained_points"`
	Passed          bool    `json:"passed"`
}

// Score computes the result of one session. It is a pure function of its
// inputs, so rescoring an unchanged attempt list gives the same result.
func Score(attempts []Attempt, denominator []Question, p Policy) Result {
	if p.RetryDivisor < 1 {
		p.RetryDivisor = 1
	}

	maxPoints := make(map[string]int, len(denominator))
	for _, q := range denominator {
		maxPoints[q.ID] = q.MaxPoints
	}

	r := Result{TotalQuestions: len(denominator)}
	retryPoints := 0
	for _, a := range attempts {
		if !a.IsCorrect {
			continue
		}
		if a.IsRetry {
			r.RetryCorrect++
			retryPoints += maxPoints[a.QuestionID]
		} else {
			r.FirstTryCorrect++
			r.RawPoints += maxPoints[a.QuestionID]
		}
	}
	// only the retry total is rounded down
	r.RawPoints += retryPoints / p.RetryDivisor

	if r.TotalQuestions > 0 {
		n := float64(r.TotalQuestions)
		r.Efficiency = clamp(100 * float64(r.FirstTryCorrect) / n)
		r.Mastery = clamp(100 * float64(r.FirstTryCorrect+r.RetryCorrect) / n)
	}

	r.Passed = r.Efficiency >= p.MinEfficiency && r.Mastery >= p.MinMastery
	if r.Passed {
		r.GainedPoints = r.RawPoints
	}
	return r
}

// Best returns the new subject best and the amount to add to the user's total.
// The best never decreases.
func Best(previous, gained int) (next, delta int) {
	if previous < 0 {
		previous = 0
	}
	next = previous
	if gained > next {
		next = gained
	}
	return next, next - previous
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
