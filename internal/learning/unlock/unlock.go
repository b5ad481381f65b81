// Package unlock decides whether a subject is open to a learner.
package unlock

// Availability is the gate decision for one subject, computed from the
// learner's current total on every request.
type Availability struct {
	Available bool `json:"available"`
	Required  int  `json:"min_points_required"`
	Have      int  `json:"total_points"`
	Missing   int  `json:"missing_points"`
}

// Available reports whether totalPoints reaches minPointsRequired.
func Available(totalPoints, minPointsRequired int) bool {
	return totalPoints >= minPointsRequired
}

func Check(totalPoints, minPointsRequired int) Availability {
	a := Availability{
		Available: Available(totalPoints, minPointsRequired),
		Required:  minPointsRequired,
		Have:      totalPoints,
	}
	if !a.Available {
		a.Missing = minPointsRequired - totalPoints
	}
	return a
}
