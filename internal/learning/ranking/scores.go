package ranking

// User is a leaderboard participant. Users without data still appear with score 0.
type User struct {
	ID          string
	DisplayName string
	TotalPoints int
}

// Progress is one SubjectProgress row as the ranker sees it.
type Progress struct {
	UserID         string
	SectionID      string
	SubjectID      string
	Points         int
	Passed         bool
	LastEfficiency float64
	LastMastery    float64
}

// QuestionAttempt is one recorded answer to the question being ranked.
type QuestionAttempt struct {
	UserID    string
	IsCorrect bool
	IsRetry   bool
}

// QuestionPoints values a correct first try and a correct retry.
type QuestionPoints struct {
	FirstTry int
	Retry    int
}

// QuestionBoard scores each user by their best correct attempt.
func QuestionBoard(users []User, attempts []QuestionAttempt, pts QuestionPoints) []Entry {
	best := make(map[string]int)
	for _, a := range attempts {
		if !a.IsCorrect {
			continue
		}
		v := pts.FirstTry
		if a.IsRetry {
			v = pts.Retry
		}
		if v > best[a.UserID] {
			best[a.UserID] = v
		}
	}

	entries := make([]Entry, 0, len(users))
	for _, u := range users {
		entries = append(entries, Entry{UserID: u.ID, DisplayName: u.DisplayName, Score: best[u.ID]})
	}
	return entries
}

// SubjectBoard scores each user by their best points in subjectID.
func SubjectBoard(users []User, progress []Progress, subjectID string) []Entry {
	type row struct {
		points     int
		efficiency float64
		mastery    float64
	}
	rows := make(map[string]row)
	for _, p := range progress {
		if p.SubjectID == subjectID {
			rows[p.UserID] = row{p.Points, p.LastEfficiency, p.LastMastery}
		}
	}

	entries := make([]Entry, 0, len(users))
	for _, u := range users {
		r := rows[u.ID]
		entries = append(entries, Entry{
			UserID:        u.ID,
			DisplayName:   u.DisplayName,
			Score:         r.points,
			AvgEfficiency: r.efficiency,
			AvgMastery:    r.mastery,
		})
	}
	return entries
}

// SectionStat is a user's standing inside one section.
type SectionStat struct {
	Points        int
	AvgMastery    float64
	AvgEfficiency float64
	// Active is true when at least one subject of the section has positive points.
	Active bool
}

// SectionStats folds progress rows into per-user, per-section stats. Averages
// cover passed subjects only and are 0 when none passed.
func SectionStats(progress []Progress) map[string]map[string]SectionStat {
	type acc struct {
		points              int
		passed              int
		mastery, efficiency float64
		active              bool
	}
	accs := make(map[string]map[string]*acc)
	for _, p := range progress {
		byUser := accs[p.UserID]
		if byUser == nil {
			byUser = make(map[string]*acc)
			accs[p.UserID] = byUser
		}
		a := byUser[p.SectionID]
		if a == nil {
			a = &acc{}
			byUser[p.SectionID] = a
		}
		a.points += p.Points
		if p.Points > 0 {
			a.active = true
		}
		if p.Passed {
			a.passed++
			a.mastery += p.LastMastery
			a.efficiency += p.LastEfficiency
		}
	}

	out := make(map[string]map[string]SectionStat, len(accs))
	for userID, sections := range accs {
		out[userID] = make(map[string]SectionStat, len(sections))
		for sectionID, a := range sections {
			s := SectionStat{Points: a.points, Active: a.active}
			if a.passed > 0 {
				s.AvgMastery = a.mastery / float64(a.passed)
				s.AvgEfficiency = a.efficiency / float64(a.passed)
			}
			out[userID][sectionID] = s
		}
	}
	return out
}

func SectionBoard(users []User, progress []Progress, sectionID string) []Entry {
	stats := SectionStats(progress)
	entries := make([]Entry, 0, len(users))
	for _, u := range users {
		s := stats[u.ID][sectionID]
		entries = append(entries, Entry{
			UserID:        u.ID,
			DisplayName:   u.DisplayName,
			Score:         s.Points,
			AvgMastery:    s.AvgMastery,
			AvgEfficiency: s.AvgEfficiency,
		})
	}
	return entries
}

// GlobalBoard scores by total points. Averages are the mean of the section
// averages over sections where the user has positive points.
func GlobalBoard(users []User, progress []Progress) []Entry {
	stats := SectionStats(progress)
	entries := make([]Entry, 0, len(users))
	for _, u := range users {
		e := Entry{UserID: u.ID, DisplayName: u.DisplayName, Score: u.TotalPoints}
		active := 0
		for _, s := range stats[u.ID] {
			if !s.Active {
				continue
			}
			active++
			e.AvgMastery += s.AvgMastery
			e.AvgEfficiency += s.AvgEfficiency
		}
		if active > 0 {
			e.AvgMastery /= float64(active)
			e.AvgEfficiency /= float64(active)
		}
		entries = append(entries, e)
	}
	return entries
}
