// Package ranking scores, ranks and windows leaderboards.
package ranking

import "sort"

type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeSection  Scope = "section"
	ScopeSubject  Scope = "subject"
	ScopeQuestion Scope = "question"
)

// Entry is one leaderboard row.
type Entry struct {
	Rank          int     `json:"rank"`
	UserID        string  `json:"user_id"`
	DisplayName   string  `json:"display_name"`
	Score         int     `json:"score"`
	AvgMastery    float64 `json:"avg_mastery"`
	AvgEfficiency float64 `json:"avg_efficiency"`
	IsSelf        bool    `json:"is_self,omitempty"`
}

// Rank sorts entries by score descending, user id ascending, and assigns
// competition ranks: tied scores share a rank and the next distinct score
// takes its 1-based position, giving 1,1,3.
func Rank(entries []Entry) []Entry {
	ranked := make([]Entry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].UserID < ranked[j].UserID
	})

	for i := range ranked {
		if i > 0 && ranked[i].Score == ranked[i-1].Score {
			ranked[i].Rank = ranked[i-1].Rank
		} else {
			ranked[i].Rank = i + 1
		}
	}
	return ranked
}

// Window cuts a ranked list down to at most size entries centred on userID:
// above entries before the user and the rest after, shifted at either end so
// exactly min(size, len(ranked)) entries come back. When userID is not on the
// board the top size entries are returned.
func Window(ranked []Entry, userID string, size, above int) []Entry {
	n := len(ranked)
	if size <= 0 || n == 0 {
		return []Entry{}
	}
	if size > n {
		size = n
	}

	idx := -1
	for i := range ranked {
		if ranked[i].UserID == userID {
			idx = i
			break
		}
	}

	start := 0
	if idx >= 0 {
		start = idx - above
		if start < 0 {
			start = 0
		}
		if start > n-size {
			start = n - size
		}
	}

	out := make([]Entry, size)
	copy(out, ranked[start:start+size])
	for i := range out {
		out[i].IsSelf = out[i].UserID == userID
	}
	return out
}
