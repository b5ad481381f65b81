// Package practice picks questions for adaptive practice runs.
package practice

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
)

type Mode string

const (
	ModeRandom Mode = "random"
	ModeWorst  Mode = "worst"
)

// ErrNoMaterial means the selection came out empty.
var ErrNoMaterial = errors.New("no practice material")

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRandom, ModeWorst:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown practice mode %q", s)
}

// SubjectID is the synthetic subject a practice session of mode is filed under.
func (m Mode) SubjectID() string { return "practice-" + string(m) }

// SectionID is the synthetic section shared by every practice session.
const SectionID = "practice"

// Stat is a user's lifetime record on one question.
type Stat struct {
	Total     int `json:"total"`
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
}

func (s Stat) ratio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total)
}

// Outcome is one recorded answer; timeouts are incorrect outcomes.
type Outcome struct {
	QuestionID string
	IsCorrect  bool
}

// Fold builds per-question stats over every outcome.
func Fold(outcomes []Outcome) map[string]Stat {
	stats := make(map[string]Stat)
	for _, o := range outcomes {
		s := stats[o.QuestionID]
		s.Total++
		if o.IsCorrect {
			s.Correct++
		} else {
			s.Incorrect++
		}
		stats[o.QuestionID] = s
	}
	return stats
}

// Selector draws practice sets of at most Size questions. It is safe for
// concurrent use.
type Selector struct {
	Size int

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSelector(size int, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Selector{Size: size, rng: rng}
}

// Select returns the question ids for a run of the given mode over pool.
// It fails with ErrNoMaterial when nothing qualifies.
func (s *Selector) Select(mode Mode, pool []string, stats map[string]Stat) ([]string, error) {
	var picked []string
	switch mode {
	case ModeRandom:
		picked = s.random(pool)
	case ModeWorst:
		picked = s.worst(pool, stats)
	default:
		return nil, fmt.Errorf("unknown practice mode %q", mode)
	}
	if len(picked) == 0 {
		return nil, ErrNoMaterial
	}
	return picked, nil
}

func (s *Selector) random(pool []string) []string {
	uniq := dedupe(pool)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(uniq), func(i, j int) { uniq[i], uniq[j] = uniq[j], uniq[i] })
	if len(uniq) > s.Size {
		uniq = uniq[:s.Size]
	}
	return uniq
}

// worst puts never-correct questions first, most missed on top, then
// partially mastered ones by rising accuracy. Untouched and fully mastered
// questions are never used as padding.
func (s *Selector) worst(pool []string, stats map[string]Stat) []string {
	type cand struct {
		id string
		Stat
	}
	var tierA, tierB []cand
	for _, id := range dedupe(pool) {
		st := stats[id]
		switch {
		case st.Correct == 0 && st.Incorrect > 0:
			tierA = append(tierA, cand{id, st})
		case st.Total > 0 && st.ratio() < 1:
			tierB = append(tierB, cand{id, st})
		}
	}

	sort.SliceStable(tierA, func(i, j int) bool {
		if tierA[i].Incorrect != tierA[j].Incorrect {
			return tierA[i].Incorrect > tierA[j].Incorrect
		}
		return tierA[i].id < tierA[j].id
	})
	sort.SliceStable(tierB, func(i, j int) bool {
		ri, rj := tierB[i].ratio(), tierB[j].ratio()
		if ri != rj {
			return ri < rj
		}
		if tierB[i].Incorrect != tierB[j].Incorrect {
			return tierB[i].Incorrect > tierB[j].Incorrect
		}
		return tierB[i].id < tierB[j].id
	})

	out := make([]string, 0, s.Size)
	for _, c := range append(tierA, tierB...) {
		if len(out) == s.Size {
			break
		}
		out = append(out, c.id)
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
