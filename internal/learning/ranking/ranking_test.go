package ranking

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ranks(entries []Entry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Rank
	}
	return out
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.UserID
	}
	return out
}

func TestRank(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   []int
	}{
		{"ties share a rank", []int{50, 50, 30}, []int{1, 1, 3}},
		{"unsorted input", []int{30, 50, 50}, []int{1, 1, 3}},
		{"all tied", []int{0, 0, 0}, []int{1, 1, 1}},
		{"distinct", []int{1, 3, 2}, []int{1, 2, 3}},
		{"tie in the middle", []int{90, 70, 70, 70, 10}, []int{1, 2, 2, 2, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entries []Entry
			for i, s := range tt.scores {
				entries = append(entries, Entry{UserID: fmt.Sprintf("u%d", i), Score: s})
			}
			assert.Equal(t, tt.want, ranks(Rank(entries)))
		})
	}
}

func TestRankBreaksTiesByUserID(t *testing.T) {
	entries := []Entry{{UserID: "carol", Score: 5}, {UserID: "alice", Score: 5}, {UserID: "bob", Score: 5}}
	assert.Equal(t, []string{"alice", "bob", "carol"}, ids(Rank(entries)))
	// input is left untouched
	assert.Equal(t, "carol", entries[0].UserID)
}

func board(n int) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{UserID: fmt.Sprintf("u%02d", i), Score: 1000 - i}
	}
	return Rank(entries)
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		user      string
		wantFirst string
		wantLen   int
	}{
		{"centred", 30, "u15", "u11", 10},
		{"top boundary", 30, "u01", "u00", 10},
		{"bottom boundary", 30, "u28", "u20", 10},
		{"last place", 30, "u29", "u20", 10},
		{"small board", 6, "u03", "u00", 6},
		{"absent user gets top", 30, "ghost", "u00", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Window(board(tt.n), tt.user, 10, 4)
			require.Len(t, got, tt.wantLen)
			assert.Equal(t, tt.wantFirst, got[0].UserID)

			self := 0
			for _, e := range got {
				if e.IsSelf {
					self++
					assert.Equal(t, tt.user, e.UserID)
				}
			}
			if tt.user == "ghost" {
				assert.Zero(t, self)
			} else {
				assert.Equal(t, 1, self)
			}
		})
	}
}

func TestWindowFourAboveFiveBelow(t *testing.T) {
	got := Window(board(30), "u15", 10, 4)
	require.Len(t, got, 10)
	assert.Equal(t, "u15", got[4].UserID)
	assert.Equal(t, "u20", got[9].UserID)
}

func TestWindowEmpty(t *testing.T) {
	assert.Empty(t, Window(nil, "u1", 10, 4))
}

var users = []User{
	{ID: "ann", DisplayName: "Ann", TotalPoints: 70},
	{ID: "ben", DisplayName: "Ben", TotalPoints: 30},
	{ID: "cat", DisplayName: "Cat"},
}

var progress = []Progress{
	{UserID: "ann", SectionID: "s1", SubjectID: "a", Points: 40, Passed: true, LastEfficiency: 80, LastMastery: 100},
	{UserID: "ann", SectionID: "s1", SubjectID: "b", Points: 10, Passed: false, LastEfficiency: 20, LastMastery: 40},
	{UserID: "ann", SectionID: "s2", SubjectID: "c", Points: 20, Passed: true, LastEfficiency: 60, LastMastery: 80},
	{UserID: "ben", SectionID: "s1", SubjectID: "a", Points: 30, Passed: true, LastEfficiency: 70, LastMastery: 90},
}

func byUser(entries []Entry) map[string]Entry {
	out := make(map[string]Entry, len(entries))
	for _, e := range entries {
		out[e.UserID] = e
	}
	return out
}

func TestQuestionBoard(t *testing.T) {
	attempts := []QuestionAttempt{
		{UserID: "ann", IsCorrect: false},
		{UserID: "ann", IsCorrect: true, IsRetry: true},
		{UserID: "ben", IsCorrect: true, IsRetry: true},
		{UserID: "ben", IsCorrect: true},
	}
	got := byUser(QuestionBoard(users, attempts, QuestionPoints{FirstTry: 10, Retry: 5}))
	assert.Equal(t, 5, got["ann"].Score)
	assert.Equal(t, 10, got["ben"].Score)
	assert.Equal(t, 0, got["cat"].Score)
}

func TestSubjectBoard(t *testing.T) {
	got := byUser(SubjectBoard(users, progress, "a"))
	assert.Equal(t, 40, got["ann"].Score)
	assert.Equal(t, 30, got["ben"].Score)
	assert.Equal(t, 0, got["cat"].Score)
}

func TestSectionBoardAveragesPassedOnly(t *testing.T) {
	got := byUser(SectionBoard(users, progress, "s1"))
	assert.Equal(t, 50, got["ann"].Score)
	assert.InDelta(t, 100, got["ann"].AvgMastery, 1e-9)
	assert.InDelta(t, 80, got["ann"].AvgEfficiency, 1e-9)
	assert.Zero(t, got["cat"].Score)
	assert.Zero(t, got["cat"].AvgMastery)
}

func TestGlobalBoard(t *testing.T) {
	got := byUser(GlobalBoard(users, progress))
	assert.Equal(t, 70, got["ann"].Score)
	assert.InDelta(t, 90, got["ann"].AvgMastery, 1e-9)
	assert.InDelta(t, 70, got["ann"].AvgEfficiency, 1e-9)
	assert.InDelta(t, 90, got["ben"].AvgMastery, 1e-9)

	ranked := Rank(GlobalBoard(users, progress))
	assert.Equal(t, []string{"ann", "ben", "cat"}, ids(ranked))
	assert.Equal(t, []int{1, 2, 3}, ranks(ranked))
}
