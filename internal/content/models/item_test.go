package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	mcq := &MultipleChoice{ID: "q1", Options: []string{"a", "b", "c"}, CorrectIndex: 2}
	tf := &TrueFalse{ID: "q2", Answer: false}

	tests := []struct {
		name    string
		item    Item
		answer  string
		want    bool
		wantErr bool
	}{
		{"mcq correct", mcq, `2`, true, false},
		{"mcq wrong", mcq, `0`, false, false},
		{"mcq out of range", mcq, `3`, false, true},
		{"mcq not a number", mcq, `"c"`, false, true},
		{"tf correct", tf, `false`, true, false},
		{"tf wrong", tf, `true`, false, false},
		{"tf not bool", tf, `1`, false, true},
		{"theory takes no answer", &Theory{ID: "t"}, `1`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Check(tt.item, json.RawMessage(tt.answer))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaxPointsAndIsQuestion(t *testing.T) {
	tests := []struct {
		item       Item
		points     int
		isQuestion bool
	}{
		{&Theory{}, 0, false},
		{&Code{}, 0, false},
		{&MultipleChoice{MaxPoints: 10}, 10, true},
		{&TrueFalse{MaxPoints: 6}, 6, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.item.Kind()), func(t *testing.T) {
			assert.Equal(t, tt.points, MaxPoints(tt.item))
			assert.Equal(t, tt.isQuestion, IsQuestion(tt.item))
		})
	}
}

func TestContentRowKeepsScoringColumns(t *testing.T) {
	item := &MultipleChoice{
		ID:               "q1",
		Title:            "Lists",
		Question:         "Which is mutable?",
		Options:          []string{"tuple", "list"},
		CorrectIndex:     1,
		MaxPoints:        10,
		TimeLimitSeconds: 30,
	}

	row, err := FromItem("s1", "sub1", 3, item)
	require.NoError(t, err)
	assert.Equal(t, TypeMCQ, row.Type)
	assert.Equal(t, 10, row.MaxPoints)
	assert.Equal(t, 30, row.TimeLimitSeconds)
	assert.Equal(t, "Lists", row.Title)

	// columns win over a stale payload
	row.MaxPoints = 12
	decoded, err := row.Item()
	require.NoError(t, err)
	mcq, ok := decoded.(*MultipleChoice)
	require.True(t, ok)
	assert.Equal(t, 12, mcq.MaxPoints)
	assert.Equal(t, []string{"tuple", "list"}, mcq.Options)
}

func TestDecodeItem(t *testing.T) {
	item, err := DecodeItem([]byte(`{"type":"truefalse","statement":"Python is typed dynamically","answer":true,"max_points":5}`))
	require.NoError(t, err)
	tf, ok := item.(*TrueFalse)
	require.True(t, ok)
	assert.True(t, tf.Answer)
	assert.Equal(t, 5, tf.MaxPoints)

	_, err = DecodeItem([]byte(`{"type":"essay"}`))
	assert.Error(t, err)
	_, err = DecodeItem([]byte(`nope`))
	assert.Error(t, err)
}

func TestViewHidesAnswers(t *testing.T) {
	tf := &TrueFalse{ID: "q", Statement: "s", Answer: true, Explanation: "because"}

	learner := View(tf, 1, false)
	assert.Nil(t, learner.Answer)
	assert.Empty(t, learner.Explanation)

	admin := View(tf, 1, true)
	require.NotNil(t, admin.Answer)
	assert.True(t, *admin.Answer)
	assert.Equal(t, "because", admin.Explanation)
}
