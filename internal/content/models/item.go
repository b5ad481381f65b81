package models

import (
	"encoding/json"
	"fmt"
)

// ItemType discriminates the content variants.
type ItemType string

const (
	TypeTheory    ItemType = "theory"
	TypeMCQ       ItemType = "mcq"
	TypeTrueFalse ItemType = "truefalse"
	TypeCode      ItemType = "code"
)

func (t ItemType) Valid() bool {
	switch t {
	case TypeTheory, TypeMCQ, TypeTrueFalse, TypeCode:
		return true
	}
	return false
}

// Item is one of Theory, MultipleChoice, TrueFalse or Code.
type Item interface {
	ItemID() string
	Kind() ItemType
	isItem()
}

type Theory struct {
	ID    string `json:"id"`
	Title string `json:"title" validate:"notblank"`
	Body  string `json:"body" validate:"notblank"`
}

type MultipleChoice struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Question         string   `json:"question" validate:"notblank"`
	Options          []string `json:"options" validate:"min=2,max=8,dive,notblank"`
	CorrectIndex     int      `json:"correct_index" validate:"gte=0"`
	Explanation      string   `json:"explanation,omitempty"`
	MaxPoints        int      `json:"max_points" validate:"gte=0"`
	TimeLimitSeconds int      `json:"time_limit_seconds" validate:"gte=0"`
}

type TrueFalse struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Statement        string `json:"statement" validate:"notblank"`
	Answer           bool   `json:"answer"`
	Explanation      string `json:"explanation,omitempty"`
	MaxPoints        int    `json:"max_points" validate:"gte=0"`
	TimeLimitSeconds int    `json:"time_limit_seconds" validate:"gte=0"`
}

type Code struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Language string `json:"language" validate:"notblank"`
	Snippet  string `json:"snippet" validate:"notblank"`
	Body     string `json:"body,omitempty"`
}

func (t *Theory) ItemID() string         { return t.ID }
func (m *MultipleChoice) ItemID() string { return m.ID }
func (t *TrueFalse) ItemID() string      { return t.ID }
func (c *Code) ItemID() string           { return c.ID }

func (*Theory) Kind() ItemType         { return TypeTheory }
func (*MultipleChoice) Kind() ItemType { return TypeMCQ }
func (*TrueFalse) Kind() ItemType      { return TypeTrueFalse }
func (*Code) Kind() ItemType           { return TypeCode }

func (*Theory) isItem()         {}
func (*MultipleChoice) isItem() {}
func (*TrueFalse) isItem()      {}
func (*Code) isItem()           {}

// MaxPoints is the score of a first-try correct answer; 0 for non-questions.
func MaxPoints(item Item) int {
	switch v := item.(type) {
	case *MultipleChoice:
		return v.MaxPoints
	case *TrueFalse:
		return v.MaxPoints
	case *Theory, *Code:
		return 0
	default:
		panic(fmt.Sprintf("unhandled item type %T", item))
	}
}

// TimeLimitSeconds returns the countdown length; 0 means untimed.
func TimeLimitSeconds(item Item) int {
	switch v := item.(type) {
	case *MultipleChoice:
		return v.TimeLimitSeconds
	case *TrueFalse:
		return v.TimeLimitSeconds
	case *Theory, *Code:
		return 0
	default:
		panic(fmt.Sprintf("unhandled item type %T", item))
	}
}

// IsQuestion reports whether learners answer the item.
func IsQuestion(item Item) bool {
	switch item.(type) {
	case *MultipleChoice, *TrueFalse:
		return true
	case *Theory, *Code:
		return false
	default:
		panic(fmt.Sprintf("unhandled item type %T", item))
	}
}

// Check grades a submitted answer: an option index for MCQ, a bool for TrueFalse.
func Check(item Item, answer json.RawMessage) (bool, error) {
	switch v := item.(type) {
	case *MultipleChoice:
		var idx int
		if err := json.Unmarshal(answer, &idx); err != nil {
			return false, fmt.Errorf("mcq answer must be an option index: %w", err)
		}
		if idx < 0 || idx >= len(v.Options) {
			return false, fmt.Errorf("option %d out of range", idx)
		}
		return idx == v.CorrectIndex, nil
	case *TrueFalse:
		var b bool
		if err := json.Unmarshal(answer, &b); err != nil {
			return false, fmt.Errorf("true/false answer must be a boolean: %w", err)
		}
		return b == v.Answer, nil
	case *Theory, *Code:
		return false, fmt.Errorf("%s items take no answer", item.Kind())
	default:
		panic(fmt.Sprintf("unhandled item type %T", item))
	}
}

// ItemView is the wire shape of an item. Answer keys are only set for admins.
type ItemView struct {
	ID               string   `json:"id"`
	Type             ItemType `json:"type"`
	Order            int      `json:"order"`
	Title            string   `json:"title,omitempty"`
	Body             string   `json:"body,omitempty"`
	Question         string   `json:"question,omitempty"`
	Options          []string `json:"options,omitempty"`
	Statement        string   `json:"statement,omitempty"`
	Language         string   `json:"language,omitempty"`
	Snippet          string   `json:"snippet,omitempty"`
	MaxPoints        int      `json:"max_points,omitempty"`
	TimeLimitSeconds int      `json:"time_limit_seconds,omitempty"`
	CorrectIndex     *int     `json:"correct_index,omitempty"`
	Answer           *bool    `json:"answer,omitempty"`
	Explanation      string   `json:"explanation,omitempty"`
}

// View renders item for the client.
func View(item Item, order int, withAnswers bool) ItemView {
	view := ItemView{ID: item.ItemID(), Type: item.Kind(), Order: order}
	switch v := item.(type) {
	case *Theory:
		view.Title, view.Body = v.Title, v.Body
	case *Code:
		view.Title, view.Body = v.Title, v.Body
		view.Language, view.Snippet = v.Language, v.Snippet
	case *MultipleChoice:
		view.Title, view.Question, view.Options = v.Title, v.Question, v.Options
		view.MaxPoints, view.TimeLimitSeconds = v.MaxPoints, v.TimeLimitSeconds
		if withAnswers {
			idx := v.CorrectIndex
			view.CorrectIndex = &idx
			view.Explanation = v.Explanation
		}
	case *TrueFalse:
		view.Title, view.Statement = v.Title, v.Statement
		view.MaxPoints, view.TimeLimitSeconds = v.MaxPoints, v.TimeLimitSeconds
		if withAnswers {
			ans := v.Answer
			view.Answer = &ans
			view.Explanation = v.Explanation
		}
	default:
		panic(fmt.Sprintf("unhandled item type %T", item))
	}
	return view
}
