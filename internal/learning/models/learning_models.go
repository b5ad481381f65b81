package models

import (
	"encoding/json"
	"time"

	"github.com/jgirmay/pyguide/internal/learning/ranking"
	"github.com/jgirmay/pyguide/internal/learning/scoring"
	"github.com/jgirmay/pyguide/internal/learning/unlock"
	"gorm.io/datatypes"
)

// Attempt is one answer submission, timeouts included. Rows are never updated.
// Seq orders the attempts of a session; idx_attempt_round allows one first-try
// and one retry attempt per question.
// Answer is stored as text: SQLite gives a JSON column numeric affinity and
// would turn an option index into an integer.
type Attempt struct {
	ID          string         `gorm:"primaryKey;size:64" json:"id"`
	SessionID   string         `gorm:"size:64;not null;uniqueIndex:idx_attempt_session_seq;uniqueIndex:idx_attempt_round" json:"session_id"`
	Seq         int            `gorm:"not null;uniqueIndex:idx_attempt_session_seq" json:"seq"`
	UserID      string         `gorm:"size:64;not null;index" json:"user_id"`
	SectionID   string         `gorm:"size:64;not null;index:idx_attempt_question" json:"section_id"`
	SubjectID   string         `gorm:"size:64;not null;index:idx_attempt_question" json:"subject_id"`
	QuestionID  string         `gorm:"size:64;not null;index:idx_attempt_question;uniqueIndex:idx_attempt_round" json:"question_id"`
	Answer      datatypes.JSON `gorm:"type:text" json:"answer"`
	IsCorrect   bool           `gorm:"not null" json:"is_correct"`
	IsRetry     bool           `gorm:"not null;uniqueIndex:idx_attempt_round" json:"is_retry"`
	TimedOut    bool           `gorm:"not null" json:"timed_out"`
	TimeTakenMs int64          `gorm:"not null" json:"time_taken_ms"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

// QuestioningSession is one lesson or practice run. QuestionIDs is the
// denominator set and never changes after start; only the result fields are
// written on completion.
type QuestioningSession struct {
	ID          string                     `gorm:"primaryKey;size:64" json:"id"`
	UserID      string                     `gorm:"size:64;not null;index" json:"user_id"`
	SectionID   string                     `gorm:"size:64;not null" json:"section_id"`
	SubjectID   string                     `gorm:"size:64;not null" json:"subject_id"`
	Mode        string                     `gorm:"size:16;not null;default:''" json:"mode,omitempty"`
	QuestionIDs datatypes.JSONSlice[string] `json:"question_ids"`
	StartedAt   time.Time                  `gorm:"not null;index" json:"started_at"`
	CompletedAt *time.Time                 `json:"completed_at,omitempty"`

	Efficiency   *float64 `json:"efficiency,omitempty"`
	Mastery      *float64 `json:"mastery,omitempty"`
	PointsGained *int     `json:"points_gained,omitempty"`
	Passed       *bool    `json:"passed,omitempty"`

	// Stale marks a completed session whose progress write failed.
	Stale          bool `gorm:"not null" json:"stale,omitempty"`
	CorrectCount   *int `json:"correct_count,omitempty"`
	IncorrectCount *int `json:"incorrect_count,omitempty"`
}

func (s *QuestioningSession) IsPractice() bool  { return s.Mode != "" }
func (s *QuestioningSession) IsCompleted() bool { return s.CompletedAt != nil }

// Contains reports whether questionID belongs to the denominator set.
func (s *QuestioningSession) Contains(questionID string) bool {
	for _, id := range s.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// SubjectProgress is a user's best result in one subject.
// Version guards concurrent writers.
type SubjectProgress struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	UserID         string    `gorm:"size:64;not null;uniqueIndex:idx_progress_key" json:"user_id"`
	SectionID      string    `gorm:"size:64;not null;uniqueIndex:idx_progress_key" json:"section_id"`
	SubjectID      string    `gorm:"size:64;not null;uniqueIndex:idx_progress_key" json:"subject_id"`
	Points         int       `gorm:"not null;default:0" json:"points"`
	Passed         bool      `gorm:"not null" json:"passed"`
	LastEfficiency float64   `gorm:"not null;default:0" json:"last_efficiency"`
	LastMastery    float64   `gorm:"not null;default:0" json:"last_mastery"`
	LastSessionID  string    `gorm:"size:64" json:"last_session_id"`
	Version        int       `gorm:"not null;default:0" json:"-"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (SubjectProgress) TableName() string { return "subject_progress" }

// Ranking returns the view of p the leaderboard ranker consumes.
func (p SubjectProgress) Ranking() ranking.Progress {
	return ranking.Progress{
		UserID:         p.UserID,
		SectionID:      p.SectionID,
		SubjectID:      p.SubjectID,
		Points:         p.Points,
		Passed:         p.Passed,
		LastEfficiency: p.LastEfficiency,
		LastMastery:    p.LastMastery,
	}
}

// ProgressUpdate is the outcome of applying one scoring run.
type ProgressUpdate struct {
	PreviousPoints int  `json:"previous_points"`
	NextPoints     int  `json:"next_points"`
	Delta          int  `json:"delta"`
	PreviousTotal  int  `json:"previous_total"`
	NewTotal       int  `json:"new_total"`
	Passed         bool `json:"passed"`
}

// StartSessionResponse opens a lesson: the session and its items in order.
type StartSessionResponse struct {
	Session QuestioningSession `json:"session"`
	Items   interface{}        `json:"items"`
}

// ArmResponse tells the client when the countdown of a question ends.
type ArmResponse struct {
	QuestionID string     `json:"question_id"`
	Deadline   *time.Time `json:"deadline,omitempty"`
}

// SubmitAnswerRequest records one answer. Answer is an option index for MCQ
// and a boolean for true/false.
type SubmitAnswerRequest struct {
	QuestionID  string          `json:"question_id" binding:"required"`
	Answer      json.RawMessage `json:"answer" binding:"required"`
	IsRetry     bool            `json:"is_retry"`
	TimeTakenMs int64           `json:"time_taken_ms" binding:"min=0"`
}

type SubmitAnswerResponse struct {
	Attempt     Attempt `json:"attempt"`
	IsCorrect   bool    `json:"is_correct"`
	Explanation string  `json:"explanation,omitempty"`
}

// CompletionResponse is returned when a session is closed.
// Practice runs only carry the tally.
type CompletionResponse struct {
	Session            QuestioningSession `json:"session"`
	Result             *scoring.Result    `json:"result,omitempty"`
	Progress           *ProgressUpdate    `json:"progress,omitempty"`
	Stale              bool               `json:"stale,omitempty"`
	Correct            int                `json:"correct"`
	Incorrect          int                `json:"incorrect"`
	LeaderboardReadyAt time.Time          `json:"leaderboard_ready_at"`
}

type StartPracticeRequest struct {
	Mode string `json:"mode" binding:"required,oneof=random worst"`
}

// LeaderboardResponse is the user-centred window of one scope.
type LeaderboardResponse struct {
	Scope   ranking.Scope   `json:"scope"`
	Entries []ranking.Entry `json:"entries"`
	Total   int             `json:"total"`
	// Degraded is set when loading failed and an empty board was served.
	Degraded bool `json:"degraded,omitempty"`
}

// AvailabilityResponse answers whether a subject is open to the user.
type AvailabilityResponse struct {
	SectionID string `json:"section_id"`
	SubjectID string `json:"subject_id"`
	unlock.Availability
}
