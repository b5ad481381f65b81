package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jgirmay/pyguide/internal/learning/models"
	"gorm.io/gorm"
)

// AttemptRepository appends and reads answer attempts.
type AttemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// ErrAttemptExists is returned when the question already has an attempt in
// the same round (first try or retry) of the session.
var ErrAttemptExists = errors.New("attempt already recorded for this round")

// Append stores a new attempt and assigns its position in the session.
// Two writers racing for the same position are stopped by the unique
// (session_id, seq) index; two answers to the same round by idx_attempt_round,
// reported as ErrAttemptExists.
func (r *AttemptRepository) Append(ctx context.Context, attempt *models.Attempt) error {
	err := r.append(ctx, attempt)
	if err == nil {
		return nil
	}
	taken, lookupErr := r.roundTaken(ctx, attempt)
	if lookupErr == nil && taken {
		return ErrAttemptExists
	}
	return err
}

func (r *AttemptRepository) roundTaken(ctx context.Context, attempt *models.Attempt) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("session_id = ? AND question_id = ? AND is_retry = ?", attempt.SessionID, attempt.QuestionID, attempt.IsRetry).
		Count(&n).Error
	return n > 0, err
}

func (r *AttemptRepository) append(ctx context.Context, attempt *models.Attempt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last sql.NullInt64
		if err := tx.Model(&models.Attempt{}).
			Select("MAX(seq)").
			Where("session_id = ?", attempt.SessionID).
			Row().Scan(&last); err != nil {
			return fmt.Errorf("next attempt seq: %w", err)
		}
		attempt.Seq = int(last.Int64) + 1
		return tx.Create(attempt).Error
	})
}

// ListBySession returns the attempts of a session in submission order.
func (r *AttemptRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Attempt, error) {
	var attempts []models.Attempt
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&attempts).Error
	return attempts, err
}

// ListByUser returns every attempt the user ever made, oldest first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID string) ([]models.Attempt, error) {
	var attempts []models.Attempt
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, seq ASC").
		Find(&attempts).Error
	return attempts, err
}

// ListForQuestion returns all attempts on one question of one subject.
func (r *AttemptRepository) ListForQuestion(ctx context.Context, sectionID, subjectID, questionID string) ([]models.Attempt, error) {
	var attempts []models.Attempt
	err := r.db.WithContext(ctx).
		Where("section_id = ? AND subject_id = ? AND question_id = ?", sectionID, subjectID, questionID).
		Find(&attempts).Error
	return attempts, err
}
