package repository

import (
	"context"
	"errors"

	"github.com/jgirmay/pyguide/internal/learning/models"
	"gorm.io/gorm"
)

// ErrSessionCompleted is returned when a session is completed twice.
var ErrSessionCompleted = errors.New("session already completed")

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.QuestioningSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*models.QuestioningSession, error) {
	var session models.QuestioningSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByUser returns the user's sessions, oldest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]models.QuestioningSession, error) {
	var sessions []models.QuestioningSession
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at ASC, id ASC").
		Find(&sessions).Error
	return sessions, err
}

// Complete writes the result fields once. A second call fails with
// ErrSessionCompleted and leaves the stored result untouched.
func (r *SessionRepository) Complete(ctx context.Context, session *models.QuestioningSession) error {
	res := r.db.WithContext(ctx).Model(&models.QuestioningSession{}).
		Where("id = ? AND completed_at IS NULL", session.ID).
		Select("completed_at", "efficiency", "mastery", "points_gained", "passed", "stale", "correct_count", "incorrect_count").
		Updates(session)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionCompleted
	}
	return nil
}

// MarkStale flags a completed session whose progress write failed after completion.
func (r *SessionRepository) MarkStale(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.QuestioningSession{}).
		Where("id = ?", id).
		Update("stale", true).Error
}
