package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	identity "github.com/jgirmay/pyguide/internal/identity/models"
	"github.com/jgirmay/pyguide/internal/learning/models"
	"github.com/jgirmay/pyguide/internal/learning/scoring"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVersionConflict means another writer changed the progress row first.
var ErrVersionConflict = errors.New("subject progress changed concurrently")

type ProgressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Get returns the progress row, or a zero row when the user has none.
func (r *ProgressRepository) Get(ctx context.Context, userID, sectionID, subjectID string) (*models.SubjectProgress, error) {
	return getProgress(r.db.WithContext(ctx), userID, sectionID, subjectID)
}

func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]models.SubjectProgress, error) {
	var rows []models.SubjectProgress
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("section_id, subject_id").Find(&rows).Error
	return rows, err
}

func (r *ProgressRepository) ListBySection(ctx context.Context, sectionID string) ([]models.SubjectProgress, error) {
	var rows []models.SubjectProgress
	err := r.db.WithContext(ctx).Where("section_id = ?", sectionID).Find(&rows).Error
	return rows, err
}

func (r *ProgressRepository) ListBySubject(ctx context.Context, sectionID, subjectID string) ([]models.SubjectProgress, error) {
	var rows []models.SubjectProgress
	err := r.db.WithContext(ctx).Where("section_id = ? AND subject_id = ?", sectionID, subjectID).Find(&rows).Error
	return rows, err
}

func (r *ProgressRepository) ListAll(ctx context.Context) ([]models.SubjectProgress, error) {
	var rows []models.SubjectProgress
	err := r.db.WithContext(ctx).Find(&rows).Error
	return rows, err
}

// ApplyBest folds one scoring run into the user's subject progress and total
// points in a single transaction. The progress row is written with a
// compare-and-swap on its version; a lost race is retried up to maxRetries
// times before ErrVersionConflict is returned. The total moves through an
// atomic increment by the difference between the old and new subject best.
func (r *ProgressRepository) ApplyBest(ctx context.Context, userID, sectionID, subjectID, sessionID string, result scoring.Result, maxRetries int) (*models.ProgressUpdate, int, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var (
		update  *models.ProgressUpdate
		err     error
		retries int
	)
	for retries = 0; retries < maxRetries; retries++ {
		update, err = r.applyOnce(ctx, userID, sectionID, subjectID, sessionID, result)
		if !errors.Is(err, ErrVersionConflict) {
			return update, retries, err
		}
	}
	return nil, retries, err
}

func (r *ProgressRepository) applyOnce(ctx context.Context, userID, sectionID, subjectID, sessionID string, result scoring.Result) (*models.ProgressUpdate, error) {
	var update models.ProgressUpdate
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, err := getProgress(tx, userID, sectionID, subjectID)
		if err != nil {
			return err
		}

		next, delta := scoring.Best(prev.Points, result.GainedPoints)
		row := models.SubjectProgress{
			UserID:         userID,
			SectionID:      sectionID,
			SubjectID:      subjectID,
			Points:         next,
			Passed:         result.Passed,
			LastEfficiency: result.Efficiency,
			LastMastery:    result.Mastery,
			LastSessionID:  sessionID,
			Version:        prev.Version + 1,
			UpdatedAt:      time.Now().UTC(),
		}

		if prev.ID == 0 {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrVersionConflict
			}
		} else {
			res := tx.Model(&models.SubjectProgress{}).
				Where("id = ? AND version = ?", prev.ID, prev.Version).
				Updates(map[string]interface{}{
					"points":          row.Points,
					"passed":          row.Passed,
					"last_efficiency": row.LastEfficiency,
					"last_mastery":    row.LastMastery,
					"last_session_id": row.LastSessionID,
					"version":         row.Version,
					"updated_at":      row.UpdatedAt,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrVersionConflict
			}
		}

		if delta != 0 {
			res := tx.Model(&identity.User{}).
				Where("id = ?", userID).
				Update("total_points", gorm.Expr("total_points + ?", delta))
			if res.Error != nil {
				return fmt.Errorf("adjust total points: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("adjust total points of %s: %w", userID, gorm.ErrRecordNotFound)
			}
		}

		var user identity.User
		if err := tx.Select("total_points").Where("id = ?", userID).First(&user).Error; err != nil {
			return fmt.Errorf("read total points: %w", err)
		}

		update = models.ProgressUpdate{
			PreviousPoints: prev.Points,
			NextPoints:     next,
			Delta:          delta,
			PreviousTotal:  user.TotalPoints - delta,
			NewTotal:       user.TotalPoints,
			Passed:         result.Passed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &update, nil
}

func getProgress(db *gorm.DB, userID, sectionID, subjectID string) (*models.SubjectProgress, error) {
	var row models.SubjectProgress
	err := db.Where("user_id = ? AND section_id = ? AND subject_id = ?", userID, sectionID, subjectID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.SubjectProgress{UserID: userID, SectionID: sectionID, SubjectID: subjectID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
