package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jgirmay/pyguide/internal/content/models"
	"gorm.io/gorm"
)

// ContentRepository stores the catalog: sections, subjects and content items.
type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// ListSections returns sections by order; publishedOnly hides drafts.
func (r *ContentRepository) ListSections(ctx context.Context, publishedOnly bool) ([]models.Section, error) {
	var sections []models.Section
	q := r.db.WithContext(ctx).Order("sort_order ASC, id ASC")
	if publishedOnly {
		q = q.Where("published_at IS NOT NULL")
	}
	err := q.Find(&sections).Error
	return sections, err
}

func (r *ContentRepository) GetSection(ctx context.Context, id string) (*models.Section, error) {
	var section models.Section
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&section).Error; err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *ContentRepository) CreateSection(ctx context.Context, section *models.Section) error {
	return r.db.WithContext(ctx).Create(section).Error
}

func (r *ContentRepository) UpdateSection(ctx context.Context, section *models.Section) error {
	return r.db.WithContext(ctx).Model(section).
		Select("title", "description", "updated_at").
		Updates(section).Error
}

// DeleteSection removes the section with its subjects and items in one transaction.
func (r *ContentRepository) DeleteSection(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("section_id = ?", id).Delete(&models.Content{}).Error; err != nil {
			return err
		}
		if err := tx.Where("section_id = ?", id).Delete(&models.Subject{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Section{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *ContentRepository) ListSubjects(ctx context.Context, sectionID string, publishedOnly bool) ([]models.Subject, error) {
	var subjects []models.Subject
	q := r.db.WithContext(ctx).Where("section_id = ?", sectionID).Order("sort_order ASC, id ASC")
	if publishedOnly {
		q = q.Where("published_at IS NOT NULL")
	}
	err := q.Find(&subjects).Error
	return subjects, err
}

// ListAllSubjects returns every subject of the catalog regardless of state.
func (r *ContentRepository) ListAllSubjects(ctx context.Context) ([]models.Subject, error) {
	var subjects []models.Subject
	err := r.db.WithContext(ctx).Order("section_id ASC, sort_order ASC").Find(&subjects).Error
	return subjects, err
}

func (r *ContentRepository) GetSubject(ctx context.Context, sectionID, subjectID string) (*models.Subject, error) {
	var subject models.Subject
	err := r.db.WithContext(ctx).
		Where("section_id = ? AND id = ?", sectionID, subjectID).
		First(&subject).Error
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (r *ContentRepository) CreateSubject(ctx context.Context, subject *models.Subject) error {
	return r.db.WithContext(ctx).Create(subject).Error
}

func (r *ContentRepository) UpdateSubject(ctx context.Context, subject *models.Subject) error {
	return r.db.WithContext(ctx).Model(subject).
		Select("title", "description", "min_points_required", "updated_at").
		Updates(subject).Error
}

func (r *ContentRepository) DeleteSubject(ctx context.Context, sectionID, subjectID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subject_id = ?", subjectID).Delete(&models.Content{}).Error; err != nil {
			return err
		}
		res := tx.Where("section_id = ? AND id = ?", sectionID, subjectID).Delete(&models.Subject{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ListContents returns the items of a subject in lesson order.
func (r *ContentRepository) ListContents(ctx context.Context, subjectID string) ([]models.Content, error) {
	var contents []models.Content
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("sort_order ASC, id ASC").
		Find(&contents).Error
	return contents, err
}

func (r *ContentRepository) GetContent(ctx context.Context, subjectID, id string) (*models.Content, error) {
	var content models.Content
	err := r.db.WithContext(ctx).Where("subject_id = ? AND id = ?", subjectID, id).First(&content).Error
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// ContentsByIDs loads items by id in no particular order; missing ids are skipped.
func (r *ContentRepository) ContentsByIDs(ctx context.Context, ids []string) ([]models.Content, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var contents []models.Content
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&contents).Error
	return contents, err
}

// QuestionsInSubjects returns the MCQ and true/false items of the given subjects.
func (r *ContentRepository) QuestionsInSubjects(ctx context.Context, subjectIDs []string) ([]models.Content, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	var contents []models.Content
	err := r.db.WithContext(ctx).
		Where("subject_id IN ?", subjectIDs).
		Where("type IN ?", []string{string(models.TypeMCQ), string(models.TypeTrueFalse)}).
		Order("subject_id ASC, sort_order ASC").
		Find(&contents).Error
	return contents, err
}

func (r *ContentRepository) CreateContent(ctx context.Context, content *models.Content) error {
	return r.db.WithContext(ctx).Create(content).Error
}

func (r *ContentRepository) UpdateContent(ctx context.Context, content *models.Content) error {
	res := r.db.WithContext(ctx).Model(&models.Content{}).
		Where("subject_id = ? AND id = ?", content.SubjectID, content.ID).
		Updates(map[string]interface{}{
			"type":               content.Type,
			"title":              content.Title,
			"max_points":         content.MaxPoints,
			"time_limit_seconds": content.TimeLimitSeconds,
			"payload":            content.Payload,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ContentRepository) DeleteContent(ctx context.Context, subjectID, id string) error {
	res := r.db.WithContext(ctx).Where("subject_id = ? AND id = ?", subjectID, id).Delete(&models.Content{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// NextSectionOrder returns max(order)+1 over all sections, 0 when empty.
func (r *ContentRepository) NextSectionOrder(ctx context.Context) (int, error) {
	return r.nextOrder(ctx, &models.Section{}, "", "")
}

func (r *ContentRepository) NextSubjectOrder(ctx context.Context, sectionID string) (int, error) {
	return r.nextOrder(ctx, &models.Subject{}, "section_id", sectionID)
}

func (r *ContentRepository) NextContentOrder(ctx context.Context, subjectID string) (int, error) {
	return r.nextOrder(ctx, &models.Content{}, "subject_id", subjectID)
}

func (r *ContentRepository) nextOrder(ctx context.Context, model interface{}, scopeColumn, scopeID string) (int, error) {
	var max sql.NullInt64
	q := r.db.WithContext(ctx).Model(model).Select("MAX(sort_order)")
	if scopeColumn != "" {
		q = q.Where(scopeColumn+" = ?", scopeID)
	}
	if err := q.Row().Scan(&max); err != nil {
		return 0, fmt.Errorf("next order: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// SetSectionPublished sets or clears published_at.
func (r *ContentRepository) SetSectionPublished(ctx context.Context, id string, at *time.Time) error {
	return setPublished(&models.Section{}, r.db.WithContext(ctx).Where("id = ?", id), at)
}

func (r *ContentRepository) SetSubjectPublished(ctx context.Context, sectionID, subjectID string, at *time.Time) error {
	return setPublished(&models.Subject{},
		r.db.WithContext(ctx).Where("section_id = ? AND id = ?", sectionID, subjectID), at)
}

func setPublished(model interface{}, scoped *gorm.DB, at *time.Time) error {
	res := scoped.Model(model).Update("published_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReorderSections assigns order = position in ids, all or nothing.
func (r *ContentRepository) ReorderSections(ctx context.Context, ids []string) error {
	return r.reorder(ctx, &models.Section{}, "", "", ids)
}

func (r *ContentRepository) ReorderSubjects(ctx context.Context, sectionID string, ids []string) error {
	return r.reorder(ctx, &models.Subject{}, "section_id", sectionID, ids)
}

func (r *ContentRepository) ReorderContents(ctx context.Context, subjectID string, ids []string) error {
	return r.reorder(ctx, &models.Content{}, "subject_id", subjectID, ids)
}

func (r *ContentRepository) reorder(ctx context.Context, model interface{}, scopeColumn, scopeID string, ids []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			q := tx.Model(model).Where("id = ?", id)
			if scopeColumn != "" {
				q = q.Where(scopeColumn+" = ?", scopeID)
			}
			res := q.Update("sort_order", i)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("reorder %s: %w", id, gorm.ErrRecordNotFound)
			}
		}
		return nil
	})
}
