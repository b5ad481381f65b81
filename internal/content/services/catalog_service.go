package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jgirmay/pyguide/internal/common/errors"
	"github.com/jgirmay/pyguide/internal/common/validation"
	"github.com/jgirmay/pyguide/internal/content/models"
	"github.com/jgirmay/pyguide/internal/content/repository"
	"github.com/jgirmay/pyguide/internal/realtime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogService reads the catalog for learners and curates it for admins.
type CatalogService struct {
	repo *repository.ContentRepository
	bus  realtime.Bus
	log  *zap.Logger
	now  func() time.Time
}

func NewCatalogService(repo *repository.ContentRepository, bus realtime.Bus, log *zap.Logger) *CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{
		repo: repo,
		bus:  bus,
		log:  log.With(zap.String("service", "catalog")),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// ListSections returns sections with their subjects. Learners see published ones only.
func (s *CatalogService) ListSections(ctx context.Context, admin bool) ([]models.SectionResponse, error) {
	sections, err := s.repo.ListSections(ctx, !admin)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}

	out := make([]models.SectionResponse, 0, len(sections))
	for _, section := range sections {
		subjects, err := s.repo.ListSubjects(ctx, section.ID, !admin)
		if err != nil {
			return nil, fmt.Errorf("list subjects of %s: %w", section.ID, err)
		}
		out = append(out, models.SectionResponse{Section: section, Subjects: subjects})
	}
	return out, nil
}

func (s *CatalogService) GetSection(ctx context.Context, id string, admin bool) (*models.SectionResponse, error) {
	section, err := s.repo.GetSection(ctx, id)
	if err != nil {
		return nil, notFound(err, "section")
	}
	if !admin && !section.Published() {
		return nil, errors.NotFound("section")
	}

	subjects, err := s.repo.ListSubjects(ctx, id, !admin)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return &models.SectionResponse{Section: *section, Subjects: subjects}, nil
}

// Subject returns the raw subject row. Learners get NotFound for drafts.
func (s *CatalogService) Subject(ctx context.Context, sectionID, subjectID string, admin bool) (*models.Subject, error) {
	subject, err := s.repo.GetSubject(ctx, sectionID, subjectID)
	if err != nil {
		return nil, notFound(err, "subject")
	}
	if !admin && !subject.Published() {
		return nil, errors.NotFound("subject")
	}
	return subject, nil
}

func (s *CatalogService) GetSubject(ctx context.Context, sectionID, subjectID string, admin bool) (*models.SubjectResponse, error) {
	subject, err := s.Subject(ctx, sectionID, subjectID, admin)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ListContents(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list contents: %w", err)
	}
	views := make([]models.ItemView, 0, len(rows))
	for _, row := range rows {
		item, err := row.Item()
		if err != nil {
			return nil, err
		}
		views = append(views, models.View(item, row.Order, admin))
	}
	return &models.SubjectResponse{Subject: *subject, Items: views}, nil
}

// SubjectItems returns the items of a subject in lesson order.
func (s *CatalogService) SubjectItems(ctx context.Context, subjectID string) ([]models.Item, error) {
	rows, err := s.repo.ListContents(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list contents: %w", err)
	}
	return decodeRows(rows)
}

// ItemsByIDs resolves items by id; unknown ids are absent from the map.
func (s *CatalogService) ItemsByIDs(ctx context.Context, ids []string) (map[string]models.Item, error) {
	rows, err := s.repo.ContentsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	items, err := decodeRows(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Item, len(items))
	for _, item := range items {
		out[item.ItemID()] = item
	}
	return out, nil
}

// QuestionPool returns every MCQ and true/false item of the given subjects.
func (s *CatalogService) QuestionPool(ctx context.Context, subjectIDs []string) ([]models.Item, error) {
	rows, err := s.repo.QuestionsInSubjects(ctx, subjectIDs)
	if err != nil {
		return nil, fmt.Errorf("load question pool: %w", err)
	}
	return decodeRows(rows)
}

// AllSubjects lists every subject, published or not.
func (s *CatalogService) AllSubjects(ctx context.Context) ([]models.Subject, error) {
	return s.repo.ListAllSubjects(ctx)
}

func (s *CatalogService) CreateSection(ctx context.Context, req models.CreateSectionRequest) (*models.Section, error) {
	order, err := s.repo.NextSectionOrder(ctx)
	if err != nil {
		return nil, err
	}
	section := &models.Section{
		ID:          idOrNew(req.ID),
		Title:       req.Title,
		Description: req.Description,
		Order:       order,
	}
	if err := s.repo.CreateSection(ctx, section); err != nil {
		return nil, fmt.Errorf("create section: %w", err)
	}
	s.changed(ctx, "section.created", section.ID)
	return section, nil
}

func (s *CatalogService) UpdateSection(ctx context.Context, id string, req models.CreateSectionRequest) (*models.Section, error) {
	section, err := s.repo.GetSection(ctx, id)
	if err != nil {
		return nil, notFound(err, "section")
	}
	section.Title, section.Description = req.Title, req.Description
	if err := s.repo.UpdateSection(ctx, section); err != nil {
		return nil, fmt.Errorf("update section: %w", err)
	}
	s.changed(ctx, "section.updated", id)
	return section, nil
}

func (s *CatalogService) DeleteSection(ctx context.Context, id string) error {
	if err := s.repo.DeleteSection(ctx, id); err != nil {
		return notFound(err, "section")
	}
	s.changed(ctx, "section.deleted", id)
	return nil
}

// PublishSection sets publishedAt to now, or clears it when publish is false.
func (s *CatalogService) PublishSection(ctx context.Context, id string, publish bool) error {
	if err := s.repo.SetSectionPublished(ctx, id, s.publishedAt(publish)); err != nil {
		return notFound(err, "section")
	}
	s.changed(ctx, "section.published", id)
	return nil
}

func (s *CatalogService) ReorderSections(ctx context.Context, ids []string) error {
	if err := s.repo.ReorderSections(ctx, ids); err != nil {
		return notFound(err, "section")
	}
	s.changed(ctx, "section.reordered", "")
	return nil
}

func (s *CatalogService) CreateSubject(ctx context.Context, sectionID string, req models.CreateSubjectRequest) (*models.Subject, error) {
	if _, err := s.repo.GetSection(ctx, sectionID); err != nil {
		return nil, notFound(err, "section")
	}
	order, err := s.repo.NextSubjectOrder(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	subject := &models.Subject{
		ID:                idOrNew(req.ID),
		SectionID:         sectionID,
		Title:             req.Title,
		Description:       req.Description,
		Order:             order,
		MinPointsRequired: req.MinPointsRequired,
	}
	if err := s.repo.CreateSubject(ctx, subject); err != nil {
		return nil, fmt.Errorf("create subject: %w", err)
	}
	s.changed(ctx, "subject.created", subject.ID)
	return subject, nil
}

func (s *CatalogService) UpdateSubject(ctx context.Context, sectionID, subjectID string, req models.CreateSubjectRequest) (*models.Subject, error) {
	subject, err := s.repo.GetSubject(ctx, sectionID, subjectID)
	if err != nil {
		return nil, notFound(err, "subject")
	}
	subject.Title = req.Title
	subject.Description = req.Description
	subject.MinPointsRequired = req.MinPointsRequired
	if err := s.repo.UpdateSubject(ctx, subject); err != nil {
		return nil, fmt.Errorf("update subject: %w", err)
	}
	s.changed(ctx, "subject.updated", subjectID)
	return subject, nil
}

func (s *CatalogService) DeleteSubject(ctx context.Context, sectionID, subjectID string) error {
	if err := s.repo.DeleteSubject(ctx, sectionID, subjectID); err != nil {
		return notFound(err, "subject")
	}
	s.changed(ctx, "subject.deleted", subjectID)
	return nil
}

func (s *CatalogService) PublishSubject(ctx context.Context, sectionID, subjectID string, publish bool) error {
	if err := s.repo.SetSubjectPublished(ctx, sectionID, subjectID, s.publishedAt(publish)); err != nil {
		return notFound(err, "subject")
	}
	s.changed(ctx, "subject.published", subjectID)
	return nil
}

func (s *CatalogService) ReorderSubjects(ctx context.Context, sectionID string, ids []string) error {
	if err := s.repo.ReorderSubjects(ctx, sectionID, ids); err != nil {
		return notFound(err, "subject")
	}
	s.changed(ctx, "subject.reordered", sectionID)
	return nil
}

// CreateItem validates item and appends it to the subject.
func (s *CatalogService) CreateItem(ctx context.Context, sectionID, subjectID string, item models.Item) (*models.ItemView, error) {
	if _, err := s.repo.GetSubject(ctx, sectionID, subjectID); err != nil {
		return nil, notFound(err, "subject")
	}
	if item.ItemID() == "" {
		models.SetItemID(item, uuid.NewString())
	}
	if err := ValidateItem(item); err != nil {
		return nil, err
	}

	order, err := s.repo.NextContentOrder(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	row, err := models.FromItem(sectionID, subjectID, order, item)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}
	if err := s.repo.CreateContent(ctx, row); err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}

	s.changed(ctx, "content.created", row.ID)
	view := models.View(item, order, true)
	return &view, nil
}

func (s *CatalogService) UpdateItem(ctx context.Context, sectionID, subjectID, itemID string, item models.Item) (*models.ItemView, error) {
	existing, err := s.repo.GetContent(ctx, subjectID, itemID)
	if err != nil {
		return nil, notFound(err, "content")
	}
	models.SetItemID(item, itemID)
	if err := ValidateItem(item); err != nil {
		return nil, err
	}

	row, err := models.FromItem(sectionID, subjectID, existing.Order, item)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}
	if err := s.repo.UpdateContent(ctx, row); err != nil {
		return nil, notFound(err, "content")
	}

	s.changed(ctx, "content.updated", itemID)
	view := models.View(item, existing.Order, true)
	return &view, nil
}

func (s *CatalogService) DeleteItem(ctx context.Context, subjectID, itemID string) error {
	if err := s.repo.DeleteContent(ctx, subjectID, itemID); err != nil {
		return notFound(err, "content")
	}
	s.changed(ctx, "content.deleted", itemID)
	return nil
}

func (s *CatalogService) ReorderItems(ctx context.Context, subjectID string, ids []string) error {
	if err := s.repo.ReorderContents(ctx, subjectID, ids); err != nil {
		return notFound(err, "content")
	}
	s.changed(ctx, "content.reordered", subjectID)
	return nil
}

// ValidateItem applies the struct rules of the variant plus cross-field checks.
func ValidateItem(item models.Item) error {
	if errs := validation.Validate(item); len(errs) > 0 {
		return errors.Validation("invalid "+string(item.Kind())+" item", validation.Summary(errs))
	}

	switch v := item.(type) {
	case *models.MultipleChoice:
		if v.CorrectIndex >= len(v.Options) {
			return errors.Validation("invalid mcq item", "correct_index must reference an option")
		}
	case *models.TrueFalse, *models.Theory, *models.Code:
	default:
		return errors.Validation("invalid item", fmt.Sprintf("unsupported type %T", item))
	}
	return nil
}

func (s *CatalogService) publishedAt(publish bool) *time.Time {
	if !publish {
		return nil
	}
	now := s.now()
	return &now
}

func (s *CatalogService) changed(ctx context.Context, action, id string) {
	if s.bus == nil {
		return
	}
	e, err := realtime.NewEvent(realtime.EventContentChanged, "", map[string]string{"action": action, "id": id})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, e); err != nil {
		s.log.Warn("publish content change", zap.String("action", action), zap.Error(err))
	}
}

func decodeRows(rows []models.Content) ([]models.Item, error) {
	items := make([]models.Item, 0, len(rows))
	for i := range rows {
		item, err := rows[i].Item()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func notFound(err error, resource string) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound(resource)
	}
	return err
}

func idOrNew(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
