package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jgirmay/pyguide/internal/common/errors"
	content "github.com/jgirmay/pyguide/internal/content/models"
	contentsvc "github.com/jgirmay/pyguide/internal/content/services"
	"github.com/jgirmay/pyguide/internal/learning/models"
	"github.com/jgirmay/pyguide/internal/learning/practice"
	"github.com/jgirmay/pyguide/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// PracticeService builds adaptive practice runs over material the user has
// already earned points in.
type PracticeService struct {
	store    *Store
	catalog  *contentsvc.CatalogService
	selector *practice.Selector
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

func NewPracticeService(store *Store, catalog *contentsvc.CatalogService, selector *practice.Selector, m *metrics.Metrics, log *zap.Logger) *PracticeService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PracticeService{
		store:    store,
		catalog:  catalog,
		selector: selector,
		metrics:  m,
		log:      log.With(zap.String("service", "practice")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start selects questions for mode and opens a practice session. An empty
// selection fails with NO_PRACTICE_MATERIAL and creates nothing.
func (s *PracticeService) Start(ctx context.Context, userID, rawMode string) (*models.StartSessionResponse, error) {
	mode, err := practice.ParseMode(rawMode)
	if err != nil {
		return nil, errors.Validation("invalid practice mode", err.Error())
	}

	pool, err := s.pool(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, errors.NoPracticeMaterial()
	}

	stats, err := s.QuestionStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(pool))
	for _, item := range pool {
		ids = append(ids, item.ItemID())
	}
	picked, err := s.selector.Select(mode, ids, stats)
	if stderrors.Is(err, practice.ErrNoMaterial) {
		return nil, errors.NoPracticeMaterial()
	}
	if err != nil {
		return nil, err
	}

	byID := make(map[string]content.Item, len(pool))
	for _, item := range pool {
		byID[item.ItemID()] = item
	}
	views := make([]content.ItemView, 0, len(picked))
	for i, id := range picked {
		views = append(views, content.View(byID[id], i, false))
	}

	session := &models.QuestioningSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		SectionID:   practice.SectionID,
		SubjectID:   mode.SubjectID(),
		Mode:        string(mode),
		QuestionIDs: datatypes.JSONSlice[string](picked),
		StartedAt:   s.now(),
	}
	if err := s.store.Sessions.Create(ctx, session); err != nil {
		return nil, errors.Retryable("could not start practice", err.Error())
	}
	s.metrics.PracticeSession(string(mode))

	s.log.Info("practice started",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.String("mode", string(mode)),
		zap.Int("questions", len(picked)),
	)
	return &models.StartSessionResponse{Session: *session, Items: views}, nil
}

// QuestionStats folds every attempt of the user into per-question counts.
func (s *PracticeService) QuestionStats(ctx context.Context, userID string) (map[string]practice.Stat, error) {
	attempts, err := s.store.Attempts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	outcomes := make([]practice.Outcome, 0, len(attempts))
	for _, a := range attempts {
		outcomes = append(outcomes, practice.Outcome{QuestionID: a.QuestionID, IsCorrect: a.IsCorrect})
	}
	return practice.Fold(outcomes), nil
}

// pool returns the MCQ and true/false items of every subject where the user
// holds positive points.
func (s *PracticeService) pool(ctx context.Context, userID string) ([]content.Item, error) {
	rows, err := s.store.Progress.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	var subjectIDs []string
	for _, p := range rows {
		if p.Points > 0 {
			subjectIDs = append(subjectIDs, p.SubjectID)
		}
	}
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	return s.catalog.QuestionPool(ctx, subjectIDs)
}
