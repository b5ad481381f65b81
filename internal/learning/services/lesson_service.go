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
	identity "github.com/jgirmay/pyguide/internal/identity/repository"
	"github.com/jgirmay/pyguide/internal/learning/countdown"
	"github.com/jgirmay/pyguide/internal/learning/models"
	"github.com/jgirmay/pyguide/internal/learning/repository"
	"github.com/jgirmay/pyguide/internal/learning/scoring"
	"github.com/jgirmay/pyguide/internal/learning/unlock"
	"github.com/jgirmay/pyguide/internal/metrics"
	"github.com/jgirmay/pyguide/internal/realtime"
	"github.com/jgirmay/pyguide/pkg/config"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Store bundles the learning repositories.
type Store struct {
	Attempts *repository.AttemptRepository
	Sessions *repository.SessionRepository
	Progress *repository.ProgressRepository
	Users    *identity.UserRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		Attempts: repository.NewAttemptRepository(db),
		Sessions: repository.NewSessionRepository(db),
		Progress: repository.NewProgressRepository(db),
		Users:    identity.NewUserRepository(db),
	}
}

// LessonService runs questioning sessions: start, timed questions, answers,
// the retry round and completion with scoring.
type LessonService struct {
	store     *Store
	catalog   *contentsvc.CatalogService
	countdown *countdown.Manager
	bus       realtime.Bus
	metrics   *metrics.Metrics
	policy    config.LearningPolicy
	log       *zap.Logger
	now       func() time.Time
}

func NewLessonService(store *Store, catalog *contentsvc.CatalogService, bus realtime.Bus, m *metrics.Metrics, policy config.LearningPolicy, log *zap.Logger) *LessonService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &LessonService{
		store:   store,
		catalog: catalog,
		bus:     bus,
		metrics: m,
		policy:  policy,
		log:     log.With(zap.String("service", "lesson")),
		now:     func() time.Time { return time.Now().UTC() },
	}
	s.countdown = countdown.NewManager(s.recordTimeout)
	return s
}

// Close cancels every running countdown.
func (s *LessonService) Close() {
	s.countdown.Stop()
}

// Availability evaluates the unlock gate against the user's current total.
func (s *LessonService) Availability(ctx context.Context, userID, sectionID, subjectID string) (*models.AvailabilityResponse, error) {
	subject, err := s.catalog.Subject(ctx, sectionID, subjectID, false)
	if err != nil {
		return nil, err
	}
	total, err := s.store.Users.TotalPoints(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load total points: %w", err)
	}
	return &models.AvailabilityResponse{
		SectionID:    sectionID,
		SubjectID:    subjectID,
		Availability: unlock.Check(total, subject.MinPointsRequired),
	}, nil
}

// StartLesson opens a session over the subject's questions. Locked subjects
// are refused with SUBJECT_LOCKED.
func (s *LessonService) StartLesson(ctx context.Context, userID, sectionID, subjectID string) (*models.StartSessionResponse, error) {
	avail, err := s.Availability(ctx, userID, sectionID, subjectID)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, errors.SubjectLocked(avail.Required, avail.Have)
	}

	items, err := s.catalog.SubjectItems(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	questionIDs := make([]string, 0, len(items))
	views := make([]content.ItemView, 0, len(items))
	for i, item := range items {
		if content.IsQuestion(item) {
			questionIDs = append(questionIDs, item.ItemID())
		}
		views = append(views, content.View(item, i, false))
	}

	session := &models.QuestioningSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		SectionID:   sectionID,
		SubjectID:   subjectID,
		QuestionIDs: datatypes.JSONSlice[string](questionIDs),
		StartedAt:   s.now(),
	}
	if err := s.store.Sessions.Create(ctx, session); err != nil {
		return nil, errors.Retryable("could not start session", err.Error())
	}

	s.log.Info("session started",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.String("subject_id", subjectID),
		zap.Int("questions", len(questionIDs)),
	)
	return &models.StartSessionResponse{Session: *session, Items: views}, nil
}

// Get returns a session of the user.
func (s *LessonService) Get(ctx context.Context, userID, sessionID string) (*models.QuestioningSession, error) {
	session, err := s.store.Sessions.Get(ctx, sessionID)
	if stderrors.Is(err, gorm.ErrRecordNotFound) || (err == nil && session.UserID != userID) {
		return nil, errors.NotFound("session")
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *LessonService) open(ctx context.Context, userID, sessionID string) (*models.QuestioningSession, error) {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, errors.SessionCompleted()
	}
	return session, nil
}

func (s *LessonService) question(ctx context.Context, session *models.QuestioningSession, questionID string) (content.Item, error) {
	if !session.Contains(questionID) {
		return nil, errors.Unprocessable("question is not part of this session", questionID)
	}
	items, err := s.catalog.ItemsByIDs(ctx, []string{questionID})
	if err != nil {
		return nil, err
	}
	item, ok := items[questionID]
	if !ok {
		return nil, errors.NotFound("question")
	}
	return item, nil
}

// ArmQuestion starts the countdown of questionID, replacing the countdown of
// the previous question. Untimed questions return no deadline.
func (s *LessonService) ArmQuestion(ctx context.Context, userID, sessionID, questionID string) (*models.ArmResponse, error) {
	session, err := s.open(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	item, err := s.question(ctx, session, questionID)
	if err != nil {
		return nil, err
	}

	limit := time.Duration(content.TimeLimitSeconds(item)) * time.Second
	resp := &models.ArmResponse{QuestionID: questionID}
	if deadline := s.countdown.Arm(sessionID, questionID, limit); !deadline.IsZero() {
		resp.Deadline = &deadline
	}
	return resp, nil
}

// SubmitAnswer grades and records one answer. Each question takes one
// first-try answer and, after a wrong first try, one retry.
func (s *LessonService) SubmitAnswer(ctx context.Context, userID, sessionID string, req models.SubmitAnswerRequest) (*models.SubmitAnswerResponse, error) {
	session, err := s.open(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	item, err := s.question(ctx, session, req.QuestionID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.store.Attempts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, errors.Retryable("could not load attempts", err.Error())
	}
	if err := checkRound(attempts, req.QuestionID, req.IsRetry); err != nil {
		return nil, err
	}

	correct, err := content.Check(item, req.Answer)
	if err != nil {
		return nil, errors.Validation("invalid answer", err.Error())
	}
	s.countdown.Cancel(sessionID, req.QuestionID)

	attempt := &models.Attempt{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		UserID:      userID,
		SectionID:   session.SectionID,
		SubjectID:   session.SubjectID,
		QuestionID:  req.QuestionID,
		Answer:      datatypes.JSON(req.Answer),
		IsCorrect:   correct,
		IsRetry:     req.IsRetry,
		TimeTakenMs: req.TimeTakenMs,
		CreatedAt:   s.now(),
	}
	if err := s.store.Attempts.Append(ctx, attempt); err != nil {
		if stderrors.Is(err, repository.ErrAttemptExists) {
			// lost a race; report what won it
			if latest, lerr := s.store.Attempts.ListBySession(ctx, sessionID); lerr == nil {
				if rerr := checkRound(latest, req.QuestionID, req.IsRetry); rerr != nil {
					return nil, rerr
				}
			}
			return nil, errors.Conflict("question already answered")
		}
		return nil, errors.Retryable("could not save answer", err.Error())
	}
	s.metrics.Attempt(attemptKind(correct))

	return &models.SubmitAnswerResponse{
		Attempt:     *attempt,
		IsCorrect:   correct,
		Explanation: content.View(item, 0, true).Explanation,
	}, nil
}

// checkRound rejects a second answer in the same round and a retry without a
// wrong first try.
func checkRound(attempts []models.Attempt, questionID string, retry bool) error {
	var first *models.Attempt
	for i := range attempts {
		a := &attempts[i]
		if a.QuestionID != questionID {
			continue
		}
		if a.IsRetry == retry {
			if a.TimedOut {
				return errors.Conflict("question timed out")
			}
			return errors.Conflict("question already answered")
		}
		if !a.IsRetry {
			first = a
		}
	}
	if retry && (first == nil || first.IsCorrect) {
		return errors.Unprocessable("retry needs a wrong first answer", questionID)
	}
	return nil
}

// recordTimeout runs on countdown expiry and stores a null, incorrect answer.
func (s *LessonService) recordTimeout(sessionID, questionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := s.store.Sessions.Get(ctx, sessionID)
	if err != nil || session.IsCompleted() {
		return
	}
	attempts, err := s.store.Attempts.ListBySession(ctx, sessionID)
	if err != nil {
		s.log.Error("load attempts for timeout", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	retry := false
	for _, a := range attempts {
		if a.QuestionID == questionID && !a.IsRetry {
			retry = true
		}
	}
	if checkRound(attempts, questionID, retry) != nil {
		return
	}

	attempt := &models.Attempt{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		UserID:     session.UserID,
		SectionID:  session.SectionID,
		SubjectID:  session.SubjectID,
		QuestionID: questionID,
		IsRetry:    retry,
		TimedOut:   true,
		CreatedAt:  s.now(),
	}
	if err := s.store.Attempts.Append(ctx, attempt); err != nil {
		if stderrors.Is(err, repository.ErrAttemptExists) {
			return
		}
		s.log.Error("record timeout", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	s.metrics.Attempt("timeout")
	s.log.Info("question timed out", zap.String("session_id", sessionID), zap.String("question_id", questionID))
}

// IncorrectQuestions returns the questions missed on the first try and not
// yet retried, in lesson order. The denominator set stays unchanged.
func (s *LessonService) IncorrectQuestions(ctx context.Context, userID, sessionID string) ([]content.ItemView, error) {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.store.Attempts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	missed := make(map[string]bool)
	for _, a := range attempts {
		switch {
		case !a.IsRetry && !a.IsCorrect:
			missed[a.QuestionID] = true
		case a.IsRetry:
			missed[a.QuestionID] = false
		}
	}

	items, err := s.catalog.ItemsByIDs(ctx, session.QuestionIDs)
	if err != nil {
		return nil, err
	}
	views := make([]content.ItemView, 0, len(missed))
	for i, id := range session.QuestionIDs {
		item, ok := items[id]
		if !ok || !missed[id] {
			continue
		}
		views = append(views, content.View(item, i, false))
	}
	return views, nil
}

// Complete closes the session. Lessons are scored and folded into progress;
// practice runs only report their tally. Once started, completion runs to the
// end even if the caller goes away.
func (s *LessonService) Complete(ctx context.Context, userID, sessionID string) (*models.CompletionResponse, error) {
	ctx = context.WithoutCancel(ctx)

	session, err := s.open(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	s.countdown.Cancel(sessionID, "")

	attempts, err := s.store.Attempts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, errors.Retryable("could not load attempts", err.Error())
	}

	now := s.now()
	resp := &models.CompletionResponse{LeaderboardReadyAt: now.Add(s.policy.PropagationDelay)}
	for _, a := range attempts {
		if a.IsCorrect {
			resp.Correct++
		} else {
			resp.Incorrect++
		}
	}
	session.CompletedAt = &now
	session.CorrectCount = &resp.Correct
	session.IncorrectCount = &resp.Incorrect

	if session.IsPractice() {
		if err := s.complete(ctx, session); err != nil {
			return nil, err
		}
		s.log.Info("practice completed",
			zap.String("session_id", sessionID),
			zap.String("mode", session.Mode),
			zap.Int("correct", resp.Correct),
			zap.Int("incorrect", resp.Incorrect),
		)
		resp.Session = *session
		return resp, nil
	}

	result, err := s.score(ctx, session, attempts)
	if err != nil {
		return nil, err
	}
	session.Efficiency = &result.Efficiency
	session.Mastery = &result.Mastery
	session.Passed = &result.Passed
	gained := result.GainedPoints
	session.PointsGained = &gained
	if err := s.complete(ctx, session); err != nil {
		return nil, err
	}
	resp.Result = &result

	outcome := "fail"
	if result.Passed {
		outcome = "pass"
	}
	s.metrics.ScoringRun(outcome)

	update, retries, err := s.store.Progress.ApplyBest(ctx, userID, session.SectionID, session.SubjectID, sessionID, result, s.policy.ProgressCASRetries)
	for i := 0; i < retries; i++ {
		s.metrics.ProgressRetry()
	}
	if err != nil {
		s.log.Error("persist progress",
			zap.String("session_id", sessionID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		session.Stale = true
		resp.Stale = true
		if err := s.store.Sessions.MarkStale(ctx, sessionID); err != nil {
			s.log.Warn("mark session stale", zap.String("session_id", sessionID), zap.Error(err))
		}
	} else {
		resp.Progress = update
		s.metrics.PointsAwarded(update.Delta)
		s.publishLater(session, update)
	}

	s.log.Info("scores computed",
		zap.String("session_id", sessionID),
		zap.Float64("efficiency", result.Efficiency),
		zap.Float64("mastery", result.Mastery),
		zap.Int("raw_points", result.RawPoints),
		zap.Int("gained_points", result.GainedPoints),
		zap.Bool("passed", result.Passed),
	)
	resp.Session = *session
	return resp, nil
}

func (s *LessonService) complete(ctx context.Context, session *models.QuestioningSession) error {
	err := s.store.Sessions.Complete(ctx, session)
	if stderrors.Is(err, repository.ErrSessionCompleted) {
		return errors.SessionCompleted()
	}
	if err != nil {
		return errors.Retryable("could not complete session", err.Error())
	}
	return nil
}

// score rescores the session from its stored attempts against the
// denominator fixed at start.
func (s *LessonService) score(ctx context.Context, session *models.QuestioningSession, attempts []models.Attempt) (scoring.Result, error) {
	items, err := s.catalog.ItemsByIDs(ctx, session.QuestionIDs)
	if err != nil {
		return scoring.Result{}, errors.Retryable("could not load questions", err.Error())
	}

	denominator := make([]scoring.Question, 0, len(session.QuestionIDs))
	for _, id := range session.QuestionIDs {
		q := scoring.Question{ID: id}
		if item, ok := items[id]; ok {
			q.MaxPoints = content.MaxPoints(item)
		}
		denominator = append(denominator, q)
	}

	scored := make([]scoring.Attempt, 0, len(attempts))
	for _, a := range attempts {
		scored = append(scored, scoring.Attempt{QuestionID: a.QuestionID, IsCorrect: a.IsCorrect, IsRetry: a.IsRetry})
	}
	return scoring.Score(scored, denominator, scoringPolicy(s.policy)), nil
}

// publishLater announces the new progress once the propagation delay has passed.
func (s *LessonService) publishLater(session *models.QuestioningSession, update *models.ProgressUpdate) {
	if s.bus == nil {
		return
	}
	e, err := realtime.NewEvent(realtime.EventProgressUpdated, session.UserID, map[string]interface{}{
		"session_id":   session.ID,
		"section_id":   session.SectionID,
		"subject_id":   session.SubjectID,
		"points":       update.NextPoints,
		"delta":        update.Delta,
		"total_points": update.NewTotal,
		"passed":       update.Passed,
	})
	if err != nil {
		return
	}
	time.AfterFunc(s.policy.PropagationDelay, func() {
		if err := s.bus.Publish(context.Background(), e); err != nil {
			s.log.Warn("publish progress", zap.String("session_id", session.ID), zap.Error(err))
		}
	})
}

func scoringPolicy(p config.LearningPolicy) scoring.Policy {
	return scoring.Policy{
		MinEfficiency: p.MinEfficiency,
		MinMastery:    p.MinMastery,
		RetryDivisor:  p.RetryDivisor,
	}
}

func attemptKind(correct bool) string {
	if correct {
		return "correct"
	}
	return "incorrect"
}
