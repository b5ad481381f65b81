package services

import (
	"context"
	"fmt"

	"github.com/jgirmay/pyguide/internal/common/errors"
	"github.com/jgirmay/pyguide/internal/learning/models"
	"github.com/jgirmay/pyguide/internal/learning/ranking"
	"github.com/jgirmay/pyguide/internal/metrics"
	"github.com/jgirmay/pyguide/pkg/config"
	"go.uber.org/zap"
)

// LeaderboardQuery selects the scope: question needs section and subject,
// subject needs section, an empty query is the global board.
type LeaderboardQuery struct {
	SectionID  string `form:"sectionId"`
	SubjectID  string `form:"subjectId"`
	QuestionID string `form:"questionId"`
}

func (q LeaderboardQuery) Scope() (ranking.Scope, error) {
	switch {
	case q.QuestionID != "":
		if q.SectionID == "" || q.SubjectID == "" {
			return "", errors.BadRequest("questionId needs sectionId and subjectId")
		}
		return ranking.ScopeQuestion, nil
	case q.SubjectID != "":
		if q.SectionID == "" {
			return "", errors.BadRequest("subjectId needs sectionId")
		}
		return ranking.ScopeSubject, nil
	case q.SectionID != "":
		return ranking.ScopeSection, nil
	}
	return ranking.ScopeGlobal, nil
}

// LeaderboardService ranks users in a scope and returns the window around the
// requester. Load failures degrade to an empty board.
type LeaderboardService struct {
	store   *Store
	metrics *metrics.Metrics
	policy  config.LearningPolicy
	log     *zap.Logger
}

func NewLeaderboardService(store *Store, m *metrics.Metrics, policy config.LearningPolicy, log *zap.Logger) *LeaderboardService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LeaderboardService{
		store:   store,
		metrics: m,
		policy:  policy,
		log:     log.With(zap.String("service", "leaderboard")),
	}
}

// Load only fails for a malformed query.
func (s *LeaderboardService) Load(ctx context.Context, userID string, q LeaderboardQuery) (*models.LeaderboardResponse, error) {
	scope, err := q.Scope()
	if err != nil {
		return nil, err
	}

	entries, err := s.entries(ctx, scope, q)
	s.metrics.LeaderboardLoad(string(scope), err)
	if err != nil {
		s.log.Error("load leaderboard",
			zap.String("scope", string(scope)),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return &models.LeaderboardResponse{Scope: scope, Entries: []ranking.Entry{}, Degraded: true}, nil
	}

	ranked := ranking.Rank(entries)
	return &models.LeaderboardResponse{
		Scope:   scope,
		Entries: ranking.Window(ranked, userID, s.policy.LeaderboardSize, s.policy.LeaderboardAbove),
		Total:   len(ranked),
	}, nil
}

func (s *LeaderboardService) entries(ctx context.Context, scope ranking.Scope, q LeaderboardQuery) ([]ranking.Entry, error) {
	public, err := s.store.Users.ListPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]ranking.User, 0, len(public))
	for _, u := range public {
		users = append(users, ranking.User{ID: u.ID, DisplayName: u.DisplayName, TotalPoints: u.TotalPoints})
	}

	switch scope {
	case ranking.ScopeQuestion:
		attempts, err := s.store.Attempts.ListForQuestion(ctx, q.SectionID, q.SubjectID, q.QuestionID)
		if err != nil {
			return nil, fmt.Errorf("load question attempts: %w", err)
		}
		rows := make([]ranking.QuestionAttempt, 0, len(attempts))
		for _, a := range attempts {
			rows = append(rows, ranking.QuestionAttempt{UserID: a.UserID, IsCorrect: a.IsCorrect, IsRetry: a.IsRetry})
		}
		pts := ranking.QuestionPoints{FirstTry: s.policy.QuestionFirstTry, Retry: s.policy.QuestionRetry}
		return ranking.QuestionBoard(users, rows, pts), nil

	case ranking.ScopeSubject:
		rows, err := s.store.Progress.ListBySubject(ctx, q.SectionID, q.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("load subject progress: %w", err)
		}
		return ranking.SubjectBoard(users, toRanking(rows), q.SubjectID), nil

	case ranking.ScopeSection:
		rows, err := s.store.Progress.ListBySection(ctx, q.SectionID)
		if err != nil {
			return nil, fmt.Errorf("load section progress: %w", err)
		}
		return ranking.SectionBoard(users, toRanking(rows), q.SectionID), nil

	case ranking.ScopeGlobal:
		rows, err := s.store.Progress.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load progress: %w", err)
		}
		return ranking.GlobalBoard(users, toRanking(rows)), nil

	default:
		panic(fmt.Sprintf("unhandled leaderboard scope %q", scope))
	}
}

func toRanking(rows []models.SubjectProgress) []ranking.Progress {
	out := make([]ranking.Progress, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Ranking())
	}
	return out
}
