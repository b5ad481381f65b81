package services

import (
	"context"
	"fmt"
	"time"

	contentsvc "github.com/jgirmay/pyguide/internal/content/services"
	"github.com/jgirmay/pyguide/internal/learning/models"
	"github.com/jgirmay/pyguide/internal/learning/practice"
)

// SessionPerformance is one completed lesson.
type SessionPerformance struct {
	SessionID    string    `json:"session_id"`
	SectionID    string    `json:"section_id"`
	SubjectID    string    `json:"subject_id"`
	CompletedAt  time.Time `json:"completed_at"`
	Efficiency   float64   `json:"efficiency"`
	Mastery      float64   `json:"mastery"`
	PointsGained int       `json:"points_gained"`
	Passed       bool      `json:"passed"`
}

// DayCount is one heatmap cell.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// PointsPoint is one step of the cumulative points curve.
type PointsPoint struct {
	At    time.Time `json:"at"`
	Total int       `json:"total"`
}

// PracticeRun is one completed practice session.
type PracticeRun struct {
	SessionID   string    `json:"session_id"`
	CompletedAt time.Time `json:"completed_at"`
	Correct     int       `json:"correct"`
	Incorrect   int       `json:"incorrect"`
	Efficiency  float64   `json:"efficiency"`
}

type PracticeHistory struct {
	Runs          []PracticeRun `json:"runs"`
	AvgEfficiency float64       `json:"avg_efficiency"`
}

type StatsResponse struct {
	TotalPoints    int                  `json:"total_points"`
	Sessions       []SessionPerformance `json:"sessions"`
	Heatmap        []DayCount           `json:"heatmap"`
	Progression    []PointsPoint        `json:"progression"`
	PassedSubjects int                  `json:"passed_subjects"`
	TotalSubjects  int                  `json:"total_subjects"`
	AvgEfficiency  float64              `json:"avg_efficiency"`
	AvgMastery     float64              `json:"avg_mastery"`
	RandomPractice PracticeHistory      `json:"random_practice"`
	WorstPractice  PracticeHistory      `json:"worst_practice"`
}

// StatsService assembles the statistics page of a user.
type StatsService struct {
	store   *Store
	catalog *contentsvc.CatalogService
	// practice stats share the fold used for selection
	practice *PracticeService
}

func NewStatsService(store *Store, catalog *contentsvc.CatalogService, practiceSvc *PracticeService) *StatsService {
	return &StatsService{store: store, catalog: catalog, practice: practiceSvc}
}

func (s *StatsService) Stats(ctx context.Context, userID string) (*StatsResponse, error) {
	total, err := s.store.Users.TotalPoints(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load total points: %w", err)
	}
	sessions, err := s.store.Sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	attempts, err := s.store.Attempts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	progress, err := s.store.Progress.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	subjects, err := s.catalog.AllSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subjects: %w", err)
	}

	resp := &StatsResponse{
		TotalPoints:    total,
		Sessions:       []SessionPerformance{},
		Heatmap:        heatmap(attempts),
		Progression:    []PointsPoint{},
		RandomPractice: PracticeHistory{Runs: []PracticeRun{}},
		WorstPractice:  PracticeHistory{Runs: []PracticeRun{}},
	}

	for _, subject := range subjects {
		if subject.Published() {
			resp.TotalSubjects++
		}
	}
	for _, p := range progress {
		if !p.Passed {
			continue
		}
		resp.PassedSubjects++
		resp.AvgEfficiency += p.LastEfficiency
		resp.AvgMastery += p.LastMastery
	}
	if resp.PassedSubjects > 0 {
		resp.AvgEfficiency /= float64(resp.PassedSubjects)
		resp.AvgMastery /= float64(resp.PassedSubjects)
	}

	best := make(map[string]int)
	running := 0
	for _, session := range sessions {
		if !session.IsCompleted() {
			continue
		}
		if session.IsPractice() {
			appendPracticeRun(resp, session)
			continue
		}

		perf := SessionPerformance{
			SessionID:   session.ID,
			SectionID:   session.SectionID,
			SubjectID:   session.SubjectID,
			CompletedAt: *session.CompletedAt,
		}
		if session.Efficiency != nil {
			perf.Efficiency = *session.Efficiency
		}
		if session.Mastery != nil {
			perf.Mastery = *session.Mastery
		}
		if session.PointsGained != nil {
			perf.PointsGained = *session.PointsGained
		}
		if session.Passed != nil {
			perf.Passed = *session.Passed
		}
		resp.Sessions = append(resp.Sessions, perf)

		// replays the best-per-subject rule, so the curve ends at the total
		key := session.SectionID + "/" + session.SubjectID
		if perf.PointsGained > best[key] {
			running += perf.PointsGained - best[key]
			best[key] = perf.PointsGained
			resp.Progression = append(resp.Progression, PointsPoint{At: perf.CompletedAt, Total: running})
		}
	}

	resp.RandomPractice.AvgEfficiency = averageEfficiency(resp.RandomPractice.Runs)
	resp.WorstPractice.AvgEfficiency = averageEfficiency(resp.WorstPractice.Runs)
	return resp, nil
}

// QuestionStats returns the lifetime per-question counts of the user.
func (s *StatsService) QuestionStats(ctx context.Context, userID string) (map[string]practice.Stat, error) {
	return s.practice.QuestionStats(ctx, userID)
}

// Points returns the user's current total.
func (s *StatsService) Points(ctx context.Context, userID string) (int, error) {
	return s.store.Users.TotalPoints(ctx, userID)
}

func appendPracticeRun(resp *StatsResponse, session models.QuestioningSession) {
	run := PracticeRun{SessionID: session.ID, CompletedAt: *session.CompletedAt}
	if session.CorrectCount != nil {
		run.Correct = *session.CorrectCount
	}
	if session.IncorrectCount != nil {
		run.Incorrect = *session.IncorrectCount
	}
	if n := run.Correct + run.Incorrect; n > 0 {
		run.Efficiency = 100 * float64(run.Correct) / float64(n)
	}

	switch practice.Mode(session.Mode) {
	case practice.ModeRandom:
		resp.RandomPractice.Runs = append(resp.RandomPractice.Runs, run)
	case practice.ModeWorst:
		resp.WorstPractice.Runs = append(resp.WorstPractice.Runs, run)
	}
}

func averageEfficiency(runs []PracticeRun) float64 {
	if len(runs) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range runs {
		sum += r.Efficiency
	}
	return sum / float64(len(runs))
}

// heatmap counts attempts per UTC day, oldest first.
func heatmap(attempts []models.Attempt) []DayCount {
	out := []DayCount{}
	for _, a := range attempts {
		day := a.CreatedAt.UTC().Format("2006-01-02")
		if n := len(out); n > 0 && out[n-1].Date == day {
			out[n-1].Count++
			continue
		}
		out = append(out, DayCount{Date: day, Count: 1})
	}
	return out
}
