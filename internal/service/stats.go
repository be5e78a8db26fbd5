package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/model"
	"github.com/sankalp/sankalp/internal/repository"
	"github.com/sankalp/sankalp/internal/streak"
)

const (
	statsWindowDays   = 7
	detailsWindowDays = 30
	historyDays       = 30

	DefaultPerformanceDays = 30
	MaxPerformanceDays     = 365
)

// StatsService answers the read-only dashboard queries. Every figure comes
// from one streak.Snapshot of the user's current data.
type StatsService struct {
	users      repository.UserRepository
	dailyLogs  repository.DailyLogRepository
	engine     engine
	cache      *StatsCache
	calendar   Calendar
	cutoffHour int
	logger     *slog.Logger
}

func NewStatsService(store repository.Store, cache *StatsCache, calendar Calendar, cutoffHour int, logger *slog.Logger) *StatsService {
	return &StatsService{
		users:      store,
		dailyLogs:  store,
		engine:     engine{habits: store, checkins: store, logger: logger},
		cache:      cache,
		calendar:   calendar,
		cutoffHour: cutoffHour,
		logger:     logger,
	}
}

// Stats is the /stats payload.
type Stats struct {
	CurrentStreak      int      `json:"currentStreak"`
	LongestStreak      int      `json:"longestStreak"`
	TotalCompletedDays int      `json:"totalCompletedDays"`
	TotalHabits        int      `json:"totalHabits"`
	CompletionRate     float64  `json:"completionRate"`
	XP                 int      `json:"xp"`
	Badges             []string `json:"badges"`
}

// ZeroStats is served when the real figures cannot be loaded.
func ZeroStats() *Stats {
	return &Stats{Badges: []string{}}
}

func (s *StatsService) Stats(ctx context.Context, userID string) (*Stats, error) {
	if cached, ok := s.cache.get(ctx, userID); ok {
		return cached, nil
	}

	today, _ := s.calendar.Today()
	snap, err := s.engine.snapshot(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("service/stats: %w", err)
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/stats: loading user: %w", err)
	}

	st := &Stats{
		CurrentStreak:      snap.CurrentStreak(today),
		LongestStreak:      snap.LongestStreak().Days,
		TotalCompletedDays: snap.TotalCompletedDays(),
		TotalHabits:        snap.TotalHabits(),
		CompletionRate:     snap.CompletionRate(today, statsWindowDays),
		XP:                 user.XP,
		Badges:             user.Badges,
	}
	if st.Badges == nil {
		st.Badges = []string{}
	}
	s.cache.put(ctx, userID, st)
	return st, nil
}

// Details is the /streak/details payload.
type Details struct {
	CurrentStreak      int                   `json:"currentStreak"`
	LongestStreak      int                   `json:"longestStreak"`
	LongestPeriod      *streak.Run           `json:"longestPeriod"`
	TotalCompletedDays int                   `json:"totalCompletedDays"`
	TotalHabits        int                   `json:"totalHabits"`
	CompletionRate     float64               `json:"completionRate"`
	Status             string                `json:"status"`
	Message            string                `json:"message"`
	History            []streak.DayStatus    `json:"history"`
	HabitStreaks       []streak.HabitStats   `json:"habitStreaks"`
	Milestones         []streak.Milestone    `json:"milestones"`
	NextMilestone      *streak.NextMilestone `json:"nextMilestone"`
}

// ZeroDetails is the degraded /streak/details body: no streak, the ladder
// unachieved and the first rung ahead.
func ZeroDetails() *Details {
	status, message := streak.Status(0)
	return &Details{
		Status:        status,
		Message:       message,
		History:       []streak.DayStatus{},
		HabitStreaks:  []streak.HabitStats{},
		Milestones:    streak.Milestones(0, 0),
		NextMilestone: streak.Next(0),
	}
}

func (s *StatsService) Details(ctx context.Context, userID string) (*Details, error) {
	today, _ := s.calendar.Today()
	snap, err := s.engine.snapshot(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("service/stats: %w", err)
	}

	current := snap.CurrentStreak(today)
	longest := snap.LongestStreak()
	status, message := streak.Status(current)

	d := &Details{
		CurrentStreak:      current,
		LongestStreak:      longest.Days,
		TotalCompletedDays: snap.TotalCompletedDays(),
		TotalHabits:        snap.TotalHabits(),
		CompletionRate:     snap.CompletionRate(today, detailsWindowDays),
		Status:             status,
		Message:            message,
		History:            snap.History(today, historyDays),
		HabitStreaks:       snap.HabitStreaks(today),
		Milestones:         streak.Milestones(current, longest.Days),
		NextMilestone:      streak.Next(current),
	}
	if longest.Days > 0 {
		d.LongestPeriod = &longest
	}
	return d, nil
}

// ZeroRisk is the degraded /streak/at-risk body.
func ZeroRisk() *streak.Risk {
	return &streak.Risk{IncompleteHabits: []string{}}
}

func (s *StatsService) AtRisk(ctx context.Context, userID string) (*streak.Risk, error) {
	today, hour := s.calendar.Today()
	snap, err := s.engine.snapshot(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("service/stats: %w", err)
	}
	risk := snap.AtRisk(today, hour, snap.CurrentStreak(today), s.cutoffHour)
	if risk.IncompleteHabits == nil {
		risk.IncompleteHabits = []string{}
	}
	return &risk, nil
}

// Performance reports one habit over the last days days. days <= 0 means
// the default window; larger than MaxPerformanceDays is rejected.
func (s *StatsService) Performance(ctx context.Context, userID, habitID string, days int) (*streak.Performance, error) {
	if days <= 0 {
		days = DefaultPerformanceDays
	}
	if days > MaxPerformanceDays {
		return nil, apperror.ValidationFailed("days", "days must be at most 365")
	}

	today, _ := s.calendar.Today()
	snap, err := s.engine.snapshot(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("service/stats: %w", err)
	}
	found := false
	for _, h := range snap.Habits() {
		if h.ID == habitID {
			found = true
			break
		}
	}
	if !found {
		return nil, apperror.NotFound("habit", habitID)
	}

	p := snap.HabitPerformance(habitID, today, days)
	return &p, nil
}

// Prediction estimates today's success. It uses last night's sleep from
// today's daily log, falling back to yesterday's.
func (s *StatsService) Prediction(ctx context.Context, userID string) (*streak.Prediction, error) {
	today, _ := s.calendar.Today()
	snap, err := s.engine.snapshot(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("service/stats: %w", err)
	}

	var sleep *float64
	for _, d := range []model.Date{today, today.AddDays(-1)} {
		log, err := s.dailyLogs.GetDailyLog(ctx, userID, d)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("service/stats: loading daily log: %w", err)
		}
		if log.SleepHours != nil {
			sleep = log.SleepHours
			break
		}
	}

	p := snap.Predict(today, sleep)
	return &p, nil
}

// BadgeStatus is a catalog badge with the user's earned flag.
type BadgeStatus struct {
	streak.Badge
	Earned bool `json:"earned"`
}

// Badges returns the full catalog, marking what the user holds, and their XP.
func (s *StatsService) Badges(ctx context.Context, userID string) ([]BadgeStatus, int, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("service/stats: loading user: %w", err)
	}
	catalog := streak.Catalog()
	out := make([]BadgeStatus, 0, len(catalog))
	for _, b := range catalog {
		out = append(out, BadgeStatus{Badge: b, Earned: user.HasBadge(b.ID)})
	}
	return out, user.XP, nil
}
