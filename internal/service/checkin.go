package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/model"
	"github.com/sankalp/sankalp/internal/repository"
	"github.com/sankalp/sankalp/internal/streak"
)

// CheckInService records check-ins and daily logs and keeps the derived
// state (habit streak rows, the user's current streak, badges and XP) in
// step with them.
//
// Every write ends in refresh, which rebuilds the derived state from the
// full history. The same path backs the recompute CLI command, so the
// stored values can always be regenerated.
type CheckInService struct {
	store    repository.Store
	engine   engine
	stats    *StatsCache
	calendar Calendar
	logger   *slog.Logger
}

func NewCheckInService(store repository.Store, stats *StatsCache, calendar Calendar, logger *slog.Logger) *CheckInService {
	return &CheckInService{
		store:    store,
		engine:   engine{habits: store, checkins: store, logger: logger},
		stats:    stats,
		calendar: calendar,
		logger:   logger,
	}
}

// CheckInInput is the body of POST /checkins. An empty Date means today.
type CheckInInput struct {
	HabitID   string `json:"habitId"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	Mood      *int   `json:"mood"`
	Note      string `json:"note"`
	TimeSpent *int   `json:"timeSpent"`
}

// Refresh is the derived state after a write.
type Refresh struct {
	CurrentStreak int                 `json:"currentStreak"`
	LongestStreak int                 `json:"longestStreak"`
	HabitStreaks  []streak.HabitStats `json:"habitStreaks"`
	NewBadges     []streak.Badge      `json:"newBadges"`
	XPGained      int                 `json:"xpGained"`
}

// CheckInResult is returned by Record.
type CheckInResult struct {
	CheckIn *model.CheckIn    `json:"checkIn"`
	Streak  streak.HabitStats `json:"habitStreak"`
	Refresh
}

// Record upserts one check-in and refreshes the user's derived state.
func (s *CheckInService) Record(ctx context.Context, userID string, in CheckInInput) (*CheckInResult, error) {
	today, _ := s.calendar.Today()

	date := today
	if strings.TrimSpace(in.Date) != "" {
		d, err := s.parseDate(in.Date, today)
		if err != nil {
			return nil, err
		}
		date = d
	}
	if in.HabitID == "" {
		return nil, apperror.ValidationFailed("habitId", "habitId is required")
	}
	if in.Mood != nil && (*in.Mood < 1 || *in.Mood > 5) {
		return nil, apperror.ValidationFailed("mood", "mood must be between 1 and 5")
	}
	if in.TimeSpent != nil && *in.TimeSpent < 0 {
		return nil, apperror.ValidationFailed("timeSpent", "timeSpent must not be negative")
	}
	note := strings.TrimSpace(in.Note)
	if err := checkLength("note", note, 0, maxNoteLen); err != nil {
		return nil, err
	}

	if _, err := s.store.GetHabit(ctx, userID, in.HabitID); err != nil {
		return nil, fmt.Errorf("service/checkin: %w", err)
	}

	c := &model.CheckIn{
		UserID:    userID,
		HabitID:   in.HabitID,
		Date:      date,
		Completed: in.Completed,
		Mood:      in.Mood,
		Note:      note,
		TimeSpent: in.TimeSpent,
	}
	if err := s.store.UpsertCheckIn(ctx, c); err != nil {
		return nil, fmt.Errorf("service/checkin: saving check-in: %w", err)
	}
	s.stats.Invalidate(ctx, userID)

	refresh, err := s.refresh(ctx, userID, today)
	if err != nil {
		return nil, err
	}

	result := &CheckInResult{CheckIn: c, Refresh: *refresh}
	for _, hs := range refresh.HabitStreaks {
		if hs.HabitID == c.HabitID {
			result.Streak = hs
		}
	}
	return result, nil
}

// ForDate returns the user's check-ins on one date.
func (s *CheckInService) ForDate(ctx context.Context, userID, date string) ([]model.CheckIn, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return nil, apperror.ValidationFailed("date", "date must be YYYY-MM-DD")
	}
	out, err := s.store.ListCheckInsForDate(ctx, userID, d)
	if err != nil {
		return nil, fmt.Errorf("service/checkin: listing check-ins for %s: %w", d, err)
	}
	return out, nil
}

// DailyLogInput is the body of PUT /daily-log/{date}. Nil fields keep the
// stored value.
type DailyLogInput struct {
	SleepHours *float64 `json:"sleepHours"`
	Reflection *string  `json:"reflection"`
}

// DailyLogResult is returned by SaveDailyLog.
type DailyLogResult struct {
	Log       *model.DailyLog `json:"dailyLog"`
	NewBadges []streak.Badge  `json:"newBadges"`
	XPGained  int             `json:"xpGained"`
}

// SaveDailyLog merges in into the log for date and re-evaluates badges,
// since journal entries and sleep count toward them.
func (s *CheckInService) SaveDailyLog(ctx context.Context, userID, date string, in DailyLogInput) (*DailyLogResult, error) {
	today, _ := s.calendar.Today()
	d, err := s.parseDate(date, today)
	if err != nil {
		return nil, err
	}
	if in.SleepHours != nil && (*in.SleepHours < 0 || *in.SleepHours > 24) {
		return nil, apperror.ValidationFailed("sleepHours", "sleepHours must be between 0 and 24")
	}

	log, err := s.store.GetDailyLog(ctx, userID, d)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		log = &model.DailyLog{UserID: userID, Date: d}
	case err != nil:
		return nil, fmt.Errorf("service/checkin: loading daily log: %w", err)
	}

	if in.SleepHours != nil {
		log.SleepHours = in.SleepHours
	}
	if in.Reflection != nil {
		reflection := strings.TrimSpace(*in.Reflection)
		if err := checkLength("reflection", reflection, 0, maxReflectionLen); err != nil {
			return nil, err
		}
		log.Reflection = reflection
	}

	if err := s.store.UpsertDailyLog(ctx, log); err != nil {
		return nil, fmt.Errorf("service/checkin: saving daily log: %w", err)
	}
	s.stats.Invalidate(ctx, userID)

	refresh, err := s.refresh(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	return &DailyLogResult{Log: log, NewBadges: refresh.NewBadges, XPGained: refresh.XPGained}, nil
}

// Recompute rebuilds one user's derived state from scratch.
func (s *CheckInService) Recompute(ctx context.Context, userID string) (*Refresh, error) {
	today, _ := s.calendar.Today()
	refresh, err := s.refresh(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	s.stats.Invalidate(ctx, userID)
	return refresh, nil
}

// RecomputeAll runs Recompute for every user. A failing user is logged and
// skipped; the joined failures are returned with the number of users done.
func (s *CheckInService) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("service/checkin: listing users: %w", err)
	}

	var (
		done int
		errs []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := s.Recompute(ctx, id); err != nil {
			s.logger.Error("recompute failed",
				slog.String("user_id", id),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

func (s *CheckInService) refresh(ctx context.Context, userID string, today model.Date) (*Refresh, error) {
	snap, err := s.engine.snapshot(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("service/checkin: %w", err)
	}

	habitStats := snap.HabitStreaks(today)
	rows := make([]model.HabitStreak, 0, len(habitStats))
	for _, hs := range habitStats {
		rows = append(rows, model.HabitStreak{
			UserID:            userID,
			HabitID:           hs.HabitID,
			CurrentStreak:     hs.Current,
			BestStreak:        hs.Longest,
			LastCompletedDate: hs.LastCompleted,
		})
	}
	if err := s.store.SaveHabitStreaks(ctx, userID, rows); err != nil {
		return nil, fmt.Errorf("service/checkin: saving habit streaks: %w", err)
	}

	current := snap.CurrentStreak(today)
	if err := s.store.SetCurrentStreak(ctx, userID, current); err != nil {
		return nil, fmt.Errorf("service/checkin: saving current streak: %w", err)
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/checkin: loading user: %w", err)
	}
	logs, err := s.store.ListDailyLogs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/checkin: loading daily logs: %w", err)
	}

	refresh := &Refresh{
		CurrentStreak: current,
		LongestStreak: snap.LongestStreak().Days,
		HabitStreaks:  habitStats,
		NewBadges:     []streak.Badge{},
	}

	due := streak.EvaluateMilestones(snap.Counters(today, logs), user.Badges)
	if len(due) == 0 {
		return refresh, nil
	}
	granted, err := s.store.AwardBadges(ctx, userID, streak.Awards(due))
	if err != nil {
		return nil, fmt.Errorf("service/checkin: awarding badges: %w", err)
	}
	for _, a := range granted {
		if b, ok := streak.LookupBadge(a.BadgeID); ok {
			refresh.NewBadges = append(refresh.NewBadges, b)
		}
		refresh.XPGained += a.XP
	}
	if len(granted) > 0 {
		s.logger.Info("badges awarded",
			slog.String("user_id", userID),
			slog.Int("count", len(granted)),
			slog.Int("xp", refresh.XPGained),
		)
	}
	return refresh, nil
}

// parseDate accepts a YYYY-MM-DD date inside the range the engine counts.
func (s *CheckInService) parseDate(value string, today model.Date) (model.Date, error) {
	d, err := model.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return 0, apperror.ValidationFailed("date", "date must be YYYY-MM-DD")
	}
	if d < streak.MinDate || d > today.AddDays(1) {
		return 0, apperror.ValidationFailed("date", "date is out of range")
	}
	return d, nil
}
