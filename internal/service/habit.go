package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/model"
	"github.com/sankalp/sankalp/internal/repository"
)

// HabitService manages a user's habit list.
type HabitService struct {
	habits repository.HabitRepository
	stats  *StatsCache
	logger *slog.Logger
}

func NewHabitService(habits repository.HabitRepository, stats *StatsCache, logger *slog.Logger) *HabitService {
	return &HabitService{habits: habits, stats: stats, logger: logger}
}

// HabitInput is one entry of POST /habits.
type HabitInput struct {
	Name       string `json:"name"`
	Why        string `json:"why"`
	Time       string `json:"time"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
	GoalValue  int    `json:"goalValue"`
	GoalUnit   string `json:"goalUnit"`
}

func (s *HabitService) List(ctx context.Context, userID string) ([]model.Habit, error) {
	habits, err := s.habits.ListHabits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/habit: listing habits of %s: %w", userID, err)
	}
	return habits, nil
}

// Replace swaps the user's whole habit list for inputs. Every earlier habit
// is deleted together with its check-ins and streak rows.
func (s *HabitService) Replace(ctx context.Context, userID string, inputs []HabitInput) ([]model.Habit, error) {
	if len(inputs) == 0 {
		return nil, apperror.ValidationFailed("habits", "at least one habit is required")
	}
	if len(inputs) > maxHabits {
		return nil, apperror.ValidationFailed("habits", "at most "+strconv.Itoa(maxHabits)+" habits are allowed")
	}

	habits := make([]model.Habit, 0, len(inputs))
	for i, in := range inputs {
		h, err := buildHabit(userID, in)
		if err != nil {
			return nil, fmt.Errorf("habit %d: %w", i+1, err)
		}
		habits = append(habits, h)
	}

	if err := s.habits.ReplaceHabits(ctx, userID, habits); err != nil {
		return nil, fmt.Errorf("service/habit: replacing habits of %s: %w", userID, err)
	}
	s.stats.Invalidate(ctx, userID)

	s.logger.Info("habits replaced",
		slog.String("user_id", userID),
		slog.Int("count", len(habits)),
	)
	return habits, nil
}

func (s *HabitService) Delete(ctx context.Context, userID, habitID string) error {
	if err := s.habits.DeleteHabit(ctx, userID, habitID); err != nil {
		return fmt.Errorf("service/habit: deleting habit %s: %w", habitID, err)
	}
	s.stats.Invalidate(ctx, userID)
	return nil
}

func buildHabit(userID string, in HabitInput) (model.Habit, error) {
	h := model.Habit{
		UserID:     userID,
		Name:       strings.TrimSpace(in.Name),
		Why:        strings.TrimSpace(in.Why),
		Time:       strings.TrimSpace(in.Time),
		Category:   strings.TrimSpace(in.Category),
		Difficulty: strings.ToLower(strings.TrimSpace(in.Difficulty)),
		GoalValue:  in.GoalValue,
		GoalUnit:   strings.TrimSpace(in.GoalUnit),
	}
	if h.Time == "" {
		h.Time = DefaultHabitTime
	}

	if err := checkLength("name", h.Name, 1, maxNameLen); err != nil {
		return h, err
	}
	if err := checkLength("why", h.Why, 0, maxWhyLen); err != nil {
		return h, err
	}
	if err := checkClock("time", h.Time); err != nil {
		return h, err
	}
	switch h.Difficulty {
	case "", "easy", "medium", "hard":
	default:
		return h, apperror.ValidationFailed("difficulty", "difficulty must be easy, medium or hard")
	}
	if h.GoalValue < 0 {
		return h, apperror.ValidationFailed("goalValue", "goalValue must not be negative")
	}
	return h, nil
}
