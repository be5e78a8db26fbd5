package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sankalp/sankalp/internal/cache"
	"github.com/sankalp/sankalp/internal/notify"
	"github.com/sankalp/sankalp/internal/repository"
)

const (
	// reminderDelay is how long after a habit's scheduled time it becomes
	// due for a reminder.
	reminderDelay = 30 * time.Minute
	// reminderKeyTTL outlives the day the key is for in every timezone.
	reminderKeyTTL = 36 * time.Hour
)

// ReminderService emails users whose habits are overdue today. Each user
// gets at most one reminder per day.
type ReminderService struct {
	users    repository.UserRepository
	engine   engine
	sent     cache.Store
	mail     notify.Publisher
	calendar Calendar
	logger   *slog.Logger
}

func NewReminderService(store repository.Store, sent cache.Store, mail notify.Publisher, calendar Calendar, logger *slog.Logger) *ReminderService {
	return &ReminderService{
		users:    store,
		engine:   engine{habits: store, checkins: store, logger: logger},
		sent:     sent,
		mail:     mail,
		calendar: calendar,
		logger:   logger,
	}
}

// RunOnce makes one pass over all reminder recipients and returns how many
// reminders were handed off.
func (s *ReminderService) RunOnce(ctx context.Context) (int, error) {
	recipients, err := s.users.ListReminderRecipients(ctx)
	if err != nil {
		return 0, fmt.Errorf("service/reminder: listing recipients: %w", err)
	}

	now := s.calendar.Local()
	minutes := now.Hour()*60 + now.Minute()
	today, _ := s.calendar.Today()

	sent := 0
	for _, u := range recipients {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		snap, err := s.engine.snapshot(ctx, u.ID, today)
		if err != nil {
			s.logger.Error("reminder: loading user data failed",
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		var due []string
		for _, h := range snap.Habits() {
			if snap.HabitDoneOn(h.ID, today) {
				continue
			}
			if clockMinutes(h.Time)+int(reminderDelay/time.Minute) <= minutes {
				due = append(due, h.Name)
			}
		}
		if len(due) == 0 {
			continue
		}

		key := "reminder:" + u.ID + ":" + today.String()
		fresh, err := s.sent.SetNX(ctx, key, "1", reminderKeyTTL)
		if err != nil {
			s.logger.Error("reminder: dedupe check failed",
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !fresh {
			continue
		}

		msg := notify.ReminderEmail(u.Email, u.Name, due, snap.CurrentStreak(today))
		if err := s.mail.Publish(ctx, msg); err != nil {
			s.logger.Error("reminder: hand-off failed",
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
			// Let the next pass retry.
			if err := s.sent.Delete(ctx, key); err != nil {
				s.logger.Warn("reminder: releasing dedupe key failed", slog.String("error", err.Error()))
			}
			continue
		}
		sent++
	}

	s.logger.Info("reminder pass finished",
		slog.Int("recipients", len(recipients)),
		slog.Int("sent", sent),
	)
	return sent, nil
}

// Run calls RunOnce every interval until ctx is cancelled.
func (s *ReminderService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("reminder pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
