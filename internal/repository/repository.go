// Package repository declares the storage interfaces the services depend on.
// Two implementations exist: repository/sqlite (embedded, the default) and
// repository/postgres (hosted, selected by DATABASE_URL).
package repository

import (
	"context"

	"github.com/sankalp/sankalp/internal/model"
)

type UserRepository interface {
	// CreateUser inserts u, assigning ID and timestamps. A taken email
	// returns an apperror.ErrConflict.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpsertGoogleUser finds the user by Google subject and refreshes the
	// name, or creates them. It reports whether a new row was created. An
	// email already registered with a password returns ErrConflict.
	UpsertGoogleUser(ctx context.Context, u *model.User) (created bool, err error)
	// UpdateUser writes the mutable profile fields of u.
	UpdateUser(ctx context.Context, u *model.User) error
	// AwardBadges adds the awards the user does not hold yet and their XP in
	// one atomic step, returning only the newly granted ones.
	AwardBadges(ctx context.Context, userID string, awards []model.BadgeAward) ([]model.BadgeAward, error)
	SetCurrentStreak(ctx context.Context, userID string, streak int) error
	// ListReminderRecipients returns verified users with email reminders on.
	ListReminderRecipients(ctx context.Context) ([]model.User, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

type HabitRepository interface {
	// ListHabits returns the user's habits in the order they were submitted.
	ListHabits(ctx context.Context, userID string) ([]model.Habit, error)
	GetHabit(ctx context.Context, userID, habitID string) (*model.Habit, error)
	// ReplaceHabits deletes every habit of the user (cascading to their
	// check-ins and streak rows) and inserts habits, assigning IDs.
	ReplaceHabits(ctx context.Context, userID string, habits []model.Habit) error
	DeleteHabit(ctx context.Context, userID, habitID string) error
}

type CheckInRepository interface {
	// UpsertCheckIn inserts or updates the row for (UserID, HabitID, Date)
	// and sets c.ID to the stored row's ID.
	UpsertCheckIn(ctx context.Context, c *model.CheckIn) error
	// ListCheckIns returns the user's full history. Rows whose stored date
	// cannot be parsed come back with the zero Date so callers can exclude
	// them.
	ListCheckIns(ctx context.Context, userID string) ([]model.CheckIn, error)
	ListCheckInsForDate(ctx context.Context, userID string, date model.Date) ([]model.CheckIn, error)
}

type StreakRepository interface {
	// SaveHabitStreaks upserts the per-habit streak rows of a user.
	SaveHabitStreaks(ctx context.Context, userID string, streaks []model.HabitStreak) error
	ListHabitStreaks(ctx context.Context, userID string) ([]model.HabitStreak, error)
}

type DailyLogRepository interface {
	UpsertDailyLog(ctx context.Context, l *model.DailyLog) error
	GetDailyLog(ctx context.Context, userID string, date model.Date) (*model.DailyLog, error)
	ListDailyLogs(ctx context.Context, userID string) ([]model.DailyLog, error)
}

// Store is everything a storage backend provides.
type Store interface {
	UserRepository
	HabitRepository
	CheckInRepository
	StreakRepository
	DailyLogRepository

	Ping(ctx context.Context) error
	Close() error
}

// MergeAwards returns the awards not already held, the combined badge list
// and the XP they add. Duplicate IDs within awards count once. Backends call
// it inside their award transaction.
func MergeAwards(held []string, awards []model.BadgeAward) (granted []model.BadgeAward, badges []string, xp int) {
	have := make(map[string]bool, len(held)+len(awards))
	for _, id := range held {
		have[id] = true
	}

	badges = append([]string{}, held...)
	for _, a := range awards {
		if have[a.BadgeID] {
			continue
		}
		have[a.BadgeID] = true
		granted = append(granted, a)
		badges = append(badges, a.BadgeID)
		xp += a.XP
	}
	return granted, badges, xp
}
