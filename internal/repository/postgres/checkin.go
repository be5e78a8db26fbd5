package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/model"
)

// Dates travel as ISO text in both directions so model.Date owns the
// calendar arithmetic.
const checkInColumns = `id, user_id, habit_id, date::text, completed, mood, note, time_spent, updated_at`

func parseStoredDate(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		return 0
	}
	return d
}

func scanCheckIn(row pgx.Row) (*model.CheckIn, error) {
	var (
		c    model.CheckIn
		date string
	)
	err := row.Scan(&c.ID, &c.UserID, &c.HabitID, &date, &c.Completed, &c.Mood, &c.Note, &c.TimeSpent, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Date = parseStoredDate(date)
	return &c, nil
}

func (db *DB) UpsertCheckIn(ctx context.Context, c *model.CheckIn) error {
	c.UpdatedAt = time.Now().UTC()

	err := db.pool.QueryRow(ctx,
		`INSERT INTO checkins (id, user_id, habit_id, date, completed, mood, note, time_spent, updated_at)
		 VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id, habit_id, date) DO UPDATE SET
			completed  = EXCLUDED.completed,
			mood       = EXCLUDED.mood,
			note       = EXCLUDED.note,
			time_spent = EXCLUDED.time_spent,
			updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		xid.New().String(), c.UserID, c.HabitID, c.Date.String(), c.Completed,
		c.Mood, c.Note, c.TimeSpent, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return apperror.NotFound("habit", c.HabitID)
		}
		return fmt.Errorf("postgres: upserting check-in %s/%s: %w", c.HabitID, c.Date, err)
	}
	return nil
}

func (db *DB) ListCheckIns(ctx context.Context, userID string) ([]model.CheckIn, error) {
	return db.queryCheckIns(ctx,
		`SELECT `+checkInColumns+` FROM checkins WHERE user_id = $1 ORDER BY date, habit_id`, userID)
}

func (db *DB) ListCheckInsForDate(ctx context.Context, userID string, date model.Date) ([]model.CheckIn, error) {
	return db.queryCheckIns(ctx,
		`SELECT `+checkInColumns+` FROM checkins WHERE user_id = $1 AND date = $2::date ORDER BY habit_id`,
		userID, date.String())
}

func (db *DB) queryCheckIns(ctx context.Context, query string, args ...any) ([]model.CheckIn, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing check-ins: %w", err)
	}
	defer rows.Close()

	checkins := []model.CheckIn{}
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning check-in: %w", err)
		}
		checkins = append(checkins, *c)
	}
	return checkins, rows.Err()
}

// SaveHabitStreaks skips rows whose habit no longer exists. A failed
// statement would abort a Postgres transaction, so the filter is in SQL.
func (db *DB) SaveHabitStreaks(ctx context.Context, userID string, streaks []model.HabitStreak) error {
	batch := &pgx.Batch{}
	for _, s := range streaks {
		var last *string
		if s.LastCompletedDate != nil {
			v := s.LastCompletedDate.String()
			last = &v
		}
		batch.Queue(
			`INSERT INTO habit_streaks (user_id, habit_id, current_streak, best_streak, last_completed_date)
			 SELECT $1, h.id, $3, $4, $5::date FROM habits h WHERE h.id = $2 AND h.user_id = $1
			 ON CONFLICT (user_id, habit_id) DO UPDATE SET
				current_streak      = EXCLUDED.current_streak,
				best_streak         = EXCLUDED.best_streak,
				last_completed_date = EXCLUDED.last_completed_date`,
			userID, s.HabitID, s.CurrentStreak, s.BestStreak, last,
		)
	}

	err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("postgres: saving streaks of %s: %w", userID, err)
	}
	return nil
}

func (db *DB) ListHabitStreaks(ctx context.Context, userID string) ([]model.HabitStreak, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT user_id, habit_id, current_streak, best_streak, last_completed_date::text
		 FROM habit_streaks WHERE user_id = $1 ORDER BY habit_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing streaks of %s: %w", userID, err)
	}
	defer rows.Close()

	streaks := []model.HabitStreak{}
	for rows.Next() {
		var (
			s    model.HabitStreak
			last *string
		)
		if err := rows.Scan(&s.UserID, &s.HabitID, &s.CurrentStreak, &s.BestStreak, &last); err != nil {
			return nil, fmt.Errorf("postgres: scanning streak: %w", err)
		}
		if last != nil {
			d := parseStoredDate(*last)
			s.LastCompletedDate = &d
		}
		streaks = append(streaks, s)
	}
	return streaks, rows.Err()
}
