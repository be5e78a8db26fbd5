package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/model"
)

const checkInColumns = `id, user_id, habit_id, date, completed, mood, note, time_spent, updated_at`

// parseStoredDate turns a stored date into a model.Date. Unparseable text
// maps to the zero Date (1970-01-01), which the streak engine excludes.
func parseStoredDate(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		return 0
	}
	return d
}

func scanCheckIn(s rowScanner) (*model.CheckIn, error) {
	var (
		c         model.CheckIn
		date      string
		mood      sql.NullInt64
		timeSpent sql.NullInt64
	)
	err := s.Scan(&c.ID, &c.UserID, &c.HabitID, &date, &c.Completed, &mood, &c.Note, &timeSpent, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Date = parseStoredDate(date)
	if mood.Valid {
		v := int(mood.Int64)
		c.Mood = &v
	}
	if timeSpent.Valid {
		v := int(timeSpent.Int64)
		c.TimeSpent = &v
	}
	return &c, nil
}

// UpsertCheckIn relies on UNIQUE(user_id, habit_id, date): concurrent
// writers for the same triple end with one row holding the last write.
func (db *DB) UpsertCheckIn(ctx context.Context, c *model.CheckIn) error {
	c.UpdatedAt = time.Now().UTC()

	var id string
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO checkins (id, user_id, habit_id, date, completed, mood, note, time_spent, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, habit_id, date) DO UPDATE SET
			completed  = excluded.completed,
			mood       = excluded.mood,
			note       = excluded.note,
			time_spent = excluded.time_spent,
			updated_at = excluded.updated_at
		 RETURNING id`,
		xid.New().String(), c.UserID, c.HabitID, c.Date.String(), c.Completed,
		c.Mood, c.Note, c.TimeSpent, c.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("habit", c.HabitID)
		}
		return fmt.Errorf("sqlite: upserting check-in %s/%s: %w", c.HabitID, c.Date, err)
	}
	c.ID = id
	return nil
}

func (db *DB) ListCheckIns(ctx context.Context, userID string) ([]model.CheckIn, error) {
	return db.queryCheckIns(ctx,
		`SELECT `+checkInColumns+` FROM checkins WHERE user_id = ? ORDER BY date, habit_id`, userID)
}

func (db *DB) ListCheckInsForDate(ctx context.Context, userID string, date model.Date) ([]model.CheckIn, error) {
	return db.queryCheckIns(ctx,
		`SELECT `+checkInColumns+` FROM checkins WHERE user_id = ? AND date = ? ORDER BY habit_id`,
		userID, date.String())
}

func (db *DB) queryCheckIns(ctx context.Context, query string, args ...any) ([]model.CheckIn, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing check-ins: %w", err)
	}
	defer rows.Close()

	checkins := []model.CheckIn{}
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning check-in: %w", err)
		}
		checkins = append(checkins, *c)
	}
	return checkins, rows.Err()
}

func (db *DB) SaveHabitStreaks(ctx context.Context, userID string, streaks []model.HabitStreak) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning streak save: %w", err)
	}
	defer tx.Rollback()

	for _, s := range streaks {
		var last sql.NullString
		if s.LastCompletedDate != nil {
			last = sql.NullString{String: s.LastCompletedDate.String(), Valid: true}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO habit_streaks (user_id, habit_id, current_streak, best_streak, last_completed_date)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, habit_id) DO UPDATE SET
				current_streak      = excluded.current_streak,
				best_streak         = excluded.best_streak,
				last_completed_date = excluded.last_completed_date`,
			userID, s.HabitID, s.CurrentStreak, s.BestStreak, last,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				// The habit was replaced or deleted meanwhile; its row is moot.
				continue
			}
			return fmt.Errorf("sqlite: saving streak of habit %s: %w", s.HabitID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing streak save: %w", err)
	}
	return nil
}

func (db *DB) ListHabitStreaks(ctx context.Context, userID string) ([]model.HabitStreak, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, habit_id, current_streak, best_streak, last_completed_date
		 FROM habit_streaks WHERE user_id = ? ORDER BY habit_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing streaks of %s: %w", userID, err)
	}
	defer rows.Close()

	streaks := []model.HabitStreak{}
	for rows.Next() {
		var (
			s    model.HabitStreak
			last sql.NullString
		)
		if err := rows.Scan(&s.UserID, &s.HabitID, &s.CurrentStreak, &s.BestStreak, &last); err != nil {
			return nil, fmt.Errorf("sqlite: scanning streak: %w", err)
		}
		if last.Valid {
			d := parseStoredDate(last.String)
			s.LastCompletedDate = &d
		}
		streaks = append(streaks, s)
	}
	return streaks, rows.Err()
}
