package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/model"
)

const habitColumns = `id, user_id, name, why, time, category, difficulty, goal_value, goal_unit, created_at`

func scanHabit(s rowScanner) (*model.Habit, error) {
	var h model.Habit
	err := s.Scan(&h.ID, &h.UserID, &h.Name, &h.Why, &h.Time, &h.Category,
		&h.Difficulty, &h.GoalValue, &h.GoalUnit, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (db *DB) ListHabits(ctx context.Context, userID string) ([]model.Habit, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE user_id = ? ORDER BY position, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing habits of %s: %w", userID, err)
	}
	defer rows.Close()

	habits := []model.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning habit: %w", err)
		}
		habits = append(habits, *h)
	}
	return habits, rows.Err()
}

func (db *DB) GetHabit(ctx context.Context, userID, habitID string) (*model.Habit, error) {
	h, err := scanHabit(db.conn.QueryRowContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE id = ? AND user_id = ?`, habitID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("habit", habitID)
		}
		return nil, fmt.Errorf("sqlite: getting habit %s: %w", habitID, err)
	}
	return h, nil
}

// ReplaceHabits runs the delete and inserts in one transaction so a failed
// insert leaves the old habit list intact.
func (db *DB) ReplaceHabits(ctx context.Context, userID string, habits []model.Habit) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning habit replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM habits WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("sqlite: deleting habits of %s: %w", userID, err)
	}

	now := time.Now().UTC()
	for i := range habits {
		h := &habits[i]
		h.ID = xid.New().String()
		h.UserID = userID
		h.CreatedAt = now

		_, err := tx.ExecContext(ctx,
			`INSERT INTO habits (id, user_id, name, why, time, category, difficulty, goal_value, goal_unit, position, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			h.ID, h.UserID, h.Name, h.Why, h.Time, h.Category, h.Difficulty, h.GoalValue, h.GoalUnit, i, h.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting habit %q: %w", h.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing habit replace: %w", err)
	}
	return nil
}

func (db *DB) DeleteHabit(ctx context.Context, userID, habitID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM habits WHERE id = ? AND user_id = ?`, habitID, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting habit %s: %w", habitID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("habit", habitID)
	}
	return nil
}
