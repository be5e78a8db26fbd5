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

const habitColumns = `id, user_id, name, why, time, category, difficulty, goal_value, goal_unit, created_at`

func scanHabit(row pgx.Row) (*model.Habit, error) {
	var h model.Habit
	err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Why, &h.Time, &h.Category,
		&h.Difficulty, &h.GoalValue, &h.GoalUnit, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (db *DB) ListHabits(ctx context.Context, userID string) ([]model.Habit, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE user_id = $1 ORDER BY position, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing habits of %s: %w", userID, err)
	}
	defer rows.Close()

	habits := []model.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning habit: %w", err)
		}
		habits = append(habits, *h)
	}
	return habits, rows.Err()
}

func (db *DB) GetHabit(ctx context.Context, userID, habitID string) (*model.Habit, error) {
	h, err := scanHabit(db.pool.QueryRow(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE id = $1 AND user_id = $2`, habitID, userID))
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("habit", habitID)
		}
		return nil, fmt.Errorf("postgres: getting habit %s: %w", habitID, err)
	}
	return h, nil
}

func (db *DB) ReplaceHabits(ctx context.Context, userID string, habits []model.Habit) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: beginning habit replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM habits WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("postgres: deleting habits of %s: %w", userID, err)
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for i := range habits {
		h := &habits[i]
		h.ID = xid.New().String()
		h.UserID = userID
		h.CreatedAt = now
		batch.Queue(
			`INSERT INTO habits (id, user_id, name, why, time, category, difficulty, goal_value, goal_unit, position, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			h.ID, h.UserID, h.Name, h.Why, h.Time, h.Category, h.Difficulty, h.GoalValue, h.GoalUnit, i, h.CreatedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: inserting habits: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: committing habit replace: %w", err)
	}
	return nil
}

func (db *DB) DeleteHabit(ctx context.Context, userID, habitID string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM habits WHERE id = $1 AND user_id = $2`, habitID, userID)
	if err != nil {
		return fmt.Errorf("postgres: deleting habit %s: %w", habitID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("habit", habitID)
	}
	return nil
}
