package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/model"
)

const dailyLogColumns = `user_id, date::text, sleep_hours, reflection, updated_at`

func scanDailyLog(row pgx.Row) (*model.DailyLog, error) {
	var (
		l    model.DailyLog
		date string
	)
	if err := row.Scan(&l.UserID, &date, &l.SleepHours, &l.Reflection, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Date = parseStoredDate(date)
	return &l, nil
}

func (db *DB) UpsertDailyLog(ctx context.Context, l *model.DailyLog) error {
	l.UpdatedAt = time.Now().UTC()
	_, err := db.pool.Exec(ctx,
		`INSERT INTO daily_logs (user_id, date, sleep_hours, reflection, updated_at)
		 VALUES ($1, $2::date, $3, $4, $5)
		 ON CONFLICT (user_id, date) DO UPDATE SET
			sleep_hours = EXCLUDED.sleep_hours,
			reflection  = EXCLUDED.reflection,
			updated_at  = EXCLUDED.updated_at`,
		l.UserID, l.Date.String(), l.SleepHours, l.Reflection, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upserting daily log %s: %w", l.Date, err)
	}
	return nil
}

func (db *DB) GetDailyLog(ctx context.Context, userID string, date model.Date) (*model.DailyLog, error) {
	l, err := scanDailyLog(db.pool.QueryRow(ctx,
		`SELECT `+dailyLogColumns+` FROM daily_logs WHERE user_id = $1 AND date = $2::date`,
		userID, date.String()))
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("daily log", date.String())
		}
		return nil, fmt.Errorf("postgres: getting daily log %s: %w", date, err)
	}
	return l, nil
}

func (db *DB) ListDailyLogs(ctx context.Context, userID string) ([]model.DailyLog, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+dailyLogColumns+` FROM daily_logs WHERE user_id = $1 ORDER BY date`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing daily logs of %s: %w", userID, err)
	}
	defer rows.Close()

	logs := []model.DailyLog{}
	for rows.Next() {
		l, err := scanDailyLog(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning daily log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}
