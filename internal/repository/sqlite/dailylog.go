package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/model"
)

func scanDailyLog(s rowScanner) (*model.DailyLog, error) {
	var (
		l     model.DailyLog
		date  string
		sleep sql.NullFloat64
	)
	if err := s.Scan(&l.UserID, &date, &sleep, &l.Reflection, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Date = parseStoredDate(date)
	if sleep.Valid {
		v := sleep.Float64
		l.SleepHours = &v
	}
	return &l, nil
}

func (db *DB) UpsertDailyLog(ctx context.Context, l *model.DailyLog) error {
	l.UpdatedAt = time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO daily_logs (user_id, date, sleep_hours, reflection, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, date) DO UPDATE SET
			sleep_hours = excluded.sleep_hours,
			reflection  = excluded.reflection,
			updated_at  = excluded.updated_at`,
		l.UserID, l.Date.String(), l.SleepHours, l.Reflection, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting daily log %s: %w", l.Date, err)
	}
	return nil
}

func (db *DB) GetDailyLog(ctx context.Context, userID string, date model.Date) (*model.DailyLog, error) {
	l, err := scanDailyLog(db.conn.QueryRowContext(ctx,
		`SELECT user_id, date, sleep_hours, reflection, updated_at
		 FROM daily_logs WHERE user_id = ? AND date = ?`, userID, date.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("daily log", date.String())
		}
		return nil, fmt.Errorf("sqlite: getting daily log %s: %w", date, err)
	}
	return l, nil
}

func (db *DB) ListDailyLogs(ctx context.Context, userID string) ([]model.DailyLog, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, date, sleep_hours, reflection, updated_at
		 FROM daily_logs WHERE user_id = ? ORDER BY date`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing daily logs of %s: %w", userID, err)
	}
	defer rows.Close()

	logs := []model.DailyLog{}
	for rows.Next() {
		l, err := scanDailyLog(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning daily log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}
