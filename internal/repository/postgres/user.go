package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/model"
	"github.com/sankalp/sankalp/internal/repository"
)

const userColumns = `id, name, email, login_type, COALESCE(google_id, ''), password_hash, email_verified,
	xp, badges, current_streak, deposit_paid, email_notifications, reminder_time,
	created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.LoginType, &u.GoogleID, &u.PasswordHash, &u.EmailVerified,
		&u.XP, &u.Badges, &u.CurrentStreak, &u.DepositPaid, &u.EmailNotifications, &u.ReminderTime,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if u.Badges == nil {
		u.Badges = []string{}
	}
	return &u, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (db *DB) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	u.ID = xid.New().String()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Badges == nil {
		u.Badges = []string{}
	}
	if u.ReminderTime == "" {
		u.ReminderTime = "20:00"
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, login_type, google_id, password_hash, email_verified,
			xp, badges, current_streak, deposit_paid, email_notifications, reminder_time, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		u.ID, u.Name, u.Email, u.LoginType, nullIfEmpty(u.GoogleID), u.PasswordHash, u.EmailVerified,
		u.XP, u.Badges, u.CurrentStreak, u.DepositPaid, u.EmailNotifications, u.ReminderTime,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return apperror.Conflict("user", u.Email)
		}
		return fmt.Errorf("postgres: inserting user %s: %w", u.Email, err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(db.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("postgres: getting user by email: %w", err)
	}
	return u, nil
}

func (db *DB) UpsertGoogleUser(ctx context.Context, u *model.User) (bool, error) {
	existing, err := scanUser(db.pool.QueryRow(ctx,
		`UPDATE users SET name = $2, updated_at = now() WHERE google_id = $1
		 RETURNING `+userColumns, u.GoogleID, u.Name))
	switch {
	case err == nil:
		*u = *existing
		return false, nil
	case !isNoRows(err):
		return false, fmt.Errorf("postgres: refreshing google user: %w", err)
	}

	u.LoginType = model.LoginGoogle
	u.EmailVerified = true
	u.EmailNotifications = true
	if err := db.CreateUser(ctx, u); err != nil {
		return false, err
	}
	return true, nil
}

func (db *DB) UpdateUser(ctx context.Context, u *model.User) error {
	u.UpdatedAt = time.Now().UTC()
	tag, err := db.pool.Exec(ctx,
		`UPDATE users SET name = $2, password_hash = $3, email_verified = $4, deposit_paid = $5,
		        email_notifications = $6, reminder_time = $7, updated_at = $8
		 WHERE id = $1`,
		u.ID, u.Name, u.PasswordHash, u.EmailVerified, u.DepositPaid,
		u.EmailNotifications, u.ReminderTime, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: updating user %s: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", u.ID)
	}
	return nil
}

// AwardBadges locks the user row with SELECT ... FOR UPDATE so concurrent
// check-ins cannot both grant the same badge.
func (db *DB) AwardBadges(ctx context.Context, userID string, awards []model.BadgeAward) ([]model.BadgeAward, error) {
	if len(awards) == 0 {
		return nil, nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: beginning award tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		held []string
		xp   int
	)
	err = tx.QueryRow(ctx, `SELECT badges, xp FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&held, &xp)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("user", userID)
		}
		return nil, fmt.Errorf("postgres: reading badges of %s: %w", userID, err)
	}

	granted, badges, gained := repository.MergeAwards(held, awards)
	if len(granted) == 0 {
		return nil, nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET badges = $2, xp = $3, updated_at = now() WHERE id = $1`,
		userID, badges, xp+gained)
	if err != nil {
		return nil, fmt.Errorf("postgres: writing badges of %s: %w", userID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: committing award tx: %w", err)
	}
	return granted, nil
}

func (db *DB) SetCurrentStreak(ctx context.Context, userID string, streak int) error {
	_, err := db.pool.Exec(ctx, `UPDATE users SET current_streak = $2 WHERE id = $1`, userID, streak)
	if err != nil {
		return fmt.Errorf("postgres: setting streak of %s: %w", userID, err)
	}
	return nil
}

func (db *DB) ListReminderRecipients(ctx context.Context) ([]model.User, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE email_notifications AND email_verified
		 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing reminder recipients: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (db *DB) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := db.pool.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: scanning user ids: %w", err)
	}
	return ids, nil
}
