package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/model"
	"github.com/sankalp/sankalp/internal/repository"
)

const userColumns = `id, name, email, login_type, google_id, password_hash, email_verified,
	xp, badges, current_streak, deposit_paid, email_notifications, reminder_time,
	created_at, updated_at`

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u        model.User
		googleID sql.NullString
		badges   string
	)
	err := s.Scan(
		&u.ID, &u.Name, &u.Email, &u.LoginType, &googleID, &u.PasswordHash, &u.EmailVerified,
		&u.XP, &badges, &u.CurrentStreak, &u.DepositPaid, &u.EmailNotifications, &u.ReminderTime,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.GoogleID = googleID.String
	if err := json.Unmarshal([]byte(badges), &u.Badges); err != nil {
		return nil, fmt.Errorf("decoding badges of user %s: %w", u.ID, err)
	}
	if u.Badges == nil {
		u.Badges = []string{}
	}
	return &u, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
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

	badges, err := json.Marshal(u.Badges)
	if err != nil {
		return fmt.Errorf("sqlite: encoding badges: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.LoginType, nullIfEmpty(u.GoogleID), u.PasswordHash, u.EmailVerified,
		u.XP, string(badges), u.CurrentStreak, u.DepositPaid, u.EmailNotifications, u.ReminderTime,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", u.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", u.Email, err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

func (db *DB) UpsertGoogleUser(ctx context.Context, u *model.User) (bool, error) {
	existing, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE google_id = ?`, u.GoogleID))
	switch {
	case err == nil:
		existing.Name = u.Name
		existing.UpdatedAt = time.Now().UTC()
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET name = ?, updated_at = ? WHERE id = ?`,
			existing.Name, existing.UpdatedAt, existing.ID)
		if err != nil {
			return false, fmt.Errorf("sqlite: refreshing google user %s: %w", existing.ID, err)
		}
		*u = *existing
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("sqlite: looking up google user: %w", err)
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
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, password_hash = ?, email_verified = ?, deposit_paid = ?,
		        email_notifications = ?, reminder_time = ?, updated_at = ?
		 WHERE id = ?`,
		u.Name, u.PasswordHash, u.EmailVerified, u.DepositPaid,
		u.EmailNotifications, u.ReminderTime, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", u.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("user", u.ID)
	}
	return nil
}

// AwardBadges reads and rewrites badges and xp inside one transaction. With
// a single pooled connection no other writer can interleave.
func (db *DB) AwardBadges(ctx context.Context, userID string, awards []model.BadgeAward) ([]model.BadgeAward, error) {
	if len(awards) == 0 {
		return nil, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning award tx: %w", err)
	}
	defer tx.Rollback()

	var (
		raw string
		xp  int
	)
	err = tx.QueryRowContext(ctx, `SELECT badges, xp FROM users WHERE id = ?`, userID).Scan(&raw, &xp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", userID)
		}
		return nil, fmt.Errorf("sqlite: reading badges of %s: %w", userID, err)
	}

	var held []string
	if err := json.Unmarshal([]byte(raw), &held); err != nil {
		return nil, fmt.Errorf("sqlite: decoding badges of %s: %w", userID, err)
	}

	granted, badges, gained := repository.MergeAwards(held, awards)
	if len(granted) == 0 {
		return nil, nil
	}

	encoded, err := json.Marshal(badges)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encoding badges: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE users SET badges = ?, xp = ?, updated_at = ? WHERE id = ?`,
		string(encoded), xp+gained, time.Now().UTC(), userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: writing badges of %s: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing award tx: %w", err)
	}
	return granted, nil
}

func (db *DB) SetCurrentStreak(ctx context.Context, userID string, streak int) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE users SET current_streak = ? WHERE id = ?`, streak, userID)
	if err != nil {
		return fmt.Errorf("sqlite: setting streak of %s: %w", userID, err)
	}
	return nil
}

func (db *DB) ListReminderRecipients(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE email_notifications = 1 AND email_verified = 1
		 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reminder recipients: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (db *DB) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
