// Package model defines the data structures used throughout the application.
package model

import "time"

// Login methods. A user has exactly one: a Google subject id or a password hash.
const (
	LoginGoogle   = "google"
	LoginPassword = "password"
)

// User represents a registered account.
//
// GoogleID and PasswordHash are mutually exclusive; LoginType says which one
// is set. PasswordHash never leaves the server (json:"-").
//
// CurrentStreak is a denormalized cache of the streak engine's output,
// refreshed on every check-in. Badges and XP only ever grow, and are written
// together in one atomic update (see repository.UserRepository.AwardBadges).
type User struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	LoginType          string    `json:"loginType"`
	GoogleID           string    `json:"-"`
	PasswordHash       string    `json:"-"`
	EmailVerified      bool      `json:"emailVerified"`
	XP                 int       `json:"xp"`
	Badges             []string  `json:"badges"`
	CurrentStreak      int       `json:"currentStreak"`
	DepositPaid        bool      `json:"depositPaid"`
	EmailNotifications bool      `json:"emailNotifications"`
	ReminderTime       string    `json:"reminderTime"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// HasBadge reports whether the user already earned the badge.
func (u *User) HasBadge(id string) bool {
	for _, b := range u.Badges {
		if b == id {
			return true
		}
	}
	return false
}
