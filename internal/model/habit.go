package model

import "time"

// Habit is a daily habit owned by exactly one user. Time is the scheduled
// HH:MM in the app timezone.
type Habit struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Name       string    `json:"name"`
	Why        string    `json:"why"`
	Time       string    `json:"time"`
	Category   string    `json:"category,omitempty"`
	Difficulty string    `json:"difficulty,omitempty"`
	GoalValue  int       `json:"goalValue,omitempty"`
	GoalUnit   string    `json:"goalUnit,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CheckIn records whether a habit was done on a date. There is at most one
// CheckIn per (UserID, HabitID, Date); writes are upserts on that key.
// Mood is 1..5 and TimeSpent is in minutes.
type CheckIn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	HabitID   string    `json:"habitId"`
	Date      Date      `json:"date"`
	Completed bool      `json:"completed"`
	Mood      *int      `json:"mood,omitempty"`
	Note      string    `json:"note,omitempty"`
	TimeSpent *int      `json:"timeSpent,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HabitStreak is the cached per-habit streak row. It is always recomputable
// from the user's check-ins.
type HabitStreak struct {
	UserID            string `json:"userId"`
	HabitID           string `json:"habitId"`
	CurrentStreak     int    `json:"currentStreak"`
	BestStreak        int    `json:"bestStreak"`
	LastCompletedDate *Date  `json:"lastCompletedDate"`
}

// DailyLog holds per-day data that is not tied to a habit.
type DailyLog struct {
	UserID     string    `json:"userId"`
	Date       Date      `json:"date"`
	SleepHours *float64  `json:"sleepHours,omitempty"`
	Reflection string    `json:"reflection,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// BadgeAward is a badge together with the XP it grants.
type BadgeAward struct {
	BadgeID string `json:"badgeId"`
	XP      int    `json:"xp"`
}
