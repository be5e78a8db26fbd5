package service

import (
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sankalp/sankalp/internal/apperror"
)

const (
	maxNameLen       = 100
	maxWhyLen        = 500
	maxNoteLen       = 1000
	maxReflectionLen = 2000
	maxHabits        = 20

	// DefaultHabitTime is used when a habit is submitted without a time.
	DefaultHabitTime = "09:00"
)

func checkLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min {
		if min == 1 {
			return apperror.ValidationFailed(field, field+" is required")
		}
		return apperror.ValidationFailed(field, field+" is too short")
	}
	if n > max {
		return apperror.ValidationFailed(field, field+" must be at most "+strconv.Itoa(max)+" characters")
	}
	return nil
}

// normalizeEmail lower-cases and validates an address.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "a valid email address is required")
	}
	return email, nil
}

// checkClock validates an "HH:MM" time of day.
func checkClock(field, value string) error {
	if len(value) != 5 {
		return apperror.ValidationFailed(field, field+" must be HH:MM")
	}
	if _, err := time.Parse("15:04", value); err != nil {
		return apperror.ValidationFailed(field, field+" must be HH:MM")
	}
	return nil
}

// clockMinutes converts a validated "HH:MM" to minutes after midnight.
func clockMinutes(value string) int {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0
	}
	return t.Hour()*60 + t.Minute()
}
