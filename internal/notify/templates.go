package notify

import (
	"fmt"
	"strings"
	"time"
)

// OTPEmail builds the verification-code mail sent at registration and on
// "resend code".
func OTPEmail(to, code string, ttl time.Duration) Message {
	body := fmt.Sprintf(
		"Your Sankalp verification code is %s.\n\nIt expires in %d minutes and can be used once.\nIf you did not request it, ignore this email.\n",
		code, int(ttl.Minutes()),
	)
	return NewMessage(KindOTP, to, "Your Sankalp verification code", body)
}

// WelcomeEmail is sent once after a new account is created.
func WelcomeEmail(to, name string) Message {
	body := fmt.Sprintf(
		"Namaste %s,\n\nWelcome to Sankalp. Pick up to 20 habits, check in every day and watch your streak grow.\nYour first milestone is a 3-day streak.\n",
		greetingName(name),
	)
	return NewMessage(KindWelcome, to, "Welcome to Sankalp", body)
}

// ReminderEmail nudges a user about habits still open today.
func ReminderEmail(to, name string, habits []string, currentStreak int) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", greetingName(name))
	b.WriteString("These habits are still waiting for today:\n")
	for _, h := range habits {
		fmt.Fprintf(&b, "  - %s\n", h)
	}
	if currentStreak > 0 {
		fmt.Fprintf(&b, "\nYou are on a %d-day streak. Keep it alive!\n", currentStreak)
	}

	subject := "Time for your habits"
	if currentStreak > 0 {
		subject = fmt.Sprintf("Don't break your %d-day streak", currentStreak)
	}
	return NewMessage(KindReminder, to, subject, b.String())
}

func greetingName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return "there"
	}
	return name
}
