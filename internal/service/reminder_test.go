package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sankalp/sankalp/internal/notify"
)

func TestReminder_RunOnce(t *testing.T) {
	store := newMemStore()
	asha := store.addUser(t, "Asha", "asha@example.com")
	ashaHabits := store.addHabits(t, asha.ID, "07:00", "Run", "Read")
	store.complete(t, asha.ID, ashaHabits, testToday.AddDays(-1))
	store.complete(t, asha.ID, ashaHabits[:1], testToday)

	// Not due until 21:30.
	late := store.addUser(t, "Ravi", "ravi@example.com")
	store.addHabits(t, late.ID, "21:00", "Stretch")

	// Finished everything today.
	done := store.addUser(t, "Mira", "mira@example.com")
	doneHabits := store.addHabits(t, done.ID, "07:00", "Walk")
	store.complete(t, done.ID, doneHabits, testToday)

	// Opted out.
	quiet := store.addUser(t, "Dev", "dev@example.com")
	store.addHabits(t, quiet.ID, "07:00", "Journal")
	quiet.EmailNotifications = false
	require.NoError(t, store.UpdateUser(context.Background(), quiet))

	mail := &recordingPublisher{}
	svc := NewReminderService(store, newTestCache(t), mail, fixedCalendar(19, 0), discardLogger())

	n, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msgs := mail.byKind(notify.KindReminder)
	require.Len(t, msgs, 1)
	assert.Equal(t, "asha@example.com", msgs[0].To)
	assert.Equal(t, "Don't break your 1-day streak", msgs[0].Subject)
	assert.Contains(t, msgs[0].Body, "Read")
	assert.NotContains(t, msgs[0].Body, "Run")
}

func TestReminder_DueExactlyThirtyMinutesAfter(t *testing.T) {
	store := newMemStore()
	u := store.addUser(t, "Asha", "asha@example.com")
	store.addHabits(t, u.ID, "18:30", "Run")

	before := NewReminderService(store, newTestCache(t), &recordingPublisher{}, fixedCalendar(18, 59), discardLogger())
	n, err := before.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	mail := &recordingPublisher{}
	at := NewReminderService(store, newTestCache(t), mail, fixedCalendar(19, 0), discardLogger())
	n, err = at.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Time for your habits", mail.msgs[0].Subject)
}

func TestReminder_OncePerDay(t *testing.T) {
	store := newMemStore()
	u := store.addUser(t, "Asha", "asha@example.com")
	store.addHabits(t, u.ID, "07:00", "Run")

	mail := &recordingPublisher{}
	svc := NewReminderService(store, newTestCache(t), mail, fixedCalendar(19, 0), discardLogger())

	for i := 0; i < 3; i++ {
		_, err := svc.RunOnce(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, mail.byKind(notify.KindReminder), 1)
}

func TestReminder_FailedHandOffIsRetried(t *testing.T) {
	store := newMemStore()
	u := store.addUser(t, "Asha", "asha@example.com")
	store.addHabits(t, u.ID, "07:00", "Run")

	mail := &recordingPublisher{err: errors.New("broker unavailable")}
	svc := NewReminderService(store, newTestCache(t), mail, fixedCalendar(19, 0), discardLogger())

	n, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	mail.err = nil
	n, err = svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReminder_StorageFailure(t *testing.T) {
	store := newMemStore()
	store.failErr = errors.New("connection refused")

	svc := NewReminderService(store, newTestCache(t), &recordingPublisher{}, fixedCalendar(19, 0), discardLogger())
	_, err := svc.RunOnce(context.Background())
	assert.Error(t, err)
}
