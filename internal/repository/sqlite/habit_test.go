package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/model"
)

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return d
}

func intPtr(v int) *int { return &v }

func seedHabits(t *testing.T, db *DB, userID string, names ...string) []model.Habit {
	t.Helper()
	habits := make([]model.Habit, len(names))
	for i, n := range names {
		habits[i] = model.Habit{Name: n, Time: "09:00"}
	}
	require.NoError(t, db.ReplaceHabits(context.Background(), userID, habits))
	return habits
}

func TestReplaceHabits_KeepsOrderAndCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "h@example.com")

	old := seedHabits(t, db, u.ID, "Read", "Walk")
	require.NoError(t, db.UpsertCheckIn(ctx, &model.CheckIn{
		UserID: u.ID, HabitID: old[0].ID, Date: mustDate(t, "2024-03-01"), Completed: true,
	}))
	require.NoError(t, db.SaveHabitStreaks(ctx, u.ID, []model.HabitStreak{{HabitID: old[0].ID, CurrentStreak: 1, BestStreak: 1}}))

	fresh := seedHabits(t, db, u.ID, "Yoga", "Journal", "Sleep early")

	habits, err := db.ListHabits(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, habits, 3)
	assert.Equal(t, []string{"Yoga", "Journal", "Sleep early"}, []string{habits[0].Name, habits[1].Name, habits[2].Name})
	assert.Equal(t, fresh[0].ID, habits[0].ID)

	checkins, err := db.ListCheckIns(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, checkins, "replacing habits deletes their check-ins")

	streaks, err := db.ListHabitStreaks(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, streaks)
}

func TestGetAndDeleteHabit_ScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")
	h := seedHabits(t, db, owner.ID, "Read")[0]

	_, err := db.GetHabit(ctx, other.ID, h.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, db.DeleteHabit(ctx, other.ID, h.ID), apperror.ErrNotFound)

	got, err := db.GetHabit(ctx, owner.ID, h.ID)
	require.NoError(t, err)
	assert.Equal(t, "Read", got.Name)

	require.NoError(t, db.DeleteHabit(ctx, owner.ID, h.ID))
	_, err = db.GetHabit(ctx, owner.ID, h.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// CHECK-INS
// =========================================================================

func TestUpsertCheckIn_UpdatesInPlace(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "c@example.com")
	h := seedHabits(t, db, u.ID, "Read")[0]
	day := mustDate(t, "2024-03-10")

	first := &model.CheckIn{UserID: u.ID, HabitID: h.ID, Date: day, Completed: true, Mood: intPtr(4), Note: "good"}
	require.NoError(t, db.UpsertCheckIn(ctx, first))
	require.NotEmpty(t, first.ID)

	second := &model.CheckIn{UserID: u.ID, HabitID: h.ID, Date: day, Completed: false, TimeSpent: intPtr(15)}
	require.NoError(t, db.UpsertCheckIn(ctx, second))
	assert.Equal(t, first.ID, second.ID, "the triple keeps its row")

	list, err := db.ListCheckInsForDate(ctx, u.ID, day)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Completed)
	assert.Nil(t, list[0].Mood)
	assert.Equal(t, 15, *list[0].TimeSpent)
	assert.Equal(t, day, list[0].Date)
}

func TestUpsertCheckIn_UnknownHabit(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "x@example.com")

	err := db.UpsertCheckIn(context.Background(), &model.CheckIn{
		UserID: u.ID, HabitID: "nope", Date: mustDate(t, "2024-01-01"), Completed: true,
	})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListCheckIns_MalformedDateComesBackZero(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "m@example.com")
	h := seedHabits(t, db, u.ID, "Read")[0]

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO checkins (id, user_id, habit_id, date, completed) VALUES ('bad', ?, ?, '2024-13-45', 1)`,
		u.ID, h.ID)
	require.NoError(t, err)

	list, err := db.ListCheckIns(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.Date(0), list[0].Date)
}

// Many goroutines upserting the same triple must leave exactly one row.
func TestUpsertCheckIn_ConcurrentSameTriple(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "concurrent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	u := createTestUser(t, db, "conc@example.com")
	h := seedHabits(t, db, u.ID, "Read")[0]
	day := mustDate(t, "2024-05-05")

	var (
		wg       sync.WaitGroup
		failures atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := &model.CheckIn{UserID: u.ID, HabitID: h.ID, Date: day, Completed: i%2 == 0, Note: fmt.Sprint(i)}
			if err := db.UpsertCheckIn(ctx, c); err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	list, err := db.ListCheckIns(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// =========================================================================
// STREAK ROWS / DAILY LOGS
// =========================================================================

func TestSaveHabitStreaks_Upserts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "s@example.com")
	h := seedHabits(t, db, u.ID, "Read")[0]
	last := mustDate(t, "2024-03-03")

	require.NoError(t, db.SaveHabitStreaks(ctx, u.ID, []model.HabitStreak{{HabitID: h.ID, CurrentStreak: 2, BestStreak: 5, LastCompletedDate: &last}}))
	require.NoError(t, db.SaveHabitStreaks(ctx, u.ID, []model.HabitStreak{
		{HabitID: h.ID, CurrentStreak: 3, BestStreak: 5, LastCompletedDate: &last},
		{HabitID: "deleted-meanwhile", CurrentStreak: 1},
	}))

	streaks, err := db.ListHabitStreaks(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, streaks, 1)
	assert.Equal(t, 3, streaks[0].CurrentStreak)
	assert.Equal(t, 5, streaks[0].BestStreak)
	assert.Equal(t, last, *streaks[0].LastCompletedDate)
}

func TestDailyLogs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "d@example.com")
	day := mustDate(t, "2024-02-29")
	sleep := 7.5

	require.NoError(t, db.UpsertDailyLog(ctx, &model.DailyLog{UserID: u.ID, Date: day, SleepHours: &sleep, Reflection: "calm"}))
	require.NoError(t, db.UpsertDailyLog(ctx, &model.DailyLog{UserID: u.ID, Date: day, Reflection: "calm, then busy"}))

	got, err := db.GetDailyLog(ctx, u.ID, day)
	require.NoError(t, err)
	assert.Nil(t, got.SleepHours)
	assert.Equal(t, "calm, then busy", got.Reflection)

	_, err = db.GetDailyLog(ctx, u.ID, day.AddDays(1))
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	logs, err := db.ListDailyLogs(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
