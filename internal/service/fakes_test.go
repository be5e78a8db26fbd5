package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sankalp/sankalp/internal/apperror"
	"github.com/sankalp/sankalp/internal/cache"
	"github.com/sankalp/sankalp/internal/model"
	"github.com/sankalp/sankalp/internal/notify"
	"github.com/sankalp/sankalp/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// memStore is an in-memory repository.Store. Setting failErr makes every
// read and write fail, which is how the degraded paths are exercised.
type memStore struct {
	mu       sync.Mutex
	nextID   int
	users    map[string]*model.User
	habits   []model.Habit
	checkins []model.CheckIn
	streaks  map[string]model.HabitStreak
	logs     map[string]model.DailyLog
	failErr  error
}

var _ repository.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[string]*model.User),
		streaks: make(map[string]model.HabitStreak),
		logs:    make(map[string]model.DailyLog),
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return prefix + "-" + strconv.Itoa(m.nextID)
}

func (m *memStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperror.Conflict("user", u.Email)
		}
	}
	u.ID = m.id("user")
	if u.ReminderTime == "" {
		u.ReminderTime = "20:00"
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	cp.Badges = append([]string(nil), u.Badges...)
	return &cp, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *memStore) UpsertGoogleUser(ctx context.Context, u *model.User) (bool, error) {
	m.mu.Lock()
	if m.failErr != nil {
		m.mu.Unlock()
		return false, m.failErr
	}
	for _, existing := range m.users {
		if existing.GoogleID == u.GoogleID {
			existing.Name = u.Name
			*u = *existing
			m.mu.Unlock()
			return false, nil
		}
		if existing.Email == u.Email {
			m.mu.Unlock()
			return false, apperror.Conflict("user", u.Email)
		}
	}
	m.mu.Unlock()
	u.EmailNotifications = true
	return true, m.CreateUser(ctx, u)
}

func (m *memStore) UpdateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	existing, ok := m.users[u.ID]
	if !ok {
		return apperror.NotFound("user", u.ID)
	}
	existing.Name = u.Name
	existing.PasswordHash = u.PasswordHash
	existing.EmailVerified = u.EmailVerified
	existing.DepositPaid = u.DepositPaid
	existing.EmailNotifications = u.EmailNotifications
	existing.ReminderTime = u.ReminderTime
	return nil
}

func (m *memStore) AwardBadges(_ context.Context, userID string, awards []model.BadgeAward) ([]model.BadgeAward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, apperror.NotFound("user", userID)
	}
	granted, badges, xp := repository.MergeAwards(u.Badges, awards)
	u.Badges = badges
	u.XP += xp
	return granted, nil
}

func (m *memStore) SetCurrentStreak(_ context.Context, userID string, streak int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	if u, ok := m.users[userID]; ok {
		u.CurrentStreak = streak
	}
	return nil
}

func (m *memStore) ListReminderRecipients(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	var out []model.User
	for _, u := range m.users {
		if u.EmailVerified && u.EmailNotifications {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListUserIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	var out []string
	for id := range m.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) ListHabits(_ context.Context, userID string) ([]model.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	var out []model.Habit
	for _, h := range m.habits {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memStore) GetHabit(_ context.Context, userID, habitID string) (*model.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	for _, h := range m.habits {
		if h.ID == habitID && h.UserID == userID {
			cp := h
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("habit", habitID)
}

func (m *memStore) ReplaceHabits(_ context.Context, userID string, habits []model.Habit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.dropHabitsLocked(func(h model.Habit) bool { return h.UserID == userID })
	for i := range habits {
		habits[i].ID = m.id("habit")
		habits[i].UserID = userID
		habits[i].CreatedAt = time.Now()
		m.habits = append(m.habits, habits[i])
	}
	return nil
}

func (m *memStore) DeleteHabit(_ context.Context, userID, habitID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	before := len(m.habits)
	m.dropHabitsLocked(func(h model.Habit) bool { return h.UserID == userID && h.ID == habitID })
	if len(m.habits) == before {
		return apperror.NotFound("habit", habitID)
	}
	return nil
}

// dropHabitsLocked removes matching habits and cascades to their rows.
func (m *memStore) dropHabitsLocked(match func(model.Habit) bool) {
	gone := map[string]bool{}
	kept := m.habits[:0]
	for _, h := range m.habits {
		if match(h) {
			gone[h.ID] = true
			continue
		}
		kept = append(kept, h)
	}
	m.habits = kept

	checkins := m.checkins[:0]
	for _, c := range m.checkins {
		if !gone[c.HabitID] {
			checkins = append(checkins, c)
		}
	}
	m.checkins = checkins
	for k, s := range m.streaks {
		if gone[s.HabitID] {
			delete(m.streaks, k)
		}
	}
}

func (m *memStore) UpsertCheckIn(_ context.Context, c *model.CheckIn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	c.UpdatedAt = time.Now()
	for i, existing := range m.checkins {
		if existing.UserID == c.UserID && existing.HabitID == c.HabitID && existing.Date == c.Date {
			c.ID = existing.ID
			m.checkins[i] = *c
			return nil
		}
	}
	c.ID = m.id("checkin")
	m.checkins = append(m.checkins, *c)
	return nil
}

func (m *memStore) ListCheckIns(_ context.Context, userID string) ([]model.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	var out []model.CheckIn
	for _, c := range m.checkins {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ListCheckInsForDate(_ context.Context, userID string, date model.Date) ([]model.CheckIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	out := []model.CheckIn{}
	for _, c := range m.checkins {
		if c.UserID == userID && c.Date == date {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) SaveHabitStreaks(_ context.Context, userID string, streaks []model.HabitStreak) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	for _, s := range streaks {
		m.streaks[userID+"/"+s.HabitID] = s
	}
	return nil
}

func (m *memStore) ListHabitStreaks(_ context.Context, userID string) ([]model.HabitStreak, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	var out []model.HabitStreak
	for _, s := range m.streaks {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) UpsertDailyLog(_ context.Context, l *model.DailyLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	l.UpdatedAt = time.Now()
	m.logs[l.UserID+"/"+l.Date.String()] = *l
	return nil
}

func (m *memStore) GetDailyLog(_ context.Context, userID string, date model.Date) (*model.DailyLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	l, ok := m.logs[userID+"/"+date.String()]
	if !ok {
		return nil, apperror.NotFound("daily log", date.String())
	}
	return &l, nil
}

func (m *memStore) ListDailyLogs(_ context.Context, userID string) ([]model.DailyLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	var out []model.DailyLog
	for _, l := range m.logs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) Ping(context.Context) error { return m.failErr }
func (m *memStore) Close() error               { return nil }

// addUser stores a verified password user directly.
func (m *memStore) addUser(t *testing.T, name, email string) *model.User {
	t.Helper()
	u := &model.User{
		Name:               name,
		Email:              email,
		LoginType:          model.LoginPassword,
		PasswordHash:       "x",
		EmailVerified:      true,
		EmailNotifications: true,
	}
	if err := m.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("addUser: %v", err)
	}
	return u
}

// addHabits replaces the user's habits with the given names, all scheduled
// at at.
func (m *memStore) addHabits(t *testing.T, userID, at string, names ...string) []model.Habit {
	t.Helper()
	habits := make([]model.Habit, 0, len(names))
	for _, n := range names {
		habits = append(habits, model.Habit{Name: n, Time: at})
	}
	if err := m.ReplaceHabits(context.Background(), userID, habits); err != nil {
		t.Fatalf("addHabits: %v", err)
	}
	return habits
}

// complete marks every habit done on each of the given dates.
func (m *memStore) complete(t *testing.T, userID string, habits []model.Habit, dates ...model.Date) {
	t.Helper()
	for _, d := range dates {
		for _, h := range habits {
			c := &model.CheckIn{UserID: userID, HabitID: h.ID, Date: d, Completed: true}
			if err := m.UpsertCheckIn(context.Background(), c); err != nil {
				t.Fatalf("complete: %v", err)
			}
		}
	}
}

// recordingPublisher captures handed-off messages.
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg notify.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) byKind(kind notify.Kind) []notify.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []notify.Message
	for _, m := range p.msgs {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedCalendar pins "now" to 2024-03-15 (a Friday) at hour:minute UTC.
func fixedCalendar(hour, minute int) Calendar {
	now := time.Date(2024, time.March, 15, hour, minute, 0, 0, time.UTC)
	return Calendar{Now: func() time.Time { return now }, Location: time.UTC}
}

var testToday = model.NewDate(2024, time.March, 15)

func newTestCache(t *testing.T) cache.Store {
	t.Helper()
	c := cache.NewMemory(time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
