// Package service holds the business rules of Sankalp. Handlers call
// services; services call repositories and the streak engine and never
// touch HTTP.
//
//	Handler (HTTP) → Service (rules, validation) → Repository (storage)
//	                        ↘ streak.Snapshot (pure computation)
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sankalp/sankalp/internal/cache"
	"github.com/sankalp/sankalp/internal/model"
	"github.com/sankalp/sankalp/internal/repository"
	"github.com/sankalp/sankalp/internal/streak"
)

// Calendar decides what "now" and "today" are for every service. Tests pin
// Now to a fixed instant.
type Calendar struct {
	Now      func() time.Time
	Location *time.Location
}

// DefaultCalendar uses the wall clock in loc (UTC when nil).
func DefaultCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Now: time.Now, Location: loc}
}

// Local returns the current instant in the app timezone.
func (c Calendar) Local() time.Time {
	return c.Now().In(c.Location)
}

// Today returns the current civil date and hour in the app timezone.
func (c Calendar) Today() (model.Date, int) {
	now := c.Local()
	return model.DateOf(now), now.Hour()
}

// engine loads a user's data and builds a streak.Snapshot, logging every
// record the engine had to exclude.
type engine struct {
	habits   repository.HabitRepository
	checkins repository.CheckInRepository
	logger   *slog.Logger
}

func (e engine) snapshot(ctx context.Context, userID string, today model.Date) (*streak.Snapshot, error) {
	habits, err := e.habits.ListHabits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading habits: %w", err)
	}
	checkins, err := e.checkins.ListCheckIns(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading check-ins: %w", err)
	}

	snap := streak.NewSnapshot(userID, habits, checkins, today)
	for _, ex := range snap.Excluded() {
		e.logger.Warn("check-in excluded from streak computation",
			slog.String("user_id", userID),
			slog.String("checkin_id", ex.CheckIn.ID),
			slog.String("habit_id", ex.CheckIn.HabitID),
			slog.String("date", ex.CheckIn.Date.String()),
			slog.String("error", ex.Err.Error()),
		)
	}
	return snap, nil
}

// StatsCache keeps the /stats payload per user for a short time. A nil
// *StatsCache or nil store disables caching.
type StatsCache struct {
	store  cache.Store
	ttl    time.Duration
	logger *slog.Logger
}

// DefaultStatsTTL is how long a cached stats payload may be served.
const DefaultStatsTTL = time.Minute

func NewStatsCache(store cache.Store, ttl time.Duration, logger *slog.Logger) *StatsCache {
	return &StatsCache{store: store, ttl: ttl, logger: logger}
}

func statsKey(userID string) string { return "stats:" + userID }

func (c *StatsCache) get(ctx context.Context, userID string) (*Stats, bool) {
	if c == nil || c.store == nil {
		return nil, false
	}
	raw, err := c.store.Get(ctx, statsKey(userID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.logger.Warn("stats cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	var st Stats
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, false
	}
	return &st, true
}

func (c *StatsCache) put(ctx context.Context, userID string, st *Stats) {
	if c == nil || c.store == nil {
		return
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, statsKey(userID), string(raw), c.ttl); err != nil {
		c.logger.Warn("stats cache write failed", slog.String("error", err.Error()))
	}
}

// Invalidate drops the cached stats of a user after any write that changes
// them.
func (c *StatsCache) Invalidate(ctx context.Context, userID string) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, statsKey(userID)); err != nil {
		c.logger.Warn("stats cache invalidation failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
