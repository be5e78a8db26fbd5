// Package streak is the streak and completion engine.
//
// Everything here is a pure function of a user's habits and check-ins: no
// I/O, no clock, no shared state. Callers load the data, build a Snapshot
// once, and ask it questions. A Snapshot is never mutated after NewSnapshot
// returns, so it is safe to share between goroutines.
//
// A date is "complete" when every habit in the set has a completed check-in
// on that date. With no habits, no date is complete.
package streak

import (
	"errors"
	"math"
	"time"

	"github.com/sankalp/sankalp/internal/model"
)

// Reasons a check-in is excluded from a Snapshot.
var (
	ErrUnknownHabit   = errors.New("check-in references a habit not in the set")
	ErrForeignCheckIn = errors.New("check-in belongs to another user")
	ErrDateOutOfRange = errors.New("check-in date outside accepted range")
)

// MinDate is the earliest date a check-in may carry.
var MinDate = model.NewDate(2000, time.January, 1)

// Exclusion is a check-in that was left out of the computation, with the reason.
type Exclusion struct {
	CheckIn model.CheckIn
	Err     error
}

// Snapshot is an indexed, validated view of one user's habits and check-ins.
type Snapshot struct {
	habits   []model.Habit
	index    map[string]int                     // habit id -> position in habits
	done     map[model.Date]map[string]struct{} // date -> completed habit ids
	byHabit  map[string]map[model.Date]struct{} // habit id -> completed dates
	accepted []model.CheckIn
	first    model.Date
	last     model.Date
	hasDates bool
	excluded []Exclusion
}

// NewSnapshot validates and indexes the inputs.
//
// userID, when non-empty, is the owner every check-in must belong to. Check-ins
// dated after today+1 are rejected (one day of slack for clients in a zone
// ahead of the server). Rejected records are reported by Excluded and do not
// contribute to any statistic.
func NewSnapshot(userID string, habits []model.Habit, checkins []model.CheckIn, today model.Date) *Snapshot {
	s := &Snapshot{
		index:   make(map[string]int, len(habits)),
		done:    make(map[model.Date]map[string]struct{}),
		byHabit: make(map[string]map[model.Date]struct{}, len(habits)),
	}

	for _, h := range habits {
		if _, dup := s.index[h.ID]; dup {
			continue
		}
		s.index[h.ID] = len(s.habits)
		s.habits = append(s.habits, h)
		s.byHabit[h.ID] = make(map[model.Date]struct{})
	}

	type habitDay struct {
		habitID string
		date    model.Date
	}
	slot := make(map[habitDay]int, len(checkins))

	maxDate := today.AddDays(1)
	for _, c := range checkins {
		switch {
		case userID != "" && c.UserID != "" && c.UserID != userID:
			s.excluded = append(s.excluded, Exclusion{CheckIn: c, Err: ErrForeignCheckIn})
			continue
		case c.Date < MinDate || c.Date > maxDate:
			s.excluded = append(s.excluded, Exclusion{CheckIn: c, Err: ErrDateOutOfRange})
			continue
		}
		if _, ok := s.index[c.HabitID]; !ok {
			s.excluded = append(s.excluded, Exclusion{CheckIn: c, Err: ErrUnknownHabit})
			continue
		}

		// One row per (habit, date): the later row wins unless it would
		// demote a completed day.
		key := habitDay{c.HabitID, c.Date}
		if i, dup := slot[key]; dup {
			if c.Completed || !s.accepted[i].Completed {
				s.accepted[i] = c
			}
		} else {
			slot[key] = len(s.accepted)
			s.accepted = append(s.accepted, c)
		}
		if !s.hasDates || c.Date < s.first {
			s.first = c.Date
		}
		if !s.hasDates || c.Date > s.last {
			s.last = c.Date
		}
		s.hasDates = true

		if !c.Completed {
			continue
		}
		day, ok := s.done[c.Date]
		if !ok {
			day = make(map[string]struct{})
			s.done[c.Date] = day
		}
		day[c.HabitID] = struct{}{}
		s.byHabit[c.HabitID][c.Date] = struct{}{}
	}

	return s
}

// Excluded returns the check-ins that failed validation.
func (s *Snapshot) Excluded() []Exclusion {
	return s.excluded
}

// Habits returns the (deduplicated) habit set.
func (s *Snapshot) Habits() []model.Habit {
	return s.habits
}

// TotalHabits returns the number of habits in the set.
func (s *Snapshot) TotalHabits() int {
	return len(s.habits)
}

// IsComplete reports whether every habit has a completed check-in on d.
func (s *Snapshot) IsComplete(d model.Date) bool {
	if len(s.habits) == 0 {
		return false
	}
	return len(s.done[d]) == len(s.habits)
}

// CompletedOn returns how many habits were completed on d.
func (s *Snapshot) CompletedOn(d model.Date) int {
	return len(s.done[d])
}

// HabitDoneOn reports whether the habit has a completed check-in on d.
func (s *Snapshot) HabitDoneOn(habitID string, d model.Date) bool {
	_, ok := s.byHabit[habitID][d]
	return ok
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
