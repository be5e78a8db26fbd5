package streak

import (
	"github.com/sankalp/sankalp/internal/model"
)

// Run is a span of consecutive complete days. Days == 0 means no run exists
// and Start/End are meaningless.
type Run struct {
	Days  int        `json:"days"`
	Start model.Date `json:"start"`
	End   model.Date `json:"end"`
}

// HabitStats is the streak view of a single habit.
type HabitStats struct {
	HabitID       string      `json:"habitId"`
	Name          string      `json:"name"`
	Current       int         `json:"currentStreak"`
	Longest       int         `json:"longestStreak"`
	LastCompleted *model.Date `json:"lastCompletedDate"`
}

// DayStatus is one cell of the streak history strip.
type DayStatus struct {
	Date           model.Date `json:"date"`
	DayName        string     `json:"dayName"`
	DayNumber      int        `json:"dayNumber"`
	IsToday        bool       `json:"isToday"`
	Completed      bool       `json:"completed"`
	Partial        bool       `json:"partial"`
	CompletedCount int        `json:"completedCount"`
	TotalHabits    int        `json:"totalHabits"`
}

// currentRun walks backwards from today counting complete days. If today
// itself is not complete it is skipped once, before counting starts; a gap
// anywhere else ends the run.
func currentRun(today model.Date, complete func(model.Date) bool) int {
	count := 0
	cursor := today
	graced := false
	for {
		if complete(cursor) {
			count++
			cursor = cursor.AddDays(-1)
			continue
		}
		if count == 0 && !graced && cursor == today {
			graced = true
			cursor = cursor.AddDays(-1)
			continue
		}
		return count
	}
}

// longestRun scans [from, to] forward and returns the first longest run.
func longestRun(from, to model.Date, complete func(model.Date) bool) Run {
	var best Run
	running := 0
	var start model.Date
	for d := from; d <= to; d++ {
		if !complete(d) {
			running = 0
			continue
		}
		if running == 0 {
			start = d
		}
		running++
		if running > best.Days {
			best = Run{Days: running, Start: start, End: d}
		}
	}
	return best
}

// CurrentStreak returns the number of consecutive complete days ending today,
// or ending yesterday when today is still in progress.
func (s *Snapshot) CurrentStreak(today model.Date) int {
	if len(s.habits) == 0 || !s.hasDates {
		return 0
	}
	return currentRun(today, s.IsComplete)
}

// LongestStreak returns the longest run of complete days anywhere in the
// history, between the earliest and latest check-in dates.
func (s *Snapshot) LongestStreak() Run {
	if len(s.habits) == 0 || !s.hasDates {
		return Run{}
	}
	return longestRun(s.first, s.last, s.IsComplete)
}

// TotalCompletedDays counts distinct complete dates.
func (s *Snapshot) TotalCompletedDays() int {
	if len(s.habits) == 0 {
		return 0
	}
	n := 0
	for d := range s.done {
		if s.IsComplete(d) {
			n++
		}
	}
	return n
}

// HabitStreak applies the current/longest rules to one habit on its own: a
// date counts when that habit alone was completed.
func (s *Snapshot) HabitStreak(habitID string, today model.Date) HabitStats {
	stats := HabitStats{HabitID: habitID}
	i, ok := s.index[habitID]
	if !ok {
		return stats
	}
	stats.Name = s.habits[i].Name

	dates := s.byHabit[habitID]
	if len(dates) == 0 {
		return stats
	}
	complete := func(d model.Date) bool {
		_, ok := dates[d]
		return ok
	}

	var first, last model.Date
	seen := false
	for d := range dates {
		if !seen || d < first {
			first = d
		}
		if !seen || d > last {
			last = d
		}
		seen = true
	}

	stats.Current = currentRun(today, complete)
	stats.Longest = longestRun(first, last, complete).Days
	stats.LastCompleted = &last
	return stats
}

// HabitStreaks returns HabitStreak for every habit, in habit order.
func (s *Snapshot) HabitStreaks(today model.Date) []HabitStats {
	out := make([]HabitStats, 0, len(s.habits))
	for _, h := range s.habits {
		out = append(out, s.HabitStreak(h.ID, today))
	}
	return out
}

// CompletionRate is the percentage of habit-days completed over the last
// windowDays days (today included), rounded to one decimal.
func (s *Snapshot) CompletionRate(today model.Date, windowDays int) float64 {
	if len(s.habits) == 0 || windowDays <= 0 {
		return 0
	}
	done := 0
	for d := today.AddDays(-(windowDays - 1)); d <= today; d++ {
		done += len(s.done[d])
	}
	return round1(float64(done) / float64(len(s.habits)*windowDays) * 100)
}

// HabitCompletionRate is CompletionRate for a single habit.
func (s *Snapshot) HabitCompletionRate(habitID string, today model.Date, windowDays int) float64 {
	dates, ok := s.byHabit[habitID]
	if !ok || windowDays <= 0 {
		return 0
	}
	done := 0
	for d := today.AddDays(-(windowDays - 1)); d <= today; d++ {
		if _, ok := dates[d]; ok {
			done++
		}
	}
	return round1(float64(done) / float64(windowDays) * 100)
}

// History returns the last days days, oldest first, ending today.
func (s *Snapshot) History(today model.Date, days int) []DayStatus {
	if days <= 0 {
		return []DayStatus{}
	}
	out := make([]DayStatus, 0, days)
	for d := today.AddDays(-(days - 1)); d <= today; d++ {
		n := len(s.done[d])
		complete := s.IsComplete(d)
		out = append(out, DayStatus{
			Date:           d,
			DayName:        d.Weekday().String(),
			DayNumber:      d.Day(),
			IsToday:        d == today,
			Completed:      complete,
			Partial:        n > 0 && !complete,
			CompletedCount: n,
			TotalHabits:    len(s.habits),
		})
	}
	return out
}
