package streak

import "github.com/sankalp/sankalp/internal/model"

// DefaultCutoffHour is the hour of day from which an unfinished day puts a
// running streak at risk.
const DefaultCutoffHour = 18

// Risk describes whether today's unfinished habits threaten the streak.
type Risk struct {
	AtRisk           bool     `json:"atRisk"`
	CurrentStreak    int      `json:"currentStreak"`
	CompletedToday   int      `json:"completedToday"`
	IncompleteToday  int      `json:"incompleteToday"`
	HoursRemaining   int      `json:"hoursRemaining"`
	IncompleteHabits []string `json:"incompleteHabits"`
}

// AtRisk reports whether currentStreak > 0, today is not complete, and the
// wall-clock hour has reached cutoffHour. The incomplete habit names are
// returned regardless, in habit order.
func (s *Snapshot) AtRisk(today model.Date, hour, currentStreak, cutoffHour int) Risk {
	r := Risk{
		CurrentStreak:    currentStreak,
		HoursRemaining:   24 - hour,
		IncompleteHabits: []string{},
	}
	for _, h := range s.habits {
		if s.HabitDoneOn(h.ID, today) {
			r.CompletedToday++
			continue
		}
		r.IncompleteToday++
		r.IncompleteHabits = append(r.IncompleteHabits, h.Name)
	}
	r.AtRisk = currentStreak > 0 && !s.IsComplete(today) && hour >= cutoffHour
	return r
}
