package streak

import (
	"github.com/sankalp/sankalp/internal/model"
)

// Metric names a counter a badge threshold is measured against.
type Metric string

const (
	MetricCurrentStreak   Metric = "current_streak"
	MetricLongestStreak   Metric = "longest_streak"
	MetricTotalDays       Metric = "total_completed_days"
	MetricJournalEntries  Metric = "journal_entries"
	MetricGoodSleepNights Metric = "good_sleep_nights"
)

// Counters holds the current value of each metric.
type Counters map[Metric]int

// Badge is a static, threshold-based achievement.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Metric      Metric `json:"metric"`
	Threshold   int    `json:"threshold"`
	XP          int    `json:"xp"`
}

// Streak badges are measured on the longest streak so that a badge, once
// reached, stays reached after the streak breaks.
var catalog = []Badge{
	{ID: "streak_3", Name: "Getting Started", Description: "3-day streak", Metric: MetricLongestStreak, Threshold: 3, XP: 25},
	{ID: "streak_7", Name: "One Week", Description: "7-day streak", Metric: MetricLongestStreak, Threshold: 7, XP: 50},
	{ID: "streak_14", Name: "Two Weeks", Description: "14-day streak", Metric: MetricLongestStreak, Threshold: 14, XP: 100},
	{ID: "streak_21", Name: "Habit Formed", Description: "21-day streak", Metric: MetricLongestStreak, Threshold: 21, XP: 150},
	{ID: "streak_30", Name: "One Month", Description: "30-day streak", Metric: MetricLongestStreak, Threshold: 30, XP: 200},
	{ID: "streak_50", Name: "Halfway Hero", Description: "50-day streak", Metric: MetricLongestStreak, Threshold: 50, XP: 350},
	{ID: "streak_66", Name: "Habit Master", Description: "66-day streak", Metric: MetricLongestStreak, Threshold: 66, XP: 500},
	{ID: "streak_100", Name: "Century Champion", Description: "100-day streak", Metric: MetricLongestStreak, Threshold: 100, XP: 1000},
	{ID: "total_100", Name: "Centurion", Description: "100 perfect days in total", Metric: MetricTotalDays, Threshold: 100, XP: 300},
	{ID: "journal_10", Name: "Reflector", Description: "10 journal entries", Metric: MetricJournalEntries, Threshold: 10, XP: 75},
	{ID: "sleep_7", Name: "Sleep Champion", Description: "7 nights of 7-9 hours sleep", Metric: MetricGoodSleepNights, Threshold: 7, XP: 75},
}

// Catalog returns a copy of the badge catalog.
func Catalog() []Badge {
	out := make([]Badge, len(catalog))
	copy(out, catalog)
	return out
}

// LookupBadge finds a catalog badge by id.
func LookupBadge(id string) (Badge, bool) {
	for _, b := range catalog {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

// EvaluateMilestones returns the catalog badges whose threshold is met by
// counters and which are not in earned, in catalog order. Calling it again
// with earned extended by the result returns nothing.
func EvaluateMilestones(counters Counters, earned []string) []Badge {
	have := make(map[string]struct{}, len(earned))
	for _, id := range earned {
		have[id] = struct{}{}
	}
	var out []Badge
	for _, b := range catalog {
		if _, ok := have[b.ID]; ok {
			continue
		}
		if counters[b.Metric] >= b.Threshold {
			out = append(out, b)
		}
	}
	return out
}

// Awards converts badges to the (id, xp) pairs the user store persists.
func Awards(badges []Badge) []model.BadgeAward {
	out := make([]model.BadgeAward, 0, len(badges))
	for _, b := range badges {
		out = append(out, model.BadgeAward{BadgeID: b.ID, XP: b.XP})
	}
	return out
}

// Counters collects the streak-derived metrics of the snapshot. Journal and
// sleep metrics come from daily logs; see CountDailyLogs.
func (s *Snapshot) Counters(today model.Date, logs []model.DailyLog) Counters {
	journal, sleep := CountDailyLogs(logs)
	return Counters{
		MetricCurrentStreak:   s.CurrentStreak(today),
		MetricLongestStreak:   s.LongestStreak().Days,
		MetricTotalDays:       s.TotalCompletedDays(),
		MetricJournalEntries:  journal,
		MetricGoodSleepNights: sleep,
	}
}

// CountDailyLogs returns the number of logs with a reflection and the number
// of nights with 7 to 9 hours of sleep.
func CountDailyLogs(logs []model.DailyLog) (journal, goodSleep int) {
	for _, l := range logs {
		if l.Reflection != "" {
			journal++
		}
		if l.SleepHours != nil && *l.SleepHours >= 7 && *l.SleepHours <= 9 {
			goodSleep++
		}
	}
	return journal, goodSleep
}

// Milestone is one rung of the streak ladder with the user's progress on it.
type Milestone struct {
	Days     int     `json:"days"`
	Name     string  `json:"name"`
	XP       int     `json:"xp"`
	Achieved bool    `json:"achieved"`
	Current  bool    `json:"current"`
	Progress float64 `json:"progress"`
}

// NextMilestone is the first ladder rung above the current streak.
type NextMilestone struct {
	Days          int     `json:"days"`
	DaysRemaining int     `json:"daysRemaining"`
	Progress      float64 `json:"progress"`
}

func ladder() []Badge {
	var out []Badge
	for _, b := range catalog {
		if b.Metric == MetricLongestStreak {
			out = append(out, b)
		}
	}
	return out
}

// Milestones reports progress on every streak rung. Achieved is judged on
// the longest streak, Current and Progress on the current one.
func Milestones(current, longest int) []Milestone {
	rungs := ladder()
	out := make([]Milestone, 0, len(rungs))
	for _, b := range rungs {
		out = append(out, Milestone{
			Days:     b.Threshold,
			Name:     b.Name,
			XP:       b.XP,
			Achieved: longest >= b.Threshold,
			Current:  current >= b.Threshold,
			Progress: progress(current, b.Threshold),
		})
	}
	return out
}

// Next returns the first rung strictly above current, or nil past the top.
func Next(current int) *NextMilestone {
	for _, b := range ladder() {
		if b.Threshold > current {
			return &NextMilestone{
				Days:          b.Threshold,
				DaysRemaining: b.Threshold - current,
				Progress:      progress(current, b.Threshold),
			}
		}
	}
	return nil
}

func progress(current, target int) float64 {
	p := float64(current) / float64(target) * 100
	if p > 100 {
		p = 100
	}
	return round1(p)
}

// Status tiers by current streak length.
const (
	StatusInactive    = "inactive"
	StatusBuilding    = "building"
	StatusGrowing     = "growing"
	StatusStrong      = "strong"
	StatusPowerful    = "powerful"
	StatusUnstoppable = "unstoppable"
	StatusChampion    = "champion"
)

// Status returns the tier for a current streak and a short message for it.
func Status(current int) (status, message string) {
	switch {
	case current <= 0:
		return StatusInactive, "Complete all of today's habits to start a streak."
	case current < 7:
		return StatusBuilding, "You're building momentum. Keep showing up."
	case current < 21:
		return StatusGrowing, "Your streak is growing. A habit is taking shape."
	case current < 30:
		return StatusStrong, "Strong streak. The habit is sticking."
	case current < 66:
		return StatusPowerful, "Powerful consistency. This is who you are now."
	case current < 100:
		return StatusUnstoppable, "Unstoppable. Keep the chain alive."
	default:
		return StatusChampion, "Champion. Over 100 days of commitment."
	}
}
