package streak

import (
	"time"

	"github.com/sankalp/sankalp/internal/model"
)

// Performance summarises one habit over a trailing window.
type Performance struct {
	HabitID          string         `json:"habitId"`
	PeriodDays       int            `json:"periodDays"`
	TotalCompletions int            `json:"totalCompletions"`
	CompletionRate   float64        `json:"completionRate"`
	BestDay          string         `json:"bestDay,omitempty"`
	WorstDay         string         `json:"worstDay,omitempty"`
	AverageMood      *float64       `json:"averageMood"`
	AverageTimeSpent *float64       `json:"averageTimeSpent"`
	DayDistribution  map[string]int `json:"dayDistribution"`
	CurrentStreak    int            `json:"currentStreak"`
	BestStreak       int            `json:"bestStreak"`
}

// HabitPerformance looks at the habit's completed check-ins in the last days
// days (today included). Best and worst weekday only consider weekdays with
// at least one completion; ties go to the earlier weekday, Sunday first.
func (s *Snapshot) HabitPerformance(habitID string, today model.Date, days int) Performance {
	p := Performance{
		HabitID:         habitID,
		PeriodDays:      days,
		DayDistribution: map[string]int{},
	}
	if days <= 0 {
		return p
	}

	from := today.AddDays(-(days - 1))
	var perDay [7]int
	var moodSum, moodN, timeSum, timeN int
	for _, c := range s.accepted {
		if c.HabitID != habitID || !c.Completed || c.Date < from || c.Date > today {
			continue
		}
		p.TotalCompletions++
		perDay[c.Date.Weekday()]++
		if c.Mood != nil {
			moodSum += *c.Mood
			moodN++
		}
		if c.TimeSpent != nil {
			timeSum += *c.TimeSpent
			timeN++
		}
	}

	p.CompletionRate = round1(float64(p.TotalCompletions) / float64(days) * 100)
	if moodN > 0 {
		avg := round1(float64(moodSum) / float64(moodN))
		p.AverageMood = &avg
	}
	if timeN > 0 {
		avg := round1(float64(timeSum) / float64(timeN))
		p.AverageTimeSpent = &avg
	}

	best, worst := -1, -1
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		n := perDay[wd]
		if n == 0 {
			continue
		}
		p.DayDistribution[wd.String()] = n
		if best < 0 || n > perDay[best] {
			best = int(wd)
		}
		if worst < 0 || n < perDay[worst] {
			worst = int(wd)
		}
	}
	if best >= 0 {
		p.BestDay = time.Weekday(best).String()
		p.WorstDay = time.Weekday(worst).String()
	}

	hs := s.HabitStreak(habitID, today)
	p.CurrentStreak = hs.Current
	p.BestStreak = hs.Longest
	return p
}

// Prediction estimates how likely the user is to finish today's habits.
type Prediction struct {
	SuccessProbability float64  `json:"successProbability"`
	Confidence         string   `json:"confidence"`
	DayOfWeek          string   `json:"dayOfWeek"`
	SleepImpact        string   `json:"sleepImpact"`
	HistoricalRate     float64  `json:"historicalRate"`
	Tips               []string `json:"tips"`
}

const maxProbability = 0.95

// Predict blends the historical completion ratio of all check-ins with a
// weekday factor and last night's sleep. sleepHours may be nil.
func (s *Snapshot) Predict(today model.Date, sleepHours *float64) Prediction {
	weekday := today.Weekday()
	total := len(s.accepted)
	completed, sameDay := 0, 0
	for _, c := range s.accepted {
		if !c.Completed {
			continue
		}
		completed++
		if c.Date.Weekday() == weekday {
			sameDay++
		}
	}

	base := 0.5
	if total > 0 {
		base = float64(completed) / float64(total)
	}

	sleepFactor, impact := 1.0, "neutral"
	if sleepHours != nil {
		switch {
		case *sleepHours >= 7:
			sleepFactor, impact = 1.15, "positive"
		case *sleepHours < 6:
			sleepFactor, impact = 0.85, "negative"
		}
	}

	weekSpan := float64(total) / 7
	if weekSpan < 1 {
		weekSpan = 1
	}
	dayFactor := float64(sameDay) / weekSpan

	prob := base * sleepFactor * (1 + dayFactor*0.1)
	if prob > maxProbability {
		prob = maxProbability
	}

	confidence := "low"
	switch {
	case total > 30:
		confidence = "high"
	case total > 14:
		confidence = "medium"
	}

	tips := []string{
		"Complete your easiest habit first to build momentum",
		"Set a specific time for each habit",
		"Remove distractions before starting",
	}
	if prob >= 0.7 {
		tips = []string{
			"You're on track for a great day",
			"Stack a small extra habit onto one you already do",
			"Check in on a friend's progress",
		}
	}

	return Prediction{
		SuccessProbability: round1(prob * 100),
		Confidence:         confidence,
		DayOfWeek:          weekday.String(),
		SleepImpact:        impact,
		HistoricalRate:     round1(base * 100),
		Tips:               tips,
	}
}
