// Package analytics derives dashboard figures from study session timestamps.
package analytics

import (
	"slices"
	"time"
)

const secondsPerDay = 86_400

// Streak holds consecutive-day activity counts. Longest is at least 1 when
// any session exists.
type Streak struct {
	Current int `json:"currentStreak"`
	Longest int `json:"longestStreak"`
}

// epochDay is the number of whole UTC days since 1970-01-01.
func epochDay(t time.Time) int64 {
	s := t.Unix()
	d := s / secondsPerDay
	if s%secondsPerDay < 0 {
		d--
	}
	return d
}

// CalculateStreak computes streaks over the UTC calendar dates of times.
// The current streak survives until a full UTC day passes with no activity:
// a run ending yesterday still counts.
func CalculateStreak(times []time.Time, now time.Time) Streak {
	if len(times) == 0 {
		return Streak{}
	}

	days := make([]int64, 0, len(times))
	for _, t := range times {
		days = append(days, epochDay(t))
	}
	slices.Sort(days)
	days = slices.Compact(days)

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i]-days[i-1] == 1 {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}

	last := days[len(days)-1]
	if epochDay(now)-last > 1 {
		return Streak{Current: 0, Longest: longest}
	}

	current := 1
	for i := len(days) - 2; i >= 0; i-- {
		if days[i+1]-days[i] != 1 {
			break
		}
		current++
	}
	return Streak{Current: current, Longest: longest}
}
