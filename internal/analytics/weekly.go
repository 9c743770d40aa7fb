package analytics

import (
	"fmt"
	"time"
)

// ChartPoint is one day of the weekly activity chart.
type ChartPoint struct {
	Day      string `json:"day"`
	Sessions int    `json:"sessions"`
}

// WeeklyChart counts sessions per UTC day for the seven days ending today,
// oldest first. Days are labelled Sun..Sat.
func WeeklyChart(times []time.Time, now time.Time) []ChartPoint {
	counts := make(map[int64]int, len(times))
	for _, t := range times {
		counts[epochDay(t)]++
	}

	today := epochDay(now)
	chart := make([]ChartPoint, 0, 7)
	for i := int64(6); i >= 0; i-- {
		day := today - i
		chart = append(chart, ChartPoint{
			Day:      time.Unix(day*secondsPerDay, 0).UTC().Weekday().String()[:3],
			Sessions: counts[day],
		})
	}
	return chart
}

// InsightInput carries the numbers an insight is derived from.
type InsightInput struct {
	ThisWeek      int
	LastWeek      int
	CurrentStreak int
	Total         int
}

// Insight returns a one-line study tip for the dashboard.
func Insight(in InsightInput) string {
	switch {
	case in.Total == 0:
		return "Start your first study session to begin building your learning streak."
	case in.CurrentStreak >= 7:
		return fmt.Sprintf("You're on a %d-day streak! Consistency like this is what makes material stick.", in.CurrentStreak)
	case in.ThisWeek > in.LastWeek && in.LastWeek == 0:
		return fmt.Sprintf("You've completed %d %s this week. Great start, keep it going!", in.ThisWeek, plural(in.ThisWeek, "session", "sessions"))
	case in.ThisWeek > in.LastWeek:
		pct := (in.ThisWeek - in.LastWeek) * 100 / in.LastWeek
		return fmt.Sprintf("You studied %d%% more this week than last week. Keep the momentum going!", pct)
	case in.ThisWeek < in.LastWeek:
		diff := in.LastWeek - in.ThisWeek
		return fmt.Sprintf("You had %d fewer %s than last week. A short session today can get you back on track.", diff, plural(diff, "session", "sessions"))
	case in.CurrentStreak >= 3:
		return fmt.Sprintf("You're on a %d-day streak. Try reviewing flashcards to lock in what you've learned.", in.CurrentStreak)
	case in.ThisWeek > 0:
		return fmt.Sprintf("You're keeping a steady pace of %d %s a week.", in.ThisWeek, plural(in.ThisWeek, "session", "sessions"))
	default:
		return "No sessions in the last two weeks. Upload some notes and generate a quick summary to get going."
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
