package analytics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

const week = 7 * 24 * time.Hour

// SessionSource is the session history a dashboard is computed from.
type SessionSource interface {
	CountSessions(ctx context.Context, userID string, from, to time.Time) (int, error)
	SessionTimes(ctx context.Context, userID string, since time.Time) ([]time.Time, error)
}

// Dashboard is the activity overview shown to a user.
type Dashboard struct {
	TotalSessions    int          `json:"totalSessions"`
	SessionsThisWeek int          `json:"sessionsThisWeek"`
	SessionsLastWeek int          `json:"sessionsLastWeek"`
	CurrentStreak    int          `json:"currentStreak"`
	LongestStreak    int          `json:"longestStreak"`
	WeeklyChart      []ChartPoint `json:"weeklyChart"`
	Insight          string       `json:"insight"`
}

// BuildDashboard queries src concurrently and derives streaks, the weekly
// chart and the insight line. "This week" is the 7 days before now and "last
// week" the 7 days before that.
func BuildDashboard(ctx context.Context, src SessionSource, userID string, now time.Time) (Dashboard, error) {
	weekAgo := now.Add(-week)
	twoWeeksAgo := now.Add(-2 * week)

	var (
		d      Dashboard
		recent []time.Time
		all    []time.Time
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.TotalSessions, err = src.CountSessions(ctx, userID, time.Time{}, time.Time{})
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = src.SessionTimes(ctx, userID, weekAgo)
		return err
	})
	g.Go(func() error {
		var err error
		d.SessionsLastWeek, err = src.CountSessions(ctx, userID, twoWeeksAgo, weekAgo)
		return err
	})
	g.Go(func() error {
		var err error
		all, err = src.SessionTimes(ctx, userID, time.Time{})
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	streak := CalculateStreak(all, now)
	d.SessionsThisWeek = len(recent)
	d.CurrentStreak = streak.Current
	d.LongestStreak = streak.Longest
	d.WeeklyChart = WeeklyChart(recent, now)
	d.Insight = Insight(InsightInput{
		ThisWeek:      d.SessionsThisWeek,
		LastWeek:      d.SessionsLastWeek,
		CurrentStreak: d.CurrentStreak,
		Total:         d.TotalSessions,
	})
	return d, nil
}
