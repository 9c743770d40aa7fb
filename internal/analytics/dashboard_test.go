package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSessions struct {
	times []time.Time
	err   error
}

func (m *memSessions) CountSessions(_ context.Context, _ string, from, to time.Time) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	n := 0
	for _, t := range m.times {
		if (!from.IsZero() && t.Before(from)) || (!to.IsZero() && !t.Before(to)) {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memSessions) SessionTimes(_ context.Context, _ string, since time.Time) ([]time.Time, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []time.Time
	for _, t := range m.times {
		if since.IsZero() || !t.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func TestBuildDashboard(t *testing.T) {
	src := &memSessions{times: []time.Time{
		daysAgo(0, 9), daysAgo(0, 11), daysAgo(1, 8), daysAgo(2, 22),
		daysAgo(9, 10),
		daysAgo(30, 10),
	}}

	d, err := BuildDashboard(context.Background(), src, "u1", now)
	require.NoError(t, err)

	assert.Equal(t, 6, d.TotalSessions)
	assert.Equal(t, 4, d.SessionsThisWeek)
	assert.Equal(t, 1, d.SessionsLastWeek)
	assert.Equal(t, 3, d.CurrentStreak)
	assert.Equal(t, 3, d.LongestStreak)

	require.Len(t, d.WeeklyChart, 7)
	assert.Equal(t, ChartPoint{Day: "Sat", Sessions: 2}, d.WeeklyChart[6])
	assert.Equal(t, ChartPoint{Day: "Fri", Sessions: 1}, d.WeeklyChart[5])
	assert.Equal(t, ChartPoint{Day: "Thu", Sessions: 1}, d.WeeklyChart[4])
	assert.Equal(t, "You studied 300% more this week than last week. Keep the momentum going!", d.Insight)
}

func TestBuildDashboardEmpty(t *testing.T) {
	d, err := BuildDashboard(context.Background(), &memSessions{}, "u1", now)
	require.NoError(t, err)
	assert.Zero(t, d.TotalSessions)
	assert.Len(t, d.WeeklyChart, 7)
	assert.Equal(t, "Start your first study session to begin building your learning streak.", d.Insight)
}

func TestBuildDashboardError(t *testing.T) {
	_, err := BuildDashboard(context.Background(), &memSessions{err: errors.New("db closed")}, "u1", now)
	assert.EqualError(t, err, "db closed")
}
