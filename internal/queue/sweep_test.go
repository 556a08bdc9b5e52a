package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_TimesOutExpiredEntries(t *testing.T) {
	l := newLobby(t, 10)
	_, _ = l.Join(entry("a", 0), false)
	_, _ = l.Join(entry("b", 30*time.Minute), false)

	notices := l.Sweep(t0.Add(61*time.Minute), time.Minute)
	require.Len(t, notices, 1)
	assert.Equal(t, Notice{Kind: NoticeTimedOut, PlayerID: "a"}, notices[0])
	assert.False(t, l.Contains("a"))
	assert.True(t, l.Contains("b"))

	// never survives a second tick either
	assert.Empty(t, l.Sweep(t0.Add(62*time.Minute), time.Minute))
}

func TestSweep_WarnsOnce(t *testing.T) {
	l := newLobby(t, 10)
	_, _ = l.Join(entry("a", 0), false)

	now := t0.Add(55*time.Minute + 30*time.Second)
	notices := l.Sweep(now, time.Minute)
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeExpiring, notices[0].Kind)
	// 4m30s left, rounded up to the sweep interval
	assert.Equal(t, 5, notices[0].Minutes)

	e, _ := l.Entry("a")
	assert.True(t, e.WarnAt.IsZero())

	assert.Empty(t, l.Sweep(now.Add(time.Minute), time.Minute))
}

func TestSweep_TimeoutsBeforeWarnings(t *testing.T) {
	l := newLobby(t, 10)
	_, _ = l.Join(entry("late", 2*time.Minute), false)
	_, _ = l.Join(entry("early", 0), false)

	notices := l.Sweep(t0.Add(60*time.Minute), time.Minute)
	require.Len(t, notices, 2)
	assert.Equal(t, NoticeTimedOut, notices[0].Kind)
	assert.Equal(t, "early", notices[0].PlayerID)
	assert.Equal(t, NoticeExpiring, notices[1].Kind)
}

func TestMinutesLeft(t *testing.T) {
	cases := []struct {
		remaining time.Duration
		interval  time.Duration
		want      int
	}{
		{5 * time.Minute, time.Minute, 5},
		{4*time.Minute + time.Second, time.Minute, 5},
		{time.Second, time.Minute, 1},
		{3 * time.Minute, 2 * time.Minute, 4},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, minutesLeft(tc.remaining, tc.interval), "%v/%v", tc.remaining, tc.interval)
	}
}
