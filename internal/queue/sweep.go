package queue

import (
	"slices"
	"time"
)

type NoticeKind string

const (
	NoticeTimedOut NoticeKind = "timed_out"
	NoticeExpiring NoticeKind = "expiring"
)

type Notice struct {
	Kind     NoticeKind
	PlayerID string
	Minutes  int // minutes left, only for NoticeExpiring
}

// Sweep removes every entry whose expiry has passed and fires the one-shot
// warning for entries past their warn time. interval is the sweep period and
// is used to round the remaining time up.
func (l *Lobby) Sweep(now time.Time, interval time.Duration) []Notice {
	var notices []Notice
	for _, e := range l.Entries() {
		switch {
		case !now.Before(e.ExpireAt):
			delete(l.queue, e.PlayerID)
			notices = append(notices, Notice{Kind: NoticeTimedOut, PlayerID: e.PlayerID})

		case !e.WarnAt.IsZero() && !now.Before(e.WarnAt):
			e.WarnAt = time.Time{}
			l.queue[e.PlayerID] = e
			notices = append(notices, Notice{
				Kind:     NoticeExpiring,
				PlayerID: e.PlayerID,
				Minutes:  minutesLeft(e.ExpireAt.Sub(now), interval),
			})
		}
	}
	slices.SortStableFunc(notices, func(a, b Notice) int {
		// timeouts before warnings
		if a.Kind == b.Kind {
			return 0
		}
		if a.Kind == NoticeTimedOut {
			return -1
		}
		return 1
	})
	return notices
}

func minutesLeft(remaining, interval time.Duration) int {
	if interval <= 0 {
		interval = time.Minute
	}
	step := int64(interval / time.Second)
	secs := int64(remaining / time.Second)
	rounded := (secs + step - 1) / step * step
	return int(rounded / 60)
}
