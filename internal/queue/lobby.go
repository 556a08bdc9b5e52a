package queue

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var ErrFrozen = errors.New("the queue is frozen")
var ErrAlreadyQueued = errors.New("already in the queue")
var ErrNotQueued = errors.New("not in the queue")
var ErrBadCapacity = errors.New("capacity must be a positive even number")

// MaxCapacity bounds a match. Balancing enumerates every split of the
// players, which grows combinatorially past this size.
const MaxCapacity = 20

type Entry struct {
	PlayerID string
	JoinedAt time.Time
	ExpireAt time.Time
	WarnAt   time.Time // zero once the warning has fired
}

// Lobby is the waiting room of a single matchmaking channel. It is not safe
// for concurrent use; the hub serializes every call.
type Lobby struct {
	Name     string
	capacity int
	frozen   bool
	queue    map[string]Entry
}

func NewLobby(name string, capacity int) (*Lobby, error) {
	if err := ValidateCapacity(capacity); err != nil {
		return nil, err
	}
	return &Lobby{
		Name:     name,
		capacity: capacity,
		queue:    make(map[string]Entry),
	}, nil
}

func ValidateCapacity(n int) error {
	if n <= 0 || n%2 != 0 || n > MaxCapacity {
		return fmt.Errorf("%w: got %d, at most %d", ErrBadCapacity, n, MaxCapacity)
	}
	return nil
}

// Join queues e.PlayerID. When the queue reaches capacity it is drained and
// the drained entries are returned in join order.
func (l *Lobby) Join(e Entry, forced bool) ([]Entry, error) {
	if l.frozen && !forced {
		return nil, ErrFrozen
	}
	if _, ok := l.queue[e.PlayerID]; ok {
		return nil, fmt.Errorf("%s: %w", e.PlayerID, ErrAlreadyQueued)
	}
	l.queue[e.PlayerID] = e
	if len(l.queue) >= l.capacity {
		return l.drain(l.capacity), nil
	}
	return nil, nil
}

func (l *Lobby) Leave(playerID string, forced bool) error {
	if l.frozen && !forced {
		return ErrFrozen
	}
	if _, ok := l.queue[playerID]; !ok {
		return fmt.Errorf("%s: %w", playerID, ErrNotQueued)
	}
	delete(l.queue, playerID)
	return nil
}

// Remove is a forced leave that treats an absent player as a no-op.
func (l *Lobby) Remove(playerID string) bool {
	if _, ok := l.queue[playerID]; !ok {
		return false
	}
	delete(l.queue, playerID)
	return true
}

// SetCapacity changes the capacity. If the population reaches the new
// capacity, the earliest joiners are drained in batches of n.
func (l *Lobby) SetCapacity(n int) ([][]Entry, error) {
	if err := ValidateCapacity(n); err != nil {
		return nil, err
	}
	l.capacity = n
	var batches [][]Entry
	for len(l.queue) >= l.capacity {
		batches = append(batches, l.drain(l.capacity))
	}
	return batches, nil
}

func (l *Lobby) Freeze()   { l.frozen = true }
func (l *Lobby) Unfreeze() { l.frozen = false }

func (l *Lobby) Frozen() bool  { return l.frozen }
func (l *Lobby) Capacity() int { return l.capacity }
func (l *Lobby) Len() int      { return len(l.queue) }

func (l *Lobby) Contains(playerID string) bool {
	_, ok := l.queue[playerID]
	return ok
}

func (l *Lobby) Entry(playerID string) (Entry, bool) {
	e, ok := l.queue[playerID]
	return e, ok
}

// Extend moves a queued player's expiry, rearming the warning.
func (l *Lobby) Extend(playerID string, expireAt, warnAt time.Time) error {
	e, ok := l.queue[playerID]
	if !ok {
		return fmt.Errorf("%s: %w", playerID, ErrNotQueued)
	}
	e.ExpireAt = expireAt
	e.WarnAt = warnAt
	l.queue[playerID] = e
	return nil
}

// Clear empties the queue without producing a match.
func (l *Lobby) Clear() []Entry {
	return l.drain(len(l.queue))
}

// Entries returns the queue in join order.
func (l *Lobby) Entries() []Entry {
	out := make([]Entry, 0, len(l.queue))
	for _, e := range l.queue {
		out = append(out, e)
	}
	slices.SortFunc(out, byJoinOrder)
	return out
}

func (l *Lobby) drain(n int) []Entry {
	entries := l.Entries()
	if n < len(entries) {
		entries = entries[:n]
	}
	for _, e := range entries {
		delete(l.queue, e.PlayerID)
	}
	return entries
}

func byJoinOrder(a, b Entry) int {
	if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
		return c
	}
	return strings.Compare(a.PlayerID, b.PlayerID)
}
