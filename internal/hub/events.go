package hub

import (
	"time"

	"github.com/DoyleJ11/queuebot/internal/gamelog"
)

type EventKind string

const (
	PlayerJoined    EventKind = "player_joined"
	PlayerLeft      EventKind = "player_left"
	QueueExpiring   EventKind = "queue_expiring"
	QueueCleared    EventKind = "queue_cleared"
	QueueFrozen     EventKind = "queue_frozen"
	QueueUnfrozen   EventKind = "queue_unfrozen"
	CapacityChanged EventKind = "capacity_changed"
	MatchStarted    EventKind = "match_started"
	TeamsChanged    EventKind = "teams_changed"
	GameScored      EventKind = "game_scored"
	GameCancelled   EventKind = "game_cancelled"
	GameUndone      EventKind = "game_undone"
	RatingsChanged  EventKind = "ratings_changed"
	SeedChanged     EventKind = "seed_changed"
)

type LeaveReason string

const (
	ReasonManual      LeaveReason = "manual"
	ReasonForced      LeaveReason = "forced"
	ReasonTimeout     LeaveReason = "timeout"
	ReasonGameStarted LeaveReason = "game_started"
)

// Event describes a committed state change. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind      EventKind
	Lobby     string
	LobbyName string
	At        time.Time

	Player  string
	Reason  LeaveReason
	Minutes int

	// Queue is the queue after the change.
	Queue QueueView

	Game *gamelog.Game
	// Before holds the teams prior to a TeamsChanged edit.
	Before   *gamelog.Game
	Previous gamelog.Outcome
	Quality  float64
	Changes  []RatingChange

	// Mean is the new seed of Player for SeedChanged.
	Mean float64
}

type RatingChange struct {
	Player string
	Old    float64
	New    float64
	// Best is the player's highest mean across every lobby after the change.
	Best float64
}

type QueueView struct {
	Lobby    string
	Name     string
	Capacity int
	Frozen   bool
	Players  []string
}

// Sink receives every event after the state change is committed. Publish
// must not block.
type Sink interface {
	Publish(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }
