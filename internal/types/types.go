package types

import (
	"github.com/samber/lo"

	"github.com/DoyleJ11/queuebot/internal/gamelog"
	"github.com/DoyleJ11/queuebot/internal/hub"
	"github.com/DoyleJ11/queuebot/internal/leaderboard"
	api "github.com/DoyleJ11/queuebot/pkg/types"
)

const (
	TypeSnapshot = "Snapshot"
	TypeEvent    = "Event"
	TypeError    = "Error"
)

// ServerMessage is one websocket frame.
type ServerMessage struct {
	Type  string     `json:"type"`
	Queue *api.Queue `json:"queue,omitempty"`
	Event *api.Event `json:"event,omitempty"`
	Error string     `json:"error,omitempty"`
}

func Queue(q hub.QueueView) api.Queue {
	players := q.Players
	if players == nil {
		players = []string{}
	}
	return api.Queue{Lobby: q.Lobby, Name: q.Name, Capacity: q.Capacity, Frozen: q.Frozen, Players: players}
}

func Game(g gamelog.Game) api.Game {
	return api.Game{
		Lobby:     g.Lobby,
		ID:        g.ID,
		Team1:     g.Team1,
		Team2:     g.Team2,
		Outcome:   g.Outcome.String(),
		CreatedAt: g.CreatedAt,
	}
}

func Event(e hub.Event) api.Event {
	out := api.Event{
		Kind:    string(e.Kind),
		Lobby:   e.Lobby,
		At:      e.At,
		Player:  e.Player,
		Reason:  string(e.Reason),
		Minutes: e.Minutes,
	}
	switch e.Kind {
	case hub.PlayerJoined, hub.PlayerLeft, hub.QueueCleared, hub.QueueFrozen, hub.QueueUnfrozen, hub.CapacityChanged:
		q := Queue(e.Queue)
		out.Queue = &q
	}
	if e.Game != nil {
		g := Game(*e.Game)
		out.Game = &g
	}
	switch e.Kind {
	case hub.MatchStarted, hub.TeamsChanged:
		out.Quality = &e.Quality
	case hub.GameUndone:
		out.Previous = e.Previous.String()
	}
	out.Changes = lo.Map(e.Changes, func(c hub.RatingChange, _ int) api.RatingChange {
		return api.RatingChange{Player: c.Player, Old: c.Old, New: c.New}
	})
	if len(out.Changes) == 0 {
		out.Changes = nil
	}
	return out
}

func LeaderboardPage(p leaderboard.Page, tiers leaderboard.Tiers) api.LeaderboardPage {
	rows := lo.Map(p.Rows, func(r leaderboard.Row, _ int) api.LeaderboardRow {
		row := api.LeaderboardRow{
			Rank:      r.Rank,
			Player:    r.PlayerID,
			Mean:      r.Record.Mean,
			Deviation: r.Record.Deviation(),
			Wins:      r.Record.Wins,
			Losses:    r.Record.Losses,
			Draws:     r.Record.Draws,
		}
		if t, ok := tiers.For(r.Record.Mean); ok {
			row.Tier = t.Name
		}
		return row
	})
	return api.LeaderboardPage{Page: p.Number, Pages: p.Total, Rows: rows}
}
