// Package types holds the JSON documents served by the HTTP API and the
// websocket stream.
package types

import "time"

type Queue struct {
	Lobby    string   `json:"lobby"`
	Name     string   `json:"name"`
	Capacity int      `json:"capacity"`
	Frozen   bool     `json:"frozen"`
	Players  []string `json:"players"`
}

type Game struct {
	Lobby     string    `json:"lobby"`
	ID        int       `json:"id"`
	Team1     []string  `json:"team1"`
	Team2     []string  `json:"team2"`
	Outcome   string    `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

type RatingChange struct {
	Player string  `json:"player"`
	Old    float64 `json:"old"`
	New    float64 `json:"new"`
}

// Event is one committed lobby change. Only the fields relevant to Kind are
// present.
type Event struct {
	Kind     string         `json:"kind"`
	Lobby    string         `json:"lobby"`
	At       time.Time      `json:"at"`
	Player   string         `json:"player,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Minutes  int            `json:"minutes,omitempty"`
	Queue    *Queue         `json:"queue,omitempty"`
	Game     *Game          `json:"game,omitempty"`
	Previous string         `json:"previous,omitempty"`
	Quality  *float64       `json:"quality,omitempty"`
	Changes  []RatingChange `json:"changes,omitempty"`
}

type LeaderboardRow struct {
	Rank      int     `json:"rank"`
	Player    string  `json:"player"`
	Mean      float64 `json:"mean"`
	Deviation float64 `json:"deviation"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	Draws     int     `json:"draws"`
	Tier      string  `json:"tier,omitempty"`
}

type LeaderboardPage struct {
	Page  int              `json:"page"`
	Pages int              `json:"pages"`
	Rows  []LeaderboardRow `json:"rows"`
}
