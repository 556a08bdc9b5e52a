package gamelog

import (
	"slices"
	"time"
)

type Outcome int

const (
	Undecided Outcome = iota
	Team1Win
	Team2Win
	Draw
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Undecided:
		return "undecided"
	case Team1Win:
		return "team 1"
	case Team2Win:
		return "team 2"
	case Draw:
		return "draw"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Rated reports whether the outcome feeds the rating replay.
func (o Outcome) Rated() bool {
	return o == Team1Win || o == Team2Win || o == Draw
}

type Game struct {
	Lobby     string
	ID        int
	Team1     []string
	Team2     []string
	Outcome   Outcome
	CreatedAt time.Time
}

func (g Game) Players() []string {
	return slices.Concat(g.Team1, g.Team2)
}

// TeamOf returns 1 or 2 for a player in the game, 0 otherwise.
func (g Game) TeamOf(playerID string) int {
	switch {
	case slices.Contains(g.Team1, playerID):
		return 1
	case slices.Contains(g.Team2, playerID):
		return 2
	default:
		return 0
	}
}

func (g Game) Clone() Game {
	g.Team1 = slices.Clone(g.Team1)
	g.Team2 = slices.Clone(g.Team2)
	return g
}
