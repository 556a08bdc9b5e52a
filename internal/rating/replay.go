package rating

import (
	"cmp"
	"slices"

	"github.com/DoyleJ11/queuebot/internal/gamelog"
)

type Record struct {
	Rating
	Wins   int
	Losses int
	Draws  int
}

// Deviation is the displayed uncertainty, two standard deviations.
func (r Record) Deviation() float64 { return 2 * r.Sigma() }

func (r Record) Games() int { return r.Wins + r.Losses + r.Draws }

// Snapshot is the derived rating state of one lobby. It is always rebuilt
// wholesale by Replay and never edited in place.
type Snapshot map[string]Record

// Rating returns the player's current rating, or def if unknown.
func (s Snapshot) Rating(playerID string, def Rating) Rating {
	if r, ok := s[playerID]; ok {
		return r.Rating
	}
	return def
}

// Replay rebuilds every rating from scratch: seeds first, then each decided
// game in ascending id order. Undecided and cancelled games are skipped.
func Replay(m Model, seeds map[string]float64, games []gamelog.Game) Snapshot {
	def := m.Default()
	snap := make(Snapshot, len(seeds))
	for id, mean := range seeds {
		snap[id] = Record{Rating: Rating{Mean: mean, Variance: def.Variance}}
	}

	ordered := slices.Clone(games)
	slices.SortFunc(ordered, func(a, b gamelog.Game) int { return cmp.Compare(a.ID, b.ID) })

	for _, g := range ordered {
		var result Result
		switch g.Outcome {
		case gamelog.Team1Win:
			result = Team1Wins
		case gamelog.Team2Win:
			result = Team2Wins
		case gamelog.Draw:
			result = Tie
		default:
			continue
		}

		team1 := ratingsOf(snap, g.Team1, def)
		team2 := ratingsOf(snap, g.Team2, def)
		team1, team2 = m.Rate(team1, team2, result)

		apply(snap, g.Team1, team1, result, Team1Wins)
		apply(snap, g.Team2, team2, result, Team2Wins)
	}
	return snap
}

func ratingsOf(snap Snapshot, players []string, def Rating) []Rating {
	out := make([]Rating, len(players))
	for i, p := range players {
		out[i] = snap.Rating(p, def)
	}
	return out
}

func apply(snap Snapshot, players []string, ratings []Rating, result, win Result) {
	for i, p := range players {
		rec := snap[p]
		rec.Rating = ratings[i]
		switch {
		case result == Tie:
			rec.Draws++
		case result == win:
			rec.Wins++
		default:
			rec.Losses++
		}
		snap[p] = rec
	}
}
