package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/queuebot/internal/gamelog"
)

func newModel() *OpenSkill { return NewOpenSkill(1500, 500, 0) }

func game(id int, team1, team2 []string, o gamelog.Outcome) gamelog.Game {
	return gamelog.Game{Lobby: "l", ID: id, Team1: team1, Team2: team2, Outcome: o}
}

func TestOpenSkill_WinnerGainsLoserDrops(t *testing.T) {
	m := newModel()
	def := m.Default()
	t1, t2 := m.Rate([]Rating{def, def}, []Rating{def, def}, Team1Wins)

	require.Len(t, t1, 2)
	require.Len(t, t2, 2)
	assert.Greater(t, t1[0].Mean, def.Mean)
	assert.Less(t, t2[0].Mean, def.Mean)
	assert.Less(t, t1[0].Variance, def.Variance)
}

func TestOpenSkill_EvenTeamsQualityIsHalf(t *testing.T) {
	m := newModel()
	even := []Rating{{Mean: 100, Variance: 100}, {Mean: 100, Variance: 100}}
	assert.InDelta(t, 0.5, m.Quality(even, even), 1e-9)

	strong := []Rating{{Mean: 2500, Variance: 100}, {Mean: 2500, Variance: 100}}
	assert.Greater(t, m.Quality(strong, even), 0.5)
}

func TestReplay_SkipsUndecidedAndCancelled(t *testing.T) {
	m := newModel()
	games := []gamelog.Game{
		game(1, []string{"a"}, []string{"b"}, gamelog.Undecided),
		game(2, []string{"a"}, []string{"b"}, gamelog.Cancelled),
	}
	assert.Empty(t, Replay(m, nil, games))
}

func TestReplay_CountsResults(t *testing.T) {
	m := newModel()
	games := []gamelog.Game{
		game(1, []string{"a", "b"}, []string{"c", "d"}, gamelog.Team1Win),
		game(2, []string{"a", "c"}, []string{"b", "d"}, gamelog.Draw),
		game(3, []string{"a", "d"}, []string{"b", "c"}, gamelog.Team2Win),
	}
	snap := Replay(m, nil, games)

	assert.Equal(t, Record{Rating: snap["a"].Rating, Wins: 1, Draws: 1, Losses: 1}, snap["a"])
	assert.Equal(t, 2, snap["b"].Wins)
	assert.Equal(t, 1, snap["b"].Draws)
	assert.Equal(t, 2, snap["d"].Losses)
	assert.Equal(t, 3, snap["c"].Games())
}

func TestReplay_IsDeterministic(t *testing.T) {
	m := newModel()
	seeds := map[string]float64{"a": 1800, "z": 1200}
	games := []gamelog.Game{
		game(1, []string{"a", "b"}, []string{"c", "d"}, gamelog.Team1Win),
		game(2, []string{"a", "c"}, []string{"b", "d"}, gamelog.Team2Win),
	}
	assert.Equal(t, Replay(m, seeds, games), Replay(m, seeds, games))
}

func TestReplay_DisjointGamesCommute(t *testing.T) {
	m := newModel()
	first := Replay(m, nil, []gamelog.Game{
		game(1, []string{"a"}, []string{"b"}, gamelog.Team1Win),
		game(2, []string{"c"}, []string{"d"}, gamelog.Team2Win),
	})
	second := Replay(m, nil, []gamelog.Game{
		game(1, []string{"c"}, []string{"d"}, gamelog.Team2Win),
		game(2, []string{"a"}, []string{"b"}, gamelog.Team1Win),
	})
	assert.Equal(t, first, second)
}

func TestReplay_OrdersByID(t *testing.T) {
	m := newModel()
	games := []gamelog.Game{
		game(1, []string{"a"}, []string{"b"}, gamelog.Team1Win),
		game(2, []string{"a"}, []string{"b"}, gamelog.Team2Win),
	}
	reversed := []gamelog.Game{games[1], games[0]}
	assert.Equal(t, Replay(m, nil, games), Replay(m, nil, reversed))
}

func TestReplay_UndoThenRescoreReproducesRatings(t *testing.T) {
	m := newModel()
	games := []gamelog.Game{
		game(1, []string{"a", "b"}, []string{"c", "d"}, gamelog.Team1Win),
		game(2, []string{"a", "c"}, []string{"b", "d"}, gamelog.Team1Win),
		game(3, []string{"a", "d"}, []string{"b", "c"}, gamelog.Draw),
	}
	before := Replay(m, nil, games)

	games[1].Outcome = gamelog.Undecided
	undone := Replay(m, nil, games)
	assert.NotEqual(t, before["a"], undone["a"])

	games[1].Outcome = gamelog.Team1Win
	assert.Equal(t, before, Replay(m, nil, games))
}

func TestReplay_SeedsUseDefaultVariance(t *testing.T) {
	m := newModel()
	snap := Replay(m, map[string]float64{"a": 2000}, nil)
	require.Contains(t, snap, "a")
	assert.Equal(t, Rating{Mean: 2000, Variance: m.Default().Variance}, snap["a"].Rating)
	assert.Zero(t, snap["a"].Games())

	assert.Equal(t, m.Default(), snap.Rating("nobody", m.Default()))
}

func TestReplay_SeedActsAsBaseCase(t *testing.T) {
	m := newModel()
	games := []gamelog.Game{game(1, []string{"a"}, []string{"b"}, gamelog.Team1Win)}

	plain := Replay(m, nil, games)
	seeded := Replay(m, map[string]float64{"a": 2500}, games)
	assert.Greater(t, seeded["a"].Mean, plain["a"].Mean)
}
