package balance

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/queuebot/internal/rating"
)

func players(means map[string]float64) []Player {
	out := make([]Player, 0, len(means))
	for id, m := range means {
		out = append(out, Player{ID: id, Rating: rating.Rating{Mean: m, Variance: 100}})
	}
	return out
}

func newRand(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, seed)) }

// sides returns the two teams ordered so the one containing want comes first.
func sides(s Split, want string) ([]string, []string) {
	t1, t2 := s.IDs()
	for _, id := range t2 {
		if id == want {
			return t2, t1
		}
	}
	return t1, t2
}

func TestBalance_RejectsTooFewPlayers(t *testing.T) {
	for _, n := range []int{0, 1} {
		_, err := Balance(players(map[string]float64{"a": 1})[:n], newRand(1))
		assert.ErrorIs(t, err, ErrInsufficientPlayers)
	}
}

func TestBalance_MinimisesImbalance(t *testing.T) {
	tests := []struct {
		name      string
		means     map[string]float64
		with      string
		wantWith  []string
		wantOther []string
		imbalance float64
	}{
		{
			name:      "four players",
			means:     map[string]float64{"A": 100, "B": 50, "C": 30, "D": 20},
			with:      "D",
			wantWith:  []string{"A", "D"},
			wantOther: []string{"B", "C"},
			imbalance: 40,
		},
		{
			name:      "perfect split",
			means:     map[string]float64{"a": 40, "b": 30, "c": 20, "d": 10},
			with:      "d",
			wantWith:  []string{"a", "d"},
			wantOther: []string{"b", "c"},
			imbalance: 0,
		},
		{
			name:      "two players",
			means:     map[string]float64{"x": 10, "y": 5},
			with:      "y",
			wantWith:  []string{"y"},
			wantOther: []string{"x"},
			imbalance: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Balance(players(tt.means), newRand(7))
			require.NoError(t, err)
			with, other := sides(s, tt.with)
			assert.ElementsMatch(t, tt.wantWith, with)
			assert.ElementsMatch(t, tt.wantOther, other)
			assert.InDelta(t, tt.imbalance, s.Imbalance, 1e-9)
		})
	}
}

func TestBalance_OddPlayerGoesToTeam2(t *testing.T) {
	means := map[string]float64{"a": 50, "b": 40, "c": 30, "d": 20, "e": 10}
	for seed := uint64(0); seed < 8; seed++ {
		s, err := Balance(players(means), newRand(seed))
		require.NoError(t, err)
		assert.Len(t, s.Team1, 2)
		assert.Len(t, s.Team2, 3)
	}
}

func TestBalance_CoinFlipOnlySwapsLabels(t *testing.T) {
	means := map[string]float64{"a": 10, "b": 10, "c": 10, "d": 10, "e": 10, "f": 10}
	seen := map[bool]bool{}
	for seed := uint64(0); seed < 32; seed++ {
		s, err := Balance(players(means), newRand(seed))
		require.NoError(t, err)
		assert.Len(t, s.Team1, 3)
		assert.Len(t, s.Team2, 3)
		assert.Zero(t, s.Imbalance)

		with, other := sides(s, "f")
		assert.ElementsMatch(t, []string{"a", "b", "f"}, with)
		assert.ElementsMatch(t, []string{"c", "d", "e"}, other)
		t1, _ := s.IDs()
		seen[t1[len(t1)-1] == "f"] = true
	}
	assert.Len(t, seen, 2, "both label assignments should occur")
}

func TestBalance_SameSeedSameResult(t *testing.T) {
	means := map[string]float64{"a": 31, "b": 27, "c": 22, "d": 19, "e": 14, "f": 9, "g": 6, "h": 2}
	first, err := Balance(players(means), newRand(3))
	require.NoError(t, err)
	second, err := Balance(players(means), newRand(3))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestQuality_EvenSplitIsHalf(t *testing.T) {
	m := rating.NewOpenSkill(1500, 500, 0)
	means := map[string]float64{"a": 1500, "b": 1500, "c": 1500, "d": 1500}
	s, err := Balance(players(means), newRand(1))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, Quality(m, s), 1e-9)
}
