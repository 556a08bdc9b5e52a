package balance

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/DoyleJ11/queuebot/internal/rating"
)

var ErrInsufficientPlayers = errors.New("not enough players")

type Player struct {
	ID     string
	Rating rating.Rating
}

type Split struct {
	Team1 []Player
	Team2 []Player
	// Imbalance is the absolute difference between the team mean sums.
	Imbalance float64
}

func (s Split) IDs() ([]string, []string) {
	return ids(s.Team1), ids(s.Team2)
}

func (s Split) Ratings() ([]rating.Rating, []rating.Rating) {
	return ratings(s.Team1), ratings(s.Team2)
}

// Balance partitions players into two teams whose rating mean sums are as
// close as possible. Every combination is tried: the lowest rated player is
// fixed on one side and each choice of len/2-1 teammates is scored. Which of
// the two groups becomes team 1 is decided by a coin flip from rng. An odd
// player goes to team 2.
func Balance(players []Player, rng *rand.Rand) (Split, error) {
	n := len(players)
	if n < 2 {
		return Split{}, fmt.Errorf("%w: need at least 2, got %d", ErrInsufficientPlayers, n)
	}

	sorted := slices.Clone(players)
	slices.SortStableFunc(sorted, func(a, b Player) int {
		if c := cmp.Compare(b.Rating.Mean, a.Rating.Mean); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	total := 0.0
	for _, p := range sorted {
		total += p.Rating.Mean
	}
	anchor := n - 1
	goal := total/2 - sorted[anchor].Rating.Mean

	best := math.Inf(1)
	var bestPick []int
	gen := combin.NewCombinationGenerator(n-1, n/2-1)
	for gen.Next() {
		pick := gen.Combination(nil)
		sum := 0.0
		for _, i := range pick {
			sum += sorted[i].Rating.Mean
		}
		if score := math.Abs(goal - sum); score < best {
			best = score
			bestPick = pick
		}
	}

	inAnchor := make([]bool, n)
	inAnchor[anchor] = true
	for _, i := range bestPick {
		inAnchor[i] = true
	}

	var split Split
	for i, p := range sorted {
		if inAnchor[i] {
			split.Team1 = append(split.Team1, p)
		} else {
			split.Team2 = append(split.Team2, p)
		}
	}
	if n%2 == 0 && rng.IntN(2) == 1 {
		split.Team1, split.Team2 = split.Team2, split.Team1
	}
	split.Imbalance = math.Abs(sum(split.Team1) - sum(split.Team2))
	return split, nil
}

// Quality scores the split with the rating model, 0.5 meaning an even match.
func Quality(m rating.Model, s Split) float64 {
	t1, t2 := s.Ratings()
	return m.Quality(t1, t2)
}

func sum(players []Player) float64 {
	s := 0.0
	for _, p := range players {
		s += p.Rating.Mean
	}
	return s
}

func ids(players []Player) []string {
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = p.ID
	}
	return out
}

func ratings(players []Player) []rating.Rating {
	out := make([]rating.Rating, len(players))
	for i, p := range players {
		out[i] = p.Rating
	}
	return out
}
