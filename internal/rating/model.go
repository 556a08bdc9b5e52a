package rating

import (
	"math"

	openskill "github.com/intinig/go-openskill/rating"
	"github.com/intinig/go-openskill/types"
	"go.uber.org/thriftrw/ptr"
)

type Rating struct {
	Mean     float64
	Variance float64
}

func (r Rating) Sigma() float64 { return math.Sqrt(r.Variance) }

type Result int

const (
	Team1Wins Result = iota
	Team2Wins
	Tie
)

// Model is the pluggable skill rating system.
type Model interface {
	// Default is the prior of a player with no history and no seed.
	Default() Rating
	// Rate returns the updated ratings of both teams, in input order.
	Rate(team1, team2 []Rating, result Result) ([]Rating, []Rating)
	// Quality estimates how competitive a match is, in [0, 1]; 0.5 is even.
	Quality(team1, team2 []Rating) float64
}

// OpenSkill implements Model with the Plackett-Luce OpenSkill rater.
type OpenSkill struct {
	mu    float64
	sigma float64
	tau   float64
}

// NewOpenSkill builds a rater whose prior is mu ± sigma. A zero tau keeps
// the library default dynamics factor.
func NewOpenSkill(mu, sigma, tau float64) *OpenSkill {
	return &OpenSkill{mu: mu, sigma: sigma, tau: tau}
}

func (o *OpenSkill) Default() Rating {
	return Rating{Mean: o.mu, Variance: o.sigma * o.sigma}
}

func (o *OpenSkill) Rate(team1, team2 []Rating, result Result) ([]Rating, []Rating) {
	if len(team1) == 0 || len(team2) == 0 {
		return team1, team2
	}
	opts := o.options()
	switch result {
	case Team1Wins:
		opts.Score = []int{1, 0}
	case Team2Wins:
		opts.Score = []int{0, 1}
	default:
		opts.Score = []int{1, 1}
	}
	rated := openskill.Rate([]types.Team{o.team(team1), o.team(team2)}, opts)
	return fromTeam(rated[0]), fromTeam(rated[1])
}

func (o *OpenSkill) Quality(team1, team2 []Rating) float64 {
	if len(team1) == 0 || len(team2) == 0 {
		return 0
	}
	p := openskill.PredictWin([]types.Team{o.team(team1), o.team(team2)}, o.options())
	return p[0]
}

func (o *OpenSkill) options() *types.OpenSkillOptions {
	opts := &types.OpenSkillOptions{
		Mu:    ptr.Float64(o.mu),
		Sigma: ptr.Float64(o.sigma),
	}
	if o.tau > 0 {
		opts.Tau = ptr.Float64(o.tau)
	}
	return opts
}

func (o *OpenSkill) team(ratings []Rating) types.Team {
	team := make(types.Team, 0, len(ratings))
	for _, r := range ratings {
		team = append(team, openskill.NewWithOptions(&types.OpenSkillOptions{
			Mu:    ptr.Float64(r.Mean),
			Sigma: ptr.Float64(r.Sigma()),
		}))
	}
	return team
}

func fromTeam(team types.Team) []Rating {
	out := make([]Rating, len(team))
	for i, r := range team {
		out[i] = Rating{Mean: r.Mu, Variance: r.Sigma * r.Sigma}
	}
	return out
}
