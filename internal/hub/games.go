package hub

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/queuebot/internal/balance"
	"github.com/DoyleJ11/queuebot/internal/gamelog"
	"github.com/DoyleJ11/queuebot/internal/rating"
)

// PlayerView is a player's standing in one lobby.
type PlayerView struct {
	Player string
	Record rating.Record
	// Rank is the 1-based position by mean among rated players, 0 if unrated.
	Rank   int
	Queued bool
}

// Score records the result of an undecided game and replays the lobby.
func (h *Hub) Score(ctx context.Context, lobby string, id int, outcome gamelog.Outcome) (gamelog.Game, error) {
	var out gamelog.Game
	err := h.do(ctx, func(ctx context.Context) error {
		if !outcome.Rated() {
			return fmt.Errorf("%w: %s", ErrBadOutcome, outcome)
		}
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		g, err := h.get(ctx, ls, id)
		if err != nil {
			return err
		}
		if g.Outcome != gamelog.Undecided {
			return fmt.Errorf("game %d: %w", id, ErrGameAlreadyDecided)
		}
		g.Outcome = outcome
		if err := h.deps.Games.Update(ctx, g); err != nil {
			return fmt.Errorf("saving game %d: %w", id, err)
		}
		gamesScored.WithLabelValues(ls.queue.Name, outcome.String()).Inc()
		out = g

		changes, err := h.rerate(ctx, ls, g.Players())
		if err != nil {
			h.log.Error("replay failed after scoring", zap.String("lobby", ls.queue.Name), zap.Int("game", g.ID), zap.Error(err))
			h.publish(ls, Event{Kind: GameScored, Game: &g, Previous: gamelog.Undecided})
			return nil
		}
		h.publish(ls, Event{Kind: GameScored, Game: &g, Previous: gamelog.Undecided, Changes: changes})
		h.publish(ls, Event{Kind: RatingsChanged})
		return nil
	})
	return out, err
}

// Cancel marks an undecided game as cancelled. Ratings are unaffected.
func (h *Hub) Cancel(ctx context.Context, lobby string, id int) (gamelog.Game, error) {
	var out gamelog.Game
	err := h.do(ctx, func(ctx context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		g, err := h.get(ctx, ls, id)
		if err != nil {
			return err
		}
		if g.Outcome != gamelog.Undecided {
			return fmt.Errorf("game %d: %w", id, ErrGameAlreadyDecided)
		}
		g.Outcome = gamelog.Cancelled
		if err := h.deps.Games.Update(ctx, g); err != nil {
			return fmt.Errorf("saving game %d: %w", id, err)
		}
		out = g
		h.publish(ls, Event{Kind: GameCancelled, Game: &g, Previous: gamelog.Undecided})
		return nil
	})
	return out, err
}

// Undo returns a game to undecided. Undoing an undecided game does nothing;
// undoing a cancelled game does not touch ratings.
func (h *Hub) Undo(ctx context.Context, lobby string, id int) (gamelog.Game, error) {
	var out gamelog.Game
	err := h.do(ctx, func(ctx context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		g, err := h.get(ctx, ls, id)
		if err != nil {
			return err
		}
		out = g
		prev := g.Outcome
		if prev == gamelog.Undecided {
			return nil
		}
		g.Outcome = gamelog.Undecided
		if err := h.deps.Games.Update(ctx, g); err != nil {
			return fmt.Errorf("saving game %d: %w", id, err)
		}
		out = g

		if !prev.Rated() {
			h.publish(ls, Event{Kind: GameUndone, Game: &g, Previous: prev})
			return nil
		}
		changes, err := h.rerate(ctx, ls, g.Players())
		if err != nil {
			h.log.Error("replay failed after undo", zap.String("lobby", ls.queue.Name), zap.Int("game", g.ID), zap.Error(err))
			h.publish(ls, Event{Kind: GameUndone, Game: &g, Previous: prev})
			return nil
		}
		h.publish(ls, Event{Kind: GameUndone, Game: &g, Previous: prev, Changes: changes})
		h.publish(ls, Event{Kind: RatingsChanged})
		return nil
	})
	return out, err
}

// Rebalance recomputes the teams of the lobby's latest game.
func (h *Hub) Rebalance(ctx context.Context, lobby string) (gamelog.Game, error) {
	var out gamelog.Game
	err := h.do(ctx, func(ctx context.Context) error {
		ls, g, err := h.editable(ctx, lobby)
		if err != nil {
			return err
		}
		before := g.Clone()

		def := h.deps.Model.Default()
		players := make([]balance.Player, 0, len(g.Team1)+len(g.Team2))
		for _, p := range g.Players() {
			players = append(players, balance.Player{ID: p, Rating: ls.ratings.Rating(p, def)})
		}
		split, err := balance.Balance(players, h.deps.Rand)
		if err != nil {
			return err
		}
		g.Team1, g.Team2 = split.IDs()
		if err := h.deps.Games.Update(ctx, g); err != nil {
			return fmt.Errorf("saving game %d: %w", g.ID, err)
		}
		out = g
		h.publish(ls, Event{Kind: TeamsChanged, Game: &g, Before: &before, Quality: balance.Quality(h.deps.Model, split)})
		return nil
	})
	return out, err
}

// Swap edits the latest game. If other is playing, the two players trade
// teams; otherwise other takes player's place.
func (h *Hub) Swap(ctx context.Context, lobby, player, other string) (gamelog.Game, error) {
	var out gamelog.Game
	err := h.do(ctx, func(ctx context.Context) error {
		ls, g, err := h.editable(ctx, lobby)
		if err != nil {
			return err
		}
		before := g.Clone()

		from := g.TeamOf(player)
		if from == 0 {
			return fmt.Errorf("%s: %w", player, ErrPlayerNotInMatch)
		}
		to := g.TeamOf(other)
		if from == to {
			return ErrSameTeam
		}
		exchange(&g, player, other)
		if err := h.deps.Games.Update(ctx, g); err != nil {
			return fmt.Errorf("saving game %d: %w", g.ID, err)
		}
		out = g
		h.publish(ls, Event{Kind: TeamsChanged, Game: &g, Before: &before, Quality: h.quality(ls, g)})
		return nil
	})
	return out, err
}

// SetSeed stores an administrative rating for a player and replays every
// lobby.
func (h *Hub) SetSeed(ctx context.Context, playerID string, mean float64) error {
	return h.do(ctx, func(ctx context.Context) error {
		if math.IsNaN(mean) || math.IsInf(mean, 0) {
			return fmt.Errorf("%w: %v", ErrBadRating, mean)
		}
		if err := h.deps.Seeds.SetSeed(ctx, playerID, mean); err != nil {
			return fmt.Errorf("saving seed rating: %w", err)
		}
		h.seeds[playerID] = mean

		var errs error
		for _, channel := range h.order {
			ls := h.lobbies[channel]
			if err := h.replayLobby(ctx, ls); err != nil {
				h.log.Error("replay failed", zap.String("lobby", ls.queue.Name), zap.Error(err))
				errs = multierr.Append(errs, err)
				continue
			}
			h.publish(ls, Event{Kind: RatingsChanged})
		}
		h.publish(nil, Event{Kind: SeedChanged, Player: playerID, Mean: mean})
		return errs
	})
}

func (h *Hub) Game(ctx context.Context, lobby string, id int) (gamelog.Game, error) {
	var out gamelog.Game
	err := h.do(ctx, func(ctx context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		out, err = h.get(ctx, ls, id)
		return err
	})
	return out, err
}

func (h *Hub) LastGame(ctx context.Context, lobby string) (gamelog.Game, error) {
	var out gamelog.Game
	err := h.do(ctx, func(ctx context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		out, err = h.latest(ctx, ls)
		return err
	})
	return out, err
}

// Games returns up to limit of the lobby's most recent games, newest first.
func (h *Hub) Games(ctx context.Context, lobby string, limit int) ([]gamelog.Game, error) {
	var out []gamelog.Game
	err := h.do(ctx, func(ctx context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		games, err := h.deps.Games.List(ctx, ls.channel)
		if err != nil {
			return err
		}
		slices.Reverse(games)
		if limit > 0 && len(games) > limit {
			games = games[:limit]
		}
		out = games
		return nil
	})
	return out, err
}

func (h *Hub) Player(ctx context.Context, lobby, playerID string) (PlayerView, error) {
	var out PlayerView
	err := h.do(ctx, func(context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		out = PlayerView{Player: playerID, Queued: ls.queue.Contains(playerID)}
		rec, ok := ls.ratings[playerID]
		if !ok {
			out.Record = rating.Record{Rating: h.deps.Model.Default()}
			return nil
		}
		out.Record = rec
		out.Rank = 1
		for id, r := range ls.ratings {
			if r.Mean > rec.Mean || (r.Mean == rec.Mean && id < playerID) {
				out.Rank++
			}
		}
		return nil
	})
	return out, err
}

// Ratings returns a copy of a lobby's current snapshot.
func (h *Hub) Ratings(ctx context.Context, lobby string) (rating.Snapshot, error) {
	var out rating.Snapshot
	err := h.do(ctx, func(context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		out = maps.Clone(ls.ratings)
		return nil
	})
	return out, err
}

// Best returns each player's highest mean across every lobby.
func (h *Hub) Best(ctx context.Context, players []string) (map[string]float64, error) {
	out := make(map[string]float64, len(players))
	err := h.do(ctx, func(context.Context) error {
		for _, p := range players {
			out[p] = h.best(p)
		}
		return nil
	})
	return out, err
}

func (h *Hub) get(ctx context.Context, ls *lobbyState, id int) (gamelog.Game, error) {
	g, err := h.deps.Games.Get(ctx, ls.channel, id)
	if errors.Is(err, gamelog.ErrNotFound) {
		return gamelog.Game{}, fmt.Errorf("%w: %d", ErrUnknownGame, id)
	}
	return g, err
}

func (h *Hub) latest(ctx context.Context, ls *lobbyState) (gamelog.Game, error) {
	games, err := h.deps.Games.List(ctx, ls.channel)
	if err != nil {
		return gamelog.Game{}, err
	}
	if len(games) == 0 {
		return gamelog.Game{}, ErrNoGames
	}
	return slices.MaxFunc(games, func(a, b gamelog.Game) int { return cmp.Compare(a.ID, b.ID) }), nil
}

// editable returns the latest game of a lobby if its teams may still change.
func (h *Hub) editable(ctx context.Context, lobby string) (*lobbyState, gamelog.Game, error) {
	ls, err := h.lobby(lobby)
	if err != nil {
		return nil, gamelog.Game{}, err
	}
	g, err := h.latest(ctx, ls)
	if err != nil {
		return nil, gamelog.Game{}, err
	}
	if g.Outcome != gamelog.Undecided {
		return nil, gamelog.Game{}, fmt.Errorf("game %d: %w", g.ID, ErrGameAlreadyDecided)
	}
	return ls, g, nil
}

// rerate replays the lobby and reports how the given players' means moved.
func (h *Hub) rerate(ctx context.Context, ls *lobbyState, players []string) ([]RatingChange, error) {
	def := h.deps.Model.Default()
	before := ls.ratings
	if err := h.replayLobby(ctx, ls); err != nil {
		return nil, err
	}
	changes := make([]RatingChange, len(players))
	for i, p := range players {
		changes[i] = RatingChange{
			Player: p,
			Old:    before.Rating(p, def).Mean,
			New:    ls.ratings.Rating(p, def).Mean,
			Best:   h.best(p),
		}
	}
	return changes, nil
}

func (h *Hub) quality(ls *lobbyState, g gamelog.Game) float64 {
	def := h.deps.Model.Default()
	t1 := make([]rating.Rating, len(g.Team1))
	for i, p := range g.Team1 {
		t1[i] = ls.ratings.Rating(p, def)
	}
	t2 := make([]rating.Rating, len(g.Team2))
	for i, p := range g.Team2 {
		t2[i] = ls.ratings.Rating(p, def)
	}
	return h.deps.Model.Quality(t1, t2)
}

// exchange swaps a and b wherever they appear in the teams. If b is not
// playing it simply takes a's place.
func exchange(g *gamelog.Game, a, b string) {
	for _, team := range [][]string{g.Team1, g.Team2} {
		for i, p := range team {
			switch p {
			case a:
				team[i] = b
			case b:
				team[i] = a
			}
		}
	}
}
