package hub

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/queuebot/internal/balance"
	"github.com/DoyleJ11/queuebot/internal/gamelog"
	"github.com/DoyleJ11/queuebot/internal/queue"
)

// Join queues a player. A join that fills the queue starts a match.
func (h *Hub) Join(ctx context.Context, lobby, playerID string) error {
	return h.do(ctx, func(ctx context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		return h.join(ctx, ls, playerID, false)
	})
}

// ForceJoin queues every player even while the lobby is frozen. Players that
// cannot be queued are reported together; the others are still queued.
func (h *Hub) ForceJoin(ctx context.Context, lobby string, players []string) error {
	return h.do(ctx, func(ctx context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		var errs error
		for _, p := range players {
			errs = multierr.Append(errs, h.join(ctx, ls, p, true))
		}
		return errs
	})
}

func (h *Hub) Leave(ctx context.Context, lobby, playerID string) error {
	return h.do(ctx, func(context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		return h.leave(ls, playerID, false)
	})
}

func (h *Hub) ForceLeave(ctx context.Context, lobby string, players []string) error {
	return h.do(ctx, func(context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		var errs error
		for _, p := range players {
			errs = multierr.Append(errs, h.leave(ls, p, true))
		}
		return errs
	})
}

// SetCapacity changes the lobby size. If enough players are already waiting
// one or more matches start immediately.
func (h *Hub) SetCapacity(ctx context.Context, lobby string, capacity int) error {
	return h.do(ctx, func(ctx context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		batches, err := ls.queue.SetCapacity(capacity)
		if err != nil {
			return err
		}
		h.publish(ls, Event{Kind: CapacityChanged, Queue: h.view(ls)})
		var errs error
		for _, batch := range batches {
			errs = multierr.Append(errs, h.startMatch(ctx, ls, batch))
		}
		return errs
	})
}

func (h *Hub) Freeze(ctx context.Context, lobby string) error {
	return h.do(ctx, func(context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		ls.queue.Freeze()
		h.publish(ls, Event{Kind: QueueFrozen, Queue: h.view(ls)})
		return nil
	})
}

func (h *Hub) Unfreeze(ctx context.Context, lobby string) error {
	return h.do(ctx, func(context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		ls.queue.Unfreeze()
		h.publish(ls, Event{Kind: QueueUnfrozen, Queue: h.view(ls)})
		return nil
	})
}

// Clear empties the queue without starting a match and returns the players
// that were waiting.
func (h *Hub) Clear(ctx context.Context, lobby string) ([]string, error) {
	var removed []string
	err := h.do(ctx, func(context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		for _, e := range ls.queue.Clear() {
			removed = append(removed, e.PlayerID)
		}
		h.publish(ls, Event{Kind: QueueCleared, Queue: h.view(ls)})
		return nil
	})
	return removed, err
}

func (h *Hub) Queue(ctx context.Context, lobby string) (QueueView, error) {
	var view QueueView
	err := h.do(ctx, func(context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		view = h.view(ls)
		return nil
	})
	return view, err
}

// Lobbies returns every lobby's queue in configuration order.
func (h *Hub) Lobbies(ctx context.Context) ([]QueueView, error) {
	var views []QueueView
	err := h.do(ctx, func(context.Context) error {
		for _, channel := range h.order {
			views = append(views, h.view(h.lobbies[channel]))
		}
		return nil
	})
	return views, err
}

// Expire moves a queued player's timeout to d from now, capped at the
// configured maximum. A non-positive d means the maximum. The warning is
// rearmed.
func (h *Hub) Expire(ctx context.Context, lobby, playerID string, d time.Duration) (time.Time, error) {
	var expireAt time.Time
	err := h.do(ctx, func(context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		if d <= 0 || d > h.cfg.MaxTimeout {
			d = h.cfg.MaxTimeout
		}
		now := h.deps.Now()
		expireAt = now.Add(d)
		return ls.queue.Extend(playerID, expireAt, h.warnAt(now, expireAt))
	})
	return expireAt, err
}

// RemoveEverywhere drops players from every queue because they started a
// match elsewhere. Absent players are ignored. It returns how many queue
// entries were removed.
func (h *Hub) RemoveEverywhere(ctx context.Context, players []string) (int, error) {
	var removed int
	err := h.do(ctx, func(context.Context) error {
		removed = h.removeEverywhere(players, nil)
		return nil
	})
	return removed, err
}

func (h *Hub) join(ctx context.Context, ls *lobbyState, playerID string, forced bool) error {
	now := h.deps.Now()
	expireAt := now.Add(h.cfg.DefaultTimeout)
	drained, err := ls.queue.Join(queue.Entry{
		PlayerID: playerID,
		JoinedAt: now,
		ExpireAt: expireAt,
		WarnAt:   h.warnAt(now, expireAt),
	}, forced)
	if err != nil {
		return err
	}
	queueJoins.WithLabelValues(ls.queue.Name).Inc()

	view := h.view(ls)
	if drained != nil {
		view.Players = entryIDs(drained)
	}
	h.publish(ls, Event{Kind: PlayerJoined, Player: playerID, Queue: view})

	if drained != nil {
		return h.startMatch(ctx, ls, drained)
	}
	return nil
}

func (h *Hub) leave(ls *lobbyState, playerID string, forced bool) error {
	if err := ls.queue.Leave(playerID, forced); err != nil {
		return err
	}
	reason := ReasonManual
	if forced {
		reason = ReasonForced
	}
	h.publish(ls, Event{Kind: PlayerLeft, Player: playerID, Reason: reason, Queue: h.view(ls)})
	return nil
}

// startMatch balances drained players, records the game and pulls the
// players out of every other queue. The game is stored before any event is
// published.
func (h *Hub) startMatch(ctx context.Context, ls *lobbyState, entries []queue.Entry) error {
	def := h.deps.Model.Default()
	players := make([]balance.Player, len(entries))
	for i, e := range entries {
		players[i] = balance.Player{ID: e.PlayerID, Rating: ls.ratings.Rating(e.PlayerID, def)}
	}
	split, err := balance.Balance(players, h.deps.Rand)
	if err != nil {
		return err
	}

	team1, team2 := split.IDs()
	g := gamelog.Game{
		Lobby:     ls.channel,
		Team1:     team1,
		Team2:     team2,
		Outcome:   gamelog.Undecided,
		CreatedAt: h.deps.Now(),
	}
	if err := h.deps.Games.Append(ctx, &g); err != nil {
		h.log.Error("recording game failed, drained players were not re-queued",
			zap.String("lobby", ls.queue.Name),
			zap.Strings("players", entryIDs(entries)),
			zap.Error(err))
		return fmt.Errorf("recording game: %w", err)
	}
	matchesStarted.WithLabelValues(ls.queue.Name).Inc()
	h.log.Info("match started",
		zap.String("lobby", ls.queue.Name),
		zap.Int("game", g.ID),
		zap.Float64("imbalance", split.Imbalance))

	h.removeEverywhere(g.Players(), ls)
	h.publish(ls, Event{
		Kind:    MatchStarted,
		Game:    &g,
		Quality: balance.Quality(h.deps.Model, split),
		Queue:   h.view(ls),
	})
	return nil
}

func (h *Hub) removeEverywhere(players []string, except *lobbyState) int {
	removed := 0
	for _, channel := range h.order {
		ls := h.lobbies[channel]
		if ls == except {
			continue
		}
		for _, p := range players {
			if ls.queue.Remove(p) {
				removed++
				h.publish(ls, Event{Kind: PlayerLeft, Player: p, Reason: ReasonGameStarted, Queue: h.view(ls)})
			}
		}
	}
	return removed
}

func (h *Hub) warnAt(now, expireAt time.Time) time.Time {
	if h.cfg.Warn <= 0 || expireAt.Sub(now) <= h.cfg.Warn {
		return time.Time{}
	}
	return expireAt.Add(-h.cfg.Warn)
}

func entryIDs(entries []queue.Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.PlayerID
	}
	return ids
}
