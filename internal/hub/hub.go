package hub

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/queuebot/internal/gamelog"
	"github.com/DoyleJ11/queuebot/internal/queue"
	"github.com/DoyleJ11/queuebot/internal/rating"
)

var ErrUnknownLobby = errors.New("this channel is not a lobby")
var ErrUnknownGame = errors.New("game not found")
var ErrGameAlreadyDecided = errors.New("the game already has a result")
var ErrSameTeam = errors.New("both players are on the same team")
var ErrPlayerNotInMatch = errors.New("player is not in the game")
var ErrNoGames = errors.New("no games have been played yet")
var ErrBadRating = errors.New("rating must be a finite number")
var ErrBadOutcome = errors.New("outcome must be a team win or a draw")
var ErrClosed = errors.New("hub is shut down")

type LobbyConfig struct {
	Channel  string
	Name     string
	Capacity int
}

type Config struct {
	Lobbies []LobbyConfig
	// DefaultTimeout is how long a join stays queued.
	DefaultTimeout time.Duration
	// MaxTimeout caps Expire.
	MaxTimeout time.Duration
	// Warn is how long before expiry the player is warned. Zero disables it.
	Warn          time.Duration
	SweepInterval time.Duration
}

type Deps struct {
	Games  gamelog.Store
	Seeds  gamelog.SeedStore
	Model  rating.Model
	Sink   Sink
	Logger *zap.Logger
	Rand   *rand.Rand
	Now    func() time.Time
}

type Msg interface{ isHubMsg() }

type call struct {
	fn   func(ctx context.Context) error
	done chan error
}

type unsubscribe struct {
	lobby    string
	clientID string
}

func (call) isHubMsg()        {}
func (unsubscribe) isHubMsg() {}

type lobbyState struct {
	channel string
	queue   *queue.Lobby
	ratings rating.Snapshot
	clients map[string]chan Event
}

// Hub owns every lobby. All reads and writes run on its goroutine, one at a
// time, together with the periodic expiry sweep.
type Hub struct {
	inbox   chan Msg
	cfg     Config
	deps    Deps
	log     *zap.Logger
	lobbies map[string]*lobbyState
	order   []string
	seeds   map[string]float64
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New loads the game log, replays every lobby and starts the hub goroutine.
func New(parent context.Context, cfg Config, deps Deps) (*Hub, error) {
	if deps.Games == nil || deps.Seeds == nil || deps.Model == nil {
		return nil, errors.New("hub: game store, seed store and rating model are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Sink == nil {
		deps.Sink = SinkFunc(func(Event) {})
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		deps.Rand = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = time.Hour
	}
	if cfg.MaxTimeout < cfg.DefaultTimeout {
		cfg.MaxTimeout = cfg.DefaultTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	h := &Hub{
		inbox:   make(chan Msg, 64),
		cfg:     cfg,
		deps:    deps,
		log:     deps.Logger.Named("hub"),
		lobbies: make(map[string]*lobbyState, len(cfg.Lobbies)),
		done:    make(chan struct{}),
	}
	for _, lc := range cfg.Lobbies {
		if _, dup := h.lobbies[lc.Channel]; dup {
			return nil, fmt.Errorf("hub: lobby channel %s configured twice", lc.Channel)
		}
		q, err := queue.NewLobby(lc.Name, lc.Capacity)
		if err != nil {
			return nil, fmt.Errorf("hub: lobby %s: %w", lc.Name, err)
		}
		h.lobbies[lc.Channel] = &lobbyState{
			channel: lc.Channel,
			queue:   q,
			clients: make(map[string]chan Event),
		}
		h.order = append(h.order, lc.Channel)
	}

	seeds, err := deps.Seeds.Seeds(parent)
	if err != nil {
		return nil, fmt.Errorf("hub: loading seed ratings: %w", err)
	}
	if seeds == nil {
		seeds = make(map[string]float64)
	}
	h.seeds = seeds
	all, err := deps.Games.ListAll(parent)
	if err != nil {
		return nil, fmt.Errorf("hub: loading games: %w", err)
	}
	for _, ls := range h.lobbies {
		ls.ratings = h.replay(all[ls.channel])
	}

	h.ctx, h.cancel = context.WithCancel(parent)
	go h.loop()
	return h, nil
}

// Close stops the hub and waits for its goroutine to exit.
func (h *Hub) Close() {
	h.cancel()
	<-h.done
}

func (h *Hub) loop() {
	defer close(h.done)
	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case <-ticker.C:
			h.sweep(h.deps.Now())

		case m := <-h.inbox:
			switch msg := m.(type) {
			case call:
				msg.done <- msg.fn(h.ctx)

			case unsubscribe:
				if ls := h.lobbies[msg.lobby]; ls != nil {
					if ch, ok := ls.clients[msg.clientID]; ok {
						close(ch)
						delete(ls.clients, msg.clientID)
					}
				}
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, ls := range h.lobbies {
		for id, ch := range ls.clients {
			close(ch)
			delete(ls.clients, id)
		}
	}
}

// do runs fn on the hub goroutine and waits for its result. Once started fn
// always runs to completion, even if ctx is cancelled meanwhile.
func (h *Hub) do(ctx context.Context, fn func(ctx context.Context) error) error {
	c := call{fn: fn, done: make(chan error, 1)}
	select {
	case h.inbox <- c:
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.done:
		return err
	case <-h.done:
		select {
		case err := <-c.done:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers outbox for every event of a lobby and returns the
// current queue. outbox is closed when the subscriber falls behind, on
// Unsubscribe, or when the hub shuts down.
func (h *Hub) Subscribe(ctx context.Context, lobby, clientID string, outbox chan Event) (QueueView, error) {
	var view QueueView
	err := h.do(ctx, func(context.Context) error {
		ls, err := h.lobby(lobby)
		if err != nil {
			return err
		}
		ls.clients[clientID] = outbox
		view = h.view(ls)
		return nil
	})
	return view, err
}

func (h *Hub) Unsubscribe(lobby, clientID string) {
	select {
	case h.inbox <- unsubscribe{lobby: lobby, clientID: clientID}:
	case <-h.done:
	}
}

func (h *Hub) lobby(channel string) (*lobbyState, error) {
	ls, ok := h.lobbies[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLobby, channel)
	}
	return ls, nil
}

func (h *Hub) view(ls *lobbyState) QueueView {
	entries := ls.queue.Entries()
	players := make([]string, len(entries))
	for i, e := range entries {
		players[i] = e.PlayerID
	}
	return QueueView{
		Lobby:    ls.channel,
		Name:     ls.queue.Name,
		Capacity: ls.queue.Capacity(),
		Frozen:   ls.queue.Frozen(),
		Players:  players,
	}
}

func (h *Hub) publish(ls *lobbyState, e Event) {
	if e.At.IsZero() {
		e.At = h.deps.Now()
	}
	if ls != nil {
		e.Lobby = ls.channel
		e.LobbyName = ls.queue.Name
		queueSize.WithLabelValues(ls.queue.Name).Set(float64(ls.queue.Len()))
	}
	h.deps.Sink.Publish(e)
	if ls == nil {
		return
	}
	for id, ch := range ls.clients {
		select {
		case ch <- e:
		default:
			// slow subscriber
			close(ch)
			delete(ls.clients, id)
		}
	}
}

// sweep expires and warns queued players in every lobby.
func (h *Hub) sweep(now time.Time) {
	for _, channel := range h.order {
		ls := h.lobbies[channel]
		for _, n := range ls.queue.Sweep(now, h.cfg.SweepInterval) {
			switch n.Kind {
			case queue.NoticeTimedOut:
				queueTimeouts.WithLabelValues(ls.queue.Name).Inc()
				h.publish(ls, Event{Kind: PlayerLeft, Player: n.PlayerID, Reason: ReasonTimeout, Queue: h.view(ls), At: now})
			case queue.NoticeExpiring:
				h.publish(ls, Event{Kind: QueueExpiring, Player: n.PlayerID, Minutes: n.Minutes, Queue: h.view(ls), At: now})
			}
		}
	}
}

// Sweep runs the expiry sweep immediately as of now.
func (h *Hub) Sweep(ctx context.Context, now time.Time) error {
	return h.do(ctx, func(context.Context) error {
		h.sweep(now)
		return nil
	})
}

func (h *Hub) replay(games []gamelog.Game) rating.Snapshot {
	start := time.Now()
	defer func() { replayDuration.Observe(time.Since(start).Seconds()) }()
	return rating.Replay(h.deps.Model, h.seeds, games)
}

// replayLobby rebuilds a lobby's ratings from the stored log.
func (h *Hub) replayLobby(ctx context.Context, ls *lobbyState) error {
	games, err := h.deps.Games.List(ctx, ls.channel)
	if err != nil {
		return fmt.Errorf("loading games of %s: %w", ls.queue.Name, err)
	}
	ls.ratings = h.replay(games)
	return nil
}

// best is the highest mean of a player across every lobby, zero if unrated.
func (h *Hub) best(playerID string) float64 {
	best := 0.0
	for _, ls := range h.lobbies {
		if r, ok := ls.ratings[playerID]; ok && r.Mean > best {
			best = r.Mean
		}
	}
	return best
}
