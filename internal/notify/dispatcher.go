package notify

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/queuebot/internal/hub"
	"github.com/DoyleJ11/queuebot/internal/leaderboard"
	"github.com/DoyleJ11/queuebot/internal/rating"
)

// RatingSource supplies the current snapshot of a lobby.
type RatingSource interface {
	Ratings(ctx context.Context, lobby string) (rating.Snapshot, error)
}

type Config struct {
	// Prefix is the command prefix quoted in hints.
	Prefix     string
	RankedRole string
	Tiers      leaderboard.Tiers
	// Webhooks maps a lobby channel to the webhook carrying its leaderboard.
	Webhooks      map[string]Webhook
	BridgeChannel string
	PageLen       int
	// Concurrency bounds the platform calls of one event.
	Concurrency int
}

// Dispatcher turns hub events into platform calls. Publish only queues the
// event; Run delivers them in order on its own goroutine.
type Dispatcher struct {
	platform Platform
	ratings  RatingSource
	cfg      Config
	log      *zap.Logger

	mu      sync.Mutex
	pending []hub.Event
	wake    chan struct{}

	// boards holds the webhook message ids of each lobby's leaderboard.
	boards map[string][]string
}

func NewDispatcher(p Platform, ratings RatingSource, cfg Config, log *zap.Logger) *Dispatcher {
	if cfg.PageLen <= 0 {
		cfg.PageLen = 15
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		platform: p,
		ratings:  ratings,
		cfg:      cfg,
		log:      log.Named("notify"),
		wake:     make(chan struct{}, 1),
		boards:   make(map[string][]string),
	}
}

// SetRatings wires the rating source once the hub exists.
func (d *Dispatcher) SetRatings(r RatingSource) { d.ratings = r }

// Publish implements hub.Sink. It never blocks.
func (d *Dispatcher) Publish(e hub.Event) {
	d.mu.Lock()
	d.pending = append(d.pending, e)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run delivers queued events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.wake:
		}
		for _, e := range d.take() {
			d.Handle(ctx, e)
		}
	}
}

func (d *Dispatcher) take() []hub.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.pending
	d.pending = nil
	return out
}

// Handle performs every platform call for one event and logs the failures.
func (d *Dispatcher) Handle(ctx context.Context, e hub.Event) {
	var err error
	switch e.Kind {
	case hub.PlayerJoined:
		err = d.say(ctx, e.Lobby, queueLine(e, "joined the queue."))
	case hub.PlayerLeft:
		err = d.playerLeft(ctx, e)
	case hub.QueueExpiring:
		err = d.platform.DirectMessage(ctx, e.Player, Message{Description: expiringText(e.Minutes, d.cfg.Prefix)})
	case hub.QueueCleared:
		err = d.say(ctx, e.Lobby, "Queue cleared.")
	case hub.QueueFrozen:
		err = d.say(ctx, e.Lobby, "Queue frozen.")
	case hub.QueueUnfrozen:
		err = d.say(ctx, e.Lobby, "Queue unfrozen.")
	case hub.CapacityChanged:
		err = d.say(ctx, e.Lobby, capacityText(e))
	case hub.MatchStarted:
		err = d.matchStarted(ctx, e)
	case hub.TeamsChanged:
		err = d.teamsChanged(ctx, e)
	case hub.GameScored:
		err = d.gameScored(ctx, e)
	case hub.GameCancelled:
		err = d.gameCancelled(ctx, e)
	case hub.GameUndone:
		err = d.say(ctx, e.Lobby, undoneText(e))
	case hub.RatingsChanged:
		err = d.publishLeaderboard(ctx, e.Lobby)
	case hub.SeedChanged:
		d.log.Info("seed rating changed", zap.String("player", e.Player), zap.Float64("mean", e.Mean))
	}
	if err != nil {
		d.log.Warn("delivering event failed",
			zap.String("kind", string(e.Kind)),
			zap.String("lobby", e.LobbyName),
			zap.Error(err))
	}
}

func (d *Dispatcher) say(ctx context.Context, channelID, text string) error {
	return d.platform.SendMessage(ctx, channelID, Message{Description: text})
}

// fanOut runs tasks concurrently, bounded by the configured concurrency, and
// returns every failure.
func (d *Dispatcher) fanOut(tasks ...func() error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	g.SetLimit(d.cfg.Concurrency)
	for _, task := range tasks {
		g.Go(func() error {
			if err := task(); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
