package commands

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/queuebot/internal/gamelog"
	"github.com/DoyleJ11/queuebot/internal/hub"
	"github.com/DoyleJ11/queuebot/internal/leaderboard"
	"github.com/DoyleJ11/queuebot/internal/notify"
	"github.com/DoyleJ11/queuebot/internal/rating"
)

// Hub is the part of the hub the commands drive.
type Hub interface {
	Join(ctx context.Context, lobby, playerID string) error
	ForceJoin(ctx context.Context, lobby string, players []string) error
	Leave(ctx context.Context, lobby, playerID string) error
	ForceLeave(ctx context.Context, lobby string, players []string) error
	SetCapacity(ctx context.Context, lobby string, capacity int) error
	Freeze(ctx context.Context, lobby string) error
	Unfreeze(ctx context.Context, lobby string) error
	Clear(ctx context.Context, lobby string) ([]string, error)
	Queue(ctx context.Context, lobby string) (hub.QueueView, error)
	Expire(ctx context.Context, lobby, playerID string, d time.Duration) (time.Time, error)
	Score(ctx context.Context, lobby string, id int, outcome gamelog.Outcome) (gamelog.Game, error)
	Cancel(ctx context.Context, lobby string, id int) (gamelog.Game, error)
	Undo(ctx context.Context, lobby string, id int) (gamelog.Game, error)
	Rebalance(ctx context.Context, lobby string) (gamelog.Game, error)
	Swap(ctx context.Context, lobby, player, other string) (gamelog.Game, error)
	SetSeed(ctx context.Context, playerID string, mean float64) error
	Game(ctx context.Context, lobby string, id int) (gamelog.Game, error)
	LastGame(ctx context.Context, lobby string) (gamelog.Game, error)
	Games(ctx context.Context, lobby string, limit int) ([]gamelog.Game, error)
	Player(ctx context.Context, lobby, playerID string) (hub.PlayerView, error)
	Ratings(ctx context.Context, lobby string) (rating.Snapshot, error)
}

// Directory answers membership questions about the community.
type Directory interface {
	HasRole(ctx context.Context, userID, roleID string) (bool, error)
	IsMember(ctx context.Context, userID string) (bool, error)
}

type Config struct {
	Prefix     string
	AdminRole  string
	BannedRole string
	RankedRole string
	Tiers      leaderboard.Tiers
	PageLen    int
	// GameList is how many games gamelist shows.
	GameList int
}

type Request struct {
	ChannelID string
	AuthorID  string
	Content   string
}

type handler func(ctx context.Context, req Request, args []string) (notify.Message, error)

type command struct {
	admin bool
	run   handler
}

type Router struct {
	hub      Hub
	dir      Directory
	cfg      Config
	log      *zap.Logger
	commands map[string]command
}

func NewRouter(h Hub, dir Directory, cfg Config, log *zap.Logger) *Router {
	if cfg.PageLen <= 0 {
		cfg.PageLen = 15
	}
	if cfg.GameList <= 0 {
		cfg.GameList = 20
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{hub: h, dir: dir, cfg: cfg, log: log.Named("commands")}
	r.commands = map[string]command{}
	r.register(false, r.ping, "ping")
	r.register(false, r.join, "join", "j")
	r.register(true, r.forceJoin, "forcejoin", "forcej", "forceadd")
	r.register(false, r.leave, "leave", "l")
	r.register(true, r.forceLeave, "forceleave", "forcel", "forceremove")
	r.register(true, r.players, "players")
	r.register(true, r.freeze, "freeze")
	r.register(true, r.unfreeze, "unfreeze")
	r.register(false, r.queue, "queue", "q")
	r.register(true, r.score, "score", "g")
	r.register(true, r.cancel, "cancel")
	r.register(true, r.undo, "undo", "unset")
	r.register(false, r.gameList, "gamelist", "gl")
	r.register(false, r.lastGame, "lastgame")
	r.register(false, r.gameInfo, "gameinfo", "gi")
	r.register(true, r.clear, "clear")
	r.register(true, r.rebalance, "rebalance", "rb")
	r.register(true, r.swap, "swap")
	r.register(true, r.setRating, "rating", "setrating")
	r.register(false, r.info, "info")
	r.register(false, r.leaderboard, "leaderboard", "lb")
	r.register(false, r.expire, "expire")
	return r
}

func (r *Router) register(admin bool, run handler, names ...string) {
	for _, n := range names {
		r.commands[n] = command{admin: admin, run: run}
	}
}

// Handle runs the command in req, if any. The returned message is the reply
// to post in the request channel; ok is false when nothing should be posted.
// Admin commands from non-admins are ignored without a reply.
func (r *Router) Handle(ctx context.Context, req Request) (reply notify.Message, ok bool) {
	name, args, found := parse(r.cfg.Prefix, req.Content)
	if !found {
		return notify.Message{}, false
	}
	cmd, known := r.commands[name]
	if !known {
		return notify.Message{}, false
	}
	if cmd.admin {
		admin, err := r.hasRole(ctx, req.AuthorID, r.cfg.AdminRole)
		if err != nil {
			r.log.Warn("admin check failed", zap.String("user", req.AuthorID), zap.Error(err))
			return notify.Message{}, false
		}
		if !admin {
			return notify.Message{}, false
		}
	}

	msg, err := cmd.run(ctx, req, args)
	if err != nil {
		text, expected := Describe(err)
		if !expected {
			r.log.Error("command failed",
				zap.String("command", name),
				zap.String("channel", req.ChannelID),
				zap.Error(err))
		}
		return notify.Message{Description: text}, true
	}
	if msg == (notify.Message{}) {
		return msg, false
	}
	return msg, true
}

func (r *Router) hasRole(ctx context.Context, userID, roleID string) (bool, error) {
	if roleID == "" {
		return false, nil
	}
	return r.dir.HasRole(ctx, userID, roleID)
}

// parse splits "<prefix>name arg1 arg2" into a lower-cased name and args.
func parse(prefix, content string) (string, []string, bool) {
	rest, ok := strings.CutPrefix(content, prefix)
	if !ok {
		return "", nil, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
