package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/DoyleJ11/queuebot/internal/commands"
	"github.com/DoyleJ11/queuebot/internal/config"
	"github.com/DoyleJ11/queuebot/internal/discord"
	"github.com/DoyleJ11/queuebot/internal/gamelog"
	"github.com/DoyleJ11/queuebot/internal/httpapi"
	"github.com/DoyleJ11/queuebot/internal/hub"
	"github.com/DoyleJ11/queuebot/internal/notify"
	"github.com/DoyleJ11/queuebot/internal/rating"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("loading config", zap.Error(err))
	}
	log, err := newLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("queuebot stopped", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	games, seeds, closeStore, err := openStore(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer closeStore()

	lobbies := make([]hub.LobbyConfig, len(cfg.Lobbies))
	for i, l := range cfg.Lobbies {
		lobbies[i] = hub.LobbyConfig{Channel: l.Channel, Name: l.Name, Capacity: l.Capacity}
	}
	hubCfg := hub.Config{
		Lobbies:        lobbies,
		DefaultTimeout: cfg.Timeout.DefaultDuration(),
		MaxTimeout:     cfg.Timeout.MaximumDuration(),
		Warn:           cfg.Timeout.WarnDuration(),
	}
	deps := hub.Deps{
		Games:  games,
		Seeds:  seeds,
		Model:  rating.NewOpenSkill(cfg.Rating.Mu, cfg.Rating.Sigma, cfg.Rating.Tau),
		Logger: log,
	}

	var (
		session    *discordgo.Session
		platform   *discord.Platform
		dispatcher *notify.Dispatcher
	)
	if cfg.DiscordToken != "" {
		session, err = discord.NewSession(cfg.DiscordToken)
		if err != nil {
			return err
		}
		platform = discord.NewPlatform(session, cfg.Guild)
		dispatcher = notify.NewDispatcher(platform, nil, notify.Config{
			Prefix:        cfg.Prefix,
			RankedRole:    cfg.Roles.Ranked,
			Tiers:         cfg.Tiers(),
			Webhooks:      cfg.Webhooks(),
			BridgeChannel: cfg.Bridge,
			PageLen:       cfg.Leaderboard.PageLen,
		}, log)
		deps.Sink = dispatcher
	} else {
		log.Warn("DISCORD_TOKEN is not set, serving the HTTP API only")
		deps.Sink = hub.SinkFunc(func(e hub.Event) {
			log.Debug("event", zap.String("kind", string(e.Kind)), zap.String("lobby", e.Lobby))
		})
	}

	h, err := hub.New(ctx, hubCfg, deps)
	if err != nil {
		return err
	}
	defer h.Close()

	apiCfg := httpapi.Config{PageLen: cfg.Leaderboard.PageLen, Tiers: cfg.Tiers()}
	if platform != nil {
		dispatcher.SetRatings(h)
		go func() { _ = dispatcher.Run(ctx) }()

		router := commands.NewRouter(h, platform, commands.Config{
			Prefix:     cfg.Prefix,
			AdminRole:  cfg.Roles.Admin,
			BannedRole: cfg.Roles.Banned,
			RankedRole: cfg.Roles.Ranked,
			Tiers:      cfg.Tiers(),
			PageLen:    cfg.Leaderboard.PageLen,
		}, log)
		bot := discord.NewBot(session, platform, router, h, discord.BotConfig{
			GuildID:       cfg.Guild,
			BridgeChannel: cfg.Bridge,
			Presence:      cfg.Game,
		}, log)
		if err := bot.Open(ctx); err != nil {
			return err
		}
		defer func() { _ = bot.Close() }()
		if cfg.Roles.Ranked != "" {
			ranked := cfg.Roles.Ranked
			apiCfg.Eligible = func(ctx context.Context, id string) (bool, error) {
				return platform.HasRole(ctx, id, ranked)
			}
		}
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.SetupRoutes(h, apiCfg, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.Int("lobbies", len(lobbies)))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore returns the game log and seed store. An empty dsn keeps
// everything in memory.
func openStore(ctx context.Context, dsn string, log *zap.Logger) (gamelog.Store, gamelog.SeedStore, func(), error) {
	if dsn == "" {
		log.Warn("DATABASE_URL is not set, games are kept in memory")
		m := gamelog.NewMemory()
		return m, m, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	games := gamelog.NewPostgres(pool)
	if err := games.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	seeds, err := gamelog.OpenSeeds(dsn)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	if err := seeds.Migrate(ctx); err != nil {
		pool.Close()
		_ = seeds.Close()
		return nil, nil, nil, err
	}
	return games, seeds, func() {
		pool.Close()
		if err := seeds.Close(); err != nil {
			log.Warn("closing seed store", zap.Error(err))
		}
	}, nil
}
