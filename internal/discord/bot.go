package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/DoyleJ11/queuebot/internal/bridge"
	"github.com/DoyleJ11/queuebot/internal/commands"
	"github.com/DoyleJ11/queuebot/internal/notify"
)

const handleTimeout = 15 * time.Second

// Handler answers chat commands.
type Handler interface {
	Handle(ctx context.Context, req commands.Request) (notify.Message, bool)
}

// Remover drops players from every queue when another instance starts a
// match with them.
type Remover interface {
	RemoveEverywhere(ctx context.Context, players []string) (int, error)
}

type BotConfig struct {
	GuildID       string
	BridgeChannel string
	// Presence is shown as the game the bot is playing.
	Presence string
}

// Bot routes gateway messages to the command router and the bridge.
type Bot struct {
	session  *discordgo.Session
	sender   notify.Platform
	handler  Handler
	remover  Remover
	cfg      BotConfig
	log      *zap.Logger
	ctx      context.Context
	removeFn func()
}

// NewSession creates a gateway session with the intents the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsNone
	s.Identify.Intents |= discordgo.IntentGuilds
	s.Identify.Intents |= discordgo.IntentGuildMessages
	s.Identify.Intents |= discordgo.IntentDirectMessages
	s.Identify.Intents |= discordgo.IntentMessageContent
	return s, nil
}

func NewBot(s *discordgo.Session, sender notify.Platform, h Handler, r Remover, cfg BotConfig, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{session: s, sender: sender, handler: h, remover: r, cfg: cfg, log: log.Named("discord")}
}

// Open connects to the gateway. Messages are handled until ctx is done or
// Close is called.
func (b *Bot) Open(ctx context.Context) error {
	b.ctx = ctx
	b.removeFn = b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || (s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID) {
			return
		}
		b.route(m.Message)
	})
	b.session.AddHandlerOnce(func(s *discordgo.Session, r *discordgo.Ready) {
		b.log.Info("connected", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
		if b.cfg.Presence == "" {
			return
		}
		if err := s.UpdateGameStatus(0, b.cfg.Presence); err != nil {
			b.log.Warn("presence update failed", zap.Error(err))
		}
	})
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	return nil
}

func (b *Bot) Close() error {
	if b.removeFn != nil {
		b.removeFn()
	}
	return b.session.Close()
}

// route handles one message not authored by the bot.
func (b *Bot) route(m *discordgo.Message) {
	parent := b.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, handleTimeout)
	defer cancel()

	if m.GuildID != "" && b.cfg.GuildID != "" && m.GuildID != b.cfg.GuildID {
		return
	}
	if b.cfg.BridgeChannel != "" && m.ChannelID == b.cfg.BridgeChannel {
		b.bridge(ctx, m)
		return
	}

	reply, ok := b.handler.Handle(ctx, commands.Request{
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		Content:   m.Content,
	})
	if !ok {
		return
	}
	if err := b.sender.SendMessage(ctx, m.ChannelID, reply); err != nil {
		b.log.Warn("reply failed", zap.String("channel", m.ChannelID), zap.Error(err))
	}
}

func (b *Bot) bridge(ctx context.Context, m *discordgo.Message) {
	gs, err := bridge.Decode(m.Content)
	if errors.Is(err, bridge.ErrUnknownOp) {
		b.log.Debug("ignoring bridge message", zap.Error(err))
		return
	}
	if err != nil {
		b.log.Warn("bad bridge message", zap.String("author", m.Author.ID), zap.Error(err))
		return
	}
	n, err := b.remover.RemoveEverywhere(ctx, gs.Players)
	if err != nil {
		b.log.Error("bridge removal failed", zap.Strings("players", gs.Players), zap.Error(err))
		return
	}
	b.log.Info("players started a game elsewhere", zap.Strings("players", gs.Players), zap.Int("removed", n))
}
