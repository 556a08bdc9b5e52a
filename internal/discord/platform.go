package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/thriftrw/ptr"

	"github.com/DoyleJ11/queuebot/internal/notify"
)

// embedColor is the accent of every embed the bot posts.
const embedColor = 0x3498db

// session is the subset of *discordgo.Session the platform calls.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildRoleCreate(guildID string, data *discordgo.RoleParams, options ...discordgo.RequestOption) (*discordgo.Role, error)
	GuildRoleDelete(guildID, roleID string, options ...discordgo.RequestOption) error
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	WebhookMessageDelete(webhookID, token, messageID string, options ...discordgo.RequestOption) error
}

// Platform implements notify.Platform and commands.Directory for one guild.
type Platform struct {
	s       session
	guildID string
}

func NewPlatform(s session, guildID string) *Platform {
	return &Platform{s: s, guildID: guildID}
}

func (p *Platform) SendMessage(ctx context.Context, channelID string, m notify.Message) error {
	_, err := p.s.ChannelMessageSendComplex(channelID, messageSend(m), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send to %s: %w", channelID, err)
	}
	return nil
}

func (p *Platform) DirectMessage(ctx context.Context, userID string, m notify.Message) error {
	ch, err := p.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm with %s: %w", userID, err)
	}
	return p.SendMessage(ctx, ch.ID, m)
}

func (p *Platform) Roles(ctx context.Context) ([]notify.Role, error) {
	roles, err := p.s.GuildRoles(p.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	out := make([]notify.Role, len(roles))
	for i, r := range roles {
		out[i] = notify.Role{ID: r.ID, Name: r.Name}
	}
	return out, nil
}

func (p *Platform) CreateRole(ctx context.Context, name string) (notify.Role, error) {
	r, err := p.s.GuildRoleCreate(p.guildID, &discordgo.RoleParams{
		Name:        name,
		Mentionable: ptr.Bool(true),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return notify.Role{}, fmt.Errorf("create role %q: %w", name, err)
	}
	return notify.Role{ID: r.ID, Name: r.Name}, nil
}

func (p *Platform) DeleteRole(ctx context.Context, roleID string) error {
	if err := p.s.GuildRoleDelete(p.guildID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete role %s: %w", roleID, err)
	}
	return nil
}

func (p *Platform) AddRole(ctx context.Context, userID, roleID string) error {
	if err := p.s.GuildMemberRoleAdd(p.guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add role %s to %s: %w", roleID, userID, err)
	}
	return nil
}

func (p *Platform) RemoveRole(ctx context.Context, userID, roleID string) error {
	if err := p.s.GuildMemberRoleRemove(p.guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("remove role %s from %s: %w", roleID, userID, err)
	}
	return nil
}

// HasRole reports false for users that are no longer in the guild.
func (p *Platform) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	m, err := p.member(ctx, userID)
	if err != nil || m == nil {
		return false, err
	}
	return slices.Contains(m.Roles, roleID), nil
}

func (p *Platform) IsMember(ctx context.Context, userID string) (bool, error) {
	m, err := p.member(ctx, userID)
	return m != nil, err
}

// member returns nil without error for unknown members.
func (p *Platform) member(ctx context.Context, userID string) (*discordgo.Member, error) {
	m, err := p.s.GuildMember(p.guildID, userID, discordgo.WithContext(ctx))
	if isErrorCode(err, discordgo.ErrCodeUnknownMember) || isErrorCode(err, discordgo.ErrCodeUnknownUser) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member %s: %w", userID, err)
	}
	return m, nil
}

func (p *Platform) ExecuteWebhook(ctx context.Context, hook notify.Webhook, m notify.Message) (string, error) {
	send := messageSend(m)
	msg, err := p.s.WebhookExecute(hook.ID, hook.Token, true, &discordgo.WebhookParams{
		Content:         send.Content,
		Embeds:          send.Embeds,
		AllowedMentions: send.AllowedMentions,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("execute webhook %s: %w", hook.ID, err)
	}
	return msg.ID, nil
}

func (p *Platform) DeleteWebhookMessage(ctx context.Context, hook notify.Webhook, messageID string) error {
	err := p.s.WebhookMessageDelete(hook.ID, hook.Token, messageID, discordgo.WithContext(ctx))
	if isErrorCode(err, discordgo.ErrCodeUnknownMessage) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete webhook message %s: %w", messageID, err)
	}
	return nil
}

// messageSend renders m as plain content plus an optional embed. Mentions
// in embeds never ping; mentions in content do.
func messageSend(m notify.Message) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content: m.Content,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
		},
	}
	if m.Title == "" && m.Description == "" {
		return send
	}
	embed := &discordgo.MessageEmbed{
		Title:       m.Title,
		Description: m.Description,
		Color:       embedColor,
	}
	if !m.Timestamp.IsZero() {
		embed.Timestamp = m.Timestamp.UTC().Format(time.RFC3339)
	}
	send.Embeds = []*discordgo.MessageEmbed{embed}
	return send
}

func isErrorCode(err error, code int) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Code == code
}
