package notify

import (
	"context"
	"time"
)

// Message is a chat message rendered as an embed when Title or Description
// is set.
type Message struct {
	Content     string
	Title       string
	Description string
	Timestamp   time.Time
}

type Role struct {
	ID   string
	Name string
}

type Webhook struct {
	ID    string
	Token string
}

// Platform is everything the bot needs from the chat service. Every call may
// fail; failures are logged by the caller and never undo hub state.
type Platform interface {
	SendMessage(ctx context.Context, channelID string, m Message) error
	DirectMessage(ctx context.Context, userID string, m Message) error

	Roles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name string) (Role, error)
	DeleteRole(ctx context.Context, roleID string) error
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
	HasRole(ctx context.Context, userID, roleID string) (bool, error)

	// ExecuteWebhook posts m and returns the id of the created message.
	ExecuteWebhook(ctx context.Context, hook Webhook, m Message) (string, error)
	DeleteWebhookMessage(ctx context.Context, hook Webhook, messageID string) error
}
