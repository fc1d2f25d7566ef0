// Package bot routes Telegram updates into the matching engine, the link
// mailbox and the special-contact flow, and renders engine events back into
// user-facing messages.
package bot

import (
	"context"
	"log"
	"time"

	"github.com/nashenas/anonbot/internal/engine"
	"github.com/nashenas/anonbot/internal/mailbox"
	"github.com/nashenas/anonbot/internal/telegram"
)

// API is the slice of the Telegram client the bot needs. *telegram.Client
// implements it; tests substitute a recorder.
type API interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyMarkup any) (*telegram.Message, error)
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error
	GetChat(ctx context.Context, chatID int64) (*telegram.Chat, error)
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
}

// Directory is the user and group registry backed by Postgres.
type Directory interface {
	AddUser(ctx context.Context, userID int64, username, firstName, lastName string) error
	UserExists(ctx context.Context, userID int64) (bool, error)
	UserIDByUsername(ctx context.Context, username string) (int64, bool, error)
	AddGroup(ctx context.Context, groupID int64, title string) error
	LinkUserGroup(ctx context.Context, userID, groupID int64) error
	RecordAnonMessage(ctx context.Context, senderID, receiverID int64, text string) error
}

// Mailbox is the Redis-backed state behind link messaging.
type Mailbox interface {
	SetTarget(ctx context.Context, sender, owner int64) error
	Target(ctx context.Context, sender int64) (int64, bool, error)
	ClearTarget(ctx context.Context, sender int64) error
	Push(ctx context.Context, owner int64, msg mailbox.PendingMessage) error
	Pop(ctx context.Context, owner int64) (mailbox.PendingMessage, bool, error)
	SetReplyTarget(ctx context.Context, owner int64, messageID int, sender int64) error
	ReplyTarget(ctx context.Context, owner int64, messageID int) (int64, bool, error)
	ClearReplyTarget(ctx context.Context, owner int64, messageID int) error
}

// Auditor mirrors message metadata to the moderation log.
type Auditor interface {
	Mirror(ctx context.Context, from engine.UserID, p engine.Payload)
}

// Bot dispatches webhook updates to handlers.
type Bot struct {
	api      API
	engine   *engine.Engine
	dir      Directory
	mailbox  Mailbox
	audit    Auditor
	username string // bot username, used to build deep links
	states   *conversations
}

// New creates a Bot. audit may be engine.NopAuditSink when no log channel
// is configured.
func New(api API, eng *engine.Engine, dir Directory, mb Mailbox, audit Auditor, username string) *Bot {
	return &Bot{
		api:      api,
		engine:   eng,
		dir:      dir,
		mailbox:  mb,
		audit:    audit,
		username: username,
		states:   newConversations(),
	}
}

const handleTimeout = 30 * time.Second

// HandleUpdate dispatches one webhook update. The webhook handler calls it
// on its own goroutine, so handlers are free to block on the Bot API.
func (b *Bot) HandleUpdate(u *telegram.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	case u.MyChatMember != nil:
		b.recordGroup(ctx, u.MyChatMember.Chat, u.MyChatMember.From.ID)
	}
}

// send delivers text to a chat, logging failures instead of surfacing them;
// a user who blocked the bot must not break update handling.
func (b *Bot) send(ctx context.Context, chatID int64, text string, markup any) {
	if _, err := b.api.SendMessage(ctx, chatID, text, markup); err != nil {
		log.Printf("[bot] send to %d: %v", chatID, err)
	}
}
