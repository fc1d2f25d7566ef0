package bot

import (
	"context"
	"log"
	"time"

	"github.com/nashenas/anonbot/internal/engine"
	"github.com/nashenas/anonbot/internal/telegram"
)

// EventPublisher mirrors engine lifecycle events onto the message bus.
type EventPublisher interface {
	PublishEvent(eventType string, user engine.UserID)
}

// Notifier renders engine events into Telegram messages. It implements
// engine.Notifier; the engine invokes it outside its lock.
type Notifier struct {
	api    API
	events EventPublisher // nil disables bus mirroring
}

// NewNotifier creates a Notifier sending through api and optionally
// publishing lifecycle events.
func NewNotifier(api API, events EventPublisher) *Notifier {
	return &Notifier{api: api, events: events}
}

const notifyTimeout = 10 * time.Second

func (n *Notifier) notify(user engine.UserID, text string, markup any) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if _, err := n.api.SendMessage(ctx, int64(user), text, markup); err != nil {
		log.Printf("[notifier] send to %d: %v", user, err)
	}
}

func (n *Notifier) publish(eventType string, user engine.UserID) {
	if n.events != nil {
		n.events.PublishEvent(eventType, user)
	}
}

func (n *Notifier) Searching(user engine.UserID) {
	n.notify(user, textSearching, telegram.CancelSearchKeyboard())
	n.publish("searching", user)
}

func (n *Notifier) Matched(user engine.UserID) {
	n.notify(user, textMatched, telegram.ChatKeyboard())
	n.publish("matched", user)
}

func (n *Notifier) AlreadyChatting(user engine.UserID) {
	n.notify(user, textAlreadyChatting, telegram.ChatKeyboard())
}

func (n *Notifier) SearchTimedOut(user engine.UserID) {
	n.notify(user, textSearchTimedOut, telegram.MainMenuKeyboard())
	n.publish("search_timeout", user)
}

func (n *Notifier) ChatEnded(user engine.UserID, reason engine.EndReason) {
	switch reason {
	case engine.ReasonNext:
		// No keyboard swap: the follow-up search notification carries one.
		n.notify(user, textChatNext, nil)
	case engine.ReasonInactivity:
		n.notify(user, textChatIdle, telegram.MainMenuKeyboard())
	case engine.ReasonCancelled:
		n.notify(user, textChatCancelled, telegram.MainMenuKeyboard())
	default:
		n.notify(user, textChatEnded, telegram.MainMenuKeyboard())
	}
	n.publish("ended:"+string(reason), user)
}

func (n *Notifier) PartnerDisconnected(user engine.UserID) {
	n.notify(user, textPartnerLeft, telegram.MainMenuKeyboard())
}

func (n *Notifier) Throttled(user engine.UserID) {
	n.notify(user, textThrottled, nil)
}

func (n *Notifier) DeliveryFailed(user engine.UserID) {
	n.notify(user, textDeliveryFailed, nil)
}
