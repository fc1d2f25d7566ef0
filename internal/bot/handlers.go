package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/nashenas/anonbot/internal/engine"
	"github.com/nashenas/anonbot/internal/mailbox"
	"github.com/nashenas/anonbot/internal/metrics"
	"github.com/nashenas/anonbot/internal/telegram"
)

// handleMessage routes one private or group message. Routing order matters:
// commands and menu buttons win over dialog state, dialog state wins over
// session relay, and the mailbox paths come last.
func (b *Bot) handleMessage(ctx context.Context, m *telegram.Message) {
	if m.From == nil || m.From.IsBot {
		return
	}
	if m.Chat.Type != "private" {
		b.recordGroup(ctx, m.Chat, m.From.ID)
		return
	}

	user := m.From.ID
	if err := b.dir.AddUser(ctx, user, m.From.Username, m.From.FirstName, m.From.LastName); err != nil {
		log.Printf("[bot] register user %d: %v", user, err)
	}

	text := strings.TrimSpace(m.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		b.handleStart(ctx, user, strings.TrimSpace(strings.TrimPrefix(text, "/start")))
		return
	case text == "/cancel" || text == "/cansel":
		b.handleCancel(ctx, user)
		return
	case text == "/newmsg" || text == "/newms":
		b.handleNewMsg(ctx, user)
		return
	case text == "/help":
		b.send(ctx, user, textHelp, telegram.MainMenuKeyboard())
		return
	case text == telegram.ButtonRandomChat:
		b.handleRandomChat(ctx, user)
		return
	case text == telegram.ButtonEndChat:
		b.handleEndChat(ctx, user)
		return
	case text == telegram.ButtonNext:
		b.handleNext(ctx, user)
		return
	case text == telegram.ButtonAnonLink:
		b.handleAnonLink(ctx, user)
		return
	case text == telegram.ButtonSpecialContact:
		b.states.startContact(user)
		b.send(ctx, user, textContactAsk, nil)
		return
	}

	if st, ok := b.states.contactStep(user); ok {
		b.handleContactStep(ctx, user, st, m)
		return
	}

	// An active anonymous session swallows everything else.
	if _, ok := b.engine.PartnerOf(engine.UserID(user)); ok {
		b.engine.Relay(ctx, engine.UserID(user), engine.Payload{ChatID: m.Chat.ID, MessageID: m.MessageID})
		return
	}

	// Replying to a delivered anonymous message routes the answer back.
	if m.ReplyToMessage != nil {
		if sender, ok, err := b.mailbox.ReplyTarget(ctx, user, m.ReplyToMessage.MessageID); err == nil && ok {
			b.handleAnonReply(ctx, user, m, sender)
			return
		}
	}

	// A freshly opened deep link makes this message an anonymous letter.
	if owner, ok, err := b.mailbox.Target(ctx, user); err == nil && ok {
		b.handleAnonSend(ctx, user, owner, m)
		return
	}

	b.send(ctx, user, textMainMenuHint, telegram.MainMenuKeyboard())
}

// handleStart greets the user, or opens a deep link when /start carries a
// numeric payload (someone else's anonymous-message link).
func (b *Bot) handleStart(ctx context.Context, user int64, payload string) {
	if payload != "" {
		if owner, err := strconv.ParseInt(payload, 10, 64); err == nil {
			b.openLink(ctx, user, owner)
			return
		}
	}
	b.send(ctx, user, textWelcome, telegram.MainMenuKeyboard())
}

func (b *Bot) openLink(ctx context.Context, user, owner int64) {
	if owner == user {
		b.send(ctx, user, textOwnLink, telegram.MainMenuKeyboard())
		return
	}
	if err := b.mailbox.SetTarget(ctx, user, owner); err != nil {
		log.Printf("[bot] open link %d -> %d: %v", user, owner, err)
		b.send(ctx, user, textMainMenuHint, telegram.MainMenuKeyboard())
		return
	}

	name := "this person"
	if chat, err := b.api.GetChat(ctx, owner); err == nil {
		switch {
		case chat.FirstName != "":
			name = chat.FirstName
		case chat.Username != "":
			name = "@" + chat.Username
		}
	}
	b.send(ctx, user, fmt.Sprintf(textLinkOpened, name), nil)
}

func (b *Bot) handleRandomChat(ctx context.Context, user int64) {
	if _, ok := b.engine.PartnerOf(engine.UserID(user)); ok {
		b.send(ctx, user, textAlreadyChatting, telegram.ChatKeyboard())
		return
	}
	b.send(ctx, user, textAskGender, telegram.GenderKeyboard())
}

func (b *Bot) handleEndChat(ctx context.Context, user int64) {
	// On success the notifier messages both sides.
	if !b.engine.EndSession(engine.UserID(user), engine.ReasonEnded) {
		b.send(ctx, user, textNotInChat, telegram.MainMenuKeyboard())
	}
}

func (b *Bot) handleNext(ctx context.Context, user int64) {
	if b.engine.NextPartner(engine.UserID(user)) {
		return
	}
	// No stored profile yet, run the setup flow first.
	b.send(ctx, user, textAskGender, telegram.GenderKeyboard())
}

// handleCancel aborts whatever the user has going: a dialog, a search or an
// active chat, in that order of likelihood.
func (b *Bot) handleCancel(ctx context.Context, user int64) {
	b.states.clear(user)

	uid := engine.UserID(user)
	if b.engine.CancelSearch(uid) {
		b.send(ctx, user, textSearchCancelled, telegram.MainMenuKeyboard())
		return
	}
	if b.engine.EndSession(uid, engine.ReasonCancelled) {
		return
	}
	b.send(ctx, user, textNothingToCancel, telegram.MainMenuKeyboard())
}

func (b *Bot) handleAnonLink(ctx context.Context, user int64) {
	link := fmt.Sprintf("https://t.me/%s?start=%d", b.username, user)
	b.send(ctx, user, textAnonLinkIntro+link, telegram.MainMenuKeyboard())
}

// handleNewMsg pops the oldest queued anonymous message and delivers it,
// remembering which anonymous sender is behind the delivered message so the
// owner can answer by replying to it.
func (b *Bot) handleNewMsg(ctx context.Context, user int64) {
	msg, ok, err := b.mailbox.Pop(ctx, user)
	if err != nil {
		log.Printf("[bot] pop pending for %d: %v", user, err)
		return
	}
	if !ok {
		b.send(ctx, user, textNoPending, telegram.MainMenuKeyboard())
		return
	}

	delivered, err := b.api.SendMessage(ctx, user, textPendingHeader+msg.Text, nil)
	if err != nil {
		log.Printf("[bot] deliver pending to %d: %v", user, err)
		return
	}
	metrics.MailboxMessages.WithLabelValues("delivered").Inc()

	if err := b.mailbox.SetReplyTarget(ctx, user, delivered.MessageID, msg.SenderID); err != nil {
		log.Printf("[bot] set reply target for %d: %v", user, err)
		return
	}
	b.send(ctx, user, textReplyHint, nil)
}

// handleAnonSend queues a message from a sender who opened someone's link.
// The link is consumed: one letter per open.
func (b *Bot) handleAnonSend(ctx context.Context, user, owner int64, m *telegram.Message) {
	if err := b.mailbox.ClearTarget(ctx, user); err != nil {
		log.Printf("[bot] clear target %d: %v", user, err)
	}

	text := m.Text
	if text == "" {
		text = m.Caption
	}
	if text == "" {
		text = "(media message)"
	}

	err := b.mailbox.Push(ctx, owner, mailbox.PendingMessage{SenderID: user, Text: text, Ts: m.Date})
	if err != nil {
		log.Printf("[bot] queue anon message %d -> %d: %v", user, owner, err)
		b.send(ctx, user, textDeliveryFailed, nil)
		return
	}
	metrics.MailboxMessages.WithLabelValues("queued").Inc()

	if err := b.dir.RecordAnonMessage(ctx, user, owner, text); err != nil {
		log.Printf("[bot] record anon message: %v", err)
	}
	b.audit.Mirror(ctx, engine.UserID(user), engine.Payload{ChatID: m.Chat.ID, MessageID: m.MessageID})

	b.send(ctx, owner, textAnonNudge, nil)
	b.send(ctx, user, textAnonSent, telegram.MainMenuKeyboard())
}

// handleAnonReply copies the owner's reply to the anonymous sender without
// revealing who answered. The mapping is consumed after one use.
func (b *Bot) handleAnonReply(ctx context.Context, owner int64, m *telegram.Message, sender int64) {
	if err := b.api.CopyMessage(ctx, sender, m.Chat.ID, m.MessageID); err != nil {
		log.Printf("[bot] anon reply %d -> %d: %v", owner, sender, err)
		b.send(ctx, owner, textReplyFailed, nil)
		return
	}
	if err := b.mailbox.ClearReplyTarget(ctx, owner, m.ReplyToMessage.MessageID); err != nil {
		log.Printf("[bot] clear reply target: %v", err)
	}
	metrics.MailboxMessages.WithLabelValues("replied").Inc()
	b.send(ctx, owner, textReplySent, nil)
}

func (b *Bot) handleContactStep(ctx context.Context, user int64, st contactState, m *telegram.Message) {
	switch st.step {
	case stepContactTarget:
		b.handleContactTarget(ctx, user, strings.TrimSpace(m.Text))
	case stepContactMessage:
		b.handleContactMessage(ctx, user, st.targetID, m)
	}
}

// handleContactTarget resolves the recipient for the special-contact flow
// from a numeric ID or an @username. The user stays on this step until the
// input resolves or they /cancel.
func (b *Bot) handleContactTarget(ctx context.Context, user int64, input string) {
	if input == "" {
		b.send(ctx, user, textContactTextOnly, nil)
		return
	}

	var target int64
	if id, err := strconv.ParseInt(input, 10, 64); err == nil {
		target = id
	} else {
		id, ok, err := b.dir.UserIDByUsername(ctx, input)
		if err != nil || !ok {
			b.send(ctx, user, textContactUnknown, nil)
			return
		}
		target = id
	}

	if target == user {
		b.send(ctx, user, textContactSelf, nil)
		return
	}
	known, err := b.dir.UserExists(ctx, target)
	if err != nil || !known {
		b.send(ctx, user, textContactUnknown, nil)
		return
	}

	b.states.setContactTarget(user, target)
	b.send(ctx, user, textContactFound, nil)
}

func (b *Bot) handleContactMessage(ctx context.Context, user, target int64, m *telegram.Message) {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		b.send(ctx, user, textContactTextOnly, nil)
		return
	}

	b.states.clear(user)
	if _, err := b.api.SendMessage(ctx, target, textContactIncoming+text, nil); err != nil {
		log.Printf("[bot] special contact %d -> %d: %v", user, target, err)
		b.send(ctx, user, textContactFailed, telegram.MainMenuKeyboard())
		return
	}
	metrics.MailboxMessages.WithLabelValues("contact").Inc()

	if err := b.dir.RecordAnonMessage(ctx, user, target, text); err != nil {
		log.Printf("[bot] record anon message: %v", err)
	}
	b.send(ctx, user, textContactDelivered, telegram.MainMenuKeyboard())
}

// handleCallback routes inline-keyboard presses.
func (b *Bot) handleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	user := q.From.ID
	defer func() {
		if err := b.api.AnswerCallbackQuery(ctx, q.ID); err != nil {
			log.Printf("[bot] answer callback %s: %v", q.ID, err)
		}
	}()

	switch q.Data {
	case telegram.CallbackSelfMale:
		b.states.setGender(user, engine.GenderMale)
		b.send(ctx, user, textAskTarget, telegram.TargetKeyboard())
	case telegram.CallbackSelfFemale:
		b.states.setGender(user, engine.GenderFemale)
		b.send(ctx, user, textAskTarget, telegram.TargetKeyboard())
	case telegram.CallbackTargetMale:
		b.startSearch(ctx, user, engine.PrefMale)
	case telegram.CallbackTargetFemale:
		b.startSearch(ctx, user, engine.PrefFemale)
	case telegram.CallbackTargetAny:
		b.startSearch(ctx, user, engine.PrefAny)
	case telegram.CallbackCancelSearch:
		b.handleCancelSearch(ctx, user)
	case telegram.CallbackHelp:
		b.send(ctx, user, textHelp, nil)
	case telegram.CallbackRules:
		b.send(ctx, user, textRules, nil)
	}
}

// startSearch hands the user to the engine once both halves of the profile
// are known. A target press without a prior gender press (stale keyboard,
// bot restart) restarts the flow.
func (b *Bot) startSearch(ctx context.Context, user int64, pref string) {
	gender, ok := b.states.takeGender(user)
	if !ok {
		b.send(ctx, user, textAskGender, telegram.GenderKeyboard())
		return
	}
	b.engine.RequestSearch(engine.UserID(user), gender, pref)
}

func (b *Bot) handleCancelSearch(ctx context.Context, user int64) {
	uid := engine.UserID(user)
	if b.engine.CancelSearch(uid) {
		b.send(ctx, user, textSearchCancelled, telegram.MainMenuKeyboard())
		return
	}
	if _, ok := b.engine.PartnerOf(uid); ok {
		b.send(ctx, user, textAlreadyChatting, telegram.ChatKeyboard())
		return
	}
	b.send(ctx, user, textNotSearching, telegram.MainMenuKeyboard())
}

// recordGroup remembers groups the bot sees so reach can be measured.
func (b *Bot) recordGroup(ctx context.Context, chat telegram.Chat, userID int64) {
	if chat.Type != "group" && chat.Type != "supergroup" {
		return
	}
	if err := b.dir.AddGroup(ctx, chat.ID, chat.Title); err != nil {
		log.Printf("[bot] record group %d: %v", chat.ID, err)
		return
	}
	if userID != 0 {
		if err := b.dir.LinkUserGroup(ctx, userID, chat.ID); err != nil {
			log.Printf("[bot] link user %d to group %d: %v", userID, chat.ID, err)
		}
	}
}
